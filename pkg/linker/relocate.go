package linker

import (
	"fmt"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

// RelocateSection applies the relocations of isec to buf, the section's
// bytes in the output. Allocated sections get the full treatment: calls
// go through the stubs decided while sizing and dynamic relocations are
// emitted. Other sections only get link-time values.
func RelocateSection(ctx *Context, isec *InputSection, buf []byte) {
	if !isec.IsAlloc() {
		relocateNonAlloc(ctx, isec, buf)
		return
	}

	o := isec.File
	rels := isec.GetRels()
	for i := range rels {
		rel := &rels[i]
		typ := ppc64.RelocType(rel.Type())
		if typ == ppc64.R_PPC64_NONE {
			continue
		}
		h := ppc64.MustLookup(typ)
		sym := o.Symbols[rel.Sym()]
		loc := buf[rel.Offset:]
		p := isec.GetAddr() + rel.Offset
		sa := relocSA(ctx, o, rel, sym)

		switch h.Class {
		case ppc64.ClassNone, ppc64.ClassTLSMarker, ppc64.ClassEntry, ppc64.ClassPCRelOpt,
			ppc64.ClassPLTSeq, ppc64.ClassVT:
			continue
		case ppc64.ClassDynamic:
			ctx.ErrorfAt(isec, rel.Offset, "unexpected dynamic relocation %s", h.Name)
			continue
		case ppc64.ClassBranch:
			relocateBranch(ctx, isec, buf, rels, i, h, sym)
			continue
		case ppc64.ClassTOCSave:
			relocateTOCSave(ctx, isec, buf, rel, sym)
			continue
		}

		switch h.Class {
		case ppc64.ClassAbs, ppc64.ClassRel, ppc64.ClassTPRel, ppc64.ClassDTPMod,
			ppc64.ClassDTPRel, ppc64.ClassTOCBase:
			d, need, msg := dataDynReloc(ctx, isec, rel, sym, h, sa)
			if msg != "" {
				ctx.ErrorfAt(isec, rel.Offset, "%s", msg)
				continue
			}
			if need {
				emitDynReloc(ctx, isec, buf, d)
				continue
			}
		}

		v, dest, ok := relocValue(ctx, isec, rel, h, sym, sa, p)
		if !ok {
			continue
		}
		checkApply(ctx, isec, rel, h, sym, loc, v, dest)
	}
}

// relocValue computes the value of a non-branch relocation from its
// Base and Minus terms. dest names the base kind for diagnostics.
func relocValue(ctx *Context, isec *InputSection, rel *Rela, h *ppc64.Howto,
	sym *Symbol, sa, p uint64) (uint64, string, bool) {
	o := isec.File
	var base uint64
	dest := "symbol"

	switch h.Base {
	case ppc64.BaseSym:
		base = sa
	case ppc64.BaseGOT:
		var e *GotEntry
		if h.TLS == ppc64.TLSLD {
			e = o.TLSLDGot
		} else {
			e = sym.FindGot(o, rel.Addend, h.TLS)
		}
		if e == nil || !e.IsLive() {
			ctx.ErrorfAt(isec, rel.Offset, "%s against %s has no GOT entry", h.Name, sym)
			return 0, "", false
		}
		base = e.GetAddr(ctx)
		dest = "GOT entry"
	case ppc64.BasePLT:
		e := sym.LivePlt(rel.Addend)
		if e == nil {
			ctx.ErrorfAt(isec, rel.Offset, "%s against %s has no PLT entry", h.Name, sym)
			return 0, "", false
		}
		base = e.GetAddr(ctx)
		dest = "PLT entry"
	case ppc64.BaseTOC:
		base = ctx.TOCBase(isec) + uint64(rel.Addend)
		dest = "TOC base"
	case ppc64.BaseModID:
		// the executable is module 1
		base = 1
	case ppc64.BaseNone:
		return 0, "", false
	}

	switch h.Minus {
	case ppc64.MinusP:
		base -= p
	case ppc64.MinusTOC:
		base -= ctx.TOCBase(isec)
		if h.Base == ppc64.BaseSym {
			dest = "TOC-relative symbol"
		}
	case ppc64.MinusTP:
		base -= ctx.TpAddr
	case ppc64.MinusDTP:
		base -= ctx.DtpAddr
	case ppc64.MinusSect:
		if sym.InputSection != nil && sym.InputSection.OutputSection != nil {
			base -= sym.InputSection.OutputSection.Shdr.Addr
		}
	}
	return base, dest, true
}

func checkApply(ctx *Context, isec *InputSection, rel *Rela, h *ppc64.Howto, sym *Symbol,
	loc []byte, v uint64, dest string) {
	st := h.Apply(loc, ctx.Order, v)
	if st&ppc64.StatusOverflow != 0 {
		ctx.ErrorfAt(isec, rel.Offset, "%s out of range: 0x%x does not fit %d bits; references %s %s",
			h.Name, v, h.BitSize, dest, sym)
	}
	if st&ppc64.StatusMisaligned != 0 {
		ctx.ErrorfAt(isec, rel.Offset, "%s: 0x%x is not aligned to %d; references %s %s",
			h.Name, v, h.Align, dest, sym)
	}
}

// relocateBranch applies a call or branch using the decision recorded
// for its call site.
func relocateBranch(ctx *Context, isec *InputSection, buf []byte, rels []Rela, i int,
	h *ppc64.Howto, sym *Symbol) {
	rel := &rels[i]
	p := isec.GetAddr() + rel.Offset
	loc := buf[rel.Offset:]
	ci, ok := ctx.CallSites[CallSite{Sec: isec, Off: rel.Offset}]
	if !ok {
		ci = DecideCall(ctx, isec, rels, i)
	}

	if ci.Nop {
		ctx.Order.PutUint32(loc, ppc64.OP_NOP)
		return
	}

	dest := ci.Dest
	kind := "symbol"
	if ci.Stub != nil {
		dest = ci.Stub.Addr()
		kind = fmt.Sprintf("%s stub", ci.Stub.Kind)
	}
	checkApply(ctx, isec, rel, h, sym, loc, dest-p, kind)

	if !ci.RestoreTOC || rel.Offset+8 > uint64(len(buf)) {
		return
	}
	next := ctx.Order.Uint32(buf[rel.Offset+4:])
	switch {
	case ppc64.IsTOCRestore(next):
	case ppc64.IsNop(next):
		ctx.Order.PutUint32(buf[rel.Offset+4:], ppc64.OP_LD_R2_0R1|uint32(ctx.StkTOC()))
	default:
		ctx.ErrorfAt(isec, rel.Offset, "call to %s lacks a nop to restore r2; recompile with -fPIC", sym)
	}
}

// relocateTOCSave places "std r2" in the caller's prologue when the call
// it is attached to was decided to rely on it.
func relocateTOCSave(ctx *Context, isec *InputSection, buf []byte, rel *Rela, sym *Symbol) {
	if rel.Offset < 4 {
		return
	}
	ci, ok := ctx.CallSites[CallSite{Sec: isec, Off: rel.Offset - 4}]
	if !ok || !ci.TOCSave || !sym.IsInSection(isec) {
		return
	}
	off := sym.Value + uint64(rel.Addend)
	if off+4 > uint64(len(buf)) {
		return
	}
	insn := ctx.Order.Uint32(buf[off:])
	std := ppc64.OP_STD_R2_0R1 | uint32(ctx.StkTOC())
	if insn != std && !ppc64.IsNop(insn) {
		ctx.ErrorfAt(isec, off, "R_PPC64_TOCSAVE points at 0x%08x, not a nop", insn)
		return
	}
	ctx.Order.PutUint32(buf[off:], std)
}

// relocateNonAlloc handles debug and other non-allocated sections, which
// only see absolute and DTP-relative values.
func relocateNonAlloc(ctx *Context, isec *InputSection, buf []byte) {
	o := isec.File
	rels := isec.GetRels()
	for i := range rels {
		rel := &rels[i]
		typ := ppc64.RelocType(rel.Type())
		if typ == ppc64.R_PPC64_NONE {
			continue
		}
		h, ok := ppc64.Lookup(typ)
		if !ok {
			ctx.Fatalf("%s: unsupported relocation %d", isec.Location(rel.Offset), typ)
		}
		if int(rel.Sym()) >= len(o.Symbols) {
			ctx.Fatalf("%s: bad symbol index %d", isec.Location(rel.Offset), rel.Sym())
		}
		sym := o.Symbols[rel.Sym()]
		sa := relocSA(ctx, o, rel, sym)

		var v uint64
		switch h.Class {
		case ppc64.ClassAbs:
			v = sa
		case ppc64.ClassDTPRel:
			v = sa - ctx.DtpAddr
		case ppc64.ClassRel:
			v = sa - (isec.GetAddr() + rel.Offset)
		case ppc64.ClassSectOff:
			v, _, _ = relocValue(ctx, isec, rel, h, sym, sa, 0)
		default:
			continue
		}
		h.Apply(buf[rel.Offset:], ctx.Order, v)
	}
}
