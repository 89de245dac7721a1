package linker

import (
	"github.com/unicornx/ppc64ld/pkg/ppc64"
	"github.com/unicornx/ppc64ld/pkg/utils"
)

// tlsMove is what the optimizer does to one access sequence.
type tlsMove uint8

const (
	tlsKeep tlsMove = iota
	tlsToIE
	tlsToLE
)

// tlsDecide picks the access model for a (symbol, kind) pair. The answer
// only depends on the pair and the object, so every relocation of one
// sequence agrees.
func tlsDecide(ctx *Context, o *ObjectFile, sym *Symbol, addend int64, kind ppc64.TLSKind) tlsMove {
	if ctx.Args.Shared || ctx.Args.NoTLSOptimize || o.TLSOptDisabled {
		return tlsKeep
	}
	switch kind {
	case ppc64.TLSLD:
		return tlsToLE
	case ppc64.TLSGD:
		if sym == nil || sym.Dso != nil || sym.IsPreemptible(ctx) || sym.IsUndef() {
			return tlsToIE
		}
		v := int64(sym.GetAddr()) + addend - int64(ctx.TpAddr)
		if !utils.FitsSigned(v, 32) {
			return tlsToIE
		}
		return tlsToLE
	case ppc64.TLSTPRel:
		if sym == nil || sym.Dso != nil || sym.IsPreemptible(ctx) || sym.IsUndef() {
			return tlsKeep
		}
		if sym.TLSMask&TlsTLS == 0 {
			return tlsKeep
		}
		return tlsToLE
	}
	return tlsKeep
}

var gdToIE = map[ppc64.RelocType]ppc64.RelocType{
	ppc64.R_PPC64_GOT_TLSGD16:       ppc64.R_PPC64_GOT_TPREL16_DS,
	ppc64.R_PPC64_GOT_TLSGD16_LO:    ppc64.R_PPC64_GOT_TPREL16_LO_DS,
	ppc64.R_PPC64_GOT_TLSGD16_HI:    ppc64.R_PPC64_GOT_TPREL16_HI,
	ppc64.R_PPC64_GOT_TLSGD16_HA:    ppc64.R_PPC64_GOT_TPREL16_HA,
	ppc64.R_PPC64_GOT_TLSGD_PCREL34: ppc64.R_PPC64_GOT_TPREL_PCREL34,
}

// OptimizeTLS downgrades general and local dynamic TLS sequences to
// initial or local exec, and initial exec to local exec, when linking an
// executable.
func OptimizeTLS(ctx *Context) {
	if ctx.Args.Shared || ctx.Args.NoTLSOptimize {
		return
	}
	for _, o := range ctx.Objs {
		if o.TLSOptDisabled {
			continue
		}
		for _, isec := range o.Sections {
			if isec == nil || !isec.IsAlive || !isec.IsAlloc() || !isec.IsExec() {
				continue
			}
			optimizeTLSSection(ctx, isec)
		}
	}
}

// tlsCall is the sequence a __tls_get_addr call belongs to, read before
// any relocation of the section is rewritten.
type tlsCall struct {
	sym    *Symbol
	symIdx uint32
	addend int64
	kind   ppc64.TLSKind
	marked bool
}

type tlsOpt struct {
	ctx   *Context
	isec  *InputSection
	o     *ObjectFile
	rels  []Rela
	calls map[uint64]tlsCall
}

func optimizeTLSSection(ctx *Context, isec *InputSection) {
	t := &tlsOpt{ctx: ctx, isec: isec, o: isec.File, rels: isec.GetRels(),
		calls: map[uint64]tlsCall{}}
	for i := range t.rels {
		rel := &t.rels[i]
		switch ppc64.RelocType(rel.Type()) {
		case ppc64.R_PPC64_TLSGD:
			t.calls[rel.Offset&^3] = tlsCall{sym: t.o.Symbols[rel.Sym()], symIdx: rel.Sym(),
				addend: rel.Addend, kind: ppc64.TLSGD, marked: true}
		case ppc64.R_PPC64_TLSLD:
			t.calls[rel.Offset&^3] = tlsCall{sym: t.o.Symbols[rel.Sym()], symIdx: rel.Sym(),
				addend: rel.Addend, kind: ppc64.TLSLD, marked: true}
		}
	}
	for i := range t.rels {
		rel := &t.rels[i]
		if _, ok := t.calls[rel.Offset]; ok {
			continue
		}
		j, ok := ctx.TLSCallSetup[CallSite{Sec: isec, Off: rel.Offset}]
		if !ok || !ppc64.IsBranch(ppc64.RelocType(rel.Type())) {
			continue
		}
		setup := &t.rels[j]
		h := ppc64.MustLookup(ppc64.RelocType(setup.Type()))
		t.calls[rel.Offset] = tlsCall{sym: t.o.Symbols[setup.Sym()], symIdx: setup.Sym(),
			addend: setup.Addend, kind: h.TLS}
	}

	for i := range t.rels {
		rel := &t.rels[i]
		typ := ppc64.RelocType(rel.Type())
		h, ok := ppc64.Lookup(typ)
		if !ok || typ == ppc64.R_PPC64_NONE {
			continue
		}
		sym := t.o.Symbols[rel.Sym()]

		switch {
		case h.Class == ppc64.ClassGOT && (h.TLS == ppc64.TLSGD || h.TLS == ppc64.TLSLD):
			t.setup(rel, h, sym)
		case h.Class == ppc64.ClassGOT && h.TLS == ppc64.TLSTPRel:
			t.ieSetup(rel, h, sym)
		case typ == ppc64.R_PPC64_TLSGD || typ == ppc64.R_PPC64_TLSLD:
			t.marker(rel, t.calls[rel.Offset&^3])
		case typ == ppc64.R_PPC64_TLS:
			t.tlsInsn(rel, sym)
		case h.Class == ppc64.ClassBranch && sym != nil && sym == ctx.TLSGetAddr:
			t.call(rel)
		}
	}
}

func (t *tlsOpt) nop(rel *Rela) {
	t.isec.SetInsn(rel.Offset&^3, ppc64.OP_NOP)
	rel.SetType(uint32(ppc64.R_PPC64_NONE))
}

func (t *tlsOpt) unrefGot(rel *Rela, h *ppc64.Howto, sym *Symbol) {
	if h.TLS == ppc64.TLSLD {
		t.o.TLSLDGot.Alloc.Unref()
		return
	}
	sym.FindGot(t.o, rel.Addend, h.TLS).Alloc.Unref()
}

// setup rewrites the GOT access that computes the __tls_get_addr
// argument.
func (t *tlsOpt) setup(rel *Rela, h *ppc64.Howto, sym *Symbol) {
	move := tlsDecide(t.ctx, t.o, sym, rel.Addend, h.TLS)
	if move == tlsKeep {
		return
	}
	t.unrefGot(rel, h, sym)
	off := rel.Offset &^ 3

	if h.Size == ppc64.SizePrefix34 {
		insn := ppc64.ReadPrefixed(t.isec.Contents[rel.Offset:], t.o.Order)
		switch {
		case move == tlsToIE:
			ppc64.WritePrefixed(t.isec.Contents[rel.Offset:], t.o.Order, ppc64.PCRelSetupToIE(insn))
			rel.SetType(uint32(ppc64.R_PPC64_GOT_TPREL_PCREL34))
			sym.GetGot(t.ctx, t.o, rel.Addend, ppc64.TLSTPRel).Alloc.Ref()
			sym.TLSMask |= TlsGDIE | TlsTPRel
		case h.TLS == ppc64.TLSLD:
			ppc64.WritePrefixed(t.isec.Contents[rel.Offset:], t.o.Order,
				ppc64.PCRelSetupToLE(insn, ppc64.DTPOffset-ppc64.TPOffset))
			rel.SetType(uint32(ppc64.R_PPC64_NONE))
		default:
			ppc64.WritePrefixed(t.isec.Contents[rel.Offset:], t.o.Order, ppc64.PCRelSetupToLE(insn, 0))
			rel.SetType(uint32(ppc64.R_PPC64_TPREL34))
		}
		return
	}

	high := h.RightShift == 16
	switch {
	case move == tlsToIE:
		if !high {
			t.isec.SetInsn(off, ppc64.GOTSetupToIE(t.isec.Insn(off)))
		}
		rel.SetType(uint32(gdToIE[ppc64.RelocType(rel.Type())]))
		sym.GetGot(t.ctx, t.o, rel.Addend, ppc64.TLSTPRel).Alloc.Ref()
		sym.TLSMask |= TlsGDIE | TlsTPRel
	case high:
		t.nop(rel)
	case h.TLS == ppc64.TLSLD:
		t.isec.SetInsn(off, ppc64.GOTSetupToLE(t.isec.Insn(off)))
		rel.SetType(uint32(ppc64.R_PPC64_NONE))
	default:
		t.isec.SetInsn(off, ppc64.GOTSetupToLE(t.isec.Insn(off)))
		rel.Offset = off + ppc64.DOffset(t.o.Order)
		rel.SetType(uint32(ppc64.R_PPC64_TPREL16_HA))
	}
}

// ieSetup rewrites the GOT load of an initial exec access.
func (t *tlsOpt) ieSetup(rel *Rela, h *ppc64.Howto, sym *Symbol) {
	if tlsDecide(t.ctx, t.o, sym, rel.Addend, ppc64.TLSTPRel) != tlsToLE {
		return
	}
	t.unrefGot(rel, h, sym)

	if h.Size == ppc64.SizePrefix34 {
		insn := ppc64.ReadPrefixed(t.isec.Contents[rel.Offset:], t.o.Order)
		ppc64.WritePrefixed(t.isec.Contents[rel.Offset:], t.o.Order, ppc64.PCRelSetupToLE(insn, 0))
		rel.SetType(uint32(ppc64.R_PPC64_TPREL34))
		return
	}
	if h.RightShift == 16 {
		t.nop(rel)
		return
	}
	off := rel.Offset &^ 3
	t.isec.SetInsn(off, ppc64.GOTSetupToLE(t.isec.Insn(off)))
	rel.Offset = off + ppc64.DOffset(t.o.Order)
	rel.SetType(uint32(ppc64.R_PPC64_TPREL16_HA))
}

// tlsInsn rewrites the instruction carrying an @tls operand once its IE
// load became an LE addis.
func (t *tlsOpt) tlsInsn(rel *Rela, sym *Symbol) {
	if tlsDecide(t.ctx, t.o, sym, rel.Addend, ppc64.TLSTPRel) != tlsToLE {
		return
	}
	pcrel := rel.Offset&3 == 1
	off := rel.Offset &^ 3
	insn := ppc64.AtTLSTransform(t.isec.Insn(off), 13)
	if insn == 0 {
		t.ctx.ErrorfAt(t.isec, off, "cannot optimize the @tls access of %s: unrecognized instruction 0x%08x",
			sym, t.isec.Insn(off))
		return
	}
	t.isec.SetInsn(off, insn)
	if pcrel {
		rel.SetType(uint32(ppc64.R_PPC64_NONE))
		return
	}
	rel.Offset = off + ppc64.DOffset(t.o.Order)
	if ppc64.IsLoadDS(insn) {
		rel.SetType(uint32(ppc64.R_PPC64_TPREL16_LO_DS))
	} else {
		rel.SetType(uint32(ppc64.R_PPC64_TPREL16_LO))
	}
}

// marker rewrites the call tagged by a TLSGD/TLSLD marker.
func (t *tlsOpt) marker(rel *Rela, c tlsCall) {
	move := tlsDecide(t.ctx, t.o, c.sym, c.addend, c.kind)
	if move == tlsKeep {
		return
	}
	pcrel := rel.Offset&3 == 1
	off := rel.Offset &^ 3

	switch {
	case move == tlsToIE:
		t.isec.SetInsn(off, ppc64.TLSCallToIE)
		rel.SetType(uint32(ppc64.R_PPC64_NONE))
	case pcrel:
		t.isec.SetInsn(off, ppc64.OP_NOP)
		rel.SetType(uint32(ppc64.R_PPC64_NONE))
	case c.kind == ppc64.TLSLD:
		t.isec.SetInsn(off, ppc64.TLSCallLDToLE)
		rel.SetType(uint32(ppc64.R_PPC64_NONE))
	default:
		t.isec.SetInsn(off, ppc64.TLSCallGDToLE)
		rel.Offset = off + ppc64.DOffset(t.o.Order)
		rel.SetType(uint32(ppc64.R_PPC64_TPREL16_LO))
	}
}

func (t *tlsOpt) dropCall(rel *Rela) {
	sym := t.o.Symbols[rel.Sym()]
	target, _ := callTarget(t.ctx, sym)
	if needsPlt(t.ctx, target) {
		if e := target.FindPlt(rel.Addend); e != nil {
			e.Alloc.Unref()
		}
	}
	rel.SetType(uint32(ppc64.R_PPC64_NONE))
}

// call handles the branch to __tls_get_addr. With a marker the call
// instruction is rewritten by the marker and only the branch relocation
// goes. Markerless calls are rewritten here, from the paired setup.
func (t *tlsOpt) call(rel *Rela) {
	off := rel.Offset
	c, ok := t.calls[off]
	if !ok {
		return
	}
	move := tlsDecide(t.ctx, t.o, c.sym, c.addend, c.kind)
	if move == tlsKeep {
		return
	}
	t.dropCall(rel)
	if c.marked {
		return
	}

	switch {
	case move == tlsToIE:
		t.isec.SetInsn(off, ppc64.TLSCallToIE)
	case c.kind == ppc64.TLSLD:
		t.isec.SetInsn(off, ppc64.TLSCallLDToLE)
	default:
		t.isec.SetInsn(off, ppc64.TLSCallGDToLE)
		rel.SetSym(c.symIdx)
		rel.Addend = c.addend
		rel.Offset = off + ppc64.DOffset(t.o.Order)
		rel.SetType(uint32(ppc64.R_PPC64_TPREL16_LO))
	}
}
