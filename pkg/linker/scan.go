package linker

import (
	"debug/elf"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

// ScanRelocations walks the relocations of every live allocated section
// and creates the GOT and PLT entries they ask for.
func ScanRelocations(ctx *Context) {
	for _, o := range ctx.Objs {
		BeforeCheckRelocs(ctx, o)
	}
	for _, o := range ctx.Objs {
		for _, isec := range o.Sections {
			if isec == nil || !isec.IsAlive || !isec.IsAlloc() {
				continue
			}
			CheckRelocs(ctx, isec)
		}
	}
}

// BeforeCheckRelocs checks the object's ABI against the output and
// collects its .opd entries.
func BeforeCheckRelocs(ctx *Context, o *ObjectFile) {
	if o.ABI != 0 && o.ABI != ctx.ABI {
		ctx.Errorf("%s: ABI version %d is not compatible with ABI version %d output",
			o, o.ABI, ctx.ABI)
	}
	if ctx.ABI == 1 && o.Opd == nil {
		ReadOpd(ctx, o)
	}
}

// needsPlt reports whether a call to sym must go through a PLT entry.
func needsPlt(ctx *Context, sym *Symbol) bool {
	if sym.IsUndefWeak() && !sym.IsPreemptible(ctx) {
		return false
	}
	return sym.Dso != nil || sym.IsIfunc() || sym.IsPreemptible(ctx)
}

// CheckRelocs is the per section scan. Scanning a section a second time
// does nothing.
func CheckRelocs(ctx *Context, isec *InputSection) {
	aux := ctx.Aux(isec)
	if aux.Scanned {
		return
	}
	aux.Scanned = true

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
			ctx.Fatalf("%s: unsupported relocation %s", isec.Location(rel.Offset), typ)
		}
		if int(rel.Sym()) >= len(o.Symbols) {
			ctx.Fatalf("%s: bad symbol index %d in %s", isec.Location(rel.Offset), rel.Sym(), h.Name)
		}
		sym := o.Symbols[rel.Sym()]

		switch h.Class {
		case ppc64.ClassBranch:
			if ppc64.IsBranch14(typ) {
				aux.Has14Branch = true
			}
			if sym == ctx.TLSGetAddr && sym != nil {
				aux.CallsTLSGetAddr = true
				pairTLSCall(ctx, isec, rels, i)
			}
			target, _ := callTarget(ctx, sym)
			if needsPlt(ctx, target) {
				target.GetPlt(rel.Addend).Alloc.Ref()
				if target.IsIfunc() {
					target.TLSMask |= PltIfunc
				}
			}

		case ppc64.ClassPLT:
			e := sym.GetPlt(rel.Addend)
			e.Alloc.Ref()
			sym.TLSMask |= PltKeep
			if sym.IsIfunc() {
				sym.TLSMask |= PltIfunc
			}

		case ppc64.ClassGOT:
			if !h.PCRel {
				aux.HasTOCReloc = true
			} else if typ == ppc64.R_PPC64_GOT_PCREL34 {
				aux.HasOptRel = true
			}
			switch h.TLS {
			case ppc64.TLSLD:
				if o.TLSLDGot == nil {
					o.TLSLDGot = &GotEntry{Owner: o, TLS: ppc64.TLSLD}
					o.AddGotEntry(ctx, o.TLSLDGot)
				}
				o.TLSLDGot.Alloc.Ref()
			default:
				sym.GetGot(ctx, o, rel.Addend, h.TLS).Alloc.Ref()
			}
			sym.TLSMask |= tlsBit(h.TLS)

		case ppc64.ClassTOC:
			aux.HasTOCReloc = true
			if typ == ppc64.R_PPC64_TOC16_LO_DS {
				aux.HasOptRel = true
			}

		case ppc64.ClassTOCBase:
			aux.HasTOCReloc = true
			aux.DynRelocs++

		case ppc64.ClassTLSMarker:
			if typ == ppc64.R_PPC64_TLS {
				sym.TLSMask |= TlsTLS
			} else {
				sym.TLSMask |= TlsMark
			}

		case ppc64.ClassTOCSave:
			aux.MakesTOCSave = true

		case ppc64.ClassPCRelOpt:
			aux.HasOptRel = true

		case ppc64.ClassAbs, ppc64.ClassRel:
			aux.DynRelocs++
			if sym.Dso != nil && !ctx.Args.IsPIC() {
				sym.Flags |= NeedsAbsAddr
			}
			if sym.IsIfunc() && !sym.IsPreemptible(ctx) && sym.Dso == nil {
				sym.Flags |= NeedsAbsAddr
			}

		case ppc64.ClassTPRel:
			aux.DynRelocs++
			sym.TLSMask |= TlsTPRel

		case ppc64.ClassDTPRel:
			aux.DynRelocs++
			sym.TLSMask |= TlsDTPRel

		case ppc64.ClassDTPMod:
			aux.DynRelocs++

		case ppc64.ClassDynamic:
			ctx.ErrorfAt(isec, rel.Offset, "unexpected dynamic relocation %s in a relocatable input", h.Name)
		}
	}
}

func tlsBit(k ppc64.TLSKind) uint16 {
	switch k {
	case ppc64.TLSGD:
		return TlsGD
	case ppc64.TLSLD:
		return TlsLD
	case ppc64.TLSTPRel:
		return TlsTPRel
	case ppc64.TLSDTPRel:
		return TlsDTPRel
	}
	return 0
}

// isTLSSetup reports whether rel sets up the argument of a GD or LD
// __tls_get_addr call: the low half, or the whole 16-bit form.
func isTLSSetup(rel *Rela) bool {
	h, ok := ppc64.Lookup(ppc64.RelocType(rel.Type()))
	if !ok || h.Class != ppc64.ClassGOT || h.PCRel {
		return false
	}
	if h.TLS != ppc64.TLSGD && h.TLS != ppc64.TLSLD {
		return false
	}
	return h.Size == ppc64.Size16 && h.RightShift == 0
}

// pairTLSCall matches the __tls_get_addr call at rels[i] with its
// argument setup. Calls carrying a TLSGD/TLSLD marker need no pairing.
// A markerless call pairs only with a setup relocation immediately before
// it; anything else leaves the object's TLS sequences alone.
func pairTLSCall(ctx *Context, isec *InputSection, rels []Rela, i int) {
	off := rels[i].Offset
	j := i - 1
	for ; j >= 0 && rels[j].Offset == off; j-- {
		t := ppc64.RelocType(rels[j].Type())
		if t == ppc64.R_PPC64_TLSGD || t == ppc64.R_PPC64_TLSLD {
			return
		}
	}
	if j >= 0 && rels[j].Offset < off && isTLSSetup(&rels[j]) {
		ctx.TLSCallSetup[CallSite{Sec: isec, Off: off}] = j
		return
	}
	if !isec.File.TLSOptDisabled {
		ctx.Logf("%s: __tls_get_addr call without argument setup, TLS optimization disabled for %s",
			isec.Location(off), isec.File)
	}
	isec.File.TLSOptDisabled = true
}

// AdjustDynamicSymbols decides how every global reaches the dynamic
// loader: dynamic symbol table entries, copy relocations and ELFv2
// global entry stubs for imported symbols whose address is taken.
func AdjustDynamicSymbols(ctx *Context) {
	dynamic := ctx.Args.IsDynamic(ctx)
	for _, sym := range ctx.Syms {
		if sym.File == nil && sym.Dso == nil && !sym.StrongRef && !dynamic {
			continue
		}

		if sym.Dso != nil {
			sym.Flags |= NeedsDynsym
			if sym.Flags&NeedsAbsAddr != 0 && !ctx.Args.Shared {
				adjustImported(ctx, sym)
			}
			continue
		}

		if !dynamic || sym.IsLocal {
			continue
		}
		if sym.Visibility() != elf.STV_DEFAULT && sym.Visibility() != elf.STV_PROTECTED {
			continue
		}
		switch {
		case sym.IsUndef() && sym.IsPreemptible(ctx):
			sym.Flags |= NeedsDynsym
		case !sym.IsUndef() && (ctx.Args.Shared || ctx.Args.ExportDynamic):
			if sym.InputSection == nil || sym.InputSection.IsAlive {
				sym.Flags |= NeedsDynsym
			}
		}
	}

	if ctx.TLSGetAddrOpt != nil {
		ctx.TLSGetAddrOpt.Flags |= NeedsDynsym
	}
}

// adjustImported pins the address of an imported symbol referenced by
// absolute address from a non-PIC executable.
func adjustImported(ctx *Context, sym *Symbol) {
	if sym.IsFunc() {
		if ctx.ABI == 2 {
			sym.Flags |= NeedsGlobalEntry
			sym.GetPlt(0).Alloc.Ref()
			ctx.GlobalEntry.Add(sym)
		}
		return
	}
	if ctx.Args.NoCopyReloc {
		ctx.Warnf("%s: no copy relocation with -z nocopyreloc; the text will need dynamic relocations", sym)
		ctx.TextRel = true
		return
	}
	if ctx.ABI == 1 && sym.Pairing.Kind == PairDescriptor {
		ctx.Warnf("copy relocation against function descriptor %s; use -fPIC or -z nocopyreloc", sym)
	}
	sym.Flags |= NeedsCopyReloc
	ctx.Dynbss.Add(sym)
}
