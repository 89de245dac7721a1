package linker

import (
	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

// SizeDynamicSections fixes the GOT, the PLTs and the dynamic sections
// once the optimizers have dropped what they made unnecessary. After it
// only the stubs may change the layout.
func SizeDynamicSections(ctx *Context) {
	for _, o := range ctx.Objects() {
		if o.Got != nil {
			o.Got.AssignOffsets()
		}
	}
	placePltEntries(ctx)

	if ctx.Args.IsDynamic(ctx) {
		for _, sym := range ctx.Syms {
			if sym.Flags&NeedsDynsym != 0 {
				ctx.Dynsym.Add(ctx, sym)
			}
		}
		ctx.Dynamic.AddNeeded(ctx)
	}

	ctx.Relr.Sites = ctx.Relr.Sites[:0]
	ctx.RelaDyn.Reserved = 0
	ctx.RelaPlt.Reserved = 0
	forEachDynReloc(ctx, func(isec *InputSection, d dynReloc) {
		if d.Sym != nil {
			ctx.Dynsym.Add(ctx, d.Sym)
		}
		switch {
		case d.Relr:
			ctx.Relr.Add(isec, d.Off)
		case d.Type == ppc64.R_PPC64_IRELATIVE:
			ctx.RelaPlt.Reserved++
		default:
			ctx.RelaDyn.Reserved++
		}
		if !isec.IsWritable() && !ctx.TextRel {
			ctx.TextRel = true
			ctx.Warnf("%s: dynamic relocation in read-only section; creating DT_TEXTREL",
				isec.Location(d.Off))
		}
	})
	ctx.RelaDyn.Reserved += len(ctx.Dynbss.Syms)
}

// placePltEntries moves every referenced PLT entry into its table and
// reclaims the others. Local ifuncs go through .iplt, imported and
// preemptible functions through .plt, and local functions reached by
// inline PLT sequences through the local table.
func placePltEntries(ctx *Context) {
	place := func(sym *Symbol) {
		for _, e := range sym.Plt {
			if !e.Alloc.IsPending() {
				continue
			}
			switch {
			case e.Alloc.Refcount() == 0:
				e.Alloc.Reclaim()
			case sym.IsIfunc() && sym.Dso == nil && !sym.IsPreemptible(ctx):
				ctx.Iplt.Add(ctx, e)
			case sym.Dso != nil || sym.IsPreemptible(ctx):
				ctx.Plt.Add(ctx, e)
				sym.Flags |= NeedsDynsym
			case sym.TLSMask&PltKeep != 0:
				ctx.PltLocal.Add(ctx, e)
			default:
				e.Alloc.Reclaim()
			}
		}
	}
	for _, sym := range ctx.Syms {
		place(sym)
	}
	for _, o := range ctx.Objs {
		for i := range o.LocalSymbols {
			place(&o.LocalSymbols[i])
		}
	}
}

// forEachDynReloc visits every dynamic relocation the output will carry
// apart from .plt, .iplt, .branch_lt and copy relocations. The writers
// produce exactly this list, so sizing and writing agree.
func forEachDynReloc(ctx *Context, fn func(isec *InputSection, d dynReloc)) {
	for _, o := range ctx.Objects() {
		if o.Got == nil {
			continue
		}
		for _, e := range o.Got.LiveEntries() {
			for _, d := range gotDynRelocs(ctx, e) {
				d.Off += e.Alloc.Offset()
				fn(o.GotSec, d)
			}
		}
	}

	for _, o := range ctx.Objs {
		for _, isec := range o.Sections {
			if isec == nil || !isec.IsAlive || !isec.IsAlloc() || ctx.Aux(isec).DynRelocs == 0 {
				continue
			}
			rels := isec.GetRels()
			for i := range rels {
				rel := &rels[i]
				typ := ppc64.RelocType(rel.Type())
				if typ == ppc64.R_PPC64_NONE {
					continue
				}
				h := ppc64.MustLookup(typ)
				switch h.Class {
				case ppc64.ClassAbs, ppc64.ClassRel, ppc64.ClassTPRel, ppc64.ClassDTPMod,
					ppc64.ClassDTPRel, ppc64.ClassTOCBase:
				default:
					continue
				}
				sym := o.Symbols[rel.Sym()]
				if d, need, msg := dataDynReloc(ctx, isec, rel, sym, h, 0); need && msg == "" {
					fn(isec, d)
				}
			}
		}
	}

	if ctx.Args.IsPIC() {
		for _, e := range ctx.PltLocal.Entries {
			if e.Sym.IsAbsolute() {
				continue
			}
			fn(ctx.PltLocal.Sec, dynReloc{Off: e.Alloc.Offset(), Type: ppc64.R_PPC64_RELATIVE,
				Relr: ctx.Args.PackRelativeRelocs})
		}
	}
}
