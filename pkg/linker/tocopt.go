package linker

import (
	"debug/elf"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
	"github.com/unicornx/ppc64ld/pkg/utils"
)

// tocOptMargin keeps rewritten TOC-relative offsets clear of the ±2GB
// limit, since the TOC base and targets still move a little when stubs
// are inserted later.
const tocOptMargin = 16 << 20

// relocSA is S+A for rel, resolving references into split sections to
// their fragment.
func relocSA(ctx *Context, o *ObjectFile, rel *Rela, sym *Symbol) uint64 {
	if addr, ok := o.PieceAddr(rel.Sym(), rel.Addend); ok {
		return addr
	}
	return symbolAddr(ctx, sym) + uint64(rel.Addend)
}

// tocSlot is one doubleword of an object's .toc.
type tocSlot struct {
	rel  *Rela // the ADDR64 filling the slot, nil otherwise
	used bool
	// the slot can be replaced by direct addressing of its target
	direct bool
}

// tocRef is a TOC-relative instruction operand that reads a .toc slot.
type tocRef struct {
	sec  *InputSection
	rel  *Rela
	slot int
}

// OptimizeTOC replaces loads of addresses from .toc with direct
// TOC-relative address arithmetic where the target is near enough, then
// drops the .toc slots nothing reads any more. It also turns
// "pld rt,x@got@pcrel" into "paddi rt,0,x@pcrel,1" for local targets.
func OptimizeTOC(ctx *Context) {
	if ctx.Args.NoTOCOptimize {
		return
	}
	for _, o := range ctx.Objs {
		optimizeGotPCRel(ctx, o)
		if toc := o.TOCSection(); toc != nil && !ctx.Args.EmitRelocs {
			optimizeTOCSection(ctx, o, toc)
		}
	}
}

// localTarget reports whether references to sym can be resolved at link
// time to an address inside this output.
func localTarget(ctx *Context, sym *Symbol) bool {
	if sym == nil || sym.IsUndef() || sym.Dso != nil || sym.IsPreemptible(ctx) {
		return false
	}
	if sym.IsIfunc() || sym.IsTLS() || sym.Flags&(NeedsCopyReloc|NeedsGlobalEntry) != 0 {
		return false
	}
	if sym.InputSection != nil && !sym.InputSection.IsAlive {
		return false
	}
	if sym.IsAbsolute() && ctx.Args.IsPIC() {
		return false
	}
	return true
}

func optimizeGotPCRel(ctx *Context, o *ObjectFile) {
	for _, isec := range o.Sections {
		if isec == nil || !isec.IsAlive || !isec.IsAlloc() || !ctx.Aux(isec).HasOptRel {
			continue
		}
		rels := isec.GetRels()
		for i := range rels {
			rel := &rels[i]
			if ppc64.RelocType(rel.Type()) != ppc64.R_PPC64_GOT_PCREL34 {
				continue
			}
			sym := o.Symbols[rel.Sym()]
			if !localTarget(ctx, sym) {
				continue
			}
			dist := int64(relocSA(ctx, o, rel, sym)) - int64(isec.GetAddr()+rel.Offset)
			// half the pcrel34 range, addresses still move with stubs
			if !utils.FitsSigned(dist, 33) {
				continue
			}
			insn := ppc64.ReadPrefixed(isec.Contents[rel.Offset:], o.Order)
			paddi, ok := ppc64.PLDToPADDI(insn)
			if !ok {
				ctx.WarnfAt(isec, rel.Offset, "GOT_PCREL34 on an instruction that is not pld, not optimized")
				continue
			}
			ppc64.WritePrefixed(isec.Contents[rel.Offset:], o.Order, paddi)
			sym.FindGot(o, rel.Addend, ppc64.TLSNone).Alloc.Unref()
			rel.SetType(uint32(ppc64.R_PPC64_PCREL34))
		}
	}
}

// slotOf returns the .toc slot a relocation reads, or -1.
func slotOf(o *ObjectFile, toc *InputSection, rel *Rela) int {
	if int(rel.Sym()) >= len(o.Symbols) {
		return -1
	}
	sym := o.Symbols[rel.Sym()]
	if sym == nil || sym.InputSection != toc {
		return -1
	}
	off := int64(sym.Value) + rel.Addend
	if off < 0 || uint64(off) >= toc.ShSize {
		return -1
	}
	return int(off / 8)
}

func optimizeTOCSection(ctx *Context, o *ObjectFile, toc *InputSection) {
	if toc.ShSize%8 != 0 {
		return
	}
	slots := make([]tocSlot, toc.ShSize/8)
	tocRels := toc.GetRels()
	for i := range tocRels {
		rel := &tocRels[i]
		if rel.Offset%8 != 0 || int(rel.Offset/8) >= len(slots) {
			continue
		}
		if ppc64.RelocType(rel.Type()) == ppc64.R_PPC64_ADDR64 {
			slots[rel.Offset/8].rel = rel
		}
	}

	// Slots named by a non-section symbol are kept.
	for _, sym := range o.Symbols {
		if sym != nil && sym.InputSection == toc && sym.Type != uint8(elf.STT_SECTION) &&
			sym.Value < toc.ShSize && sym.File == o {
			slots[sym.Value/8].used = true
		}
	}

	// TOC groups are not assigned yet. Whatever group o lands in, its
	// base lies between the first group's base and o's own TOC data, so
	// a target has to be in reach of both.
	base := ctx.TOCBaseOfGroup(0)
	own := base
	if secs := tocMembers(o); len(secs) > 0 {
		own = firstByAddr(secs).GetAddr() + TOCBias
	}
	lim := int64(1)<<31 - tocOptMargin
	reach := func(dist int64) bool { return dist > -lim && dist < lim }
	for i := range slots {
		s := &slots[i]
		if s.rel == nil {
			continue
		}
		sym := o.Symbols[s.rel.Sym()]
		if !localTarget(ctx, sym) {
			continue
		}
		addr := int64(relocSA(ctx, o, s.rel, sym))
		s.direct = reach(addr-int64(base)) && reach(addr-int64(own))
	}

	var refs []tocRef
	for _, isec := range o.Sections {
		if isec == nil || !isec.IsAlive || isec == toc || !isec.IsAlloc() {
			continue
		}
		rels := isec.GetRels()
		for i := range rels {
			rel := &rels[i]
			slot := slotOf(o, toc, rel)
			if slot < 0 {
				continue
			}
			refs = append(refs, tocRef{sec: isec, rel: rel, slot: slot})
			switch ppc64.RelocType(rel.Type()) {
			case ppc64.R_PPC64_TOC16_HA:
			case ppc64.R_PPC64_TOC16_LO_DS:
				if _, ok := ppc64.LDToADDI(isec.Insn(rel.Offset &^ 3)); !ok {
					slots[slot].direct = false
				}
			default:
				slots[slot].direct = false
			}
		}
	}

	for _, r := range refs {
		s := &slots[r.slot]
		if !s.direct {
			s.used = true
			continue
		}
		target := s.rel
		r.rel.SetSym(target.Sym())
		r.rel.Addend = target.Addend
		if ppc64.RelocType(r.rel.Type()) == ppc64.R_PPC64_TOC16_LO_DS {
			off := r.rel.Offset &^ 3
			insn, _ := ppc64.LDToADDI(r.sec.Insn(off))
			r.sec.SetInsn(off, insn)
			r.rel.SetType(uint32(ppc64.R_PPC64_TOC16_LO))
		}
	}

	// A used slot keeps the slots its own relocations point at.
	for changed := true; changed; {
		changed = false
		for i := range tocRels {
			rel := &tocRels[i]
			from := int(rel.Offset / 8)
			if from >= len(slots) || !slots[from].used {
				continue
			}
			if to := slotOf(o, toc, rel); to >= 0 && !slots[to].used {
				slots[to].used = true
				changed = true
			}
		}
	}

	keep := make([]bool, len(slots))
	dropped := 0
	for i := range slots {
		keep[i] = slots[i].used
		if !keep[i] {
			dropped++
		}
	}
	if dropped == 0 {
		return
	}
	compactSection(ctx, toc, 8, keep)
	ctx.Logf("%s: removed %d of %d .toc entries", o, dropped, len(slots))
}
