package linker

import (
	"debug/elf"
	"fmt"
	"sort"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
	"github.com/unicornx/ppc64ld/pkg/utils"
)

// dynReloc is a dynamic relocation before it is turned into an Elf64_Rela.
// Off is relative to the section holding the patched field.
type dynReloc struct {
	Off    uint64
	Type   ppc64.RelocType
	Sym    *Symbol
	Addend int64
	Relr   bool // packed into .relr.dyn instead
	Plt    bool // belongs in .rela.plt
}

// emitDynReloc writes the placeholder for d and queues the record. The
// placeholder is zero for GLOB_DAT and JMP_SLOT and the addend otherwise,
// which for RELATIVE is the link-time value.
func emitDynReloc(ctx *Context, isec *InputSection, buf []byte, d dynReloc) {
	if h := ppc64.MustLookup(d.Type); h.Size == ppc64.Size64 || d.Type == ppc64.R_PPC64_JMP_SLOT {
		v := uint64(d.Addend)
		if d.Type == ppc64.R_PPC64_GLOB_DAT || d.Type == ppc64.R_PPC64_JMP_SLOT {
			v = 0
		}
		ctx.Order.PutUint64(buf[d.Off:], v)
	}
	if d.Relr {
		return
	}

	addr := isec.GetAddr() + d.Off
	if d.Plt || d.Type == ppc64.R_PPC64_IRELATIVE {
		ctx.RelaPlt.Add(ctx, addr, d.Type, d.Sym, d.Addend)
	} else {
		ctx.RelaDyn.Add(ctx, addr, d.Type, d.Sym, d.Addend)
	}
}

// gotDynRelocs lists what the loader has to fill in for a GOT entry.
func gotDynRelocs(ctx *Context, e *GotEntry) []dynReloc {
	sym := e.Sym
	switch e.TLS {
	case ppc64.TLSNone:
		switch {
		case sym.IsPreemptible(ctx):
			return []dynReloc{{Type: ppc64.R_PPC64_GLOB_DAT, Sym: sym, Addend: e.Addend}}
		case sym.IsIfunc() && !sym.IsImported():
			return []dynReloc{{Type: ppc64.R_PPC64_IRELATIVE,
				Addend: int64(sym.GetAddr()) + e.Addend}}
		case ctx.Args.IsPIC() && !sym.IsAbsolute():
			return []dynReloc{{Type: ppc64.R_PPC64_RELATIVE,
				Addend: int64(symbolAddr(ctx, sym)) + e.Addend,
				Relr:   ctx.Args.PackRelativeRelocs}}
		}
	case ppc64.TLSGD:
		if sym.IsPreemptible(ctx) {
			return []dynReloc{
				{Type: ppc64.R_PPC64_DTPMOD64, Sym: sym},
				{Off: 8, Type: ppc64.R_PPC64_DTPREL64, Sym: sym, Addend: e.Addend},
			}
		}
		if ctx.Args.Shared {
			return []dynReloc{{Type: ppc64.R_PPC64_DTPMOD64}}
		}
	case ppc64.TLSLD:
		if ctx.Args.Shared {
			return []dynReloc{{Type: ppc64.R_PPC64_DTPMOD64}}
		}
	case ppc64.TLSTPRel:
		if sym.IsPreemptible(ctx) {
			return []dynReloc{{Type: ppc64.R_PPC64_TPREL64, Sym: sym, Addend: e.Addend}}
		}
		if ctx.Args.Shared {
			return []dynReloc{{Type: ppc64.R_PPC64_TPREL64,
				Addend: int64(sym.GetAddr()-ctx.TLSBegin) + e.Addend}}
		}
	case ppc64.TLSDTPRel:
		if sym.IsPreemptible(ctx) {
			return []dynReloc{{Type: ppc64.R_PPC64_DTPREL64, Sym: sym, Addend: e.Addend}}
		}
	}
	return nil
}

// dataDynReloc decides whether the relocation rel of an allocated section
// needs a dynamic relocation. sa is the link-time S+A of the relocation.
// It reports an error message when the loader cannot represent what the
// relocation asks for.
func dataDynReloc(ctx *Context, isec *InputSection, rel *Rela, sym *Symbol,
	h *ppc64.Howto, sa uint64) (d dynReloc, need bool, msg string) {
	d = dynReloc{Off: rel.Offset, Type: h.Type, Sym: sym, Addend: rel.Addend}
	pic := ctx.Args.IsPIC()
	preempt := sym.IsPreemptible(ctx)
	wordAligned := isec.P2Align >= 3 && rel.Offset%8 == 0

	switch h.Class {
	case ppc64.ClassAbs:
		switch {
		case preempt:
			if h.Dynamic && (h.Size == ppc64.Size64 || h.Size == ppc64.Size32) {
				return d, true, ""
			}
			return d, false, fmt.Sprintf("relocation %s against preemptible symbol %s; recompile with -fPIC",
				h.Name, sym)
		case sym.IsIfunc() && !sym.IsImported():
			if h.Type != ppc64.R_PPC64_ADDR64 {
				return d, false, fmt.Sprintf("relocation %s against ifunc symbol %s", h.Name, sym)
			}
			d.Type = ppc64.R_PPC64_IRELATIVE
			d.Sym = nil
			d.Addend = int64(sa)
			return d, true, ""
		case pic && !sym.IsAbsolute():
			if h.Type == ppc64.R_PPC64_ADDR64 || h.Type == ppc64.R_PPC64_UADDR64 {
				d.Type = ppc64.R_PPC64_RELATIVE
				d.Sym = nil
				d.Addend = int64(sa)
				d.Relr = ctx.Args.PackRelativeRelocs && wordAligned
				return d, true, ""
			}
			if h.Type == ppc64.R_PPC64_ADDR64_LOCAL {
				return d, false, ""
			}
			return d, false, fmt.Sprintf("relocation %s against %s can not be used when making a PIC object; recompile with -fPIC",
				h.Name, sym)
		}
	case ppc64.ClassRel:
		if preempt && !sym.IsUndefWeak() {
			if h.Dynamic {
				return d, true, ""
			}
			return d, false, fmt.Sprintf("relocation %s against preemptible symbol %s; recompile with -fPIC",
				h.Name, sym)
		}
	case ppc64.ClassTPRel:
		if !ctx.Args.Shared && !preempt {
			return d, false, ""
		}
		if h.Type != ppc64.R_PPC64_TPREL64 {
			return d, false, fmt.Sprintf("relocation %s against %s can not be used when making a shared object; recompile with -fPIC",
				h.Name, sym)
		}
		if !preempt {
			d.Sym = nil
			d.Addend = int64(sa - ctx.TLSBegin)
		}
		return d, true, ""
	case ppc64.ClassDTPMod:
		if preempt {
			return d, true, ""
		}
		if ctx.Args.Shared {
			d.Sym = nil
			d.Addend = 0
			return d, true, ""
		}
	case ppc64.ClassDTPRel:
		if preempt && h.Type == ppc64.R_PPC64_DTPREL64 {
			return d, true, ""
		}
	case ppc64.ClassTOCBase:
		if pic && h.Size == ppc64.Size64 {
			d.Type = ppc64.R_PPC64_RELATIVE
			d.Sym = nil
			d.Addend = int64(ctx.TOCBase(isec)) + rel.Addend
			d.Relr = ctx.Args.PackRelativeRelocs && wordAligned
			return d, true, ""
		}
	}
	return d, false, ""
}

// RelaDynSection is .rela.dyn. The number of relocations is fixed while
// sizing, except for the .branch_lt slots which follow the stubs; writing
// a different number is an internal error.
type RelaDynSection struct {
	Sec      *InputSection
	Reserved int
	Relocs   []Rela
	relative int
}

func NewRelaDynSection(ctx *Context) *RelaDynSection {
	r := &RelaDynSection{}
	r.Sec = NewSyntheticSection(ctx, ctx.Internal, ".rela.dyn", uint32(elf.SHT_RELA),
		uint64(elf.SHF_ALLOC), 3, r)
	ctx.Internal.Sections = append(ctx.Internal.Sections, r.Sec)
	return r
}

func (r *RelaDynSection) count(ctx *Context) int {
	return r.Reserved + ctx.BranchLT.NeedsRela(ctx)
}

func (r *RelaDynSection) Size(ctx *Context) uint64 {
	return uint64(r.count(ctx) * RelaSize)
}

func (r *RelaDynSection) Add(ctx *Context, addr uint64, typ ppc64.RelocType, sym *Symbol, addend int64) {
	idx := uint32(0)
	if sym != nil {
		utils.Assert(sym.DynsymIdx > 0)
		idx = uint32(sym.DynsymIdx)
	}
	if typ == ppc64.R_PPC64_RELATIVE {
		r.relative++
	}
	r.Relocs = append(r.Relocs, Rela{Offset: addr, Info: RelaInfo(idx, uint32(typ)), Addend: addend})
}

func (r *RelaDynSection) writeLate() {}

// WriteTo puts RELATIVE relocations first, sorted by address, which is
// the order ld.so processes fastest.
func (r *RelaDynSection) WriteTo(ctx *Context, buf []byte) {
	if len(r.Relocs) != r.count(ctx) {
		ctx.Fatalf(".rela.dyn: %d dynamic relocations written, %d reserved",
			len(r.Relocs), r.count(ctx))
	}
	sort.SliceStable(r.Relocs, func(i, j int) bool {
		ri := r.Relocs[i].Type() == uint32(ppc64.R_PPC64_RELATIVE)
		rj := r.Relocs[j].Type() == uint32(ppc64.R_PPC64_RELATIVE)
		if ri != rj {
			return ri
		}
		return ri && r.Relocs[i].Offset < r.Relocs[j].Offset
	})
	for i := range r.Relocs {
		utils.WriteWith(buf[i*RelaSize:], ctx.Order, r.Relocs[i])
	}
}

func (r *RelaDynSection) UpdateOutputShdr(ctx *Context, shdr *Shdr) {
	shdr.EntSize = uint64(RelaSize)
	shdr.Link = uint32(ctx.Dynsym.Sec.OutputSection.Shndx)
}

// RelaPltSection is .rela.plt: JMP_SLOT for .plt and every IRELATIVE,
// so that static executables find them between __rela_iplt_start and
// __rela_iplt_end. Reserved counts the IRELATIVE outside .iplt.
type RelaPltSection struct {
	Sec      *InputSection
	Reserved int
	Relocs   []Rela
}

func NewRelaPltSection(ctx *Context) *RelaPltSection {
	r := &RelaPltSection{}
	r.Sec = NewSyntheticSection(ctx, ctx.Internal, ".rela.plt", uint32(elf.SHT_RELA),
		uint64(elf.SHF_ALLOC)|uint64(elf.SHF_INFO_LINK), 3, r)
	ctx.Internal.Sections = append(ctx.Internal.Sections, r.Sec)
	return r
}

func (r *RelaPltSection) Size(ctx *Context) uint64 {
	return uint64((ctx.Plt.NumEntries() + ctx.Iplt.NumEntries() + r.Reserved) * RelaSize)
}

func (r *RelaPltSection) Add(ctx *Context, addr uint64, typ ppc64.RelocType, sym *Symbol, addend int64) {
	idx := uint32(0)
	if sym != nil {
		utils.Assert(sym.DynsymIdx > 0)
		idx = uint32(sym.DynsymIdx)
	}
	r.Relocs = append(r.Relocs, Rela{Offset: addr, Info: RelaInfo(idx, uint32(typ)), Addend: addend})
}

func (r *RelaPltSection) writeLate() {}

func (r *RelaPltSection) WriteTo(ctx *Context, buf []byte) {
	if uint64(len(r.Relocs)*RelaSize) != r.Sec.ShSize {
		ctx.Fatalf(".rela.plt: %d relocations written, room for %d",
			len(r.Relocs), r.Sec.ShSize/uint64(RelaSize))
	}
	for i := range r.Relocs {
		utils.WriteWith(buf[i*RelaSize:], ctx.Order, r.Relocs[i])
	}
}

func (r *RelaPltSection) UpdateOutputShdr(ctx *Context, shdr *Shdr) {
	shdr.EntSize = uint64(RelaSize)
	shdr.Link = uint32(ctx.Dynsym.Sec.OutputSection.Shndx)
	shdr.Info = uint32(ctx.Plt.Sec.OutputSection.Shndx)
}
