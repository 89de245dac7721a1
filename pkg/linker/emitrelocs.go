package linker

import (
	"debug/elf"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
	"github.com/unicornx/ppc64ld/pkg/utils"
)

// EmitRelocsSection is the .rela<name> section --emit-relocs keeps for
// one allocated output section. Relocations are rewritten to output
// addresses; locals are expressed through output section symbols.
type EmitRelocsSection struct {
	Chunk
	Osec *OutputSection
}

func NewEmitRelocsSection(osec *OutputSection) *EmitRelocsSection {
	r := &EmitRelocsSection{Chunk: NewChunk(), Osec: osec}
	r.Name = ".rela" + osec.Name
	r.Shdr.Type = uint32(elf.SHT_RELA)
	r.Shdr.Flags = uint64(elf.SHF_INFO_LINK)
	r.Shdr.EntSize = uint64(RelaSize)
	r.Shdr.AddrAlign = 8
	return r
}

// CreateEmitRelocsSections adds a relocation section for every allocated
// output section whose members carry relocations.
func CreateEmitRelocsSections(ctx *Context) {
	if !ctx.Args.EmitRelocs {
		return
	}
	for _, osec := range ctx.OutputSections {
		if osec.Shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		has := false
		for _, isec := range osec.Members {
			if isec == ctx.BranchLT.Sec || (isec.Synth == nil && len(isec.GetRels()) > 0) {
				has = true
				break
			}
		}
		if !has {
			continue
		}
		r := NewEmitRelocsSection(osec)
		ctx.RelaSecs = append(ctx.RelaSecs, r)
		ctx.Chunks = append(ctx.Chunks, r)
	}
}

func (r *EmitRelocsSection) count(ctx *Context) int {
	n := 0
	for _, isec := range r.Osec.Members {
		switch {
		case isec == ctx.BranchLT.Sec:
			n += len(ctx.BranchLT.Stubs)
		case isec.Synth == nil:
			n += len(isec.GetRels())
		}
	}
	return n
}

func (r *EmitRelocsSection) UpdateShdr(ctx *Context) {
	r.Shdr.Size = uint64(r.count(ctx) * RelaSize)
	r.Shdr.Link = uint32(ctx.Symtab.Shndx)
	r.Shdr.Info = uint32(r.Osec.Shndx)
}

// chunkAt finds the allocated chunk containing addr.
func chunkAt(ctx *Context, addr uint64) Chunker {
	for _, c := range ctx.Chunks {
		shdr := c.GetShdr()
		if !isAllocChunk(c) || c.GetShndx() == 0 || isTbss(c) {
			continue
		}
		if addr >= shdr.Addr && addr < shdr.Addr+max(shdr.Size, 1) {
			return c
		}
	}
	return nil
}

// sectionRef expresses addr through the section symbol of its chunk.
func sectionRef(ctx *Context, chunk Chunker, addr uint64) (uint32, int64) {
	if chunk == nil {
		chunk = chunkAt(ctx, addr)
	}
	if chunk == nil {
		return 0, int64(addr)
	}
	idx, ok := ctx.Symtab.secIndex[chunk]
	if !ok {
		return 0, int64(addr)
	}
	return idx, int64(addr - chunk.GetShdr().Addr)
}

func symChunk(sym *Symbol) Chunker {
	switch {
	case sym.SectionFragment != nil:
		return sym.SectionFragment.OutputSection
	case sym.InputSection != nil && sym.InputSection.OutputSection != nil:
		return sym.InputSection.OutputSection
	}
	return nil
}

func (r *EmitRelocsSection) CopyBuf(ctx *Context) {
	out := make([]Rela, 0, r.count(ctx))
	for _, isec := range r.Osec.Members {
		if isec == ctx.BranchLT.Sec {
			for i, s := range ctx.BranchLT.Stubs {
				idx, addend := sectionRef(ctx, nil, s.Target)
				out = append(out, Rela{
					Offset: isec.GetAddr() + uint64(i)*8,
					Info:   RelaInfo(idx, uint32(ppc64.R_PPC64_ADDR64)),
					Addend: addend,
				})
			}
			continue
		}
		if isec.Synth != nil {
			continue
		}
		for i := range isec.GetRels() {
			out = append(out, emittedRela(ctx, isec, &isec.Rels[i]))
		}
	}

	base := ctx.Buf[r.Shdr.Offset:]
	for i := range out {
		utils.WriteWith(base[i*RelaSize:], ctx.Order, out[i])
	}
}

func emittedRela(ctx *Context, isec *InputSection, rel *Rela) Rela {
	o := isec.File
	typ := rel.Type()
	out := Rela{Offset: isec.GetAddr() + rel.Offset}
	if ppc64.RelocType(typ) == ppc64.R_PPC64_NONE || int(rel.Sym()) >= len(o.Symbols) {
		out.Info = RelaInfo(0, uint32(ppc64.R_PPC64_NONE))
		return out
	}
	sym := o.Symbols[rel.Sym()]

	if ppc64.IsBranch(ppc64.RelocType(typ)) {
		if ci, ok := ctx.CallSites[CallSite{Sec: isec, Off: rel.Offset}]; ok {
			switch {
			case ci.Nop:
				out.Info = RelaInfo(0, uint32(ppc64.R_PPC64_NONE))
				return out
			case ci.Stub != nil:
				idx, addend := sectionRef(ctx, ci.Stub.Group.Osec, ci.Stub.Addr())
				out.Info = RelaInfo(idx, typ)
				out.Addend = addend
				return out
			}
		}
	}

	if idx, ok := ctx.Symtab.symIndex[sym]; ok && !sym.IsLocal {
		out.Info = RelaInfo(idx, typ)
		out.Addend = rel.Addend
		return out
	}
	sa := relocSA(ctx, o, rel, sym)
	chunk := symChunk(sym)
	if _, split := o.PieceAddr(rel.Sym(), rel.Addend); split {
		chunk = nil
	}
	idx, addend := sectionRef(ctx, chunk, sa)
	out.Info = RelaInfo(idx, typ)
	out.Addend = addend
	return out
}
