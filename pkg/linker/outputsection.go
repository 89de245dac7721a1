package linker

import "debug/elf"

// OutputSection collects the input sections that share an output name,
// type and flags. Linker generated sections are members like any other.
// @Idx: position in ctx.OutputSections
type OutputSection struct {
	Chunk
	Members []*InputSection
	Idx     uint32
}

func NewOutputSection(
	name string, typ uint32, flags uint64, idx uint32) *OutputSection {
	o := &OutputSection{Chunk: NewChunk()}
	o.Name = name
	o.Shdr.Type = typ
	o.Shdr.Flags = flags
	o.Idx = idx
	return o
}

// outputShdrUpdater is implemented by linker sections that fill in
// sh_link, sh_info or sh_entsize of their output section.
type outputShdrUpdater interface {
	UpdateOutputShdr(ctx *Context, shdr *Shdr)
}

func (o *OutputSection) UpdateShdr(ctx *Context) {
	for _, isec := range o.Members {
		if u, ok := isec.Synth.(outputShdrUpdater); ok {
			u.UpdateOutputShdr(ctx, &o.Shdr)
		}
	}
}

// CopyBuf writes and relocates the object file members. Linker generated
// members are written later by CopySynthetic because their contents
// depend on what relocation produced.
func (o *OutputSection) CopyBuf(ctx *Context) {
	if o.Shdr.Type == uint32(elf.SHT_NOBITS) {
		return
	}

	base := ctx.Buf[o.Shdr.Offset:]
	for _, isec := range o.Members {
		if isec.Synth == nil {
			isec.WriteTo(ctx, base[isec.Offset:])
		}
	}
}

func (o *OutputSection) CopySynthetic(ctx *Context, late bool) {
	if o.Shdr.Type == uint32(elf.SHT_NOBITS) {
		return
	}

	base := ctx.Buf[o.Shdr.Offset:]
	for _, isec := range o.Members {
		if isec.Synth == nil {
			continue
		}
		if _, ok := isec.Synth.(lateSynthetic); ok != late {
			continue
		}
		isec.WriteTo(ctx, base[isec.Offset:isec.Offset+isec.ShSize])
	}
}

// ContainsAddr reports whether addr falls inside the section.
func (o *OutputSection) ContainsAddr(addr uint64) bool {
	return addr >= o.Shdr.Addr && addr < o.Shdr.Addr+o.Shdr.Size
}

func GetOutputSection(
	ctx *Context, name string, typ, flags uint64) *OutputSection {
	name = GetOutputName(name, flags)
	flags = flags &^ uint64(elf.SHF_GROUP) &^
		uint64(elf.SHF_COMPRESSED) &^ uint64(elf.SHF_LINK_ORDER)

	find := func() *OutputSection {
		for _, osec := range ctx.OutputSections {
			if name == osec.Name && typ == uint64(osec.Shdr.Type) &&
				flags == osec.Shdr.Flags {
				return osec
			}
		}
		return nil
	}

	if osec := find(); osec != nil {
		return osec
	}

	osec := NewOutputSection(name, uint32(typ), flags,
		uint32(len(ctx.OutputSections)))
	ctx.OutputSections = append(ctx.OutputSections, osec)
	return osec
}
