package linker

import "debug/elf"

// strtabBuilder is a string table that stores each name once.
type strtabBuilder struct {
	data    []byte
	offsets map[string]uint32
}

func newStrtabBuilder() *strtabBuilder {
	return &strtabBuilder{data: []byte{0}, offsets: map[string]uint32{"": 0}}
}

func (s *strtabBuilder) Put(name string) uint32 {
	if off, ok := s.offsets[name]; ok {
		return off
	}
	off := uint32(len(s.data))
	s.offsets[name] = off
	s.data = append(s.data, name...)
	s.data = append(s.data, 0)
	return off
}

func (s *strtabBuilder) Size() uint64 {
	return uint64(len(s.data))
}

// ShstrtabSection names the output sections. It is rebuilt after every
// index assignment.
type ShstrtabSection struct {
	Chunk
	strs *strtabBuilder
}

func NewShstrtabSection() *ShstrtabSection {
	s := &ShstrtabSection{Chunk: NewChunk()}
	s.Name = ".shstrtab"
	s.Shdr.Type = uint32(elf.SHT_STRTAB)
	return s
}

func (s *ShstrtabSection) UpdateShdr(ctx *Context) {
	s.strs = newStrtabBuilder()
	for _, chunk := range ctx.Chunks {
		if chunk.GetShndx() > 0 {
			chunk.GetShdr().Name = s.strs.Put(chunk.GetName())
		}
	}
	s.Shdr.Size = s.strs.Size()
}

func (s *ShstrtabSection) CopyBuf(ctx *Context) {
	copy(ctx.Buf[s.Shdr.Offset:], s.strs.data)
}

// StrtabSection holds the names of .symtab, collected by SymtabSection.
type StrtabSection struct {
	Chunk
}

func NewStrtabSection() *StrtabSection {
	s := &StrtabSection{Chunk: NewChunk()}
	s.Name = ".strtab"
	s.Shdr.Type = uint32(elf.SHT_STRTAB)
	return s
}

func (s *StrtabSection) UpdateShdr(ctx *Context) {
	s.Shdr.Size = ctx.Symtab.strs.Size()
}

func (s *StrtabSection) CopyBuf(ctx *Context) {
	copy(ctx.Buf[s.Shdr.Offset:], ctx.Symtab.strs.data)
}
