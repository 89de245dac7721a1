package linker

import "debug/elf"

// Chunker is anything that occupies a range of the output file: headers,
// output sections, merged sections and the symbol tables.
type Chunker interface {
	GetName() string
	GetShdr() *Shdr
	GetShndx() int64
	SetShndx(idx int64)
	UpdateShdr(ctx *Context)
	CopyBuf(ctx *Context)
}

/*
 * Chunk is the common part of every Chunker.
 *
 * @Shndx: index in the output section header table, 0 for chunks without
 *         a section header
 */
type Chunk struct {
	Name  string
	Shdr  Shdr
	Shndx int64
}

func NewChunk() Chunk {
	return Chunk{Shdr: Shdr{AddrAlign: 1}}
}

func (c *Chunk) GetName() string {
	return c.Name
}

func (c *Chunk) GetShdr() *Shdr {
	return &c.Shdr
}

func (c *Chunk) GetShndx() int64 {
	return c.Shndx
}

func (c *Chunk) SetShndx(idx int64) {
	c.Shndx = idx
}

func (c *Chunk) UpdateShdr(ctx *Context) {}

func (c *Chunk) CopyBuf(ctx *Context) {}

func isAllocChunk(chunk Chunker) bool {
	return chunk.GetShdr().Flags&uint64(elf.SHF_ALLOC) != 0
}

// isHeaderChunk reports whether chunk has no section header of its own.
func isHeaderChunk(ctx *Context, chunk Chunker) bool {
	return chunk == Chunker(ctx.Ehdr) || chunk == Chunker(ctx.Phdr) ||
		chunk == Chunker(ctx.Shdr)
}
