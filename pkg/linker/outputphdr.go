package linker

import (
	"debug/elf"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

type OutputPhdr struct {
	Chunk
	Phdrs []Phdr
}

func NewOutputPhdr() *OutputPhdr {
	o := &OutputPhdr{Chunk: NewChunk()}
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputPhdr) UpdateShdr(ctx *Context) {
	o.Phdrs = createPhdr(ctx)
	o.Shdr.Size = uint64(len(o.Phdrs)) * uint64(PhdrSize)
}

func (o *OutputPhdr) CopyBuf(ctx *Context) {
	base := ctx.Buf[o.Shdr.Offset:]
	for i := range o.Phdrs {
		utils.WriteWith(base[i*PhdrSize:], ctx.Order, o.Phdrs[i])
	}
}

func isBss(chunk Chunker) bool {
	return chunk.GetShdr().Type == uint32(elf.SHT_NOBITS) && !isTbss(chunk)
}

func isTLSChunk(chunk Chunker) bool {
	return chunk.GetShdr().Flags&uint64(elf.SHF_TLS) != 0
}

// createPhdr builds the program headers from the chunks in output order.
// Empty chunks are ignored. The count only depends on which chunks are
// non-empty, so a header table sized before addresses are known stays
// valid.
func createPhdr(ctx *Context) []Phdr {
	vec := make([]Phdr, 0)
	define := func(typ, flags uint32, minAlign uint64, chunk Chunker) {
		vec = append(vec, Phdr{})
		phdr := &vec[len(vec)-1]
		phdr.Type = typ
		phdr.Flags = flags
		phdr.Align = max(minAlign, chunk.GetShdr().AddrAlign)
		phdr.Offset = chunk.GetShdr().Offset
		if chunk.GetShdr().Type == uint32(elf.SHT_NOBITS) {
			phdr.FileSize = 0
		} else {
			phdr.FileSize = chunk.GetShdr().Size
		}
		phdr.VAddr = chunk.GetShdr().Addr
		phdr.PAddr = chunk.GetShdr().Addr
		phdr.MemSize = chunk.GetShdr().Size
	}

	push := func(chunk Chunker) {
		phdr := &vec[len(vec)-1]
		phdr.Align = max(phdr.Align, chunk.GetShdr().AddrAlign)
		if chunk.GetShdr().Type != uint32(elf.SHT_NOBITS) {
			phdr.FileSize = chunk.GetShdr().Addr + chunk.GetShdr().Size - phdr.VAddr
		}
		phdr.MemSize = chunk.GetShdr().Addr + chunk.GetShdr().Size - phdr.VAddr
	}

	var chunks []Chunker
	for _, chunk := range ctx.Chunks {
		if isAllocChunk(chunk) && (chunk.GetShdr().Size > 0 || isHeaderChunk(ctx, chunk)) {
			chunks = append(chunks, chunk)
		}
	}

	if ctx.Args.IsDynamic(ctx) {
		define(uint32(elf.PT_PHDR), uint32(elf.PF_R), 8, ctx.Phdr)
	}

	for _, chunk := range chunks {
		if chunk.GetName() == ".interp" {
			define(uint32(elf.PT_INTERP), uint32(elf.PF_R), 1, chunk)
		}
	}

	for i := 0; i < len(chunks); i++ {
		if chunks[i].GetShdr().Type != uint32(elf.SHT_NOTE) {
			continue
		}
		flags := segmentFlags(chunks[i])
		define(uint32(elf.PT_NOTE), flags, chunks[i].GetShdr().AddrAlign, chunks[i])
		for i+1 < len(chunks) && chunks[i+1].GetShdr().Type == uint32(elf.SHT_NOTE) &&
			segmentFlags(chunks[i+1]) == flags {
			i++
			push(chunks[i])
		}
	}

	loads := make([]Chunker, 0, len(chunks))
	for _, chunk := range chunks {
		if !isTbss(chunk) {
			loads = append(loads, chunk)
		}
	}
	for i := 0; i < len(loads); {
		flags := segmentFlags(loads[i])
		define(uint32(elf.PT_LOAD), flags, PageSize, loads[i])
		i++
		for i < len(loads) && !isBss(loads[i]) && segmentFlags(loads[i]) == flags {
			push(loads[i])
			i++
		}
		for i < len(loads) && isBss(loads[i]) && segmentFlags(loads[i]) == flags {
			push(loads[i])
			i++
		}
	}

	for i := 0; i < len(chunks); i++ {
		if !isTLSChunk(chunks[i]) {
			continue
		}
		define(uint32(elf.PT_TLS), segmentFlags(chunks[i]), 1, chunks[i])
		for i+1 < len(chunks) && isTLSChunk(chunks[i+1]) {
			i++
			push(chunks[i])
		}
		break
	}

	for _, chunk := range chunks {
		if chunk.GetName() == ".dynamic" {
			define(uint32(elf.PT_DYNAMIC), segmentFlags(chunk), 8, chunk)
		}
	}

	vec = append(vec, Phdr{Type: PT_GNU_STACK, Flags: uint32(elf.PF_R | elf.PF_W), Align: 16})
	return vec
}
