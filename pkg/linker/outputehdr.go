package linker

import (
	"debug/elf"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

type OutputEhdr struct {
	Chunk
}

func NewOutputEhdr() *OutputEhdr {
	o := &OutputEhdr{Chunk: NewChunk()}
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.Size = uint64(EhdrSize)
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputEhdr) CopyBuf(ctx *Context) {
	ehdr := &Ehdr{}
	WriteMagic(ehdr.Ident[:])
	ehdr.Ident[elf.EI_CLASS] = uint8(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = uint8(elf.ELFDATA2LSB)
	if ctx.Args.Emulation == MachineTypePPC64 {
		ehdr.Ident[elf.EI_DATA] = uint8(elf.ELFDATA2MSB)
	}
	ehdr.Ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)

	ehdr.Type = uint16(elf.ET_EXEC)
	if ctx.Args.IsPIC() {
		ehdr.Type = uint16(elf.ET_DYN)
	}
	ehdr.Machine = uint16(elf.EM_PPC64)
	ehdr.Version = uint32(elf.EV_CURRENT)
	ehdr.Entry = GetEntryAddress(ctx)
	ehdr.Flags = uint32(ctx.ABI) & EF_PPC64_ABI
	ehdr.PhOff = ctx.Phdr.Shdr.Offset
	ehdr.ShOff = ctx.Shdr.Shdr.Offset
	ehdr.EhSize = uint16(EhdrSize)
	ehdr.PhEntSize = uint16(PhdrSize)
	ehdr.PhNum = uint16(ctx.Phdr.Shdr.Size / uint64(PhdrSize))
	ehdr.ShEntSize = uint16(ShdrSize)
	ehdr.ShNum = uint16(ctx.Shdr.Shdr.Size / uint64(ShdrSize))
	ehdr.ShStrndx = uint16(ctx.Shstrtab.Shndx)

	utils.WriteWith(ctx.Buf[o.Shdr.Offset:], ctx.Order, ehdr)
}

// GetEntryAddress is the entry symbol's address. For ELFv1 that is the
// descriptor in .opd, which is what the kernel expects. Without an entry
// symbol the output starts at .text.
func GetEntryAddress(ctx *Context) uint64 {
	if ctx.EntrySym != nil && !ctx.EntrySym.IsUndef() {
		return symbolAddr(ctx, ctx.EntrySym)
	}
	if ctx.Args.Shared {
		return 0
	}
	for _, osec := range ctx.OutputSections {
		if osec.Name == ".text" {
			return osec.Shdr.Addr
		}
	}
	return 0
}
