package linker

import (
	"debug/elf"
	"math"
	"sort"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// SectionLayout assigns addresses and file offsets to every chunk. The
// stub sizing loop calls it once per iteration.
type SectionLayout interface {
	Relayout(ctx *Context)
}

// DriverLayout is the layout used for real links: sections in rank order,
// one page per segment change.
type DriverLayout struct{}

func (DriverLayout) Relayout(ctx *Context) {
	ComputeSectionSizes(ctx)
	AssignSectionIndices(ctx)
	for _, chunk := range ctx.Chunks {
		chunk.UpdateShdr(ctx)
	}
	ctx.FileSize = SetOutputSectionOffsets(ctx)
	FixLinkerSymbols(ctx)
	SetTLSRange(ctx)
}

// BinSections fills the output sections. Leading linker sections come
// first, then object sections in command line order with each object's
// GOT in front of its .toc, then the remaining linker sections.
func BinSections(ctx *Context) {
	group := make([][]*InputSection, len(ctx.OutputSections))
	add := func(isec *InputSection) {
		if isec == nil || !isec.IsAlive {
			return
		}
		idx := isec.OutputSection.Idx
		group[idx] = append(group[idx], isec)
	}

	for _, isec := range ctx.Internal.Sections {
		if isec.Leading {
			add(isec)
		}
	}
	for _, file := range ctx.Objs {
		add(file.GotSec)
		for _, isec := range file.Sections {
			add(isec)
		}
	}
	for _, isec := range ctx.Internal.Sections {
		if !isec.Leading {
			add(isec)
		}
	}

	for idx, osec := range ctx.OutputSections {
		osec.Members = group[idx]
	}
	ctx.Binned = true
}

// placeGotSection adds a GOT created after binning right before its
// object's .toc.
func placeGotSection(ctx *Context, o *ObjectFile) {
	osec := o.GotSec.OutputSection
	if toc := o.TOCSection(); toc != nil && toc.OutputSection == osec {
		for i, isec := range osec.Members {
			if isec == toc {
				osec.Members = append(osec.Members[:i],
					append([]*InputSection{o.GotSec}, osec.Members[i:]...)...)
				return
			}
		}
	}
	osec.Members = append(osec.Members, o.GotSec)
	if !containsChunk(ctx, osec) {
		ctx.Chunks = append(ctx.Chunks, osec)
		SortOutputSections(ctx)
	}
}

func containsChunk(ctx *Context, c Chunker) bool {
	for _, chunk := range ctx.Chunks {
		if chunk == c {
			return true
		}
	}
	return false
}

func CollectOutputSections(ctx *Context) []Chunker {
	osecs := make([]Chunker, 0)
	for _, osec := range ctx.OutputSections {
		if len(osec.Members) > 0 {
			osecs = append(osecs, osec)
		}
	}

	for _, osec := range ctx.MergedSections {
		if osec.Shdr.Size > 0 {
			osecs = append(osecs, osec)
		}
	}

	return osecs
}

// ComputeSectionSizes asks every synthetic member for its current size
// and packs the members of each output section. Empty members do not
// impose their alignment.
func ComputeSectionSizes(ctx *Context) {
	for _, osec := range ctx.OutputSections {
		offset := uint64(0)
		p2align := int64(0)

		for _, isec := range osec.Members {
			if isec.Synth != nil {
				isec.ShSize = isec.Synth.Size(ctx)
			}
			if isec.ShSize == 0 {
				isec.Offset = offset
				continue
			}
			offset = utils.AlignTo(offset, 1<<isec.P2Align)
			isec.Offset = offset
			offset += isec.ShSize
			p2align = int64(math.Max(float64(p2align), float64(isec.P2Align)))
		}

		osec.Shdr.Size = offset
		osec.Shdr.AddrAlign = 1 << p2align
	}
}

// AssignSectionIndices numbers the chunks that get a section header.
// Empty output sections are left out; the symbol and string tables are
// always present.
func AssignSectionIndices(ctx *Context) {
	shndx := int64(1)
	for _, chunk := range ctx.Chunks {
		if isHeaderChunk(ctx, chunk) {
			continue
		}
		always := chunk == Chunker(ctx.Shstrtab) || chunk == Chunker(ctx.Symtab) ||
			chunk == Chunker(ctx.Strtab)
		if chunk.GetShdr().Size == 0 && !always {
			chunk.SetShndx(0)
			continue
		}
		chunk.SetShndx(shndx)
		shndx++
	}
}

func SortOutputSections(ctx *Context) {
	rank := func(chunk Chunker) int32 {
		typ := chunk.GetShdr().Type
		flags := chunk.GetShdr().Flags

		if chunk == Chunker(ctx.Shdr) {
			return math.MaxInt32
		}
		if flags&uint64(elf.SHF_ALLOC) == 0 {
			return math.MaxInt32 - 1
		}
		if chunk == Chunker(ctx.Ehdr) {
			return 0
		}
		if chunk == Chunker(ctx.Phdr) {
			return 1
		}
		if chunk.GetName() == ".interp" {
			return 2
		}
		if typ == uint32(elf.SHT_NOTE) {
			return 3
		}

		b2i := func(b bool) int {
			if b {
				return 1
			}
			return 0
		}

		writeable := b2i(flags&uint64(elf.SHF_WRITE) != 0)
		notExec := b2i(flags&uint64(elf.SHF_EXECINSTR) == 0)
		notTls := b2i(flags&uint64(elf.SHF_TLS) == 0)
		isBss := b2i(typ == uint32(elf.SHT_NOBITS))

		return int32(writeable<<7 | notExec<<6 | notTls<<5 | isBss<<4)
	}

	sort.SliceStable(ctx.Chunks, func(i, j int) bool {
		return rank(ctx.Chunks[i]) < rank(ctx.Chunks[j])
	})
}

// imageBase is where the first segment is linked.
func imageBase(ctx *Context) uint64 {
	if ctx.Args.IsPIC() {
		return 0
	}
	return IMAGE_BASE
}

// segmentFlags are the PF_ flags of the PT_LOAD a chunk belongs to.
func segmentFlags(chunk Chunker) uint32 {
	flags := uint32(elf.PF_R)
	if chunk.GetShdr().Flags&uint64(elf.SHF_WRITE) != 0 {
		flags |= uint32(elf.PF_W)
	}
	if chunk.GetShdr().Flags&uint64(elf.SHF_EXECINSTR) != 0 {
		flags |= uint32(elf.PF_X)
	}
	return flags
}

// SetOutputSectionOffsets assigns addresses in chunk order, starting a new
// page whenever the segment flags change, and derives file offsets from
// them. .tbss takes no address space. It returns the file size.
func SetOutputSectionOffsets(ctx *Context) uint64 {
	base := imageBase(ctx)
	addr := base
	prev := uint32(0)
	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()
		if shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		if shdr.Size > 0 || isHeaderChunk(ctx, chunk) {
			if flags := segmentFlags(chunk); prev != 0 && flags != prev {
				addr = utils.AlignTo(addr, PageSize)
			}
			prev = segmentFlags(chunk)
		}

		addr = utils.AlignTo(addr, shdr.AddrAlign)
		shdr.Addr = addr
		if !isTbss(chunk) {
			addr += shdr.Size
		}
	}

	fileoff := uint64(0)
	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()
		if shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		shdr.Offset = shdr.Addr - base
		if shdr.Type != uint32(elf.SHT_NOBITS) {
			fileoff = max(fileoff, shdr.Offset+shdr.Size)
		}
	}

	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()
		if shdr.Flags&uint64(elf.SHF_ALLOC) != 0 {
			continue
		}
		fileoff = utils.AlignTo(fileoff, shdr.AddrAlign)
		shdr.Offset = fileoff
		fileoff += shdr.Size
	}

	ctx.Phdr.UpdateShdr(ctx)
	return fileoff
}

// SetTLSRange records the TLS block and the thread pointer and dtv
// biases derived from it.
func SetTLSRange(ctx *Context) {
	ctx.TLSBegin, ctx.TLSEnd = 0, 0
	first := true
	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()
		if shdr.Flags&uint64(elf.SHF_TLS) == 0 || shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		if first {
			ctx.TLSBegin = shdr.Addr
			first = false
		}
		ctx.TLSEnd = shdr.Addr + shdr.Size
	}
	ctx.TpAddr = ctx.TLSBegin + 0x7000
	ctx.DtpAddr = ctx.TLSBegin + 0x8000
}

func isTbss(chunk Chunker) bool {
	shdr := chunk.GetShdr()
	return shdr.Type == uint32(elf.SHT_NOBITS) &&
		shdr.Flags&uint64(elf.SHF_TLS) != 0
}
