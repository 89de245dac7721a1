package linker

import (
	"debug/elf"
	"fmt"
	"math"
	"math/bits"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// Synthetic is implemented by linker generated section contents. They are
// written after every input section has been relocated. Size is asked
// again at every layout.
type Synthetic interface {
	Size(ctx *Context) uint64
	WriteTo(ctx *Context, buf []byte)
}

// lateSynthetic contents depend on what other sections emitted while they
// were written (dynamic relocations, .dynamic values).
type lateSynthetic interface {
	Synthetic
	writeLate()
}

/*
 * InputSection is one section of an input object, or a section the linker
 * made up (Synth != nil).
 *
 * @Contents: raw bytes; the TLS and TOC optimizers rewrite them in place
 * @ShSize: current size, differs from sh_size after .toc/.opd compaction
 *          and for synthetic sections
 * @IsAlive: false for sections dropped by --gc-sections, COMDAT or because
 *           they were split into section fragments
 * @Discarded: dropped by COMDAT deduplication
 * @Offset: offset inside the output section
 * @Rels: relocations, loaded once and then edited by the optimizers
 * @Leading: placed ahead of every object section in its output section
 */
type InputSection struct {
	File      *ObjectFile
	Contents  []byte
	Shndx     uint32
	ShSize    uint64
	IsAlive   bool
	Discarded bool
	P2Align   uint8
	ID        int

	Offset        uint64
	OutputSection *OutputSection

	RelsecIdx  uint32
	Rels       []Rela
	relsLoaded bool

	synthShdr *Shdr
	synthName string
	Synth     Synthetic
	Leading   bool
}

func NewInputSection(ctx *Context, name string, file *ObjectFile, shndx uint32) *InputSection {
	s := &InputSection{
		File:      file,
		Shndx:     shndx,
		IsAlive:   true,
		Offset:    math.MaxUint64,
		RelsecIdx: math.MaxUint32,
	}

	shdr := s.Shdr()
	if shdr.Type != uint32(elf.SHT_NOBITS) {
		s.Contents = file.GetBytesFromShdr(shdr)
	}

	if shdr.Flags&uint64(elf.SHF_COMPRESSED) != 0 {
		utils.Fatal(fmt.Sprintf("%s: compressed section %s is not supported",
			file.File.Name, name))
	}
	s.ShSize = shdr.Size
	s.P2Align = toP2Align(shdr.AddrAlign)

	s.OutputSection = GetOutputSection(ctx, name, uint64(shdr.Type), shdr.Flags)
	ctx.AddSection(s)
	return s
}

// NewSyntheticSection makes a section whose contents are produced by w.
// The caller decides which file lists it.
func NewSyntheticSection(ctx *Context, file *ObjectFile, name string,
	typ uint32, flags uint64, p2align uint8, w Synthetic) *InputSection {
	s := &InputSection{
		File:       file,
		IsAlive:    true,
		P2Align:    p2align,
		Offset:     math.MaxUint64,
		RelsecIdx:  math.MaxUint32,
		relsLoaded: true,
		synthShdr: &Shdr{
			Type:      typ,
			Flags:     flags,
			AddrAlign: 1 << p2align,
		},
		synthName: name,
		Synth:     w,
	}
	s.OutputSection = GetOutputSection(ctx, name, uint64(typ), flags)
	ctx.AddSection(s)
	return s
}

func toP2Align(align uint64) uint8 {
	if align == 0 {
		return 0
	}
	return uint8(bits.TrailingZeros64(align))
}

func (i *InputSection) Shdr() *Shdr {
	if i.synthShdr != nil {
		return i.synthShdr
	}
	utils.Assert(i.Shndx < uint32(len(i.File.ElfSections)))
	return &i.File.ElfSections[i.Shndx]
}

func (i *InputSection) Name() string {
	if i.synthShdr != nil {
		return i.synthName
	}
	return ElfGetName(i.File.ShStrtab, i.Shdr().Name)
}

func (i *InputSection) IsAlloc() bool {
	return i.Shdr().Flags&uint64(elf.SHF_ALLOC) != 0
}

func (i *InputSection) IsExec() bool {
	return i.Shdr().Flags&uint64(elf.SHF_EXECINSTR) != 0
}

func (i *InputSection) IsWritable() bool {
	return i.Shdr().Flags&uint64(elf.SHF_WRITE) != 0
}

// Location names a byte of the section for diagnostics.
func (i *InputSection) Location(off uint64) string {
	return fmt.Sprintf("%s(%s+0x%x)", i.File.File.Name, i.Name(), off)
}

func (i *InputSection) WriteTo(ctx *Context, buf []byte) {
	if i.Synth != nil {
		i.Synth.WriteTo(ctx, buf)
		return
	}

	if i.Shdr().Type == uint32(elf.SHT_NOBITS) || i.ShSize == 0 {
		return
	}

	i.CopyContents(buf)
	RelocateSection(ctx, i, buf)
}

func (i *InputSection) CopyContents(buf []byte) {
	copy(buf, i.Contents[:i.ShSize])
}

func (i *InputSection) GetRels() []Rela {
	if i.relsLoaded {
		return i.Rels
	}
	i.relsLoaded = true
	if i.RelsecIdx == math.MaxUint32 {
		return nil
	}

	bs := i.File.GetBytesFromShdr(&i.File.InputFile.ElfSections[i.RelsecIdx])
	i.Rels = utils.ReadSliceWith[Rela](bs, RelaSize, i.File.Order)
	return i.Rels
}

func (i *InputSection) GetAddr() uint64 {
	return i.OutputSection.Shdr.Addr + i.Offset
}

// Insn reads the instruction word at off.
func (i *InputSection) Insn(off uint64) uint32 {
	return i.File.Order.Uint32(i.Contents[off:])
}

func (i *InputSection) SetInsn(off uint64, insn uint32) {
	i.File.Order.PutUint32(i.Contents[off:], insn)
}

// HasInsn reports whether a whole instruction word lies at off.
func (i *InputSection) HasInsn(off uint64) bool {
	return off+4 <= uint64(len(i.Contents)) && off+4 <= i.ShSize
}
