package linker

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

/*
 * InputFile holds what every ELF input shares.
 *
 * @ElfSections: section header table
 * @ShStrtab: raw contents of the section name string table
 * @ElfSyms: symbol table, filled by ObjectFile.Parse
 * @FirstGlobal: index of the first non-local symbol
 * @SymbolStrtab: raw contents of the symbol string table
 * @IsAlive: the file takes part in the output; archive members start dead
 *           and are pulled in by MarkLiveObjects
 * @Symbols: one pointer per ELF symbol. Locals point into LocalSymbols,
 *           globals into the context arena.
 * @Order: byte order from EI_DATA
 */
type InputFile struct {
	File         *File
	ElfSections  []Shdr
	ShStrtab     []byte
	ElfSyms      []Sym
	FirstGlobal  int
	SymbolStrtab []byte
	IsAlive      bool
	Symbols      []*Symbol
	LocalSymbols []Symbol
	Order        binary.ByteOrder
}

func NewInputFile(file *File) InputFile {
	f := InputFile{File: file}

	if len(file.Contents) < EhdrSize {
		utils.Fatal(fmt.Sprintf("%s: file too small", file.Name))
	}

	if !CheckMagic(file.Contents) {
		utils.Fatal(fmt.Sprintf("%s: not an ELF file", file.Name))
	}

	f.Order = ElfByteOrder(file.Contents)
	ehdr := f.GetEhdr()
	if ehdr.ShOff == 0 {
		return f
	}
	contents := file.Contents[ehdr.ShOff:]
	shdr := utils.ReadWith[Shdr](contents, f.Order)

	numSections := int64(ehdr.ShNum)
	if numSections == 0 {
		numSections = int64(shdr.Size)
	}

	f.ElfSections = []Shdr{shdr}
	for numSections > 1 {
		contents = contents[ShdrSize:]
		f.ElfSections = append(f.ElfSections, utils.ReadWith[Shdr](contents, f.Order))
		numSections--
	}

	shstrndx := int64(ehdr.ShStrndx)
	if ehdr.ShStrndx == uint16(elf.SHN_XINDEX) {
		shstrndx = int64(shdr.Link)
	}
	f.ShStrtab = f.GetBytesFromIdx(shstrndx)
	return f
}

func (f *InputFile) GetBytesFromShdr(s *Shdr) []byte {
	if s.Type == uint32(elf.SHT_NOBITS) {
		return nil
	}
	end := s.Offset + s.Size
	if uint64(len(f.File.Contents)) < end {
		utils.Fatal(
			fmt.Sprintf("%s: section header is out of range: %d", f.File.Name, s.Offset))
	}
	return f.File.Contents[s.Offset:end]
}

func (f *InputFile) GetBytesFromIdx(idx int64) []byte {
	return f.GetBytesFromShdr(&f.ElfSections[idx])
}

func (f *InputFile) FillUpElfSyms(s *Shdr) {
	bs := f.GetBytesFromShdr(s)
	f.ElfSyms = utils.ReadSliceWith[Sym](bs, SymSize, f.Order)
}

func (f *InputFile) FindSection(ty uint32) *Shdr {
	for i := 0; i < len(f.ElfSections); i++ {
		shdr := &f.ElfSections[i]
		if shdr.Type == ty {
			return shdr
		}
	}

	return nil
}

func (f *InputFile) GetEhdr() Ehdr {
	return utils.ReadWith[Ehdr](f.File.Contents, f.Order)
}

// ABIVersion returns the e_flags ABI field, 0 when unspecified.
func (f *InputFile) ABIVersion() int {
	return int(f.GetEhdr().Flags & EF_PPC64_ABI)
}
