package linker

import (
	"bytes"
	"debug/elf"
	"fmt"
	"math"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// ComdatGroup is one SHT_GROUP section of an object.
type ComdatGroup struct {
	Signature string
	Members   []uint32
}

/*
 * ObjectFile is a relocatable input.
 *
 * @SymtabShndxSec: SHT_SYMTAB_SHNDX contents, consulted when st_shndx is
 *                  SHN_XINDEX
 * @Sections: one slot per ELF section. Only sections that can reach the
 *            output get an InputSection; the rest stay nil.
 * @MergeableSections: SHF_MERGE sections split into fragments
 * @ABI: e_flags ABI version, 0 when the object does not say
 * @GotSec, @Got: this object's GOT entries. They sit right before the
 *                object's .toc in the output .got.
 * @TLSLDGot: the object's module id pair for local dynamic accesses
 * @Opd: descriptor bookkeeping per .opd section index
 * @TOCGroup: index of the TOC group the object belongs to
 * @TLSOptDisabled: markerless __tls_get_addr calls could not be paired
 */
type ObjectFile struct {
	InputFile
	SymtabSec         *Shdr
	SymtabShndxSec    []uint32
	Sections          []*InputSection
	MergeableSections []*MergeableSection
	Comdats           []ComdatGroup

	ABI      int
	GotSec   *InputSection
	Got      *GotSection
	TLSLDGot *GotEntry
	Opd      map[uint32]*OpdInfo

	TOCGroup       int
	TLSOptDisabled bool
}

func NewObjectFile(file *File, isAlive bool) *ObjectFile {
	o := &ObjectFile{InputFile: NewInputFile(file)}
	o.IsAlive = isAlive
	o.ABI = o.ABIVersion()
	return o
}

func (o *ObjectFile) Parse(ctx *Context) {
	o.SymtabSec = o.FindSection(uint32(elf.SHT_SYMTAB))
	if o.SymtabSec != nil {
		o.FirstGlobal = int(o.SymtabSec.Info)
		o.FillUpElfSyms(o.SymtabSec)
		o.SymbolStrtab = o.GetBytesFromIdx(int64(o.SymtabSec.Link))
	}

	o.InitializeSections(ctx)
	o.InitializeSymbols(ctx)
	o.InitializeMergeableSections(ctx)
	o.SkipEhframeSections()
}

func (o *ObjectFile) InitializeSections(ctx *Context) {
	o.Sections = make([]*InputSection, len(o.ElfSections))
	for i := 0; i < len(o.ElfSections); i++ {
		shdr := &o.ElfSections[i]
		switch elf.SectionType(shdr.Type) {
		case elf.SHT_GROUP:
			o.readComdatGroup(shdr)
		case elf.SHT_SYMTAB, elf.SHT_STRTAB, elf.SHT_REL, elf.SHT_RELA,
			elf.SHT_NULL:
			break
		case elf.SHT_SYMTAB_SHNDX:
			o.FillUpSymtabShndxSec(shdr)
		default:
			if shdr.Type == SHT_LLVM_ADDRSIG || shdr.Flags&SHF_EXCLUDE != 0 {
				break
			}
			name := ElfGetName(o.InputFile.ShStrtab, shdr.Name)
			if name == ".note.GNU-stack" {
				break
			}
			o.Sections[i] = NewInputSection(ctx, name, o, uint32(i))
		}
	}

	for i := 0; i < len(o.ElfSections); i++ {
		shdr := &o.InputFile.ElfSections[i]
		if shdr.Type != uint32(elf.SHT_RELA) {
			continue
		}

		utils.Assert(shdr.Info < uint32(len(o.Sections)))
		if target := o.Sections[shdr.Info]; target != nil {
			utils.Assert(target.RelsecIdx == math.MaxUint32)
			target.RelsecIdx = uint32(i)
		}
	}
}

func (o *ObjectFile) readComdatGroup(shdr *Shdr) {
	words := utils.ReadSliceWith[uint32](o.GetBytesFromShdr(shdr), 4, o.Order)
	if len(words) == 0 || words[0]&GRP_COMDAT == 0 {
		return
	}
	if int(shdr.Info) >= len(o.ElfSyms) {
		utils.Fatal(fmt.Sprintf("%s: bad group signature index", o.File.Name))
	}
	esym := &o.ElfSyms[shdr.Info]
	sig := ElfGetName(o.SymbolStrtab, esym.Name)
	if esym.Type() == uint8(elf.STT_SECTION) {
		sig = ElfGetName(o.ShStrtab, o.ElfSections[o.GetShndx(esym, int(shdr.Info))].Name)
	}
	o.Comdats = append(o.Comdats, ComdatGroup{Signature: sig, Members: words[1:]})
}

func (o *ObjectFile) FillUpSymtabShndxSec(s *Shdr) {
	bs := o.GetBytesFromShdr(s)
	o.SymtabShndxSec = utils.ReadSliceWith[uint32](bs, 4, o.Order)
}

func (o *ObjectFile) InitializeSymbols(ctx *Context) {
	if o.SymtabSec == nil {
		return
	}

	o.LocalSymbols = make([]Symbol, o.FirstGlobal)
	for i := 0; i < len(o.LocalSymbols); i++ {
		o.LocalSymbols[i] = *NewSymbol("")
		o.LocalSymbols[i].IsLocal = true
	}
	o.LocalSymbols[0].File = o

	for i := 1; i < len(o.LocalSymbols); i++ {
		esym := &o.ElfSyms[i]
		sym := &o.LocalSymbols[i]
		sym.Name = ElfGetName(o.SymbolStrtab, esym.Name)
		sym.File = o
		sym.setFromElf(esym)
		sym.SymIdx = i

		if !esym.IsAbs() && !esym.IsUndef() {
			sym.SetInputSection(o.Sections[o.GetShndx(esym, i)])
		}
	}

	o.Symbols = make([]*Symbol, len(o.ElfSyms))
	for i := 0; i < len(o.LocalSymbols); i++ {
		o.Symbols[i] = &o.LocalSymbols[i]
	}
	for i := len(o.LocalSymbols); i < len(o.ElfSyms); i++ {
		esym := &o.ElfSyms[i]
		name := ElfGetName(o.SymbolStrtab, esym.Name)
		o.Symbols[i] = GetSymbolByName(ctx, name)
	}
}

func (o *ObjectFile) GetShndx(esym *Sym, idx int) int64 {
	utils.Assert(idx >= 0 && idx < len(o.ElfSyms))

	if esym.Shndx == uint16(elf.SHN_XINDEX) {
		return int64(o.SymtabShndxSec[idx])
	}
	return int64(esym.Shndx)
}

// symRank orders competing definitions; the lowest rank wins. Definitions
// in live files beat lazy archive members, strong beats weak.
func symRank(file *ObjectFile, esym *Sym) int {
	rank := 1
	if esym.IsWeak() {
		rank = 2
	}
	if !file.IsAlive {
		rank += 2
	}
	return rank
}

func (o *ObjectFile) ResolveSymbols() {
	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if esym.IsUndef() {
			continue
		}
		if esym.IsCommon() {
			utils.Fatal(fmt.Sprintf("%s: common symbol %s is not supported, recompile with -fno-common",
				o.File.Name, sym.Name))
		}

		var isec *InputSection
		if !esym.IsAbs() {
			isec = o.GetSection(esym, i)
			if isec == nil || isec.Discarded {
				continue
			}
		}

		if sym.File != nil && (sym.SymIdx < 0 || symRank(sym.File, sym.ElfSym()) <= symRank(o, esym)) {
			continue
		}

		sym.File = o
		sym.Dso = nil
		sym.SetInputSection(isec)
		sym.setFromElf(esym)
		sym.SymIdx = i
	}
}

func (o *ObjectFile) GetSection(esym *Sym, idx int) *InputSection {
	return o.Sections[o.GetShndx(esym, idx)]
}

func (o *ObjectFile) MarkLiveObjects(feeder func(*ObjectFile)) {
	utils.Assert(o.IsAlive)

	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if sym.File == nil {
			continue
		}

		if esym.IsUndef() && !sym.File.IsAlive {
			sym.File.IsAlive = true
			feeder(sym.File)
		}
	}
}

// MarkStrongRefs records which undefined globals are referenced by a
// non-weak undefined symbol.
func (o *ObjectFile) MarkStrongRefs() {
	for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
		esym := &o.ElfSyms[i]
		if esym.IsUndef() && !esym.IsWeak() {
			o.Symbols[i].StrongRef = true
		}
	}
}

func (o *ObjectFile) ClearSymbols() {
	for _, sym := range o.Symbols[o.FirstGlobal:] {
		if sym.File == o {
			sym.Clear()
		}
	}
}

func (o *ObjectFile) InitializeMergeableSections(ctx *Context) {
	o.MergeableSections = make([]*MergeableSection, len(o.Sections))
	for i := 0; i < len(o.Sections); i++ {
		isec := o.Sections[i]
		if isec != nil && isec.IsAlive &&
			isec.Shdr().Flags&uint64(elf.SHF_MERGE) != 0 &&
			isec.Shdr().EntSize > 0 {
			o.MergeableSections[i] = splitSection(ctx, isec)
			isec.IsAlive = false
		}
	}
}

func findNull(data []byte, entSize int) int {
	if entSize == 1 {
		return bytes.Index(data, []byte{0})
	}

	for i := 0; i <= len(data)-entSize; i += entSize {
		bs := data[i : i+entSize]
		if utils.AllZeros(bs) {
			return i
		}
	}

	return -1
}

func splitSection(ctx *Context, isec *InputSection) *MergeableSection {
	m := &MergeableSection{}
	shdr := isec.Shdr()

	m.Parent = GetMergedSectionInstance(ctx, isec.Name(), shdr.Type,
		shdr.Flags)
	m.P2Align = isec.P2Align

	data := isec.Contents
	offset := uint64(0)
	if shdr.Flags&uint64(elf.SHF_STRINGS) != 0 {
		for len(data) > 0 {
			end := findNull(data, int(shdr.EntSize))
			if end == -1 {
				ctx.Fatalf("%s: string is not null terminated", isec.Location(offset))
			}

			sz := uint64(end) + shdr.EntSize
			substr := data[:sz]
			data = data[sz:]
			m.Strs = append(m.Strs, string(substr))
			m.FragOffsets = append(m.FragOffsets, offset)
			offset += sz
		}
	} else {
		if uint64(len(data))%shdr.EntSize != 0 {
			ctx.Fatalf("%s: section size is not multiple of entsize", isec.Location(0))
		}

		for len(data) > 0 {
			substr := data[:shdr.EntSize]
			data = data[shdr.EntSize:]
			m.Strs = append(m.Strs, string(substr))
			m.FragOffsets = append(m.FragOffsets, offset)
			offset += shdr.EntSize
		}
	}

	return m
}

func (o *ObjectFile) RegisterSectionPieces() {
	for _, m := range o.MergeableSections {
		if m == nil {
			continue
		}

		m.Fragments = make([]*SectionFragment, 0, len(m.Strs))
		for i := 0; i < len(m.Strs); i++ {
			m.Fragments = append(m.Fragments,
				m.Parent.Insert(m.Strs[i], uint32(m.P2Align)))
		}
	}

	for i := 1; i < len(o.ElfSyms); i++ {
		sym := o.Symbols[i]
		esym := &o.ElfSyms[i]

		if esym.IsAbs() || esym.IsUndef() || esym.IsCommon() {
			continue
		}
		if sym.File != o || sym.SymIdx != i {
			continue
		}

		m := o.MergeableSections[o.GetShndx(esym, i)]
		if m == nil {
			continue
		}

		frag, fragOffset := m.GetFragment(esym.Val)
		if frag == nil {
			utils.Fatal(fmt.Sprintf("%s: bad symbol value for %s", o.File.Name, sym.Name))
		}
		sym.SetSectionFragment(frag)
		sym.Value = fragOffset
	}
}

// PieceAddr resolves a reference to a section symbol of a split section.
// The addend selects the fragment, so the result already includes it.
func (o *ObjectFile) PieceAddr(symIdx uint32, addend int64) (uint64, bool) {
	if int(symIdx) >= o.FirstGlobal || int(symIdx) >= len(o.ElfSyms) {
		return 0, false
	}
	esym := &o.ElfSyms[symIdx]
	if esym.Type() != uint8(elf.STT_SECTION) {
		return 0, false
	}
	m := o.MergeableSections[o.GetShndx(esym, int(symIdx))]
	if m == nil {
		return 0, false
	}
	frag, off := m.GetFragment(uint64(addend))
	if frag == nil {
		return 0, false
	}
	return frag.GetAddr() + off, true
}

func (o *ObjectFile) SkipEhframeSections() {
	for _, isec := range o.Sections {
		if isec != nil && isec.IsAlive && isec.Name() == ".eh_frame" {
			isec.IsAlive = false
		}
	}
}

// AddGotEntry places e in this object's GOT, creating the section on
// first use.
func (o *ObjectFile) AddGotEntry(ctx *Context, e *GotEntry) {
	if o.Got == nil {
		o.Got = NewGotSection(ctx, o)
		if ctx.Binned {
			placeGotSection(ctx, o)
		}
	}
	o.Got.Entries = append(o.Got.Entries, e)
}

// TOCSection returns the object's .toc, if it has a live one.
func (o *ObjectFile) TOCSection() *InputSection {
	for _, isec := range o.Sections {
		if isec != nil && isec.IsAlive && isec.Name() == ".toc" {
			return isec
		}
	}
	return nil
}

// String names the object for diagnostics. Archive members already carry
// the archive name.
func (o *ObjectFile) String() string {
	return o.File.Name
}
