package linker

import (
	"encoding/binary"
)

// SectionAux is the per input section record kept beside ctx.Sections.
// The index of a section in ctx.Sections is its ID.
type SectionAux struct {
	TOCGroup  int
	StubGroup int

	HasTOCReloc     bool
	HasOptRel       bool
	Has14Branch     bool
	CallsTLSGetAddr bool
	MakesTOCSave    bool
	Scanned         bool

	DynRelocs int
}

/*
 * Context is the state of one link. Every pass takes it as its first
 * argument.
 *
 * @Objs: live relocatable inputs, including members pulled from archives
 * @Dsos: shared objects named on the command line
 * @SymbolMap, @Syms: global symbols by name and by arena id
 * @Sections: every input section, synthetic ones included; SectionAux is
 *            indexed the same way
 * @TOCGroups: runs of objects sharing one TOC pointer value
 * @StubGroups: runs of code sections sharing one stub section
 * @Stubs: one entry per (group, target, addend, addressing) key
 */
type Context struct {
	Args  ContextArgs
	Diag  Diag
	Order binary.ByteOrder
	ABI   int
	Buf   []byte

	Ehdr     *OutputEhdr
	Shdr     *OutputShdr
	Phdr     *OutputPhdr
	Shstrtab *ShstrtabSection
	Symtab   *SymtabSection
	Strtab   *StrtabSection

	Internal    *ObjectFile
	GotHeader   *GotHeaderSection
	Plt         *PltSection
	Iplt        *PltSection
	PltLocal    *PltSection
	BranchLT    *BranchLTSection
	Glink       *GlinkSection
	GlobalEntry *GlobalEntrySection
	Sfpr        *SaveResSection
	Dynbss      *DynbssSection
	EhFrame     *EhFrameSection
	RelaDyn     *RelaDynSection
	RelaPlt     *RelaPltSection
	Relr        *RelrSection
	Interp      *InterpSection
	Dynsym      *DynsymSection
	Dynstr      *DynstrSection
	Hash        *HashSection
	Dynamic     *DynamicSection

	TLSBegin uint64
	TLSEnd   uint64
	TpAddr   uint64
	DtpAddr  uint64

	OutputSections []*OutputSection
	Chunks         []Chunker
	FileSize       uint64
	Binned         bool
	RelaSecs       []*EmitRelocsSection

	Objs           []*ObjectFile
	Dsos           []*SharedFile
	SymbolMap      map[string]*Symbol
	Syms           []*Symbol
	MergedSections []*MergedSection
	Sections       []*InputSection
	SectionAux     []SectionAux
	ComdatGroups   map[string]*ObjectFile

	TOCGroups  []*TOCGroup
	StubGroups []*StubGroup
	Stubs      map[StubKey]*Stub
	StubList   []*Stub
	CallSites  map[CallSite]*CallInfo

	// TLSCallSetup pairs markerless __tls_get_addr calls with the index
	// of the GOT relocation that sets up their argument.
	TLSCallSetup map[CallSite]int

	LinkerSyms []linkerSym

	TOCSym        *Symbol
	TLSGetAddr    *Symbol
	TLSGetAddrOpt *Symbol
	EntrySym      *Symbol

	TextRel           bool
	PltLocalEntryUsed bool
}

func NewContext() *Context {
	ctx := &Context{
		Args:         DefaultArgs(),
		Diag:         Diag{Limit: DefaultErrorLimit},
		Order:        binary.BigEndian,
		ABI:          1,
		SymbolMap:    make(map[string]*Symbol),
		ComdatGroups: make(map[string]*ObjectFile),
		Stubs:        make(map[StubKey]*Stub),
		CallSites:    make(map[CallSite]*CallInfo),
		TLSCallSetup: make(map[CallSite]int),
	}
	return ctx
}

// SetEmulation fixes byte order and the default ABI version.
func (ctx *Context) SetEmulation(m MachineType) {
	ctx.Args.Emulation = m
	ctx.Order = m.ByteOrder()
	ctx.ABI = m.DefaultABI()
}

// AddSection gives isec its ID and an aux record.
func (ctx *Context) AddSection(isec *InputSection) {
	isec.ID = len(ctx.Sections)
	ctx.Sections = append(ctx.Sections, isec)
	ctx.SectionAux = append(ctx.SectionAux, SectionAux{StubGroup: -1})
}

func (ctx *Context) Aux(isec *InputSection) *SectionAux {
	return &ctx.SectionAux[isec.ID]
}

// StkTOC is the stack slot where callers save r2 across calls.
func (ctx *Context) StkTOC() int64 {
	if ctx.ABI == 1 {
		return 40
	}
	return 24
}

// StkLinker is the stack slot reserved for the linker.
func (ctx *Context) StkLinker() int64 {
	if ctx.ABI == 1 {
		return 32
	}
	return 8
}

// TOCBaseOfGroup returns the r2 value used by code in TOC group g.
func (ctx *Context) TOCBaseOfGroup(g int) uint64 {
	if g < 0 || g >= len(ctx.TOCGroups) {
		return ctx.GotHeader.Sec.GetAddr() + TOCBias
	}
	return ctx.TOCGroups[g].Base()
}

// TOCBase returns the r2 value in effect for code in isec.
func (ctx *Context) TOCBase(isec *InputSection) uint64 {
	return ctx.TOCBaseOfGroup(ctx.Aux(isec).TOCGroup)
}

// Objects returns the live inputs followed by the internal file.
func (ctx *Context) Objects() []*ObjectFile {
	objs := make([]*ObjectFile, 0, len(ctx.Objs)+1)
	objs = append(objs, ctx.Objs...)
	if ctx.Internal != nil {
		objs = append(objs, ctx.Internal)
	}
	return objs
}
