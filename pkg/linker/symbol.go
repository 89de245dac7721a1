package linker

import (
	"debug/elf"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
	"github.com/unicornx/ppc64ld/pkg/utils"
)

// TLS access kinds seen against a symbol, plus entry keep/kind bits.
const (
	TlsGD       uint16 = 1 << 0
	TlsLD       uint16 = 1 << 1
	TlsTPRel    uint16 = 1 << 2
	TlsDTPRel   uint16 = 1 << 3
	TlsMark     uint16 = 1 << 4 // __tls_get_addr call carries a TLSGD/TLSLD marker
	TlsTLS      uint16 = 1 << 5 // R_PPC64_TLS seen
	TlsExplicit uint16 = 1 << 6 // kinds below were set by the optimizer
	TlsGDIE     uint16 = 1 << 7 // GD downgraded to IE
	PltKeep     uint16 = 1 << 8
	PltIfunc    uint16 = 1 << 9
)

type SymbolID int32

const NoSymbol SymbolID = -1

type PairKind uint8

const (
	PairPlain PairKind = iota
	// ".foo", Peer is the descriptor "foo"
	PairCodeEntry
	// "foo" in .opd, Peer is ".foo"
	PairDescriptor
)

// Pairing links an ELFv1 code entry symbol with its function descriptor.
type Pairing struct {
	Kind PairKind
	Peer SymbolID
}

const (
	// symbol address is referenced from non-PIC code or data
	NeedsAbsAddr uint32 = 1 << iota
	NeedsDynsym
	NeedsCopyReloc
	NeedsGlobalEntry
)

// Symbol is a resolved symbol. Locals live in ObjectFile.LocalSymbols,
// globals in the context arena. Exactly one of InputSection and
// SectionFragment is set for section-relative symbols.
type Symbol struct {
	File   *ObjectFile
	Dso    *SharedFile
	Name   string
	Value  uint64
	SymIdx int
	ID     SymbolID

	InputSection    *InputSection
	SectionFragment *SectionFragment

	Type  uint8
	Bind  elf.SymBind
	Other uint8
	Size  uint64

	IsLocal   bool
	StrongRef bool
	Flags     uint32

	TLSMask   uint16
	Pairing   Pairing
	Got       []*GotEntry
	Plt       []*PltEntry
	StubCache *Stub
	DynsymIdx int32
}

func NewSymbol(name string) *Symbol {
	s := &Symbol{
		Name:      name,
		SymIdx:    -1,
		ID:        NoSymbol,
		DynsymIdx: -1,
		Pairing:   Pairing{Peer: NoSymbol},
	}
	return s
}

func (s *Symbol) SetInputSection(isec *InputSection) {
	s.InputSection = isec
	s.SectionFragment = nil
}

func (s *Symbol) SetSectionFragment(frag *SectionFragment) {
	s.InputSection = nil
	s.SectionFragment = frag
}

func GetSymbolByName(ctx *Context, name string) *Symbol {
	if sym, ok := ctx.SymbolMap[name]; ok {
		return sym
	}
	sym := NewSymbol(name)
	sym.ID = SymbolID(len(ctx.Syms))
	ctx.Syms = append(ctx.Syms, sym)
	ctx.SymbolMap[name] = sym
	return sym
}

// Symbol returns the global symbol with the given arena id.
func (ctx *Context) Symbol(id SymbolID) *Symbol {
	if id < 0 || int(id) >= len(ctx.Syms) {
		return nil
	}
	return ctx.Syms[id]
}

func (s *Symbol) ElfSym() *Sym {
	utils.Assert(s.SymIdx >= 0 && s.SymIdx < len(s.File.ElfSyms))
	return &s.File.ElfSyms[s.SymIdx]
}

// setFromElf copies the attributes of the defining ELF symbol.
func (s *Symbol) setFromElf(esym *Sym) {
	s.Value = esym.Val
	s.Type = esym.Type()
	s.Bind = elf.SymBind(esym.Bind())
	s.Other = esym.Other
	s.Size = esym.Size
}

func (s *Symbol) Clear() {
	s.File = nil
	s.Dso = nil
	s.InputSection = nil
	s.SectionFragment = nil
	s.SymIdx = -1
	s.Value = 0
}

func (s *Symbol) GetAddr() uint64 {
	if s.SectionFragment != nil {
		return s.SectionFragment.GetAddr() + s.Value
	}

	if s.InputSection != nil {
		if !s.InputSection.IsAlive {
			return 0
		}
		return s.InputSection.GetAddr() + s.Value
	}

	return s.Value
}

func (s *Symbol) IsUndef() bool {
	return s.File == nil && s.Dso == nil
}

func (s *Symbol) IsWeak() bool {
	return s.Bind == elf.STB_WEAK
}

func (s *Symbol) IsUndefWeak() bool {
	return s.IsUndef() && !s.StrongRef
}

func (s *Symbol) IsIfunc() bool {
	return s.Type == STT_GNU_IFUNC
}

func (s *Symbol) IsFunc() bool {
	return s.Type == uint8(elf.STT_FUNC) || s.IsIfunc()
}

func (s *Symbol) IsTLS() bool {
	return s.Type == uint8(elf.STT_TLS)
}

func (s *Symbol) Visibility() elf.SymVis {
	return elf.SymVis(s.Other & 3)
}

// IsImported reports whether the symbol is defined by a shared object
// and its address is not pinned in this output.
func (s *Symbol) IsImported() bool {
	return s.Dso != nil && s.Flags&(NeedsCopyReloc|NeedsGlobalEntry) == 0
}

// IsPreemptible reports whether references must go through the dynamic
// loader.
func (s *Symbol) IsPreemptible(ctx *Context) bool {
	if s.IsLocal {
		return false
	}
	if s.Dso != nil {
		return s.Flags&(NeedsCopyReloc|NeedsGlobalEntry) == 0 || ctx.Args.Shared
	}
	if s.Visibility() != elf.STV_DEFAULT {
		return false
	}
	if s.IsUndef() {
		return ctx.Args.Shared || (s.IsUndefWeak() && ctx.Args.Pie && len(ctx.Dsos) > 0)
	}
	return ctx.Args.Shared
}

// IsAbsolute reports whether the symbol value does not move with the
// load address.
func (s *Symbol) IsAbsolute() bool {
	if s.IsUndef() {
		return true
	}
	return s.InputSection == nil && s.SectionFragment == nil && s.Dso == nil
}

// LocalEntryOffset is the ELFv2 global to local entry distance.
func (s *Symbol) LocalEntryOffset(ctx *Context) uint64 {
	if ctx.ABI != 2 {
		return 0
	}
	return LocalEntryOffset(s.Other)
}

// NoTOC reports whether an ELFv2 function may clobber r2, st_other
// local entry field 1.
func (s *Symbol) NoTOC(ctx *Context) bool {
	return ctx.ABI == 2 && (s.Other&STO_PPC64_LOCAL_MASK)>>STO_PPC64_LOCAL_BIT == 1
}

// UsesTOC reports whether an ELFv2 function needs r2 set on entry.
func (s *Symbol) UsesTOC(ctx *Context) bool {
	return ctx.ABI == 2 && (s.Other&STO_PPC64_LOCAL_MASK)>>STO_PPC64_LOCAL_BIT > 1
}

// GetGot finds or creates the GOT entry for (addend, kind) held in
// owner's GOT.
func (s *Symbol) GetGot(ctx *Context, owner *ObjectFile, addend int64, tls ppc64.TLSKind) *GotEntry {
	if e := s.FindGot(owner, addend, tls); e != nil {
		return e
	}
	e := &GotEntry{Sym: s, Addend: addend, Owner: owner, TLS: tls}
	s.Got = append(s.Got, e)
	owner.AddGotEntry(ctx, e)
	return e
}

func (s *Symbol) FindGot(owner *ObjectFile, addend int64, tls ppc64.TLSKind) *GotEntry {
	for _, e := range s.Got {
		if e.Owner == owner && e.Addend == addend && e.TLS == tls {
			return e
		}
	}
	return nil
}

func (s *Symbol) GetPlt(addend int64) *PltEntry {
	if e := s.FindPlt(addend); e != nil {
		return e
	}
	e := &PltEntry{Sym: s, Addend: addend}
	s.Plt = append(s.Plt, e)
	return e
}

func (s *Symbol) FindPlt(addend int64) *PltEntry {
	for _, e := range s.Plt {
		if e.Addend == addend {
			return e
		}
	}
	return nil
}

// LivePlt returns the allocated PLT entry for addend, if any.
func (s *Symbol) LivePlt(addend int64) *PltEntry {
	if e := s.FindPlt(addend); e != nil && e.Alloc.IsAssigned() {
		return e
	}
	return nil
}

// IsInSection reports whether the symbol is defined in isec.
func (s *Symbol) IsInSection(isec *InputSection) bool {
	return isec != nil && s.InputSection == isec
}

func (s *Symbol) String() string {
	if s.Name == "" && s.InputSection != nil {
		return s.InputSection.Name()
	}
	return s.Name
}
