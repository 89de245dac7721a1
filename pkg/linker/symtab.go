package linker

import (
	"debug/elf"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// symtabEntry is one .symtab slot: a symbol, a stub when
// --emit-stub-syms is on, or an output section symbol for --emit-relocs.
type symtabEntry struct {
	sym  *Symbol
	stub *Stub
	osec Chunker
	name uint32
}

/*
 * SymtabSection is the static symbol table: locals of every live object,
 * then stub symbols, then the defined and referenced globals.
 *
 * @firstGlobal: sh_info, index of the first global entry
 * @symIndex, @secIndex: where emitted relocations find their symbols
 */
type SymtabSection struct {
	Chunk
	entries     []symtabEntry
	firstGlobal int
	strs        *strtabBuilder
	symIndex    map[*Symbol]uint32
	secIndex    map[Chunker]uint32
}

func NewSymtabSection() *SymtabSection {
	s := &SymtabSection{Chunk: NewChunk()}
	s.Name = ".symtab"
	s.Shdr.Type = uint32(elf.SHT_SYMTAB)
	s.Shdr.EntSize = uint64(SymSize)
	s.Shdr.AddrAlign = 8
	return s
}

// keepLocal drops section symbols and locals of dead sections.
func keepLocal(sym *Symbol) bool {
	if sym.Type == uint8(elf.STT_SECTION) || sym.Name == "" {
		return false
	}
	if sym.InputSection != nil && !sym.InputSection.IsAlive {
		return false
	}
	return true
}

// keepGlobal drops globals only weakly referenced or defined in dead
// sections.
func keepGlobal(sym *Symbol) bool {
	if sym.IsUndef() {
		return sym.StrongRef
	}
	if sym.InputSection != nil && !sym.InputSection.IsAlive {
		return false
	}
	return true
}

func (s *SymtabSection) UpdateShdr(ctx *Context) {
	s.entries = s.entries[:0]
	s.strs = newStrtabBuilder()
	s.symIndex = make(map[*Symbol]uint32)
	s.secIndex = make(map[Chunker]uint32)
	s.entries = append(s.entries, symtabEntry{})

	if ctx.Args.EmitRelocs {
		for _, chunk := range ctx.Chunks {
			if isAllocChunk(chunk) && chunk.GetShndx() > 0 {
				s.secIndex[chunk] = uint32(len(s.entries))
				s.entries = append(s.entries, symtabEntry{osec: chunk})
			}
		}
	}

	for _, o := range ctx.Objects() {
		for i := 1; i < len(o.LocalSymbols); i++ {
			sym := &o.LocalSymbols[i]
			if keepLocal(sym) {
				s.entries = append(s.entries, symtabEntry{sym: sym, name: s.strs.Put(sym.Name)})
			}
		}
	}
	if ctx.Args.EmitStubSyms {
		for _, st := range ctx.StubList {
			if st.Used {
				s.entries = append(s.entries, symtabEntry{stub: st, name: s.strs.Put(st.Name())})
			}
		}
	}

	s.firstGlobal = len(s.entries)
	for _, sym := range ctx.Syms {
		if !keepGlobal(sym) {
			continue
		}
		s.symIndex[sym] = uint32(len(s.entries))
		s.entries = append(s.entries, symtabEntry{sym: sym, name: s.strs.Put(sym.Name)})
	}

	s.Shdr.Size = uint64(len(s.entries) * SymSize)
	s.Shdr.Info = uint32(s.firstGlobal)
	s.Shdr.Link = uint32(ctx.Strtab.Shndx)
}

func (s *SymtabSection) CopyBuf(ctx *Context) {
	base := ctx.Buf[s.Shdr.Offset:]
	for i, e := range s.entries {
		if i == 0 {
			utils.WriteWith(base, ctx.Order, Sym{})
			continue
		}
		var esym Sym
		if e.osec != nil {
			esym = Sym{
				Info:  SymInfo(elf.STB_LOCAL, uint8(elf.STT_SECTION)),
				Shndx: uint16(e.osec.GetShndx()),
				Val:   e.osec.GetShdr().Addr,
			}
		} else if e.stub != nil {
			esym = stubElfSym(e.stub)
		} else {
			esym = outputElfSym(ctx, e.sym)
		}
		esym.Name = e.name
		utils.WriteWith(base[i*SymSize:], ctx.Order, esym)
	}
}

func stubElfSym(st *Stub) Sym {
	return Sym{
		Info:  SymInfo(elf.STB_LOCAL, uint8(elf.STT_FUNC)),
		Shndx: uint16(st.Group.Osec.Shndx),
		Val:   st.Addr(),
		Size:  st.Size,
	}
}

// outputElfSym converts a resolved symbol to its output form.
func outputElfSym(ctx *Context, sym *Symbol) Sym {
	bind := sym.Bind
	if sym.IsLocal {
		bind = elf.STB_LOCAL
	}
	esym := Sym{
		Info:  SymInfo(bind, sym.Type),
		Other: sym.Other,
		Size:  sym.Size,
	}

	switch {
	case sym.Flags&NeedsCopyReloc != 0:
		esym.Shndx = uint16(ctx.Dynbss.Sec.OutputSection.Shndx)
		esym.Val = symbolAddr(ctx, sym)
	case sym.Flags&NeedsGlobalEntry != 0:
		esym.Shndx = uint16(elf.SHN_UNDEF)
		esym.Val = symbolAddr(ctx, sym)
	case sym.Dso != nil || sym.IsUndef():
		esym.Shndx = uint16(elf.SHN_UNDEF)
	case sym.SectionFragment != nil:
		esym.Shndx = uint16(sym.SectionFragment.OutputSection.Shndx)
		esym.Val = sym.GetAddr()
	case sym.InputSection != nil:
		esym.Shndx = uint16(sym.InputSection.OutputSection.Shndx)
		esym.Val = sym.GetAddr()
		if sym.InputSection.OutputSection.Shndx == 0 {
			esym.Shndx = uint16(elf.SHN_ABS)
		}
	default:
		esym.Shndx = uint16(elf.SHN_ABS)
		esym.Val = sym.Value
	}
	return esym
}
