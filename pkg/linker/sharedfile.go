package linker

import (
	"bytes"
	"debug/elf"
	"fmt"
	"path/filepath"
	"strings"
)

// SharedFile is a shared object named on the command line. Only its
// dynamic symbol table matters: the symbols it defines satisfy references
// left undefined by the relocatable inputs.
type SharedFile struct {
	File    *File
	Soname  string
	Syms    []elf.Symbol
	IsAlive bool
}

func NewSharedFile(file *File) (*SharedFile, error) {
	ef, err := elf.NewFile(bytes.NewReader(file.Contents))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}
	defer ef.Close()

	if ef.Machine != elf.EM_PPC64 || ef.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("%s: not a ppc64 shared object", file.Name)
	}

	syms, err := ef.DynamicSymbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}

	s := &SharedFile{File: file, Soname: filepath.Base(file.Name)}
	if names, err := ef.DynString(elf.DT_SONAME); err == nil && len(names) > 0 {
		s.Soname = names[0]
	}

	for _, sym := range syms {
		bind := elf.ST_BIND(sym.Info)
		if sym.Section == elf.SHN_UNDEF || bind == elf.STB_LOCAL {
			continue
		}
		vis := elf.ST_VISIBILITY(sym.Other)
		if vis == elf.STV_HIDDEN || vis == elf.STV_INTERNAL {
			continue
		}
		s.Syms = append(s.Syms, sym)
	}
	return s, nil
}

// ResolveSymbols binds globals that no relocatable input defines.
func (s *SharedFile) ResolveSymbols(ctx *Context) {
	for i := range s.Syms {
		esym := &s.Syms[i]
		sym, ok := ctx.SymbolMap[esym.Name]
		if !ok || !sym.IsUndef() {
			continue
		}
		sym.Dso = s
		sym.Value = esym.Value
		sym.Size = esym.Size
		sym.Type = uint8(elf.ST_TYPE(esym.Info))
		sym.Bind = elf.ST_BIND(esym.Info)
		sym.Other = esym.Other
		s.IsAlive = true
	}

	// ELFv1 code entry symbols ".foo" of imported functions call through
	// the descriptor's PLT entry.
	for name, sym := range ctx.SymbolMap {
		if !strings.HasPrefix(name, ".") || !sym.IsUndef() {
			continue
		}
		desc, ok := ctx.SymbolMap[name[1:]]
		if !ok || desc.Dso != s {
			continue
		}
		sym.Dso = s
		sym.Type = uint8(elf.STT_FUNC)
		sym.Bind = desc.Bind
		sym.Pairing = Pairing{Kind: PairCodeEntry, Peer: desc.ID}
		desc.Pairing = Pairing{Kind: PairDescriptor, Peer: sym.ID}
	}
}

func (s *SharedFile) String() string {
	return s.File.Name
}
