package linker

import (
	"debug/elf"
	"sort"
	"strings"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

// OpdEntry is one ELFv1 function descriptor: code address, TOC pointer
// and, in the long form, an environment pointer.
type OpdEntry struct {
	Off     uint64
	Sym     *Symbol
	Addend  int64
	Code    *InputSection
	Removed bool
}

// CodeAddr is the entry point the descriptor names.
func (e *OpdEntry) CodeAddr(ctx *Context) uint64 {
	return symbolAddr(ctx, e.Sym) + uint64(e.Addend)
}

// OpdInfo holds the descriptors of one .opd section, sorted by offset.
type OpdInfo struct {
	Sec     *InputSection
	EntSize uint64
	Entries []*OpdEntry
}

// Find returns the live descriptor starting at off.
func (info *OpdInfo) Find(off uint64) *OpdEntry {
	i := sort.Search(len(info.Entries), func(i int) bool {
		return info.Entries[i].Off >= off
	})
	if i < len(info.Entries) && info.Entries[i].Off == off && !info.Entries[i].Removed {
		return info.Entries[i]
	}
	return nil
}

// ReadOpd parses the .opd sections of o. Descriptors are 24 bytes, or 16
// when no entry carries a static chain word.
func ReadOpd(ctx *Context, o *ObjectFile) {
	o.Opd = map[uint32]*OpdInfo{}
	for _, isec := range o.Sections {
		if isec == nil || isec.Name() != ".opd" {
			continue
		}
		info := parseOpd(ctx, isec)
		if info != nil {
			o.Opd[isec.Shndx] = info
		}
	}
}

func parseOpd(ctx *Context, isec *InputSection) *OpdInfo {
	rels := isec.GetRels()
	var codeRels []int
	for i := range rels {
		if ppc64.RelocType(rels[i].Type()) == ppc64.R_PPC64_ADDR64 {
			codeRels = append(codeRels, i)
		}
	}
	if len(codeRels) == 0 {
		return nil
	}

	entSize := uint64(24)
	if len(codeRels) > 1 && rels[codeRels[1]].Offset-rels[codeRels[0]].Offset == 16 {
		entSize = 16
	} else if len(codeRels) == 1 && isec.ShSize == 16 {
		entSize = 16
	}
	if isec.ShSize%entSize != 0 {
		ctx.Fatalf("%s: .opd size 0x%x is not a multiple of %d", isec.Location(0), isec.ShSize, entSize)
	}

	info := &OpdInfo{Sec: isec, EntSize: entSize}
	o := isec.File
	for _, i := range codeRels {
		rel := &rels[i]
		if rel.Offset%entSize != 0 {
			ctx.Fatalf("%s: misaligned function descriptor", isec.Location(rel.Offset))
		}
		if int(rel.Sym()) >= len(o.Symbols) {
			ctx.Fatalf("%s: bad symbol index %d in .opd", isec.Location(rel.Offset), rel.Sym())
		}
		sym := o.Symbols[rel.Sym()]
		info.Entries = append(info.Entries, &OpdEntry{
			Off:    rel.Offset,
			Sym:    sym,
			Addend: rel.Addend,
			Code:   sym.InputSection,
		})
	}
	for i := 1; i < len(info.Entries); i++ {
		if info.Entries[i].Off == info.Entries[i-1].Off {
			ctx.Fatalf("%s: two code addresses in one function descriptor",
				isec.Location(info.Entries[i].Off))
		}
	}
	return info
}

// opdCodeDead reports whether the function an entry describes did not
// make it into the output, either through COMDAT or --gc-sections.
func opdCodeDead(e *OpdEntry) bool {
	return e.Code != nil && (!e.Code.IsAlive || e.Code.Discarded)
}

// EditOPD drops descriptors whose function was discarded and closes the
// gaps.
func EditOPD(ctx *Context) {
	if ctx.ABI != 1 || ctx.Args.NoOPDOptimize {
		return
	}
	for _, o := range ctx.Objs {
		for _, info := range o.Opd {
			if !info.Sec.IsAlive {
				continue
			}
			n := int(info.Sec.ShSize / info.EntSize)
			keep := make([]bool, n)
			for i := range keep {
				keep[i] = true
			}
			removed := 0
			for _, e := range info.Entries {
				if opdCodeDead(e) {
					e.Removed = true
					keep[e.Off/info.EntSize] = false
					removed++
				}
			}
			if removed == 0 {
				continue
			}

			m := compactSection(ctx, info.Sec, info.EntSize, keep)
			live := info.Entries[:0]
			for _, e := range info.Entries {
				if e.Removed {
					continue
				}
				e.Off, _ = m.Map(e.Off)
				live = append(live, e)
			}
			info.Entries = live
			ctx.Logf("%s: removed %d function descriptors", info.Sec.Location(0), removed)
		}
	}
}

// descriptorEntry returns the .opd entry a defined descriptor symbol
// points at.
func descriptorEntry(sym *Symbol) *OpdEntry {
	isec := sym.InputSection
	if isec == nil || isec.File == nil || isec.File.Opd == nil {
		return nil
	}
	info := isec.File.Opd[isec.Shndx]
	if info == nil || info.Sec != isec {
		return nil
	}
	return info.Find(sym.Value)
}

// ResolveDotSymbols links ELFv1 code entry symbols ".foo" with their
// descriptors "foo". An undefined ".foo" is defined at the code address
// of foo's descriptor, or imported along with foo.
func ResolveDotSymbols(ctx *Context) {
	if ctx.ABI != 1 {
		return
	}
	for _, sym := range ctx.Syms {
		if !strings.HasPrefix(sym.Name, ".") || len(sym.Name) < 2 {
			continue
		}
		desc, ok := ctx.SymbolMap[sym.Name[1:]]
		if !ok || desc.IsUndef() {
			continue
		}

		switch {
		case !sym.IsUndef():
		case desc.Dso != nil:
			sym.Dso = desc.Dso
			sym.Type = uint8(elf.STT_FUNC)
			sym.Bind = desc.Bind
			sym.Other = desc.Other
		default:
			e := descriptorEntry(desc)
			if e == nil {
				continue
			}
			sym.File = desc.File
			sym.SymIdx = -1
			sym.Type = uint8(elf.STT_FUNC)
			sym.Bind = desc.Bind
			sym.Other = desc.Other
			if e.Sym.InputSection != nil {
				sym.SetInputSection(e.Sym.InputSection)
				sym.Value = e.Sym.Value + uint64(e.Addend)
			} else {
				sym.SetInputSection(nil)
				sym.Value = e.CodeAddr(ctx)
			}
		}
		sym.Pairing = Pairing{Kind: PairCodeEntry, Peer: desc.ID}
		desc.Pairing = Pairing{Kind: PairDescriptor, Peer: sym.ID}
	}
}
