package linker

import (
	"debug/elf"
)

// sectionMap translates offsets of a compacted section. Offsets inside a
// dropped unit have no new home.
type sectionMap struct {
	unit   uint64
	newOff []uint64
	keep   []bool
}

func (m *sectionMap) Map(off uint64) (uint64, bool) {
	i := off / m.unit
	if i >= uint64(len(m.keep)) {
		if i == uint64(len(m.keep)) && off%m.unit == 0 {
			return m.size(), true
		}
		return 0, false
	}
	if !m.keep[i] {
		return 0, false
	}
	return m.newOff[i] + off%m.unit, true
}

func (m *sectionMap) size() uint64 {
	n := uint64(0)
	for _, k := range m.keep {
		if k {
			n += m.unit
		}
	}
	return n
}

// compactSection removes the units of isec whose keep flag is false and
// moves everything that points into the section along: the section's own
// relocations, symbols defined in it and section symbol references from
// the rest of the object.
func compactSection(ctx *Context, isec *InputSection, unit uint64, keep []bool) *sectionMap {
	m := &sectionMap{unit: unit, newOff: make([]uint64, len(keep)), keep: keep}
	off := uint64(0)
	for i, k := range keep {
		m.newOff[i] = off
		if k {
			if off != uint64(i)*unit {
				copy(isec.Contents[off:off+unit], isec.Contents[uint64(i)*unit:uint64(i+1)*unit])
			}
			off += unit
		}
	}
	isec.ShSize = off

	rels := isec.GetRels()
	kept := rels[:0]
	for _, rel := range rels {
		if n, ok := m.Map(rel.Offset); ok && rel.Offset < uint64(len(keep))*unit {
			rel.Offset = n
			kept = append(kept, rel)
		}
	}
	isec.Rels = kept

	o := isec.File
	for i, sym := range o.Symbols {
		if sym == nil || sym.InputSection != isec || sym.Type == uint8(elf.STT_SECTION) {
			continue
		}
		if i >= o.FirstGlobal && (sym.File != o || sym.SymIdx != i) {
			continue
		}
		if n, ok := m.Map(sym.Value); ok {
			sym.Value = n
		} else {
			// defined in a dropped unit: absolute zero from now on
			sym.SetInputSection(nil)
			sym.Value = 0
		}
	}

	for _, other := range o.Sections {
		if other == nil || !other.IsAlive || other == isec {
			continue
		}
		rels := other.GetRels()
		for j := range rels {
			rel := &rels[j]
			if int(rel.Sym()) >= o.FirstGlobal {
				continue
			}
			sym := o.Symbols[rel.Sym()]
			if sym.InputSection != isec || sym.Type != uint8(elf.STT_SECTION) {
				continue
			}
			n, ok := m.Map(uint64(rel.Addend))
			if !ok {
				if other.IsAlloc() {
					ctx.ErrorfAt(other, rel.Offset, "reference to a discarded entry of %s at 0x%x",
						isec.Name(), rel.Addend)
				}
				n = 0
			}
			rel.Addend = int64(n)
		}
	}
	return m
}
