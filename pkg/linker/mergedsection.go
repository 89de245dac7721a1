package linker

import (
	"debug/elf"
	"sort"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// MergedSection is the output side of SHF_MERGE input sections with the
// same name, type and flags. Identical pieces share one fragment.
type MergedSection struct {
	Chunk
	Map map[string]*SectionFragment
}

func NewMergedSection(name string, flags uint64, typ uint32) *MergedSection {
	m := &MergedSection{
		Chunk: NewChunk(),
		Map:   make(map[string]*SectionFragment),
	}
	m.Name = name
	m.Shdr.Flags = flags
	m.Shdr.Type = typ
	return m
}

// mergeFlags are dropped from the output section flags.
const mergeFlags = uint64(elf.SHF_GROUP | elf.SHF_MERGE | elf.SHF_STRINGS | elf.SHF_COMPRESSED)

func GetMergedSectionInstance(ctx *Context, name string, typ uint32, flags uint64) *MergedSection {
	name = GetOutputName(name, flags)
	flags &^= mergeFlags

	for _, osec := range ctx.MergedSections {
		if osec.Name == name && osec.Shdr.Flags == flags && osec.Shdr.Type == typ {
			return osec
		}
	}
	osec := NewMergedSection(name, flags, typ)
	ctx.MergedSections = append(ctx.MergedSections, osec)
	return osec
}

// Insert returns the fragment holding key, raising its alignment to
// p2align.
func (m *MergedSection) Insert(key string, p2align uint32) *SectionFragment {
	frag, ok := m.Map[key]
	if !ok {
		frag = NewSectionFragment(m)
		m.Map[key] = frag
	}
	frag.P2Align = max(frag.P2Align, p2align)
	return frag
}

// sortedKeys orders the pieces by alignment, then length, then contents,
// so the output does not depend on map order.
func (m *MergedSection) sortedKeys() []string {
	keys := make([]string, 0, len(m.Map))
	for key := range m.Map {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		x, y := m.Map[keys[i]], m.Map[keys[j]]
		if x.P2Align != y.P2Align {
			return x.P2Align < y.P2Align
		}
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (m *MergedSection) AssignOffsets() {
	offset := uint64(0)
	p2align := uint32(0)
	for _, key := range m.sortedKeys() {
		frag := m.Map[key]
		offset = utils.AlignTo(offset, 1<<frag.P2Align)
		frag.Offset = offset
		offset += uint64(len(key))
		p2align = max(p2align, frag.P2Align)
	}

	m.Shdr.Size = utils.AlignTo(offset, 1<<p2align)
	m.Shdr.AddrAlign = 1 << p2align
}

func (m *MergedSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[m.Shdr.Offset:]
	for key, frag := range m.Map {
		copy(buf[frag.Offset:], key)
	}
}
