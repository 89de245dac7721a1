package linker

import "sort"

// MergeableSection is an SHF_MERGE input section split into pieces.
// @Strs: piece contents, NUL included for string sections
// @FragOffsets: offset of each piece in the input section
// @Fragments: the deduplicated piece each entry of Strs landed in
type MergeableSection struct {
	Parent      *MergedSection
	P2Align     uint8
	Strs        []string
	FragOffsets []uint64
	Fragments   []*SectionFragment
}

func (m *MergeableSection) GetFragment(offset uint64) (*SectionFragment, uint64) {
	pos := sort.Search(len(m.FragOffsets), func(i int) bool {
		return offset < m.FragOffsets[i]
	})

	if pos == 0 {
		return nil, 0
	}

	idx := pos - 1
	return m.Fragments[idx], offset - m.FragOffsets[idx]
}
