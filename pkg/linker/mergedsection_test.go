package linker

import (
	"debug/elf"
	"testing"
)

func strSection(contents string) testSection {
	return testSection{name: ".rodata.str1.1", typ: elf.SHT_PROGBITS,
		flags: elf.SHF_ALLOC | elf.SHF_MERGE | elf.SHF_STRINGS, align: 1, entsize: 1, data: []byte(contents)}
}

func TestMergeStrings(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	a := addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{strSection("hi\x00yo\x00")},
		syms: []testSym{
			sectionSym(".rodata.str1.1"),
			{name: "s", bind: elf.STB_LOCAL, typ: elf.STT_OBJECT, sec: ".rodata.str1.1", value: 3},
		},
	}, false)
	addObject(t, ctx, "b.o", &testObj{secs: []testSection{strSection("yo\x00")}}, false)

	ResolveSymbols(ctx)
	RegisterSectionPieces(ctx)
	ComputeMergedSectionSizes(ctx)

	if len(ctx.MergedSections) != 1 {
		t.Fatalf("merged sections = %d", len(ctx.MergedSections))
	}
	m := ctx.MergedSections[0]
	if m.Name != ".rodata.str" || m.Shdr.Size != 6 || len(m.Map) != 2 {
		t.Fatalf("%s: size %d, %d pieces", m.Name, m.Shdr.Size, len(m.Map))
	}
	if m.Shdr.Flags&uint64(elf.SHF_MERGE|elf.SHF_STRINGS) != 0 {
		t.Errorf("merge flags leaked into the output: %#x", m.Shdr.Flags)
	}
	if m.Map["hi\x00"].Offset != 0 || m.Map["yo\x00"].Offset != 3 {
		t.Errorf("piece offsets %d/%d", m.Map["hi\x00"].Offset, m.Map["yo\x00"].Offset)
	}

	s := a.Symbols[2]
	if s.SectionFragment != m.Map["yo\x00"] || s.Value != 0 {
		t.Errorf("s points at %+v + %d", s.SectionFragment, s.Value)
	}

	m.Shdr.Addr = 0x1000
	if addr, ok := a.PieceAddr(1, 4); !ok || addr != 0x1004 {
		t.Errorf("PieceAddr = %#x, %v", addr, ok)
	}
}
