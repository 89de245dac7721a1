package linker

import (
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

func TestSectionMap(t *testing.T) {
	m := &sectionMap{unit: 8, newOff: []uint64{0, 8, 8}, keep: []bool{true, false, true}}
	tests := []struct {
		off  uint64
		want uint64
		ok   bool
	}{
		{0, 0, true},
		{4, 4, true},
		{8, 0, false},
		{15, 0, false},
		{16, 8, true},
		{20, 12, true},
		{24, 16, true},
		{28, 0, false},
		{32, 0, false},
	}
	for _, tt := range tests {
		got, ok := m.Map(tt.off)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("Map(%d) = %d, %v; want %d, %v", tt.off, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCompactSection(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)

	toc := data(".toc", 24)
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint64(toc.data[i*8:], uint64(0x11*(i+1)))
	}
	toc.relas = []testRela{
		{off: 0, typ: ppc64.R_PPC64_ADDR64, sym: "x"},
		{off: 8, typ: ppc64.R_PPC64_ADDR64, sym: "x", addend: 1},
		{off: 16, typ: ppc64.R_PPC64_ADDR64, sym: "x", addend: 2},
	}
	code := text(".text", 0xe8620000, ppc64.OP_BLR)
	code.relas = []testRela{{off: 0, typ: ppc64.R_PPC64_TOC16_LO_DS, sym: "#.toc", addend: 16}}

	o := addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{code, toc},
		syms: []testSym{
			sectionSym(".toc"),
			{name: "lbl", bind: elf.STB_LOCAL, typ: elf.STT_OBJECT, sec: ".toc", value: 16},
			undef("x"),
		},
	}, false)
	tocSec := findSection(o, ".toc")
	textSec := findSection(o, ".text")

	m := compactSection(ctx, tocSec, 8, []bool{true, false, true})

	if tocSec.ShSize != 16 || m.size() != 16 {
		t.Fatalf("size = %d", tocSec.ShSize)
	}
	if v := binary.LittleEndian.Uint64(tocSec.Contents[8:]); v != 0x33 {
		t.Errorf("third entry not moved down: %#x", v)
	}

	rels := tocSec.GetRels()
	if len(rels) != 2 || rels[0].Offset != 0 || rels[1].Offset != 8 || rels[1].Addend != 2 {
		t.Errorf("toc relocations = %+v", rels)
	}
	if got := textSec.GetRels()[0].Addend; got != 8 {
		t.Errorf("section symbol reference addend = %d, want 8", got)
	}
	if lbl := o.Symbols[2]; lbl.Name != "lbl" || lbl.Value != 8 {
		t.Errorf("lbl = %s@%d", lbl.Name, lbl.Value)
	}
	if ctx.Diag.Errors != 0 {
		t.Errorf("unexpected errors")
	}
}

func TestCompactSectionReportsDroppedReference(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	toc := data(".toc", 16)
	code := text(".text", 0xe8620000, ppc64.OP_BLR)
	code.relas = []testRela{{off: 0, typ: ppc64.R_PPC64_TOC16_LO_DS, sym: "#.toc", addend: 8}}
	o := addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{code, toc},
		syms: []testSym{sectionSym(".toc")},
	}, false)

	compactSection(ctx, findSection(o, ".toc"), 8, []bool{true, false})
	if ctx.Diag.Errors != 1 {
		t.Errorf("errors = %d, want 1", ctx.Diag.Errors)
	}
}
