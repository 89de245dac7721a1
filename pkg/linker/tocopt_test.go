package linker

import (
	"debug/elf"
	"reflect"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

const testDataAddr = 0x10050000

func TestOptimizeTOC(t *testing.T) {
	ctx, _ := stubTestContext(MachineTypePPC64LE)

	toc := data(".toc", 24)
	toc.relas = []testRela{
		{off: 0, typ: ppc64.R_PPC64_ADDR64, sym: "v"},
		{off: 8, typ: ppc64.R_PPC64_ADDR64, sym: "v", addend: 8},
		{off: 16, typ: ppc64.R_PPC64_ADDR64, sym: "v", addend: 16},
	}
	code := text(".text",
		ppc64.OP_ADDIS|3<<21|2<<16, // addis r3,r2,.LC0@toc@ha
		ppc64.OP_LD|3<<21|3<<16,    // ld r3,.LC0@toc@l(r3)
		ppc64.OP_LD|4<<21|2<<16,    // ld r4,.LC2@toc(r2)
		ppc64.OP_BLR)
	code.relas = []testRela{
		{off: 0, typ: ppc64.R_PPC64_TOC16_HA, sym: "#.toc"},
		{off: 4, typ: ppc64.R_PPC64_TOC16_LO_DS, sym: "#.toc"},
		{off: 8, typ: ppc64.R_PPC64_TOC16, sym: "#.toc", addend: 16},
	}
	o := addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{code, toc, data(".data", 32)},
		syms: []testSym{
			sectionSym(".toc"),
			{name: ".LC1", bind: elf.STB_LOCAL, typ: elf.STT_OBJECT, sec: ".toc", value: 8},
			{name: "v", bind: elf.STB_GLOBAL, typ: elf.STT_OBJECT, sec: ".data", size: 32},
		},
	}, false)
	ResolveSymbols(ctx)
	place(findSection(o, ".data"), testDataAddr)
	tocSec, textSec := findSection(o, ".toc"), findSection(o, ".text")
	v := ctx.SymbolMap["v"]

	OptimizeTOC(ctx)

	// Slot 0 is replaced by direct addressing of v. Slot 1 is named and
	// slot 2 is read by an instruction that cannot be rewritten.
	if tocSec.ShSize != 16 {
		t.Fatalf(".toc size = %d, want 16", tocSec.ShSize)
	}
	var offs []uint64
	var addends []int64
	for _, rel := range tocSec.GetRels() {
		offs = append(offs, rel.Offset)
		addends = append(addends, rel.Addend)
	}
	if !reflect.DeepEqual(offs, []uint64{0, 8}) || !reflect.DeepEqual(addends, []int64{8, 16}) {
		t.Errorf(".toc relocations at %v with addends %v", offs, addends)
	}

	if got, want := ppc64.Mnemonics(textSec.Contents, ctx.Order), []string{"addis", "addi", "ld", "blr"}; !reflect.DeepEqual(got, want) {
		t.Errorf("code = %v, want %v", got, want)
	}
	rels := textSec.GetRels()
	for _, rel := range rels[:2] {
		if o.Symbols[rel.Sym()] != v || rel.Addend != 0 {
			t.Errorf("%s at %d against %s+%d", ppc64.RelocType(rel.Type()), rel.Offset,
				o.Symbols[rel.Sym()].Name, rel.Addend)
		}
	}
	if typ := ppc64.RelocType(rels[1].Type()); typ != ppc64.R_PPC64_TOC16_LO {
		t.Errorf("low part relocation = %s", typ)
	}

	// Surviving slots move down by the bytes removed in front of them.
	if rels[2].Addend != 16-8 {
		t.Errorf("slot 2 reference addend = %d, want 8", rels[2].Addend)
	}
	if lc1 := o.Symbols[2]; lc1.Name != ".LC1" || lc1.Value != 8-8 {
		t.Errorf("%s = %d, want 0", lc1.Name, lc1.Value)
	}
	if ctx.Diag.Errors != 0 {
		t.Errorf("unexpected errors: %s", ctx.Diag.W)
	}
}

func TestOptimizeTOCDisabled(t *testing.T) {
	ctx, _ := stubTestContext(MachineTypePPC64LE)
	ctx.Args.NoTOCOptimize = true

	toc := data(".toc", 8)
	toc.relas = []testRela{{off: 0, typ: ppc64.R_PPC64_ADDR64, sym: "v"}}
	code := text(".text", ppc64.OP_ADDIS|3<<21|2<<16, ppc64.OP_LD|3<<21|3<<16)
	code.relas = []testRela{
		{off: 0, typ: ppc64.R_PPC64_TOC16_HA, sym: "#.toc"},
		{off: 4, typ: ppc64.R_PPC64_TOC16_LO_DS, sym: "#.toc"},
	}
	o := addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{code, toc, data(".data", 8)},
		syms: []testSym{
			sectionSym(".toc"),
			{name: "v", bind: elf.STB_GLOBAL, typ: elf.STT_OBJECT, sec: ".data", size: 8},
		},
	}, false)
	ResolveSymbols(ctx)
	place(findSection(o, ".data"), testDataAddr)

	OptimizeTOC(ctx)
	if size := findSection(o, ".toc").ShSize; size != 8 {
		t.Errorf(".toc size = %d, want 8", size)
	}
}

func TestOptimizeTOCKeepsSlotsOutOfGroupReach(t *testing.T) {
	// v is 240MB below the first TOC base but more than 2GB below the
	// object's own .toc, which may end up as the base of a later group.
	const lowData = 0x1000000
	const tocOff = 0x78000000

	ctx, _ := stubTestContext(MachineTypePPC64LE)
	toc := data(".toc", 8)
	toc.relas = []testRela{{off: 0, typ: ppc64.R_PPC64_ADDR64, sym: "v"}}
	code := text(".text", ppc64.OP_ADDIS|3<<21|2<<16, ppc64.OP_LD|3<<21|3<<16)
	code.relas = []testRela{
		{off: 0, typ: ppc64.R_PPC64_TOC16_HA, sym: "#.toc"},
		{off: 4, typ: ppc64.R_PPC64_TOC16_LO_DS, sym: "#.toc"},
	}
	o := addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{code, toc, data(".data", 8)},
		syms: []testSym{
			sectionSym(".toc"),
			{name: "v", bind: elf.STB_GLOBAL, typ: elf.STT_OBJECT, sec: ".data", size: 8},
		},
	}, false)
	ResolveSymbols(ctx)
	place(findSection(o, ".data"), lowData)
	tocSec := findSection(o, ".toc")
	tocSec.Offset = testGotAddr + tocOff - tocSec.OutputSection.Shdr.Addr

	OptimizeTOC(ctx)

	if tocSec.ShSize != 8 {
		t.Errorf(".toc size = %d, want 8", tocSec.ShSize)
	}
	if got, want := ppc64.Mnemonics(findSection(o, ".text").Contents, ctx.Order), []string{"addis", "ld"}; !reflect.DeepEqual(got, want) {
		t.Errorf("code = %v, want %v", got, want)
	}
}
