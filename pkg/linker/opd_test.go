package linker

import (
	"debug/elf"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

func opdTestObject() *testObj {
	opd := data(".opd", 48)
	opd.relas = []testRela{
		{off: 0, typ: ppc64.R_PPC64_ADDR64, sym: "#.text.f"},
		{off: 24, typ: ppc64.R_PPC64_ADDR64, sym: "#.text.g", addend: 4},
	}
	desc := func(name string, off uint64) testSym {
		return testSym{name: name, bind: elf.STB_GLOBAL, typ: elf.STT_FUNC, sec: ".opd", value: off, size: 24}
	}
	return &testObj{
		flags: 1,
		secs: []testSection{
			text(".text.f", ppc64.OP_BLR),
			text(".text.g", ppc64.OP_NOP, ppc64.OP_BLR),
			opd,
		},
		syms: []testSym{
			sectionSym(".text.f"),
			sectionSym(".text.g"),
			desc("f", 0),
			desc("g", 24),
			undef(".f"),
			undef(".g"),
		},
	}
}

func TestReadOpd(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64)
	o := addObject(t, ctx, "a.o", opdTestObject(), false)
	ResolveSymbols(ctx)
	ReadOpd(ctx, o)

	info := o.Opd[findSection(o, ".opd").Shndx]
	if info == nil || info.EntSize != 24 || len(info.Entries) != 2 {
		t.Fatalf("opd info = %+v", info)
	}
	e := info.Find(24)
	if e == nil || e.Code != findSection(o, ".text.g") || e.Addend != 4 {
		t.Errorf("descriptor at 24 = %+v", e)
	}
	if info.Find(8) != nil {
		t.Errorf("found a descriptor in the middle of an entry")
	}

	ResolveDotSymbols(ctx)
	dotG := ctx.SymbolMap[".g"]
	if dotG.IsUndef() || dotG.InputSection != findSection(o, ".text.g") || dotG.Value != 4 {
		t.Errorf(".g = %v+%d", dotG.InputSection, dotG.Value)
	}
	if dotG.Pairing.Kind != PairCodeEntry || ctx.Symbol(dotG.Pairing.Peer) != ctx.SymbolMap["g"] {
		t.Errorf(".g pairing = %+v", dotG.Pairing)
	}
}

func TestEditOPDDropsDeadDescriptors(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64)
	o := addObject(t, ctx, "a.o", opdTestObject(), false)
	ResolveSymbols(ctx)
	ReadOpd(ctx, o)
	findSection(o, ".text.f").IsAlive = false

	EditOPD(ctx)

	opd := findSection(o, ".opd")
	info := o.Opd[opd.Shndx]
	if opd.ShSize != 24 || len(info.Entries) != 1 || info.Entries[0].Off != 0 {
		t.Fatalf("opd size %d, entries %+v", opd.ShSize, info.Entries)
	}
	if rels := opd.GetRels(); len(rels) != 1 || rels[0].Offset != 0 || rels[0].Addend != 4 {
		t.Errorf("opd relocations = %+v", rels)
	}
	if g := ctx.SymbolMap["g"]; g.Value != 0 || g.InputSection != opd {
		t.Errorf("g = %v+%d", g.InputSection, g.Value)
	}
	if f := ctx.SymbolMap["f"]; !f.IsAbsolute() {
		t.Errorf("f still points into .opd")
	}

	ResolveDotSymbols(ctx)
	if ctx.SymbolMap[".g"].InputSection != findSection(o, ".text.g") {
		t.Errorf(".g not resolved through the moved descriptor")
	}
	if !ctx.SymbolMap[".f"].IsUndef() {
		t.Errorf(".f resolved to a removed descriptor")
	}
}
