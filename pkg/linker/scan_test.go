package linker

import (
	"debug/elf"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

func scanTestObject() *testObj {
	code := text(".text", ppc64.OP_NOP, ppc64.OP_NOP, ppc64.OP_BL, ppc64.OP_NOP, ppc64.OP_BL, ppc64.OP_NOP)
	code.relas = []testRela{
		{off: 0, typ: ppc64.R_PPC64_GOT16_HA, sym: "x"},
		{off: 4, typ: ppc64.R_PPC64_GOT16_LO_DS, sym: "x"},
		{off: 8, typ: ppc64.R_PPC64_REL24, sym: "ifn"},
		{off: 16, typ: ppc64.R_PPC64_REL24, sym: "w"},
	}
	weak := undef("w")
	weak.bind = elf.STB_WEAK
	return &testObj{
		secs: []testSection{code, text(".text.ifn", ppc64.OP_BLR), data(".data", 8)},
		syms: []testSym{
			global("_start", ".text", 0),
			{name: "x", bind: elf.STB_GLOBAL, typ: elf.STT_OBJECT, sec: ".data", size: 8},
			{name: "ifn", bind: elf.STB_GLOBAL, typ: elf.SymType(STT_GNU_IFUNC), sec: ".text.ifn"},
			weak,
		},
	}
}

func TestCheckRelocsScansOnce(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	o := addObject(t, ctx, "a.o", scanTestObject(), false)
	ResolveSymbols(ctx)
	isec := findSection(o, ".text")

	CheckRelocs(ctx, isec)
	CheckRelocs(ctx, isec)

	x := ctx.SymbolMap["x"]
	if len(x.Got) != 1 || x.Got[0].Alloc.Refcount() != 2 {
		t.Fatalf("x GOT entries = %d", len(x.Got))
	}
	if o.Got == nil || len(o.Got.Entries) != 1 {
		t.Errorf("object GOT not created")
	}
	ifn := ctx.SymbolMap["ifn"]
	if len(ifn.Plt) != 1 || ifn.Plt[0].Alloc.Refcount() != 1 || ifn.TLSMask&PltIfunc == 0 {
		t.Errorf("ifunc PLT entry missing")
	}
	if w := ctx.SymbolMap["w"]; len(w.Plt) != 0 {
		t.Errorf("undefined weak call got a PLT entry")
	}
	aux := ctx.Aux(isec)
	if !aux.HasTOCReloc || !aux.Scanned || aux.Has14Branch {
		t.Errorf("aux = %+v", *aux)
	}
}

func TestPlacePltEntries(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	o := addObject(t, ctx, "a.o", scanTestObject(), false)
	ResolveSymbols(ctx)
	ctx.Internal = NewInternalFile(ctx)
	ctx.Plt = NewPltSection(ctx, PltMain)
	ctx.Iplt = NewPltSection(ctx, PltIFunc)
	ctx.PltLocal = NewPltSection(ctx, PltLocal)
	CheckRelocs(ctx, findSection(o, ".text"))

	unused := ctx.SymbolMap["x"].GetPlt(8)

	placePltEntries(ctx)

	ifn := ctx.SymbolMap["ifn"].Plt[0]
	if ifn.Table != PltIFunc || ifn.Alloc.Offset() != 0 || ctx.Iplt.NumEntries() != 1 {
		t.Errorf("ifunc entry table %d", ifn.Table)
	}
	if !unused.Alloc.IsReclaimed() {
		t.Errorf("unreferenced PLT entry kept")
	}
	if ctx.Plt.Size(ctx) != 0 || ctx.Iplt.Size(ctx) != 8 {
		t.Errorf("sizes plt %d iplt %d", ctx.Plt.Size(ctx), ctx.Iplt.Size(ctx))
	}
}
