package linker

import (
	"reflect"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

func TestDefineSaveResFunctions(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	ctx.Internal = NewInternalFile(ctx)
	ctx.Sfpr = NewSaveResSection(ctx)
	save28 := GetSymbolByName(ctx, "_savegpr0_28")
	save30 := GetSymbolByName(ctx, "_savegpr0_30")
	rest := GetSymbolByName(ctx, "_restvr_31")

	DefineSaveResFunctions(ctx)

	// _savegpr0_28: four stores, the r0 store and blr.
	// _restvr_31: li, lvx and blr.
	if got := ctx.Sfpr.Size(ctx); got != 6*4+3*4 {
		t.Fatalf("size = %d", got)
	}
	if save28.Value != 0 || save30.Value != 8 || rest.Value != 24 {
		t.Errorf("values = %d %d %d", save28.Value, save30.Value, rest.Value)
	}
	for _, sym := range []*Symbol{save28, save30, rest} {
		if sym.IsUndef() || sym.InputSection != ctx.Sfpr.Sec {
			t.Errorf("%s not defined in .sfpr", sym.Name)
		}
	}
	if _, ok := ctx.SymbolMap["_savegpr0_29"]; ok {
		t.Errorf("unreferenced entry got a symbol")
	}

	buf := make([]byte, ctx.Sfpr.Size(ctx))
	ctx.Sfpr.WriteTo(ctx, buf)
	want := []string{"std", "std", "std", "std", "std", "blr", "li", "lvx", "blr"}
	if got := ppc64.Mnemonics(buf, ctx.Order); !reflect.DeepEqual(got, want) {
		t.Errorf("mnemonics = %v, want %v", got, want)
	}
	if insn := ctx.Order.Uint32(buf); insn != ppc64.EncodeDS(ppc64.OPCD_DS_STD, 28, 1, -32, 0) {
		t.Errorf("first store = %#x", insn)
	}
}

func TestSaveResDisabled(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	ctx.Args.SaveRestoreFuncs = false
	ctx.Internal = NewInternalFile(ctx)
	ctx.Sfpr = NewSaveResSection(ctx)
	sym := GetSymbolByName(ctx, "_restgpr1_14")

	DefineSaveResFunctions(ctx)
	if !sym.IsUndef() || ctx.Sfpr.Size(ctx) != 0 {
		t.Errorf("functions defined with --no-save-restore-funcs")
	}
}
