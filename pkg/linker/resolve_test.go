package linker

import (
	"bytes"
	"debug/elf"
	"strings"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

func TestStrongDefinitionWins(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	weak := global("foo", ".text", 0)
	weak.bind = elf.STB_WEAK
	a := addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{text(".text", ppc64.OP_BLR)},
		syms: []testSym{weak},
	}, false)
	b := addObject(t, ctx, "b.o", &testObj{
		secs: []testSection{text(".text", ppc64.OP_NOP, ppc64.OP_BLR)},
		syms: []testSym{global("foo", ".text", 4)},
	}, false)

	ResolveSymbols(ctx)

	foo := ctx.SymbolMap["foo"]
	if foo.File != b {
		t.Fatalf("foo resolved to %v, want %v", foo.File, b)
	}
	if foo.Value != 4 || foo.InputSection != findSection(b, ".text") {
		t.Errorf("foo = %#x in %v", foo.Value, foo.InputSection)
	}
	if len(ctx.Objs) != 2 || !a.IsAlive {
		t.Errorf("objects: %v", ctx.Objs)
	}
}

func TestArchiveMembersPulledByReference(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	main := addObject(t, ctx, "main.o", &testObj{
		secs: []testSection{text(".text", ppc64.OP_NOP, ppc64.OP_BLR)},
		syms: []testSym{global("_start", ".text", 0), undef("bar")},
	}, false)
	lib := addObject(t, ctx, "libx.a(bar.o)", &testObj{
		secs: []testSection{text(".text", ppc64.OP_BLR)},
		syms: []testSym{global("bar", ".text", 0)},
	}, true)
	addObject(t, ctx, "libx.a(baz.o)", &testObj{
		secs: []testSection{text(".text", ppc64.OP_BLR)},
		syms: []testSym{global("baz", ".text", 0)},
	}, true)

	ResolveSymbols(ctx)

	if len(ctx.Objs) != 2 || ctx.Objs[0] != main || ctx.Objs[1] != lib {
		t.Fatalf("live objects = %v", ctx.Objs)
	}
	if ctx.SymbolMap["bar"].File != lib {
		t.Errorf("bar not resolved to the archive member")
	}
	if !ctx.SymbolMap["baz"].IsUndef() {
		t.Errorf("baz still defined by an unused member")
	}
	if !ctx.SymbolMap["bar"].StrongRef {
		t.Errorf("bar should be marked as strongly referenced")
	}
}

func TestComdatKeepsFirstGroup(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	group := testSection{name: ".group", typ: elf.SHT_GROUP, signature: "inl",
		members: []string{".text.inl"}}

	weak := global("inl", ".text.inl", 0)
	weak.bind = elf.STB_WEAK
	first := addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{group, text(".text.inl", ppc64.OP_BLR)},
		syms: []testSym{weak},
	}, false)
	// A strong definition in the later copy wins resolution at first and
	// must move back once its group is discarded.
	second := addObject(t, ctx, "b.o", &testObj{
		secs: []testSection{group, text(".text.inl", ppc64.OP_NOP, ppc64.OP_BLR)},
		syms: []testSym{global("inl", ".text.inl", 0)},
	}, false)

	if len(first.Comdats) != 1 || first.Comdats[0].Signature != "inl" {
		t.Fatalf("comdat groups = %+v", first.Comdats)
	}

	ResolveSymbols(ctx)

	if isec := findSection(first, ".text.inl"); !isec.IsAlive || isec.Discarded {
		t.Errorf("first copy was dropped")
	}
	if isec := findSection(second, ".text.inl"); isec.IsAlive || !isec.Discarded {
		t.Errorf("second copy was kept")
	}
	if sym := ctx.SymbolMap["inl"]; sym.File != first || sym.InputSection != findSection(first, ".text.inl") {
		t.Errorf("inl resolved to %v", sym.File)
	}
	if ctx.ComdatGroups["inl"] != first {
		t.Errorf("group owner = %v", ctx.ComdatGroups["inl"])
	}
}

func TestReportUndefinedSymbols(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	weak := undef("maybe")
	weak.bind = elf.STB_WEAK
	addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{text(".text", ppc64.OP_BLR)},
		syms: []testSym{global("_start", ".text", 0), undef("missing"), weak},
	}, false)
	addObject(t, ctx, "b.o", &testObj{
		secs: []testSection{text(".text", ppc64.OP_BLR)},
		syms: []testSym{global("other", ".text", 0), undef("missing")},
	}, false)

	ResolveSymbols(ctx)
	ReportUndefinedSymbols(ctx)

	out := ctx.Diag.W.(*bytes.Buffer).String()
	if ctx.Diag.Errors != 1 {
		t.Fatalf("errors = %d, output:\n%s", ctx.Diag.Errors, out)
	}
	if !strings.Contains(out, "undefined symbol: missing") || !strings.Contains(out, ">>> referenced by a.o") {
		t.Errorf("unexpected diagnostic:\n%s", out)
	}
	if strings.Contains(out, "maybe") {
		t.Errorf("weak reference reported:\n%s", out)
	}

	ctx.Diag.Errors = 0
	ctx.Args.Shared = true
	ReportUndefinedSymbols(ctx)
	if ctx.Diag.Errors != 0 {
		t.Errorf("shared output reported undefined symbols")
	}
}
