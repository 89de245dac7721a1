package linker

import (
	"debug/elf"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

// gapLayout is the driver layout with address gaps opened in front of
// chosen members, so that tests get long branches without megabytes of
// section contents.
type gapLayout struct {
	gap func(ctx *Context, isec *InputSection) uint64
}

func (l *gapLayout) Relayout(ctx *Context) {
	ComputeSectionSizes(ctx)
	for _, osec := range ctx.OutputSections {
		shift := uint64(0)
		for _, isec := range osec.Members {
			shift += l.gap(ctx, isec)
			isec.Offset += shift
		}
		osec.Shdr.Size += shift
	}
	AssignSectionIndices(ctx)
	for _, chunk := range ctx.Chunks {
		chunk.UpdateShdr(ctx)
	}
	ctx.FileSize = SetOutputSectionOffsets(ctx)
	FixLinkerSymbols(ctx)
	SetTLSRange(ctx)
}

func isStubSection(isec *InputSection, id int) bool {
	g, ok := isec.Synth.(*StubGroup)
	return ok && g.ID == id
}

// callObject has one function calling each of callees with "bl; nop".
func callObject(fn string, callees ...string) *testObj {
	var insns []uint32
	var relas []testRela
	syms := []testSym{global(fn, ".text", 0)}
	for i, callee := range callees {
		insns = append(insns, ppc64.OP_BL, ppc64.OP_NOP)
		relas = append(relas, testRela{off: uint64(8 * i), typ: ppc64.R_PPC64_REL24, sym: callee})
		syms = append(syms, undef(callee))
	}
	insns = append(insns, ppc64.OP_BLR)
	code := text(".text", insns...)
	code.relas = relas
	return &testObj{secs: []testSection{code}, syms: syms}
}

func leafObject(fn string) *testObj {
	return &testObj{
		secs: []testSection{text(".text", ppc64.OP_BLR)},
		syms: []testSym{global(fn, ".text", 0)},
	}
}

func usedStubs(ctx *Context) []*Stub {
	var stubs []*Stub
	for _, g := range ctx.StubGroups {
		for _, s := range g.Stubs {
			if s.Used {
				stubs = append(stubs, s)
			}
		}
	}
	return stubs
}

// relocated returns the contents of isec as the output will hold them.
func relocated(ctx *Context, isec *InputSection) []byte {
	buf := append([]byte(nil), isec.Contents...)
	RelocateSection(ctx, isec, buf)
	return buf
}

// checkStubGroups builds every stub group and checks that the stubs fill
// the sized section exactly.
func checkStubGroups(t *testing.T, ctx *Context) {
	t.Helper()
	for _, g := range ctx.StubGroups {
		buf := make([]byte, g.size)
		if end := BuildStubGroup(ctx, g, buf); end != g.size {
			t.Errorf("stub group %d: built %d bytes, sized %d", g.ID, end, g.size)
		}
	}
}

func TestLinkFarCall(t *testing.T) {
	const far = 40 << 20

	ctx := newTestContext(MachineTypePPC64LE)
	a := addObject(t, ctx, "a.o", callObject("_start", "far"), false)
	b := addObject(t, ctx, "b.o", leafObject("far"), false)
	caller, callee := findSection(a, ".text"), findSection(b, ".text")
	layout := &gapLayout{gap: func(ctx *Context, isec *InputSection) uint64 {
		if isec == callee {
			return far
		}
		return 0
	}}

	Link(ctx, layout)
	if ctx.Diag.Failed() {
		t.Fatalf("link failed: %s", ctx.Diag.W)
	}

	stubs := usedStubs(ctx)
	if len(stubs) != 1 {
		t.Fatalf("%d stubs used, want 1", len(stubs))
	}
	s := stubs[0]
	if s.Kind != StubPltBranch || s.Key.Sym != ctx.SymbolMap["far"] {
		t.Errorf("stub = %s", s.Name())
	}
	if ctx.BranchLT.Sec.ShSize == 0 {
		t.Errorf(".branch_lt is empty")
	}
	if s.Group.ID != ctx.Aux(caller).StubGroup {
		t.Errorf("stub placed in group %d, caller in group %d", s.Group.ID, ctx.Aux(caller).StubGroup)
	}

	buf := relocated(ctx, caller)
	insn := ctx.Order.Uint32(buf)
	if !ppc64.IsBL(insn) || ppc64.BranchOffset(insn) != int64(s.Addr()-caller.GetAddr()) {
		t.Errorf("bl displacement %#x, stub at %#x from the call",
			ppc64.BranchOffset(insn), s.Addr()-caller.GetAddr())
	}
	if next := ctx.Order.Uint32(buf[4:]); !ppc64.IsNop(next) {
		t.Errorf("nop after a call without a TOC change became %#x", next)
	}
	checkStubGroups(t, ctx)
}

func TestLinkSharedPltCall(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	ctx.Args.Shared = true
	a := addObject(t, ctx, "a.o", callObject("f", "ext"), false)
	b := addObject(t, ctx, "b.o", callObject("g", "ext"), false)

	Link(ctx, DriverLayout{})
	if ctx.Diag.Failed() {
		t.Fatalf("link failed: %s", ctx.Diag.W)
	}

	stubs := usedStubs(ctx)
	if len(stubs) != 1 {
		t.Fatalf("%d stubs used, want 1", len(stubs))
	}
	s := stubs[0]
	if s.Kind != StubPltCall || !s.R2Save || s.Plt == nil {
		t.Errorf("stub = %s, r2save %v", s.Name(), s.R2Save)
	}

	restore := ppc64.OP_LD_R2_0R1 | uint32(ctx.StkTOC())
	for _, o := range []*ObjectFile{a, b} {
		isec := findSection(o, ".text")
		ci := ctx.CallSites[CallSite{Sec: isec, Off: 0}]
		if ci == nil || ci.Stub != s || !ci.RestoreTOC {
			t.Errorf("%s: call decided as %+v", o.File.Name, ci)
			continue
		}
		buf := relocated(ctx, isec)
		if d := ppc64.BranchOffset(ctx.Order.Uint32(buf)); d != int64(s.Addr()-isec.GetAddr()) {
			t.Errorf("%s: bl displacement %#x", o.File.Name, d)
		}
		if next := ctx.Order.Uint32(buf[4:]); next != restore {
			t.Errorf("%s: insn after the call = %#x, want %#x", o.File.Name, next, restore)
		}
	}
	checkStubGroups(t, ctx)
}

func TestLinkWeakUndefinedCall(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	obj := callObject("_start", "w")
	obj.syms[1].bind = elf.STB_WEAK
	a := addObject(t, ctx, "a.o", obj, false)

	Link(ctx, DriverLayout{})
	if ctx.Diag.Failed() {
		t.Fatalf("link failed: %s", ctx.Diag.W)
	}

	isec := findSection(a, ".text")
	if ci := ctx.CallSites[CallSite{Sec: isec, Off: 0}]; ci == nil || !ci.Nop {
		t.Fatalf("call decided as %+v", ci)
	}
	if n := len(usedStubs(ctx)); n != 0 {
		t.Errorf("%d stubs for a weak undefined call", n)
	}
	if insn := ctx.Order.Uint32(relocated(ctx, isec)); insn != ppc64.OP_NOP {
		t.Errorf("call = %#x, want nop", insn)
	}
}

func TestSizeStubsStopsShrinking(t *testing.T) {
	const gap = 20 << 20

	ctx := newTestContext(MachineTypePPC64LE)
	ctx.Args.StubGroupSize = 1 << 20
	addObject(t, ctx, "a.o", callObject("_start", "far"), false)
	b := addObject(t, ctx, "b.o", leafObject("far"), false)
	callee := findSection(b, ".text")

	// The caller's stubs sit 20MB past it. The callee is another 20MB
	// further on every other layout, so the call flips between direct
	// and stubbed until stub sections stop shrinking.
	flips := 0
	layout := &gapLayout{}
	layout.gap = func(ctx *Context, isec *InputSection) uint64 {
		switch {
		case isStubSection(isec, 0):
			return gap
		case isec == callee:
			if len(ctx.StubGroups) == 0 {
				return gap
			}
			if flips%2 == 1 {
				return gap
			}
		}
		return 0
	}
	wrapped := layoutFunc(func(ctx *Context) {
		if len(ctx.StubGroups) > 0 {
			flips++
		}
		layout.Relayout(ctx)
	})

	Link(ctx, wrapped)
	if ctx.Diag.Failed() {
		t.Fatalf("link failed: %s", ctx.Diag.W)
	}
	if len(ctx.StubGroups) != 2 {
		t.Fatalf("%d stub groups, want 2", len(ctx.StubGroups))
	}

	if flips <= stubNoShrinkIter || flips >= stubMaxIter {
		t.Errorf("converged after %d iterations", flips)
	}
	g := ctx.StubGroups[0]
	if len(g.Stubs) != 1 || g.size == 0 || g.size < g.Stubs[0].Size {
		t.Fatalf("group 0 sized %d for %d stubs", g.size, len(g.Stubs))
	}
	if s := g.Stubs[0]; s.Used && s.Kind != StubLongBranch {
		t.Errorf("stub = %s", s.Name())
	}
	if ctx.BranchLT.Sec.ShSize != 0 {
		t.Errorf(".branch_lt grew to %d bytes", ctx.BranchLT.Sec.ShSize)
	}
	buf := make([]byte, g.size)
	if end := BuildStubGroup(ctx, g, buf); end > g.size {
		t.Errorf("built %d bytes into a %d byte stub section", end, g.size)
	}
}

type layoutFunc func(ctx *Context)

func (f layoutFunc) Relayout(ctx *Context) { f(ctx) }
