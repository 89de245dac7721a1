package linker

import (
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

func expectAllocationPanic(t *testing.T, op, state string, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		err, ok := recover().(*AllocationError)
		if !ok {
			t.Fatalf("%s: expected an AllocationError", op)
		}
		if err.Op != op || err.State != state {
			t.Errorf("got %q, want %s while %s", err.Error(), op, state)
		}
	}()
	f()
}

func TestAllocationLifecycle(t *testing.T) {
	var a Allocation
	a.Ref()
	a.Ref()
	a.Unref()
	if !a.IsPending() || a.Refcount() != 1 {
		t.Fatalf("refcount = %d", a.Refcount())
	}
	a.Assign(16)
	if !a.IsAssigned() || a.Offset() != 16 {
		t.Errorf("offset = %d", a.Offset())
	}

	expectAllocationPanic(t, "Ref", "assigned", a.Ref)
	expectAllocationPanic(t, "Refcount", "assigned", func() { a.Refcount() })
	expectAllocationPanic(t, "Reclaim", "assigned", a.Reclaim)

	var r Allocation
	r.Reclaim()
	if !r.IsReclaimed() {
		t.Errorf("not reclaimed")
	}
	expectAllocationPanic(t, "Offset", "reclaimed", func() { r.Offset() })
	expectAllocationPanic(t, "Assign", "reclaimed", func() { r.Assign(0) })

	var p Allocation
	expectAllocationPanic(t, "Offset", "pending", func() { p.Offset() })
	expectAllocationPanic(t, "Unref", "unreferenced", p.Unref)
}

func TestGotAssignOffsets(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	o := addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{text(".text", ppc64.OP_BLR)},
		syms: []testSym{global("f", ".text", 0)},
	}, false)
	f := ctx.SymbolMap["f"]

	plain := &GotEntry{Sym: f, Owner: o}
	gd := &GotEntry{Sym: f, Owner: o, TLS: ppc64.TLSGD}
	dropped := &GotEntry{Sym: f, Owner: o, Addend: 8}
	merged := &GotEntry{Sym: f, Owner: o, Indirect: plain}
	for _, e := range []*GotEntry{dropped, plain, gd} {
		o.AddGotEntry(ctx, e)
	}
	plain.Alloc.Ref()
	gd.Alloc.Ref()
	dropped.Alloc.Ref()
	dropped.Alloc.Unref()

	if got := o.Got.Size(ctx); got != 24 {
		t.Errorf("size before assignment = %d, want 24", got)
	}
	o.Got.AssignOffsets()

	if !dropped.Alloc.IsReclaimed() {
		t.Errorf("unreferenced entry kept")
	}
	if plain.Alloc.Offset() != 0 || gd.Alloc.Offset() != 8 || o.Got.Size(ctx) != 24 {
		t.Errorf("offsets %d %d, size %d", plain.Alloc.Offset(), gd.Alloc.Offset(), o.Got.Size(ctx))
	}
	if live := o.Got.LiveEntries(); len(live) != 2 || live[0] != plain || live[1] != gd {
		t.Errorf("live entries = %v", live)
	}
	if merged.Resolve() != plain || !merged.IsLive() {
		t.Errorf("merged entry does not follow its survivor")
	}
	if o.GotSec != o.Got.Sec {
		t.Errorf("GotSec not set")
	}
}
