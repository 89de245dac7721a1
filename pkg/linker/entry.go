package linker

import (
	"fmt"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

type allocState uint8

const (
	allocPending allocState = iota
	allocAssigned
	allocReclaimed
)

func (s allocState) String() string {
	switch s {
	case allocPending:
		return "pending"
	case allocAssigned:
		return "assigned"
	}
	return "reclaimed"
}

// Allocation is the life of a GOT or PLT slot: a reference count while
// relocations are scanned and optimized, then either a byte offset inside
// the owning section or nothing at all.
type Allocation struct {
	state    allocState
	refcount uint32
	offset   uint64
}

// AllocationError is the panic value for reading an Allocation in the
// wrong phase.
type AllocationError struct {
	Op    string
	State string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocation: %s while %s", e.Op, e.State)
}

func (a *Allocation) mustBe(op string, st allocState) {
	if a.state != st {
		panic(&AllocationError{Op: op, State: a.state.String()})
	}
}

func (a *Allocation) Ref() {
	a.mustBe("Ref", allocPending)
	a.refcount++
}

func (a *Allocation) Unref() {
	a.mustBe("Unref", allocPending)
	if a.refcount == 0 {
		panic(&AllocationError{Op: "Unref", State: "unreferenced"})
	}
	a.refcount--
}

func (a *Allocation) Refcount() uint32 {
	a.mustBe("Refcount", allocPending)
	return a.refcount
}

func (a *Allocation) Assign(off uint64) {
	a.mustBe("Assign", allocPending)
	a.state = allocAssigned
	a.offset = off
}

func (a *Allocation) Reclaim() {
	a.mustBe("Reclaim", allocPending)
	a.state = allocReclaimed
}

func (a *Allocation) Offset() uint64 {
	a.mustBe("Offset", allocAssigned)
	return a.offset
}

func (a *Allocation) IsPending() bool   { return a.state == allocPending }
func (a *Allocation) IsAssigned() bool  { return a.state == allocAssigned }
func (a *Allocation) IsReclaimed() bool { return a.state == allocReclaimed }

// GotEntry is one GOT slot request. Entries for the same symbol, addend
// and TLS kind from objects sharing a TOC are merged; the later ones point
// at the survivor through Indirect.
type GotEntry struct {
	Sym      *Symbol // nil for the per-object TLS LD module id
	Addend   int64
	Owner    *ObjectFile
	TLS      ppc64.TLSKind
	Alloc    Allocation
	Indirect *GotEntry
}

func (e *GotEntry) Resolve() *GotEntry {
	for e.Indirect != nil {
		e = e.Indirect
	}
	return e
}

func (e *GotEntry) Size() uint64 {
	if e.TLS == ppc64.TLSGD || e.TLS == ppc64.TLSLD {
		return 16
	}
	return 8
}

func (e *GotEntry) IsLive() bool {
	r := e.Resolve()
	return r.Alloc.IsAssigned()
}

func (e *GotEntry) GetAddr(ctx *Context) uint64 {
	r := e.Resolve()
	return r.Owner.GotSec.GetAddr() + r.Alloc.Offset()
}

type PltTable uint8

const (
	PltUnset PltTable = iota
	PltMain           // .plt, resolved by ld.so through JMP_SLOT
	PltIFunc          // .iplt, IRELATIVE
	PltLocal          // local function called through an inline sequence
)

type PltEntry struct {
	Sym    *Symbol
	Addend int64
	Alloc  Allocation
	Table  PltTable
	Index  int // position in the table, for lazy glink stubs
}

func (e *PltEntry) GetAddr(ctx *Context) uint64 {
	var sec *InputSection
	switch e.Table {
	case PltMain:
		sec = ctx.Plt.Sec
	case PltIFunc:
		sec = ctx.Iplt.Sec
	case PltLocal:
		sec = ctx.PltLocal.Sec
	}
	return sec.GetAddr() + e.Alloc.Offset()
}
