package linker

import (
	"debug/elf"
	"sort"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

// GotHeaderSection is the first doubleword of .got. It holds the TOC
// pointer value of the first TOC group, which ld.so reads to find the
// executable's TOC.
type GotHeaderSection struct {
	Sec *InputSection
}

func NewGotHeaderSection(ctx *Context) *GotHeaderSection {
	g := &GotHeaderSection{}
	g.Sec = NewSyntheticSection(ctx, ctx.Internal, ".got", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 3, g)
	g.Sec.Leading = true
	ctx.Internal.Sections = append(ctx.Internal.Sections, g.Sec)
	return g
}

func (g *GotHeaderSection) Size(ctx *Context) uint64 {
	return 8
}

func (g *GotHeaderSection) WriteTo(ctx *Context, buf []byte) {
	ctx.Order.PutUint64(buf, ctx.TOCBaseOfGroup(0))
}

// GotSection holds the GOT entries requested by one object. Keeping them
// per object lets objects in different TOC groups reach their own entries
// with 16-bit offsets.
type GotSection struct {
	Sec     *InputSection
	Owner   *ObjectFile
	Entries []*GotEntry
	size    uint64
	sized   bool
}

func NewGotSection(ctx *Context, owner *ObjectFile) *GotSection {
	g := &GotSection{Owner: owner}
	g.Sec = NewSyntheticSection(ctx, owner, ".got", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 3, g)
	owner.GotSec = g.Sec
	return g
}

// Size is an upper bound until AssignOffsets has run.
func (g *GotSection) Size(ctx *Context) uint64 {
	if g.sized {
		return g.size
	}
	size := uint64(0)
	for _, e := range g.Entries {
		if e.Alloc.IsPending() && e.Alloc.Refcount() > 0 {
			size += e.Size()
		}
	}
	return size
}

// AssignOffsets gives every referenced entry a slot and reclaims the rest.
// Entries merged into another object's slot were reclaimed earlier.
func (g *GotSection) AssignOffsets() {
	off := uint64(0)
	for _, e := range g.Entries {
		if !e.Alloc.IsPending() {
			continue
		}
		if e.Alloc.Refcount() == 0 {
			e.Alloc.Reclaim()
			continue
		}
		e.Alloc.Assign(off)
		off += e.Size()
	}
	g.size = off
	g.sized = true
}

// LiveEntries returns the entries that own a slot, in slot order.
func (g *GotSection) LiveEntries() []*GotEntry {
	var live []*GotEntry
	for _, e := range g.Entries {
		if e.Alloc.IsAssigned() {
			live = append(live, e)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].Alloc.Offset() < live[j].Alloc.Offset()
	})
	return live
}

func (g *GotSection) WriteTo(ctx *Context, buf []byte) {
	for _, e := range g.LiveEntries() {
		off := e.Alloc.Offset()
		writeGotValue(ctx, e, buf[off:])
		for _, d := range gotDynRelocs(ctx, e) {
			d.Off += off
			emitDynReloc(ctx, g.Sec, buf, d)
		}
	}
}

// writeGotValue stores the link-time contents of a GOT entry.
func writeGotValue(ctx *Context, e *GotEntry, loc []byte) {
	sym := e.Sym
	put := func(i int, v uint64) { ctx.Order.PutUint64(loc[i*8:], v) }
	switch e.TLS {
	case ppc64.TLSNone:
		if sym.IsPreemptible(ctx) {
			put(0, 0)
		} else if sym.IsIfunc() && !sym.IsImported() {
			put(0, 0)
		} else {
			put(0, uint64(int64(symbolAddr(ctx, sym))+e.Addend))
		}
	case ppc64.TLSGD:
		if sym.IsPreemptible(ctx) || ctx.Args.Shared {
			put(0, 0)
		} else {
			put(0, 1)
		}
		if sym.IsPreemptible(ctx) {
			put(1, 0)
		} else {
			put(1, uint64(int64(sym.GetAddr())+e.Addend)-ctx.DtpAddr)
		}
	case ppc64.TLSLD:
		if ctx.Args.Shared {
			put(0, 0)
		} else {
			put(0, 1)
		}
		put(1, 0)
	case ppc64.TLSTPRel:
		if sym.IsPreemptible(ctx) || ctx.Args.Shared {
			put(0, 0)
		} else {
			put(0, uint64(int64(sym.GetAddr())+e.Addend)-ctx.TpAddr)
		}
	case ppc64.TLSDTPRel:
		if sym.IsPreemptible(ctx) {
			put(0, 0)
		} else {
			put(0, uint64(int64(sym.GetAddr())+e.Addend)-ctx.DtpAddr)
		}
	}
}
