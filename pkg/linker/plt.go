package linker

import (
	"debug/elf"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

/*
 * PltSection is one of the three procedure linkage tables.
 *
 * @Table: PltMain is .plt, filled by ld.so through JMP_SLOT; PltIFunc is
 *         .iplt, filled through IRELATIVE; PltLocal holds addresses of
 *         local functions reached by inline PLT call sequences
 * @header: bytes reserved for ld.so at the start of .plt
 */
type PltSection struct {
	Sec     *InputSection
	Table   PltTable
	Entries []*PltEntry
	header  uint64
}

func NewPltSection(ctx *Context, table PltTable) *PltSection {
	p := &PltSection{Table: table}
	name := ".plt"
	switch table {
	case PltMain:
		p.header = 16
		if ctx.ABI == 1 {
			p.header = 24
		}
	case PltIFunc:
		name = ".iplt"
	case PltLocal:
		name = ".branch_lt"
	}
	p.Sec = NewSyntheticSection(ctx, ctx.Internal, name, uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 3, p)
	ctx.Internal.Sections = append(ctx.Internal.Sections, p.Sec)
	return p
}

// EntrySize is 24 for ELFv1 descriptors in .plt and .iplt, 8 otherwise.
func (p *PltSection) EntrySize(ctx *Context) uint64 {
	if ctx.ABI == 1 && p.Table != PltLocal {
		return 24
	}
	return 8
}

func (p *PltSection) NumEntries() int {
	return len(p.Entries)
}

func (p *PltSection) Size(ctx *Context) uint64 {
	if len(p.Entries) == 0 {
		return 0
	}
	return p.header + uint64(len(p.Entries))*p.EntrySize(ctx)
}

// Add gives e the next slot.
func (p *PltSection) Add(ctx *Context, e *PltEntry) {
	e.Table = p.Table
	e.Index = len(p.Entries)
	e.Alloc.Assign(p.header + uint64(e.Index)*p.EntrySize(ctx))
	p.Entries = append(p.Entries, e)
}

func (p *PltSection) WriteTo(ctx *Context, buf []byte) {
	for _, e := range p.Entries {
		off := e.Alloc.Offset()
		sym := e.Sym
		switch p.Table {
		case PltMain:
			emitDynReloc(ctx, p.Sec, buf, dynReloc{Off: off, Type: ppc64.R_PPC64_JMP_SLOT,
				Sym: sym, Addend: e.Addend, Plt: true})
			if ctx.ABI == 2 {
				ctx.Order.PutUint64(buf[off:], ctx.Glink.LazyAddr(ctx, e.Index))
			}
		case PltIFunc:
			emitDynReloc(ctx, p.Sec, buf, dynReloc{Off: off, Type: ppc64.R_PPC64_IRELATIVE,
				Addend: int64(sym.GetAddr()) + e.Addend, Plt: true})
		case PltLocal:
			addr := int64(symbolAddr(ctx, sym)) + e.Addend
			ctx.Order.PutUint64(buf[off:], uint64(addr))
			if ctx.Args.IsPIC() && !sym.IsAbsolute() {
				emitDynReloc(ctx, p.Sec, buf, dynReloc{Off: off, Type: ppc64.R_PPC64_RELATIVE,
					Addend: addr, Relr: ctx.Args.PackRelativeRelocs})
			}
		}
	}
}

// BranchLTSection holds the absolute targets loaded by plt_branch stubs.
// It is rebuilt on every stub sizing iteration.
type BranchLTSection struct {
	Sec   *InputSection
	Stubs []*Stub
}

func NewBranchLTSection(ctx *Context) *BranchLTSection {
	b := &BranchLTSection{}
	b.Sec = NewSyntheticSection(ctx, ctx.Internal, ".branch_lt", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 3, b)
	ctx.Internal.Sections = append(ctx.Internal.Sections, b.Sec)
	return b
}

func (b *BranchLTSection) Reset() {
	b.Stubs = b.Stubs[:0]
}

// Add returns the slot offset for the target of s.
func (b *BranchLTSection) Add(s *Stub) uint64 {
	b.Stubs = append(b.Stubs, s)
	return uint64(len(b.Stubs)-1) * 8
}

func (b *BranchLTSection) Size(ctx *Context) uint64 {
	return uint64(len(b.Stubs)) * 8
}

// NeedsRela reports how many .rela.dyn slots the table takes.
func (b *BranchLTSection) NeedsRela(ctx *Context) int {
	if !ctx.Args.IsPIC() || ctx.Args.PackRelativeRelocs {
		return 0
	}
	return len(b.Stubs)
}

func (b *BranchLTSection) WriteTo(ctx *Context, buf []byte) {
	for i, s := range b.Stubs {
		off := uint64(i) * 8
		dest := s.Target
		ctx.Order.PutUint64(buf[off:], dest)
		if ctx.Args.IsPIC() {
			emitDynReloc(ctx, b.Sec, buf, dynReloc{Off: off, Type: ppc64.R_PPC64_RELATIVE,
				Addend: int64(dest), Relr: ctx.Args.PackRelativeRelocs})
		}
	}
}

// GlinkSection is the lazy binding trampoline: a resolver block followed
// by one lazy entry per .plt slot.
//
//	0:  .quad .plt - 1f
//	8:  mflr r0 / r12
//	12: bcl 20,31,1f
//	16: 1: mflr r11
//	    ...load the resolver and link map from .plt[0..], bctr
type GlinkSection struct {
	Sec *InputSection
}

const glinkResolverSize = 64

func NewGlinkSection(ctx *Context) *GlinkSection {
	g := &GlinkSection{}
	g.Sec = NewSyntheticSection(ctx, ctx.Internal, ".glink", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR), 4, g)
	ctx.Internal.Sections = append(ctx.Internal.Sections, g.Sec)
	return g
}

// lazyOffset is the offset of lazy entry i from the first lazy entry.
// ELFv1 entries load the index into r0 themselves.
func lazyOffset(ctx *Context, i int) uint64 {
	if ctx.ABI == 2 {
		return uint64(i) * 4
	}
	if i <= 0x8000 {
		return uint64(i) * 8
	}
	return 0x8000*8 + uint64(i-0x8000)*12
}

func (g *GlinkSection) Size(ctx *Context) uint64 {
	n := ctx.Plt.NumEntries()
	if n == 0 {
		return 0
	}
	return glinkResolverSize + lazyOffset(ctx, n)
}

// LazyAddr is the address .plt slot i points at before it is resolved.
func (g *GlinkSection) LazyAddr(ctx *Context, i int) uint64 {
	return g.Sec.GetAddr() + glinkResolverSize + lazyOffset(ctx, i)
}

// DynamicValue is DT_PPC64_GLINK: 32 bytes before the first lazy entry.
func (g *GlinkSection) DynamicValue(ctx *Context) uint64 {
	return g.LazyAddr(ctx, 0) - 32
}

func (g *GlinkSection) WriteTo(ctx *Context, buf []byte) {
	n := ctx.Plt.NumEntries()
	if n == 0 {
		return
	}
	w := newInsnWriter(ctx, buf, g.Sec.GetAddr())

	label := g.Sec.GetAddr() + 16
	w.quad(ctx.Plt.Sec.GetAddr() - label)

	if ctx.ABI == 2 {
		lazy0 := g.LazyAddr(ctx, 0)
		w.insn(ppc64.OP_MFLR_R0)
		w.insn(ppc64.OP_BCL_20_31)
		w.insn(ppc64.OP_MFLR_R11)
		w.insn(ppc64.OP_LD_R2_0R11 | 0xfff0)
		w.insn(ppc64.OP_MTLR_R0)
		w.insn(ppc64.OP_SUB_R12_R12_R11)
		w.insn(ppc64.OP_ADD_R11_R11_R2)
		w.insn(ppc64.OP_ADDI_R0_R12 | uint32(-(int64(lazy0-label)))&ppc64.MASK_D)
		w.insn(ppc64.OP_LD_R12_0R11)
		w.insn(ppc64.OP_SRDI_R0_R0_2)
		w.insn(ppc64.OP_MTCTR_R12)
		w.insn(ppc64.OP_LD_R11_0R11 | 8)
		w.insn(ppc64.OP_BCTR)
	} else {
		w.insn(ppc64.OP_MFLR_R12)
		w.insn(ppc64.OP_BCL_20_31)
		w.insn(ppc64.OP_MFLR_R11)
		w.insn(ppc64.OP_MTLR_R12)
		w.insn(ppc64.OP_LD_R12_0R11 | 0xfff0)
		w.insn(ppc64.OP_ADD_R11_R12_R11)
		w.insn(ppc64.OP_LD_R12_0R11)
		w.insn(ppc64.OP_LD_R2_0R11 | 8)
		w.insn(ppc64.OP_MTCTR_R12)
		w.insn(ppc64.OP_LD_R11_0R11 | 16)
		w.insn(ppc64.OP_BCTR)
	}
	w.padTo(glinkResolverSize)

	resolver := g.Sec.GetAddr() + 8
	for i := 0; i < n; i++ {
		if ctx.ABI == 1 {
			if i < 0x8000 {
				w.insn(ppc64.EncodeD(ppc64.OPCD_ADDI, 0, 0, int64(i)))
			} else {
				w.insn(ppc64.EncodeD(ppc64.OPCD_ADDIS, 0, 0, int64(i>>16)))
				w.insn(ppc64.EncodeD(ppc64.OPCD_ORI, 0, 0, int64(i&0xffff)))
			}
		}
		w.branch(resolver, false)
	}
}

// GlobalEntrySection holds the ELFv2 global entry stubs that give
// imported functions a canonical address inside the executable:
//
//	addis r12,r12,(plt-stub)@ha
//	ld    r12,(plt-stub)@l(r12)
//	mtctr r12
//	bctr
type GlobalEntrySection struct {
	Sec  *InputSection
	Syms []*Symbol
	idx  map[*Symbol]int
}

const globalEntrySize = 16

func NewGlobalEntrySection(ctx *Context) *GlobalEntrySection {
	g := &GlobalEntrySection{idx: make(map[*Symbol]int)}
	g.Sec = NewSyntheticSection(ctx, ctx.Internal, ".glink", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR), 4, g)
	ctx.Internal.Sections = append(ctx.Internal.Sections, g.Sec)
	return g
}

func (g *GlobalEntrySection) Add(sym *Symbol) {
	if _, ok := g.idx[sym]; ok {
		return
	}
	g.idx[sym] = len(g.Syms)
	g.Syms = append(g.Syms, sym)
}

func (g *GlobalEntrySection) AddrOf(sym *Symbol) uint64 {
	return g.Sec.GetAddr() + uint64(g.idx[sym])*globalEntrySize
}

func (g *GlobalEntrySection) Size(ctx *Context) uint64 {
	return uint64(len(g.Syms)) * globalEntrySize
}

func (g *GlobalEntrySection) WriteTo(ctx *Context, buf []byte) {
	for i, sym := range g.Syms {
		at := g.Sec.GetAddr() + uint64(i)*globalEntrySize
		w := newInsnWriter(ctx, buf[uint64(i)*globalEntrySize:], at)
		e := sym.FindPlt(0)
		if e == nil || !e.Alloc.IsAssigned() {
			ctx.Fatalf("%s: global entry stub without a PLT slot", sym)
		}
		off := e.GetAddr(ctx) - at
		w.insn(ppc64.OP_ADDIS_R12_R12 | ppc64.HA(off))
		w.insn(ppc64.OP_LD_R12_0R12 | ppc64.LO(off)&ppc64.MASK_DS)
		w.insn(ppc64.OP_MTCTR_R12)
		w.insn(ppc64.OP_BCTR)
	}
}
