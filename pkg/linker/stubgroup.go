package linker

import (
	"debug/elf"
	"math/bits"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
	"github.com/unicornx/ppc64ld/pkg/utils"
)

/*
 * StubGroup is a run of code sections that share one stub section placed
 * right after the last of them.
 *
 * @Members: input sections of the group in address order
 * @Sec: the stub section, a member of the same output section
 * @size: size from the latest sizing iteration
 * @lr: link register events of all stubs, offsets relative to Sec
 */
type StubGroup struct {
	ID      int
	Osec    *OutputSection
	Members []*InputSection
	Sec     *InputSection
	Stubs   []*Stub

	size uint64
	lr   []lrEvent
}

func (g *StubGroup) Size(ctx *Context) uint64 {
	return g.size
}

func (g *StubGroup) WriteTo(ctx *Context, buf []byte) {
	BuildStubGroup(ctx, g, buf)
}

// stubP2Align is the alignment of stub sections: instructions, or the
// --plt-align boundary when plt_call stubs are aligned.
func stubP2Align(ctx *Context) uint8 {
	if ctx.Args.PltAlign > 4 {
		return uint8(bits.TrailingZeros64(utils.BitCeil(ctx.Args.PltAlign)))
	}
	return 2
}

// FormStubGroups partitions the code sections of every executable output
// section into stub groups, in address order, so that every section of a
// group can reach the group's stub section with a direct branch. A group
// holding a 14-bit conditional branch gets a budget 1024 times smaller.
// .init and .fini are pasted together into one function and are never
// split.
func FormStubGroups(ctx *Context) {
	budget := ctx.Args.EffectiveStubGroupSize()

	osecs := append([]*OutputSection(nil), ctx.OutputSections...)
	for _, osec := range osecs {
		if osec.Shdr.Flags&uint64(elf.SHF_EXECINSTR) == 0 {
			continue
		}
		whole := osec.Name == ".init" || osec.Name == ".fini"

		var cur []*InputSection
		start := uint64(0)
		has14 := false
		for _, isec := range osec.Members {
			if isec.Synth != nil || !isec.IsAlive {
				continue
			}
			aux := ctx.Aux(isec)
			if len(cur) > 0 && !whole {
				limit := budget
				if has14 || aux.Has14Branch {
					limit >>= 10
				}
				if isec.GetAddr()+isec.ShSize-start > limit {
					newStubGroup(ctx, osec, cur)
					cur = nil
				}
			}
			if len(cur) == 0 {
				start = isec.GetAddr()
				has14 = false
			}
			cur = append(cur, isec)
			has14 = has14 || aux.Has14Branch
		}
		if len(cur) > 0 {
			newStubGroup(ctx, osec, cur)
		}
	}
	ctx.Logf("%d stub groups", len(ctx.StubGroups))
}

func newStubGroup(ctx *Context, osec *OutputSection, members []*InputSection) *StubGroup {
	g := &StubGroup{ID: len(ctx.StubGroups), Osec: osec, Members: members}
	g.Sec = NewSyntheticSection(ctx, ctx.Internal, osec.Name, osec.Shdr.Type,
		osec.Shdr.Flags, stubP2Align(ctx), g)
	ctx.StubGroups = append(ctx.StubGroups, g)

	for _, isec := range members {
		ctx.Aux(isec).StubGroup = g.ID
	}
	ctx.Aux(g.Sec).StubGroup = g.ID

	last := members[len(members)-1]
	for i, isec := range osec.Members {
		if isec == last {
			osec.Members = append(osec.Members[:i+1],
				append([]*InputSection{g.Sec}, osec.Members[i+1:]...)...)
			break
		}
	}
	return g
}

// sizeStub lays out s at off with a counting writer. A TOC relative
// long branch whose final "b" cannot reach the target is widened to a
// plt_branch, which loads the target from .branch_lt.
func sizeStub(ctx *Context, g *StubGroup, s *Stub, off uint64) *insnWriter {
	base := g.Sec.GetAddr()
	w := newInsnWriter(ctx, nil, base+off)
	if s.Kind == StubLongBranch && s.Key.Addr == AddrTOC {
		emitStub(ctx, w, s)
		if !w.overflow {
			return w
		}
		s.Kind = StubPltBranch
		w = newInsnWriter(ctx, nil, base+off)
	}
	if s.Kind == StubPltBranch && s.Key.Addr == AddrTOC {
		s.BranchLT = ctx.BranchLT.Add(s)
	}
	emitStub(ctx, w, s)
	return w
}

// sizeStubGroup assigns offsets to the used stubs of g and returns the
// bytes they need.
func sizeStubGroup(ctx *Context, g *StubGroup) uint64 {
	off := uint64(0)
	g.lr = g.lr[:0]
	for _, s := range g.Stubs {
		if !s.Used {
			continue
		}
		if s.Kind == StubPltCall && ctx.Args.PltAlign > 4 {
			off = utils.AlignTo(off, 1<<stubP2Align(ctx))
		}
		s.Offset = off
		w := sizeStub(ctx, g, s, off)
		s.Size = w.off
		s.lr = w.lr
		for _, ev := range w.lr {
			ev.Off += off
			g.lr = append(g.lr, ev)
		}
		off += w.off
	}
	return off
}

// BuildStubGroup writes the stubs of g into buf and returns the number
// of bytes the stubs took. Every stub must come out exactly as large as
// it was sized; the rest of the section is nop padding.
func BuildStubGroup(ctx *Context, g *StubGroup, buf []byte) uint64 {
	base := g.Sec.GetAddr()
	end := uint64(0)
	for _, s := range g.Stubs {
		if !s.Used {
			continue
		}
		for ; end < s.Offset; end += 4 {
			ctx.Order.PutUint32(buf[end:], ppc64.OP_NOP)
		}
		w := newInsnWriter(ctx, buf[s.Offset:], base+s.Offset)
		emitStub(ctx, w, s)
		if w.off != s.Size {
			ctx.Fatalf("%s: stub built with %d bytes but sized with %d", s.Name(), w.off, s.Size)
		}
		if w.overflow {
			ctx.Errorf("%s: stub offset overflow", s.Name())
		}
		end = s.Offset + w.off
	}
	if end > g.size {
		ctx.Fatalf("stub group %d: %d bytes of stubs in a %d byte section", g.ID, end, g.size)
	}
	for off := end; off < g.size; off += 4 {
		ctx.Order.PutUint32(buf[off:], ppc64.OP_NOP)
	}
	return end
}
