package linker

import (
	"debug/elf"
	"reflect"
	"strings"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

const (
	testTextAddr     = 0x10000000
	testGotAddr      = 0x10010000
	testPltAddr      = 0x10020000
	testBranchLTAddr = 0x10030000
)

func place(isec *InputSection, addr uint64) {
	isec.OutputSection.Shdr.Addr = addr
	isec.Offset = 0
}

// stubTestContext lays out .got, .plt and .branch_lt at fixed addresses
// and returns an empty stub group at testTextAddr.
func stubTestContext(m MachineType) (*Context, *StubGroup) {
	ctx := newTestContext(m)
	ctx.Internal = NewInternalFile(ctx)
	ctx.GotHeader = NewGotHeaderSection(ctx)
	ctx.Plt = NewPltSection(ctx, PltMain)
	ctx.BranchLT = NewBranchLTSection(ctx)
	place(ctx.GotHeader.Sec, testGotAddr)
	place(ctx.Plt.Sec, testPltAddr)
	place(ctx.BranchLT.Sec, testBranchLTAddr)

	g := &StubGroup{}
	g.Sec = NewSyntheticSection(ctx, ctx.Internal, ".text", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR), 2, g)
	place(g.Sec, testTextAddr)
	ctx.StubGroups = append(ctx.StubGroups, g)
	return ctx, g
}

func pltStub(ctx *Context, g *StubGroup, name string, slot uint64, addr StubAddr) *Stub {
	e := &PltEntry{Sym: GetSymbolByName(ctx, name), Table: PltMain}
	e.Alloc.Assign(slot)
	return &Stub{
		Key:   StubKey{Sym: e.Sym, Addr: addr},
		Kind:  StubPltCall,
		Group: g,
		Plt:   e,
		Used:  true,
	}
}

// emitBoth sizes s with a counting writer, then writes it, and checks
// that both passes agree.
func emitBoth(t *testing.T, ctx *Context, s *Stub) []byte {
	t.Helper()
	counter := newInsnWriter(ctx, nil, s.Addr())
	emitStub(ctx, counter, s)
	buf := make([]byte, counter.off)
	w := newInsnWriter(ctx, buf, s.Addr())
	emitStub(ctx, w, s)
	if w.off != counter.off {
		t.Fatalf("%s: written %d bytes, sized %d", s.Name(), w.off, counter.off)
	}
	if w.overflow || counter.overflow {
		t.Errorf("%s: unexpected overflow", s.Name())
	}
	return buf
}

func TestStubSequences(t *testing.T) {
	tests := []struct {
		name  string
		m     MachineType
		setup func(ctx *Context, g *StubGroup) *Stub
		want  []string
	}{
		{
			name: "elfv2 plt_call saving r2",
			m:    MachineTypePPC64LE,
			setup: func(ctx *Context, g *StubGroup) *Stub {
				s := pltStub(ctx, g, "puts", 0x18, AddrTOC)
				s.R2Save = true
				return s
			},
			want: []string{"std", "addis", "ld", "mtctr", "bctr"},
		},
		{
			name: "elfv2 plt_call near the TOC",
			m:    MachineTypePPC64LE,
			setup: func(ctx *Context, g *StubGroup) *Stub {
				ctx.GotHeader.Sec.OutputSection.Shdr.Addr = testPltAddr - 0x7000
				return pltStub(ctx, g, "puts", 0x18, AddrTOC)
			},
			want: []string{"ld", "mtctr", "bctr"},
		},
		{
			name: "power10 plt_call_notoc",
			m:    MachineTypePPC64LE,
			setup: func(ctx *Context, g *StubGroup) *Stub {
				return pltStub(ctx, g, "puts", 0x18, AddrNoTOC)
			},
			want: []string{"pld", "mtctr", "bctr"},
		},
		{
			name: "elfv1 plt_call",
			m:    MachineTypePPC64,
			setup: func(ctx *Context, g *StubGroup) *Stub {
				s := pltStub(ctx, g, "puts", 0x30, AddrTOC)
				s.R2Save = true
				return s
			},
			want: []string{"std", "addis", "ld", "mtctr", "ld", "bctr"},
		},
		{
			name: "long_branch",
			m:    MachineTypePPC64LE,
			setup: func(ctx *Context, g *StubGroup) *Stub {
				return &Stub{Key: StubKey{Sym: GetSymbolByName(ctx, "far")}, Kind: StubLongBranch,
					Group: g, Target: testTextAddr + 0x100000, Used: true}
			},
			want: []string{"b"},
		},
		{
			name: "long_branch into another TOC group",
			m:    MachineTypePPC64LE,
			setup: func(ctx *Context, g *StubGroup) *Stub {
				return &Stub{Key: StubKey{Sym: GetSymbolByName(ctx, "far")}, Kind: StubLongBranch,
					Group: g, Target: testTextAddr + 0x100000, TOCAdjust: 0x10000, Used: true}
			},
			want: []string{"addis", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, g := stubTestContext(tt.m)
			s := tt.setup(ctx, g)
			code := emitBoth(t, ctx, s)
			if got := ppc64.Mnemonics(code, ctx.Order); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("mnemonics = %v, want %v\n%s", got, tt.want,
					ppc64.Format(ppc64.Disasm(code, s.Addr(), ctx.Order)))
			}
		})
	}
}

func TestStubSizesMatchAcrossOptions(t *testing.T) {
	type opts struct {
		threadSafe, staticChain bool
		power10                 Power10Mode
		addr                    StubAddr
		r2save                  bool
	}
	var all []opts
	for _, ts := range []bool{false, true} {
		for _, sc := range []bool{false, true} {
			for _, p := range []Power10Mode{Power10Auto, Power10No} {
				for _, a := range []StubAddr{AddrTOC, AddrNoTOC} {
					all = append(all, opts{ts, sc, p, a, !sc})
				}
			}
		}
	}
	for _, m := range []MachineType{MachineTypePPC64, MachineTypePPC64LE} {
		for _, o := range all {
			ctx, g := stubTestContext(m)
			ctx.Args.PltThreadSafe = o.threadSafe
			ctx.Args.PltStaticChain = o.staticChain
			ctx.Args.Power10Stubs = o.power10
			s := pltStub(ctx, g, "f", 0x40, o.addr)
			s.R2Save = o.r2save
			code := emitBoth(t, ctx, s)
			ops := ppc64.Mnemonics(code, ctx.Order)
			if ops[len(ops)-1] != "bctr" {
				t.Errorf("%s %+v: stub does not end in bctr: %v", m, o, ops)
			}
		}
	}
}

func TestBuildStubGroupPadsAlignedPltCalls(t *testing.T) {
	ctx, g := stubTestContext(MachineTypePPC64LE)
	ctx.Args.PltAlign = 32

	a := pltStub(ctx, g, "a", 0x18, AddrTOC)
	a.R2Save = true
	unused := pltStub(ctx, g, "b", 0x20, AddrTOC)
	unused.Used = false
	c := pltStub(ctx, g, "c", 0x28, AddrTOC)
	g.Stubs = []*Stub{a, unused, c}

	g.size = sizeStubGroup(ctx, g)
	if a.Offset != 0 || a.Size != 20 || c.Offset != 32 || g.size != 32+c.Size {
		t.Fatalf("offsets %d/%d, sizes %d/%d, group %d", a.Offset, c.Offset, a.Size, c.Size, g.size)
	}

	buf := make([]byte, g.size)
	if end := BuildStubGroup(ctx, g, buf); end != g.size {
		t.Errorf("built %d bytes of %d", end, g.size)
	}
	for off := a.Size; off < c.Offset; off += 4 {
		if insn := ctx.Order.Uint32(buf[off:]); insn != ppc64.OP_NOP {
			t.Errorf("padding at %d = %#x", off, insn)
		}
	}
	if !strings.HasPrefix(c.Name(), "00000000.plt_call.c") {
		t.Errorf("stub name %s", c.Name())
	}
}
