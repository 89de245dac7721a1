package linker

import (
	"fmt"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

type StubKind uint8

const (
	StubNone StubKind = iota
	StubLongBranch
	StubPltBranch
	StubPltCall
	StubGlobalEntry
	StubSaveRes
)

func (k StubKind) String() string {
	switch k {
	case StubLongBranch:
		return "long_branch"
	case StubPltBranch:
		return "plt_branch"
	case StubPltCall:
		return "plt_call"
	case StubGlobalEntry:
		return "global_entry"
	case StubSaveRes:
		return "save_res"
	}
	return "none"
}

// StubAddr is how a stub finds its target: through r2, or pc-relative
// for callers that do not keep r2, with prefixed (power10) or bcl based
// (power9) sequences.
type StubAddr uint8

const (
	AddrTOC StubAddr = iota
	AddrNoTOC
	AddrP9NoTOC
)

func (a StubAddr) String() string {
	switch a {
	case AddrNoTOC:
		return "notoc"
	case AddrP9NoTOC:
		return "p9notoc"
	}
	return "toc"
}

// StubKey identifies a stub. Callers in different TOC groups need
// different r2 adjustments, so the caller's TOC group is part of the key.
type StubKey struct {
	Group    int
	TOCGroup int
	Sym      *Symbol
	Addend   int64
	Addr     StubAddr
}

/*
 * Stub is one linker generated call stub.
 *
 * @Kind, @R2Save, @Used: decided again on every sizing iteration
 * @Offset, @Size: place inside the group's stub section
 * @Target: branch destination, the PLT slot address for plt_call
 * @BranchLT: offset of the plt_branch slot in .branch_lt
 * @TOCAdjust: r2 delta applied before branching into another TOC group
 * @TLSOpt: __tls_get_addr_opt fast path in front of the call
 */
type Stub struct {
	Key       StubKey
	Kind      StubKind
	R2Save    bool
	TLSOpt    bool
	Group     *StubGroup
	Offset    uint64
	Size      uint64
	Target    uint64
	Plt       *PltEntry
	BranchLT  uint64
	TOCAdjust int64
	Used      bool
	Index     int

	lr []lrEvent
}

func (s *Stub) Addr() uint64 {
	return s.Group.Sec.GetAddr() + s.Offset
}

// Name is the --emit-stub-syms name, "<group>.<kind>.<target>+<addend>".
func (s *Stub) Name() string {
	kind := s.Kind.String()
	if s.Key.Addr != AddrTOC {
		kind += "_" + s.Key.Addr.String()
	}
	name := fmt.Sprintf("%08x.%s.%s", s.Group.ID, kind, s.Key.Sym)
	if s.Key.Addend != 0 {
		name += fmt.Sprintf("+%x", s.Key.Addend)
	}
	return name
}

// CallSite is a branch relocation, named by its section and offset.
type CallSite struct {
	Sec *InputSection
	Off uint64
}

// CallInfo is what the sizing loop decided for a call site. Nop calls
// target a weak undefined function and are patched out. Calls without a
// stub branch straight to Dest.
type CallInfo struct {
	Stub       *Stub
	Nop        bool
	Dest       uint64
	RestoreTOC bool
	TOCSave    bool
}

// stubAddrFor picks the addressing sub-kind for a branch relocation.
func stubAddrFor(ctx *Context, t ppc64.RelocType) StubAddr {
	switch t {
	case ppc64.R_PPC64_REL24_NOTOC:
		if ctx.Args.Power10Stubs == Power10No {
			return AddrP9NoTOC
		}
		return AddrNoTOC
	case ppc64.R_PPC64_REL24_P9NOTOC:
		if ctx.Args.Power10Stubs == Power10Yes {
			return AddrNoTOC
		}
		return AddrP9NoTOC
	}
	return AddrTOC
}

// callTarget returns the symbol a branch really calls. ELFv1 calls to an
// imported ".foo" go through the PLT entry of the descriptor "foo", and
// __tls_get_addr may be replaced by its optimized wrapper.
func callTarget(ctx *Context, sym *Symbol) (*Symbol, bool) {
	if sym.Pairing.Kind == PairCodeEntry && sym.Dso != nil {
		if desc := ctx.Symbol(sym.Pairing.Peer); desc != nil {
			sym = desc
		}
	}
	if sym == ctx.TLSGetAddr && ctx.TLSGetAddrOpt != nil {
		return ctx.TLSGetAddrOpt, true
	}
	return sym, false
}

// branchDest resolves a direct branch target to a code address and the
// section holding it. Targets inside .opd are followed to the function
// the descriptor names.
func branchDest(ctx *Context, sym *Symbol, addend int64, tocCaller bool) (uint64, *InputSection) {
	if sym.InputSection != nil && sym.InputSection.File.Opd != nil {
		if info := sym.InputSection.File.Opd[sym.InputSection.Shndx]; info != nil &&
			info.Sec == sym.InputSection {
			if e := info.Find(sym.Value + uint64(addend)); e != nil {
				return e.CodeAddr(ctx), e.Code
			}
		}
	}
	dest := symbolAddr(ctx, sym) + uint64(addend)
	if tocCaller && ctx.ABI == 2 {
		dest += sym.LocalEntryOffset(ctx)
	}
	return dest, sym.InputSection
}

// lookupStub finds or creates the stub for key and widens it to satisfy
// one more caller.
func lookupStub(ctx *Context, g *StubGroup, key StubKey, kind StubKind, r2save bool) *Stub {
	s, ok := ctx.Stubs[key]
	if !ok {
		s = &Stub{Key: key, Group: g, Index: len(g.Stubs)}
		ctx.Stubs[key] = s
		ctx.StubList = append(ctx.StubList, s)
		g.Stubs = append(g.Stubs, s)
	}

	switch {
	case !s.Used || s.Kind == kind:
		s.Kind = kind
	case s.Kind == StubLongBranch && kind == StubPltBranch,
		s.Kind == StubPltBranch && kind == StubLongBranch:
		s.Kind = StubPltBranch
	default:
		ctx.Fatalf("stub for %s in group %d is both %s and %s", key.Sym, g.ID, s.Kind, kind)
	}
	if !s.Used {
		s.R2Save = false
	}
	s.R2Save = s.R2Save || r2save
	s.Used = true
	return s
}

// hasTOCSave reports whether the branch at rels[i] is followed by an
// R_PPC64_TOCSAVE on its nop, meaning the prologue can save r2 instead
// of the stub.
func hasTOCSave(rels []Rela, i int) bool {
	if i+1 >= len(rels) {
		return false
	}
	next := &rels[i+1]
	return ppc64.RelocType(next.Type()) == ppc64.R_PPC64_TOCSAVE &&
		next.Offset == rels[i].Offset+4
}

// DecideCall runs the stub type decision for the branch relocation
// rels[i] of isec and records the outcome for RelocateSection.
func DecideCall(ctx *Context, isec *InputSection, rels []Rela, i int) *CallInfo {
	rel := &rels[i]
	typ := ppc64.RelocType(rel.Type())
	site := CallSite{Sec: isec, Off: rel.Offset}
	ci := &CallInfo{}
	ctx.CallSites[site] = ci

	if int(rel.Sym()) >= len(isec.File.Symbols) {
		return ci
	}
	sym, tlsOpt := callTarget(ctx, isec.File.Symbols[rel.Sym()])
	aux := ctx.Aux(isec)
	addr := stubAddrFor(ctx, typ)
	tocCaller := addr == AddrTOC
	insn := isec.Insn(rel.Offset)
	link := insn&1 != 0
	p := isec.GetAddr() + rel.Offset

	plt := sym.LivePlt(rel.Addend)
	if plt != nil && plt.Table == PltLocal {
		plt = nil
	}

	if plt == nil && sym.IsUndefWeak() {
		ci.Nop = true
		return ci
	}

	key := StubKey{Group: aux.StubGroup, TOCGroup: aux.TOCGroup, Sym: sym,
		Addend: rel.Addend, Addr: addr}
	group := ctx.stubGroup(aux.StubGroup)

	if plt != nil {
		if group == nil {
			ctx.ErrorfAt(isec, rel.Offset, "call to %s needs a PLT stub but the section has no stub group", sym)
			return ci
		}
		r2save := false
		if tocCaller && link {
			ci.RestoreTOC = true
			switch {
			case ctx.Args.PltLocalEntry && sym.Dso != nil && LocalEntryOffset(sym.Other) == 0 &&
				ctx.ABI == 2:
				ci.RestoreTOC = false
				ctx.PltLocalEntryUsed = true
			case hasTOCSave(rels, i) && !tlsOpt:
				ci.TOCSave = true
			default:
				r2save = true
			}
		}
		s := lookupStub(ctx, group, key, StubPltCall, r2save)
		s.Plt = plt
		s.TLSOpt = tlsOpt
		ci.Stub = s
		return ci
	}

	dest, destSec := branchDest(ctx, sym, rel.Addend, tocCaller)
	ci.Dest = dest

	kind := StubNone
	r2save := false
	adjust := int64(0)
	switch {
	case !tocCaller && sym.UsesTOC(ctx):
		// the global entry computes r2 from r12, which the stub sets up
		kind = StubLongBranch
	case tocCaller && sym.NoTOC(ctx) && link:
		kind = StubLongBranch
		r2save = true
	case tocCaller && destSec != nil && destSec.File != nil && destSec.ID < len(ctx.SectionAux):
		destAux := ctx.Aux(destSec)
		if destAux.TOCGroup != aux.TOCGroup && destAux.HasTOCReloc {
			kind = StubLongBranch
			r2save = link
			adjust = int64(ctx.TOCBaseOfGroup(destAux.TOCGroup) - ctx.TOCBaseOfGroup(aux.TOCGroup))
			if !link {
				ctx.ErrorfAt(isec, rel.Offset, "sibling call to %s crosses TOC groups; recompile with -fno-optimize-sibling-calls or link with --no-multi-toc",
					sym)
			}
		}
	}

	if kind == StubNone {
		off := int64(dest - p)
		fits := ppc64.FitsBranch24(off)
		if ppc64.IsBranch14(typ) {
			fits = ppc64.FitsBranch14(off)
		}
		if fits {
			return ci
		}
		kind = StubLongBranch
	}

	if group == nil {
		ctx.ErrorfAt(isec, rel.Offset, "branch to %s needs a stub but the section has no stub group", sym)
		return ci
	}
	if r2save {
		ci.RestoreTOC = true
	}
	s := lookupStub(ctx, group, key, kind, r2save)
	s.Target = dest
	s.TOCAdjust = adjust
	ci.Stub = s
	return ci
}

// decideAllCalls walks every branch relocation of the stub groups.
func decideAllCalls(ctx *Context) {
	for _, s := range ctx.StubList {
		s.Used = false
		s.Kind = StubNone
		s.R2Save = false
		s.TLSOpt = false
		s.TOCAdjust = 0
		s.Plt = nil
	}
	for k := range ctx.CallSites {
		delete(ctx.CallSites, k)
	}

	for _, g := range ctx.StubGroups {
		for _, isec := range g.Members {
			rels := isec.GetRels()
			for i := range rels {
				if !ppc64.IsBranch(ppc64.RelocType(rels[i].Type())) {
					continue
				}
				DecideCall(ctx, isec, rels, i)
			}
		}
	}
}

func (ctx *Context) stubGroup(id int) *StubGroup {
	if id < 0 || id >= len(ctx.StubGroups) {
		return nil
	}
	return ctx.StubGroups[id]
}
