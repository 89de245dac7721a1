package linker

import (
	"fmt"
	"io"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

const (
	// After this many iterations stub sections may grow but not shrink.
	stubNoShrinkIter = 20
	stubMaxIter      = 100
)

// loopSections are the synthetic sections whose size follows the stubs.
func loopSections(ctx *Context) []*InputSection {
	var secs []*InputSection
	for _, s := range []*InputSection{ctx.BranchLT.Sec, ctx.Relr.Sec, ctx.EhFrame.Sec, ctx.RelaDyn.Sec} {
		if s != nil {
			secs = append(secs, s)
		}
	}
	return secs
}

// SizeStubs is the stub fixed point. Each iteration lays the output out
// with the current stub sizes, decides every call site, and sizes the
// stubs again. It stops when neither the stub sections nor the tables
// that depend on them change.
func SizeStubs(ctx *Context, layout SectionLayout) int {
	for iter := 1; ; iter++ {
		if iter > stubMaxIter {
			ctx.Fatalf("stub sizing did not converge after %d iterations", stubMaxIter)
		}
		layout.Relayout(ctx)

		ctx.BranchLT.Reset()
		decideAllCalls(ctx)

		stable := true
		for _, g := range ctx.StubGroups {
			size := sizeStubGroup(ctx, g)
			if iter > stubNoShrinkIter && size < g.size {
				size = g.size
			}
			if size != g.size {
				g.size = size
				stable = false
			}
		}
		for _, isec := range loopSections(ctx) {
			if isec.Synth.Size(ctx) != isec.ShSize {
				stable = false
			}
		}

		if stable {
			ctx.Logf("stub sizes converged after %d iterations", iter)
			return iter
		}
	}
}

// PrintStubs lists the used stubs and their code, as written to the
// output buffer.
func PrintStubs(ctx *Context, w io.Writer) {
	for _, g := range ctx.StubGroups {
		base := g.Osec.Shdr.Offset + g.Sec.Offset
		for _, s := range g.Stubs {
			if !s.Used {
				continue
			}
			fmt.Fprintf(w, "%s: %s stub at 0x%x, %d bytes\n", s.Name(), s.Kind, s.Addr(), s.Size)
			code := ctx.Buf[base+s.Offset : base+s.Offset+s.Size]
			fmt.Fprint(w, ppc64.Format(ppc64.Disasm(code, s.Addr(), ctx.Order)))
		}
	}
}
