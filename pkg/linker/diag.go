package linker

import (
	"fmt"
	"io"
	"os"
)

// Diag counts and prints link diagnostics. Errors are accumulated so that
// one run reports every overflow site; Limit bounds how many are printed
// before the link gives up.
type Diag struct {
	W        io.Writer
	Limit    int
	Errors   int
	Warnings int
	Verbose  bool
}

// FatalError aborts the link. main recovers it and exits non-zero.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return e.Msg
}

func (d *Diag) writer() io.Writer {
	if d.W == nil {
		return os.Stderr
	}
	return d.W
}

func (d *Diag) Failed() bool {
	return d.Errors > 0
}

func (ctx *Context) Errorf(format string, args ...any) {
	fmt.Fprintf(ctx.Diag.writer(), "ppc64ld: error: %s\n", fmt.Sprintf(format, args...))
	ctx.Diag.Errors++
	if ctx.Diag.Limit > 0 && ctx.Diag.Errors > ctx.Diag.Limit {
		ctx.Fatalf("too many errors")
	}
}

// ErrorfAt reports an error located at off inside isec.
func (ctx *Context) ErrorfAt(isec *InputSection, off uint64, format string, args ...any) {
	ctx.Errorf("%s: %s", isec.Location(off), fmt.Sprintf(format, args...))
}

func (ctx *Context) Warnf(format string, args ...any) {
	fmt.Fprintf(ctx.Diag.writer(), "ppc64ld: warning: %s\n", fmt.Sprintf(format, args...))
	ctx.Diag.Warnings++
}

func (ctx *Context) WarnfAt(isec *InputSection, off uint64, format string, args ...any) {
	ctx.Warnf("%s: %s", isec.Location(off), fmt.Sprintf(format, args...))
}

// Logf traces link phases with --verbose.
func (ctx *Context) Logf(format string, args ...any) {
	if ctx.Diag.Verbose {
		fmt.Fprintf(ctx.Diag.writer(), "ppc64ld: %s\n", fmt.Sprintf(format, args...))
	}
}

// Fatalf reports an internal consistency failure and unwinds the link.
func (ctx *Context) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(ctx.Diag.writer(), "ppc64ld: fatal: %s\n", msg)
	panic(&FatalError{Msg: msg})
}
