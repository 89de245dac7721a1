package linker

import (
	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

// lrEvent records where a stub moves the link register, for the unwind
// info of the stub section.
type lrEvent struct {
	Off  uint64 // offset of the first instruction after the change
	Kind lrEventKind
	Arg  int64 // register number or stack offset
}

type lrEventKind uint8

const (
	lrInReg lrEventKind = iota
	lrOnStack
	lrRestored
)

/*
 * insnWriter lays out instruction sequences for stubs, glink and the
 * save/restore functions. With a nil buffer it only counts, so sizing
 * and writing go through the same code.
 *
 * @addr: address of buf[0]; padding decisions for prefixed instructions
 *        depend on it
 * @overflow: a branch or offset did not fit its field
 */
type insnWriter struct {
	ctx      *Context
	buf      []byte
	addr     uint64
	off      uint64
	overflow bool
	lr       []lrEvent
}

func newInsnWriter(ctx *Context, buf []byte, addr uint64) *insnWriter {
	return &insnWriter{ctx: ctx, buf: buf, addr: addr}
}

func (w *insnWriter) counting() bool {
	return w.buf == nil
}

// pc is the address of the next instruction.
func (w *insnWriter) pc() uint64 {
	return w.addr + w.off
}

func (w *insnWriter) insn(v uint32) {
	if !w.counting() {
		w.ctx.Order.PutUint32(w.buf[w.off:], v)
	}
	w.off += 4
}

func (w *insnWriter) quad(v uint64) {
	if !w.counting() {
		w.ctx.Order.PutUint64(w.buf[w.off:], v)
	}
	w.off += 8
}

// prefixed writes an 8-byte instruction, after a nop when it would
// otherwise cross a 64-byte boundary.
func (w *insnWriter) prefixed(v uint64) {
	if ppc64.CrossesBoundary(w.pc()) {
		w.insn(ppc64.OP_NOP)
	}
	if !w.counting() {
		ppc64.WritePrefixed(w.buf[w.off:], w.ctx.Order, v)
	}
	w.off += 8
}

// prefixedPC writes a pc-relative prefixed instruction whose immediate is
// target minus its own address. Padding is decided first so the offset
// is measured from where the instruction really lands.
func (w *insnWriter) prefixedPC(v uint64, target uint64) {
	if ppc64.CrossesBoundary(w.pc()) {
		w.insn(ppc64.OP_NOP)
	}
	off := int64(target - w.pc())
	if !ppc64.PCRel34(off) {
		w.overflow = true
	}
	w.prefixed(ppc64.EncodePrefixed(v, off))
}

func (w *insnWriter) branch(target uint64, link bool) {
	off := int64(target - w.pc())
	if !ppc64.FitsBranch24(off) {
		w.overflow = true
	}
	w.insn(ppc64.EncodeI(off, link))
}

func (w *insnWriter) padTo(size uint64) {
	for w.off < size {
		w.insn(ppc64.OP_NOP)
	}
}

func (w *insnWriter) event(kind lrEventKind, arg int64) {
	w.lr = append(w.lr, lrEvent{Off: w.off, Kind: kind, Arg: arg})
}
