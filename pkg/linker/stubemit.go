package linker

import (
	"github.com/unicornx/ppc64ld/pkg/ppc64"
	"github.com/unicornx/ppc64ld/pkg/utils"
)

// fitsHA reports whether an addis/addi pair reaches off.
func fitsHA(off int64) bool {
	return utils.FitsSigned(off+0x8000, 32)
}

// emitStub lays out s at w's position. Sizing and writing both call it,
// which keeps the two in step by construction.
func emitStub(ctx *Context, w *insnWriter, s *Stub) {
	switch s.Kind {
	case StubPltCall:
		emitPltCall(ctx, w, s)
	case StubLongBranch, StubPltBranch:
		if s.Key.Addr == AddrTOC {
			emitTOCBranch(ctx, w, s)
		} else {
			emitNoTOCBranch(ctx, w, s)
		}
	default:
		ctx.Fatalf("%s: cannot emit a %s stub", s.Name(), s.Kind)
	}
}

func (w *insnWriter) saveR2() {
	w.insn(ppc64.OP_STD_R2_0R1 | uint32(w.ctx.StkTOC()))
}

// adjustR2 moves r2 to the TOC of another group.
func (w *insnWriter) adjustR2(adj int64) {
	if adj == 0 {
		return
	}
	if !fitsHA(adj) {
		w.overflow = true
	}
	if ppc64.HA(uint64(adj)) != 0 {
		w.insn(ppc64.OP_ADDIS_R2_R2 | ppc64.HA(uint64(adj)))
	}
	if ppc64.LO(uint64(adj)) != 0 {
		w.insn(ppc64.OP_ADDI_R2_R2 | ppc64.LO(uint64(adj)))
	}
}

// loadR12TOC loads the doubleword at r2+off into r12.
func (w *insnWriter) loadR12TOC(off int64) {
	if !fitsHA(off) {
		w.overflow = true
	}
	if ppc64.HA(uint64(off)) != 0 {
		w.insn(ppc64.OP_ADDIS_R12_R2 | ppc64.HA(uint64(off)))
		w.insn(ppc64.OP_LD_R12_0R12 | ppc64.LO(uint64(off))&ppc64.MASK_DS)
		return
	}
	w.insn(ppc64.OP_LD_R12_0R2 | ppc64.LO(uint64(off))&ppc64.MASK_DS)
}

// tlsOptPrefix returns early from __tls_get_addr when the module id in
// the tls_index is zero, which ld.so sets for static TLS.
func (w *insnWriter) tlsOptPrefix(s *Stub) {
	w.insn(ppc64.OP_LD_R11_0R3)
	w.insn(ppc64.OP_LD_R12_0R3 | 8)
	w.insn(ppc64.OP_MR_R0_R3)
	w.insn(ppc64.OP_CMPDI_R11_0)
	w.insn(ppc64.OP_ADD_R3_R12_R13)
	w.insn(ppc64.OP_BEQLR)
	w.insn(ppc64.OP_MR_R3_R0)
	if s.R2Save {
		w.insn(ppc64.OP_MFLR_R0)
		w.insn(ppc64.OP_STD_R0_0R1 | uint32(w.ctx.StkLinker()))
		w.event(lrOnStack, w.ctx.StkLinker())
	}
}

// tlsOptTail returns to the caller after the bctrl of an r2 saving
// __tls_get_addr_opt stub.
func (w *insnWriter) tlsOptTail() {
	w.insn(ppc64.OP_LD_R2_0R1 | uint32(w.ctx.StkTOC()))
	w.insn(ppc64.OP_LD_R0_0R1 | uint32(w.ctx.StkLinker()))
	w.insn(ppc64.OP_MTLR_R0)
	w.event(lrRestored, 0)
	w.insn(ppc64.OP_BLR)
}

func emitPltCall(ctx *Context, w *insnWriter, s *Stub) {
	if s.TLSOpt {
		w.tlsOptPrefix(s)
	}
	call := s.TLSOpt && s.R2Save

	if s.Key.Addr != AddrTOC {
		w.loadR12PC(s.Plt.GetAddr(ctx), true)
		w.insn(ppc64.OP_MTCTR_R12)
		w.insn(ppc64.OP_BCTR)
		return
	}

	if s.R2Save {
		w.saveR2()
	}
	off := int64(s.Plt.GetAddr(ctx) - ctx.TOCBaseOfGroup(s.Key.TOCGroup))

	if ctx.ABI == 2 {
		w.loadR12TOC(off)
		w.insn(ppc64.OP_MTCTR_R12)
	} else {
		if !fitsHA(off + 16) {
			w.overflow = true
		}
		w.insn(ppc64.OP_ADDIS_R11_R2 | ppc64.HA(uint64(off)))
		lo := func(d int64) uint32 { return ppc64.LO(uint64(off + d)) }
		if ppc64.HA(uint64(off+16)) != ppc64.HA(uint64(off)) {
			w.insn(ppc64.OP_ADDI_R11_R11 | ppc64.LO(uint64(off)))
			lo = func(d int64) uint32 { return uint32(d) }
		}
		w.insn(ppc64.OP_LD_R12_0R11 | lo(0)&ppc64.MASK_DS)
		w.insn(ppc64.OP_MTCTR_R12)
		if ctx.Args.PltThreadSafe {
			w.insn(ppc64.OP_XOR_R2_R12_R12)
			w.insn(ppc64.OP_ADD_R11_R11_R2)
		}
		w.insn(ppc64.OP_LD_R2_0R11 | lo(8)&ppc64.MASK_DS)
		if ctx.Args.PltStaticChain {
			w.insn(ppc64.OP_LD_R11_0R11 | lo(16)&ppc64.MASK_DS)
		}
	}

	if call {
		w.insn(ppc64.OP_BCTRL)
		w.tlsOptTail()
		return
	}
	w.insn(ppc64.OP_BCTR)
}

// emitTOCBranch is long_branch and plt_branch for callers that keep r2.
func emitTOCBranch(ctx *Context, w *insnWriter, s *Stub) {
	if s.R2Save {
		w.saveR2()
	}
	if s.Kind == StubLongBranch {
		w.adjustR2(s.TOCAdjust)
		w.branch(s.Target, false)
		return
	}

	slot := ctx.BranchLT.Sec.GetAddr() + s.BranchLT
	w.loadR12TOC(int64(slot - ctx.TOCBaseOfGroup(s.Key.TOCGroup)))
	w.adjustR2(s.TOCAdjust)
	w.insn(ppc64.OP_MTCTR_R12)
	w.insn(ppc64.OP_BCTR)
}

// emitNoTOCBranch computes the target in r12, which a global entry
// point needs, and jumps there.
func emitNoTOCBranch(ctx *Context, w *insnWriter, s *Stub) {
	direct := w.loadR12PC(s.Target, false)
	if direct {
		off := int64(s.Target - w.pc())
		if ppc64.FitsBranch24(off) {
			w.branch(s.Target, false)
			return
		}
	}
	w.insn(ppc64.OP_MTCTR_R12)
	w.insn(ppc64.OP_BCTR)
}

// loadR12PC puts target (load: the doubleword at target) in r12 without
// using r2. It reports whether the prefixed form was used.
func (w *insnWriter) loadR12PC(target uint64, load bool) bool {
	if w.ctx.Args.Power10Stubs != Power10No {
		pc := w.pc()
		if ppc64.CrossesBoundary(pc) {
			pc += 4
		}
		if ppc64.PCRel34(int64(target - pc)) {
			if load {
				w.prefixedPC(ppc64.OP_PLD_R12_PC, target)
			} else {
				w.prefixedPC(ppc64.OP_PADDI_R12_PC, target)
			}
			return true
		}
	}
	w.p9LoadR12(target, load)
	return false
}

// p9LoadR12 is the power9 form: the address of a bcl return point in
// r11, plus a 32 or 64-bit offset.
func (w *insnWriter) p9LoadR12(target uint64, load bool) {
	w.insn(ppc64.OP_MFLR_R12)
	w.event(lrInReg, 12)
	w.insn(ppc64.OP_BCL_20_31)
	label := w.pc()
	w.insn(ppc64.OP_MFLR_R11)
	w.insn(ppc64.OP_MTLR_R12)
	w.event(lrRestored, 0)

	off := int64(target - label)
	if fitsHA(off) {
		w.insn(ppc64.OP_ADDIS_R12_R11 | ppc64.HA(uint64(off)))
		if load {
			w.insn(ppc64.OP_LD_R12_0R12 | ppc64.LO(uint64(off))&ppc64.MASK_DS)
		} else {
			w.insn(ppc64.OP_ADDI_R12_R12 | ppc64.LO(uint64(off)))
		}
		return
	}

	hi := off >> 32
	lo := uint32(off)
	if utils.FitsSigned(hi, 16) {
		w.insn(ppc64.OP_LI_R12 | uint32(hi)&ppc64.MASK_D)
	} else {
		w.insn(ppc64.OP_LIS_R12 | uint32(hi>>16)&ppc64.MASK_D)
		if hi&0xffff != 0 {
			w.insn(ppc64.OP_ORI_R12_R12 | uint32(hi)&ppc64.MASK_D)
		}
	}
	w.insn(ppc64.OP_SLDI_R12_R12_32)
	if lo>>16 != 0 {
		w.insn(ppc64.OP_ORIS_R12_R12 | lo>>16)
	}
	if lo&0xffff != 0 {
		w.insn(ppc64.OP_ORI_R12_R12 | lo&0xffff)
	}
	if load {
		w.insn(ppc64.OP_LDX_R12_R11_R12)
	} else {
		w.insn(ppc64.OP_ADD_R12_R11_R12)
	}
}
