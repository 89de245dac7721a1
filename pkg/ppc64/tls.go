package ppc64

// Offsets of the thread pointer and the dtv pointer from the start of
// the TLS block.
const (
	TPOffset  = 0x7000
	DTPOffset = 0x8000
)

// AtTLSTransform rewrites the X-form instruction carrying an @tls operand
// (add rt,ra,r13 or an indexed load/store with r13 as one index) into the
// equivalent D-form instruction whose displacement takes the tprel low
// half. reg is the register standing for the thread pointer. It returns 0
// when insn has no D-form equivalent.
func AtTLSTransform(insn uint32, reg uint32) uint32 {
	if insn>>26 != OPCD_X {
		return 0
	}

	var rtra uint32
	switch {
	case reg == 13 && RB(insn) == reg:
		rtra = insn & (MASK_RT | MASK_RA)
	case RA(insn) == reg:
		rtra = insn&MASK_RT | (insn&MASK_RB)<<5
	default:
		return 0
	}

	xo := (insn >> 1) & 0x3ff
	sub := (insn >> 6) & 0x1f
	switch {
	case xo == 266:
		// add -> addi
		insn = OPCD_ADDI << 26
	case insn&(0x1f<<1) == 23<<1 && (sub < 14 || sub >= 16 && sub < 24):
		// lwzx, lbzx, stwx, ... -> lwz, lbz, stw, ...
		insn = (32 | sub) << 26
	case insn&(0x1f<<1) == 21<<1 && insn&(0x1a<<6) == 0:
		// ldx, ldux, stdx, stdux -> ld, ldu, std, stdu
		insn = (OPCD_DS_LD|(insn>>6)&4)<<26 | (insn>>6)&1
	case xo == 341:
		// lwax -> lwa
		insn = OPCD_DS_LD<<26 | 2
	default:
		return 0
	}
	return insn | rtra
}

// GOTSetupToIE turns "addi rt,ra,x@got@tlsgd[@l]" into
// "ld rt,x@got@tprel[@l](ra)". The @ha half is unchanged.
func GOTSetupToIE(insn uint32) uint32 {
	return insn&(MASK_RT|MASK_RA) | OPCD_DS_LD<<26
}

// GOTSetupToLE turns the low half of a GD/LD or IE GOT access into
// "addis rt,r13,x@tprel@ha". The @ha half becomes a nop.
func GOTSetupToLE(insn uint32) uint32 {
	return insn&MASK_RT | OP_ADDIS | 13<<16
}

// Replacements for the "bl __tls_get_addr" call of a downgraded sequence.
const (
	TLSCallToIE   = OP_ADD_R3_R3_R13       // add r3,r3,r13
	TLSCallGDToLE = OP_ADDI_R3_R3          // addi r3,r3,x@tprel@l
	TLSCallLDToLE = OP_ADDI_R3_R3 | 0x1000 // addi r3,r3,DTPOffset-TPOffset
)

// PCRelSetupToLE turns a pc-relative "paddi/pld rt,x@got@...@pcrel" into
// "paddi rt,r13,imm,0".
func PCRelSetupToLE(insn uint64, imm int64) uint64 {
	return PADDI(RT(uint32(insn)), 13, imm, false)
}

// PCRelSetupToIE turns "paddi r3,0,x@got@tlsgd@pcrel,1" into
// "pld r3,x@got@tprel@pcrel".
func PCRelSetupToIE(insn uint64) uint64 {
	return PLD(RT(uint32(insn)), 0)
}

// PLDToPADDI turns "pld rt,x@got@pcrel" into "paddi rt,0,x@pcrel,1".
func PLDToPADDI(insn uint64) (uint64, bool) {
	rt, ok := IsPLD(insn)
	if !ok {
		return 0, false
	}
	return PADDI(rt, 0, 0, true), true
}

// LDToADDI turns "ld rt,d(ra)" into "addi rt,ra,d".
func LDToADDI(insn uint32) (uint32, bool) {
	if insn>>26 != OPCD_DS_LD || insn&MASK_DS_XO != 0 {
		return 0, false
	}
	return insn&(MASK_RT|MASK_RA|MASK_DS) | OP_ADDI, true
}
