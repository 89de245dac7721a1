package ppc64

import (
	"encoding/binary"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// Instruction words used by stubs, glink and the optimizers.
const (
	OP_NOP       = 0x60000000 // nop
	OP_B         = 0x48000000 // b
	OP_BL        = 0x48000001 // bl
	OP_BLR       = 0x4e800020 // blr
	OP_BCTR      = 0x4e800420 // bctr
	OP_BCTRL     = 0x4e800421 // bctrl
	OP_BEQLR     = 0x4d820020 // beqlr
	OP_BCL_20_31 = 0x429f0005 // bcl 20,31,.+4
	OP_ADDI      = 0x38000000 // addi
	OP_ADDIS     = 0x3c000000 // addis
	OP_ORI       = 0x60000000 // ori
	OP_ORIS      = 0x64000000 // oris
	OP_LD        = 0xe8000000 // ld
	OP_STD       = 0xf8000000 // std
	OP_CMPDI     = 0x2c200000 // cmpdi
	OP_MFLR      = 0x7c0802a6 // mflr
	OP_MTLR      = 0x7c0803a6 // mtlr
	OP_MTCTR     = 0x7c0903a6 // mtctr
	OP_RLDICR    = 0x78000004 // rldicr
	OP_CROR      = 0x4c000382 // cror

	OP_PADDI_PFX   = 0x06000000 // paddi prefix word
	OP_PADDI_PFX_R = 0x06100000 // paddi prefix word, pc relative
	OP_PLD_PFX     = 0x04000000 // pld prefix word
	OP_PLD_PFX_R   = 0x04100000 // pld prefix word, pc relative
	OP_PLD_SFX     = 0xe4000000 // pld suffix word
	OP_PNOP        = 0x07000000 // pnop prefix word, suffix is zero

	OP_ADDIS_R2_R2     = OP_ADDIS | 2<<21 | 2<<16           // addis r2,r2,0
	OP_ADDI_R2_R2      = OP_ADDI | 2<<21 | 2<<16            // addi r2,r2,0
	OP_ADDIS_R12_R2    = OP_ADDIS | 12<<21 | 2<<16          // addis r12,r2,0
	OP_ADDIS_R12_R12   = OP_ADDIS | 12<<21 | 12<<16         // addis r12,r12,0
	OP_ADDIS_R12_R11   = OP_ADDIS | 12<<21 | 11<<16         // addis r12,r11,0
	OP_ADDI_R12_R12    = OP_ADDI | 12<<21 | 12<<16          // addi r12,r12,0
	OP_ADDIS_R11_R2    = OP_ADDIS | 11<<21 | 2<<16          // addis r11,r2,0
	OP_ADDI_R11_R11    = OP_ADDI | 11<<21 | 11<<16          // addi r11,r11,0
	OP_ADDIS_R3_R13    = OP_ADDIS | 3<<21 | 13<<16          // addis r3,r13,0
	OP_ADDI_R3_R3      = OP_ADDI | 3<<21 | 3<<16            // addi r3,r3,0
	OP_ADDI_R0_R12     = OP_ADDI | 0<<21 | 12<<16           // addi r0,r12,0
	OP_LI_R0           = OP_ADDI | 0<<21                    // li r0,0
	OP_LI_R11          = OP_ADDI | 11<<21                   // li r11,0
	OP_LIS_R11         = OP_ADDIS | 11<<21                  // lis r11,0
	OP_ORI_R11_R11     = OP_ORI | 11<<21 | 11<<16           // ori r11,r11,0
	OP_ORIS_R11_R11    = OP_ORIS | 11<<21 | 11<<16          // oris r11,r11,0
	OP_LD_R2_0R1       = OP_LD | 2<<21 | 1<<16              // ld r2,0(r1)
	OP_STD_R2_0R1      = OP_STD | 2<<21 | 1<<16             // std r2,0(r1)
	OP_LD_R2_0R11      = OP_LD | 2<<21 | 11<<16             // ld r2,0(r11)
	OP_LD_R2_0R12      = OP_LD | 2<<21 | 12<<16             // ld r2,0(r12)
	OP_LD_R11_0R2      = OP_LD | 11<<21 | 2<<16             // ld r11,0(r2)
	OP_LD_R11_0R11     = OP_LD | 11<<21 | 11<<16            // ld r11,0(r11)
	OP_LD_R11_0R12     = OP_LD | 11<<21 | 12<<16            // ld r11,0(r12)
	OP_LD_R12_0R2      = OP_LD | 12<<21 | 2<<16             // ld r12,0(r2)
	OP_LD_R12_0R11     = OP_LD | 12<<21 | 11<<16            // ld r12,0(r11)
	OP_LD_R12_0R12     = OP_LD | 12<<21 | 12<<16            // ld r12,0(r12)
	OP_LD_R0_0R11      = OP_LD | 0<<21 | 11<<16             // ld r0,0(r11)
	OP_LD_R11_0R3      = OP_LD | 11<<21 | 3<<16             // ld r11,0(r3)
	OP_LD_R12_0R3      = OP_LD | 12<<21 | 3<<16             // ld r12,0(r3)
	OP_STD_R0_0R1      = OP_STD | 0<<21 | 1<<16             // std r0,0(r1)
	OP_LD_R0_0R1       = OP_LD | 0<<21 | 1<<16              // ld r0,0(r1)
	OP_STD_R11_0R1     = OP_STD | 11<<21 | 1<<16            // std r11,0(r1)
	OP_LD_R11_0R1      = OP_LD | 11<<21 | 1<<16             // ld r11,0(r1)
	OP_MFLR_R0         = OP_MFLR | 0<<21                    // mflr r0
	OP_MFLR_R11        = OP_MFLR | 11<<21                   // mflr r11
	OP_MFLR_R12        = OP_MFLR | 12<<21                   // mflr r12
	OP_MTLR_R0         = OP_MTLR | 0<<21                    // mtlr r0
	OP_MTLR_R11        = OP_MTLR | 11<<21                   // mtlr r11
	OP_MTLR_R12        = OP_MTLR | 12<<21                   // mtlr r12
	OP_MTCTR_R12       = OP_MTCTR | 12<<21                  // mtctr r12
	OP_MTCTR_R11       = OP_MTCTR | 11<<21                  // mtctr r11
	OP_CMPDI_R11_0     = OP_CMPDI | 11<<16                  // cmpdi r11,0
	OP_CROR_15_15_15   = OP_CROR | 15<<21 | 15<<16 | 15<<11 // cror 15,15,15
	OP_MR_R0_R3        = 0x7c601b78                         // mr r0,r3
	OP_MR_R3_R0        = 0x7c030378                         // mr r3,r0
	OP_ADD_R3_R12_R13  = 0x7c6c6a14                         // add r3,r12,r13
	OP_ADD_R3_R3_R13   = 0x7c636a14                         // add r3,r3,r13
	OP_ADD_R2_R2_R12   = 0x7c426214                         // add r2,r2,r12
	OP_ADD_R11_R0_R11  = 0x7d605a14                         // add r11,r0,r11
	OP_ADD_R11_R11_R2  = 0x7d6b1214                         // add r11,r11,r2
	OP_ADD_R11_R12_R11 = 0x7d6c5a14                         // add r11,r12,r11
	OP_ADD_R12_R11_R12 = 0x7d8b6214                         // add r12,r11,r12
	OP_LDX_R12_R11_R12 = 0x7d8b602a                         // ldx r12,r11,r12
	OP_SUB_R12_R12_R11 = 0x7d8b6050                         // sub r12,r12,r11
	OP_XOR_R2_R12_R12  = 0x7d826278                         // xor r2,r12,r12
	OP_XOR_R11_R12_R12 = 0x7d8b6278                         // xor r11,r12,r12
	OP_SRDI_R0_R0_2    = 0x7800f082                         // srdi r0,r0,2
	OP_SLDI_R11_R11_32 = 0x796b07c6                         // sldi r11,r11,32
	OP_SLDI_R12_R12_32 = 0x798c07c6                         // sldi r12,r12,32
	OP_LI_R12          = OP_ADDI | 12<<21                   // li r12,0
	OP_LIS_R12         = OP_ADDIS | 12<<21                  // lis r12,0
	OP_ORI_R12_R12     = OP_ORI | 12<<21 | 12<<16           // ori r12,r12,0
	OP_ORIS_R12_R12    = OP_ORIS | 12<<21 | 12<<16          // oris r12,r12,0

	OP_PLD_R12_PC   = uint64(OP_PLD_PFX_R)<<32 | OP_PLD_SFX | 12<<21 // pld r12,0(0),1
	OP_PADDI_R12_PC = uint64(OP_PADDI_PFX_R)<<32 | OP_ADDI | 12<<21  // paddi r12,0,0,1
	OP_PNOP_PAIR    = uint64(OP_PNOP) << 32                          // pnop

	MASK_OPCODE = 0xfc000000
	MASK_RT     = 0x03e00000
	MASK_RA     = 0x001f0000
	MASK_RB     = 0x0000f800
	MASK_D      = 0x0000ffff
	MASK_DS     = 0x0000fffc
	MASK_DS_XO  = 0x00000003
	MASK_LI     = 0x03fffffc
)

// Primary opcodes.
const (
	OPCD_PREFIX = 1
	OPCD_BC     = 16
	OPCD_B      = 18
	OPCD_ADDI   = 14
	OPCD_ADDIS  = 15
	OPCD_ORI    = 24
	OPCD_ORIS   = 25
	OPCD_X      = 31
	OPCD_LWZ    = 32
	OPCD_LBZ    = 34
	OPCD_STW    = 36
	OPCD_STB    = 38
	OPCD_LHZ    = 40
	OPCD_LHA    = 42
	OPCD_STH    = 44
	OPCD_LFS    = 48
	OPCD_LFD    = 50
	OPCD_STFS   = 52
	OPCD_STFD   = 54
	OPCD_LQ     = 56
	OPCD_DS_LD  = 58
	OPCD_DS_STD = 62
)

// DForm is a decoded D-form instruction: OPCD RT,D(RA).
type DForm struct {
	Opcode uint32
	RT     uint32
	RA     uint32
	Imm    int16
}

func DecodeD(insn uint32) DForm {
	return DForm{
		Opcode: insn >> 26,
		RT:     (insn & MASK_RT) >> 21,
		RA:     (insn & MASK_RA) >> 16,
		Imm:    int16(insn & MASK_D),
	}
}

func (d DForm) Encode() uint32 {
	return EncodeD(d.Opcode, d.RT, d.RA, int64(d.Imm))
}

// EncodeD builds a D-form instruction. Only the low 16 bits of imm are
// kept.
func EncodeD(opcode, rt, ra uint32, imm int64) uint32 {
	return opcode<<26 | (rt&31)<<21 | (ra&31)<<16 | uint32(imm)&MASK_D
}

// DSForm is a decoded DS-form instruction (ld, std, lwa...).
type DSForm struct {
	Opcode uint32
	RT     uint32
	RA     uint32
	Imm    int16 // byte offset, low two bits zero
	XO     uint32
}

func DecodeDS(insn uint32) DSForm {
	return DSForm{
		Opcode: insn >> 26,
		RT:     (insn & MASK_RT) >> 21,
		RA:     (insn & MASK_RA) >> 16,
		Imm:    int16(insn & MASK_DS),
		XO:     insn & MASK_DS_XO,
	}
}

func (d DSForm) Encode() uint32 {
	return EncodeDS(d.Opcode, d.RT, d.RA, int64(d.Imm), d.XO)
}

func EncodeDS(opcode, rt, ra uint32, imm int64, xo uint32) uint32 {
	return opcode<<26 | (rt&31)<<21 | (ra&31)<<16 | uint32(imm)&MASK_DS | xo&MASK_DS_XO
}

// EncodeI builds an I-form branch to pc+off.
func EncodeI(off int64, link bool) uint32 {
	insn := uint32(OP_B) | uint32(off)&MASK_LI
	if link {
		insn |= 1
	}
	return insn
}

// BranchOffset returns the displacement of an I-form or B-form branch.
func BranchOffset(insn uint32) int64 {
	switch insn >> 26 {
	case OPCD_B:
		return int64(utils.SignExtend(uint64(insn&MASK_LI), 25))
	case OPCD_BC:
		return int64(utils.SignExtend(uint64(insn&0xfffc), 15))
	}
	return 0
}

// FitsBranch24 reports whether off is reachable by b/bl.
func FitsBranch24(off int64) bool {
	return off&3 == 0 && off >= -(1<<25) && off < 1<<25
}

// FitsBranch14 reports whether off is reachable by bc.
func FitsBranch14(off int64) bool {
	return off&3 == 0 && off >= -(1<<15) && off < 1<<15
}

func Opcode(insn uint32) uint32 { return insn >> 26 }

func RT(insn uint32) uint32 { return utils.Bits(insn, 25, 21) }

func RA(insn uint32) uint32 { return utils.Bits(insn, 20, 16) }

func RB(insn uint32) uint32 { return utils.Bits(insn, 15, 11) }

func IsBL(insn uint32) bool { return insn&(MASK_OPCODE|3) == OP_BL }

func IsNop(insn uint32) bool { return insn == OP_NOP }

// IsTOCRestore reports whether insn is a TOC pointer reload from the
// stack, "ld r2,off(r1)" with off either ELFv1's 40 or ELFv2's 24.
func IsTOCRestore(insn uint32) bool {
	return insn == OP_LD_R2_0R1|40 || insn == OP_LD_R2_0R1|24
}

// IsLoadDS reports whether insn is a DS-form load or store.
func IsLoadDS(insn uint32) bool {
	switch insn >> 26 {
	case OPCD_DS_LD, OPCD_DS_STD:
		return true
	}
	return false
}

// IsLoadD reports whether insn is a D-form load/store whose displacement
// may carry an @toc@l or @got@l value.
func IsLoadD(insn uint32) bool {
	switch insn >> 26 {
	case OPCD_LWZ, OPCD_LWZ + 1, OPCD_LBZ, OPCD_LBZ + 1, OPCD_STW, OPCD_STW + 1,
		OPCD_STB, OPCD_STB + 1, OPCD_LHZ, OPCD_LHZ + 1, OPCD_LHA, OPCD_LHA + 1,
		OPCD_STH, OPCD_STH + 1, OPCD_LFS, OPCD_LFS + 1, OPCD_LFD, OPCD_LFD + 1,
		OPCD_STFS, OPCD_STFS + 1, OPCD_STFD, OPCD_STFD + 1:
		return true
	}
	return false
}

// HA returns the high adjusted half of v, for "addis rX,rY,v@ha".
func HA(v uint64) uint32 {
	return uint32((v+0x8000)>>16) & 0xffff
}

func LO(v uint64) uint32 {
	return uint32(v) & 0xffff
}

// PCRel34 reports whether a 34-bit pc-relative field reaches off.
func PCRel34(off int64) bool {
	return utils.FitsSigned(off, 34)
}

// ReadPrefixed reads a prefixed instruction, prefix word in the high half.
func ReadPrefixed(loc []byte, order binary.ByteOrder) uint64 {
	return uint64(order.Uint32(loc))<<32 | uint64(order.Uint32(loc[4:]))
}

func WritePrefixed(loc []byte, order binary.ByteOrder, insn uint64) {
	order.PutUint32(loc, uint32(insn>>32))
	order.PutUint32(loc[4:], uint32(insn))
}

// IsPrefixed reports whether the word at insn starts a prefixed instruction.
func IsPrefixed(insn uint32) bool {
	return insn>>26 == OPCD_PREFIX
}

// EncodePrefixed fills the split 34-bit immediate of a prefixed pair.
func EncodePrefixed(insn uint64, imm int64) uint64 {
	return insn&^0x3ffff0000ffff | Pack34(uint64(imm))&0x3ffff0000ffff
}

// PLD returns "pld rt,off(0),1".
func PLD(rt uint32, off int64) uint64 {
	insn := uint64(OP_PLD_PFX_R)<<32 | OP_PLD_SFX | uint64(rt&31)<<21
	return EncodePrefixed(insn, off)
}

// PADDI returns "paddi rt,ra,imm,r".
func PADDI(rt, ra uint32, imm int64, pcrel bool) uint64 {
	pfx := uint64(OP_PADDI_PFX)
	if pcrel {
		pfx = OP_PADDI_PFX_R
		ra = 0
	}
	insn := pfx<<32 | OP_ADDI | uint64(rt&31)<<21 | uint64(ra&31)<<16
	return EncodePrefixed(insn, imm)
}

// IsPLD reports whether a prefixed pair is pld, and returns its target.
func IsPLD(insn uint64) (rt uint32, ok bool) {
	if insn>>32&0xff800000 != OP_PLD_PFX || uint32(insn)&MASK_OPCODE != OP_PLD_SFX {
		return 0, false
	}
	return RT(uint32(insn)), true
}

// IsPADDI reports whether a prefixed pair is paddi (or pla).
func IsPADDI(insn uint64) (rt uint32, ok bool) {
	if insn>>32&0xff800000 != OP_PADDI_PFX || uint32(insn)&MASK_OPCODE != OP_ADDI {
		return 0, false
	}
	return RT(uint32(insn)), true
}

// CrossesBoundary reports whether a prefixed instruction at off would
// straddle a 64-byte boundary.
func CrossesBoundary(off uint64) bool {
	return off&63 == 60
}
