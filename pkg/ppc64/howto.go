package ppc64

import (
	"encoding/binary"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// Size is the width of the patched location.
type Size uint8

const (
	SizeNone     Size = iota // marker, nothing is written
	Size16                   // halfword, r_offset points at the immediate
	Size32                   // word
	Size64                   // doubleword
	SizePrefix34             // prefixed insn, 18+16 bit split immediate
	SizePrefix28             // prefixed insn, 12+16 bit split immediate
	SizeDX                   // addpcis style d0/d1/d2 split immediate
)

func (s Size) Bytes() int {
	switch s {
	case Size16:
		return 2
	case Size32, SizeDX:
		return 4
	case Size64, SizePrefix34, SizePrefix28:
		return 8
	}
	return 0
}

type Check uint8

const (
	CheckDont Check = iota
	CheckSigned
	CheckUnsigned
	CheckBitfield
)

// Class groups relocations by what the scanner has to do for them.
type Class uint8

const (
	ClassNone Class = iota
	ClassAbs
	ClassRel
	ClassBranch
	ClassGOT
	ClassPLT
	ClassTOC
	ClassTOCBase
	ClassTPRel
	ClassDTPRel
	ClassDTPMod
	ClassSectOff
	ClassTLSMarker
	ClassPLTSeq
	ClassTOCSave
	ClassEntry
	ClassPCRelOpt
	ClassDynamic
	ClassVT
)

// TLSKind is the kind of thread local GOT entry a relocation asks for.
type TLSKind uint8

const (
	TLSNone TLSKind = iota
	TLSGD
	TLSLD
	TLSTPRel
	TLSDTPRel
)

// Base is the address a relocation value starts from.
type Base uint8

const (
	BaseNone  Base = iota
	BaseSym        // S + A
	BaseGOT        // G, the GOT entry for (S, A)
	BasePLT        // L, the PLT entry or call stub for (S, A)
	BaseTOC        // the TOC pointer of the referencing section + A
	BaseModID      // the TLS module id
)

// Minus is subtracted from the base.
type Minus uint8

const (
	MinusNone Minus = iota
	MinusP
	MinusTOC
	MinusTP
	MinusDTP
	MinusSect
)

type Hint uint8

const (
	HintNone Hint = iota
	HintTaken
	HintNotTaken
)

// Howto describes how one relocation type computes and stores its value.
type Howto struct {
	Type       RelocType
	Name       string
	Size       Size
	BitSize    uint8
	RightShift uint8
	Round      uint64 // added before RightShift, 0x8000 for @ha
	PCRel      bool
	Check      Check
	DstMask    uint64
	Align      uint8 // required alignment of the value, 4 for DS forms
	Hint       Hint
	Class      Class
	TLS        TLSKind
	Base       Base
	Minus      Minus
	Dynamic    bool // the dynamic loader accepts this type
}

// Status is the verdict of Apply.
type Status uint8

const (
	StatusOverflow Status = 1 << iota
	StatusMisaligned
)

func (s Status) OK() bool { return s == 0 }

// Value converts the raw S+A-P style input to the field value, that is
// it applies Round and RightShift.
func (h *Howto) Value(v uint64) uint64 {
	v += h.Round
	if h.Check == CheckSigned || h.Check == CheckBitfield {
		return uint64(int64(v) >> h.RightShift)
	}
	return v >> h.RightShift
}

// Overflows reports whether v does not fit the field.
func (h *Howto) Overflows(v uint64) bool {
	v += h.Round
	n := uint(h.BitSize)
	switch h.Check {
	case CheckSigned:
		return !utils.FitsSigned(int64(v)>>h.RightShift, n)
	case CheckUnsigned:
		return !utils.FitsUnsigned(v>>h.RightShift, n)
	case CheckBitfield:
		s := int64(v) >> h.RightShift
		return !utils.FitsSigned(s, n) && !utils.FitsUnsigned(uint64(s), n)
	}
	return false
}

// Apply stores v into loc. The field is written even when the value
// overflows so that every overflowing site can be reported in one run.
func (h *Howto) Apply(loc []byte, order binary.ByteOrder, v uint64) Status {
	var st Status
	if h.Overflows(v) {
		st |= StatusOverflow
	}
	if h.Align > 1 && v&uint64(h.Align-1) != 0 {
		st |= StatusMisaligned
	}

	f := h.Value(v)
	switch h.Size {
	case Size16:
		x := uint64(order.Uint16(loc))
		order.PutUint16(loc, uint16(x&^h.DstMask|f&h.DstMask))
	case Size32:
		x := uint64(order.Uint32(loc))
		x = x&^h.DstMask | f&h.DstMask
		if h.Hint != HintNone {
			x = uint64(SetBranchHint(uint32(x), h.Hint == HintTaken))
		}
		order.PutUint32(loc, uint32(x))
	case Size64:
		x := order.Uint64(loc)
		order.PutUint64(loc, x&^h.DstMask|f&h.DstMask)
	case SizePrefix34:
		x := ReadPrefixed(loc, order)
		WritePrefixed(loc, order, x&^h.DstMask|Pack34(f)&h.DstMask)
	case SizePrefix28:
		x := ReadPrefixed(loc, order)
		WritePrefixed(loc, order, x&^h.DstMask|Pack28(f)&h.DstMask)
	case SizeDX:
		x := order.Uint32(loc)
		f &= 0xffff
		x = x&^uint32(h.DstMask) | uint32(f&0xffc1) | uint32(f&0x3e)<<15
		order.PutUint32(loc, x)
	}
	return st
}

// Pack34 spreads a 34-bit immediate over a prefix/suffix pair seen as
// one 64-bit value, prefix in the high word.
func Pack34(v uint64) uint64 {
	return (v&0x3ffff0000)<<16 | v&0xffff
}

// Unpack34 is the inverse of Pack34, sign extended.
func Unpack34(x uint64) int64 {
	v := (x>>16)&0x3ffff0000 | x&0xffff
	return int64(utils.SignExtend(v, 33))
}

func Pack28(v uint64) uint64 {
	return (v&0xfff0000)<<16 | v&0xffff
}

// SetBranchHint sets the "at" bits of a conditional branch.
func SetBranchHint(insn uint32, taken bool) uint32 {
	insn &^= 0x01 << 21
	if taken {
		insn |= 0x01 << 21
	}
	switch {
	case insn&(0x14<<21) == 0x04<<21:
		insn |= 0x02 << 21
	case insn&(0x14<<21) == 0x10<<21:
		insn |= 0x08 << 21
	}
	return insn
}

// Lookup returns the descriptor for t. Unknown codes report false and
// must be treated as unsupported relocations by the caller.
func Lookup(t RelocType) (*Howto, bool) {
	if t >= maxRelocType {
		return nil, false
	}
	h := &howtos[t]
	if h.Type != t || h.Name == "" {
		return nil, false
	}
	return h, true
}

// MustLookup is Lookup for codes the linker itself produces.
func MustLookup(t RelocType) *Howto {
	h, ok := Lookup(t)
	if !ok {
		panic("ppc64: unknown relocation " + t.String())
	}
	return h
}

// IsBranch reports whether t is a relative branch that may need a stub.
func IsBranch(t RelocType) bool {
	switch t {
	case R_PPC64_REL24, R_PPC64_REL24_NOTOC, R_PPC64_REL24_P9NOTOC,
		R_PPC64_REL14, R_PPC64_REL14_BRTAKEN, R_PPC64_REL14_BRNTAKEN:
		return true
	}
	return false
}

// IsNoTOCBranch reports whether the caller does not maintain r2.
func IsNoTOCBranch(t RelocType) bool {
	return t == R_PPC64_REL24_NOTOC || t == R_PPC64_REL24_P9NOTOC
}

func IsBranch14(t RelocType) bool {
	return t == R_PPC64_REL14 || t == R_PPC64_REL14_BRTAKEN ||
		t == R_PPC64_REL14_BRNTAKEN
}

// IsTOCHA reports whether t is the high-adjusted half of an @toc pair.
func IsTOCHA(t RelocType) bool {
	return t == R_PPC64_TOC16_HA
}

// IsLO reports whether t only keeps the low 16 bits of its value.
func IsLO(t RelocType) bool {
	h, ok := Lookup(t)
	return ok && h.Size == Size16 && h.RightShift == 0 && h.Check == CheckDont
}

// DOffset is the byte offset of the 16-bit immediate inside a 32-bit insn.
func DOffset(order binary.ByteOrder) uint64 {
	if order == binary.BigEndian {
		return 2
	}
	return 0
}
