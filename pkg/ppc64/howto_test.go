package ppc64

import (
	"encoding/binary"
	"testing"
)

func TestApply16(t *testing.T) {
	tests := []struct {
		typ  RelocType
		v    uint64
		want uint16
	}{
		{R_PPC64_ADDR16_HA, 0x12348000, 0x1235},
		{R_PPC64_ADDR16_HA, 0x12347fff, 0x1234},
		{R_PPC64_ADDR16_HI, 0x12348000, 0x1234},
		{R_PPC64_ADDR16_LO, 0x12348000, 0x8000},
		{R_PPC64_ADDR16_HIGHER, 0x0000_5678_0000_0000, 0x5678},
		{R_PPC64_ADDR16_HIGHERA, 0x0000_5678_ffff_8000, 0x5679},
		{R_PPC64_ADDR16_HIGHEST, 0x9abc_0000_0000_0000, 0x9abc},
		{R_PPC64_ADDR16_HIGHER34, 0x0001_2345_0000_0000 << 2, 0x2345},
	}
	for _, tt := range tests {
		for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
			loc := make([]byte, 2)
			st := MustLookup(tt.typ).Apply(loc, order, tt.v)
			if got := order.Uint16(loc); got != tt.want || !st.OK() {
				t.Errorf("%v(%#x) = %#x, %v; want %#x", tt.typ, tt.v, got, st, tt.want)
			}
		}
	}
}

func TestApplyOverflow(t *testing.T) {
	tests := []struct {
		typ  RelocType
		v    uint64
		want Status
	}{
		{R_PPC64_ADDR16, 0x10000, StatusOverflow},
		{R_PPC64_ADDR16, 0xffff, 0},
		{R_PPC64_TOC16, 0x8000, StatusOverflow},
		{R_PPC64_TOC16, uint64(0xffffffffffff8000), 0},
		{R_PPC64_REL24, 1 << 25, StatusOverflow},
		{R_PPC64_REL24, uint64(0xfffffffffe000000), 0},
		{R_PPC64_REL14, 0x8000, StatusOverflow},
		{R_PPC64_ADDR16_LO_DS, 6, StatusMisaligned},
		{R_PPC64_GOT16_DS, 0x9002, StatusOverflow | StatusMisaligned},
		{R_PPC64_ADDR16_HA, 0x7fff8000, StatusOverflow},
		{R_PPC64_ADDR16_HA, 0x7fff7fff, 0},
		{R_PPC64_PCREL34, 1 << 33, StatusOverflow},
		{R_PPC64_PCREL34, 1<<33 - 1, 0},
	}
	for _, tt := range tests {
		loc := make([]byte, 8)
		if got := MustLookup(tt.typ).Apply(loc, binary.BigEndian, tt.v); got != tt.want {
			t.Errorf("%v(%#x) status = %v; want %v", tt.typ, tt.v, got, tt.want)
		}
	}
}

func TestApplyDSKeepsLowBits(t *testing.T) {
	// lwa r3,0(r3): the xo bits below the displacement must survive
	loc := make([]byte, 4)
	binary.BigEndian.PutUint32(loc, 0xe8630002)
	MustLookup(R_PPC64_ADDR16_LO_DS).Apply(loc[2:], binary.BigEndian, 0x1238)
	if got := binary.BigEndian.Uint32(loc); got != 0xe863123a {
		t.Errorf("insn = %#x", got)
	}
}

func TestApplyPrefix34(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		loc := make([]byte, 8)
		WritePrefixed(loc, order, OP_PLD_R12_PC)
		st := MustLookup(R_PPC64_PCREL34).Apply(loc, order, 0x123456789)
		if !st.OK() {
			t.Fatalf("status %v", st)
		}
		insn := ReadPrefixed(loc, order)
		if insn != 0x04112345_e5806789 {
			t.Errorf("insn = %#x", insn)
		}
		if v := Unpack34(insn); v != 0x123456789 {
			t.Errorf("Unpack34 = %#x", v)
		}
	}
}

func TestPack34Negative(t *testing.T) {
	v := int64(-8)
	if got := Unpack34(Pack34(uint64(v))); got != v {
		t.Errorf("Unpack34(Pack34(-8)) = %d", got)
	}
}

func TestApplyD34HA30(t *testing.T) {
	loc := make([]byte, 8)
	WritePrefixed(loc, binary.BigEndian, uint64(OP_PADDI_PFX)<<32|OP_ADDI)
	v := uint64(3)<<34 | 1<<33
	MustLookup(R_PPC64_D34_HA30).Apply(loc, binary.BigEndian, v)
	if got := Unpack34(ReadPrefixed(loc, binary.BigEndian)); got != 4 {
		t.Errorf("ha30 = %d; want 4", got)
	}
}

func TestBranchHint(t *testing.T) {
	const beq = 0x41820000
	if got := SetBranchHint(beq, true); got != 0x41e20000 {
		t.Errorf("taken = %#x", got)
	}
	if got := SetBranchHint(beq, false); got != 0x41c20000 {
		t.Errorf("not taken = %#x", got)
	}

	loc := make([]byte, 4)
	binary.LittleEndian.PutUint32(loc, beq)
	MustLookup(R_PPC64_REL14_BRTAKEN).Apply(loc, binary.LittleEndian, 0x40)
	if got := binary.LittleEndian.Uint32(loc); got != 0x41e20040 {
		t.Errorf("REL14_BRTAKEN = %#x", got)
	}
}

func TestApplyDX(t *testing.T) {
	loc := make([]byte, 4)
	binary.BigEndian.PutUint32(loc, 0x4c000004)
	MustLookup(R_PPC64_REL16DX_HA).Apply(loc, binary.BigEndian, 0x12345678)
	if got := binary.BigEndian.Uint32(loc); got != 0x4c1a1204 {
		t.Errorf("addpcis = %#x", got)
	}
}

func TestIsLO(t *testing.T) {
	if !IsLO(R_PPC64_TOC16_LO) || !IsLO(R_PPC64_GOT16_LO_DS) {
		t.Error("low halves not recognised")
	}
	if IsLO(R_PPC64_TOC16_HA) || IsLO(R_PPC64_ADDR64) {
		t.Error("non-low recognised as low")
	}
}
