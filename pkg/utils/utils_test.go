package utils

import (
	"encoding/binary"
	"testing"
)

func TestAlignTo(t *testing.T) {
	cases := []struct{ val, align, want uint64 }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 0, 9},
		{0x1001, 0x1000, 0x2000},
	}
	for _, c := range cases {
		if got := AlignTo(c.val, c.align); got != c.want {
			t.Errorf("AlignTo(%#x, %#x) = %#x, want %#x", c.val, c.align, got, c.want)
		}
	}
}

func TestSignExtend(t *testing.T) {
	if got := SignExtend(0x8000, 15); got != 0xffff_ffff_ffff_8000 {
		t.Errorf("SignExtend(0x8000, 15) = %#x", got)
	}
	if got := SignExtend(0x7fff, 15); got != 0x7fff {
		t.Errorf("SignExtend(0x7fff, 15) = %#x", got)
	}
}

func TestFits(t *testing.T) {
	if !FitsSigned(-0x8000, 16) || FitsSigned(0x8000, 16) {
		t.Error("FitsSigned 16-bit bounds")
	}
	if !FitsSigned(1<<25-4, 26) || FitsSigned(1<<25, 26) {
		t.Error("FitsSigned 26-bit bounds")
	}
	if !FitsUnsigned(0xffff, 16) || FitsUnsigned(0x10000, 16) {
		t.Error("FitsUnsigned 16-bit bounds")
	}
}

func TestReadWriteWithOrder(t *testing.T) {
	buf := make([]byte, 4)
	WriteWith[uint32](buf, binary.BigEndian, 0x3c4c0000)
	if buf[0] != 0x3c || buf[3] != 0 {
		t.Fatalf("big endian write: % x", buf)
	}
	if got := ReadWith[uint32](buf, binary.BigEndian); got != 0x3c4c0000 {
		t.Fatalf("big endian read: %#x", got)
	}
	WriteWith[uint32](buf, binary.LittleEndian, 0x3c4c0000)
	if buf[0] != 0 || buf[3] != 0x3c {
		t.Fatalf("little endian write: % x", buf)
	}
}

func TestRemoveIf(t *testing.T) {
	got := RemoveIf([]int{1, 2, 3, 4, 5}, func(i int) bool { return i%2 == 0 })
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Fatalf("RemoveIf = %v", got)
	}
}

func TestBits(t *testing.T) {
	if got := Bits[uint32](0b1011_0000, 7, 4); got != 0b1011 {
		t.Errorf("Bits = %b", got)
	}
	if got := Bits[uint32](0x7c6c1a14, 20, 16); got != 12 {
		t.Errorf("Bits(ra) = %d", got)
	}
	if got := BitCeil(5); got != 8 {
		t.Errorf("BitCeil(5) = %d", got)
	}
}
