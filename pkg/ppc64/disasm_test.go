package ppc64

import (
	"encoding/binary"
	"strings"
	"testing"
)

func TestDisasm(t *testing.T) {
	code := make([]byte, 16)
	order := binary.LittleEndian
	order.PutUint32(code, OP_STD_R2_0R1|24)
	WritePrefixed(code[4:], order, OP_PLD_R12_PC)
	order.PutUint32(code[12:], OP_LD_R2_0R1|24)

	lines := Disasm(code, 0x1000, order)
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), Format(lines))
	}
	if lines[1].PC != 0x1004 || lines[1].Len != 8 || lines[2].PC != 0x100c {
		t.Errorf("bad layout:\n%s", Format(lines))
	}
	if !strings.HasPrefix(lines[0].Text, "std") || !strings.HasPrefix(lines[2].Text, "ld") {
		t.Errorf("unexpected text:\n%s", Format(lines))
	}
	if ops := Mnemonics(code, order); ops[1] != "pld" {
		t.Errorf("Mnemonics = %v", ops)
	}
}
