package ppc64

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/ppc64/ppc64asm"
)

// Line is one disassembled instruction.
type Line struct {
	PC   uint64
	Len  int
	Text string
}

// Disasm decodes code loaded at pc. Words that do not decode are shown
// as ".long".
func Disasm(code []byte, pc uint64, order binary.ByteOrder) []Line {
	var lines []Line
	for len(code) >= 4 {
		inst, err := ppc64asm.Decode(code, order)
		size := inst.Len
		text := ""
		if err != nil || size == 0 {
			size = 4
			text = fmt.Sprintf(".long 0x%08x", order.Uint32(code))
		} else {
			text = ppc64asm.GNUSyntax(inst, pc)
		}
		lines = append(lines, Line{PC: pc, Len: size, Text: text})
		code = code[size:]
		pc += uint64(size)
	}
	return lines
}

// Mnemonics returns only the opcode names of code, handy in tests.
func Mnemonics(code []byte, order binary.ByteOrder) []string {
	var ops []string
	for _, l := range Disasm(code, 0, order) {
		op, _, _ := strings.Cut(l.Text, " ")
		ops = append(ops, op)
	}
	return ops
}

// Format renders lines in objdump style.
func Format(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&sb, "%8x:\t%s\n", l.PC, l.Text)
	}
	return sb.String()
}
