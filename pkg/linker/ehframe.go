package linker

import (
	"debug/elf"
	"encoding/binary"
)

// DWARF call frame opcodes used for stub unwind info.
const (
	dwCFAAdvanceLoc        = 0x40
	dwCFAAdvanceLoc1       = 0x02
	dwCFAAdvanceLoc2       = 0x03
	dwCFAAdvanceLoc4       = 0x04
	dwCFAOffsetExtendedSF  = 0x11
	dwCFARestoreExtended   = 0x06
	dwCFARegister          = 0x09
	dwCFADefCFA            = 0x0c
	dwEHPEPCRelSData4      = 0x1b
	ppc64LinkRegisterDwarf = 65
)

// cieSize is the size of the one CIE that every stub FDE points at.
const cieSize = 20

// EhFrameSection describes how stubs that move the link register unwind
// (--ld-generated-unwind-info). Input .eh_frame sections are not merged,
// so this is the only unwind info in the output.
type EhFrameSection struct {
	Sec *InputSection
}

func NewEhFrameSection(ctx *Context) *EhFrameSection {
	e := &EhFrameSection{}
	e.Sec = NewSyntheticSection(ctx, ctx.Internal, ".eh_frame", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC), 3, e)
	ctx.Internal.Sections = append(ctx.Internal.Sections, e.Sec)
	return e
}

func (e *EhFrameSection) groups(ctx *Context) []*StubGroup {
	if !ctx.Args.UnwindInfo {
		return nil
	}
	var gs []*StubGroup
	for _, g := range ctx.StubGroups {
		if len(g.lr) > 0 && g.size > 0 {
			gs = append(gs, g)
		}
	}
	return gs
}

func sleb(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

// cfaProgram turns the link register events of a group into call frame
// instructions. Code alignment is 4 and data alignment -8.
func cfaProgram(order binary.ByteOrder, events []lrEvent) []byte {
	var b []byte
	var tmp [4]byte
	last := uint64(0)
	for _, ev := range events {
		delta := (ev.Off - last) / 4
		switch {
		case delta == 0:
		case delta < 0x40:
			b = append(b, dwCFAAdvanceLoc|byte(delta))
		case delta < 0x100:
			b = append(b, dwCFAAdvanceLoc1, byte(delta))
		case delta < 0x10000:
			b = append(b, dwCFAAdvanceLoc2)
			order.PutUint16(tmp[:], uint16(delta))
			b = append(b, tmp[:2]...)
		default:
			b = append(b, dwCFAAdvanceLoc4)
			order.PutUint32(tmp[:], uint32(delta))
			b = append(b, tmp[:]...)
		}
		last = ev.Off

		switch ev.Kind {
		case lrInReg:
			b = append(b, dwCFARegister, ppc64LinkRegisterDwarf, byte(ev.Arg))
		case lrOnStack:
			b = append(b, dwCFAOffsetExtendedSF, ppc64LinkRegisterDwarf)
			b = sleb(b, ev.Arg/-8)
		case lrRestored:
			b = append(b, dwCFARestoreExtended, ppc64LinkRegisterDwarf)
		}
	}
	return b
}

// fdeSize is the size of the FDE for a group, length field included,
// padded to 4 bytes.
func fdeSize(g *StubGroup) uint64 {
	n := uint64(4 + 4 + 4 + 4 + 1 + len(cfaProgram(binary.BigEndian, g.lr)))
	return (n + 3) &^ 3
}

func (e *EhFrameSection) Size(ctx *Context) uint64 {
	gs := e.groups(ctx)
	if len(gs) == 0 {
		return 0
	}
	size := uint64(cieSize)
	for _, g := range gs {
		size += fdeSize(g)
	}
	return size + 4
}

func (e *EhFrameSection) WriteTo(ctx *Context, buf []byte) {
	gs := e.groups(ctx)
	if len(gs) == 0 {
		return
	}
	o := ctx.Order

	o.PutUint32(buf, cieSize-4)
	o.PutUint32(buf[4:], 0)
	cie := []byte{1, 'z', 'R', 0, 4, 0x78, ppc64LinkRegisterDwarf, 1, dwEHPEPCRelSData4,
		dwCFADefCFA, 1, 0}
	copy(buf[8:], cie)

	off := uint64(cieSize)
	base := e.Sec.GetAddr()
	for _, g := range gs {
		size := fdeSize(g)
		rec := buf[off : off+size]
		for i := range rec {
			rec[i] = 0
		}
		o.PutUint32(rec, uint32(size-4))
		o.PutUint32(rec[4:], uint32(off+4))
		o.PutUint32(rec[8:], uint32(g.Sec.GetAddr()-(base+off+8)))
		o.PutUint32(rec[12:], uint32(g.size))
		rec[16] = 0
		copy(rec[17:], cfaProgram(o, g.lr))
		off += size
	}
	o.PutUint32(buf[off:], 0)
}
