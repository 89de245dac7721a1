package linker

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestSleb(t *testing.T) {
	tests := []struct {
		v    int64
		want []byte
	}{
		{2, []byte{0x02}},
		{-1, []byte{0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-128, []byte{0x80, 0x7f}},
	}
	for _, tt := range tests {
		if got := sleb(nil, tt.v); !bytes.Equal(got, tt.want) {
			t.Errorf("sleb(%d) = % x, want % x", tt.v, got, tt.want)
		}
	}
}

func TestCFAProgram(t *testing.T) {
	events := []lrEvent{
		{Off: 4, Kind: lrInReg, Arg: 12},
		{Off: 16, Kind: lrRestored},
		{Off: 16 + 0x40*4, Kind: lrOnStack, Arg: 16},
	}
	want := []byte{
		0x41, dwCFARegister, ppc64LinkRegisterDwarf, 12,
		0x43, dwCFARestoreExtended, ppc64LinkRegisterDwarf,
		dwCFAAdvanceLoc1, 0x40, dwCFAOffsetExtendedSF, ppc64LinkRegisterDwarf, 0x7e,
	}
	if got := cfaProgram(binary.BigEndian, events); !bytes.Equal(got, want) {
		t.Errorf("cfaProgram = % x\nwant         % x", got, want)
	}
}

func TestEhFrameSection(t *testing.T) {
	ctx, g := stubTestContext(MachineTypePPC64LE)
	ctx.EhFrame = NewEhFrameSection(ctx)
	place(ctx.EhFrame.Sec, testTextAddr+0x1000)
	g.size = 64
	g.lr = []lrEvent{{Off: 4, Kind: lrInReg, Arg: 12}, {Off: 16, Kind: lrRestored}}

	if ctx.EhFrame.Size(ctx) != 0 {
		t.Fatalf("unwind info emitted without --ld-generated-unwind-info")
	}
	ctx.Args.UnwindInfo = true

	size := ctx.EhFrame.Size(ctx)
	if size != cieSize+24+4 {
		t.Fatalf("size = %d", size)
	}
	buf := make([]byte, size)
	ctx.EhFrame.WriteTo(ctx, buf)

	o := ctx.Order
	if o.Uint32(buf) != cieSize-4 || o.Uint32(buf[4:]) != 0 {
		t.Errorf("bad CIE header % x", buf[:8])
	}
	fde := buf[cieSize:]
	if o.Uint32(fde) != 20 || o.Uint32(fde[4:]) != cieSize+4 {
		t.Errorf("bad FDE header % x", fde[:8])
	}
	pcBegin := int32(o.Uint32(fde[8:]))
	if want := int32(testTextAddr - (testTextAddr + 0x1000 + cieSize + 8)); pcBegin != want {
		t.Errorf("pc begin = %d, want %d", pcBegin, want)
	}
	if o.Uint32(fde[12:]) != 64 {
		t.Errorf("pc range = %d", o.Uint32(fde[12:]))
	}
	if o.Uint32(buf[size-4:]) != 0 {
		t.Errorf("missing terminator")
	}
}
