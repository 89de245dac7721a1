package linker

import (
	"debug/elf"
	"fmt"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

// savresFamily is one family of out-of-line register save/restore
// functions. Entry N handles registers N..31 and falls through to the
// next entry, so one copy starting at the lowest referenced N serves
// every entry above it.
type savresFamily struct {
	prefix string
	lo     int
	words  int // instructions per register
	reg    func(n int) []uint32
	tail   []uint32
}

func stvx(vr, ra, rb uint32) uint32 {
	return ppc64.OPCD_X<<26 | vr<<21 | ra<<16 | rb<<11 | 231<<1
}

func lvx(vr, ra, rb uint32) uint32 {
	return ppc64.OPCD_X<<26 | vr<<21 | ra<<16 | rb<<11 | 103<<1
}

func gprSlot(n int) int64 { return -8 * int64(32-n) }

func vrSlot(n int) int64 { return -16 * int64(32-n) }

var savresFamilies = []savresFamily{
	{prefix: "_savegpr0_", lo: 14, words: 1,
		reg: func(n int) []uint32 {
			return []uint32{ppc64.EncodeDS(ppc64.OPCD_DS_STD, uint32(n), 1, gprSlot(n), 0)}
		},
		tail: []uint32{ppc64.OP_STD_R0_0R1 | 16, ppc64.OP_BLR}},
	{prefix: "_restgpr0_", lo: 14, words: 1,
		reg: func(n int) []uint32 {
			return []uint32{ppc64.EncodeDS(ppc64.OPCD_DS_LD, uint32(n), 1, gprSlot(n), 0)}
		},
		tail: []uint32{ppc64.OP_LD_R0_0R1 | 16, ppc64.OP_MTLR_R0, ppc64.OP_BLR}},
	{prefix: "_savegpr1_", lo: 14, words: 1,
		reg: func(n int) []uint32 {
			return []uint32{ppc64.EncodeDS(ppc64.OPCD_DS_STD, uint32(n), 12, gprSlot(n), 0)}
		},
		tail: []uint32{ppc64.OP_BLR}},
	{prefix: "_restgpr1_", lo: 14, words: 1,
		reg: func(n int) []uint32 {
			return []uint32{ppc64.EncodeDS(ppc64.OPCD_DS_LD, uint32(n), 12, gprSlot(n), 0)}
		},
		tail: []uint32{ppc64.OP_BLR}},
	{prefix: "_savefpr_", lo: 14, words: 1,
		reg: func(n int) []uint32 {
			return []uint32{ppc64.EncodeD(ppc64.OPCD_STFD, uint32(n), 1, gprSlot(n))}
		},
		tail: []uint32{ppc64.OP_STD_R0_0R1 | 16, ppc64.OP_BLR}},
	{prefix: "_restfpr_", lo: 14, words: 1,
		reg: func(n int) []uint32 {
			return []uint32{ppc64.EncodeD(ppc64.OPCD_LFD, uint32(n), 1, gprSlot(n))}
		},
		tail: []uint32{ppc64.OP_LD_R0_0R1 | 16, ppc64.OP_MTLR_R0, ppc64.OP_BLR}},
	{prefix: "_savevr_", lo: 20, words: 2,
		reg: func(n int) []uint32 {
			return []uint32{ppc64.OP_LI_R12 | uint32(vrSlot(n))&ppc64.MASK_D, stvx(uint32(n), 12, 0)}
		},
		tail: []uint32{ppc64.OP_BLR}},
	{prefix: "_restvr_", lo: 20, words: 2,
		reg: func(n int) []uint32 {
			return []uint32{ppc64.OP_LI_R12 | uint32(vrSlot(n))&ppc64.MASK_D, lvx(uint32(n), 12, 0)}
		},
		tail: []uint32{ppc64.OP_BLR}},
}

// savresRun is the part of a family that is emitted.
type savresRun struct {
	fam   *savresFamily
	first int
	off   uint64
}

func (r *savresRun) size() uint64 {
	return uint64((32-r.first)*r.fam.words+len(r.fam.tail)) * 4
}

// SaveResSection is .sfpr, holding the save/restore functions the inputs
// reference but nobody defines.
type SaveResSection struct {
	Sec  *InputSection
	runs []savresRun
	size uint64
}

func NewSaveResSection(ctx *Context) *SaveResSection {
	s := &SaveResSection{}
	s.Sec = NewSyntheticSection(ctx, ctx.Internal, ".sfpr", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR), 2, s)
	ctx.Internal.Sections = append(ctx.Internal.Sections, s.Sec)
	return s
}

// DefineSaveResFunctions defines every referenced and undefined
// save/restore function in .sfpr.
func DefineSaveResFunctions(ctx *Context) {
	if !ctx.Args.SaveRestoreFuncs {
		return
	}
	s := ctx.Sfpr
	s.runs = s.runs[:0]
	s.size = 0

	for i := range savresFamilies {
		fam := &savresFamilies[i]
		first := -1
		for n := fam.lo; n < 32; n++ {
			if sym, ok := ctx.SymbolMap[fmt.Sprint(fam.prefix, n)]; ok && sym.IsUndef() {
				first = n
				break
			}
		}
		if first < 0 {
			continue
		}

		run := savresRun{fam: fam, first: first, off: s.size}
		for n := first; n < 32; n++ {
			sym, ok := ctx.SymbolMap[fmt.Sprint(fam.prefix, n)]
			if !ok || !sym.IsUndef() {
				continue
			}
			sym.File = ctx.Internal
			sym.Dso = nil
			sym.SetInputSection(s.Sec)
			sym.Value = run.off + uint64((n-first)*fam.words)*4
			sym.Type = uint8(elf.STT_FUNC)
			sym.Bind = elf.STB_GLOBAL
			sym.Other = uint8(elf.STV_HIDDEN)
		}
		s.runs = append(s.runs, run)
		s.size += run.size()
		ctx.Logf("defined %s%d..31", fam.prefix, first)
	}
}

func (s *SaveResSection) Size(ctx *Context) uint64 {
	return s.size
}

func (s *SaveResSection) WriteTo(ctx *Context, buf []byte) {
	w := newInsnWriter(ctx, buf, s.Sec.GetAddr())
	for _, run := range s.runs {
		for n := run.first; n < 32; n++ {
			for _, insn := range run.fam.reg(n) {
				w.insn(insn)
			}
		}
		for _, insn := range run.fam.tail {
			w.insn(insn)
		}
	}
}
