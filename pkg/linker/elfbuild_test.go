package linker

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

// testRela names its symbol; a name starting with '#' is the section
// symbol of the named section.
type testRela struct {
	off    uint64
	typ    ppc64.RelocType
	sym    string
	addend int64
}

type testSection struct {
	name    string
	typ     elf.SectionType
	flags   elf.SectionFlag
	align   uint64
	data    []byte
	entsize uint64
	relas   []testRela

	// SHT_GROUP only
	signature string
	members   []string
}

type testSym struct {
	name  string
	bind  elf.SymBind
	typ   elf.SymType
	sec   string // "" for undefined
	value uint64
	size  uint64
	other uint8
}

type testObj struct {
	order binary.ByteOrder
	flags uint32
	secs  []testSection
	syms  []testSym // locals first
}

func text(name string, insns ...uint32) testSection {
	return testSection{name: name, typ: elf.SHT_PROGBITS,
		flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, align: 4, data: words(binary.LittleEndian, insns...)}
}

func data(name string, size int) testSection {
	return testSection{name: name, typ: elf.SHT_PROGBITS,
		flags: elf.SHF_ALLOC | elf.SHF_WRITE, align: 8, data: make([]byte, size)}
}

func words(order binary.ByteOrder, insns ...uint32) []byte {
	b := make([]byte, 4*len(insns))
	for i, insn := range insns {
		order.PutUint32(b[i*4:], insn)
	}
	return b
}

func global(name, sec string, value uint64) testSym {
	return testSym{name: name, bind: elf.STB_GLOBAL, typ: elf.STT_FUNC, sec: sec, value: value}
}

func undef(name string) testSym {
	return testSym{name: name, bind: elf.STB_GLOBAL, typ: elf.STT_NOTYPE}
}

func sectionSym(sec string) testSym {
	return testSym{name: "#" + sec, bind: elf.STB_LOCAL, typ: elf.STT_SECTION, sec: sec}
}

func (b *testObj) build(t *testing.T) []byte {
	t.Helper()
	order := b.order
	if order == nil {
		order = binary.LittleEndian
	}

	secIdx := map[string]int{}
	for i, s := range b.secs {
		secIdx[s.name] = i + 1
	}
	symIdx := map[string]int{}
	firstGlobal := 1
	for i, s := range b.syms {
		symIdx[s.name] = i + 1
		if s.bind == elf.STB_LOCAL {
			firstGlobal = i + 2
		}
	}

	var shdrs []Shdr
	var bodies [][]byte
	shstr := []byte{0}
	addName := func(tab *[]byte, name string) uint32 {
		off := uint32(len(*tab))
		*tab = append(append(*tab, name...), 0)
		return off
	}
	lookupSym := func(name string) uint32 {
		idx, ok := symIdx[name]
		if !ok {
			t.Fatalf("test object: unknown symbol %q", name)
		}
		return uint32(idx)
	}

	shdrs = append(shdrs, Shdr{})
	bodies = append(bodies, nil)

	nsec := len(b.secs)
	nrela := 0
	for _, s := range b.secs {
		if len(s.relas) > 0 {
			nrela++
		}
	}
	symtabIdx := nsec + nrela + 1

	for _, s := range b.secs {
		sh := Shdr{Name: addName(&shstr, s.name), Type: uint32(s.typ), Flags: uint64(s.flags),
			AddrAlign: s.align, EntSize: s.entsize}
		body := s.data
		if s.typ == elf.SHT_GROUP {
			body = words(order, GRP_COMDAT)
			for _, m := range s.members {
				body = append(body, words(order, uint32(secIdx[m]))...)
			}
			sh.Link = uint32(symtabIdx)
			sh.Info = lookupSym(s.signature)
			sh.AddrAlign = 4
			sh.EntSize = 4
		}
		sh.Size = uint64(len(body))
		shdrs = append(shdrs, sh)
		bodies = append(bodies, body)
	}

	for _, s := range b.secs {
		if len(s.relas) == 0 {
			continue
		}
		buf := &bytes.Buffer{}
		for _, r := range s.relas {
			rel := Rela{Offset: r.off, Info: RelaInfo(lookupSym(r.sym), uint32(r.typ)), Addend: r.addend}
			if err := binary.Write(buf, order, rel); err != nil {
				t.Fatal(err)
			}
		}
		shdrs = append(shdrs, Shdr{Name: addName(&shstr, ".rela"+s.name), Type: uint32(elf.SHT_RELA),
			Flags: uint64(elf.SHF_INFO_LINK), Size: uint64(buf.Len()), Link: uint32(symtabIdx),
			Info: uint32(secIdx[s.name]), AddrAlign: 8, EntSize: uint64(RelaSize)})
		bodies = append(bodies, buf.Bytes())
	}

	strtab := []byte{0}
	symbuf := &bytes.Buffer{}
	binary.Write(symbuf, order, Sym{})
	for _, s := range b.syms {
		esym := Sym{Info: SymInfo(s.bind, uint8(s.typ)), Other: s.other, Val: s.value, Size: s.size}
		if s.typ != elf.STT_SECTION {
			esym.Name = addName(&strtab, s.name)
		}
		if s.sec != "" {
			idx, ok := secIdx[s.sec]
			if !ok {
				t.Fatalf("test object: unknown section %q", s.sec)
			}
			esym.Shndx = uint16(idx)
		}
		if err := binary.Write(symbuf, order, esym); err != nil {
			t.Fatal(err)
		}
	}
	shdrs = append(shdrs, Shdr{Name: addName(&shstr, ".symtab"), Type: uint32(elf.SHT_SYMTAB),
		Size: uint64(symbuf.Len()), Link: uint32(symtabIdx + 1), Info: uint32(firstGlobal),
		AddrAlign: 8, EntSize: uint64(SymSize)})
	bodies = append(bodies, symbuf.Bytes())
	shdrs = append(shdrs, Shdr{Name: addName(&shstr, ".strtab"), Type: uint32(elf.SHT_STRTAB),
		Size: uint64(len(strtab)), AddrAlign: 1})
	bodies = append(bodies, strtab)
	shstrName := addName(&shstr, ".shstrtab")
	shdrs = append(shdrs, Shdr{Name: shstrName, Type: uint32(elf.SHT_STRTAB),
		Size: uint64(len(shstr)), AddrAlign: 1})
	bodies = append(bodies, shstr)

	out := make([]byte, EhdrSize)
	for i := 1; i < len(shdrs); i++ {
		for len(out)%8 != 0 {
			out = append(out, 0)
		}
		shdrs[i].Offset = uint64(len(out))
		out = append(out, bodies[i]...)
	}
	for len(out)%8 != 0 {
		out = append(out, 0)
	}
	shoff := uint64(len(out))
	shbuf := &bytes.Buffer{}
	for _, sh := range shdrs {
		if err := binary.Write(shbuf, order, sh); err != nil {
			t.Fatal(err)
		}
	}
	out = append(out, shbuf.Bytes()...)

	ehdr := Ehdr{
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(elf.EM_PPC64),
		Version:   uint32(elf.EV_CURRENT),
		ShOff:     shoff,
		Flags:     b.flags,
		EhSize:    uint16(EhdrSize),
		ShEntSize: uint16(ShdrSize),
		ShNum:     uint16(len(shdrs)),
		ShStrndx:  uint16(len(shdrs) - 1),
	}
	copy(ehdr.Ident[:], "\177ELF")
	ehdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	if order == binary.BigEndian {
		ehdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	}
	ehdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hbuf := &bytes.Buffer{}
	if err := binary.Write(hbuf, order, ehdr); err != nil {
		t.Fatal(err)
	}
	copy(out, hbuf.Bytes())
	return out
}

func newTestContext(m MachineType) *Context {
	ctx := NewContext()
	ctx.SetEmulation(m)
	ctx.Diag.W = &bytes.Buffer{}
	return ctx
}

// addObject parses b as an object named name and adds it to the link.
func addObject(t *testing.T, ctx *Context, name string, b *testObj, inLib bool) *ObjectFile {
	t.Helper()
	if ctx.Args.Emulation == MachineTypePPC64 {
		b.order = binary.BigEndian
	}
	o := CreateObjectFile(ctx, &File{Name: name, Contents: b.build(t)}, inLib)
	ctx.Objs = append(ctx.Objs, o)
	return o
}

func findSection(o *ObjectFile, name string) *InputSection {
	for _, isec := range o.Sections {
		if isec != nil && isec.Name() == name {
			return isec
		}
	}
	return nil
}
