package linker

import (
	"bytes"
	"debug/elf"
	"unsafe"
)

const PageSize = 65536

// Link-time base of an executable image, as GNU ld uses for ppc64.
const IMAGE_BASE uint64 = 0x10000000

// ELF values debug/elf does not name.
const (
	SHF_EXCLUDE      uint64 = 0x80000000
	SHT_RELR         uint32 = 19
	SHT_LLVM_ADDRSIG uint32 = 0x6fff4c03
	STT_GNU_IFUNC    uint8  = 10
	GRP_COMDAT       uint32 = 1
	PT_GNU_STACK     uint32 = 0x6474e551

	EF_PPC64_ABI uint32 = 3

	STO_PPC64_LOCAL_BIT  = 5
	STO_PPC64_LOCAL_MASK = 0xe0

	DT_RELRSZ        = 35
	DT_RELR          = 36
	DT_RELRENT       = 37
	DT_PPC64_GLINK   = 0x70000000
	DT_PPC64_OPD     = 0x70000001
	DT_PPC64_OPDSZ   = 0x70000002
	DT_PPC64_OPT     = 0x70000003
	DF_1_NOW         = 0x1
	DF_1_PIE         = 0x08000000
	PPC64_OPT_TLS    = 1
	PPC64_OPT_MULTI  = 2
	PPC64_OPT_LOCENT = 4
)

type Ehdr struct {
	Ident     [16]uint8
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

type Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type Phdr struct {
	Type     uint32
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

type Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Val   uint64
	Size  uint64
}

// Rela keeps r_info whole. Splitting it into two uint32 fields only
// decodes correctly for little-endian input.
type Rela struct {
	Offset uint64
	Info   uint64
	Addend int64
}

type Dyn struct {
	Tag int64
	Val uint64
}

const (
	EhdrSize = int(unsafe.Sizeof(Ehdr{}))
	ShdrSize = int(unsafe.Sizeof(Shdr{}))
	PhdrSize = int(unsafe.Sizeof(Phdr{}))
	SymSize  = int(unsafe.Sizeof(Sym{}))
	RelaSize = int(unsafe.Sizeof(Rela{}))
	DynSize  = int(unsafe.Sizeof(Dyn{}))
)

func (s *Sym) IsAbs() bool {
	return s.Shndx == uint16(elf.SHN_ABS)
}

func (s *Sym) IsUndef() bool {
	return s.Shndx == uint16(elf.SHN_UNDEF)
}

func (s *Sym) IsCommon() bool {
	return s.Shndx == uint16(elf.SHN_COMMON)
}

func (s *Sym) Type() uint8 {
	return s.Info & 0xf
}

func (s *Sym) Bind() uint8 {
	return s.Info >> 4
}

func (s *Sym) IsWeak() bool {
	return s.Bind() == uint8(elf.STB_WEAK)
}

func (s *Sym) IsUndefWeak() bool {
	return s.IsUndef() && s.IsWeak()
}

func (s *Sym) Visibility() uint8 {
	return s.Other & 3
}

// LocalEntryOffset is the ELFv2 distance from the global to the local
// entry point encoded in st_other.
func LocalEntryOffset(other uint8) uint64 {
	v := (other & STO_PPC64_LOCAL_MASK) >> STO_PPC64_LOCAL_BIT
	return ((1 << v) >> 2) << 2
}

func SymInfo(bind elf.SymBind, typ uint8) uint8 {
	return uint8(bind)<<4 | typ&0xf
}

func (r *Rela) Sym() uint32 {
	return uint32(r.Info >> 32)
}

func (r *Rela) Type() uint32 {
	return uint32(r.Info)
}

func (r *Rela) SetType(t uint32) {
	r.Info = r.Info&^0xffffffff | uint64(t)
}

func (r *Rela) SetSym(sym uint32) {
	r.Info = uint64(sym)<<32 | r.Info&0xffffffff
}

func RelaInfo(sym, typ uint32) uint64 {
	return uint64(sym)<<32 | uint64(typ)
}

func ElfGetName(strTab []byte, offset uint32) string {
	length := uint32(bytes.Index(strTab[offset:], []byte{0}))
	return string(strTab[offset : offset+length])
}

func WriteString(buf []byte, str string) int64 {
	copy(buf, str)
	buf[len(str)] = 0
	return int64(len(str)) + 1
}

func CheckMagic(contents []byte) bool {
	return bytes.HasPrefix(contents, []byte("\177ELF"))
}

func WriteMagic(contents []byte) {
	copy(contents, "\177ELF")
}
