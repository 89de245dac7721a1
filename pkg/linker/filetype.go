package linker

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeEmpty
	FileTypeObject
	FileTypeShared
	FileTypeArchive
)

type MachineType uint8

const (
	MachineTypeNone MachineType = iota
	MachineTypePPC64
	MachineTypePPC64LE
)

func (m MachineType) String() string {
	switch m {
	case MachineTypePPC64:
		return "elf64ppc"
	case MachineTypePPC64LE:
		return "elf64lppc"
	}
	return "none"
}

// ByteOrder is the data encoding of the target.
func (m MachineType) ByteOrder() binary.ByteOrder {
	if m == MachineTypePPC64 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// DefaultABI is the ABI version assumed when no input says otherwise.
func (m MachineType) DefaultABI() int {
	if m == MachineTypePPC64 {
		return 1
	}
	return 2
}

// ElfByteOrder returns the data encoding named by EI_DATA.
func ElfByteOrder(contents []byte) binary.ByteOrder {
	if len(contents) > int(elf.EI_DATA) &&
		contents[elf.EI_DATA] == byte(elf.ELFDATA2MSB) {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func GetFileType(contents []byte) FileType {
	if len(contents) == 0 {
		return FileTypeEmpty
	}

	if CheckMagic(contents) {
		if len(contents) < EhdrSize {
			return FileTypeUnknown
		}
		order := ElfByteOrder(contents)
		switch elf.Type(order.Uint16(contents[16:])) {
		case elf.ET_REL:
			return FileTypeObject
		case elf.ET_DYN:
			return FileTypeShared
		}
		return FileTypeUnknown
	}

	if bytes.HasPrefix(contents, []byte("!<arch>\n")) {
		return FileTypeArchive
	}
	return FileTypeUnknown
}

func GetMachineTypeFromContents(contents []byte) MachineType {
	ft := GetFileType(contents)
	if ft != FileTypeObject && ft != FileTypeShared {
		return MachineTypeNone
	}

	order := ElfByteOrder(contents)
	ehdr := utils.ReadWith[Ehdr](contents, order)
	if elf.Machine(ehdr.Machine) != elf.EM_PPC64 ||
		ehdr.Ident[elf.EI_CLASS] != byte(elf.ELFCLASS64) {
		return MachineTypeNone
	}
	if order == binary.BigEndian {
		return MachineTypePPC64
	}
	return MachineTypePPC64LE
}

func CheckFileCompatibility(ctx *Context, file *File) {
	mt := GetMachineTypeFromContents(file.Contents)
	if mt != ctx.Args.Emulation {
		utils.Fatal(fmt.Sprintf("%s: incompatible file type: want %s, got %s",
			file.Name, ctx.Args.Emulation, mt))
	}
}
