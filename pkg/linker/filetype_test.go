package linker

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

func arMember(name string, body []byte) []byte {
	b := []byte(fmt.Sprintf("%-16s%-12s%-6s%-6s%-8s%-10d`\n", name, "0", "0", "0", "644", len(body)))
	b = append(b, body...)
	if len(b)%2 == 1 {
		b = append(b, '\n')
	}
	return b
}

func TestGetFileType(t *testing.T) {
	obj := (&testObj{secs: []testSection{text(".text", ppc64.OP_BLR)}}).build(t)
	beObj := (&testObj{order: binary.BigEndian, secs: []testSection{text(".text", ppc64.OP_BLR)}}).build(t)

	if GetFileType(nil) != FileTypeEmpty {
		t.Errorf("empty input")
	}
	if GetFileType(obj) != FileTypeObject {
		t.Errorf("relocatable object not recognized")
	}
	if GetFileType([]byte("!<arch>\n")) != FileTypeArchive {
		t.Errorf("archive not recognized")
	}
	if GetFileType([]byte("#!/bin/sh\n")) != FileTypeUnknown {
		t.Errorf("script recognized")
	}
	if m := GetMachineTypeFromContents(obj); m != MachineTypePPC64LE {
		t.Errorf("little endian object = %s", m)
	}
	if m := GetMachineTypeFromContents(beObj); m != MachineTypePPC64 {
		t.Errorf("big endian object = %s", m)
	}
	if MachineTypePPC64.DefaultABI() != 1 || MachineTypePPC64LE.DefaultABI() != 2 {
		t.Errorf("default ABI")
	}
}

func TestReadArchiveMembers(t *testing.T) {
	long := bytes.Repeat([]byte{'a'}, 20)
	strtab := append(append([]byte{}, long...), "/\n"...)

	var ar []byte
	ar = append(ar, "!<arch>\n"...)
	ar = append(ar, arMember("/", []byte{0, 0, 0, 0})...)
	ar = append(ar, arMember("//", strtab)...)
	ar = append(ar, arMember("x.o/", []byte("abc"))...)
	ar = append(ar, arMember("/0", []byte("defg"))...)

	members := ReadArchiveMembers(&File{Name: "libt.a", Contents: ar})
	if len(members) != 2 {
		t.Fatalf("got %d members", len(members))
	}
	if members[0].Name != "libt.a(x.o)" || string(members[0].Contents) != "abc" {
		t.Errorf("member 0 = %s %q", members[0].Name, members[0].Contents)
	}
	if members[1].Name != "libt.a("+string(long)+")" || string(members[1].Contents) != "defg" {
		t.Errorf("member 1 = %s %q", members[1].Name, members[1].Contents)
	}
	if members[0].ArchiveName() != "libt.a" {
		t.Errorf("ArchiveName = %s", members[0].ArchiveName())
	}
}
