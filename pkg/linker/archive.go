package linker

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

type ArHdr struct {
	Name [16]byte
	Date [12]byte
	Uid  [6]byte
	Gid  [6]byte
	Mode [8]byte
	Size [10]byte
	Fmag [2]byte
}

const ArHdrSize = 60

func (a *ArHdr) HasPrefix(s string) bool {
	return strings.HasPrefix(string(a.Name[:]), s)
}

func (a *ArHdr) IsStrtab() bool {
	return a.HasPrefix("// ")
}

func (a *ArHdr) IsSymtab() bool {
	return a.HasPrefix("/ ") || a.HasPrefix("/SYM64/ ")
}

func (a *ArHdr) GetSize() int {
	size, err := strconv.Atoi(strings.TrimSpace(string(a.Size[:])))
	utils.MustNo(err)
	return size
}

func (a *ArHdr) ReadName(strTab []byte) string {
	// GNU long name: "/123" is an offset into the "//" member.
	if a.HasPrefix("/") {
		start, err := strconv.Atoi(strings.TrimSpace(string(a.Name[1:])))
		utils.MustNo(err)
		end := start + bytes.Index(strTab[start:], []byte("/\n"))
		return string(strTab[start:end])
	}

	end := bytes.IndexByte(a.Name[:], '/')
	utils.Assert(end != -1)
	return string(a.Name[:end])
}

// ReadArchiveMembers splits a System V ar archive into its object files.
func ReadArchiveMembers(file *File) []*File {
	utils.Assert(GetFileType(file.Contents) == FileTypeArchive)

	pos := 8
	var strTab []byte
	var files []*File
	for len(file.Contents)-pos > 1 {
		if pos%2 == 1 {
			pos++
		}
		hdr := utils.Read[ArHdr](file.Contents[pos:])
		dataStart := pos + ArHdrSize
		pos = dataStart + hdr.GetSize()
		dataEnd := pos
		contents := file.Contents[dataStart:dataEnd]

		if hdr.IsSymtab() {
			continue
		} else if hdr.IsStrtab() {
			strTab = contents
			continue
		}

		files = append(files, &File{
			Name:     file.Name + "(" + hdr.ReadName(strTab) + ")",
			Contents: contents,
			Parent:   file,
		})
	}

	return files
}
