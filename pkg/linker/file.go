package linker

import (
	"fmt"
	"os"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// Parent is the archive a member was extracted from.
type File struct {
	Name     string
	Contents []byte
	Parent   *File
}

func MustNewFile(filename string) *File {
	contents, err := os.ReadFile(filename)
	utils.MustNo(err)
	return &File{
		Name:     filename,
		Contents: contents,
	}
}

func OpenLibrary(filepath string) *File {
	contents, err := os.ReadFile(filepath)
	if err != nil {
		return nil
	}

	return &File{
		Name:     filepath,
		Contents: contents,
	}
}

// FindLibrary looks for libNAME.so and then libNAME.a in every -L
// directory. Static links only consider archives.
func FindLibrary(ctx *Context, name string) *File {
	for _, dir := range ctx.Args.LibraryPaths {
		if !ctx.Args.Static {
			if f := OpenLibrary(dir + "/lib" + name + ".so"); f != nil {
				return f
			}
		}
		if f := OpenLibrary(dir + "/lib" + name + ".a"); f != nil {
			return f
		}
	}

	utils.Fatal(fmt.Sprintf("library not found: -l%s", name))
	return nil
}

// ArchiveName is the file name used in diagnostics for archive members.
func (f *File) ArchiveName() string {
	if f.Parent != nil {
		return f.Parent.Name
	}
	return f.Name
}
