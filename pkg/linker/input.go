package linker

import (
	"fmt"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// ReadInputFiles loads what is left of the command line once options are
// parsed: objects, archives, shared objects and -lNAME references, in
// command line order.
func ReadInputFiles(ctx *Context, remaining []string) {
	for _, arg := range remaining {
		if name, ok := utils.RemovePrefix(arg, "-l"); ok {
			ReadFile(ctx, FindLibrary(ctx, name))
		} else {
			ReadFile(ctx, MustNewFile(arg))
		}
	}
}

func ReadFile(ctx *Context, file *File) {
	switch GetFileType(file.Contents) {
	case FileTypeObject:
		ctx.Objs = append(ctx.Objs, CreateObjectFile(ctx, file, false))
	case FileTypeArchive:
		for _, child := range ReadArchiveMembers(file) {
			if GetFileType(child.Contents) != FileTypeObject {
				ctx.Warnf("%s: skipping archive member that is not an object", child.Name)
				continue
			}
			ctx.Objs = append(ctx.Objs, CreateObjectFile(ctx, child, true))
		}
	case FileTypeShared:
		if ctx.Args.Static {
			ctx.Fatalf("%s: attempted static link of dynamic object", file.Name)
		}
		CheckFileCompatibility(ctx, file)
		dso, err := NewSharedFile(file)
		if err != nil {
			ctx.Fatalf("%v", err)
		}
		ctx.Dsos = append(ctx.Dsos, dso)
	case FileTypeEmpty:
		ctx.Warnf("%s: empty input file", file.Name)
	default:
		utils.Fatal(fmt.Sprintf("%s: unknown file type", file.Name))
	}
}

// CreateObjectFile parses an object. Objects named directly are live;
// archive members wait until a reference pulls them in.
func CreateObjectFile(ctx *Context, file *File, inLib bool) *ObjectFile {
	CheckFileCompatibility(ctx, file)

	obj := NewObjectFile(file, !inLib)
	obj.Parse(ctx)
	return obj
}
