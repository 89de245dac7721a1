package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/unicornx/ppc64ld/pkg/linker"
	"github.com/unicornx/ppc64ld/pkg/utils"
)

var version string

func main() {
	ctx := linker.NewContext()
	if err := linker.LoadEnv(ctx); err != nil {
		utils.Fatal(err)
	}
	remaining := parseArgs(ctx)

	// Without -m, the first recognizable input decides.
	if ctx.Args.Emulation == linker.MachineTypeNone {
		for _, filename := range remaining {
			if strings.HasPrefix(filename, "-") {
				continue
			}

			file := linker.MustNewFile(filename)
			ctx.Args.Emulation =
				linker.GetMachineTypeFromContents(file.Contents)
			if ctx.Args.Emulation != linker.MachineTypeNone {
				break
			}
		}
	}

	if ctx.Args.Emulation == linker.MachineTypeNone {
		utils.Fatal("unknown emulation type")
	}
	ctx.SetEmulation(ctx.Args.Emulation)

	os.Exit(run(ctx, remaining))
}

// run links and writes the output. Fatal link errors unwind to here; the
// partial output is removed.
func run(ctx *linker.Context, remaining []string) (status int) {
	var out *linker.OutBuf
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*linker.FatalError); !ok {
				panic(r)
			}
			if out != nil {
				out.Remove()
			}
			status = 1
		}
	}()

	linker.ReadInputFiles(ctx, remaining)
	linker.Link(ctx, linker.DriverLayout{})
	if ctx.Diag.Failed() {
		return 1
	}

	var err error
	out, err = linker.OpenOutBuf(ctx.Args.Output, ctx.FileSize)
	utils.MustNo(err)
	ctx.Buf = out.Bytes()

	linker.WriteOutput(ctx)
	if ctx.Diag.Failed() {
		out.Remove()
		return 1
	}
	utils.MustNo(out.Close())
	return 0
}

func parseArgs(ctx *linker.Context) []string {
	args := os.Args[1:]

	dashes := func(name string) []string {
		if len(name) == 1 {
			return []string{"-" + name}
		}
		return []string{"-" + name, "--" + name}
	}

	arg := ""
	readArg := func(name string) bool {
		for _, opt := range dashes(name) {
			if args[0] == opt {
				if len(args) == 1 {
					utils.Fatal(fmt.Sprintf("option -%s: argument missing", name))
				}

				arg = args[1]
				args = args[2:]
				return true
			}

			prefix := opt
			if len(name) > 1 {
				prefix += "="
			}
			if strings.HasPrefix(args[0], prefix) {
				arg = args[0][len(prefix):]
				args = args[1:]
				return true
			}
		}

		return false
	}

	readFlag := func(name string) bool {
		for _, opt := range dashes(name) {
			if args[0] == opt {
				args = args[1:]
				return true
			}
		}

		return false
	}

	readInt := func(name string) int64 {
		v, err := strconv.ParseInt(arg, 0, 64)
		if err != nil {
			utils.Fatal(fmt.Sprintf("invalid --%s argument: %s", name, arg))
		}
		return v
	}

	remaining := make([]string, 0)
	for len(args) > 0 {
		if readFlag("help") {
			fmt.Printf("usage: %s [options] file...\n", os.Args[0])
			os.Exit(0)
		}

		if readArg("o") || readArg("output") {
			ctx.Args.Output = arg
		} else if readFlag("v") || readFlag("version") {
			fmt.Printf("ppc64ld %s\n", version)
			os.Exit(0)
		} else if readArg("m") {
			switch arg {
			case "elf64ppc":
				ctx.Args.Emulation = linker.MachineTypePPC64
			case "elf64lppc":
				ctx.Args.Emulation = linker.MachineTypePPC64LE
			default:
				utils.Fatal(fmt.Sprintf("unknown -m argument: %s", arg))
			}
		} else if readArg("L") {
			ctx.Args.LibraryPaths = append(ctx.Args.LibraryPaths, arg)
		} else if readArg("l") {
			remaining = append(remaining, "-l"+arg)
		} else if readFlag("shared") || readFlag("Bshareable") {
			ctx.Args.Shared = true
		} else if readFlag("pie") || readFlag("pic-executable") {
			ctx.Args.Pie = true
		} else if readFlag("no-pie") {
			ctx.Args.Pie = false
		} else if readFlag("static") || readFlag("Bstatic") {
			ctx.Args.Static = true
		} else if readArg("entry") {
			ctx.Args.Entry = arg
		} else if readArg("soname") {
			ctx.Args.Soname = arg
		} else if readArg("dynamic-linker") {
			ctx.Args.DynamicLinker = arg
		} else if readFlag("gc-sections") {
			ctx.Args.GCSections = true
		} else if readFlag("no-gc-sections") {
			ctx.Args.GCSections = false
		} else if readFlag("export-dynamic") || readFlag("E") {
			ctx.Args.ExportDynamic = true
		} else if readFlag("emit-relocs") || readFlag("q") {
			ctx.Args.EmitRelocs = true
		} else if readArg("stub-group-size") {
			ctx.Args.StubGroupSize = readInt("stub-group-size")
		} else if readFlag("no-plt-align") {
			ctx.Args.PltAlign = 0
		} else if readArg("plt-align") {
			ctx.Args.PltAlign = uint64(readInt("plt-align"))
		} else if readFlag("plt-static-chain") {
			ctx.Args.PltStaticChain = true
		} else if readFlag("no-plt-static-chain") {
			ctx.Args.PltStaticChain = false
		} else if readFlag("plt-thread-safe") {
			ctx.Args.PltThreadSafe = true
		} else if readFlag("no-plt-thread-safe") {
			ctx.Args.PltThreadSafe = false
		} else if readFlag("plt-localentry") {
			ctx.Args.PltLocalEntry = true
		} else if readFlag("no-plt-localentry") {
			ctx.Args.PltLocalEntry = false
		} else if readFlag("power10-stubs") {
			ctx.Args.Power10Stubs = linker.Power10Yes
		} else if readArg("power10-stubs") {
			mode, err := linker.ParsePower10Mode(arg)
			utils.MustNo(err)
			ctx.Args.Power10Stubs = mode
		} else if readFlag("no-power10-stubs") {
			ctx.Args.Power10Stubs = linker.Power10No
		} else if readFlag("no-tls-optimize") {
			ctx.Args.NoTLSOptimize = true
		} else if readFlag("no-tls-get-addr-optimize") {
			ctx.Args.NoTLSGetAddrOptimize = true
		} else if readFlag("tls-get-addr-optimize") {
			ctx.Args.NoTLSGetAddrOptimize = false
		} else if readFlag("no-toc-optimize") {
			ctx.Args.NoTOCOptimize = true
		} else if readFlag("no-multi-toc") {
			ctx.Args.NoMultiTOC = true
		} else if readFlag("no-opd-optimize") {
			ctx.Args.NoOPDOptimize = true
		} else if readFlag("save-restore-funcs") {
			ctx.Args.SaveRestoreFuncs = true
		} else if readFlag("no-save-restore-funcs") {
			ctx.Args.SaveRestoreFuncs = false
		} else if readFlag("emit-stub-syms") {
			ctx.Args.EmitStubSyms = true
		} else if readFlag("ld-generated-unwind-info") {
			ctx.Args.UnwindInfo = true
		} else if readFlag("no-ld-generated-unwind-info") {
			ctx.Args.UnwindInfo = false
		} else if readArg("error-limit") {
			ctx.Diag.Limit = int(readInt("error-limit"))
		} else if readFlag("print-stubs") {
			ctx.Args.PrintStubs = true
		} else if readFlag("verbose") {
			ctx.Diag.Verbose = true
		} else if readArg("z") {
			switch arg {
			case "pack-relative-relocs":
				ctx.Args.PackRelativeRelocs = true
			case "nopack-relative-relocs":
				ctx.Args.PackRelativeRelocs = false
			case "nocopyreloc":
				ctx.Args.NoCopyReloc = true
			case "now":
				ctx.Args.ZNow = true
			case "lazy":
				ctx.Args.ZNow = false
			}
		} else if readArg("sysroot") ||
			readArg("plugin") ||
			readArg("plugin-opt") ||
			readFlag("as-needed") ||
			readFlag("no-as-needed") ||
			readFlag("start-group") ||
			readFlag("end-group") ||
			readFlag("Bdynamic") ||
			readFlag("eh-frame-hdr") ||
			readArg("hash-style") ||
			readFlag("build-id") ||
			readArg("build-id") ||
			readFlag("s") ||
			readFlag("no-relax") {
			// Ignored
		} else if readArg("e") {
			// single letter options last, "-e" is a prefix of long options
			ctx.Args.Entry = arg
		} else if readArg("h") {
			ctx.Args.Soname = arg
		} else if readArg("I") {
			ctx.Args.DynamicLinker = arg
		} else {
			if args[0][0] == '-' {
				utils.Fatal(fmt.Sprintf(
					"unknown command line option: %s", args[0]))
			}
			remaining = append(remaining, args[0])
			args = args[1:]
		}
	}

	for i, path := range ctx.Args.LibraryPaths {
		ctx.Args.LibraryPaths[i] = filepath.Clean(path)
	}

	return remaining
}
