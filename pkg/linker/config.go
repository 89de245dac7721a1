package linker

import (
	"fmt"
	"strings"

	"github.com/xyproto/env/v2"
)

// Power10Mode selects between prefixed (pld/paddi) and bcl based
// sequences for stubs reached from code that does not keep r2.
type Power10Mode uint8

const (
	Power10Auto Power10Mode = iota
	Power10Yes
	Power10No
)

func ParsePower10Mode(s string) (Power10Mode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return Power10Auto, nil
	case "yes", "on":
		return Power10Yes, nil
	case "no", "off":
		return Power10No, nil
	}
	return Power10Auto, fmt.Errorf("bad --power10-stubs argument: %s", s)
}

const (
	DefaultStubGroupSize = 0x1c00000
	DefaultTOCGroupLimit = 0x10000
	DefaultErrorLimit    = 20
	DefaultDynamicLinker = "/lib64/ld64.so.2"
)

type ContextArgs struct {
	Output        string
	Emulation     MachineType
	LibraryPaths  []string
	Entry         string
	DynamicLinker string
	Soname        string

	Shared        bool
	Pie           bool
	Static        bool
	GCSections    bool
	ExportDynamic bool
	EmitRelocs    bool

	StubGroupSize    int64
	TOCGroupLimit    uint64
	PltAlign         uint64
	PltStaticChain   bool
	PltThreadSafe    bool
	PltLocalEntry    bool
	Power10Stubs     Power10Mode
	SaveRestoreFuncs bool
	EmitStubSyms     bool
	UnwindInfo       bool
	PrintStubs       bool

	NoTLSOptimize        bool
	NoTLSGetAddrOptimize bool
	NoTOCOptimize        bool
	NoMultiTOC           bool
	NoOPDOptimize        bool

	PackRelativeRelocs bool
	NoCopyReloc        bool
	ZNow               bool
}

func DefaultArgs() ContextArgs {
	return ContextArgs{
		Output:           "a.out",
		Emulation:        MachineTypeNone,
		Entry:            "_start",
		DynamicLinker:    DefaultDynamicLinker,
		StubGroupSize:    DefaultStubGroupSize,
		TOCGroupLimit:    DefaultTOCGroupLimit,
		SaveRestoreFuncs: true,
		UnwindInfo:       false,
	}
}

// LoadEnv applies PPC64LD_* environment overrides. It runs before the
// command line is parsed so that explicit options win. env caches the
// environment on first use, so the cache is reloaded here.
func LoadEnv(ctx *Context) error {
	env.Load()
	if env.Has("PPC64LD_STUB_GROUP_SIZE") {
		ctx.Args.StubGroupSize = env.Int64("PPC64LD_STUB_GROUP_SIZE", DefaultStubGroupSize)
	}
	if env.Has("PPC64LD_TOC_GROUP_LIMIT") {
		ctx.Args.TOCGroupLimit = uint64(env.Int64("PPC64LD_TOC_GROUP_LIMIT", DefaultTOCGroupLimit))
	}
	if env.Has("PPC64LD_ERROR_LIMIT") {
		ctx.Diag.Limit = env.Int("PPC64LD_ERROR_LIMIT", DefaultErrorLimit)
	}
	if env.Bool("PPC64LD_VERBOSE") {
		ctx.Diag.Verbose = true
	}
	if env.Has("PPC64LD_POWER10_STUBS") {
		mode, err := ParsePower10Mode(env.Str("PPC64LD_POWER10_STUBS"))
		if err != nil {
			return err
		}
		ctx.Args.Power10Stubs = mode
	}
	return nil
}

// EffectiveStubGroupSize applies the --stub-group-size conventions: 1
// means the default, and a negative size allows stubs on both sides of a
// group, which this linker treats like the positive size.
func (a *ContextArgs) EffectiveStubGroupSize() uint64 {
	size := a.StubGroupSize
	if size < 0 {
		size = -size
	}
	if size == 0 || size == 1 {
		return DefaultStubGroupSize
	}
	return uint64(size)
}

func (a *ContextArgs) IsPIC() bool {
	return a.Shared || a.Pie
}

// IsDynamic reports whether the output is loaded by ld.so.
func (a *ContextArgs) IsDynamic(ctx *Context) bool {
	return a.IsPIC() || len(ctx.Dsos) > 0
}
