package linker

import (
	"debug/elf"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

func gcTestObject() *testObj {
	initArray := data(".init_array", 8)
	initArray.typ = elf.SHT_INIT_ARRAY
	start := text(".text._start", ppc64.OP_BL, ppc64.OP_NOP, ppc64.OP_BLR)
	start.relas = []testRela{{off: 0, typ: ppc64.R_PPC64_REL24, sym: "used"}}
	return &testObj{
		secs: []testSection{
			start,
			text(".text.used", ppc64.OP_BLR),
			text(".text.unused", ppc64.OP_BLR),
			initArray,
		},
		syms: []testSym{
			global("_start", ".text._start", 0),
			global("used", ".text.used", 0),
			global("unused", ".text.unused", 0),
		},
	}
}

func TestCollectGarbage(t *testing.T) {
	tests := []struct {
		name       string
		gc, shared bool
		unusedLive bool
	}{
		{"disabled", false, false, true},
		{"executable", true, false, false},
		{"shared keeps exports", true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(MachineTypePPC64LE)
			ctx.Args.GCSections = tt.gc
			ctx.Args.Shared = tt.shared
			o := addObject(t, ctx, "a.o", gcTestObject(), false)

			ResolveSymbols(ctx)
			CollectGarbage(ctx)

			for _, name := range []string{".text._start", ".text.used", ".init_array"} {
				if !findSection(o, name).IsAlive {
					t.Errorf("%s was collected", name)
				}
			}
			if got := findSection(o, ".text.unused").IsAlive; got != tt.unusedLive {
				t.Errorf(".text.unused alive = %v, want %v", got, tt.unusedLive)
			}
		})
	}
}

func TestIsGCRoot(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	o := addObject(t, ctx, "a.o", &testObj{
		secs: []testSection{
			data(".init_array.00100", 8),
			data(".initfoo", 8),
			data(".note.ABI-tag", 8),
			{name: ".comment", typ: elf.SHT_PROGBITS, align: 1, data: []byte("x\x00")},
		},
	}, false)

	want := map[string]bool{
		".init_array.00100": true,
		".initfoo":          false,
		".note.ABI-tag":     true,
		".comment":          true,
	}
	for name, root := range want {
		if got := isGCRoot(findSection(o, name)); got != root {
			t.Errorf("isGCRoot(%s) = %v, want %v", name, got, root)
		}
	}
}
