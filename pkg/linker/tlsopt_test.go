package linker

import (
	"debug/elf"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
)

const testTLSAddr = 0x10040000

// tlsGDObject calls __tls_get_addr(tv@tlsgd) with a marker relocation.
func tlsGDObject(defined bool) *testObj {
	code := text(".text",
		ppc64.OP_ADDIS|3<<21|2<<16, // addis r3,r2,tv@got@tlsgd@ha
		ppc64.OP_ADDI_R3_R3,        // addi r3,r3,tv@got@tlsgd@l
		ppc64.OP_BL,
		ppc64.OP_NOP)
	code.relas = []testRela{
		{off: 0, typ: ppc64.R_PPC64_GOT_TLSGD16_HA, sym: "tv"},
		{off: 4, typ: ppc64.R_PPC64_GOT_TLSGD16_LO, sym: "tv"},
		{off: 8, typ: ppc64.R_PPC64_TLSGD, sym: "tv"},
		{off: 8, typ: ppc64.R_PPC64_REL24, sym: "__tls_get_addr"},
	}
	tdata := testSection{name: ".tdata", typ: elf.SHT_PROGBITS,
		flags: elf.SHF_ALLOC | elf.SHF_WRITE | elf.SHF_TLS, align: 8, data: make([]byte, 8)}

	tv := undef("tv")
	if defined {
		tv = testSym{name: "tv", bind: elf.STB_GLOBAL, typ: elf.STT_TLS, sec: ".tdata", size: 8}
	}
	return &testObj{
		secs: []testSection{code, tdata},
		syms: []testSym{global("_start", ".text", 0), tv, undef("__tls_get_addr")},
	}
}

func TestOptimizeTLSGeneralDynamic(t *testing.T) {
	const none = ppc64.R_PPC64_NONE
	tests := []struct {
		name    string
		defined bool
		want    []string
		types   []ppc64.RelocType
		tprel   uint32
	}{
		{
			name:    "local exec",
			defined: true,
			want:    []string{"nop", "addis", "addi", "nop"},
			types:   []ppc64.RelocType{none, ppc64.R_PPC64_TPREL16_HA, ppc64.R_PPC64_TPREL16_LO, none},
		},
		{
			name:  "initial exec",
			want:  []string{"addis", "ld", "add", "nop"},
			types: []ppc64.RelocType{ppc64.R_PPC64_GOT_TPREL16_HA, ppc64.R_PPC64_GOT_TPREL16_LO_DS, none, none},
			tprel: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(MachineTypePPC64LE)
			o := addObject(t, ctx, "a.o", tlsGDObject(tt.defined), false)
			ResolveSymbols(ctx)
			if ctx.TLSGetAddr == nil {
				t.Fatalf("__tls_get_addr not found")
			}
			place(findSection(o, ".tdata"), testTLSAddr)
			ctx.TpAddr = testTLSAddr + ppc64.TPOffset

			isec := findSection(o, ".text")
			CheckRelocs(ctx, isec)
			OptimizeTLS(ctx)

			if got := ppc64.Mnemonics(isec.Contents, ctx.Order); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
			var types []ppc64.RelocType
			for _, rel := range isec.GetRels() {
				types = append(types, ppc64.RelocType(rel.Type()))
			}
			if !reflect.DeepEqual(types, tt.types) {
				t.Errorf("relocations = %v, want %v", types, tt.types)
			}

			tv := ctx.SymbolMap["tv"]
			if e := tv.FindGot(o, 0, ppc64.TLSGD); e == nil || e.Alloc.Refcount() != 0 {
				t.Errorf("GD GOT entry still referenced")
			}
			refs := uint32(0)
			if e := tv.FindGot(o, 0, ppc64.TLSTPRel); e != nil {
				refs = e.Alloc.Refcount()
			}
			if refs != tt.tprel {
				t.Errorf("TPREL GOT references = %d, want %d", refs, tt.tprel)
			}
		})
	}
}

func TestOptimizeTLSMarkerlessCall(t *testing.T) {
	const mr = 0x7fe3fb78 // mr r3,r31

	t.Run("paired with its setup", func(t *testing.T) {
		obj := tlsGDObject(true)
		code := &obj.secs[0]
		code.relas = append(code.relas[:2], code.relas[3])

		ctx := newTestContext(MachineTypePPC64LE)
		o := addObject(t, ctx, "a.o", obj, false)
		ResolveSymbols(ctx)
		place(findSection(o, ".tdata"), testTLSAddr)
		ctx.TpAddr = testTLSAddr + ppc64.TPOffset
		isec := findSection(o, ".text")
		CheckRelocs(ctx, isec)
		OptimizeTLS(ctx)

		if got, want := ppc64.Mnemonics(isec.Contents, ctx.Order), []string{"nop", "addis", "addi", "nop"}; !reflect.DeepEqual(got, want) {
			t.Errorf("code = %v, want %v", got, want)
		}
		call := isec.GetRels()[2]
		if ppc64.RelocType(call.Type()) != ppc64.R_PPC64_TPREL16_LO || o.Symbols[call.Sym()] != ctx.SymbolMap["tv"] {
			t.Errorf("call relocation = %s against %s", ppc64.RelocType(call.Type()), o.Symbols[call.Sym()].Name)
		}
	})

	t.Run("unrelated call after a marked sequence", func(t *testing.T) {
		obj := tlsGDObject(true)
		code := &obj.secs[0]
		code.data = append(code.data, words(binary.LittleEndian, mr, ppc64.OP_BL, ppc64.OP_NOP)...)
		code.relas = append(code.relas, testRela{off: 20, typ: ppc64.R_PPC64_REL24, sym: "__tls_get_addr"})

		ctx := newTestContext(MachineTypePPC64LE)
		o := addObject(t, ctx, "a.o", obj, false)
		ResolveSymbols(ctx)
		place(findSection(o, ".tdata"), testTLSAddr)
		ctx.TpAddr = testTLSAddr + ppc64.TPOffset
		isec := findSection(o, ".text")
		before := append([]byte(nil), isec.Contents...)
		CheckRelocs(ctx, isec)
		OptimizeTLS(ctx)

		if len(ctx.TLSCallSetup) != 0 || !o.TLSOptDisabled {
			t.Fatalf("call at 20 paired with %v", ctx.TLSCallSetup)
		}
		if !reflect.DeepEqual(isec.Contents, before) {
			t.Errorf("code rewritten: %v", ppc64.Mnemonics(isec.Contents, ctx.Order))
		}
		last := isec.GetRels()[4]
		if last.Offset != 20 || ppc64.RelocType(last.Type()) != ppc64.R_PPC64_REL24 {
			t.Errorf("call relocation = %s at %d", ppc64.RelocType(last.Type()), last.Offset)
		}
	})
}

func TestOptimizeTLSKeepsSharedOutput(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	ctx.Args.Shared = true
	o := addObject(t, ctx, "a.o", tlsGDObject(true), false)
	ResolveSymbols(ctx)
	isec := findSection(o, ".text")
	before := append([]byte(nil), isec.Contents...)

	CheckRelocs(ctx, isec)
	OptimizeTLS(ctx)

	if !reflect.DeepEqual(isec.Contents, before) {
		t.Errorf("shared output was rewritten")
	}
	if tlsDecide(ctx, o, ctx.SymbolMap["tv"], 0, ppc64.TLSLD) != tlsKeep {
		t.Errorf("local dynamic downgraded in a shared object")
	}
}

func TestTLSDecide(t *testing.T) {
	ctx := newTestContext(MachineTypePPC64LE)
	o := addObject(t, ctx, "a.o", tlsGDObject(true), false)
	ResolveSymbols(ctx)
	place(findSection(o, ".tdata"), testTLSAddr)
	ctx.TpAddr = testTLSAddr + ppc64.TPOffset
	tv := ctx.SymbolMap["tv"]

	if got := tlsDecide(ctx, o, tv, 0, ppc64.TLSLD); got != tlsToLE {
		t.Errorf("LD = %d, want LE", got)
	}
	if got := tlsDecide(ctx, o, tv, 0, ppc64.TLSGD); got != tlsToLE {
		t.Errorf("GD = %d, want LE", got)
	}
	if got := tlsDecide(ctx, o, tv, 1<<40, ppc64.TLSGD); got != tlsToIE {
		t.Errorf("GD out of range = %d, want IE", got)
	}
	if got := tlsDecide(ctx, o, tv, 0, ppc64.TLSTPRel); got != tlsKeep {
		t.Errorf("IE without @tls = %d, want keep", got)
	}
	tv.TLSMask |= TlsTLS
	if got := tlsDecide(ctx, o, tv, 0, ppc64.TLSTPRel); got != tlsToLE {
		t.Errorf("IE = %d, want LE", got)
	}
	o.TLSOptDisabled = true
	if got := tlsDecide(ctx, o, tv, 0, ppc64.TLSLD); got != tlsKeep {
		t.Errorf("disabled object = %d, want keep", got)
	}
}
