package linker

import (
	"bytes"
	"strings"
	"testing"
)

func TestParsePower10Mode(t *testing.T) {
	tests := []struct {
		in   string
		want Power10Mode
		err  bool
	}{
		{"", Power10Auto, false},
		{"auto", Power10Auto, false},
		{"YES", Power10Yes, false},
		{"off", Power10No, false},
		{"maybe", Power10Auto, true},
	}
	for _, tt := range tests {
		got, err := ParsePower10Mode(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParsePower10Mode(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestEffectiveStubGroupSize(t *testing.T) {
	tests := []struct {
		size int64
		want uint64
	}{
		{0, DefaultStubGroupSize},
		{1, DefaultStubGroupSize},
		{-0x100000, 0x100000},
		{0x200000, 0x200000},
	}
	for _, tt := range tests {
		a := DefaultArgs()
		a.StubGroupSize = tt.size
		if got := a.EffectiveStubGroupSize(); got != tt.want {
			t.Errorf("EffectiveStubGroupSize(%d) = %#x, want %#x", tt.size, got, tt.want)
		}
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PPC64LD_STUB_GROUP_SIZE", "1048576")
	t.Setenv("PPC64LD_ERROR_LIMIT", "3")
	t.Setenv("PPC64LD_POWER10_STUBS", "no")
	ctx := NewContext()
	if err := LoadEnv(ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Args.StubGroupSize != 1<<20 || ctx.Diag.Limit != 3 || ctx.Args.Power10Stubs != Power10No {
		t.Errorf("args = %+v, limit %d", ctx.Args, ctx.Diag.Limit)
	}

	// later changes to the environment are seen by the next load
	t.Setenv("PPC64LD_STUB_GROUP_SIZE", "2097152")
	t.Setenv("PPC64LD_POWER10_STUBS", "sometimes")
	ctx = NewContext()
	if err := LoadEnv(ctx); err == nil {
		t.Errorf("bad power10 mode accepted")
	}
	if ctx.Args.StubGroupSize != 2<<20 {
		t.Errorf("stub group size = %d after reload", ctx.Args.StubGroupSize)
	}
}

func TestErrorLimit(t *testing.T) {
	ctx := NewContext()
	var out bytes.Buffer
	ctx.Diag.W = &out
	ctx.Diag.Limit = 2

	ctx.Errorf("first")
	ctx.Errorf("second")
	ctx.Warnf("careful")
	if !ctx.Diag.Failed() || ctx.Diag.Warnings != 1 {
		t.Fatalf("diag = %+v", ctx.Diag)
	}

	defer func() {
		err, ok := recover().(*FatalError)
		if !ok || err.Msg != "too many errors" {
			t.Fatalf("recovered %v", err)
		}
		if !strings.Contains(out.String(), "ppc64ld: error: first") ||
			!strings.Contains(out.String(), "ppc64ld: warning: careful") {
			t.Errorf("output:\n%s", out.String())
		}
	}()
	ctx.Errorf("third")
	t.Errorf("third error did not abort the link")
}

func TestVerboseLog(t *testing.T) {
	ctx := NewContext()
	var out bytes.Buffer
	ctx.Diag.W = &out
	ctx.Logf("hidden")
	ctx.Diag.Verbose = true
	ctx.Logf("shown %d", 1)
	if out.String() != "ppc64ld: shown 1\n" {
		t.Errorf("log output %q", out.String())
	}
}
