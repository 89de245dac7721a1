package linker

import (
	"debug/elf"
)

// NewInternalFile makes the pseudo object that owns linker generated
// sections and linker defined symbols.
func NewInternalFile(ctx *Context) *ObjectFile {
	o := &ObjectFile{}
	o.File = &File{Name: "<internal>"}
	o.IsAlive = true
	o.Order = ctx.Order
	o.ABI = ctx.ABI
	return o
}

// linkerSym is a symbol the linker defines when an input references it.
// Its value is recomputed after every layout. Addr reports false when the
// symbol should take the anchor address.
type linkerSym struct {
	Sym  *Symbol
	Addr func(ctx *Context) (uint64, bool)
}

func osecRange(ctx *Context, name string, end bool) (uint64, bool) {
	for _, osec := range ctx.OutputSections {
		if osec.Name != name || osec.Shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		if end {
			return osec.Shdr.Addr + osec.Shdr.Size, true
		}
		return osec.Shdr.Addr, true
	}
	return 0, false
}

func sectionStart(name string) func(*Context) (uint64, bool) {
	return func(ctx *Context) (uint64, bool) { return osecRange(ctx, name, false) }
}

func sectionEnd(name string) func(*Context) (uint64, bool) {
	return func(ctx *Context) (uint64, bool) { return osecRange(ctx, name, true) }
}

func imageEnd(ctx *Context, progbitsOnly bool) (uint64, bool) {
	end, ok := uint64(0), false
	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()
		if shdr.Flags&uint64(elf.SHF_ALLOC) == 0 || shdr.Size == 0 {
			continue
		}
		if shdr.Flags&uint64(elf.SHF_TLS) != 0 && shdr.Type == uint32(elf.SHT_NOBITS) {
			continue
		}
		if progbitsOnly && shdr.Type == uint32(elf.SHT_NOBITS) {
			continue
		}
		end, ok = max(end, shdr.Addr+shdr.Size), true
	}
	return end, ok
}

func bssStart(ctx *Context) (uint64, bool) {
	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()
		if shdr.Type == uint32(elf.SHT_NOBITS) && shdr.Flags&uint64(elf.SHF_ALLOC) != 0 &&
			shdr.Flags&uint64(elf.SHF_TLS) == 0 && shdr.Size > 0 {
			return shdr.Addr, true
		}
	}
	return imageEnd(ctx, true)
}

// CreateLinkerSymbols defines the section boundary symbols that are
// referenced but left undefined by the inputs.
func CreateLinkerSymbols(ctx *Context) {
	defs := []struct {
		name string
		addr func(*Context) (uint64, bool)
	}{
		{"_DYNAMIC", sectionStart(".dynamic")},
		{"__bss_start", bssStart},
		{"_edata", func(ctx *Context) (uint64, bool) { return imageEnd(ctx, true) }},
		{"_end", func(ctx *Context) (uint64, bool) { return imageEnd(ctx, false) }},
		{"__preinit_array_start", sectionStart(".preinit_array")},
		{"__preinit_array_end", sectionEnd(".preinit_array")},
		{"__init_array_start", sectionStart(".init_array")},
		{"__init_array_end", sectionEnd(".init_array")},
		{"__fini_array_start", sectionStart(".fini_array")},
		{"__fini_array_end", sectionEnd(".fini_array")},
		{"__rela_iplt_start", func(ctx *Context) (uint64, bool) {
			if ctx.Args.IsDynamic(ctx) {
				return 0, false
			}
			return osecRange(ctx, ".rela.plt", false)
		}},
		{"__rela_iplt_end", func(ctx *Context) (uint64, bool) {
			if ctx.Args.IsDynamic(ctx) {
				return 0, false
			}
			return osecRange(ctx, ".rela.plt", true)
		}},
	}

	for _, d := range defs {
		sym, ok := ctx.SymbolMap[d.name]
		if !ok || !sym.IsUndef() {
			continue
		}
		defineInternal(ctx, sym)
		ctx.LinkerSyms = append(ctx.LinkerSyms, linkerSym{Sym: sym, Addr: d.addr})
	}

	if sym, ok := ctx.SymbolMap[".TOC."]; ok && sym.IsUndef() {
		defineInternal(ctx, sym)
		sym.SetInputSection(ctx.GotHeader.Sec)
		sym.Value = TOCBias
		ctx.TOCSym = sym
	}
}

func defineInternal(ctx *Context, sym *Symbol) {
	sym.File = ctx.Internal
	sym.Dso = nil
	sym.Bind = elf.STB_GLOBAL
	sym.Type = uint8(elf.STT_NOTYPE)
	sym.Other = uint8(elf.STV_HIDDEN)
	sym.SetInputSection(ctx.GotHeader.Sec)
}

// FixLinkerSymbols recomputes linker defined symbols after a layout. They
// are kept relative to the GOT header so that PIC outputs relocate them.
func FixLinkerSymbols(ctx *Context) {
	anchor := ctx.GotHeader.Sec.GetAddr()
	for _, ls := range ctx.LinkerSyms {
		addr, ok := ls.Addr(ctx)
		if !ok {
			addr = anchor
		}
		ls.Sym.SetInputSection(ctx.GotHeader.Sec)
		ls.Sym.Value = addr - anchor
	}
}

// symbolAddr is the address code and data see for sym. Imported symbols
// with a pinned address resolve to their copy or global entry stub;
// other imported symbols have no link-time address.
func symbolAddr(ctx *Context, sym *Symbol) uint64 {
	if sym.Flags&NeedsGlobalEntry != 0 {
		return ctx.GlobalEntry.AddrOf(sym)
	}
	if sym.Flags&NeedsCopyReloc != 0 {
		return ctx.Dynbss.AddrOf(sym)
	}
	if sym.Dso != nil {
		return 0
	}
	return sym.GetAddr()
}
