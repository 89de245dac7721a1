package linker

import (
	"debug/elf"

	"github.com/unicornx/ppc64ld/pkg/ppc64"
	"github.com/unicornx/ppc64ld/pkg/utils"
)

// The sections below exist in every link. They size themselves to zero
// when the output is not loaded by ld.so, and empty sections get no
// section header.

// InterpSection is .interp, the path of the program interpreter.
type InterpSection struct {
	Sec *InputSection
}

func NewInterpSection(ctx *Context) *InterpSection {
	s := &InterpSection{}
	s.Sec = NewSyntheticSection(ctx, ctx.Internal, ".interp", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC), 0, s)
	ctx.Internal.Sections = append(ctx.Internal.Sections, s.Sec)
	return s
}

func (s *InterpSection) Size(ctx *Context) uint64 {
	if !ctx.Args.IsDynamic(ctx) || ctx.Args.Shared || ctx.Args.Static {
		return 0
	}
	return uint64(len(ctx.Args.DynamicLinker)) + 1
}

func (s *InterpSection) WriteTo(ctx *Context, buf []byte) {
	WriteString(buf, ctx.Args.DynamicLinker)
}

// DynstrSection is .dynstr. Names are added while the dynamic symbols
// and DT_NEEDED entries are collected, before the first layout that
// counts.
type DynstrSection struct {
	Sec  *InputSection
	strs *strtabBuilder
}

func NewDynstrSection(ctx *Context) *DynstrSection {
	s := &DynstrSection{strs: newStrtabBuilder()}
	s.Sec = NewSyntheticSection(ctx, ctx.Internal, ".dynstr", uint32(elf.SHT_STRTAB),
		uint64(elf.SHF_ALLOC), 0, s)
	ctx.Internal.Sections = append(ctx.Internal.Sections, s.Sec)
	return s
}

func (s *DynstrSection) Put(name string) uint32 {
	return s.strs.Put(name)
}

func (s *DynstrSection) Size(ctx *Context) uint64 {
	if !ctx.Args.IsDynamic(ctx) {
		return 0
	}
	return s.strs.Size()
}

func (s *DynstrSection) WriteTo(ctx *Context, buf []byte) {
	copy(buf, s.strs.data)
}

// DynsymSection is .dynsym. Slot 0 is the null symbol.
type DynsymSection struct {
	Sec   *InputSection
	Syms  []*Symbol
	names []uint32
}

func NewDynsymSection(ctx *Context) *DynsymSection {
	s := &DynsymSection{}
	s.Sec = NewSyntheticSection(ctx, ctx.Internal, ".dynsym", uint32(elf.SHT_DYNSYM),
		uint64(elf.SHF_ALLOC), 3, s)
	ctx.Internal.Sections = append(ctx.Internal.Sections, s.Sec)
	return s
}

// Add gives sym a dynamic symbol index. Adding twice is a no-op.
func (s *DynsymSection) Add(ctx *Context, sym *Symbol) {
	if sym.DynsymIdx > 0 {
		return
	}
	sym.DynsymIdx = int32(len(s.Syms) + 1)
	s.Syms = append(s.Syms, sym)
	s.names = append(s.names, ctx.Dynstr.Put(sym.Name))
}

func (s *DynsymSection) Size(ctx *Context) uint64 {
	if !ctx.Args.IsDynamic(ctx) {
		return 0
	}
	return uint64(len(s.Syms)+1) * uint64(SymSize)
}

func (s *DynsymSection) WriteTo(ctx *Context, buf []byte) {
	utils.WriteWith(buf, ctx.Order, Sym{})
	for i, sym := range s.Syms {
		esym := outputElfSym(ctx, sym)
		esym.Name = s.names[i]
		if sym.Dso != nil && sym.Flags&(NeedsCopyReloc|NeedsGlobalEntry) == 0 {
			esym.Size = 0
		}
		utils.WriteWith(buf[(i+1)*SymSize:], ctx.Order, esym)
	}
}

func (s *DynsymSection) UpdateOutputShdr(ctx *Context, shdr *Shdr) {
	shdr.EntSize = uint64(SymSize)
	shdr.Info = 1
	shdr.Link = uint32(ctx.Dynstr.Sec.OutputSection.Shndx)
}

// HashSection is the SysV .hash table over .dynsym.
type HashSection struct {
	Sec *InputSection
}

func NewHashSection(ctx *Context) *HashSection {
	s := &HashSection{}
	s.Sec = NewSyntheticSection(ctx, ctx.Internal, ".hash", uint32(elf.SHT_HASH),
		uint64(elf.SHF_ALLOC), 3, s)
	ctx.Internal.Sections = append(ctx.Internal.Sections, s.Sec)
	return s
}

func elfHash(name string) uint32 {
	h := uint32(0)
	for i := 0; i < len(name); i++ {
		h = h<<4 + uint32(name[i])
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
		}
		h &^= 0xf0000000
	}
	return h
}

func (s *HashSection) Size(ctx *Context) uint64 {
	if !ctx.Args.IsDynamic(ctx) {
		return 0
	}
	n := uint64(len(ctx.Dynsym.Syms) + 1)
	return (2 + 2*n) * 4
}

func (s *HashSection) WriteTo(ctx *Context, buf []byte) {
	n := uint32(len(ctx.Dynsym.Syms) + 1)
	words := make([]uint32, 2+2*n)
	words[0] = n
	words[1] = n
	buckets := words[2 : 2+n]
	chains := words[2+n:]
	for i, sym := range ctx.Dynsym.Syms {
		idx := uint32(i + 1)
		b := elfHash(sym.Name) % n
		chains[idx] = buckets[b]
		buckets[b] = idx
	}
	for i, w := range words {
		ctx.Order.PutUint32(buf[i*4:], w)
	}
}

func (s *HashSection) UpdateOutputShdr(ctx *Context, shdr *Shdr) {
	shdr.EntSize = 4
	shdr.Link = uint32(ctx.Dynsym.Sec.OutputSection.Shndx)
}

// DynamicSection is .dynamic. The tag list depends only on decisions
// made before stub sizing, so its size does not change in the loop.
type DynamicSection struct {
	Sec    *InputSection
	needed []uint32
	soname uint32
}

func NewDynamicSection(ctx *Context) *DynamicSection {
	s := &DynamicSection{}
	s.Sec = NewSyntheticSection(ctx, ctx.Internal, ".dynamic", uint32(elf.SHT_DYNAMIC),
		uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 3, s)
	ctx.Internal.Sections = append(ctx.Internal.Sections, s.Sec)
	return s
}

// AddNeeded records the DT_NEEDED and DT_SONAME strings.
func (s *DynamicSection) AddNeeded(ctx *Context) {
	s.needed = s.needed[:0]
	for _, dso := range ctx.Dsos {
		if dso.IsAlive {
			s.needed = append(s.needed, ctx.Dynstr.Put(dso.Soname))
		}
	}
	if ctx.Args.Shared && ctx.Args.Soname != "" {
		s.soname = ctx.Dynstr.Put(ctx.Args.Soname)
	}
}

func osecAddr(isec *InputSection) uint64 {
	return isec.OutputSection.Shdr.Addr
}

func osecSize(isec *InputSection) uint64 {
	return isec.OutputSection.Shdr.Size
}

// PPC64Opt is the DT_PPC64_OPT value.
func PPC64Opt(ctx *Context) uint64 {
	v := uint64(0)
	if ctx.TLSGetAddrOpt != nil {
		v |= PPC64_OPT_TLS
	}
	if len(ctx.TOCGroups) > 1 {
		v |= PPC64_OPT_MULTI
	}
	if ctx.PltLocalEntryUsed {
		v |= PPC64_OPT_LOCENT
	}
	return v
}

func (s *DynamicSection) entries(ctx *Context) []Dyn {
	var d []Dyn
	add := func(tag elf.DynTag, val uint64) {
		d = append(d, Dyn{Tag: int64(tag), Val: val})
	}

	for _, n := range s.needed {
		add(elf.DT_NEEDED, uint64(n))
	}
	if ctx.Args.Shared && ctx.Args.Soname != "" {
		add(elf.DT_SONAME, uint64(s.soname))
	}

	add(elf.DT_HASH, ctx.Hash.Sec.GetAddr())
	add(elf.DT_STRTAB, ctx.Dynstr.Sec.GetAddr())
	add(elf.DT_SYMTAB, ctx.Dynsym.Sec.GetAddr())
	add(elf.DT_STRSZ, ctx.Dynstr.Size(ctx))
	add(elf.DT_SYMENT, uint64(SymSize))

	add(elf.DT_RELA, osecAddr(ctx.RelaDyn.Sec))
	add(elf.DT_RELASZ, osecSize(ctx.RelaDyn.Sec))
	add(elf.DT_RELAENT, uint64(RelaSize))
	if ctx.Args.PackRelativeRelocs {
		add(DT_RELR, osecAddr(ctx.Relr.Sec))
		add(DT_RELRSZ, osecSize(ctx.Relr.Sec))
		add(DT_RELRENT, 8)
	}

	if ctx.Plt.NumEntries() > 0 {
		add(elf.DT_PLTGOT, ctx.Plt.Sec.GetAddr())
	}
	if ctx.RelaPlt.Size(ctx) > 0 {
		add(elf.DT_PLTRELSZ, ctx.RelaPlt.Size(ctx))
		add(elf.DT_PLTREL, uint64(elf.DT_RELA))
		add(elf.DT_JMPREL, ctx.RelaPlt.Sec.GetAddr())
	}
	if ctx.Plt.NumEntries() > 0 {
		add(DT_PPC64_GLINK, ctx.Glink.DynamicValue(ctx))
	}
	if ctx.ABI == 1 {
		if osec := findOutputSection(ctx, ".opd"); osec != nil && osec.Shdr.Size > 0 {
			add(DT_PPC64_OPD, osec.Shdr.Addr)
			add(DT_PPC64_OPDSZ, osec.Shdr.Size)
		}
	}
	if opt := PPC64Opt(ctx); opt != 0 {
		add(DT_PPC64_OPT, opt)
	}

	flags := uint64(0)
	if ctx.TextRel {
		add(elf.DT_TEXTREL, 0)
		flags |= uint64(elf.DF_TEXTREL)
	}
	if ctx.Args.ZNow {
		flags |= uint64(elf.DF_BIND_NOW)
	}
	if flags != 0 {
		add(elf.DT_FLAGS, flags)
	}
	flags1 := uint64(0)
	if ctx.Args.ZNow {
		flags1 |= DF_1_NOW
	}
	if ctx.Args.Pie {
		flags1 |= DF_1_PIE
	}
	if flags1 != 0 {
		add(elf.DT_FLAGS_1, flags1)
	}
	if !ctx.Args.Shared {
		add(elf.DT_DEBUG, 0)
	}
	add(elf.DT_NULL, 0)
	return d
}

func (s *DynamicSection) Size(ctx *Context) uint64 {
	if !ctx.Args.IsDynamic(ctx) {
		return 0
	}
	return uint64(len(s.entries(ctx)) * DynSize)
}

func (s *DynamicSection) writeLate() {}

func (s *DynamicSection) WriteTo(ctx *Context, buf []byte) {
	for i, d := range s.entries(ctx) {
		utils.WriteWith(buf[i*DynSize:], ctx.Order, d)
	}
}

func (s *DynamicSection) UpdateOutputShdr(ctx *Context, shdr *Shdr) {
	shdr.EntSize = uint64(DynSize)
	shdr.Link = uint32(ctx.Dynstr.Sec.OutputSection.Shndx)
}

func findOutputSection(ctx *Context, name string) *OutputSection {
	for _, osec := range ctx.OutputSections {
		if osec.Name == name {
			return osec
		}
	}
	return nil
}

// DynbssSection holds copies of data objects imported from shared
// objects and referenced by absolute address from the executable.
type DynbssSection struct {
	Sec  *InputSection
	Syms []*Symbol
	offs map[*Symbol]uint64
	size uint64
}

func NewDynbssSection(ctx *Context) *DynbssSection {
	s := &DynbssSection{offs: make(map[*Symbol]uint64)}
	s.Sec = NewSyntheticSection(ctx, ctx.Internal, ".dynbss", uint32(elf.SHT_NOBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 4, s)
	ctx.Internal.Sections = append(ctx.Internal.Sections, s.Sec)
	return s
}

func (s *DynbssSection) Add(sym *Symbol) {
	if _, ok := s.offs[sym]; ok {
		return
	}
	align := uint64(8)
	if sym.Size >= 16 {
		align = 16
	}
	s.size = utils.AlignTo(s.size, align)
	s.offs[sym] = s.size
	s.size += max(sym.Size, 1)
	s.Syms = append(s.Syms, sym)
}

func (s *DynbssSection) AddrOf(sym *Symbol) uint64 {
	return s.Sec.GetAddr() + s.offs[sym]
}

func (s *DynbssSection) Size(ctx *Context) uint64 {
	return s.size
}

func (s *DynbssSection) WriteTo(ctx *Context, buf []byte) {}

// emitCopyRelocs queues one R_PPC64_COPY per copied symbol.
func emitCopyRelocs(ctx *Context) {
	for _, sym := range ctx.Dynbss.Syms {
		ctx.RelaDyn.Add(ctx, ctx.Dynbss.AddrOf(sym), ppc64.R_PPC64_COPY, sym, 0)
	}
}
