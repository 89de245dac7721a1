package linker

import (
	"os"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// SetABI takes the ABI version from the first object that states one.
// The emulation's default applies otherwise.
func SetABI(ctx *Context) {
	for _, o := range ctx.Objs {
		if o.ABI != 0 {
			ctx.ABI = o.ABI
			return
		}
	}
}

// ResolveSymbols binds every global to its definition. Archive members
// are pulled in as references require, COMDAT duplicates are discarded
// and what remains undefined is offered to the shared objects.
func ResolveSymbols(ctx *Context) {
	for _, file := range ctx.Objs {
		file.ResolveSymbols()
	}

	MarkLiveObjects(ctx)

	for _, file := range ctx.Objs {
		if !file.IsAlive {
			file.ClearSymbols()
		}
	}

	ctx.Objs = utils.RemoveIf[*ObjectFile](ctx.Objs, func(file *ObjectFile) bool {
		return !file.IsAlive
	})

	EliminateComdats(ctx)
	for _, file := range ctx.Objs {
		file.MarkStrongRefs()
	}

	if tga, ok := ctx.SymbolMap["__tls_get_addr"]; ok && !ctx.Args.NoTLSGetAddrOptimize &&
		tga.IsUndef() && len(ctx.Dsos) > 0 {
		GetSymbolByName(ctx, "__tls_get_addr_opt")
	}
	for _, dso := range ctx.Dsos {
		dso.ResolveSymbols(ctx)
	}
	resolveTLSGetAddr(ctx)
}

// MarkLiveObjects walks from the live objects to the archive members
// defining what they reference, breadth first.
func MarkLiveObjects(ctx *Context) {
	roots := make([]*ObjectFile, 0)
	for _, file := range ctx.Objs {
		if file.IsAlive {
			roots = append(roots, file)
		}
	}

	utils.Assert(len(roots) > 0)

	for len(roots) > 0 {
		file := roots[0]
		file.MarkLiveObjects(func(file *ObjectFile) {
			roots = append(roots, file)
		})
		roots = roots[1:]
	}
}

// resolveTLSGetAddr finds __tls_get_addr and, when ld.so exports it,
// the __tls_get_addr_opt entry that calls are redirected to.
func resolveTLSGetAddr(ctx *Context) {
	ctx.TLSGetAddr = nil
	ctx.TLSGetAddrOpt = nil
	for _, name := range []string{"__tls_get_addr", ".__tls_get_addr"} {
		if sym, ok := ctx.SymbolMap[name]; ok {
			ctx.TLSGetAddr = sym
			break
		}
	}
	if ctx.TLSGetAddr == nil || ctx.Args.NoTLSGetAddrOptimize {
		return
	}
	if opt, ok := ctx.SymbolMap["__tls_get_addr_opt"]; ok && opt.Dso != nil {
		ctx.TLSGetAddrOpt = opt
		ctx.Logf("calls to __tls_get_addr go through __tls_get_addr_opt")
	}
}

func RegisterSectionPieces(ctx *Context) {
	for _, file := range ctx.Objs {
		file.RegisterSectionPieces()
	}
}

func ComputeMergedSectionSizes(ctx *Context) {
	for _, osec := range ctx.MergedSections {
		osec.AssignOffsets()
	}
}

// CreateSyntheticSections makes the headers, the symbol tables and every
// linker generated section. Sections that end up empty are left out of
// the output by the layout.
func CreateSyntheticSections(ctx *Context) {
	push := func(chunk Chunker) Chunker {
		ctx.Chunks = append(ctx.Chunks, chunk)
		return chunk
	}

	ctx.Ehdr = push(NewOutputEhdr()).(*OutputEhdr)
	ctx.Phdr = push(NewOutputPhdr()).(*OutputPhdr)
	ctx.Shdr = push(NewOutputShdr()).(*OutputShdr)
	ctx.Shstrtab = push(NewShstrtabSection()).(*ShstrtabSection)
	ctx.Symtab = push(NewSymtabSection()).(*SymtabSection)
	ctx.Strtab = push(NewStrtabSection()).(*StrtabSection)

	ctx.Internal = NewInternalFile(ctx)
	ctx.Interp = NewInterpSection(ctx)
	ctx.GotHeader = NewGotHeaderSection(ctx)
	ctx.Plt = NewPltSection(ctx, PltMain)
	ctx.Iplt = NewPltSection(ctx, PltIFunc)
	ctx.PltLocal = NewPltSection(ctx, PltLocal)
	ctx.BranchLT = NewBranchLTSection(ctx)
	ctx.Glink = NewGlinkSection(ctx)
	ctx.GlobalEntry = NewGlobalEntrySection(ctx)
	ctx.Sfpr = NewSaveResSection(ctx)
	ctx.Dynbss = NewDynbssSection(ctx)
	ctx.EhFrame = NewEhFrameSection(ctx)
	ctx.Dynsym = NewDynsymSection(ctx)
	ctx.Dynstr = NewDynstrSection(ctx)
	ctx.Hash = NewHashSection(ctx)
	ctx.Dynamic = NewDynamicSection(ctx)
	ctx.RelaDyn = NewRelaDynSection(ctx)
	ctx.RelaPlt = NewRelaPltSection(ctx)
	ctx.Relr = NewRelrSection(ctx)
}

// ReportUndefinedSymbols reports strong references nothing defines.
// Shared objects may leave them to ld.so.
func ReportUndefinedSymbols(ctx *Context) {
	if ctx.Args.Shared {
		return
	}
	seen := utils.NewMapSet[*Symbol]()
	for _, o := range ctx.Objs {
		for i := o.FirstGlobal; i < len(o.ElfSyms); i++ {
			sym := o.Symbols[i]
			esym := &o.ElfSyms[i]
			if !esym.IsUndef() || esym.IsWeak() || !sym.IsUndef() || seen.Contains(sym) {
				continue
			}
			seen.Add(sym)
			ctx.Errorf("undefined symbol: %s\n>>> referenced by %s", sym.Name, o)
		}
	}
}

// Link runs every pass from symbol resolution to the stub fixed point.
// Afterwards the layout is final and WriteOutput can produce the image.
func Link(ctx *Context, layout SectionLayout) {
	SetABI(ctx)
	ResolveSymbols(ctx)
	RegisterSectionPieces(ctx)
	ComputeMergedSectionSizes(ctx)
	CreateSyntheticSections(ctx)

	if ctx.ABI == 1 {
		for _, o := range ctx.Objs {
			ReadOpd(ctx, o)
		}
	}
	CollectGarbage(ctx)
	EditOPD(ctx)
	ResolveDotSymbols(ctx)
	CreateLinkerSymbols(ctx)
	DefineSaveResFunctions(ctx)
	if sym, ok := ctx.SymbolMap[ctx.Args.Entry]; ok {
		ctx.EntrySym = sym
	}
	ReportUndefinedSymbols(ctx)

	ScanRelocations(ctx)
	AdjustDynamicSymbols(ctx)

	BinSections(ctx)
	ctx.Chunks = append(ctx.Chunks, CollectOutputSections(ctx)...)
	CreateEmitRelocsSections(ctx)
	SortOutputSections(ctx)
	layout.Relayout(ctx)

	OptimizeTLS(ctx)
	OptimizeTOC(ctx)
	layout.Relayout(ctx)

	AssignTOCGroups(ctx)
	CheckTOCConsistency(ctx)
	SizeDynamicSections(ctx)
	layout.Relayout(ctx)

	FormStubGroups(ctx)
	SizeStubs(ctx, layout)
}

// WriteOutput fills ctx.Buf. Object sections are relocated first; the
// linker sections follow because relocation decides their contents, and
// the dynamic relocation tables come last.
func WriteOutput(ctx *Context) {
	for _, chunk := range ctx.Chunks {
		chunk.CopyBuf(ctx)
	}
	for _, osec := range ctx.OutputSections {
		if osec.Shndx != 0 && osec.Shdr.Size > 0 {
			osec.CopySynthetic(ctx, false)
		}
	}
	emitCopyRelocs(ctx)
	for _, osec := range ctx.OutputSections {
		if osec.Shndx != 0 && osec.Shdr.Size > 0 {
			osec.CopySynthetic(ctx, true)
		}
	}
	if ctx.Args.PrintStubs {
		PrintStubs(ctx, os.Stdout)
	}
}
