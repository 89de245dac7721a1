package linker

import (
	"debug/elf"
	"strings"

	"github.com/unicornx/ppc64ld/pkg/utils"
)

// gcRootPrefixes name the sections the loader runs or walks without any
// relocation pointing at them.
var gcRootPrefixes = []string{
	".init", ".fini", ".ctors", ".dtors",
	".init_array", ".fini_array", ".preinit_array", ".note",
}

func isGCRoot(isec *InputSection) bool {
	if !isec.IsAlloc() {
		return true
	}
	name := isec.Name()
	for _, p := range gcRootPrefixes {
		if name == p || strings.HasPrefix(name, p+".") {
			return true
		}
	}
	return false
}

type deadcodePass struct {
	ctx    *Context
	marked utils.MapSet[*InputSection]
	queue  []*InputSection
}

// CollectGarbage implements --gc-sections: allocated sections that can
// not be reached from the entry point, the exported symbols or a root
// section are dropped. Function descriptors in .opd are followed one
// entry at a time, so an .opd section does not keep every function of
// its object alive.
func CollectGarbage(ctx *Context) {
	if !ctx.Args.GCSections {
		return
	}
	d := &deadcodePass{ctx: ctx, marked: utils.NewMapSet[*InputSection]()}

	if sym, ok := ctx.SymbolMap[ctx.Args.Entry]; ok {
		d.markSym(sym, 0)
	}
	for _, sym := range ctx.Syms {
		if sym.File == nil || sym.IsLocal {
			continue
		}
		if (ctx.Args.Shared || ctx.Args.ExportDynamic) && sym.Visibility() != elf.STV_HIDDEN {
			d.markSym(sym, 0)
		}
	}
	for _, o := range ctx.Objs {
		for _, isec := range o.Sections {
			if isec != nil && isec.IsAlive && isGCRoot(isec) {
				d.mark(isec)
			}
		}
	}
	d.flood()

	removed := 0
	for _, o := range ctx.Objs {
		for _, isec := range o.Sections {
			if isec == nil || !isec.IsAlive || isec.Synth != nil || d.marked.Contains(isec) {
				continue
			}
			isec.IsAlive = false
			removed++
		}
	}
	ctx.Logf("--gc-sections: removed %d sections", removed)
}

func (d *deadcodePass) mark(isec *InputSection) {
	if isec == nil || !isec.IsAlive || d.marked.Contains(isec) {
		return
	}
	d.marked.Add(isec)
	if !d.isOpd(isec) {
		d.queue = append(d.queue, isec)
	}
}

func (d *deadcodePass) isOpd(isec *InputSection) bool {
	o := isec.File
	if d.ctx.ABI != 1 || o == nil || o.Opd == nil {
		return false
	}
	info := o.Opd[isec.Shndx]
	return info != nil && info.Sec == isec
}

// markSym marks the section defining sym. A reference into .opd keeps
// only the descriptor at the referenced offset.
func (d *deadcodePass) markSym(sym *Symbol, addend int64) {
	if sym == nil {
		return
	}
	if sym.IsUndef() && d.ctx.ABI == 1 && strings.HasPrefix(sym.Name, ".") {
		if desc, ok := d.ctx.SymbolMap[sym.Name[1:]]; ok {
			d.markSym(desc, 0)
		}
		return
	}
	isec := sym.InputSection
	if isec == nil {
		return
	}
	d.mark(isec)
	if d.isOpd(isec) {
		d.markOpdEntry(isec, sym.Value+uint64(addend))
	}
}

func (d *deadcodePass) markOpdEntry(isec *InputSection, off uint64) {
	info := isec.File.Opd[isec.Shndx]
	start := off - off%info.EntSize
	o := isec.File
	for _, rel := range isec.GetRels() {
		if rel.Offset >= start && rel.Offset < start+info.EntSize {
			d.markSym(o.Symbols[rel.Sym()], rel.Addend)
		}
	}
}

func (d *deadcodePass) flood() {
	for len(d.queue) > 0 {
		isec := d.queue[0]
		d.queue = d.queue[1:]
		o := isec.File
		for _, rel := range isec.GetRels() {
			if int(rel.Sym()) >= len(o.Symbols) {
				continue
			}
			sym := o.Symbols[rel.Sym()]
			if sym.SectionFragment != nil {
				continue
			}
			d.markSym(sym, rel.Addend)
		}
	}
}
