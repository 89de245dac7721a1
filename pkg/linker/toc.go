package linker

import "github.com/unicornx/ppc64ld/pkg/ppc64"

// TOCBias is the distance from the start of a TOC to the r2 value that
// addresses it, so that signed 16-bit offsets cover 64KB.
const TOCBias = 0x8000

// TOCGroup is a run of objects whose GOT entries and .toc sections are
// addressed from one r2 value.
type TOCGroup struct {
	ID    int
	First *InputSection
	Objs  []*ObjectFile
}

func (g *TOCGroup) Base() uint64 {
	return g.First.GetAddr() + TOCBias
}

// tocMembers returns the .got output members owned by o.
func tocMembers(o *ObjectFile) []*InputSection {
	var secs []*InputSection
	if toc := o.TOCSection(); toc != nil {
		secs = append(secs, toc)
	}
	if o.GotSec != nil && o.GotSec.IsAlive {
		secs = append(secs, o.GotSec)
	}
	return secs
}

// AssignTOCGroups splits the objects into TOC groups in output order. A
// group grows until the span from its first .got byte to the end of the
// next object's TOC data would exceed the group limit. An object's GOT
// and .toc always stay together.
func AssignTOCGroups(ctx *Context) {
	ctx.TOCGroups = nil
	cur := &TOCGroup{ID: 0, First: ctx.GotHeader.Sec}
	ctx.TOCGroups = append(ctx.TOCGroups, cur)

	limit := ctx.Args.TOCGroupLimit
	if limit == 0 {
		limit = DefaultTOCGroupLimit
	}

	for _, o := range ctx.Objs {
		secs := tocMembers(o)
		if len(secs) > 0 && !ctx.Args.NoMultiTOC {
			end := uint64(0)
			for _, s := range secs {
				end = max(end, s.GetAddr()+s.ShSize)
			}
			if len(cur.Objs) > 0 && end-cur.First.GetAddr() > limit {
				cur = &TOCGroup{ID: len(ctx.TOCGroups), First: firstByAddr(secs)}
				ctx.TOCGroups = append(ctx.TOCGroups, cur)
			}
		}
		cur.Objs = append(cur.Objs, o)
		o.TOCGroup = cur.ID
		for _, isec := range o.Sections {
			if isec != nil {
				ctx.Aux(isec).TOCGroup = cur.ID
			}
		}
		if o.GotSec != nil {
			ctx.Aux(o.GotSec).TOCGroup = cur.ID
		}
	}

	for _, isec := range ctx.Internal.Sections {
		ctx.Aux(isec).TOCGroup = 0
	}

	if len(ctx.TOCGroups) > 1 {
		ctx.Logf("%d TOC groups", len(ctx.TOCGroups))
	}
	mergeGotEntries(ctx)
}

func firstByAddr(secs []*InputSection) *InputSection {
	first := secs[0]
	for _, s := range secs[1:] {
		if s.GetAddr() < first.GetAddr() {
			first = s
		}
	}
	return first
}

type gotKey struct {
	Sym    *Symbol
	Addend int64
	TLS    ppc64.TLSKind
}

// mergeGotEntries makes objects of one TOC group share GOT slots. The
// first object's entry survives and takes over the references of the
// others.
func mergeGotEntries(ctx *Context) {
	for _, g := range ctx.TOCGroups {
		seen := make(map[gotKey]*GotEntry)
		for _, o := range g.Objs {
			if o.Got == nil {
				continue
			}
			for _, e := range o.Got.Entries {
				if !e.Alloc.IsPending() || e.Alloc.Refcount() == 0 {
					continue
				}
				key := gotKey{Sym: e.Sym, Addend: e.Addend, TLS: e.TLS}
				if e.TLS == ppc64.TLSLD {
					key.Sym = nil
				}
				surv, ok := seen[key]
				if !ok {
					seen[key] = e
					continue
				}
				for n := e.Alloc.Refcount(); n > 0; n-- {
					surv.Alloc.Ref()
				}
				e.Indirect = surv
				e.Alloc.Reclaim()
			}
		}
	}
}

// CheckTOCConsistency rejects .init and .fini fragments coming from
// objects with different TOC pointers: the pasted code runs as one
// function and cannot reload r2 in the middle.
func CheckTOCConsistency(ctx *Context) {
	for _, osec := range ctx.OutputSections {
		if osec.Name != ".init" && osec.Name != ".fini" {
			continue
		}
		group := -1
		for _, isec := range osec.Members {
			if isec.Synth != nil {
				continue
			}
			g := ctx.Aux(isec).TOCGroup
			if group == -1 {
				group = g
				continue
			}
			if g != group {
				ctx.ErrorfAt(isec, 0, "%s fragment uses TOC group %d but earlier fragments use %d; linker stubs in .init/.fini would change r2",
					osec.Name, g, group)
				break
			}
		}
	}
}
