package linker

// EliminateComdats keeps the first instance of every COMDAT group, in
// command line order, and discards the members of later instances.
// Globals that were resolved to a discarded member are released so that
// the next ResolveSymbols finds the surviving definition.
func EliminateComdats(ctx *Context) {
	for _, o := range ctx.Objs {
		for _, g := range o.Comdats {
			owner, ok := ctx.ComdatGroups[g.Signature]
			if !ok {
				ctx.ComdatGroups[g.Signature] = o
				continue
			}
			if owner == o {
				continue
			}
			for _, idx := range g.Members {
				if int(idx) >= len(o.Sections) {
					continue
				}
				if isec := o.Sections[idx]; isec != nil {
					isec.Discarded = true
					isec.IsAlive = false
				}
			}
		}
	}

	for _, o := range ctx.Objs {
		for _, sym := range o.Symbols[o.FirstGlobal:] {
			if sym.File == o && sym.InputSection != nil && sym.InputSection.Discarded {
				sym.Clear()
			}
		}
	}
	for _, o := range ctx.Objs {
		o.ResolveSymbols()
	}
}
