package linker

import (
	"debug/elf"
	"sort"
)

// relrSite is a doubleword that gets a RELATIVE relocation packed into
// .relr.dyn.
type relrSite struct {
	Sec *InputSection
	Off uint64
}

// RelrSection is .relr.dyn (--pack-dyn-relocs=relr). The sites are fixed
// while sizing; the encoded size depends on the addresses, so it is asked
// again after every layout.
type RelrSection struct {
	Sec   *InputSection
	Sites []relrSite
}

func NewRelrSection(ctx *Context) *RelrSection {
	r := &RelrSection{}
	r.Sec = NewSyntheticSection(ctx, ctx.Internal, ".relr.dyn", SHT_RELR,
		uint64(elf.SHF_ALLOC), 3, r)
	ctx.Internal.Sections = append(ctx.Internal.Sections, r.Sec)
	return r
}

func (r *RelrSection) Add(isec *InputSection, off uint64) {
	r.Sites = append(r.Sites, relrSite{Sec: isec, Off: off})
}

func (r *RelrSection) addrs(ctx *Context) []uint64 {
	if !ctx.Args.PackRelativeRelocs || !ctx.Args.IsPIC() {
		return nil
	}
	addrs := make([]uint64, 0, len(r.Sites)+len(ctx.BranchLT.Stubs))
	for _, s := range r.Sites {
		addrs = append(addrs, s.Sec.GetAddr()+s.Off)
	}
	for i := range ctx.BranchLT.Stubs {
		addrs = append(addrs, ctx.BranchLT.Sec.GetAddr()+uint64(i)*8)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// EncodeRelr packs sorted, 8-byte aligned addresses: an address entry is
// followed by bitmap entries, each covering the next 63 doublewords.
func EncodeRelr(addrs []uint64) []uint64 {
	var out []uint64
	for i := 0; i < len(addrs); {
		out = append(out, addrs[i])
		base := addrs[i] + 8
		i++
		for {
			bitmap := uint64(0)
			for i < len(addrs) && addrs[i]-base < 63*8 && (addrs[i]-base)%8 == 0 {
				bitmap |= 1 << ((addrs[i] - base) / 8)
				i++
			}
			if bitmap == 0 {
				break
			}
			out = append(out, bitmap<<1|1)
			base += 63 * 8
		}
	}
	return out
}

func (r *RelrSection) Size(ctx *Context) uint64 {
	return uint64(len(EncodeRelr(r.addrs(ctx)))) * 8
}

func (r *RelrSection) WriteTo(ctx *Context, buf []byte) {
	for i, v := range EncodeRelr(r.addrs(ctx)) {
		ctx.Order.PutUint64(buf[i*8:], v)
	}
}

func (r *RelrSection) UpdateOutputShdr(ctx *Context, shdr *Shdr) {
	shdr.EntSize = 8
}
