package ppc64

const (
	haRound   = 0x8000
	ha34Round = 1 << 33
)

func field(t RelocType, name string, size Size, bits, shift uint8, chk Check, mask uint64, c Class) Howto {
	return Howto{
		Type:       t,
		Name:       name,
		Size:       size,
		BitSize:    bits,
		RightShift: shift,
		Check:      chk,
		DstMask:    mask,
		Class:      c,
	}
}

func marker(t RelocType, name string, c Class) Howto {
	return field(t, name, SizeNone, 0, 0, CheckDont, 0, c)
}

func w32(t RelocType, name string, c Class) Howto {
	return field(t, name, Size32, 32, 0, CheckBitfield, 0xffffffff, c)
}

func w64(t RelocType, name string, c Class) Howto {
	return field(t, name, Size64, 64, 0, CheckDont, ^uint64(0), c)
}

func h16(t RelocType, name string, c Class) Howto {
	return field(t, name, Size16, 16, 0, CheckSigned, 0xffff, c)
}

func lo(t RelocType, name string, c Class) Howto {
	return field(t, name, Size16, 16, 0, CheckDont, 0xffff, c)
}

func hi(t RelocType, name string, c Class) Howto {
	return field(t, name, Size16, 16, 16, CheckSigned, 0xffff, c)
}

func ha(t RelocType, name string, c Class) Howto {
	h := hi(t, name, c)
	h.Round = haRound
	return h
}

func high(t RelocType, name string, c Class) Howto {
	return field(t, name, Size16, 16, 16, CheckDont, 0xffff, c)
}

func higha(t RelocType, name string, c Class) Howto {
	h := high(t, name, c)
	h.Round = haRound
	return h
}

func higher(t RelocType, name string, c Class) Howto {
	return field(t, name, Size16, 16, 32, CheckDont, 0xffff, c)
}

func highera(t RelocType, name string, c Class) Howto {
	h := higher(t, name, c)
	h.Round = haRound
	return h
}

func highest(t RelocType, name string, c Class) Howto {
	return field(t, name, Size16, 16, 48, CheckDont, 0xffff, c)
}

func highesta(t RelocType, name string, c Class) Howto {
	h := highest(t, name, c)
	h.Round = haRound
	return h
}

func higher34(t RelocType, name string, c Class, round bool) Howto {
	h := field(t, name, Size16, 16, 34, CheckDont, 0xffff, c)
	if round {
		h.Round = ha34Round
	}
	return h
}

func highest34(t RelocType, name string, c Class, round bool) Howto {
	h := field(t, name, Size16, 16, 50, CheckDont, 0xffff, c)
	if round {
		h.Round = ha34Round
	}
	return h
}

func d34(t RelocType, name string, c Class) Howto {
	return field(t, name, SizePrefix34, 34, 0, CheckSigned, 0x3ffff0000ffff, c)
}

func d34hi30(t RelocType, name string, c Class, round bool) Howto {
	h := field(t, name, SizePrefix34, 34, 34, CheckDont, 0x3ffff0000ffff, c)
	if round {
		h.Round = ha34Round
	}
	return h
}

func d28(t RelocType, name string, c Class) Howto {
	return field(t, name, SizePrefix28, 28, 0, CheckSigned, 0xfff0000ffff, c)
}

func branch24(t RelocType, name string, c Class) Howto {
	h := field(t, name, Size32, 26, 0, CheckSigned, 0x03fffffc, c)
	h.Align = 4
	return h
}

func branch14(t RelocType, name string, c Class, hint Hint) Howto {
	h := field(t, name, Size32, 16, 0, CheckSigned, 0xfffc, c)
	h.Align = 4
	h.Hint = hint
	return h
}

func (h Howto) ds() Howto {
	h.DstMask = 0xfffc
	h.Align = 4
	return h
}

func (h Howto) pc() Howto {
	h.PCRel = true
	return h
}

func (h Howto) tls(k TLSKind) Howto {
	h.TLS = k
	return h
}

func (h Howto) dyn() Howto {
	h.Dynamic = true
	return h
}

func (h Howto) bitfield() Howto {
	h.Check = CheckBitfield
	return h
}

var howtos = [maxRelocType]Howto{
	R_PPC64_NONE:            marker(R_PPC64_NONE, "R_PPC64_NONE", ClassNone),
	R_PPC64_ADDR32:          w32(R_PPC64_ADDR32, "R_PPC64_ADDR32", ClassAbs).dyn(),
	R_PPC64_ADDR24:          branch24(R_PPC64_ADDR24, "R_PPC64_ADDR24", ClassAbs).bitfield().dyn(),
	R_PPC64_ADDR16:          h16(R_PPC64_ADDR16, "R_PPC64_ADDR16", ClassAbs).bitfield().dyn(),
	R_PPC64_ADDR16_LO:       lo(R_PPC64_ADDR16_LO, "R_PPC64_ADDR16_LO", ClassAbs).dyn(),
	R_PPC64_ADDR16_HI:       hi(R_PPC64_ADDR16_HI, "R_PPC64_ADDR16_HI", ClassAbs).dyn(),
	R_PPC64_ADDR16_HA:       ha(R_PPC64_ADDR16_HA, "R_PPC64_ADDR16_HA", ClassAbs).dyn(),
	R_PPC64_ADDR14:          branch14(R_PPC64_ADDR14, "R_PPC64_ADDR14", ClassAbs, HintNone).bitfield().dyn(),
	R_PPC64_ADDR14_BRTAKEN:  branch14(R_PPC64_ADDR14_BRTAKEN, "R_PPC64_ADDR14_BRTAKEN", ClassAbs, HintTaken).bitfield().dyn(),
	R_PPC64_ADDR14_BRNTAKEN: branch14(R_PPC64_ADDR14_BRNTAKEN, "R_PPC64_ADDR14_BRNTAKEN", ClassAbs, HintNotTaken).bitfield().dyn(),
	R_PPC64_REL24:           branch24(R_PPC64_REL24, "R_PPC64_REL24", ClassBranch).pc().dyn(),
	R_PPC64_REL14:           branch14(R_PPC64_REL14, "R_PPC64_REL14", ClassBranch, HintNone).pc(),
	R_PPC64_REL14_BRTAKEN:   branch14(R_PPC64_REL14_BRTAKEN, "R_PPC64_REL14_BRTAKEN", ClassBranch, HintTaken).pc(),
	R_PPC64_REL14_BRNTAKEN:  branch14(R_PPC64_REL14_BRNTAKEN, "R_PPC64_REL14_BRNTAKEN", ClassBranch, HintNotTaken).pc(),
	R_PPC64_GOT16:           h16(R_PPC64_GOT16, "R_PPC64_GOT16", ClassGOT),
	R_PPC64_GOT16_LO:        lo(R_PPC64_GOT16_LO, "R_PPC64_GOT16_LO", ClassGOT),
	R_PPC64_GOT16_HI:        hi(R_PPC64_GOT16_HI, "R_PPC64_GOT16_HI", ClassGOT),
	R_PPC64_GOT16_HA:        ha(R_PPC64_GOT16_HA, "R_PPC64_GOT16_HA", ClassGOT),
	R_PPC64_COPY:            marker(R_PPC64_COPY, "R_PPC64_COPY", ClassDynamic),
	R_PPC64_GLOB_DAT:        w64(R_PPC64_GLOB_DAT, "R_PPC64_GLOB_DAT", ClassDynamic),
	R_PPC64_JMP_SLOT:        marker(R_PPC64_JMP_SLOT, "R_PPC64_JMP_SLOT", ClassDynamic),
	R_PPC64_RELATIVE:        w64(R_PPC64_RELATIVE, "R_PPC64_RELATIVE", ClassDynamic),
	R_PPC64_UADDR32:         w32(R_PPC64_UADDR32, "R_PPC64_UADDR32", ClassAbs).dyn(),
	R_PPC64_UADDR16:         h16(R_PPC64_UADDR16, "R_PPC64_UADDR16", ClassAbs).bitfield().dyn(),
	R_PPC64_REL32:           w32(R_PPC64_REL32, "R_PPC64_REL32", ClassRel).pc().dyn(),
	R_PPC64_PLT32:           w32(R_PPC64_PLT32, "R_PPC64_PLT32", ClassPLT),
	R_PPC64_PLTREL32:        w32(R_PPC64_PLTREL32, "R_PPC64_PLTREL32", ClassPLT).pc(),
	R_PPC64_PLT16_LO:        lo(R_PPC64_PLT16_LO, "R_PPC64_PLT16_LO", ClassPLT),
	R_PPC64_PLT16_HI:        hi(R_PPC64_PLT16_HI, "R_PPC64_PLT16_HI", ClassPLT),
	R_PPC64_PLT16_HA:        ha(R_PPC64_PLT16_HA, "R_PPC64_PLT16_HA", ClassPLT),
	R_PPC64_SECTOFF:         h16(R_PPC64_SECTOFF, "R_PPC64_SECTOFF", ClassSectOff),
	R_PPC64_SECTOFF_LO:      lo(R_PPC64_SECTOFF_LO, "R_PPC64_SECTOFF_LO", ClassSectOff),
	R_PPC64_SECTOFF_HI:      hi(R_PPC64_SECTOFF_HI, "R_PPC64_SECTOFF_HI", ClassSectOff),
	R_PPC64_SECTOFF_HA:      ha(R_PPC64_SECTOFF_HA, "R_PPC64_SECTOFF_HA", ClassSectOff),
	R_PPC64_ADDR30:          field(R_PPC64_ADDR30, "R_PPC64_ADDR30", Size32, 32, 0, CheckDont, 0xfffffffc, ClassRel).pc().dyn(),
	R_PPC64_ADDR64:          w64(R_PPC64_ADDR64, "R_PPC64_ADDR64", ClassAbs).dyn(),
	R_PPC64_ADDR16_HIGHER:   higher(R_PPC64_ADDR16_HIGHER, "R_PPC64_ADDR16_HIGHER", ClassAbs).dyn(),
	R_PPC64_ADDR16_HIGHERA:  highera(R_PPC64_ADDR16_HIGHERA, "R_PPC64_ADDR16_HIGHERA", ClassAbs).dyn(),
	R_PPC64_ADDR16_HIGHEST:  highest(R_PPC64_ADDR16_HIGHEST, "R_PPC64_ADDR16_HIGHEST", ClassAbs).dyn(),
	R_PPC64_ADDR16_HIGHESTA: highesta(R_PPC64_ADDR16_HIGHESTA, "R_PPC64_ADDR16_HIGHESTA", ClassAbs).dyn(),
	R_PPC64_UADDR64:         w64(R_PPC64_UADDR64, "R_PPC64_UADDR64", ClassAbs).dyn(),
	R_PPC64_REL64:           w64(R_PPC64_REL64, "R_PPC64_REL64", ClassRel).pc().dyn(),
	R_PPC64_PLT64:           w64(R_PPC64_PLT64, "R_PPC64_PLT64", ClassPLT),
	R_PPC64_PLTREL64:        w64(R_PPC64_PLTREL64, "R_PPC64_PLTREL64", ClassPLT).pc(),
	R_PPC64_TOC16:           h16(R_PPC64_TOC16, "R_PPC64_TOC16", ClassTOC),
	R_PPC64_TOC16_LO:        lo(R_PPC64_TOC16_LO, "R_PPC64_TOC16_LO", ClassTOC),
	R_PPC64_TOC16_HI:        hi(R_PPC64_TOC16_HI, "R_PPC64_TOC16_HI", ClassTOC),
	R_PPC64_TOC16_HA:        ha(R_PPC64_TOC16_HA, "R_PPC64_TOC16_HA", ClassTOC),
	R_PPC64_TOC:             w64(R_PPC64_TOC, "R_PPC64_TOC", ClassTOCBase),
	R_PPC64_PLTGOT16:        h16(R_PPC64_PLTGOT16, "R_PPC64_PLTGOT16", ClassPLT),
	R_PPC64_PLTGOT16_LO:     lo(R_PPC64_PLTGOT16_LO, "R_PPC64_PLTGOT16_LO", ClassPLT),
	R_PPC64_PLTGOT16_HI:     hi(R_PPC64_PLTGOT16_HI, "R_PPC64_PLTGOT16_HI", ClassPLT),
	R_PPC64_PLTGOT16_HA:     ha(R_PPC64_PLTGOT16_HA, "R_PPC64_PLTGOT16_HA", ClassPLT),
	R_PPC64_ADDR16_DS:       h16(R_PPC64_ADDR16_DS, "R_PPC64_ADDR16_DS", ClassAbs).ds().dyn(),
	R_PPC64_ADDR16_LO_DS:    lo(R_PPC64_ADDR16_LO_DS, "R_PPC64_ADDR16_LO_DS", ClassAbs).ds().dyn(),
	R_PPC64_GOT16_DS:        h16(R_PPC64_GOT16_DS, "R_PPC64_GOT16_DS", ClassGOT).ds(),
	R_PPC64_GOT16_LO_DS:     lo(R_PPC64_GOT16_LO_DS, "R_PPC64_GOT16_LO_DS", ClassGOT).ds(),
	R_PPC64_PLT16_LO_DS:     lo(R_PPC64_PLT16_LO_DS, "R_PPC64_PLT16_LO_DS", ClassPLT).ds(),
	R_PPC64_SECTOFF_DS:      h16(R_PPC64_SECTOFF_DS, "R_PPC64_SECTOFF_DS", ClassSectOff).ds(),
	R_PPC64_SECTOFF_LO_DS:   lo(R_PPC64_SECTOFF_LO_DS, "R_PPC64_SECTOFF_LO_DS", ClassSectOff).ds(),
	R_PPC64_TOC16_DS:        h16(R_PPC64_TOC16_DS, "R_PPC64_TOC16_DS", ClassTOC).ds(),
	R_PPC64_TOC16_LO_DS:     lo(R_PPC64_TOC16_LO_DS, "R_PPC64_TOC16_LO_DS", ClassTOC).ds(),
	R_PPC64_PLTGOT16_DS:     h16(R_PPC64_PLTGOT16_DS, "R_PPC64_PLTGOT16_DS", ClassPLT).ds(),
	R_PPC64_PLTGOT16_LO_DS:  lo(R_PPC64_PLTGOT16_LO_DS, "R_PPC64_PLTGOT16_LO_DS", ClassPLT).ds(),

	R_PPC64_TLS:                marker(R_PPC64_TLS, "R_PPC64_TLS", ClassTLSMarker).tls(TLSTPRel),
	R_PPC64_DTPMOD64:           w64(R_PPC64_DTPMOD64, "R_PPC64_DTPMOD64", ClassDTPMod).dyn(),
	R_PPC64_TPREL16:            h16(R_PPC64_TPREL16, "R_PPC64_TPREL16", ClassTPRel).dyn(),
	R_PPC64_TPREL16_LO:         lo(R_PPC64_TPREL16_LO, "R_PPC64_TPREL16_LO", ClassTPRel).dyn(),
	R_PPC64_TPREL16_HI:         hi(R_PPC64_TPREL16_HI, "R_PPC64_TPREL16_HI", ClassTPRel).dyn(),
	R_PPC64_TPREL16_HA:         ha(R_PPC64_TPREL16_HA, "R_PPC64_TPREL16_HA", ClassTPRel).dyn(),
	R_PPC64_TPREL64:            w64(R_PPC64_TPREL64, "R_PPC64_TPREL64", ClassTPRel).dyn(),
	R_PPC64_DTPREL16:           h16(R_PPC64_DTPREL16, "R_PPC64_DTPREL16", ClassDTPRel),
	R_PPC64_DTPREL16_LO:        lo(R_PPC64_DTPREL16_LO, "R_PPC64_DTPREL16_LO", ClassDTPRel),
	R_PPC64_DTPREL16_HI:        hi(R_PPC64_DTPREL16_HI, "R_PPC64_DTPREL16_HI", ClassDTPRel),
	R_PPC64_DTPREL16_HA:        ha(R_PPC64_DTPREL16_HA, "R_PPC64_DTPREL16_HA", ClassDTPRel),
	R_PPC64_DTPREL64:           w64(R_PPC64_DTPREL64, "R_PPC64_DTPREL64", ClassDTPRel).dyn(),
	R_PPC64_GOT_TLSGD16:        h16(R_PPC64_GOT_TLSGD16, "R_PPC64_GOT_TLSGD16", ClassGOT).tls(TLSGD),
	R_PPC64_GOT_TLSGD16_LO:     lo(R_PPC64_GOT_TLSGD16_LO, "R_PPC64_GOT_TLSGD16_LO", ClassGOT).tls(TLSGD),
	R_PPC64_GOT_TLSGD16_HI:     hi(R_PPC64_GOT_TLSGD16_HI, "R_PPC64_GOT_TLSGD16_HI", ClassGOT).tls(TLSGD),
	R_PPC64_GOT_TLSGD16_HA:     ha(R_PPC64_GOT_TLSGD16_HA, "R_PPC64_GOT_TLSGD16_HA", ClassGOT).tls(TLSGD),
	R_PPC64_GOT_TLSLD16:        h16(R_PPC64_GOT_TLSLD16, "R_PPC64_GOT_TLSLD16", ClassGOT).tls(TLSLD),
	R_PPC64_GOT_TLSLD16_LO:     lo(R_PPC64_GOT_TLSLD16_LO, "R_PPC64_GOT_TLSLD16_LO", ClassGOT).tls(TLSLD),
	R_PPC64_GOT_TLSLD16_HI:     hi(R_PPC64_GOT_TLSLD16_HI, "R_PPC64_GOT_TLSLD16_HI", ClassGOT).tls(TLSLD),
	R_PPC64_GOT_TLSLD16_HA:     ha(R_PPC64_GOT_TLSLD16_HA, "R_PPC64_GOT_TLSLD16_HA", ClassGOT).tls(TLSLD),
	R_PPC64_GOT_TPREL16_DS:     h16(R_PPC64_GOT_TPREL16_DS, "R_PPC64_GOT_TPREL16_DS", ClassGOT).ds().tls(TLSTPRel),
	R_PPC64_GOT_TPREL16_LO_DS:  lo(R_PPC64_GOT_TPREL16_LO_DS, "R_PPC64_GOT_TPREL16_LO_DS", ClassGOT).ds().tls(TLSTPRel),
	R_PPC64_GOT_TPREL16_HI:     hi(R_PPC64_GOT_TPREL16_HI, "R_PPC64_GOT_TPREL16_HI", ClassGOT).tls(TLSTPRel),
	R_PPC64_GOT_TPREL16_HA:     ha(R_PPC64_GOT_TPREL16_HA, "R_PPC64_GOT_TPREL16_HA", ClassGOT).tls(TLSTPRel),
	R_PPC64_GOT_DTPREL16_DS:    h16(R_PPC64_GOT_DTPREL16_DS, "R_PPC64_GOT_DTPREL16_DS", ClassGOT).ds().tls(TLSDTPRel),
	R_PPC64_GOT_DTPREL16_LO_DS: lo(R_PPC64_GOT_DTPREL16_LO_DS, "R_PPC64_GOT_DTPREL16_LO_DS", ClassGOT).ds().tls(TLSDTPRel),
	R_PPC64_GOT_DTPREL16_HI:    hi(R_PPC64_GOT_DTPREL16_HI, "R_PPC64_GOT_DTPREL16_HI", ClassGOT).tls(TLSDTPRel),
	R_PPC64_GOT_DTPREL16_HA:    ha(R_PPC64_GOT_DTPREL16_HA, "R_PPC64_GOT_DTPREL16_HA", ClassGOT).tls(TLSDTPRel),
	R_PPC64_TPREL16_DS:         h16(R_PPC64_TPREL16_DS, "R_PPC64_TPREL16_DS", ClassTPRel).ds().dyn(),
	R_PPC64_TPREL16_LO_DS:      lo(R_PPC64_TPREL16_LO_DS, "R_PPC64_TPREL16_LO_DS", ClassTPRel).ds().dyn(),
	R_PPC64_TPREL16_HIGHER:     higher(R_PPC64_TPREL16_HIGHER, "R_PPC64_TPREL16_HIGHER", ClassTPRel).dyn(),
	R_PPC64_TPREL16_HIGHERA:    highera(R_PPC64_TPREL16_HIGHERA, "R_PPC64_TPREL16_HIGHERA", ClassTPRel).dyn(),
	R_PPC64_TPREL16_HIGHEST:    highest(R_PPC64_TPREL16_HIGHEST, "R_PPC64_TPREL16_HIGHEST", ClassTPRel).dyn(),
	R_PPC64_TPREL16_HIGHESTA:   highesta(R_PPC64_TPREL16_HIGHESTA, "R_PPC64_TPREL16_HIGHESTA", ClassTPRel).dyn(),
	R_PPC64_DTPREL16_DS:        h16(R_PPC64_DTPREL16_DS, "R_PPC64_DTPREL16_DS", ClassDTPRel).ds(),
	R_PPC64_DTPREL16_LO_DS:     lo(R_PPC64_DTPREL16_LO_DS, "R_PPC64_DTPREL16_LO_DS", ClassDTPRel).ds(),
	R_PPC64_DTPREL16_HIGHER:    higher(R_PPC64_DTPREL16_HIGHER, "R_PPC64_DTPREL16_HIGHER", ClassDTPRel),
	R_PPC64_DTPREL16_HIGHERA:   highera(R_PPC64_DTPREL16_HIGHERA, "R_PPC64_DTPREL16_HIGHERA", ClassDTPRel),
	R_PPC64_DTPREL16_HIGHEST:   highest(R_PPC64_DTPREL16_HIGHEST, "R_PPC64_DTPREL16_HIGHEST", ClassDTPRel),
	R_PPC64_DTPREL16_HIGHESTA:  highesta(R_PPC64_DTPREL16_HIGHESTA, "R_PPC64_DTPREL16_HIGHESTA", ClassDTPRel),
	R_PPC64_TLSGD:              marker(R_PPC64_TLSGD, "R_PPC64_TLSGD", ClassTLSMarker).tls(TLSGD),
	R_PPC64_TLSLD:              marker(R_PPC64_TLSLD, "R_PPC64_TLSLD", ClassTLSMarker).tls(TLSLD),
	R_PPC64_TOCSAVE:            marker(R_PPC64_TOCSAVE, "R_PPC64_TOCSAVE", ClassTOCSave),
	R_PPC64_ADDR16_HIGH:        high(R_PPC64_ADDR16_HIGH, "R_PPC64_ADDR16_HIGH", ClassAbs).dyn(),
	R_PPC64_ADDR16_HIGHA:       higha(R_PPC64_ADDR16_HIGHA, "R_PPC64_ADDR16_HIGHA", ClassAbs).dyn(),
	R_PPC64_TPREL16_HIGH:       high(R_PPC64_TPREL16_HIGH, "R_PPC64_TPREL16_HIGH", ClassTPRel).dyn(),
	R_PPC64_TPREL16_HIGHA:      higha(R_PPC64_TPREL16_HIGHA, "R_PPC64_TPREL16_HIGHA", ClassTPRel).dyn(),
	R_PPC64_DTPREL16_HIGH:      high(R_PPC64_DTPREL16_HIGH, "R_PPC64_DTPREL16_HIGH", ClassDTPRel),
	R_PPC64_DTPREL16_HIGHA:     higha(R_PPC64_DTPREL16_HIGHA, "R_PPC64_DTPREL16_HIGHA", ClassDTPRel),
	R_PPC64_REL24_NOTOC:        branch24(R_PPC64_REL24_NOTOC, "R_PPC64_REL24_NOTOC", ClassBranch).pc(),
	R_PPC64_ADDR64_LOCAL:       w64(R_PPC64_ADDR64_LOCAL, "R_PPC64_ADDR64_LOCAL", ClassAbs),
	R_PPC64_ENTRY:              marker(R_PPC64_ENTRY, "R_PPC64_ENTRY", ClassEntry),
	R_PPC64_PLTSEQ:             marker(R_PPC64_PLTSEQ, "R_PPC64_PLTSEQ", ClassPLTSeq),
	R_PPC64_PLTCALL:            marker(R_PPC64_PLTCALL, "R_PPC64_PLTCALL", ClassPLTSeq),
	R_PPC64_PLTSEQ_NOTOC:       marker(R_PPC64_PLTSEQ_NOTOC, "R_PPC64_PLTSEQ_NOTOC", ClassPLTSeq),
	R_PPC64_PLTCALL_NOTOC:      marker(R_PPC64_PLTCALL_NOTOC, "R_PPC64_PLTCALL_NOTOC", ClassPLTSeq),
	R_PPC64_PCREL_OPT:          marker(R_PPC64_PCREL_OPT, "R_PPC64_PCREL_OPT", ClassPCRelOpt),
	R_PPC64_REL24_P9NOTOC:      branch24(R_PPC64_REL24_P9NOTOC, "R_PPC64_REL24_P9NOTOC", ClassBranch).pc(),

	R_PPC64_D34:                d34(R_PPC64_D34, "R_PPC64_D34", ClassAbs),
	R_PPC64_D34_LO:             field(R_PPC64_D34_LO, "R_PPC64_D34_LO", SizePrefix34, 34, 0, CheckDont, 0x3ffff0000ffff, ClassAbs),
	R_PPC64_D34_HI30:           d34hi30(R_PPC64_D34_HI30, "R_PPC64_D34_HI30", ClassAbs, false),
	R_PPC64_D34_HA30:           d34hi30(R_PPC64_D34_HA30, "R_PPC64_D34_HA30", ClassAbs, true),
	R_PPC64_PCREL34:            d34(R_PPC64_PCREL34, "R_PPC64_PCREL34", ClassRel).pc(),
	R_PPC64_GOT_PCREL34:        d34(R_PPC64_GOT_PCREL34, "R_PPC64_GOT_PCREL34", ClassGOT).pc(),
	R_PPC64_PLT_PCREL34:        d34(R_PPC64_PLT_PCREL34, "R_PPC64_PLT_PCREL34", ClassPLT).pc(),
	R_PPC64_PLT_PCREL34_NOTOC:  d34(R_PPC64_PLT_PCREL34_NOTOC, "R_PPC64_PLT_PCREL34_NOTOC", ClassPLT).pc(),
	R_PPC64_ADDR16_HIGHER34:    higher34(R_PPC64_ADDR16_HIGHER34, "R_PPC64_ADDR16_HIGHER34", ClassAbs, false),
	R_PPC64_ADDR16_HIGHERA34:   higher34(R_PPC64_ADDR16_HIGHERA34, "R_PPC64_ADDR16_HIGHERA34", ClassAbs, true),
	R_PPC64_ADDR16_HIGHEST34:   highest34(R_PPC64_ADDR16_HIGHEST34, "R_PPC64_ADDR16_HIGHEST34", ClassAbs, false),
	R_PPC64_ADDR16_HIGHESTA34:  highest34(R_PPC64_ADDR16_HIGHESTA34, "R_PPC64_ADDR16_HIGHESTA34", ClassAbs, true),
	R_PPC64_REL16_HIGHER34:     higher34(R_PPC64_REL16_HIGHER34, "R_PPC64_REL16_HIGHER34", ClassRel, false).pc(),
	R_PPC64_REL16_HIGHERA34:    higher34(R_PPC64_REL16_HIGHERA34, "R_PPC64_REL16_HIGHERA34", ClassRel, true).pc(),
	R_PPC64_REL16_HIGHEST34:    highest34(R_PPC64_REL16_HIGHEST34, "R_PPC64_REL16_HIGHEST34", ClassRel, false).pc(),
	R_PPC64_REL16_HIGHESTA34:   highest34(R_PPC64_REL16_HIGHESTA34, "R_PPC64_REL16_HIGHESTA34", ClassRel, true).pc(),
	R_PPC64_D28:                d28(R_PPC64_D28, "R_PPC64_D28", ClassAbs),
	R_PPC64_PCREL28:            d28(R_PPC64_PCREL28, "R_PPC64_PCREL28", ClassRel).pc(),
	R_PPC64_TPREL34:            d34(R_PPC64_TPREL34, "R_PPC64_TPREL34", ClassTPRel),
	R_PPC64_DTPREL34:           d34(R_PPC64_DTPREL34, "R_PPC64_DTPREL34", ClassDTPRel),
	R_PPC64_GOT_TLSGD_PCREL34:  d34(R_PPC64_GOT_TLSGD_PCREL34, "R_PPC64_GOT_TLSGD_PCREL34", ClassGOT).pc().tls(TLSGD),
	R_PPC64_GOT_TLSLD_PCREL34:  d34(R_PPC64_GOT_TLSLD_PCREL34, "R_PPC64_GOT_TLSLD_PCREL34", ClassGOT).pc().tls(TLSLD),
	R_PPC64_GOT_TPREL_PCREL34:  d34(R_PPC64_GOT_TPREL_PCREL34, "R_PPC64_GOT_TPREL_PCREL34", ClassGOT).pc().tls(TLSTPRel),
	R_PPC64_GOT_DTPREL_PCREL34: d34(R_PPC64_GOT_DTPREL_PCREL34, "R_PPC64_GOT_DTPREL_PCREL34", ClassGOT).pc().tls(TLSDTPRel),

	R_PPC64_REL16_HIGH:     high(R_PPC64_REL16_HIGH, "R_PPC64_REL16_HIGH", ClassRel).pc(),
	R_PPC64_REL16_HIGHA:    higha(R_PPC64_REL16_HIGHA, "R_PPC64_REL16_HIGHA", ClassRel).pc(),
	R_PPC64_REL16_HIGHER:   higher(R_PPC64_REL16_HIGHER, "R_PPC64_REL16_HIGHER", ClassRel).pc(),
	R_PPC64_REL16_HIGHERA:  highera(R_PPC64_REL16_HIGHERA, "R_PPC64_REL16_HIGHERA", ClassRel).pc(),
	R_PPC64_REL16_HIGHEST:  highest(R_PPC64_REL16_HIGHEST, "R_PPC64_REL16_HIGHEST", ClassRel).pc(),
	R_PPC64_REL16_HIGHESTA: highesta(R_PPC64_REL16_HIGHESTA, "R_PPC64_REL16_HIGHESTA", ClassRel).pc(),
	R_PPC64_REL16DX_HA: func() Howto {
		h := field(R_PPC64_REL16DX_HA, "R_PPC64_REL16DX_HA", SizeDX, 16, 16, CheckSigned, 0x1fffc1, ClassRel)
		h.Round = haRound
		return h.pc()
	}(),
	R_PPC64_JMP_IREL:      marker(R_PPC64_JMP_IREL, "R_PPC64_JMP_IREL", ClassDynamic),
	R_PPC64_IRELATIVE:     w64(R_PPC64_IRELATIVE, "R_PPC64_IRELATIVE", ClassDynamic),
	R_PPC64_REL16:         h16(R_PPC64_REL16, "R_PPC64_REL16", ClassRel).pc(),
	R_PPC64_REL16_LO:      lo(R_PPC64_REL16_LO, "R_PPC64_REL16_LO", ClassRel).pc(),
	R_PPC64_REL16_HI:      hi(R_PPC64_REL16_HI, "R_PPC64_REL16_HI", ClassRel).pc(),
	R_PPC64_REL16_HA:      ha(R_PPC64_REL16_HA, "R_PPC64_REL16_HA", ClassRel).pc(),
	R_PPC64_GNU_VTINHERIT: marker(R_PPC64_GNU_VTINHERIT, "R_PPC64_GNU_VTINHERIT", ClassVT),
	R_PPC64_GNU_VTENTRY:   marker(R_PPC64_GNU_VTENTRY, "R_PPC64_GNU_VTENTRY", ClassVT),
}

func init() {
	byName = make(map[string]RelocType)
	for i := range howtos {
		h := &howtos[i]
		if h.Name == "" {
			continue
		}
		h.Base, h.Minus = defaultCalc(h)
		byName[h.Name] = h.Type
	}
}

func defaultCalc(h *Howto) (Base, Minus) {
	rel := func(m Minus) Minus {
		if h.PCRel {
			return MinusP
		}
		return m
	}
	switch h.Class {
	case ClassAbs, ClassRel, ClassBranch:
		return BaseSym, rel(MinusNone)
	case ClassGOT:
		return BaseGOT, rel(MinusTOC)
	case ClassPLT:
		if h.Size == Size16 {
			return BasePLT, rel(MinusTOC)
		}
		return BasePLT, rel(MinusNone)
	case ClassTOC:
		return BaseSym, MinusTOC
	case ClassTOCBase:
		return BaseTOC, MinusNone
	case ClassTPRel:
		return BaseSym, MinusTP
	case ClassDTPRel:
		return BaseSym, MinusDTP
	case ClassDTPMod:
		return BaseModID, MinusNone
	case ClassSectOff:
		return BaseSym, MinusSect
	}
	return BaseNone, MinusNone
}
