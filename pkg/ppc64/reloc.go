package ppc64

import "strconv"

// RelocType is a PowerPC64 ELF relocation type code.
type RelocType uint32

const (
	R_PPC64_NONE               RelocType = 0
	R_PPC64_ADDR32             RelocType = 1
	R_PPC64_ADDR24             RelocType = 2
	R_PPC64_ADDR16             RelocType = 3
	R_PPC64_ADDR16_LO          RelocType = 4
	R_PPC64_ADDR16_HI          RelocType = 5
	R_PPC64_ADDR16_HA          RelocType = 6
	R_PPC64_ADDR14             RelocType = 7
	R_PPC64_ADDR14_BRTAKEN     RelocType = 8
	R_PPC64_ADDR14_BRNTAKEN    RelocType = 9
	R_PPC64_REL24              RelocType = 10
	R_PPC64_REL14              RelocType = 11
	R_PPC64_REL14_BRTAKEN      RelocType = 12
	R_PPC64_REL14_BRNTAKEN     RelocType = 13
	R_PPC64_GOT16              RelocType = 14
	R_PPC64_GOT16_LO           RelocType = 15
	R_PPC64_GOT16_HI           RelocType = 16
	R_PPC64_GOT16_HA           RelocType = 17
	R_PPC64_COPY               RelocType = 19
	R_PPC64_GLOB_DAT           RelocType = 20
	R_PPC64_JMP_SLOT           RelocType = 21
	R_PPC64_RELATIVE           RelocType = 22
	R_PPC64_UADDR32            RelocType = 24
	R_PPC64_UADDR16            RelocType = 25
	R_PPC64_REL32              RelocType = 26
	R_PPC64_PLT32              RelocType = 27
	R_PPC64_PLTREL32           RelocType = 28
	R_PPC64_PLT16_LO           RelocType = 29
	R_PPC64_PLT16_HI           RelocType = 30
	R_PPC64_PLT16_HA           RelocType = 31
	R_PPC64_SECTOFF            RelocType = 33
	R_PPC64_SECTOFF_LO         RelocType = 34
	R_PPC64_SECTOFF_HI         RelocType = 35
	R_PPC64_SECTOFF_HA         RelocType = 36
	R_PPC64_ADDR30             RelocType = 37
	R_PPC64_ADDR64             RelocType = 38
	R_PPC64_ADDR16_HIGHER      RelocType = 39
	R_PPC64_ADDR16_HIGHERA     RelocType = 40
	R_PPC64_ADDR16_HIGHEST     RelocType = 41
	R_PPC64_ADDR16_HIGHESTA    RelocType = 42
	R_PPC64_UADDR64            RelocType = 43
	R_PPC64_REL64              RelocType = 44
	R_PPC64_PLT64              RelocType = 45
	R_PPC64_PLTREL64           RelocType = 46
	R_PPC64_TOC16              RelocType = 47
	R_PPC64_TOC16_LO           RelocType = 48
	R_PPC64_TOC16_HI           RelocType = 49
	R_PPC64_TOC16_HA           RelocType = 50
	R_PPC64_TOC                RelocType = 51
	R_PPC64_PLTGOT16           RelocType = 52
	R_PPC64_PLTGOT16_LO        RelocType = 53
	R_PPC64_PLTGOT16_HI        RelocType = 54
	R_PPC64_PLTGOT16_HA        RelocType = 55
	R_PPC64_ADDR16_DS          RelocType = 56
	R_PPC64_ADDR16_LO_DS       RelocType = 57
	R_PPC64_GOT16_DS           RelocType = 58
	R_PPC64_GOT16_LO_DS        RelocType = 59
	R_PPC64_PLT16_LO_DS        RelocType = 60
	R_PPC64_SECTOFF_DS         RelocType = 61
	R_PPC64_SECTOFF_LO_DS      RelocType = 62
	R_PPC64_TOC16_DS           RelocType = 63
	R_PPC64_TOC16_LO_DS        RelocType = 64
	R_PPC64_PLTGOT16_DS        RelocType = 65
	R_PPC64_PLTGOT16_LO_DS     RelocType = 66
	R_PPC64_TLS                RelocType = 67
	R_PPC64_DTPMOD64           RelocType = 68
	R_PPC64_TPREL16            RelocType = 69
	R_PPC64_TPREL16_LO         RelocType = 70
	R_PPC64_TPREL16_HI         RelocType = 71
	R_PPC64_TPREL16_HA         RelocType = 72
	R_PPC64_TPREL64            RelocType = 73
	R_PPC64_DTPREL16           RelocType = 74
	R_PPC64_DTPREL16_LO        RelocType = 75
	R_PPC64_DTPREL16_HI        RelocType = 76
	R_PPC64_DTPREL16_HA        RelocType = 77
	R_PPC64_DTPREL64           RelocType = 78
	R_PPC64_GOT_TLSGD16        RelocType = 79
	R_PPC64_GOT_TLSGD16_LO     RelocType = 80
	R_PPC64_GOT_TLSGD16_HI     RelocType = 81
	R_PPC64_GOT_TLSGD16_HA     RelocType = 82
	R_PPC64_GOT_TLSLD16        RelocType = 83
	R_PPC64_GOT_TLSLD16_LO     RelocType = 84
	R_PPC64_GOT_TLSLD16_HI     RelocType = 85
	R_PPC64_GOT_TLSLD16_HA     RelocType = 86
	R_PPC64_GOT_TPREL16_DS     RelocType = 87
	R_PPC64_GOT_TPREL16_LO_DS  RelocType = 88
	R_PPC64_GOT_TPREL16_HI     RelocType = 89
	R_PPC64_GOT_TPREL16_HA     RelocType = 90
	R_PPC64_GOT_DTPREL16_DS    RelocType = 91
	R_PPC64_GOT_DTPREL16_LO_DS RelocType = 92
	R_PPC64_GOT_DTPREL16_HI    RelocType = 93
	R_PPC64_GOT_DTPREL16_HA    RelocType = 94
	R_PPC64_TPREL16_DS         RelocType = 95
	R_PPC64_TPREL16_LO_DS      RelocType = 96
	R_PPC64_TPREL16_HIGHER     RelocType = 97
	R_PPC64_TPREL16_HIGHERA    RelocType = 98
	R_PPC64_TPREL16_HIGHEST    RelocType = 99
	R_PPC64_TPREL16_HIGHESTA   RelocType = 100
	R_PPC64_DTPREL16_DS        RelocType = 101
	R_PPC64_DTPREL16_LO_DS     RelocType = 102
	R_PPC64_DTPREL16_HIGHER    RelocType = 103
	R_PPC64_DTPREL16_HIGHERA   RelocType = 104
	R_PPC64_DTPREL16_HIGHEST   RelocType = 105
	R_PPC64_DTPREL16_HIGHESTA  RelocType = 106
	R_PPC64_TLSGD              RelocType = 107
	R_PPC64_TLSLD              RelocType = 108
	R_PPC64_TOCSAVE            RelocType = 109
	R_PPC64_ADDR16_HIGH        RelocType = 110
	R_PPC64_ADDR16_HIGHA       RelocType = 111
	R_PPC64_TPREL16_HIGH       RelocType = 112
	R_PPC64_TPREL16_HIGHA      RelocType = 113
	R_PPC64_DTPREL16_HIGH      RelocType = 114
	R_PPC64_DTPREL16_HIGHA     RelocType = 115
	R_PPC64_REL24_NOTOC        RelocType = 116
	R_PPC64_ADDR64_LOCAL       RelocType = 117
	R_PPC64_ENTRY              RelocType = 118
	R_PPC64_PLTSEQ             RelocType = 119
	R_PPC64_PLTCALL            RelocType = 120
	R_PPC64_PLTSEQ_NOTOC       RelocType = 121
	R_PPC64_PLTCALL_NOTOC      RelocType = 122
	R_PPC64_PCREL_OPT          RelocType = 123
	R_PPC64_REL24_P9NOTOC      RelocType = 124
	R_PPC64_D34                RelocType = 128
	R_PPC64_D34_LO             RelocType = 129
	R_PPC64_D34_HI30           RelocType = 130
	R_PPC64_D34_HA30           RelocType = 131
	R_PPC64_PCREL34            RelocType = 132
	R_PPC64_GOT_PCREL34        RelocType = 133
	R_PPC64_PLT_PCREL34        RelocType = 134
	R_PPC64_PLT_PCREL34_NOTOC  RelocType = 135
	R_PPC64_ADDR16_HIGHER34    RelocType = 136
	R_PPC64_ADDR16_HIGHERA34   RelocType = 137
	R_PPC64_ADDR16_HIGHEST34   RelocType = 138
	R_PPC64_ADDR16_HIGHESTA34  RelocType = 139
	R_PPC64_REL16_HIGHER34     RelocType = 140
	R_PPC64_REL16_HIGHERA34    RelocType = 141
	R_PPC64_REL16_HIGHEST34    RelocType = 142
	R_PPC64_REL16_HIGHESTA34   RelocType = 143
	R_PPC64_D28                RelocType = 144
	R_PPC64_PCREL28            RelocType = 145
	R_PPC64_TPREL34            RelocType = 146
	R_PPC64_DTPREL34           RelocType = 147
	R_PPC64_GOT_TLSGD_PCREL34  RelocType = 148
	R_PPC64_GOT_TLSLD_PCREL34  RelocType = 149
	R_PPC64_GOT_TPREL_PCREL34  RelocType = 150
	R_PPC64_GOT_DTPREL_PCREL34 RelocType = 151
	R_PPC64_REL16_HIGH         RelocType = 240
	R_PPC64_REL16_HIGHA        RelocType = 241
	R_PPC64_REL16_HIGHER       RelocType = 242
	R_PPC64_REL16_HIGHERA      RelocType = 243
	R_PPC64_REL16_HIGHEST      RelocType = 244
	R_PPC64_REL16_HIGHESTA     RelocType = 245
	R_PPC64_REL16DX_HA         RelocType = 246
	R_PPC64_JMP_IREL           RelocType = 247
	R_PPC64_IRELATIVE          RelocType = 248
	R_PPC64_REL16              RelocType = 249
	R_PPC64_REL16_LO           RelocType = 250
	R_PPC64_REL16_HI           RelocType = 251
	R_PPC64_REL16_HA           RelocType = 252
	R_PPC64_GNU_VTINHERIT      RelocType = 253
	R_PPC64_GNU_VTENTRY        RelocType = 254

	maxRelocType = 255
)

func (t RelocType) String() string {
	if h, ok := Lookup(t); ok {
		return h.Name
	}
	return "R_PPC64_" + strconv.FormatUint(uint64(t), 10)
}

// aliases maps spellings used by other toolchains and older binutils to
// the canonical relocation.
var aliases = map[string]RelocType{
	"R_PPC64_REL16_DX_HA":  R_PPC64_REL16DX_HA,
	"R_PPC64_GOT_TLSGD34":  R_PPC64_GOT_TLSGD_PCREL34,
	"R_PPC64_GOT_TLSLD34":  R_PPC64_GOT_TLSLD_PCREL34,
	"R_PPC64_GOT_TPREL34":  R_PPC64_GOT_TPREL_PCREL34,
	"R_PPC64_GOT_DTPREL34": R_PPC64_GOT_DTPREL_PCREL34,
}

var byName map[string]RelocType

// LookupByName returns the relocation type called name. The "R_PPC64_"
// prefix may be omitted.
func LookupByName(name string) (RelocType, bool) {
	if t, ok := byName[name]; ok {
		return t, true
	}
	if t, ok := aliases[name]; ok {
		return t, true
	}
	if t, ok := byName["R_PPC64_"+name]; ok {
		return t, true
	}
	t, ok := aliases["R_PPC64_"+name]
	return t, ok
}
