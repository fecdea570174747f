package segmenter

import "strings"

// Abbreviations are stored lowercased with their trailing period.
var abbreviationTables = map[string][]string{
	"en": {
		"mr.", "mrs.", "ms.", "dr.", "prof.", "sr.", "jr.", "st.", "mt.", "vs.",
		"etc.", "e.g.", "i.e.", "inc.", "ltd.", "co.", "corp.", "approx.",
		"dept.", "est.", "fig.", "gen.", "gov.", "lt.", "col.", "sgt.", "capt.",
		"a.m.", "p.m.", "u.s.", "u.k.",
		"jan.", "feb.", "mar.", "apr.", "jun.", "jul.", "aug.", "sep.", "sept.",
		"oct.", "nov.", "dec.",
	},
	"es": {
		"sr.", "sra.", "srta.", "dr.", "dra.", "ud.", "uds.", "lic.", "ing.",
		"prof.", "etc.", "pág.", "núm.", "av.", "avda.", "gral.", "dpto.",
		"aprox.", "p.ej.", "ee.uu.", "a.m.", "p.m.",
	},
	"fr": {
		"m.", "mm.", "mme.", "mmes.", "mlle.", "dr.", "pr.", "me.", "etc.",
		"p.ex.", "cf.", "env.", "av.", "bd.", "apr.", "n°.", "st.", "ste.",
	},
	"de": {
		"hr.", "fr.", "dr.", "prof.", "z.b.", "bzw.", "usw.", "u.a.", "d.h.",
		"ca.", "nr.", "str.", "evtl.", "ggf.", "inkl.", "vgl.", "s.", "o.ä.",
	},
	"pt": {
		"sr.", "sra.", "srta.", "dr.", "dra.", "prof.", "profa.", "etc.", "av.",
		"p.ex.", "pág.", "eng.",
	},
	"it": {
		"sig.", "sigg.", "dott.", "prof.", "ing.", "avv.",
		"ecc.", "es.", "pag.", "n.",
	},
}

// abbreviationsFor resolves a BCP-47-ish tag ("es-MX", "pt_BR") to its base
// language table.
func abbreviationsFor(lang string) map[string]struct{} {
	base := strings.ToLower(lang)
	if idx := strings.IndexAny(base, "-_"); idx >= 0 {
		base = base[:idx]
	}
	words, ok := abbreviationTables[base]
	if !ok {
		words = abbreviationTables["en"]
	}

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
