package parser

import (
	"regexp"
	"strings"
)

// diseaseRenames standardizes variant spellings and duplicate names that
// drifted across archive years.
var diseaseRenames = map[string]string{
	"Acquired immunodeficiency syndrome (AIDS)":          "AIDS",
	"HIV/AIDS":                                           "AIDS",
	"Carbapenem-resistant enterobacteriaceae infection":  "Carbapenem-resistant Enterobacterales infection",
	"Enterohemorrhagic E. coli infection":                "Enterohemorrhagic Escherichia coli infection",
	"Epidemic louse-borne typhus":                        "Epidemic typhus",
	"Herpes B virus infection":                           "B virus disease",
	"Scrub typhus (Tsutsugamushi disease)":               "Scrub typhus",
	"Tsutsugamushi disease":                              "Scrub typhus",
	"Severe invasive streptococcal infections (TSLS)":    "Severe invasive streptococcal infections",
	"VRE infection":                                      "Vancomycin-resistant Enterococcus infection",
	"West Nile fever (including West Nile encephalitis)": "West Nile fever",
}

// Some years split a name across merged cells, producing text like
// "H5N1) (Avian influenza H5N1". The tail segment is the intended name.
var malformedParenRe = regexp.MustCompile(`^[^(]*\)\s*\((.+)$`)

// NormalizeDisease repairs malformed parentheses and applies the known
// variant renames.
func NormalizeDisease(name string) string {
	if m := malformedParenRe.FindStringSubmatch(name); m != nil {
		name = strings.TrimSpace(m[1])
	}
	if canon, ok := diseaseRenames[name]; ok {
		return canon
	}
	return name
}
