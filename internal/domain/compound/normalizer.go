package compound

import (
	"regexp"
	"strings"
)

// maxPasses bounds the fixed-point loop in Normalize. Real names settle in
// two or three passes.
const maxPasses = 8

var (
	parenGroup    = regexp.MustCompile(`\s*\(([^()]*)\)`)
	romanNumeral  = regexp.MustCompile(`^(?:i{1,3}|iv|vi{0,3}|ix)$`)
	romanSpaced   = regexp.MustCompile(`\s+(\((?:i{1,3}|iv|vi{0,3}|ix)\))`)
	concentration = regexp.MustCompile(`^(?:\d+(?:[.,]\d+)?\s*(?:%|mmol/l|mol/l|mg/ml|mg/l|g/l|mm|μm|um|nm|mg|μg|ug|g|m)(?:\s*\(?w/v\)?)?\s+)+`)
	amountNote    = regexp.MustCompile(`^(?:ph\s*\d+(?:[.,]\d+)?|\d+(?:[.,]\d+)?\s*(?:%|mmol/l|mol/l|mg/ml|mg/l|g/l|mm|μm|um|nm|mg|μg|ug|g|m)(?:\s*w/v)?)$`)
	stereoPrefix  = regexp.MustCompile(`(^|[\s,])(?:dl|d/l|l|d|alpha|beta|gamma|α|β|γ)-+([^\d-]|$)`)
	stereoInfix   = regexp.MustCompile(`-(?:dl|d/l|l|d|alpha|beta|gamma|α|β|γ)-+([^\d-]|$)`)
	cationPrefix  = regexp.MustCompile(`^(na2|na|k2|k|nh4|ca|mg)-([a-z])`)
	spelling      = regexp.MustCompile(`\b(sulphate|sulphite|sulphide|aluminium|caesium|bicarbonate)\b`)
	saltIon       = regexp.MustCompile(`h2po4|hpo4|hco3|moo4|seo4|seo3|wo4|so4|so3|no3|no2|co3|po4|hcl|cl\d*\b`)
	chargeNote    = regexp.MustCompile(`\s*\(\s*\d*\s*[+\-−]+\s*\d*\s*\)`)
	leadingHyphen = regexp.MustCompile(`(^|\s)-+`)
	trailHyphen   = regexp.MustCompile(`-+(\s|$)`)
)

var cationWords = map[string]string{
	"na":  "sodium ",
	"na2": "disodium ",
	"k":   "potassium ",
	"k2":  "dipotassium ",
	"nh4": "ammonium ",
	"ca":  "calcium ",
	"mg":  "magnesium ",
}

var spellingWords = map[string]string{
	"sulphate":    "sulfate",
	"sulphite":    "sulfite",
	"sulphide":    "sulfide",
	"aluminium":   "aluminum",
	"caesium":     "cesium",
	"bicarbonate": "hydrogen carbonate",
}

// saltWords expands anion abbreviations. Chloride is handled separately so the
// stoichiometric count after "cl" survives ("mgcl2" → "mg chloride2").
var saltWords = map[string]string{
	"h2po4": "dihydrogen phosphate",
	"hpo4":  "hydrogen phosphate",
	"hco3":  "hydrogen carbonate",
	"moo4":  "molybdate",
	"seo4":  "selenate",
	"seo3":  "selenite",
	"wo4":   "tungstate",
	"so4":   "sulfate",
	"so3":   "sulfite",
	"no3":   "nitrate",
	"no2":   "nitrite",
	"co3":   "carbonate",
	"po4":   "phosphate",
	"hcl":   "hydrochloride",
}

const edgeTrimSet = " .,;:·*-"

// Normalize returns the comparison form of name. The pipeline is repeated
// until it reaches a fixed point, so Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	s := name
	for i := 0; i < maxPasses; i++ {
		next := normalizePass(s)
		if next == s {
			return next
		}
		s = next
	}
	return s
}

func normalizePass(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(stripMarks(foldGlyphs(s)), "·", ".")
	s = collapseSpace(s)

	s = romanSpaced.ReplaceAllString(s, "$1")
	s = stripQualifiers(s)
	s = collapseSpace(s)

	s = concentration.ReplaceAllString(s, "")
	// "na-l-lactate" needs its cation expanded before the stereo letter goes.
	s = cationPrefix.ReplaceAllStringFunc(s, func(m string) string {
		i := strings.IndexByte(m, '-')
		return cationWords[m[:i]] + m[i+1:]
	})
	s = stereoPrefix.ReplaceAllString(s, "$1$2")
	s = stereoInfix.ReplaceAllString(s, " $1")

	s = spelling.ReplaceAllStringFunc(s, func(m string) string { return spellingWords[m] })
	s = saltIon.ReplaceAllStringFunc(s, expandIon)

	s = chargeNote.ReplaceAllString(s, "")

	s = collapseSpace(s)
	s = leadingHyphen.ReplaceAllString(s, "$1")
	s = trailHyphen.ReplaceAllString(s, "$1")
	return strings.Trim(collapseSpace(s), edgeTrimSet)
}

func expandIon(m string) string {
	if w, ok := saltWords[m]; ok {
		return " " + w
	}
	// cl with an optional count
	return " chloride" + strings.TrimPrefix(m, "cl")
}

// stripQualifiers drops parenthetical qualifiers such as "(Difco)" or "(w/v)",
// amounts such as "(10 %)" and "(pH 7.2)" among them. Other groups that carry
// chemistry stay: anything with a digit ("(nh4)", "(2+)"), groups followed by
// a count ("(oh)2") and oxidation states ("(iii)").
func stripQualifiers(s string) string {
	locs := parenGroup.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		content := strings.TrimSpace(s[loc[2]:loc[3]])
		if keepParenthetical(content, s, loc[1]) {
			continue
		}
		b.WriteString(s[last:loc[0]])
		b.WriteByte(' ')
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func keepParenthetical(content, s string, end int) bool {
	switch {
	case content == "":
		return false
	case amountNote.MatchString(content):
		return false
	case strings.ContainsAny(content, "0123456789"):
		return true
	case end < len(s) && s[end] >= '0' && s[end] <= '9':
		return true
	case romanNumeral.MatchString(content):
		return true
	}
	return false
}
