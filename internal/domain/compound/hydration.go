package compound

import (
	"regexp"
	"strconv"
	"strings"
)

// HydrationRule names the pattern family that detected a hydration marker.
type HydrationRule string

const (
	RuleNone             HydrationRule = "none"
	RuleNamedMultiplier  HydrationRule = "named_multiplier"
	RuleNumericSeparator HydrationRule = "numeric_separator"
	RuleAdjacentDigits   HydrationRule = "adjacent_digits"
	RuleSymbolic         HydrationRule = "symbolic"
	RuleBareHydrate      HydrationRule = "bare_hydrate"
)

// HydrationState is the water count carried by a compound name. Count is never
// negative. A symbolic state ("xH2O") keeps Count at 0 and is never turned
// into a number.
type HydrationState struct {
	Count    int           `json:"count"`
	Symbolic bool          `json:"symbolic"`
	Symbol   string        `json:"symbol,omitempty"`
	Rule     HydrationRule `json:"rule"`
}

// Anhydrous is the state reported when no hydration marker is found.
func Anhydrous() HydrationState {
	return HydrationState{Rule: RuleNone}
}

// IsHydrate reports whether the state denotes any water of crystallisation.
func (h HydrationState) IsHydrate() bool {
	return h.Symbolic || h.Count > 0
}

// SameWater compares stoichiometry only; the detecting rule and the symbol
// letter are ignored.
func (h HydrationState) SameWater(o HydrationState) bool {
	if h.Symbolic || o.Symbolic {
		return h.Symbolic == o.Symbolic
	}
	return h.Count == o.Count
}

// String renders "6", "x" or "0".
func (h HydrationState) String() string {
	if h.Symbolic {
		if h.Symbol == "" {
			return "x"
		}
		return h.Symbol
	}
	return strconv.Itoa(h.Count)
}

// HydrateFormula renders base with its water, e.g. "MgCl2.6H2O",
// "MgSO4.H2O" or "MnSO4.xH2O". Anhydrous states return base unchanged.
func (h HydrationState) HydrateFormula(base string) string {
	if !h.IsHydrate() {
		return base
	}
	if !h.Symbolic && h.Count == 1 {
		return base + ".H2O"
	}
	return base + "." + h.String() + "H2O"
}

// ─────────────────────────────────────────────────────────────────────────────
// Rule table
// ─────────────────────────────────────────────────────────────────────────────

var namedMultipliers = map[string]int{
	"mono": 1, "uni": 1,
	"di": 2, "bi": 2,
	"tri":    3,
	"tetra":  4,
	"penta":  5,
	"hexa":   6,
	"hepta":  7,
	"octa":   8,
	"nona":   9,
	"deca":   10,
	"undeca": 11,
	"dodeca": 12,
}

type hydrationPattern struct {
	rule  HydrationRule
	re    *regexp.Regexp
	state func(groups []string) (HydrationState, bool)
}

// fractionalWater matches decimal water counts ("0.5H2O", "1.5H2O", ",5H2O");
// those are not integer counts and are left unparsed. A point needs a digit
// before it, so a stray space before the separator ("MgSO4 .7H2O") still
// reads as seven waters, and the leading non-alphanumeric keeps "MgSO4.7H2O"
// out.
var fractionalWater = regexp.MustCompile(`(?i)(?:^|[^a-z\d])(?:\d+[.,]|,)\d+\s*h2o\b`)

func countGroup(groups []string) (HydrationState, bool) {
	n, err := strconv.Atoi(groups[1])
	if err != nil || n < 0 {
		return HydrationState{}, false
	}
	return HydrationState{Count: n}, true
}

func fixedCount(n int) func([]string) (HydrationState, bool) {
	return func([]string) (HydrationState, bool) {
		return HydrationState{Count: n}, true
	}
}

// defaultPatterns is evaluated top to bottom; the first accepted match wins.
// Every numeric pattern anchors its digits on a separator, whitespace or an
// opening parenthesis, so digits of the formula itself ("MgSO4") never count.
var defaultPatterns = []hydrationPattern{
	{
		rule: RuleNamedMultiplier,
		re:   regexp.MustCompile(`(?i)(?:^|[\s·.*×,(\-]+)(mono|uni|dodeca|undeca|di|bi|tri|tetra|penta|hexa|hepta|octa|nona|deca)[\s\-]?hydrate\b\)?`),
		state: func(groups []string) (HydrationState, bool) {
			n, ok := namedMultipliers[strings.ToLower(groups[1])]
			return HydrationState{Count: n}, ok
		},
	},
	{
		rule:  RuleNumericSeparator,
		re:    regexp.MustCompile(`(?i)(?:\s*[·.*×]\s*|\s*-\s*|\s+x\s*)(\d{1,3})\s*-?\s*(?:h2o|hydrate)\b`),
		state: countGroup,
	},
	{
		rule:  RuleNumericSeparator,
		re:    regexp.MustCompile(`(?i)(?:\s+|\()(\d{1,3})\s*-?\s*hydrate\b\)?`),
		state: countGroup,
	},
	{
		rule:  RuleNumericSeparator,
		re:    regexp.MustCompile(`(?i)\s*[·.*×]\s*h2o\b`),
		state: fixedCount(1),
	},
	{
		rule:  RuleAdjacentDigits,
		re:    regexp.MustCompile(`(?i)(?:\s+|\()(\d{1,3})\s*h2o\b\)?`),
		state: countGroup,
	},
	{
		rule: RuleSymbolic,
		re:   regexp.MustCompile(`(?i)(?:\s*[·.*×]\s*|\s+|\()([xn])\s*-?\s*(?:h2o|hydrate)\b\)?`),
		state: func(groups []string) (HydrationState, bool) {
			return HydrationState{Symbolic: true, Symbol: strings.ToLower(groups[1])}, true
		},
	},
	{
		rule:  RuleBareHydrate,
		re:    regexp.MustCompile(`(?i)(?:\s*[·.*×\-]\s*|\s+)hydrate\s*$`),
		state: fixedCount(1),
	},
}

// baseTrimSet is stripped from the end of a base once the marker is removed.
const baseTrimSet = " \t·.*×,-"

// ─────────────────────────────────────────────────────────────────────────────
// HydrationParser
// ─────────────────────────────────────────────────────────────────────────────

// HydrationParser splits hydration notation off a raw compound name.
type HydrationParser struct {
	patterns []hydrationPattern
}

// NewHydrationParser returns a parser using the canonical rule table.
func NewHydrationParser() *HydrationParser {
	return &HydrationParser{patterns: defaultPatterns}
}

var defaultParser = NewHydrationParser()

// ParseHydration runs the canonical parser.
func ParseHydration(raw string) (string, HydrationState) {
	return defaultParser.Parse(raw)
}

// Parse returns the base name and the hydration state of raw. It never fails:
// without a marker the trimmed input comes back with an anhydrous state.
func (p *HydrationParser) Parse(raw string) (string, HydrationState) {
	trimmed := strings.TrimSpace(raw)
	s := foldGlyphs(trimmed)
	if fractionalWater.MatchString(s) {
		return trimmed, Anhydrous()
	}

	for _, pat := range p.patterns {
		loc := pat.re.FindStringSubmatchIndex(s)
		if loc == nil {
			continue
		}
		state, ok := pat.state(submatches(s, loc))
		if !ok {
			continue
		}
		base := strings.TrimRight(collapseSpace(s[:loc[0]]+" "+s[loc[1]:]), baseTrimSet)
		if base == "" {
			// "H2O" or "hydrate" alone is not a hydrated compound.
			continue
		}
		state.Rule = pat.rule
		return base, state
	}
	return trimmed, Anhydrous()
}

func submatches(s string, loc []int) []string {
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return groups
}
