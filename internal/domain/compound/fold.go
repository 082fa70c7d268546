// Package compound holds the text-level rules for raw compound names: the
// hydration parser and the name normalizer. Both are pure and safe for
// concurrent use.
package compound

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RulesVersion identifies the hydration and normalization rule tables.
// Bump it whenever a pattern or expansion changes; it is folded into the
// reference index version so cached mappings are invalidated.
const RulesVersion = "3"

// glyphReplacer repairs UTF-8 mojibake seen in scraped recipes and maps the
// dot-like separators onto the middle dot.
var glyphReplacer = strings.NewReplacer(
	"â€¢", "·",
	"Â·", "·",
	"•", "·",
	"∙", "·",
	"⋅", "·",
	"・", "·",
	"．", ".",
)

// foldGlyphs applies NFKC (subscripts to ASCII digits, full-width forms) and
// the separator repair.
func foldGlyphs(s string) string {
	return norm.NFKC.String(glyphReplacer.Replace(s))
}

// stripMarks removes combining marks (é → e). A fresh transformer is built per
// call because transform.Transformer values are stateful.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// collapseSpace trims and folds runs of whitespace into a single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
