package compound

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHydration_Markers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw      string
		base     string
		count    int
		symbolic bool
		rule     HydrationRule
	}{
		{"MgCl2 6-hydrate", "MgCl2", 6, false, RuleNumericSeparator},
		{"MnSO4·xH2O", "MnSO4", 0, true, RuleSymbolic},
		{"CoCl2 hexahydrate", "CoCl2", 6, false, RuleNamedMultiplier},
		{"Calcium chloride dihydrate", "Calcium chloride", 2, false, RuleNamedMultiplier},
		{"Copper(II) sulfate pentahydrate", "Copper(II) sulfate", 5, false, RuleNamedMultiplier},
		{"Na2SO4 decahydrate", "Na2SO4", 10, false, RuleNamedMultiplier},
		{"Na2HPO4 dodecahydrate", "Na2HPO4", 12, false, RuleNamedMultiplier},
		{"MgSO4.7H2O", "MgSO4", 7, false, RuleNumericSeparator},
		{"MgSO4•7H2O", "MgSO4", 7, false, RuleNumericSeparator},
		{"MgSO4â€¢7H2O", "MgSO4", 7, false, RuleNumericSeparator},
		{"MgSO4-7H2O", "MgSO4", 7, false, RuleNumericSeparator},
		{"Na2HPO4·12H2O", "Na2HPO4", 12, false, RuleNumericSeparator},
		{"MgCl₂·6H₂O", "MgCl2", 6, false, RuleNumericSeparator},
		{"CaCl2 x 2 H2O", "CaCl2", 2, false, RuleNumericSeparator},
		{"Na2S x 9 H2O", "Na2S", 9, false, RuleNumericSeparator},
		{"X · 5 H2O", "X", 5, false, RuleNumericSeparator},
		{"MgSO4·H2O", "MgSO4", 1, false, RuleNumericSeparator},
		{"MgCl2 6H2O", "MgCl2", 6, false, RuleAdjacentDigits},
		{"ZnSO4 (7H2O)", "ZnSO4", 7, false, RuleAdjacentDigits},
		{"FeCl3 n H2O", "FeCl3", 0, true, RuleSymbolic},
		{"MnSO4 x H2O", "MnSO4", 0, true, RuleSymbolic},
		{"Trehalose hydrate", "Trehalose", 1, false, RuleBareHydrate},
		{"MgSO4·7H2O (Sigma)", "MgSO4 (Sigma)", 7, false, RuleNumericSeparator},
		{"MgSO4 .7H2O", "MgSO4", 7, false, RuleNumericSeparator},
		{"MgSO4 . 7 H2O", "MgSO4", 7, false, RuleNumericSeparator},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()

			base, h := ParseHydration(tc.raw)
			assert.Equal(t, tc.base, base)
			assert.Equal(t, tc.count, h.Count)
			assert.Equal(t, tc.symbolic, h.Symbolic)
			assert.Equal(t, tc.rule, h.Rule)
			assert.True(t, h.IsHydrate())
			assert.GreaterOrEqual(t, h.Count, 0)
		})
	}
}

func TestParseHydration_NoMarker(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"MgSO4",
		"NaCl",
		"KH2PO4",
		"Sodium chloride",
		"L-Cysteine HCl",
		"Yeast extract (Difco)",
		"Tween 80",
		"  Glucose ",
		"carbohydrate mix",
		"dehydrated culture medium",
		"H2O2",
		"H2O",
		"hydrate",
		"",
	}

	for _, raw := range inputs {
		base, h := ParseHydration(raw)
		assert.Equal(t, 0, h.Count, raw)
		assert.False(t, h.Symbolic, raw)
		assert.Equal(t, RuleNone, h.Rule, raw)
		assert.Equal(t, strings.TrimSpace(raw), base, raw)
	}
}

func TestParseHydration_FormulaDigitsNeverConsumed(t *testing.T) {
	t.Parallel()

	base, h := ParseHydration("MgSO4 7H2O")
	assert.Equal(t, "MgSO4", base)
	assert.Equal(t, 7, h.Count)

	// Ambiguous run-together digits are left alone rather than guessed.
	base, h = ParseHydration("MgSO47H2O")
	assert.Equal(t, "MgSO47H2O", base)
	assert.False(t, h.IsHydrate())
}

func TestParseHydration_FractionalIsNotParsed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"CaSO4·0.5H2O", "CaSO4.0.5H2O", "CaSO4 hemihydrate", "CaSO4 x 0.5 H2O",
		"CaSO4·1.5H2O", "CaSO4 · 0,5 H2O", "CaSO4·,5H2O",
	} {
		base, h := ParseHydration(raw)
		assert.Equal(t, raw, base)
		assert.Equal(t, Anhydrous(), h)
	}
}

func TestParseHydration_PrecedenceIsFixed(t *testing.T) {
	t.Parallel()

	// A named multiplier wins over a later numeric marker.
	base, h := ParseHydration("NiCl2 hexahydrate ·6H2O")
	assert.Equal(t, 6, h.Count)
	assert.Equal(t, RuleNamedMultiplier, h.Rule)
	assert.Equal(t, "NiCl2 ·6H2O", base)

	for i := 0; i < 5; i++ {
		b2, h2 := ParseHydration("NiCl2 hexahydrate ·6H2O")
		assert.Equal(t, base, b2)
		assert.Equal(t, h, h2)
	}
}

func TestHydrationState_Rendering(t *testing.T) {
	t.Parallel()

	six := HydrationState{Count: 6, Rule: RuleNumericSeparator}
	one := HydrationState{Count: 1, Rule: RuleBareHydrate}
	sym := HydrationState{Symbolic: true, Symbol: "x", Rule: RuleSymbolic}

	assert.Equal(t, "6", six.String())
	assert.Equal(t, "x", sym.String())
	assert.Equal(t, "0", Anhydrous().String())

	assert.Equal(t, "MgCl2.6H2O", six.HydrateFormula("MgCl2"))
	assert.Equal(t, "MgSO4.H2O", one.HydrateFormula("MgSO4"))
	assert.Equal(t, "MnSO4.xH2O", sym.HydrateFormula("MnSO4"))
	assert.Equal(t, "NaCl", Anhydrous().HydrateFormula("NaCl"))
}

func TestHydrationState_SameWater(t *testing.T) {
	t.Parallel()

	a := HydrationState{Count: 5, Rule: RuleNamedMultiplier}
	b := HydrationState{Count: 5, Rule: RuleNumericSeparator}
	x := HydrationState{Symbolic: true, Symbol: "x"}
	n := HydrationState{Symbolic: true, Symbol: "n"}

	assert.True(t, a.SameWater(b))
	assert.True(t, x.SameWater(n))
	assert.False(t, a.SameWater(x))
	assert.False(t, Anhydrous().SameWater(a))
	assert.True(t, Anhydrous().SameWater(HydrationState{}))
}
