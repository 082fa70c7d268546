package mapping

import (
	"github.com/turtacn/ChemMap/pkg/errors"
)

// Tier is the confidence bucket of a record. Tiers are totally ordered:
// none < low < medium < high < very_high.
type Tier int

const (
	TierNone Tier = iota
	TierLow
	TierMedium
	TierHigh
	TierVeryHigh
)

var tierNames = [...]string{"none", "low", "medium", "high", "very_high"}

// AllTiers lists tiers from highest to lowest.
func AllTiers() []Tier {
	return []Tier{TierVeryHigh, TierHigh, TierMedium, TierLow, TierNone}
}

// String returns the tier name.
func (t Tier) String() string {
	if t < TierNone || t > TierVeryHigh {
		return "unknown"
	}
	return tierNames[t]
}

// ParseTier parses a tier name.
func ParseTier(s string) (Tier, error) {
	for i, n := range tierNames {
		if n == s {
			return Tier(i), nil
		}
	}
	return TierNone, errors.InvalidParam("unknown confidence tier: " + s)
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	if t < TierNone || t > TierVeryHigh {
		return nil, errors.Newf(errors.ErrCodeSerialization, "invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Compare returns -1, 0 or 1.
func (t Tier) Compare(o Tier) int {
	switch {
	case t < o:
		return -1
	case t > o:
		return 1
	}
	return 0
}

// AtLeast reports whether t is o or better.
func (t Tier) AtLeast(o Tier) bool { return t >= o }

// Fuzzy tier boundaries on the 0–100 score.
const (
	fuzzyHighScore   = 95
	fuzzyMediumScore = 85
)

// Classify maps a method and score to a tier. Exact steps carry their own
// tier; fuzzy steps are bucketed by score against the acceptance floor.
func Classify(m Method, score int) Tier {
	switch m {
	case MethodExactFormula, MethodExactSynonym:
		return TierVeryHigh
	case MethodExactHydrateStripped:
		return TierHigh
	case MethodFuzzyRaw, MethodFuzzyHydrateStripped:
		switch {
		case score >= fuzzyHighScore:
			return TierHigh
		case score >= fuzzyMediumScore:
			return TierMedium
		case score >= DefaultMinScore:
			return TierLow
		}
	}
	return TierNone
}
