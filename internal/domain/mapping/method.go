// Package mapping resolves raw compound names against the reference index and
// produces one MappingRecord per input.
package mapping

import (
	"github.com/turtacn/ChemMap/pkg/errors"
)

// Method records which step of the match pipeline produced a record.
type Method string

const (
	MethodExactFormula         Method = "exact_formula"
	MethodExactSynonym         Method = "exact_synonym"
	MethodExactHydrateStripped Method = "exact_hydrate_stripped"
	MethodFuzzyRaw             Method = "fuzzy_raw"
	MethodFuzzyHydrateStripped Method = "fuzzy_hydrate_stripped"
	MethodUnmapped             Method = "unmapped"
)

// AllMethods lists the methods in pipeline order.
func AllMethods() []Method {
	return []Method{
		MethodExactFormula,
		MethodExactSynonym,
		MethodExactHydrateStripped,
		MethodFuzzyRaw,
		MethodFuzzyHydrateStripped,
		MethodUnmapped,
	}
}

// IsValid reports whether m is a known method.
func (m Method) IsValid() bool {
	switch m {
	case MethodExactFormula, MethodExactSynonym, MethodExactHydrateStripped,
		MethodFuzzyRaw, MethodFuzzyHydrateStripped, MethodUnmapped:
		return true
	}
	return false
}

// IsExact is true for the three exact steps.
func (m Method) IsExact() bool {
	return m == MethodExactFormula || m == MethodExactSynonym || m == MethodExactHydrateStripped
}

// IsFuzzy is true for the two fuzzy steps.
func (m Method) IsFuzzy() bool {
	return m == MethodFuzzyRaw || m == MethodFuzzyHydrateStripped
}

// String returns the method name.
func (m Method) String() string { return string(m) }

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.IsValid() {
		return "", errors.InvalidParam("unknown match method: " + s)
	}
	return m, nil
}
