package reference

import (
	"sort"
	"strings"

	"github.com/turtacn/ChemMap/internal/domain/compound"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// Override pins a compound name to an identifier by hand.
type Override struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
	Note string `json:"note,omitempty" yaml:"note,omitempty"`
}

// OverrideTable is the curated name → identifier table, keyed by the
// normalized name. A nil table is empty.
type OverrideTable struct {
	byKey   map[string]Override
	entries []Override
}

// NewOverrideTable validates entries and indexes them by normalized name.
// Two entries whose names normalize to the same key must agree on the ID.
func NewOverrideTable(entries []Override) (*OverrideTable, error) {
	t := &OverrideTable{byKey: make(map[string]Override, len(entries))}
	for i, o := range entries {
		o.Name = strings.TrimSpace(o.Name)
		o.ID = strings.TrimSpace(o.ID)
		if o.Name == "" || o.ID == "" {
			return nil, errors.New(errors.ErrCodeOverrideInvalid, "override needs a name and an id").
				WithDetailf("entry=%d", i)
		}
		key := compound.Normalize(o.Name)
		if key == "" {
			return nil, errors.New(errors.ErrCodeOverrideInvalid, "override name normalizes to nothing").
				WithDetailf("name=%q", o.Name)
		}
		if prev, ok := t.byKey[key]; ok {
			if prev.ID != o.ID {
				return nil, errors.New(errors.ErrCodeOverrideInvalid, "conflicting overrides").
					WithDetailf("key=%q ids=%s,%s", key, prev.ID, o.ID)
			}
			continue
		}
		t.byKey[key] = o
		t.entries = append(t.entries, o)
	}
	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].Name < t.entries[j].Name })
	return t, nil
}

// Lookup returns the identifier pinned to a normalized key.
func (t *OverrideTable) Lookup(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	o, ok := t.byKey[key]
	return o.ID, ok
}

// Len returns the number of distinct keys.
func (t *OverrideTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns the entries sorted by name.
func (t *OverrideTable) Entries() []Override {
	if t == nil {
		return nil
	}
	out := make([]Override, len(t.entries))
	copy(out, t.entries)
	return out
}
