// Package reference holds the reference vocabulary: the entities of a
// ChEBI-style snapshot, the curated override table and the immutable
// ReferenceIndex the match engine queries.
package reference

import (
	"context"
	"strings"

	"github.com/turtacn/ChemMap/internal/domain/compound"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// Field identifies which column of an entity a term came from.
type Field string

const (
	FieldFormula Field = "formula"
	FieldLabel   Field = "label"
	FieldSynonym Field = "synonym"
)

// priority orders fields for deterministic tie-breaking; lower wins.
func (f Field) priority() int {
	switch f {
	case FieldFormula:
		return 0
	case FieldLabel:
		return 1
	default:
		return 2
	}
}

// String returns the field name.
func (f Field) String() string { return string(f) }

// Entity is one row of the vocabulary snapshot. It is read-only once handed
// to NewIndex.
type Entity struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Synonyms []string `json:"synonyms,omitempty"`
	Formula  string   `json:"formula,omitempty"`
	Category string   `json:"category,omitempty"`
}

// Validate checks the fields an index needs.
func (e Entity) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New(errors.ErrCodeVocabularyMalformed, "entity id is empty").
			WithDetailf("label=%q", e.Label)
	}
	if strings.TrimSpace(e.Label) == "" {
		return errors.New(errors.ErrCodeVocabularyMalformed, "entity label is empty").
			WithDetailf("id=%s", e.ID)
	}
	return nil
}

// Equal reports whether two rows carry the same content. Synonym order is
// significant; snapshots are expected to be stable.
func (e Entity) Equal(o Entity) bool {
	if e.ID != o.ID || e.Label != o.Label || e.Formula != o.Formula || e.Category != o.Category {
		return false
	}
	if len(e.Synonyms) != len(o.Synonyms) {
		return false
	}
	for i := range e.Synonyms {
		if e.Synonyms[i] != o.Synonyms[i] {
			return false
		}
	}
	return true
}

// DeclaredHydration is the water count the entity itself states, read from
// the label first and the formula second.
func (e Entity) DeclaredHydration() compound.HydrationState {
	if _, h := compound.ParseHydration(e.Label); h.IsHydrate() {
		return h
	}
	if e.Formula != "" {
		if _, h := compound.ParseHydration(e.Formula); h.IsHydrate() {
			return h
		}
	}
	return compound.Anhydrous()
}

// terms yields every (field, text) pair in a fixed order.
func (e Entity) terms() []termRef {
	out := make([]termRef, 0, len(e.Synonyms)+2)
	if strings.TrimSpace(e.Formula) != "" {
		out = append(out, termRef{field: FieldFormula, text: e.Formula})
	}
	out = append(out, termRef{field: FieldLabel, text: e.Label})
	for _, s := range e.Synonyms {
		if strings.TrimSpace(s) != "" {
			out = append(out, termRef{field: FieldSynonym, text: s})
		}
	}
	return out
}

type termRef struct {
	field Field
	text  string
}

// Source loads a vocabulary snapshot from a file, an object store or a
// database table.
type Source interface {
	LoadEntities(ctx context.Context) ([]Entity, error)
}

// OverrideSource loads the curated override table.
type OverrideSource interface {
	LoadOverrides(ctx context.Context) ([]Override, error)
}
