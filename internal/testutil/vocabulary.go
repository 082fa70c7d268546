package testutil

import (
	"context"
	"sync"

	"github.com/turtacn/ChemMap/internal/domain/reference"
)

// Vocabulary is a small ChEBI-style snapshot covering exact formulas, a
// near-miss decoy, a generic salt with its hexahydrate and a synonym.
func Vocabulary() []reference.Entity {
	return []reference.Entity{
		{ID: "CHEBI:26710", Label: "sodium chloride", Formula: "NaCl", Synonyms: []string{"table salt"}, Category: "salt"},
		{ID: "TEST:0001", Label: "NaCI"},
		{ID: "CHEBI:63036", Label: "potassium dihydrogen phosphate", Formula: "KH2PO4", Category: "salt"},
		{ID: "CHEBI:6636", Label: "magnesium chloride", Formula: "MgCl2", Category: "salt"},
		{ID: "CHEBI:86345", Label: "magnesium chloride hexahydrate", Formula: "MgCl2.6H2O", Category: "salt"},
		{ID: "CHEBI:17234", Label: "glucose", Synonyms: []string{"D-glucose", "dextrose"}, Category: "sugar"},
	}
}

// Overrides is a curated table pointing at one snapshot ID and one ID
// outside it.
func Overrides() []reference.Override {
	return []reference.Override{
		{Name: "MgCl2", ID: "CHEBI:6636", Note: "magnesium dichloride"},
		{Name: "HEPES", ID: "CHEBI:46756"},
	}
}

// StaticSource serves fixed entities and overrides. Err, when set, is
// returned by both loaders.
type StaticSource struct {
	mu        sync.Mutex
	Entities  []reference.Entity
	Entries   []reference.Override
	Err       error
	LoadCount int
}

// NewStaticSource returns a source over the standard fixtures.
func NewStaticSource() *StaticSource {
	return &StaticSource{Entities: Vocabulary(), Entries: Overrides()}
}

// LoadEntities implements reference.Source.
func (s *StaticSource) LoadEntities(ctx context.Context) ([]reference.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LoadCount++
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]reference.Entity(nil), s.Entities...), nil
}

// LoadOverrides implements reference.OverrideSource.
func (s *StaticSource) LoadOverrides(ctx context.Context) ([]reference.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]reference.Override(nil), s.Entries...), nil
}

// MustIndex builds an index over the fixtures or panics.
func MustIndex() *reference.Index {
	tbl, err := reference.NewOverrideTable(Overrides())
	if err != nil {
		panic(err)
	}
	idx, err := reference.NewIndex(Vocabulary(), tbl)
	if err != nil {
		panic(err)
	}
	return idx
}
