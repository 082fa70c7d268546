package reference

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/turtacn/ChemMap/internal/domain/compound"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// Posting is one vocabulary term filed under a normalized key.
type Posting struct {
	EntityID string `json:"entity_id"`
	Field    Field  `json:"field"`
	Term     string `json:"term"`
	// Hydration is what the term itself states ("MgCl2.6H2O" → 6).
	Hydration compound.HydrationState `json:"hydration"`
}

// Candidate is a fuzzy hit.
type Candidate struct {
	Posting
	Key      string `json:"key"`
	Score    int    `json:"score"`
	Distance int    `json:"distance"`
	// Substring is true when the query occurs literally in the term.
	Substring bool `json:"substring"`
}

// Stats summarizes a built index.
type Stats struct {
	Version             string `json:"version"`
	Entities            int    `json:"entities"`
	Terms               int    `json:"terms"`
	ExactKeys           int    `json:"exact_keys"`
	FuzzyTerms          int    `json:"fuzzy_terms"`
	HydrateEntities     int    `json:"hydrate_entities"`
	Overrides           int    `json:"overrides"`
	UnresolvedOverrides int    `json:"unresolved_overrides"`
}

type fuzzyTerm struct {
	key     string
	runes   int
	posting Posting
}

// Index is the immutable lookup structure over a vocabulary snapshot. Every
// method is safe for concurrent use.
type Index struct {
	entities  map[string]Entity
	declared  map[string]compound.HydrationState
	exact     map[string][]Posting
	base      map[string][]Posting
	fuzzy     []fuzzyTerm
	overrides *OverrideTable
	stats     Stats
}

// Option configures NewIndex.
type Option func(*indexOptions)

type indexOptions struct {
	logger logging.Logger
}

// WithIndexLogger sets the logger used while building.
func WithIndexLogger(l logging.Logger) Option {
	return func(o *indexOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewIndex validates the snapshot and builds the index. An empty snapshot,
// a row without ID or label, or two rows sharing an ID with different content
// fail the build; no partial index is returned. Identical duplicate rows are
// collapsed.
func NewIndex(entities []Entity, overrides *OverrideTable, opts ...Option) (*Index, error) {
	o := indexOptions{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	if len(entities) == 0 {
		return nil, errors.New(errors.ErrCodeVocabularyEmpty, "vocabulary snapshot is empty")
	}

	idx := &Index{
		entities:  make(map[string]Entity, len(entities)),
		declared:  make(map[string]compound.HydrationState),
		exact:     make(map[string][]Posting),
		base:      make(map[string][]Posting),
		overrides: overrides,
	}

	for i, e := range entities {
		e.ID = strings.TrimSpace(e.ID)
		e.Synonyms = append([]string(nil), e.Synonyms...)
		if err := e.Validate(); err != nil {
			return nil, errors.Wrapf(err, errors.CodeUnknown, "snapshot row %d", i+1)
		}
		if prev, ok := idx.entities[e.ID]; ok {
			if !prev.Equal(e) {
				return nil, errors.New(errors.ErrCodeVocabularyDuplicate, "duplicate entity id with different content").
					WithDetailf("id=%s row=%d", e.ID, i+1)
			}
			continue
		}
		idx.entities[e.ID] = e
	}

	ids := idx.sortedIDs()
	for _, id := range ids {
		idx.addEntity(idx.entities[id])
	}
	idx.finish()

	idx.stats.Entities = len(idx.entities)
	idx.stats.ExactKeys = len(idx.exact)
	idx.stats.FuzzyTerms = len(idx.fuzzy)
	idx.stats.HydrateEntities = len(idx.declared)
	idx.stats.Overrides = overrides.Len()
	for _, ov := range overrides.Entries() {
		if _, ok := idx.entities[ov.ID]; !ok {
			idx.stats.UnresolvedOverrides++
			o.logger.Warn("override targets an id outside the snapshot",
				logging.String("name", ov.Name), logging.String("id", ov.ID))
		}
	}
	idx.stats.Version = computeVersion(idx, ids)

	o.logger.Info("reference index built",
		logging.Int("entities", idx.stats.Entities),
		logging.Int("terms", idx.stats.Terms),
		logging.Int("hydrate_entities", idx.stats.HydrateEntities),
		logging.Int("overrides", idx.stats.Overrides),
		logging.String("version", idx.stats.Version))
	return idx, nil
}

func (idx *Index) sortedIDs() []string {
	ids := make([]string, 0, len(idx.entities))
	for id := range idx.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (idx *Index) addEntity(e Entity) {
	if h := e.DeclaredHydration(); h.IsHydrate() {
		idx.declared[e.ID] = h
	}

	seenFuzzy := make(map[string]bool)
	for _, t := range e.terms() {
		key := compound.Normalize(t.text)
		if key == "" {
			continue
		}
		idx.stats.Terms++

		termBase, h := compound.ParseHydration(t.text)
		p := Posting{EntityID: e.ID, Field: t.field, Term: t.text, Hydration: h}
		idx.exact[key] = append(idx.exact[key], p)

		if h.IsHydrate() {
			if bk := compound.Normalize(termBase); bk != "" {
				idx.base[bk] = append(idx.base[bk], p)
			}
		}

		// formulas stay out of fuzzy matching: one edit flips the compound
		if t.field != FieldFormula && !seenFuzzy[key] {
			seenFuzzy[key] = true
			idx.fuzzy = append(idx.fuzzy, fuzzyTerm{key: key, runes: utf8.RuneCountInString(key), posting: p})
		}
	}
}

func (idx *Index) finish() {
	for k, ps := range idx.exact {
		idx.exact[k] = sortPostings(ps)
	}
	for k, ps := range idx.base {
		idx.base[k] = sortPostings(ps)
	}
	sort.Slice(idx.fuzzy, func(i, j int) bool {
		a, b := idx.fuzzy[i], idx.fuzzy[j]
		if a.key != b.key {
			return a.key < b.key
		}
		return lessPosting(a.posting, b.posting)
	})
}

func lessPosting(a, b Posting) bool {
	if pa, pb := a.Field.priority(), b.Field.priority(); pa != pb {
		return pa < pb
	}
	if a.EntityID != b.EntityID {
		return a.EntityID < b.EntityID
	}
	return a.Term < b.Term
}

func sortPostings(ps []Posting) []Posting {
	sort.Slice(ps, func(i, j int) bool { return lessPosting(ps[i], ps[j]) })
	out := ps[:0]
	for i, p := range ps {
		if i > 0 && p.EntityID == ps[i-1].EntityID && p.Field == ps[i-1].Field && p.Term == ps[i-1].Term {
			continue
		}
		out = append(out, p)
	}
	return out
}

// computeVersion hashes the canonical snapshot, the override table and the
// rule version, so any change to what the engine would answer changes it.
func computeVersion(idx *Index, ids []string) string {
	h := sha256.New()
	h.Write([]byte("rules\t" + compound.RulesVersion + "\n"))
	for _, id := range ids {
		e := idx.entities[id]
		h.Write([]byte(strings.Join([]string{
			e.ID, e.Label, strings.Join(e.Synonyms, "|"), e.Formula, e.Category,
		}, "\t")))
		h.Write([]byte{'\n'})
	}
	for _, ov := range idx.overrides.Entries() {
		h.Write([]byte("override\t" + ov.Name + "\t" + ov.ID + "\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// LookupExact returns the postings filed under a normalized key, formula
// first, then label, then synonym, each group by entity ID.
func (idx *Index) LookupExact(key string) []Posting {
	return clonePostings(idx.exact[key])
}

// LookupBase returns hydrate-specific postings whose hydration-stripped term
// normalizes to key, e.g. "MgCl2.6H2O" under "mg chloride2".
func (idx *Index) LookupBase(key string) []Posting {
	return clonePostings(idx.base[key])
}

func clonePostings(ps []Posting) []Posting {
	if len(ps) == 0 {
		return nil
	}
	out := make([]Posting, len(ps))
	copy(out, ps)
	return out
}

// LookupFuzzy ranks labels and synonyms against a normalized key. Only the
// best candidate per entity is kept. Ranking: score desc, edit distance asc,
// literal substring first, label before synonym, then term and entity ID.
// An identical term short-circuits the scan.
func (idx *Index) LookupFuzzy(key string, minScore int) []Candidate {
	qlen := utf8.RuneCountInString(key)
	if qlen == 0 {
		return nil
	}

	if hits := idx.perfect(key); len(hits) > 0 {
		return hits
	}

	best := make(map[string]Candidate)
	for _, t := range idx.fuzzy {
		if bestPossible(qlen, t.runes) < minScore {
			continue
		}
		score, dist := Similarity(key, t.key)
		if score < minScore {
			continue
		}
		c := Candidate{
			Posting:   t.posting,
			Key:       t.key,
			Score:     score,
			Distance:  dist,
			Substring: strings.Contains(t.key, key),
		}
		if prev, ok := best[c.EntityID]; !ok || lessCandidate(c, prev) {
			best[c.EntityID] = c
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return lessCandidate(out[i], out[j]) })
	return out
}

func (idx *Index) perfect(key string) []Candidate {
	i := sort.Search(len(idx.fuzzy), func(i int) bool { return idx.fuzzy[i].key >= key })
	var out []Candidate
	seen := make(map[string]bool)
	for ; i < len(idx.fuzzy) && idx.fuzzy[i].key == key; i++ {
		t := idx.fuzzy[i]
		if seen[t.posting.EntityID] {
			continue
		}
		seen[t.posting.EntityID] = true
		out = append(out, Candidate{Posting: t.posting, Key: t.key, Score: 100, Substring: true})
	}
	sort.Slice(out, func(i, j int) bool { return lessCandidate(out[i], out[j]) })
	return out
}

func lessCandidate(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.Substring != b.Substring {
		return a.Substring
	}
	if pa, pb := a.Field.priority(), b.Field.priority(); pa != pb {
		return pa < pb
	}
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.EntityID < b.EntityID
}

// Entity returns the entity with the given ID.
func (idx *Index) Entity(id string) (Entity, bool) {
	e, ok := idx.entities[id]
	if ok {
		e.Synonyms = append([]string(nil), e.Synonyms...)
	}
	return e, ok
}

// DeclaredHydration returns what the entity states about its water content.
func (idx *Index) DeclaredHydration(id string) compound.HydrationState {
	if h, ok := idx.declared[id]; ok {
		return h
	}
	return compound.Anhydrous()
}

// Override consults the curated table with a normalized key.
func (idx *Index) Override(key string) (string, bool) {
	return idx.overrides.Lookup(key)
}

// Len returns the number of distinct entities.
func (idx *Index) Len() int { return len(idx.entities) }

// Version identifies the snapshot, overrides and rule tables the index was
// built from.
func (idx *Index) Version() string { return idx.stats.Version }

// Stats returns build statistics.
func (idx *Index) Stats() Stats { return idx.stats }
