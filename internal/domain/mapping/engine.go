package mapping

import (
	"fmt"
	"strings"

	"github.com/turtacn/ChemMap/internal/domain/compound"
	"github.com/turtacn/ChemMap/internal/domain/reference"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// DefaultMinScore is the fuzzy acceptance threshold.
const DefaultMinScore = reference.DefaultMinScore

// solvents are recipe lines that name the medium itself rather than a
// compound to map.
var solvents = map[string]bool{
	"water":               true,
	"distilled water":     true,
	"deionized water":     true,
	"de-ionized water":    true,
	"demineralized water": true,
	"h2o":                 true,
	"dh2o":                true,
	"ddh2o":               true,
	"tap water":           true,
}

// Engine runs the match pipeline against one immutable index. Match is safe
// for concurrent use.
type Engine struct {
	index        *reference.Index
	minScore     int
	skipSolvents bool
	logger       logging.Logger
}

// EngineOption configures NewEngine.
type EngineOption func(*Engine)

// WithMinScore sets the fuzzy acceptance threshold (0–100).
func WithMinScore(n int) EngineOption {
	return func(e *Engine) { e.minScore = n }
}

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSolventSkip toggles the solvent skip list (on by default).
func WithSolventSkip(on bool) EngineOption {
	return func(e *Engine) { e.skipSolvents = on }
}

// NewEngine binds an engine to a built index.
func NewEngine(index *reference.Index, opts ...EngineOption) (*Engine, error) {
	if index == nil {
		return nil, errors.New(errors.ErrCodeIndexNotLoaded, "reference index not loaded")
	}
	e := &Engine{
		index:        index,
		minScore:     DefaultMinScore,
		skipSolvents: true,
		logger:       logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.minScore < 0 || e.minScore > 100 {
		return nil, errors.Newf(errors.ErrCodeThresholdInvalid, "min score %d outside 0..100", e.minScore)
	}
	e.logger = e.logger.Named("engine").With(logging.String("index_version", index.Version()))
	return e, nil
}

// Index returns the bound index.
func (e *Engine) Index() *reference.Index { return e.index }

// MinScore returns the fuzzy threshold.
func (e *Engine) MinScore() int { return e.minScore }

// Fingerprint identifies everything that decides a record: the index
// version and the engine settings. Two engines with equal fingerprints
// return equal records for every input.
func (e *Engine) Fingerprint() string {
	return fmt.Sprintf("%s|min=%d|solvents=%t", e.index.Version(), e.minScore, e.skipSolvents)
}

type hit struct {
	id     string
	method Method
	score  int
	notes  []string
}

// Match resolves one raw name. Steps run in a fixed order and the first
// success wins: exact raw, curated override, exact base with hydration
// preference, fuzzy raw, fuzzy base. Nothing found yields an unmapped record;
// Match never fails.
func (e *Engine) Match(raw string) MappingRecord {
	base, h := compound.ParseHydration(raw)
	rec := MappingRecord{
		Original:     raw,
		BaseCompound: base,
		Hydration:    h,
		Method:       MethodUnmapped,
		Tier:         TierNone,
	}

	rawKey := compound.Normalize(raw)
	if rawKey == "" {
		rec.Notes = []string{NoteBlank}
		return rec
	}
	if e.skipSolvents && solvents[rawKey] {
		rec.Notes = []string{NoteSolvent}
		return rec
	}
	baseKey := compound.Normalize(base)

	for _, step := range []func() (hit, bool){
		func() (hit, bool) { return e.exactRaw(rawKey, h) },
		func() (hit, bool) { return e.override(rawKey, baseKey, h) },
		func() (hit, bool) { return e.exactBase(raw, base, baseKey, h) },
		func() (hit, bool) { return e.fuzzy(rawKey, MethodFuzzyRaw) },
		func() (hit, bool) {
			if baseKey == rawKey {
				return hit{}, false
			}
			return e.fuzzy(baseKey, MethodFuzzyHydrateStripped)
		},
	} {
		if got, ok := step(); ok {
			return e.accept(rec, got)
		}
	}
	return rec
}

func (e *Engine) accept(rec MappingRecord, got hit) MappingRecord {
	rec.MatchedID = got.id
	if ent, ok := e.index.Entity(got.id); ok {
		rec.MatchedLabel = ent.Label
	}
	rec.Method = got.method
	rec.Score = got.score
	rec.Tier = Classify(got.method, got.score)
	rec.Notes = got.notes
	return rec
}

// exactRaw prefers, among entities sharing the key, the one whose term states
// the same water as the input.
func (e *Engine) exactRaw(key string, h compound.HydrationState) (hit, bool) {
	postings := e.index.LookupExact(key)
	if len(postings) == 0 {
		return hit{}, false
	}
	chosen := postings[0]
	for _, p := range postings {
		if p.Hydration.SameWater(h) {
			chosen = p
			break
		}
	}
	m := MethodExactSynonym
	if chosen.Field == reference.FieldFormula {
		m = MethodExactFormula
	}
	return hit{id: chosen.EntityID, method: m, score: 100}, true
}

// override consults the curated table with the raw key, then with the
// hydration-stripped key for hydrated inputs.
func (e *Engine) override(rawKey, baseKey string, h compound.HydrationState) (hit, bool) {
	if id, ok := e.index.Override(rawKey); ok {
		return hit{id: id, method: MethodExactSynonym, score: 100, notes: []string{NoteOverride}}, true
	}
	if h.IsHydrate() && baseKey != "" && baseKey != rawKey {
		if id, ok := e.index.Override(baseKey); ok {
			return hit{id: id, method: MethodExactSynonym, score: 100, notes: []string{NoteOverride}}, true
		}
	}
	return hit{}, false
}

type baseCandidate struct {
	posting   reference.Posting
	hydration compound.HydrationState
}

// exactBase matches the hydration-stripped base. A hydrate-specific entity
// stating the same water wins; the generic (anhydrous) entity is used only
// when no such entity exists; entities stating other water counts never
// match here.
func (e *Engine) exactBase(raw, base, baseKey string, h compound.HydrationState) (hit, bool) {
	if !h.IsHydrate() || baseKey == "" {
		return hit{}, false
	}

	var cands []baseCandidate
	for _, p := range e.index.LookupBase(baseKey) {
		cands = append(cands, baseCandidate{posting: p, hydration: p.Hydration})
	}
	for _, p := range e.index.LookupExact(baseKey) {
		cands = append(cands, baseCandidate{posting: p, hydration: e.index.DeclaredHydration(p.EntityID)})
	}
	if len(cands) == 0 {
		return hit{}, false
	}

	var same, generic *baseCandidate
	var others []string
	for i := range cands {
		c := &cands[i]
		switch {
		case !c.hydration.IsHydrate():
			if generic == nil {
				generic = c
			}
		case c.hydration.SameWater(h):
			if same == nil {
				same = c
			}
		default:
			others = appendUnique(others, c.posting.EntityID)
		}
	}

	stated := h.HydrateFormula(base)
	switch {
	case same != nil:
		var notes []string
		if generic != nil && generic.posting.EntityID != same.posting.EntityID {
			notes = append(notes, fmt.Sprintf("hydrate-specific entity preferred over generic %s", generic.posting.EntityID))
			e.logger.Debug("hydrate-specific entity preferred",
				logging.String("original", raw),
				logging.String("chosen", same.posting.EntityID),
				logging.String("generic", generic.posting.EntityID))
		}
		return hit{id: same.posting.EntityID, method: MethodExactHydrateStripped, score: 100, notes: notes}, true

	case generic != nil:
		notes := []string{fmt.Sprintf("no entity for %s; mapped to generic form", stated)}
		if len(others) > 0 {
			notes = append(notes, "other hydrates in vocabulary: "+strings.Join(others, ","))
		}
		e.logger.Debug("hydrate mapped to generic entity",
			logging.String("original", raw),
			logging.String("generic", generic.posting.EntityID),
			logging.Strings("other_hydrates", others))
		return hit{id: generic.posting.EntityID, method: MethodExactHydrateStripped, score: 100, notes: notes}, true
	}

	e.logger.Debug("hydrate conflict left unresolved",
		logging.String("original", raw),
		logging.String("stated", stated),
		logging.Strings("other_hydrates", others))
	return hit{}, false
}

func (e *Engine) fuzzy(key string, m Method) (hit, bool) {
	cands := e.index.LookupFuzzy(key, e.minScore)
	if len(cands) == 0 {
		return hit{}, false
	}
	best := cands[0]
	return hit{
		id:     best.EntityID,
		method: m,
		score:  best.Score,
		notes:  []string{fmt.Sprintf("fuzzy term %q", best.Term)},
	}, true
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
