package mapping

import (
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/turtacn/ChemMap/internal/domain/compound"
)

// Notes attached to records.
const (
	NoteSolvent  = "solvent"
	NoteBlank    = "blank input"
	NoteOverride = "curated override"
)

// MappingRecord is the outcome for one raw name. It is regenerated on every
// run, never edited, and carries no run-specific data, so the same input
// against the same index always encodes to the same bytes.
type MappingRecord struct {
	Original     string                  `json:"original"`
	BaseCompound string                  `json:"base_compound"`
	Hydration    compound.HydrationState `json:"hydration"`
	MatchedID    string                  `json:"matched_id"`
	MatchedLabel string                  `json:"matched_label"`
	Method       Method                  `json:"method"`
	Score        int                     `json:"score"`
	Tier         Tier                    `json:"tier"`
	Notes        []string                `json:"notes,omitempty"`
}

// IsMapped reports whether an identifier was assigned.
func (r MappingRecord) IsMapped() bool { return r.MatchedID != "" }

// HydrateFormula renders the base with its water, e.g. "MgCl2.6H2O".
func (r MappingRecord) HydrateFormula() string {
	return r.Hydration.HydrateFormula(r.BaseCompound)
}

// RecordColumns are the columns appended to a tabular extract.
var RecordColumns = []string{
	"base_compound", "hydration", "hydrate_formula",
	"matched_id", "matched_label", "method", "score", "tier",
}

// Columns returns the record's values in RecordColumns order.
func (r MappingRecord) Columns() []string {
	return []string{
		r.BaseCompound,
		r.Hydration.String(),
		r.HydrateFormula(),
		r.MatchedID,
		r.MatchedLabel,
		r.Method.String(),
		strconv.Itoa(r.Score),
		r.Tier.String(),
	}
}

// MappingEnvelope wraps a record for transport. Provenance lives here and
// never inside the record.
type MappingEnvelope struct {
	RunID        uuid.UUID     `json:"run_id"`
	IndexVersion string        `json:"index_version"`
	RowKey       string        `json:"row_key"`
	Record       MappingRecord `json:"record"`
}

// NewEnvelope wraps rec.
func NewEnvelope(runID uuid.UUID, indexVersion, rowKey string, rec MappingRecord) MappingEnvelope {
	return MappingEnvelope{RunID: runID, IndexVersion: indexVersion, RowKey: rowKey, Record: rec}
}

// MethodCount and TierCount keep summaries ordered when encoded.
type MethodCount struct {
	Method Method `json:"method"`
	Count  int    `json:"count"`
}

type TierCount struct {
	Tier  Tier `json:"tier"`
	Count int  `json:"count"`
}

// Summary counts records per method and tier.
type Summary struct {
	Total    int           `json:"total"`
	Mapped   int           `json:"mapped"`
	ByMethod []MethodCount `json:"by_method"`
	ByTier   []TierCount   `json:"by_tier"`
}

// Summarize counts records. Every method and tier appears, in pipeline and
// descending-tier order, zero counts included.
func Summarize(records []MappingRecord) Summary {
	methods := make(map[Method]int)
	tiers := make(map[Tier]int)
	s := Summary{Total: len(records)}
	for _, r := range records {
		methods[r.Method]++
		tiers[r.Tier]++
		if r.IsMapped() {
			s.Mapped++
		}
	}
	for _, m := range AllMethods() {
		s.ByMethod = append(s.ByMethod, MethodCount{Method: m, Count: methods[m]})
	}
	for _, t := range AllTiers() {
		s.ByTier = append(s.ByTier, TierCount{Tier: t, Count: tiers[t]})
	}
	return s
}

// UnmappedName is one line of the review report.
type UnmappedName struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// UnmappedReport lists distinct unmapped names, most frequent first, so a
// curator can work down the list. Solvent and blank rows are left out.
func UnmappedReport(records []MappingRecord) []UnmappedName {
	counts := make(map[string]int)
	for _, r := range records {
		if r.IsMapped() || r.skipped() {
			continue
		}
		counts[r.Original]++
	}
	out := make([]UnmappedName, 0, len(counts))
	for n, c := range counts {
		out = append(out, UnmappedName{Name: n, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r MappingRecord) skipped() bool {
	for _, n := range r.Notes {
		if n == NoteSolvent || n == NoteBlank {
			return true
		}
	}
	return false
}
