package mapping

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemMap/internal/domain/compound"
)

func sampleRecord() MappingRecord {
	return MappingRecord{
		Original:     "MgCl2 6-hydrate",
		BaseCompound: "MgCl2",
		Hydration:    compound.HydrationState{Count: 6, Rule: compound.RuleNumericSeparator},
		MatchedID:    "CHEBI:6636",
		MatchedLabel: "magnesium chloride",
		Method:       MethodExactHydrateStripped,
		Score:        100,
		Tier:         TierHigh,
	}
}

func TestMappingRecord_JSONShape(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(sampleRecord())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"original": "MgCl2 6-hydrate",
		"base_compound": "MgCl2",
		"hydration": {"count": 6, "symbolic": false, "rule": "numeric_separator"},
		"matched_id": "CHEBI:6636",
		"matched_label": "magnesium chloride",
		"method": "exact_hydrate_stripped",
		"score": 100,
		"tier": "high"
	}`, string(b))
}

func TestMappingRecord_Columns(t *testing.T) {
	t.Parallel()

	cols := sampleRecord().Columns()
	require.Len(t, cols, len(RecordColumns))
	assert.Equal(t, []string{
		"MgCl2", "6", "MgCl2.6H2O", "CHEBI:6636", "magnesium chloride",
		"exact_hydrate_stripped", "100", "high",
	}, cols)
}

func TestMappingEnvelope(t *testing.T) {
	t.Parallel()

	run := uuid.New()
	env := NewEnvelope(run, "v1", "row-7", sampleRecord())
	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"run_id":"`+run.String()+`"`)
	assert.Contains(t, string(b), `"row_key":"row-7"`)

	rec, err := json.Marshal(env.Record)
	require.NoError(t, err)
	assert.NotContains(t, string(rec), run.String())
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	records := []MappingRecord{
		sampleRecord(),
		{Original: "NaCl", MatchedID: "CHEBI:26710", Method: MethodExactFormula, Score: 100, Tier: TierVeryHigh},
		{Original: "xyz", Method: MethodUnmapped, Tier: TierNone},
	}
	s := Summarize(records)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Mapped)
	require.Len(t, s.ByMethod, len(AllMethods()))
	assert.Equal(t, MethodCount{Method: MethodExactFormula, Count: 1}, s.ByMethod[0])
	assert.Equal(t, MethodCount{Method: MethodUnmapped, Count: 1}, s.ByMethod[5])
	require.Len(t, s.ByTier, 5)
	assert.Equal(t, TierCount{Tier: TierVeryHigh, Count: 1}, s.ByTier[0])
	assert.Equal(t, TierCount{Tier: TierNone, Count: 1}, s.ByTier[4])
}

func TestUnmappedReport(t *testing.T) {
	t.Parallel()

	records := []MappingRecord{
		{Original: "foo", Method: MethodUnmapped},
		{Original: "bar", Method: MethodUnmapped},
		{Original: "foo", Method: MethodUnmapped},
		{Original: "water", Method: MethodUnmapped, Notes: []string{NoteSolvent}},
		{Original: "", Method: MethodUnmapped, Notes: []string{NoteBlank}},
		sampleRecord(),
	}
	assert.Equal(t, []UnmappedName{{Name: "foo", Count: 2}, {Name: "bar", Count: 1}}, UnmappedReport(records))
}
