package client

import (
	"context"

	"github.com/turtacn/ChemMap/pkg/errors"
)

// Hydration is the water count reported for a name.
type Hydration struct {
	Count    int    `json:"count"`
	Symbolic bool   `json:"symbolic"`
	Symbol   string `json:"symbol,omitempty"`
	Rule     string `json:"rule"`
}

// MappingRecord is the outcome for one raw name.
type MappingRecord struct {
	Original     string    `json:"original"`
	BaseCompound string    `json:"base_compound"`
	Hydration    Hydration `json:"hydration"`
	MatchedID    string    `json:"matched_id"`
	MatchedLabel string    `json:"matched_label"`
	Method       string    `json:"method"`
	Score        int       `json:"score"`
	Tier         string    `json:"tier"`
	Notes        []string  `json:"notes,omitempty"`
}

// IsMapped reports whether an identifier was assigned.
func (r MappingRecord) IsMapped() bool { return r.MatchedID != "" }

// Row is one batch input. An empty Key is replaced by the 1-based position.
type Row struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// RowRecord pairs a row with its record.
type RowRecord struct {
	Row    Row           `json:"row"`
	Record MappingRecord `json:"record"`
}

// MethodCount is a per-method row count.
type MethodCount struct {
	Method string `json:"method"`
	Count  int    `json:"count"`
}

// TierCount is a per-tier row count.
type TierCount struct {
	Tier  string `json:"tier"`
	Count int    `json:"count"`
}

// Summary aggregates a batch.
type Summary struct {
	Total    int           `json:"total"`
	Mapped   int           `json:"mapped"`
	ByMethod []MethodCount `json:"by_method"`
	ByTier   []TierCount   `json:"by_tier"`
}

// UnmappedName is a distinct unmapped name and its occurrence count.
type UnmappedName struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// BatchResult is the response of Batch. Warnings lists sink failures; the
// records are valid regardless.
type BatchResult struct {
	RunID        string         `json:"run_id"`
	IndexVersion string         `json:"index_version"`
	Records      []RowRecord    `json:"records"`
	Summary      Summary        `json:"summary"`
	Unmapped     []UnmappedName `json:"unmapped"`
	Cancelled    bool           `json:"cancelled"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// MappingsClient calls /api/v1/mappings.
type MappingsClient struct {
	client *Client
}

// Match maps one raw name. An empty name is valid and comes back unmapped.
func (m *MappingsClient) Match(ctx context.Context, name string) (*MappingRecord, error) {
	var rec MappingRecord
	if err := m.client.post(ctx, "/api/v1/mappings/match", map[string]string{"name": name}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Batch maps rows in one request.
func (m *MappingsClient) Batch(ctx context.Context, rows []Row) (*BatchResult, error) {
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeBatchInputInvalid, "batch has no rows")
	}
	var res BatchResult
	if err := m.client.post(ctx, "/api/v1/mappings/batch", map[string][]Row{"rows": rows}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// BatchNames maps names keyed by position.
func (m *MappingsClient) BatchNames(ctx context.Context, names ...string) (*BatchResult, error) {
	rows := make([]Row, len(names))
	for i, n := range names {
		rows[i] = Row{Name: n}
	}
	return m.Batch(ctx, rows)
}
