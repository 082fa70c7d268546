package client

import (
	"context"
	"net/url"
	"strconv"
)

// VocabularyStats describes the loaded reference index.
type VocabularyStats struct {
	Version             string `json:"version"`
	Entities            int    `json:"entities"`
	Terms               int    `json:"terms"`
	ExactKeys           int    `json:"exact_keys"`
	FuzzyTerms          int    `json:"fuzzy_terms"`
	HydrateEntities     int    `json:"hydrate_entities"`
	Overrides           int    `json:"overrides"`
	UnresolvedOverrides int    `json:"unresolved_overrides"`
}

// Entity is a vocabulary entry. MappedNames is only filled when the server
// runs with the mapping graph.
type Entity struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Synonyms    []string `json:"synonyms,omitempty"`
	Formula     string   `json:"formula,omitempty"`
	Category    string   `json:"category,omitempty"`
	MappedNames []string `json:"mapped_names,omitempty"`
}

// VocabularyClient calls /api/v1/vocabulary.
type VocabularyClient struct {
	client *Client
}

func (v *VocabularyClient) Stats(ctx context.Context) (*VocabularyStats, error) {
	var st VocabularyStats
	if err := v.client.get(ctx, "/api/v1/vocabulary/stats", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Entity fetches one entity. namesLimit caps MappedNames; 0 keeps the
// server default.
func (v *VocabularyClient) Entity(ctx context.Context, id string, namesLimit int) (*Entity, error) {
	path := "/api/v1/vocabulary/entities/" + url.PathEscape(id)
	if namesLimit > 0 {
		path += "?names_limit=" + strconv.Itoa(namesLimit)
	}
	var e Entity
	if err := v.client.get(ctx, path, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
