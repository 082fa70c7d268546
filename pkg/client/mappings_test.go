package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemMap/internal/application/mapping"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/ChemMap/internal/interfaces/http"
	"github.com/turtacn/ChemMap/internal/interfaces/http/handlers"
	"github.com/turtacn/ChemMap/internal/testutil"
	"github.com/turtacn/ChemMap/pkg/errors"
)

func TestMappings_Match_RequestShape(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/mappings/match", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CuSO4·5H2O", body["name"])
		w.Write([]byte(`{"original":"CuSO4·5H2O","base_compound":"CuSO4","hydration":{"count":5,"symbolic":false,"rule":"dot"},
			"matched_id":"CHEBI:31440","matched_label":"copper(II) sulfate pentahydrate","method":"exact_formula","score":100,"tier":"very_high"}`))
	}
	c := newTestClient(t, handler)

	rec, err := c.Mappings().Match(context.Background(), "CuSO4·5H2O")
	require.NoError(t, err)
	assert.True(t, rec.IsMapped())
	assert.Equal(t, 5, rec.Hydration.Count)
	assert.Equal(t, "dot", rec.Hydration.Rule)
	assert.Equal(t, "very_high", rec.Tier)
}

func TestMappings_Batch_EmptyRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.Mappings().Batch(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBatchInputInvalid))
}

func TestVocabulary_Entity_EscapesID(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/vocabulary/entities/A%2FB", r.URL.EscapedPath())
		assert.Equal(t, "5", r.URL.Query().Get("names_limit"))
		w.Write([]byte(`{"id":"A/B","label":"x"}`))
	}
	c := newTestClient(t, handler)

	e, err := c.Vocabulary().Entity(context.Background(), "A/B", 5)
	require.NoError(t, err)
	assert.Equal(t, "A/B", e.ID)
}

// apiServer runs the real router over the fixture vocabulary.
func apiServer(t *testing.T, loaded bool) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := mapping.NewService(mapping.DefaultServiceConfig(), logging.NewNopLogger())
	if loaded {
		require.NoError(t, svc.Install(testutil.MustIndex()))
	}
	router := httpserver.NewRouter(httpserver.RouterConfig{
		MappingHandler:    handlers.NewMappingHandler(svc, 10),
		VocabularyHandler: handlers.NewVocabularyHandler(svc, nil),
		HealthHandler:     handlers.NewHealthHandler("test", handlers.IndexChecker{Ready: svc.Ready}),
		Logger:            logging.NewNopLogger(),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, WithRetryMax(1), WithRetryWait(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestClient_AgainstRouter_Match(t *testing.T) {
	c := apiServer(t, true)
	ctx := context.Background()

	rec, err := c.Mappings().Match(ctx, "NaCl")
	require.NoError(t, err)
	assert.Equal(t, "CHEBI:26710", rec.MatchedID)
	assert.Equal(t, "exact_formula", rec.Method)
	assert.Equal(t, "very_high", rec.Tier)

	empty, err := c.Mappings().Match(ctx, "")
	require.NoError(t, err)
	assert.False(t, empty.IsMapped())
	assert.Equal(t, "unmapped", empty.Method)
}

func TestClient_AgainstRouter_Batch(t *testing.T) {
	c := apiServer(t, true)

	res, err := c.Mappings().Batch(context.Background(), []Row{
		{Key: "row-a", Name: "NaCl"},
		{Name: "dextrose"},
		{Name: "totally-unknown-xyz"},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	assert.Equal(t, "row-a", res.Records[0].Row.Key)
	assert.Equal(t, "2", res.Records[1].Row.Key)
	assert.Equal(t, 3, res.Summary.Total)
	assert.Equal(t, 2, res.Summary.Mapped)
	assert.Equal(t, []UnmappedName{{Name: "totally-unknown-xyz", Count: 1}}, res.Unmapped)
	assert.NotEmpty(t, res.RunID)
	assert.NotEmpty(t, res.IndexVersion)
}

func TestClient_AgainstRouter_BatchTooLarge(t *testing.T) {
	c := apiServer(t, true)

	names := make([]string, 11)
	for i := range names {
		names[i] = "NaCl"
	}
	_, err := c.Mappings().BatchNames(context.Background(), names...)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, string(errors.ErrCodeBatchInputInvalid), apiErr.Code)
}

func TestClient_AgainstRouter_Vocabulary(t *testing.T) {
	c := apiServer(t, true)
	ctx := context.Background()

	st, err := c.Vocabulary().Stats(ctx)
	require.NoError(t, err)
	assert.Positive(t, st.Entities)
	assert.NotEmpty(t, st.Version)

	e, err := c.Vocabulary().Entity(ctx, "CHEBI:26710", 0)
	require.NoError(t, err)
	assert.Equal(t, "sodium chloride", e.Label)
	assert.Contains(t, e.Synonyms, "table salt")
	assert.Empty(t, e.MappedNames)

	_, err = c.Vocabulary().Entity(ctx, "CHEBI:0", 0)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
}

func TestClient_AgainstRouter_NotLoaded(t *testing.T) {
	c := apiServer(t, false)

	_, err := c.Mappings().Match(context.Background(), "NaCl")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnavailable())
	assert.Equal(t, string(errors.ErrCodeIndexNotLoaded), apiErr.Code)
}
