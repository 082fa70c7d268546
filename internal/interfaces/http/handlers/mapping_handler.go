package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChemMap/internal/application/mapping"
	domain "github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// MappingService is the part of mapping.Service the mapping routes use.
type MappingService interface {
	Match(ctx context.Context, raw string) (domain.MappingRecord, error)
	MatchBatch(ctx context.Context, rows []mapping.Row) (*mapping.BatchResult, error)
}

// MatchRequest is the body of POST /api/v1/mappings/match.
type MatchRequest struct {
	Name *string `json:"name" binding:"required"`
}

// BatchRequest is the body of POST /api/v1/mappings/batch. Rows without a
// key are keyed by their 1-based position.
type BatchRequest struct {
	Rows []mapping.Row `json:"rows"`
}

// BatchResponse is a batch result plus the sink failures, if any. A sink
// failure does not fail the request: the records were produced.
type BatchResponse struct {
	*mapping.BatchResult
	Warnings []string `json:"warnings,omitempty"`
}

// MappingHandler serves the match endpoints.
type MappingHandler struct {
	svc     MappingService
	maxRows int
}

// NewMappingHandler creates a MappingHandler. maxRows bounds a batch; zero
// means unbounded.
func NewMappingHandler(svc MappingService, maxRows int) *MappingHandler {
	return &MappingHandler{svc: svc, maxRows: maxRows}
}

// RegisterRoutes mounts the handler under /mappings.
func (h *MappingHandler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/mappings")
	g.POST("/match", h.Match)
	g.POST("/batch", h.Batch)
}

// Match handles POST /mappings/match. An empty name is valid input and
// yields an unmapped record.
func (h *MappingHandler) Match(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rec, err := h.svc.Match(c.Request.Context(), *req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Batch handles POST /mappings/batch.
func (h *MappingHandler) Batch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if len(req.Rows) == 0 {
		respondError(c, errors.New(errors.ErrCodeBatchInputInvalid, "batch has no rows"))
		return
	}
	if h.maxRows > 0 && len(req.Rows) > h.maxRows {
		respondError(c, errors.New(errors.ErrCodeBatchInputInvalid, "batch too large").
			WithDetailf("rows=%d max=%d", len(req.Rows), h.maxRows))
		return
	}
	for i := range req.Rows {
		if req.Rows[i].Key == "" {
			req.Rows[i].Key = strconv.Itoa(i + 1)
		}
	}

	res, err := h.svc.MatchBatch(c.Request.Context(), req.Rows)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, BatchResponse{BatchResult: res})
	case res == nil || res.Cancelled:
		respondError(c, err)
	default:
		_ = c.Error(err)
		c.JSON(http.StatusOK, BatchResponse{BatchResult: res, Warnings: []string{err.Error()}})
	}
}
