package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChemMap/internal/domain/reference"
)

// VocabularyService is the part of mapping.Service the vocabulary routes use.
type VocabularyService interface {
	Stats() (reference.Stats, error)
	Entity(id string) (reference.Entity, error)
}

// MappedNames lists the raw names previously mapped to an entity. The Neo4j
// mapping graph implements it.
type MappedNames interface {
	NamesFor(ctx context.Context, id string, limit int) ([]string, error)
}

// EntityResponse is an entity plus, when the mapping graph is configured,
// the raw names mapped to it.
type EntityResponse struct {
	reference.Entity
	MappedNames []string `json:"mapped_names,omitempty"`
}

const (
	defaultNamesLimit = 50
	maxNamesLimit     = 1000
)

// VocabularyHandler serves the vocabulary endpoints.
type VocabularyHandler struct {
	svc   VocabularyService
	names MappedNames
}

// NewVocabularyHandler creates a VocabularyHandler. names may be nil.
func NewVocabularyHandler(svc VocabularyService, names MappedNames) *VocabularyHandler {
	return &VocabularyHandler{svc: svc, names: names}
}

// RegisterRoutes mounts the handler under /vocabulary.
func (h *VocabularyHandler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/vocabulary")
	g.GET("/stats", h.Stats)
	g.GET("/entities/:id", h.Entity)
}

// Stats handles GET /vocabulary/stats.
func (h *VocabularyHandler) Stats(c *gin.Context) {
	st, err := h.svc.Stats()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Entity handles GET /vocabulary/entities/:id. A failing graph lookup is
// logged and the entity is returned without names.
func (h *VocabularyHandler) Entity(c *gin.Context) {
	e, err := h.svc.Entity(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := EntityResponse{Entity: e}
	if h.names != nil {
		limit := queryInt(c, "names_limit", defaultNamesLimit, maxNamesLimit)
		names, err := h.names.NamesFor(c.Request.Context(), e.ID, limit)
		if err != nil {
			_ = c.Error(err)
		} else {
			resp.MappedNames = names
		}
	}
	c.JSON(http.StatusOK, resp)
}
