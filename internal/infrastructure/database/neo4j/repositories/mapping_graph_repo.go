package repositories

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/ChemMap/internal/domain/mapping"
	driver "github.com/turtacn/ChemMap/internal/infrastructure/database/neo4j"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// DefaultGraphBatchSize bounds the rows sent in one UNWIND.
const DefaultGraphBatchSize = 500

const (
	cypherConstraintName   = `CREATE CONSTRAINT compound_name_unique IF NOT EXISTS FOR (n:CompoundName) REQUIRE n.name IS UNIQUE`
	cypherConstraintEntity = `CREATE CONSTRAINT chemical_entity_unique IF NOT EXISTS FOR (e:ChemicalEntity) REQUIRE e.id IS UNIQUE`

	// Every name gets a node; only mapped names get a MAPS_TO edge. One edge
	// per (name, entity, index_version) so mappings from older vocabularies
	// stay queryable.
	cypherMergeMappings = `
		UNWIND $rows AS row
		MERGE (n:CompoundName {name: row.name})
		SET n.base_compound = row.base_compound,
		    n.hydration = row.hydration,
		    n.last_run_id = row.run_id
		WITH n, row WHERE row.id <> ''
		MERGE (e:ChemicalEntity {id: row.id})
		SET e.label = row.label
		MERGE (n)-[r:MAPS_TO {index_version: row.index_version}]->(e)
		SET r.method = row.method,
		    r.score = row.score,
		    r.tier = row.tier,
		    r.run_id = row.run_id`

	cypherMappingsForName = `
		MATCH (n:CompoundName {name: $name})-[r:MAPS_TO]->(e:ChemicalEntity)
		RETURN e.id AS id, e.label AS label, r.method AS method, r.score AS score,
		       r.tier AS tier, r.index_version AS index_version
		ORDER BY r.index_version, e.id`

	cypherNamesForEntity = `
		MATCH (n:CompoundName)-[r:MAPS_TO]->(e:ChemicalEntity {id: $id})
		RETURN DISTINCT n.name AS name
		ORDER BY name
		LIMIT $limit`
)

// GraphMapping is one MAPS_TO edge read back from the graph.
type GraphMapping struct {
	EntityID     string `json:"entity_id"`
	Label        string `json:"label"`
	Method       string `json:"method"`
	Score        int    `json:"score"`
	Tier         string `json:"tier"`
	IndexVersion string `json:"index_version"`
}

// MappingGraphRepo writes records as a name-to-entity graph.
type MappingGraphRepo struct {
	driver    driver.DriverInterface
	batchSize int
	log       logging.Logger
}

// NewMappingGraphRepo returns a repository over d. batchSize <= 0 means
// DefaultGraphBatchSize.
func NewMappingGraphRepo(d driver.DriverInterface, batchSize int, log logging.Logger) *MappingGraphRepo {
	if batchSize <= 0 {
		batchSize = DefaultGraphBatchSize
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &MappingGraphRepo{driver: d, batchSize: batchSize, log: log.Named("mapping_graph")}
}

// Name identifies the sink in logs.
func (r *MappingGraphRepo) Name() string { return "neo4j" }

// EnsureConstraints creates the uniqueness constraints MERGE relies on.
func (r *MappingGraphRepo) EnsureConstraints(ctx context.Context) error {
	_, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
		for _, q := range []string{cypherConstraintName, cypherConstraintEntity} {
			if _, err := tx.Run(ctx, q, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeGraph, "failed to create graph constraints")
	}
	return nil
}

// WriteRecords merges envs in chunks of batchSize, one transaction each.
func (r *MappingGraphRepo) WriteRecords(ctx context.Context, envs []mapping.MappingEnvelope) error {
	for start := 0; start < len(envs); start += r.batchSize {
		end := min(start+r.batchSize, len(envs))
		rows := make([]map[string]any, 0, end-start)
		for _, env := range envs[start:end] {
			rows = append(rows, graphRow(env))
		}
		_, err := r.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (any, error) {
			res, err := tx.Run(ctx, cypherMergeMappings, map[string]any{"rows": rows})
			if err != nil {
				return nil, err
			}
			_, err = res.Consume(ctx)
			return nil, err
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeGraph, "failed to merge mappings").
				WithDetailf("rows=%d..%d", start, end)
		}
	}
	if len(envs) > 0 {
		r.log.Debug("mappings merged", logging.Int("records", len(envs)))
	}
	return nil
}

func graphRow(env mapping.MappingEnvelope) map[string]any {
	rec := env.Record
	return map[string]any{
		"name":          rec.Original,
		"base_compound": rec.BaseCompound,
		"hydration":     rec.Hydration.String(),
		"id":            rec.MatchedID,
		"label":         rec.MatchedLabel,
		"method":        rec.Method.String(),
		"score":         int64(rec.Score),
		"tier":          rec.Tier.String(),
		"index_version": env.IndexVersion,
		"run_id":        env.RunID.String(),
	}
}

// MappingsFor returns every recorded mapping of a raw name.
func (r *MappingGraphRepo) MappingsFor(ctx context.Context, name string) ([]GraphMapping, error) {
	out, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, cypherMappingsForName, map[string]any{"name": name})
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, res, scanGraphMapping)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGraph, "failed to read mappings")
	}
	mappings, _ := out.([]GraphMapping)
	return mappings, nil
}

// NamesFor returns up to limit raw names that were mapped to entity id.
func (r *MappingGraphRepo) NamesFor(ctx context.Context, id string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	out, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (any, error) {
		res, err := tx.Run(ctx, cypherNamesForEntity, map[string]any{"id": id, "limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		return driver.CollectRecords(ctx, res, func(rec *neo4j.Record) (string, error) {
			return stringProp(rec, "name"), nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGraph, "failed to read mapped names")
	}
	names, _ := out.([]string)
	return names, nil
}

func scanGraphMapping(rec *neo4j.Record) (GraphMapping, error) {
	m := GraphMapping{
		EntityID:     stringProp(rec, "id"),
		Label:        stringProp(rec, "label"),
		Method:       stringProp(rec, "method"),
		Tier:         stringProp(rec, "tier"),
		IndexVersion: stringProp(rec, "index_version"),
	}
	if v, ok := rec.Get("score"); ok {
		if n, ok := v.(int64); ok {
			m.Score = int(n)
		}
	}
	return m, nil
}

func stringProp(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}
