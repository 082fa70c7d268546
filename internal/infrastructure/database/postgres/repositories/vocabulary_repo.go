package repositories

import (
	"context"

	"github.com/lib/pq"

	"github.com/turtacn/ChemMap/internal/domain/reference"
	"github.com/turtacn/ChemMap/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// VocabularyRepo reads and writes the reference_entities table. It is a
// reference.Source.
type VocabularyRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewVocabularyRepo returns a repository over conn.
func NewVocabularyRepo(conn *postgres.Connection, log logging.Logger) *VocabularyRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &VocabularyRepo{conn: conn, log: log.Named("vocabulary_repo")}
}

const selectEntities = `
	SELECT id, label, synonyms, formula, category
	FROM reference_entities
	ORDER BY id`

// LoadEntities returns every row, ordered by ID.
func (r *VocabularyRepo) LoadEntities(ctx context.Context) ([]reference.Entity, error) {
	rows, err := r.conn.DB().QueryContext(ctx, selectEntities)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDBQueryError, "failed to query reference entities")
	}
	defer rows.Close()

	var out []reference.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDBQueryError, "failed to scan reference entity")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDBQueryError, "failed to iterate reference entities")
	}
	r.log.Debug("reference entities loaded", logging.Int("count", len(out)))
	return out, nil
}

func scanEntity(s scanner) (reference.Entity, error) {
	var e reference.Entity
	var synonyms pq.StringArray
	if err := s.Scan(&e.ID, &e.Label, &synonyms, &e.Formula, &e.Category); err != nil {
		return reference.Entity{}, err
	}
	if len(synonyms) > 0 {
		e.Synonyms = []string(synonyms)
	}
	return e, nil
}

const upsertEntity = `
	INSERT INTO reference_entities (id, label, synonyms, formula, category, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (id) DO UPDATE SET
		label = EXCLUDED.label,
		synonyms = EXCLUDED.synonyms,
		formula = EXCLUDED.formula,
		category = EXCLUDED.category,
		updated_at = now()`

// ImportEntities upserts entities in one transaction. Each entity is
// validated first; nothing is written when any is malformed.
func (r *VocabularyRepo) ImportEntities(ctx context.Context, entities []reference.Entity) (int, error) {
	for i := range entities {
		if err := entities[i].Validate(); err != nil {
			return 0, errors.Wrapf(err, errors.CodeUnknown, "entity %d", i+1)
		}
	}
	if len(entities) == 0 {
		return 0, nil
	}

	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDBQueryError, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertEntity)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDBQueryError, "failed to prepare entity upsert")
	}
	defer stmt.Close()

	for _, e := range entities {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Label, pq.Array(nonNil(e.Synonyms)), e.Formula, e.Category); err != nil {
			return 0, errors.Wrapf(err, errors.CodeDBQueryError, "failed to upsert entity %s", e.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.CodeDBQueryError, "failed to commit entity import")
	}
	r.log.Info("reference entities imported", logging.Int("count", len(entities)))
	return len(entities), nil
}

// Count returns the number of stored entities.
func (r *VocabularyRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM reference_entities`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.CodeDBQueryError, "failed to count reference entities")
	}
	return n, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
