package repositories

import (
	"context"

	"github.com/lib/pq"

	"github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// MappingRepo stores records in compound_mappings, one row per
// (index_version, original). A later run against the same index overwrites
// the row; records from another index version live side by side.
type MappingRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewMappingRepo returns a repository over conn.
func NewMappingRepo(conn *postgres.Connection, log logging.Logger) *MappingRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &MappingRepo{conn: conn, log: log.Named("mapping_repo")}
}

// Name identifies the sink in logs.
func (r *MappingRepo) Name() string { return "postgres" }

const upsertMapping = `
	INSERT INTO compound_mappings (
		index_version, original, run_id, row_key,
		base_compound, hydration, matched_id, matched_label,
		method, score, tier, notes, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, now())
	ON CONFLICT (index_version, original) DO UPDATE SET
		run_id = EXCLUDED.run_id,
		row_key = EXCLUDED.row_key,
		base_compound = EXCLUDED.base_compound,
		hydration = EXCLUDED.hydration,
		matched_id = EXCLUDED.matched_id,
		matched_label = EXCLUDED.matched_label,
		method = EXCLUDED.method,
		score = EXCLUDED.score,
		tier = EXCLUDED.tier,
		notes = EXCLUDED.notes,
		updated_at = now()`

// WriteRecords upserts envs in one transaction.
func (r *MappingRepo) WriteRecords(ctx context.Context, envs []mapping.MappingEnvelope) error {
	if len(envs) == 0 {
		return nil
	}
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDBQueryError, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertMapping)
	if err != nil {
		return errors.Wrap(err, errors.CodeDBQueryError, "failed to prepare mapping upsert")
	}
	defer stmt.Close()

	for _, env := range envs {
		rec := env.Record
		if _, err := stmt.ExecContext(ctx,
			env.IndexVersion, rec.Original, env.RunID, env.RowKey,
			rec.BaseCompound, rec.Hydration.String(), rec.MatchedID, rec.MatchedLabel,
			rec.Method.String(), rec.Score, rec.Tier.String(), pq.Array(nonNil(rec.Notes)),
		); err != nil {
			return errors.Wrapf(err, errors.CodeDBQueryError, "failed to upsert mapping for %q", rec.Original)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeDBQueryError, "failed to commit mappings")
	}
	r.log.Debug("mappings stored",
		logging.Int("count", len(envs)),
		logging.String("index_version", envs[0].IndexVersion))
	return nil
}
