package mapping

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	domain "github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// Matcher resolves one raw name. *domain.Engine satisfies it.
type Matcher interface {
	Match(raw string) domain.MappingRecord
}

// Row is one input line of a batch. Key identifies the row in its source
// (line number, message offset) and travels with the record for provenance.
type Row struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// RowRecord pairs a row with its record.
type RowRecord struct {
	Row    Row                  `json:"row"`
	Record domain.MappingRecord `json:"record"`
}

// BatchRunner matches rows on a bounded pool of goroutines.
type BatchRunner struct {
	workers int
	logger  logging.Logger
}

// NewBatchRunner returns a runner with the given concurrency; zero or less
// means GOMAXPROCS.
func NewBatchRunner(workers int, logger logging.Logger) *BatchRunner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &BatchRunner{workers: workers, logger: logger}
}

// Workers returns the pool size.
func (b *BatchRunner) Workers() int { return b.workers }

// Run matches every row and returns the records in input order. When ctx is
// cancelled no further rows are submitted; the records already produced are
// returned, still in input order, together with a MATCH_003 error.
func (b *BatchRunner) Run(ctx context.Context, m Matcher, rows []Row) ([]RowRecord, error) {
	if m == nil {
		return nil, errors.New(errors.ErrCodeIndexNotLoaded, "no matcher")
	}

	results := make([]RowRecord, len(rows))
	done := make([]bool, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i := range rows {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = RowRecord{Row: rows[i], Record: m.Match(rows[i].Name)}
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]RowRecord, 0, len(rows))
	for i := range results {
		if done[i] {
			out = append(out, results[i])
		}
	}

	if err := ctx.Err(); err != nil {
		b.logger.Warn("batch cancelled",
			logging.Int("rows", len(rows)),
			logging.Int("completed", len(out)),
			logging.Err(err))
		return out, errors.Wrap(err, errors.ErrCodeBatchCancelled, "batch cancelled").
			WithDetailf("completed %d of %d rows", len(out), len(rows))
	}
	return out, nil
}
