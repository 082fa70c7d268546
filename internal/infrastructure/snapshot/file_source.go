package snapshot

import (
	"context"
	"os"

	"github.com/turtacn/ChemMap/internal/domain/reference"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// FileSource reads the vocabulary and the override table from local files.
// It implements reference.Source and reference.OverrideSource.
type FileSource struct {
	VocabularyPath string
	OverridesPath  string
	logger         logging.Logger
}

// NewFileSource returns a source over the given paths. An empty
// overridesPath means no curated overrides.
func NewFileSource(vocabularyPath, overridesPath string, log logging.Logger) *FileSource {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &FileSource{
		VocabularyPath: vocabularyPath,
		OverridesPath:  overridesPath,
		logger:         log.Named("file_source"),
	}
}

// LoadEntities decodes the TSV snapshot.
func (s *FileSource) LoadEntities(ctx context.Context) ([]reference.Entity, error) {
	f, err := os.Open(s.VocabularyPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVocabularyLoad, "failed to open vocabulary snapshot").
			WithDetailf("path=%s", s.VocabularyPath)
	}
	defer f.Close()

	entities, err := DecodeVocabulary(f)
	if err != nil {
		return nil, err
	}
	s.logger.Info("vocabulary loaded",
		logging.String("path", s.VocabularyPath),
		logging.Int("entities", len(entities)))
	return entities, nil
}

// LoadOverrides decodes the YAML override table.
func (s *FileSource) LoadOverrides(ctx context.Context) ([]reference.Override, error) {
	if s.OverridesPath == "" {
		return nil, nil
	}
	f, err := os.Open(s.OverridesPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVocabularyLoad, "failed to open override table").
			WithDetailf("path=%s", s.OverridesPath)
	}
	defer f.Close()

	entries, err := DecodeOverrides(f)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("overrides loaded", logging.Int("entries", len(entries)))
	return entries, nil
}
