package minio

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/ChemMap/internal/domain/reference"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/internal/infrastructure/snapshot"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// Defaults for the vocabulary section when the source is minio.
const (
	DefaultBucket           = "chemmap-snapshots"
	DefaultVocabularyObject = "vocabulary.tsv"

	contentTypeTSV  = "text/tab-separated-values"
	contentTypeYAML = "application/yaml"
	metaEntities    = "Entities"
	metaOverrides   = "Overrides"
)

// SnapshotStore serves the vocabulary TSV and the override YAML from one
// bucket. It implements reference.Source and reference.OverrideSource.
type SnapshotStore struct {
	client           *MinIOClient
	bucket           string
	vocabularyObject string
	overridesObject  string
	logger           logging.Logger
}

// ObjectInfo describes a stored snapshot object.
type ObjectInfo struct {
	Bucket       string            `json:"bucket"`
	Object       string            `json:"object"`
	ETag         string            `json:"etag"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewSnapshotStore binds the store to bucket. An empty overridesObject
// means the bucket carries no override table.
func NewSnapshotStore(client *MinIOClient, bucket, vocabularyObject, overridesObject string, log logging.Logger) *SnapshotStore {
	if bucket == "" {
		bucket = DefaultBucket
	}
	if vocabularyObject == "" {
		vocabularyObject = DefaultVocabularyObject
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &SnapshotStore{
		client:           client,
		bucket:           bucket,
		vocabularyObject: vocabularyObject,
		overridesObject:  overridesObject,
		logger:           log.Named("snapshot_store"),
	}
}

// LoadEntities downloads and decodes the vocabulary snapshot.
func (s *SnapshotStore) LoadEntities(ctx context.Context) ([]reference.Entity, error) {
	data, err := s.download(ctx, s.vocabularyObject)
	if err != nil {
		return nil, err
	}
	entities, err := snapshot.DecodeVocabulary(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	s.logger.Info("vocabulary loaded",
		logging.String("bucket", s.bucket),
		logging.String("object", s.vocabularyObject),
		logging.Int("entities", len(entities)))
	return entities, nil
}

// LoadOverrides downloads and decodes the override table.
func (s *SnapshotStore) LoadOverrides(ctx context.Context) ([]reference.Override, error) {
	if s.overridesObject == "" {
		return nil, nil
	}
	data, err := s.download(ctx, s.overridesObject)
	if err != nil {
		return nil, err
	}
	entries, err := snapshot.DecodeOverrides(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("overrides loaded", logging.Int("entries", len(entries)))
	return entries, nil
}

// PutVocabulary encodes entities as TSV and uploads them, creating the
// bucket on first use.
func (s *SnapshotStore) PutVocabulary(ctx context.Context, entities []reference.Entity) (*ObjectInfo, error) {
	if len(entities) == 0 {
		return nil, errors.New(errors.ErrCodeVocabularyEmpty, "refusing to upload an empty vocabulary")
	}
	var buf bytes.Buffer
	if err := snapshot.EncodeVocabulary(&buf, entities); err != nil {
		return nil, err
	}
	return s.upload(ctx, s.vocabularyObject, buf.Bytes(), contentTypeTSV,
		map[string]string{metaEntities: strconv.Itoa(len(entities))})
}

// PutOverrides encodes entries as YAML and uploads them.
func (s *SnapshotStore) PutOverrides(ctx context.Context, entries []reference.Override) (*ObjectInfo, error) {
	if s.overridesObject == "" {
		return nil, errors.New(errors.ErrCodeValidation, "no overrides object configured")
	}
	var buf bytes.Buffer
	if err := snapshot.EncodeOverrides(&buf, entries); err != nil {
		return nil, err
	}
	return s.upload(ctx, s.overridesObject, buf.Bytes(), contentTypeYAML,
		map[string]string{metaOverrides: strconv.Itoa(len(entries))})
}

// StatVocabulary returns the metadata of the vocabulary object.
func (s *SnapshotStore) StatVocabulary(ctx context.Context) (*ObjectInfo, error) {
	api, err := s.client.api()
	if err != nil {
		return nil, err
	}
	info, err := api.StatObject(ctx, s.bucket, s.vocabularyObject, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.objectError(err, s.vocabularyObject, "failed to stat snapshot")
	}
	return &ObjectInfo{
		Bucket:       s.bucket,
		Object:       info.Key,
		ETag:         info.ETag,
		Size:         info.Size,
		LastModified: info.LastModified,
		Metadata:     info.UserMetadata,
	}, nil
}

func (s *SnapshotStore) download(ctx context.Context, object string) ([]byte, error) {
	api, err := s.client.api()
	if err != nil {
		return nil, err
	}
	obj, err := api.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.objectError(err, object, "failed to open snapshot")
	}
	defer obj.Close()

	// The SDK reports a missing key on the first read, not on GetObject.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.objectError(err, object, "failed to read snapshot")
	}
	return data, nil
}

func (s *SnapshotStore) upload(ctx context.Context, object string, data []byte, contentType string, meta map[string]string) (*ObjectInfo, error) {
	if err := s.client.EnsureBucket(ctx, s.bucket); err != nil {
		return nil, err
	}
	api, err := s.client.api()
	if err != nil {
		return nil, err
	}
	info, err := api.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "upload failed").
			WithDetailf("bucket=%s object=%s", s.bucket, object)
	}
	s.logger.Info("snapshot uploaded",
		logging.String("bucket", s.bucket),
		logging.String("object", object),
		logging.Int64("size", info.Size))
	return &ObjectInfo{
		Bucket:       s.bucket,
		Object:       object,
		ETag:         info.ETag,
		Size:         info.Size,
		LastModified: info.LastModified,
		Metadata:     meta,
	}, nil
}

// objectError maps a missing object to VOCAB_004 so the service treats it
// like an unreadable local file; anything else is STORAGE_001.
func (s *SnapshotStore) objectError(err error, object, msg string) error {
	if isNotFound(err) {
		return errors.Wrap(err, errors.ErrCodeVocabularyLoad, "snapshot object not found").
			WithDetailf("bucket=%s object=%s", s.bucket, object)
	}
	return errors.Wrap(err, errors.ErrCodeStorage, msg).
		WithDetailf("bucket=%s object=%s", s.bucket, object)
}
