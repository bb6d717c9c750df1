package metadata

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/models"
)

// SnapshotSink receives a copy of every appended metrics snapshot. The
// on-disk metrics log remains the source of truth; sinks exist for trend
// dashboards.
type SnapshotSink interface {
	WriteSnapshot(ctx context.Context, snapshot *models.MetricsSnapshot) error
}

// StoreConfig configures the metadata and metrics store.
type StoreConfig struct {
	BasePath string `json:"base_path" yaml:"base_path"`
}

// Store owns artifact records and their append-only metrics history.
//
// Layout under BasePath:
//
//	records/<id>.json    one record document per artifact
//	metrics/<id>.jsonl   append-only metrics log, one snapshot per line
//
// Register commits a record by hard-linking a fully written temp file to its
// final name: link fails with EEXIST when the id is taken, which makes the
// first write win even across processes, and readers only ever observe a
// complete document.
type Store struct {
	config *StoreConfig
	logger *logrus.Logger
	sink   SnapshotSink
	cache  *RecordCache
}

// NewStore creates the metadata store and its directory layout.
func NewStore(config *StoreConfig, logger *logrus.Logger) (*Store, error) {
	if config == nil || config.BasePath == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "Metadata store base path is required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	for _, dir := range []string{
		filepath.Join(config.BasePath, "records"),
		filepath.Join(config.BasePath, "metrics"),
	} {
		if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage,
				errors.CodeWriteFailed, "Failed to create metadata store layout")
		}
	}

	return &Store{
		config: config,
		logger: logger,
	}, nil
}

// SetSnapshotSink attaches an optional mirror for appended snapshots.
func (s *Store) SetSnapshotSink(sink SnapshotSink) {
	s.sink = sink
}

// SetRecordCache attaches an optional read-through record cache.
func (s *Store) SetRecordCache(cache *RecordCache) {
	s.cache = cache
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.config.BasePath, "records", id+".json")
}

func (s *Store) metricsPath(id string) string {
	return filepath.Join(s.config.BasePath, "metrics", id+".jsonl")
}

// Register performs the first write for a record and fails with
// ErrDuplicateID when the id is already registered.
func (s *Store) Register(ctx context.Context, record *models.ArtifactRecord) error {
	if record == nil || record.ID == "" {
		return errors.NewValidationError(errors.CodeMissingField, "Record id is required")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to encode artifact record")
	}

	tmpPath := s.recordPath(".tmp-" + uuid.NewString())
	if err := os.WriteFile(tmpPath, data, constants.DefaultFilePerm); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to write temporary record")
	}
	defer os.Remove(tmpPath)

	// Link, not rename: link fails when the target exists, which is the
	// first-write-wins serialization point for concurrent registrations.
	if err := os.Link(tmpPath, s.recordPath(record.ID)); err != nil {
		if os.IsExist(err) {
			return errors.WrapError(errors.ErrDuplicateID, errors.ErrorTypeRegistry,
				errors.CodeDuplicateID, fmt.Sprintf("Artifact %s already registered", record.ID))
		}
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to commit artifact record")
	}

	if s.cache != nil {
		s.cache.Set(ctx, record)
	}

	s.logger.WithFields(logrus.Fields{
		"artifact_id": record.ID,
		"kind":        record.Kind,
		"dataset":     record.DatasetName,
	}).Info("Registered artifact record")

	return nil
}

// GetRecord returns the record for id or ErrNotFound.
func (s *Store) GetRecord(ctx context.Context, id string) (*models.ArtifactRecord, error) {
	if s.cache != nil {
		if record, ok := s.cache.Get(ctx, id); ok {
			return record, nil
		}
	}

	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapError(errors.ErrNotFound, errors.ErrorTypeRegistry,
				errors.CodeNotFound, fmt.Sprintf("Artifact %s not found", id))
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to read artifact record")
	}

	var record models.ArtifactRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.WrapError(errors.ErrCorruptMetadata, errors.ErrorTypeRegistry,
			errors.CodeCorruptMetadata, fmt.Sprintf("Record for artifact %s does not parse", id))
	}

	if s.cache != nil {
		s.cache.Set(ctx, &record)
	}

	return &record, nil
}

// AppendMetrics appends a snapshot to the id's history. The id must be
// registered; unknown ids fail with ErrUnknownArtifact.
func (s *Store) AppendMetrics(ctx context.Context, id string, snapshot *models.MetricsSnapshot) error {
	if _, err := os.Stat(s.recordPath(id)); err != nil {
		if os.IsNotExist(err) {
			return errors.WrapError(errors.ErrUnknownArtifact, errors.ErrorTypeRegistry,
				errors.CodeUnknownArtifact, fmt.Sprintf("Artifact %s is not registered", id))
		}
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to stat artifact record")
	}

	snapshot.ArtifactID = id

	line, err := json.Marshal(snapshot)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to encode metrics snapshot")
	}

	f, err := os.OpenFile(s.metricsPath(id), os.O_WRONLY|os.O_CREATE|os.O_APPEND, constants.DefaultFilePerm)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to open metrics log")
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to append metrics snapshot")
	}

	// The log write above is the durable append; the sink is a mirror for
	// dashboards and must not fail the operation.
	if s.sink != nil {
		if err := s.sink.WriteSnapshot(ctx, snapshot); err != nil {
			s.logger.WithError(err).WithField("artifact_id", id).Warn("Snapshot sink write failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"artifact_id": id,
		"kind":        snapshot.Kind,
		"metrics":     len(snapshot.Values),
	}).Info("Appended metrics snapshot")

	return nil
}

// GetMetricsHistory returns the id's snapshots in append order.
func (s *Store) GetMetricsHistory(ctx context.Context, id string) ([]*models.MetricsSnapshot, error) {
	if _, err := os.Stat(s.recordPath(id)); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapError(errors.ErrNotFound, errors.ErrorTypeRegistry,
				errors.CodeNotFound, fmt.Sprintf("Artifact %s not found", id))
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to stat artifact record")
	}

	f, err := os.Open(s.metricsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.MetricsSnapshot{}, nil
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to open metrics log")
	}
	defer f.Close()

	var history []*models.MetricsSnapshot
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var snapshot models.MetricsSnapshot
		if err := json.Unmarshal(line, &snapshot); err != nil {
			return nil, errors.WrapError(errors.ErrCorruptMetadata, errors.ErrorTypeRegistry,
				errors.CodeCorruptMetadata, fmt.Sprintf("Metrics log for artifact %s does not parse", id))
		}
		history = append(history, &snapshot)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to read metrics log")
	}

	return history, nil
}

// ListRecords returns all records passing the filter, ordered by id. Ids
// embed a sortable timestamp, so the order is stable for unmodified content.
func (s *Store) ListRecords(ctx context.Context, filter *models.RecordFilter) ([]*models.ArtifactRecord, error) {
	entries, err := os.ReadDir(filepath.Join(s.config.BasePath, "records"))
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to list records")
	}

	var records []*models.ArtifactRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		id := name[:len(name)-len(".json")]
		if len(id) == 0 || id[0] == '.' {
			continue
		}

		record, err := s.GetRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		if filter.Matches(record) {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return records, nil
}

// MarkSuperseded records that newID replaces id. The update is written to a
// temp file and renamed over the record so readers never see a partial
// document.
func (s *Store) MarkSuperseded(ctx context.Context, id, newID string) error {
	record, err := s.GetRecord(ctx, id)
	if err != nil {
		return err
	}

	record.SupersededBy = newID

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to encode artifact record")
	}

	tmpPath := s.recordPath(".tmp-" + uuid.NewString())
	if err := os.WriteFile(tmpPath, data, constants.DefaultFilePerm); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to write temporary record")
	}

	if err := os.Rename(tmpPath, s.recordPath(id)); err != nil {
		os.Remove(tmpPath)
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to update artifact record")
	}

	if s.cache != nil {
		s.cache.Set(ctx, record)
	}

	s.logger.WithFields(logrus.Fields{
		"artifact_id":   id,
		"superseded_by": newID,
	}).Info("Marked artifact superseded")

	return nil
}
