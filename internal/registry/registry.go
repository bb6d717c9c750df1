package registry

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/internal/drift"
	"github.com/inferloop/mlregistry/internal/observability/metrics"
	"github.com/inferloop/mlregistry/internal/storage"
	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/interfaces"
	"github.com/inferloop/mlregistry/pkg/models"
)

// Config configures the registry facade.
type Config struct {
	RootPath        string                 `json:"root_path" yaml:"root_path"`
	StorageType     string                 `json:"storage_type" yaml:"storage_type"`
	StorageSettings map[string]interface{} `json:"storage_settings" yaml:"storage_settings"`
	Thresholds      *drift.Thresholds      `json:"thresholds" yaml:"thresholds"`
}

// DefaultConfig returns a filesystem-backed registry rooted at the default
// path.
func DefaultConfig() *Config {
	return &Config{
		RootPath:    constants.DefaultRegistryPath,
		StorageType: constants.StorageTypeFile,
		Thresholds:  drift.DefaultThresholds(),
	}
}

// RegisterRequest carries everything needed to register one trained model.
type RegisterRequest struct {
	Kind            string                 `json:"kind"`
	ProblemCategory string                 `json:"problem_category"`
	DatasetName     string                 `json:"dataset_name"`
	VersionLabel    string                 `json:"version_label"`
	Blob            []byte                 `json:"blob,omitempty"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	TrainingMetrics map[string]float64     `json:"training_metrics,omitempty"`
	ReferenceData   models.Dataset         `json:"reference_data,omitempty"`
}

// Registry is the facade collaborators use. It coordinates the artifact
// store, the metadata store and the drift detector so that an artifact blob
// and its registry record are created together or not at all.
type Registry struct {
	config    *Config
	store     interfaces.ArtifactStore
	metadata  interfaces.MetadataStore
	detector  *drift.Detector
	generator *Generator
	collector *metrics.Collector
	logger    *logrus.Logger
	locks     *keyedMutex
}

// NewRegistry creates the facade and its on-disk layout. The artifact store
// and metadata store live under RootPath unless storage settings say
// otherwise.
func NewRegistry(config *Config, metadataStore interfaces.MetadataStore, logger *logrus.Logger) (*Registry, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RootPath == "" {
		config.RootPath = constants.DefaultRegistryPath
	}
	if config.StorageType == "" {
		config.StorageType = constants.StorageTypeFile
	}
	if config.Thresholds == nil {
		config.Thresholds = drift.DefaultThresholds()
	}

	if logger == nil {
		logger = logrus.New()
	}

	if err := os.MkdirAll(config.RootPath, constants.DefaultDirPerm); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to create registry root")
	}

	settings := config.StorageSettings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	if config.StorageType == constants.StorageTypeFile && settings["base_path"] == nil {
		settings["base_path"] = filepath.Join(config.RootPath, constants.DefaultArtifactsDir)
	}

	store, err := storage.NewFactory(logger).CreateStorage(config.StorageType, settings)
	if err != nil {
		return nil, err
	}

	return &Registry{
		config:    config,
		store:     store,
		metadata:  metadataStore,
		detector:  drift.NewDetector(&drift.DetectorConfig{Thresholds: config.Thresholds}, logger),
		generator: NewGenerator(),
		logger:    logger,
		locks:     newKeyedMutex(),
	}, nil
}

// SetCollector attaches operation metrics.
func (r *Registry) SetCollector(collector *metrics.Collector) {
	r.collector = collector
}

func (r *Registry) observe(op string, start time.Time, err error) {
	if r.collector != nil {
		r.collector.ObserveOperation(op, time.Since(start), err)
	}
}

// RegisterModel stores a trained model blob, creates its registry record and
// appends the training metrics snapshot. The blob is deleted again when the
// record cannot be created, so no orphaned artifact stays visible.
func (r *Registry) RegisterModel(ctx context.Context, req *RegisterRequest) (record *models.ArtifactRecord, err error) {
	start := time.Now()
	defer func() { r.observe("register", start, err) }()

	if req == nil {
		return nil, errors.NewValidationError(errors.CodeMissingField, "Register request is required")
	}
	if len(req.Blob) == 0 {
		return nil, errors.WrapError(errors.ErrEmptyBlob, errors.ErrorTypeValidation,
			errors.CodeMissingField, "Artifact blob is empty")
	}

	kind := req.Kind
	kindName, ok := constants.ModelKinds[kind]
	if !ok {
		kind, kindName = "custom", constants.ModelKinds["custom"]
	}
	categoryName, ok := constants.ProblemCategories[req.ProblemCategory]
	if !ok {
		return nil, errors.WrapError(errors.ErrInvalidCategory, errors.ErrorTypeValidation,
			errors.CodeInvalidInput, fmt.Sprintf("Unknown problem category %q", req.ProblemCategory))
	}

	id, err := r.generator.Mint(kind, req.ProblemCategory, req.DatasetName, req.VersionLabel)
	if err != nil {
		return nil, err
	}

	var reference models.FeatureDistributionSummary
	if len(req.ReferenceData) > 0 {
		reference, err = drift.ComputeSummary(req.ReferenceData)
		if err != nil {
			return nil, err
		}
	}

	record = &models.ArtifactRecord{
		ID:                    id,
		Kind:                  kind,
		KindName:              kindName,
		ProblemCategory:       req.ProblemCategory,
		ProblemCategoryName:   categoryName,
		DatasetName:           req.DatasetName,
		VersionLabel:          req.VersionLabel,
		CreatedAt:             time.Now().UTC(),
		Parameters:            req.Parameters,
		ReferenceDistribution: reference,
	}

	r.locks.lock(id)
	defer r.locks.unlock(id)

	storagePath, err := r.store.Save(ctx, id, bytes.NewReader(req.Blob), record.Metadata())
	if err != nil {
		return nil, err
	}
	record.StoragePath = storagePath

	if err = r.metadata.Register(ctx, record); err != nil {
		// The blob is already on disk; take it back out so a failed
		// registration leaves nothing visible. A duplicate id means another
		// registration already committed, and the stored directory belongs
		// to it, so the rollback must leave it alone.
		if !stderrors.Is(err, errors.ErrDuplicateID) {
			if delErr := r.store.Delete(ctx, id); delErr != nil {
				r.logger.WithError(delErr).WithField("artifact_id", id).
					Error("Rollback of stored artifact failed")
			}
		}
		return nil, err
	}

	if len(req.TrainingMetrics) > 0 {
		snapshot := &models.MetricsSnapshot{
			ArtifactID: id,
			Timestamp:  time.Now().UTC(),
			Kind:       models.SnapshotTraining,
			Values:     req.TrainingMetrics,
		}
		if err = r.metadata.AppendMetrics(ctx, id, snapshot); err != nil {
			return nil, err
		}
	}

	r.logger.WithFields(logrus.Fields{
		"artifact_id": id,
		"kind":        kind,
		"dataset":     req.DatasetName,
		"version":     req.VersionLabel,
	}).Info("Registered model")

	return record, nil
}

// LoadModel returns the artifact blob and its registry record.
func (r *Registry) LoadModel(ctx context.Context, id string) (blob []byte, record *models.ArtifactRecord, err error) {
	start := time.Now()
	defer func() { r.observe("load", start, err) }()

	record, err = r.metadata.GetRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	blob, _, err = r.store.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return blob, record, nil
}

// GetRecord returns the registry record for id.
func (r *Registry) GetRecord(ctx context.Context, id string) (*models.ArtifactRecord, error) {
	return r.metadata.GetRecord(ctx, id)
}

// ListModels returns the records passing the filter in stable id order.
func (r *Registry) ListModels(ctx context.Context, filter *models.RecordFilter) ([]*models.ArtifactRecord, error) {
	return r.metadata.ListRecords(ctx, filter)
}

// History returns the id's metrics snapshots in append order.
func (r *Registry) History(ctx context.Context, id string) ([]*models.MetricsSnapshot, error) {
	return r.metadata.GetMetricsHistory(ctx, id)
}

// RecordMonitoring checks candidate data against the model's reference
// distribution and appends a monitoring snapshot carrying the observed
// metrics plus the drift result. thresholds may be nil to use the registry's
// configured limits.
func (r *Registry) RecordMonitoring(ctx context.Context, id string, candidate models.Dataset, observed map[string]float64, thresholds *drift.Thresholds) (report *models.DriftReport, err error) {
	start := time.Now()
	defer func() { r.observe("monitor", start, err) }()

	record, err := r.metadata.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(record.ReferenceDistribution) == 0 {
		return nil, errors.WrapError(errors.ErrNoFeatures, errors.ErrorTypeValidation,
			errors.CodeInvalidInput,
			fmt.Sprintf("Artifact %s has no reference distribution", id))
	}

	candidateSummary, err := drift.ComputeSummary(candidate)
	if err != nil {
		return nil, err
	}

	report, err = r.detector.ComputeDrift(id, record.ReferenceDistribution, candidateSummary, thresholds)
	if err != nil {
		return nil, err
	}

	values := make(map[string]float64, len(observed)+len(report.Deviations)+1)
	for name, value := range observed {
		values[name] = value
	}
	for name, deviation := range report.Deviations {
		values["drift."+name] = deviationMagnitude(deviation)
	}
	values["drift_detected"] = 0
	if report.DriftDetected {
		values["drift_detected"] = 1
	}

	snapshot := &models.MetricsSnapshot{
		ArtifactID: id,
		Timestamp:  report.Timestamp,
		Kind:       models.SnapshotMonitoring,
		Values:     values,
	}
	if err = r.metadata.AppendMetrics(ctx, id, snapshot); err != nil {
		return nil, err
	}

	if r.collector != nil && report.DriftDetected {
		r.collector.CountDrift(id)
	}

	return report, nil
}

// deviationMagnitude flattens a per-feature deviation into one number for the
// snapshot: the frequency distance for categorical features, the larger of
// the mean and std diffs otherwise.
func deviationMagnitude(d models.FeatureDeviation) float64 {
	if d.Kind == models.FeatureCategorical {
		return d.FrequencyDistance
	}
	if d.StdDiff > d.MeanDiff {
		return d.StdDiff
	}
	return d.MeanDiff
}

// TrainAndRegister runs a training engine on the dataset and registers the
// resulting artifact in one step. The engine's name becomes the artifact
// kind and the dataset itself becomes the drift reference.
func (r *Registry) TrainAndRegister(ctx context.Context, engine interfaces.Engine, data models.Dataset, target, category, dataset, version string) (*models.ArtifactRecord, error) {
	result, err := engine.Train(ctx, data, target)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInternal,
			errors.CodeInternalError, fmt.Sprintf("Engine %s failed to train", engine.Name()))
	}

	return r.RegisterModel(ctx, &RegisterRequest{
		Kind:            engine.Name(),
		ProblemCategory: category,
		DatasetName:     dataset,
		VersionLabel:    version,
		Blob:            result.Artifact,
		Parameters:      result.Parameters,
		TrainingMetrics: result.Metrics,
		ReferenceData:   data,
	})
}

// SupersedeModel registers a replacement model and marks the old record as
// superseded by it.
func (r *Registry) SupersedeModel(ctx context.Context, oldID string, req *RegisterRequest) (record *models.ArtifactRecord, err error) {
	start := time.Now()
	defer func() { r.observe("supersede", start, err) }()

	if _, err = r.metadata.GetRecord(ctx, oldID); err != nil {
		return nil, err
	}

	record, err = r.RegisterModel(ctx, req)
	if err != nil {
		return nil, err
	}

	if err = r.metadata.MarkSuperseded(ctx, oldID, record.ID); err != nil {
		return nil, err
	}

	return record, nil
}

// Exists reports whether a committed artifact is visible under id.
func (r *Registry) Exists(ctx context.Context, id string) (bool, error) {
	return r.store.Exists(ctx, id)
}
