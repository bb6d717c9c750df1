package models

import (
	"time"
)

// ArtifactMetadata is the metadata document persisted beside the blob inside
// an artifact's versioned directory. The registry stores and returns it
// verbatim; it never interprets Parameters.
type ArtifactMetadata struct {
	ID              string                 `json:"id"`
	Kind            string                 `json:"kind"`
	ProblemCategory string                 `json:"problem_category"`
	DatasetName     string                 `json:"dataset_name"`
	VersionLabel    string                 `json:"version_label"`
	CreatedAt       time.Time              `json:"created_at"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
}

// ArtifactRecord is the registry's view of one registered artifact. Created
// exactly once at registration time and immutable afterwards except for the
// SupersededBy marker.
type ArtifactRecord struct {
	ID                    string                     `json:"id"`
	Kind                  string                     `json:"kind"`
	KindName              string                     `json:"kind_name,omitempty"`
	ProblemCategory       string                     `json:"problem_category"`
	ProblemCategoryName   string                     `json:"problem_category_name,omitempty"`
	DatasetName           string                     `json:"dataset_name"`
	VersionLabel          string                     `json:"version_label"`
	CreatedAt             time.Time                  `json:"created_at"`
	StoragePath           string                     `json:"storage_path"`
	Parameters            map[string]interface{}     `json:"parameters,omitempty"`
	ReferenceDistribution FeatureDistributionSummary `json:"reference_distribution,omitempty"`
	SupersededBy          string                     `json:"superseded_by,omitempty"`
}

// Metadata projects the record onto the artifact-store metadata document.
func (r *ArtifactRecord) Metadata() *ArtifactMetadata {
	return &ArtifactMetadata{
		ID:              r.ID,
		Kind:            r.Kind,
		ProblemCategory: r.ProblemCategory,
		DatasetName:     r.DatasetName,
		VersionLabel:    r.VersionLabel,
		CreatedAt:       r.CreatedAt,
		Parameters:      r.Parameters,
	}
}

// SnapshotKind distinguishes training-time from monitoring-time snapshots.
type SnapshotKind string

const (
	SnapshotTraining   SnapshotKind = "training"
	SnapshotMonitoring SnapshotKind = "monitoring"
)

// MetricsSnapshot is one point-in-time metrics observation for an artifact.
// Snapshots are append-only; none are ever mutated or deleted.
type MetricsSnapshot struct {
	ArtifactID string             `json:"artifact_id"`
	Timestamp  time.Time          `json:"timestamp"`
	Kind       SnapshotKind       `json:"kind"`
	Values     map[string]float64 `json:"values"`
}

// RecordFilter selects records in list operations. Zero-value fields match
// everything.
type RecordFilter struct {
	Kind              string `json:"kind,omitempty"`
	ProblemCategory   string `json:"problem_category,omitempty"`
	DatasetName       string `json:"dataset_name,omitempty"`
	IncludeSuperseded bool   `json:"include_superseded,omitempty"`
}

// Matches reports whether the record passes the filter.
func (f *RecordFilter) Matches(r *ArtifactRecord) bool {
	if f == nil {
		return true
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.ProblemCategory != "" && r.ProblemCategory != f.ProblemCategory {
		return false
	}
	if f.DatasetName != "" && r.DatasetName != f.DatasetName {
		return false
	}
	if !f.IncludeSuperseded && r.SupersededBy != "" {
		return false
	}
	return true
}

// FetchableAsset describes one auxiliary artifact provisioned by the
// integrity-verified fetcher. Which assets exist is configuration data, never
// code (the checksum table lives in config files, not literals).
type FetchableAsset struct {
	Name              string `json:"name"`
	URL               string `json:"url"`
	Checksum          string `json:"checksum"`
	ChecksumAlgorithm string `json:"checksum_algorithm"`
	Size              int64  `json:"size"`
	LocalPath         string `json:"local_path"`
}
