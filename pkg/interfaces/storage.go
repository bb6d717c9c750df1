package interfaces

import (
	"context"
	"io"

	"github.com/inferloop/mlregistry/pkg/models"
)

// ArtifactStore persists opaque artifact blobs and their metadata documents
// under a versioned directory (or key prefix) named by artifact id. A saved
// artifact is either fully visible or not visible at all; implementations
// must never expose a partially written blob or metadata document.
type ArtifactStore interface {
	// Save writes the blob and then the metadata document for id and returns
	// the storage path. It fails with ErrDuplicateID when the id already has a
	// visible artifact; committed artifacts are never overwritten in place.
	Save(ctx context.Context, id string, blob io.Reader, metadata *models.ArtifactMetadata) (string, error)

	// Load returns the blob and metadata for id. It fails with ErrNotFound
	// when the id's directory or metadata document is absent and with
	// ErrCorruptMetadata when the metadata document exists but does not parse.
	Load(ctx context.Context, id string) ([]byte, *models.ArtifactMetadata, error)

	// Exists reports whether a fully committed artifact is visible under id.
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes the artifact directory for id. Used by the facade to
	// roll back after a failed registration.
	Delete(ctx context.Context, id string) error
}

// MetadataStore owns artifact records and their append-only metrics history.
type MetadataStore interface {
	// Register performs the first write for a record. It is the registry's
	// serialization point: exactly one of two concurrent Register calls for
	// the same id succeeds, the other fails with ErrDuplicateID.
	Register(ctx context.Context, record *models.ArtifactRecord) error

	// AppendMetrics appends a snapshot to the id's history. It never
	// overwrites prior snapshots and fails with ErrUnknownArtifact when the
	// id was never registered.
	AppendMetrics(ctx context.Context, id string, snapshot *models.MetricsSnapshot) error

	// GetRecord returns the record for id or ErrNotFound.
	GetRecord(ctx context.Context, id string) (*models.ArtifactRecord, error)

	// GetMetricsHistory returns the id's snapshots in append order, which is
	// non-decreasing timestamp order.
	GetMetricsHistory(ctx context.Context, id string) ([]*models.MetricsSnapshot, error)

	// ListRecords returns the records passing the filter in a stable order,
	// without duplicates or omissions.
	ListRecords(ctx context.Context, filter *models.RecordFilter) ([]*models.ArtifactRecord, error)

	// MarkSuperseded records that newID replaces id. The superseded marker is
	// the only permitted mutation of a registered record.
	MarkSuperseded(ctx context.Context, id, newID string) error
}

// ArtifactStoreCreateFunc creates an artifact store from backend-specific
// configuration. Used by the storage factory.
type ArtifactStoreCreateFunc func(config map[string]interface{}) (ArtifactStore, error)
