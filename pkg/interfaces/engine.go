package interfaces

import (
	"context"

	"github.com/inferloop/mlregistry/pkg/models"
)

// TrainResult is what a training engine hands back to the registry: an opaque
// serialized artifact plus the parameter and metric mappings to store
// verbatim.
type TrainResult struct {
	Artifact   []byte                 `json:"-"`
	Metrics    map[string]float64     `json:"metrics"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Engine is the capability interface for an underlying model engine. The
// registry depends only on this interface and the opaque blobs it produces,
// never on an engine's internal model representation. One implementation
// exists per engine (H2O, scikit-learn bridge, ...), all outside this module.
type Engine interface {
	// Name identifies the engine (used as the artifact kind prefix).
	Name() string

	// Train fits a model on the dataset for the given target column.
	Train(ctx context.Context, data models.Dataset, target string) (*TrainResult, error)

	// Predict scores the dataset with a previously trained artifact.
	Predict(ctx context.Context, artifact []byte, data models.Dataset) ([]float64, error)

	// Evaluate computes engine-native metrics of the artifact on the dataset.
	Evaluate(ctx context.Context, artifact []byte, data models.Dataset, target string) (map[string]float64, error)

	// Save serializes the artifact to path in the engine's native format.
	Save(ctx context.Context, artifact []byte, path string) error

	// Load deserializes an artifact previously written by Save.
	Load(ctx context.Context, path string) ([]byte, error)
}
