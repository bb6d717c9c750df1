package metadata

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/models"
)

// InfluxConfig configures the InfluxDB snapshot mirror.
type InfluxConfig struct {
	URL         string `json:"url" yaml:"url"`
	Token       string `json:"token" yaml:"token"`
	Org         string `json:"org" yaml:"org"`
	Bucket      string `json:"bucket" yaml:"bucket"`
	Measurement string `json:"measurement" yaml:"measurement"`
}

// InfluxSink mirrors appended metrics snapshots into InfluxDB so trends can
// be charted without replaying the per-artifact logs.
type InfluxSink struct {
	config   *InfluxConfig
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *logrus.Logger
}

// NewInfluxSink creates a snapshot sink backed by InfluxDB.
func NewInfluxSink(config *InfluxConfig, logger *logrus.Logger) (*InfluxSink, error) {
	if config == nil || config.URL == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "InfluxDB URL is required")
	}

	if config.Bucket == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "InfluxDB bucket is required")
	}

	if config.Measurement == "" {
		config.Measurement = constants.DefaultInfluxMeasurement
	}

	if logger == nil {
		logger = logrus.New()
	}

	client := influxdb2.NewClient(config.URL, config.Token)

	return &InfluxSink{
		config:   config,
		client:   client,
		writeAPI: client.WriteAPIBlocking(config.Org, config.Bucket),
		logger:   logger,
	}, nil
}

// WriteSnapshot writes one snapshot as an InfluxDB point. Values become
// fields; the artifact id and snapshot kind become tags.
func (s *InfluxSink) WriteSnapshot(ctx context.Context, snapshot *models.MetricsSnapshot) error {
	if len(snapshot.Values) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(snapshot.Values))
	for name, value := range snapshot.Values {
		fields[name] = value
	}

	point := influxdb2.NewPoint(
		s.config.Measurement,
		map[string]string{
			"artifact_id": snapshot.ArtifactID,
			"kind":        string(snapshot.Kind),
		},
		fields,
		snapshot.Timestamp,
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, fmt.Sprintf("Failed to mirror snapshot for %s", snapshot.ArtifactID))
	}

	return nil
}

// Close releases the InfluxDB client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
