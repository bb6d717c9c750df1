package metadata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/models"
)

// CacheConfig configures the Redis record cache.
type CacheConfig struct {
	Address   string        `json:"address" yaml:"address"`
	Password  string        `json:"password,omitempty" yaml:"password,omitempty"`
	Database  int           `json:"database" yaml:"database"`
	KeyPrefix string        `json:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"`
}

// RecordCache is a read-through cache for artifact records. Records are
// immutable apart from the superseded marker, so cached entries only go stale
// across that one transition and the TTL bounds the staleness window.
type RecordCache struct {
	config *CacheConfig
	client *redis.Client
	logger *logrus.Logger
}

// NewRecordCache creates a Redis-backed record cache and verifies the
// connection.
func NewRecordCache(ctx context.Context, config *CacheConfig, logger *logrus.Logger) (*RecordCache, error) {
	if config == nil || config.Address == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "Redis address is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "mlreg:record:"
	}
	if config.TTL <= 0 {
		config.TTL = constants.DefaultCacheTTL
	}

	if logger == nil {
		logger = logrus.New()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.Database,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeConnectionFailed, "Failed to connect to Redis")
	}

	logger.WithField("address", config.Address).Info("Connected record cache")

	return &RecordCache{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

func (c *RecordCache) key(id string) string {
	return c.config.KeyPrefix + id
}

// Get returns the cached record for id, if present. Cache failures are
// treated as misses so the store always falls back to disk.
func (c *RecordCache) Get(ctx context.Context, id string) (*models.ArtifactRecord, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("artifact_id", id).Debug("Record cache read failed")
		}
		return nil, false
	}

	var record models.ArtifactRecord
	if err := json.Unmarshal(data, &record); err != nil {
		c.logger.WithError(err).WithField("artifact_id", id).Warn("Evicting undecodable cache entry")
		c.client.Del(ctx, c.key(id))
		return nil, false
	}

	return &record, true
}

// Set stores the record under its id with the configured TTL.
func (c *RecordCache) Set(ctx context.Context, record *models.ArtifactRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		c.logger.WithError(err).WithField("artifact_id", record.ID).Warn("Failed to encode record for cache")
		return
	}

	if err := c.client.Set(ctx, c.key(record.ID), data, c.config.TTL).Err(); err != nil {
		c.logger.WithError(err).WithField("artifact_id", record.ID).Debug("Record cache write failed")
	}
}

// Invalidate drops the cached record for id.
func (c *RecordCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.WithError(err).WithField("artifact_id", id).Debug("Record cache delete failed")
	}
}

// Close releases the Redis connection.
func (c *RecordCache) Close() error {
	return c.client.Close()
}
