package storage

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/internal/storage/implementations/file"
	"github.com/inferloop/mlregistry/internal/storage/implementations/s3"
	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/interfaces"
)

// CreateFunc builds an artifact store from backend-specific settings.
type CreateFunc func(settings map[string]interface{}, logger *logrus.Logger) (interfaces.ArtifactStore, error)

// Factory creates artifact store backends by name.
type Factory struct {
	creators map[string]CreateFunc
	mu       sync.RWMutex
	logger   *logrus.Logger
}

// NewFactory creates a storage factory with the built-in backends registered.
func NewFactory(logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}

	factory := &Factory{
		creators: make(map[string]CreateFunc),
		logger:   logger,
	}
	factory.registerDefaults()

	return factory
}

// CreateStorage creates a new artifact store instance.
func (f *Factory) CreateStorage(storageType string, settings map[string]interface{}) (interfaces.ArtifactStore, error) {
	f.mu.RLock()
	createFunc, exists := f.creators[storageType]
	f.mu.RUnlock()

	if !exists {
		return nil, errors.WrapError(errors.ErrStorageNotFound, errors.ErrorTypeStorage,
			"UNSUPPORTED_TYPE", fmt.Sprintf("Storage type '%s' is not supported", storageType))
	}

	store, err := createFunc(settings, f.logger)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage,
			"CREATION_FAILED", fmt.Sprintf("Failed to create %s storage", storageType))
	}

	f.logger.WithField("storage_type", storageType).Info("Created artifact store")
	return store, nil
}

// RegisterBackend registers a storage backend under a name, replacing any
// previous registration.
func (f *Factory) RegisterBackend(storageType string, createFunc CreateFunc) error {
	if storageType == "" {
		return errors.NewStorageError("INVALID_TYPE", "Storage type cannot be empty")
	}
	if createFunc == nil {
		return errors.NewStorageError("INVALID_CREATE_FUNC", "Create function cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[storageType] = createFunc

	return nil
}

// SupportedTypes returns all registered backend names.
func (f *Factory) SupportedTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.creators))
	for storageType := range f.creators {
		types = append(types, storageType)
	}
	return types
}

func (f *Factory) registerDefaults() {
	f.creators[constants.StorageTypeFile] = func(settings map[string]interface{}, logger *logrus.Logger) (interfaces.ArtifactStore, error) {
		return file.NewFileStorage(&file.Config{
			BasePath: stringSetting(settings, "base_path", ""),
		}, logger)
	}

	f.creators[constants.StorageTypeS3] = func(settings map[string]interface{}, logger *logrus.Logger) (interfaces.ArtifactStore, error) {
		return s3.NewS3Storage(&s3.Config{
			Region:          stringSetting(settings, "region", "us-east-1"),
			Bucket:          stringSetting(settings, "bucket", ""),
			AccessKeyID:     stringSetting(settings, "access_key_id", ""),
			SecretAccessKey: stringSetting(settings, "secret_access_key", ""),
			Endpoint:        stringSetting(settings, "endpoint", ""),
			ForcePathStyle:  boolSetting(settings, "force_path_style", false),
			Prefix:          stringSetting(settings, "prefix", "models"),
			MaxRetries:      intSetting(settings, "max_retries", 3),
		}, logger)
	}
}

func stringSetting(settings map[string]interface{}, key, fallback string) string {
	if v, ok := settings[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func boolSetting(settings map[string]interface{}, key string, fallback bool) bool {
	if v, ok := settings[key].(bool); ok {
		return v
	}
	return fallback
}

func intSetting(settings map[string]interface{}, key string, fallback int) int {
	switch v := settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}
