package storage

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/interfaces"
)

func TestCreateFileStorage(t *testing.T) {
	factory := NewFactory(nil)

	store, err := factory.CreateStorage(constants.StorageTypeFile, map[string]interface{}{
		"base_path": t.TempDir(),
	})
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestCreateUnsupportedType(t *testing.T) {
	factory := NewFactory(nil)

	_, err := factory.CreateStorage("carrier-pigeon", nil)
	require.Error(t, err)
}

func TestRegisterCustomBackend(t *testing.T) {
	factory := NewFactory(nil)

	err := factory.RegisterBackend("custom", func(settings map[string]interface{}, logger *logrus.Logger) (interfaces.ArtifactStore, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Contains(t, factory.SupportedTypes(), "custom")

	assert.Error(t, factory.RegisterBackend("", nil))
	assert.Error(t, factory.RegisterBackend("x", nil))
}

func TestSupportedTypesIncludeDefaults(t *testing.T) {
	factory := NewFactory(nil)

	types := factory.SupportedTypes()
	assert.Contains(t, types, constants.StorageTypeFile)
	assert.Contains(t, types, constants.StorageTypeS3)
}
