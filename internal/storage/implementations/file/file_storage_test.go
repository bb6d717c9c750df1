package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/models"
)

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	storage, err := NewFileStorage(&Config{BasePath: t.TempDir()}, nil)
	require.NoError(t, err)
	return storage
}

func testMetadata(id string) *models.ArtifactMetadata {
	return &models.ArtifactMetadata{
		ID:              id,
		Kind:            "gbm",
		ProblemCategory: "regression",
		DatasetName:     "sales",
		VersionLabel:    "v1",
		CreatedAt:       time.Now().UTC(),
	}
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	blob := []byte("serialized model bytes")
	path, err := storage.Save(ctx, "m1", bytes.NewReader(blob), testMetadata("m1"))
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	loaded, metadata, err := storage.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, blob, loaded)
	assert.Equal(t, "m1", metadata.ID)
	assert.Equal(t, "gbm", metadata.Kind)
}

func TestSaveDuplicateID(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	_, err := storage.Save(ctx, "m1", bytes.NewReader([]byte("a")), testMetadata("m1"))
	require.NoError(t, err)

	_, err = storage.Save(ctx, "m1", bytes.NewReader([]byte("b")), testMetadata("m1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateID)

	// The original blob is untouched.
	loaded, _, err := storage.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), loaded)
}

func TestLoadNotFound(t *testing.T) {
	storage := newTestStorage(t)

	_, _, err := storage.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLoadCorruptMetadata(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	_, err := storage.Save(ctx, "m1", bytes.NewReader([]byte("a")), testMetadata("m1"))
	require.NoError(t, err)

	metadataPath := filepath.Join(storage.config.BasePath, "m1", constants.ArtifactMetadataFile)
	require.NoError(t, os.WriteFile(metadataPath, []byte("{not json"), 0644))

	_, _, err = storage.Load(ctx, "m1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCorruptMetadata)
	assert.NotErrorIs(t, err, errors.ErrNotFound)
}

func TestInterruptedWriteLeavesNothingVisible(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	// Simulate a crash between the blob rename and the metadata rename: the
	// id directory holds a blob and a stray temp file but no metadata.json.
	dir := filepath.Join(storage.config.BasePath, "m1")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.ArtifactBlobFile), []byte("partial"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-meta-abc"), []byte("{}"), 0644))

	exists, err := storage.Exists(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = storage.Load(ctx, "m1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// A fresh save over the leftovers succeeds and becomes visible.
	_, err = storage.Save(ctx, "m1", bytes.NewReader([]byte("complete")), testMetadata("m1"))
	require.NoError(t, err)

	exists, err = storage.Exists(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteRemovesArtifact(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	_, err := storage.Save(ctx, "m1", bytes.NewReader([]byte("a")), testMetadata("m1"))
	require.NoError(t, err)

	require.NoError(t, storage.Delete(ctx, "m1"))

	exists, err := storage.Exists(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewFileStorageRequiresBasePath(t *testing.T) {
	_, err := NewFileStorage(&Config{}, nil)
	require.Error(t, err)

	_, err = NewFileStorage(nil, nil)
	require.Error(t, err)
}
