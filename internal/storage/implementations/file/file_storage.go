package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/models"
)

// Config holds configuration for filesystem artifact storage.
type Config struct {
	BasePath string `json:"base_path" yaml:"base_path"`
}

// FileStorage implements interfaces.ArtifactStore on a local filesystem.
//
// Layout: one directory per artifact id containing the blob (model.bin) and
// the metadata document (metadata.json). Both are written to temporary names
// inside the id directory and renamed into place, blob first, metadata last:
// the metadata rename is the commit point, so a crash at any earlier step
// leaves only discardable temp files and no visible artifact. Renames stay
// within the id directory, so they never cross a filesystem boundary.
type FileStorage struct {
	config *Config
	logger *logrus.Logger
}

// NewFileStorage creates a filesystem artifact store rooted at BasePath.
func NewFileStorage(config *Config, logger *logrus.Logger) (*FileStorage, error) {
	if config == nil || config.BasePath == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "File storage base path is required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	if err := os.MkdirAll(config.BasePath, constants.DefaultDirPerm); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to create storage directory")
	}

	return &FileStorage{
		config: config,
		logger: logger,
	}, nil
}

// Save writes the blob and then the metadata document for id, each through a
// temp-file-plus-rename step.
func (fs *FileStorage) Save(ctx context.Context, id string, blob io.Reader, metadata *models.ArtifactMetadata) (string, error) {
	dir := filepath.Join(fs.config.BasePath, id)
	metadataPath := filepath.Join(dir, constants.ArtifactMetadataFile)

	if _, err := os.Stat(metadataPath); err == nil {
		return "", errors.WrapError(errors.ErrDuplicateID, errors.ErrorTypeRegistry,
			errors.CodeDuplicateID, fmt.Sprintf("Artifact %s already exists", id))
	}

	if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to create artifact directory")
	}

	if err := fs.writeBlob(dir, blob); err != nil {
		return "", err
	}

	// Metadata is committed after the blob; its rename makes the artifact
	// visible.
	if err := fs.writeMetadata(dir, metadata); err != nil {
		return "", err
	}

	fs.logger.WithFields(logrus.Fields{
		"artifact_id": id,
		"path":        dir,
	}).Info("Stored artifact")

	return dir, nil
}

func (fs *FileStorage) writeBlob(dir string, blob io.Reader) error {
	tmpPath := filepath.Join(dir, ".tmp-blob-"+uuid.NewString())

	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, constants.DefaultFilePerm)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to create temporary blob file")
	}

	if _, err := io.Copy(tmp, blob); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to write artifact blob")
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to sync artifact blob")
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to close artifact blob")
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, constants.ArtifactBlobFile)); err != nil {
		os.Remove(tmpPath)
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to promote artifact blob")
	}

	return nil
}

func (fs *FileStorage) writeMetadata(dir string, metadata *models.ArtifactMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to encode artifact metadata")
	}

	tmpPath := filepath.Join(dir, ".tmp-meta-"+uuid.NewString())
	if err := os.WriteFile(tmpPath, data, constants.DefaultFilePerm); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to write temporary metadata file")
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, constants.ArtifactMetadataFile)); err != nil {
		os.Remove(tmpPath)
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to promote artifact metadata")
	}

	return nil
}

// Load returns the blob and metadata for id, distinguishing NotFound from
// CorruptMetadata so callers can fall back on the former but not the latter.
func (fs *FileStorage) Load(ctx context.Context, id string) ([]byte, *models.ArtifactMetadata, error) {
	dir := filepath.Join(fs.config.BasePath, id)

	data, err := os.ReadFile(filepath.Join(dir, constants.ArtifactMetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.WrapError(errors.ErrNotFound, errors.ErrorTypeRegistry,
				errors.CodeNotFound, fmt.Sprintf("Artifact %s not found", id))
		}
		return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to read artifact metadata")
	}

	var metadata models.ArtifactMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, nil, errors.WrapError(errors.ErrCorruptMetadata, errors.ErrorTypeRegistry,
			errors.CodeCorruptMetadata, fmt.Sprintf("Metadata for artifact %s does not parse", id))
	}

	blob, err := os.ReadFile(filepath.Join(dir, constants.ArtifactBlobFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.WrapError(errors.ErrNotFound, errors.ErrorTypeRegistry,
				errors.CodeNotFound, fmt.Sprintf("Blob for artifact %s not found", id))
		}
		return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to read artifact blob")
	}

	return blob, &metadata, nil
}

// Exists reports whether a committed artifact is visible under id. The
// metadata document is the commit marker; temp files do not count.
func (fs *FileStorage) Exists(ctx context.Context, id string) (bool, error) {
	_, err := os.Stat(filepath.Join(fs.config.BasePath, id, constants.ArtifactMetadataFile))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.WrapError(err, errors.ErrorTypeStorage,
		errors.CodeReadFailed, "Failed to stat artifact metadata")
}

// Delete removes the artifact directory for id.
func (fs *FileStorage) Delete(ctx context.Context, id string) error {
	dir := filepath.Join(fs.config.BasePath, id)
	if err := os.RemoveAll(dir); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to delete artifact directory")
	}

	fs.logger.WithField("artifact_id", id).Info("Deleted artifact")
	return nil
}
