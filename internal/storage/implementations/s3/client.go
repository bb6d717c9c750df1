package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/models"
)

// Config holds configuration for S3 artifact storage.
type Config struct {
	Region          string        `json:"region" yaml:"region"`
	Bucket          string        `json:"bucket" yaml:"bucket"`
	AccessKeyID     string        `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string        `json:"session_token,omitempty" yaml:"session_token,omitempty"`
	Endpoint        string        `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ForcePathStyle  bool          `json:"force_path_style" yaml:"force_path_style"`
	DisableSSL      bool          `json:"disable_ssl" yaml:"disable_ssl"`
	Prefix          string        `json:"prefix" yaml:"prefix"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries      int           `json:"max_retries" yaml:"max_retries"`
	PartSize        int64         `json:"part_size" yaml:"part_size"`
}

// S3Storage implements interfaces.ArtifactStore on AWS S3 or an S3-compatible
// endpoint. S3 PutObject is atomic per key, so the blob is uploaded first and
// the metadata document last: the metadata key is the commit marker, exactly
// as in the filesystem store.
type S3Storage struct {
	config     *Config
	s3Client   *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	logger     *logrus.Logger
	mu         sync.Mutex
}

// NewS3Storage creates a new S3 artifact store.
func NewS3Storage(config *Config, logger *logrus.Logger) (*S3Storage, error) {
	if config == nil {
		return nil, errors.NewStorageError("INVALID_CONFIG", "S3 config cannot be nil")
	}

	if config.Bucket == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "S3 bucket is required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &S3Storage{
		config: config,
		logger: logger,
	}, nil
}

// Connect establishes the AWS session. Safe to call more than once.
func (s *S3Storage) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.s3Client != nil {
		return nil
	}

	awsConfig := &aws.Config{
		Region:     aws.String(s.config.Region),
		MaxRetries: aws.Int(s.config.MaxRetries),
	}

	if s.config.AccessKeyID != "" && s.config.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			s.config.AccessKeyID,
			s.config.SecretAccessKey,
			s.config.SessionToken,
		)
	}

	if s.config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(s.config.ForcePathStyle)
	}

	if s.config.DisableSSL {
		awsConfig.DisableSSL = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeConnectionFailed, "Failed to create AWS session")
	}

	s.s3Client = s3.New(sess)
	s.uploader = s3manager.NewUploader(sess)
	s.downloader = s3manager.NewDownloader(sess)

	if s.config.PartSize > 0 {
		s.uploader.PartSize = s.config.PartSize
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": s.config.Bucket,
		"region": s.config.Region,
	}).Info("Connected to S3")

	return nil
}

func (s *S3Storage) blobKey(id string) string {
	return path.Join(s.config.Prefix, id, constants.ArtifactBlobFile)
}

func (s *S3Storage) metadataKey(id string) string {
	return path.Join(s.config.Prefix, id, constants.ArtifactMetadataFile)
}

// Save uploads the blob and then the metadata document for id.
func (s *S3Storage) Save(ctx context.Context, id string, blob io.Reader, metadata *models.ArtifactMetadata) (string, error) {
	if err := s.Connect(ctx); err != nil {
		return "", err
	}

	exists, err := s.Exists(ctx, id)
	if err != nil {
		return "", err
	}
	if exists {
		return "", errors.WrapError(errors.ErrDuplicateID, errors.ErrorTypeRegistry,
			errors.CodeDuplicateID, fmt.Sprintf("Artifact %s already exists", id))
	}

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(s.blobKey(id)),
		Body:        blob,
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to upload artifact blob")
	}

	doc, err := json.Marshal(metadata)
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to encode artifact metadata")
	}

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(s.metadataKey(id)),
		Body:        bytes.NewReader(doc),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to upload artifact metadata")
	}

	storagePath := fmt.Sprintf("s3://%s/%s", s.config.Bucket, path.Join(s.config.Prefix, id))

	s.logger.WithFields(logrus.Fields{
		"artifact_id": id,
		"path":        storagePath,
	}).Info("Stored artifact in S3")

	return storagePath, nil
}

// Load downloads the metadata document and blob for id.
func (s *S3Storage) Load(ctx context.Context, id string) ([]byte, *models.ArtifactMetadata, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, nil, err
	}

	doc, err := s.download(ctx, s.metadataKey(id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil, errors.WrapError(errors.ErrNotFound, errors.ErrorTypeRegistry,
				errors.CodeNotFound, fmt.Sprintf("Artifact %s not found", id))
		}
		return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to download artifact metadata")
	}

	var metadata models.ArtifactMetadata
	if err := json.Unmarshal(doc, &metadata); err != nil {
		return nil, nil, errors.WrapError(errors.ErrCorruptMetadata, errors.ErrorTypeRegistry,
			errors.CodeCorruptMetadata, fmt.Sprintf("Metadata for artifact %s does not parse", id))
	}

	blob, err := s.download(ctx, s.blobKey(id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil, errors.WrapError(errors.ErrNotFound, errors.ErrorTypeRegistry,
				errors.CodeNotFound, fmt.Sprintf("Blob for artifact %s not found", id))
		}
		return nil, nil, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to download artifact blob")
	}

	return blob, &metadata, nil
}

func (s *S3Storage) download(ctx context.Context, key string) ([]byte, error) {
	buf := aws.NewWriteAtBuffer(nil)
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Exists checks for the metadata commit marker.
func (s *S3Storage) Exists(ctx context.Context, id string) (bool, error) {
	if err := s.Connect(ctx); err != nil {
		return false, err
	}

	_, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.metadataKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to head artifact metadata")
	}

	return true, nil
}

// Delete removes both objects for id.
func (s *S3Storage) Delete(ctx context.Context, id string) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}

	for _, key := range []string{s.metadataKey(id), s.blobKey(id)} {
		_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(key),
		})
		if err != nil && !isNotFound(err) {
			return errors.WrapError(err, errors.ErrorTypeStorage,
				errors.CodeWriteFailed, fmt.Sprintf("Failed to delete %s", key))
		}
	}

	s.logger.WithField("artifact_id", id).Info("Deleted artifact from S3")
	return nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
