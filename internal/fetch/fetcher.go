package fetch

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/interfaces"
	"github.com/inferloop/mlregistry/pkg/models"
)

// Config configures the integrity-verified fetcher. The asset catalog is
// configuration data: which assets exist, their URLs and their checksums are
// loaded from config files, never compiled in.
type Config struct {
	AssetsDir       string                           `json:"assets_dir" yaml:"assets_dir"`
	Assets          map[string]models.FetchableAsset `json:"assets" yaml:"assets"`
	ChunkSize       int                              `json:"chunk_size" yaml:"chunk_size"`
	VerifyAttempts  int                              `json:"verify_attempts" yaml:"verify_attempts"`
	DownloadRetries int                              `json:"download_retries" yaml:"download_retries"`
	Timeout         time.Duration                    `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns fetcher defaults with an empty catalog.
func DefaultConfig() *Config {
	return &Config{
		AssetsDir:       constants.DefaultAssetsDir,
		Assets:          make(map[string]models.FetchableAsset),
		ChunkSize:       constants.DefaultDownloadChunkSize,
		VerifyAttempts:  constants.DefaultVerifyAttempts,
		DownloadRetries: constants.DefaultDownloadRetries,
		Timeout:         constants.DefaultDownloadTimeout,
	}
}

// Fetcher downloads auxiliary artifacts and refuses to hand back a path until
// the file on disk matches its expected checksum. Each attempt streams the
// body to a temporary file in the destination directory and renames it into
// place only after the hash matches, so a canonical path never holds a
// partial or corrupt file.
type Fetcher struct {
	config   *Config
	client   *http.Client
	logger   *logrus.Logger
	progress interfaces.ProgressFunc
}

// NewFetcher creates a fetcher with the given catalog and limits.
func NewFetcher(config *Config, logger *logrus.Logger) (*Fetcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AssetsDir == "" {
		config.AssetsDir = constants.DefaultAssetsDir
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = constants.DefaultDownloadChunkSize
	}
	if config.VerifyAttempts <= 0 {
		config.VerifyAttempts = constants.DefaultVerifyAttempts
	}
	if config.DownloadRetries <= 0 {
		config.DownloadRetries = constants.DefaultDownloadRetries
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &Fetcher{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// SetProgress installs a callback invoked between chunks during downloads.
func (f *Fetcher) SetProgress(fn interfaces.ProgressFunc) {
	f.progress = fn
}

// EnsureByName resolves name in the configured catalog and ensures the asset
// is available locally.
func (f *Fetcher) EnsureByName(ctx context.Context, name string) (string, error) {
	asset, ok := f.config.Assets[name]
	if !ok {
		return "", errors.WrapError(errors.ErrAssetNotConfigured, errors.ErrorTypeConfiguration,
			errors.CodeAssetUnknown, fmt.Sprintf("Asset %s is not in the catalog", name))
	}
	return f.EnsureAvailable(ctx, &asset)
}

// EnsureAvailable returns the local path of a verified copy of the asset,
// downloading it when absent or when the existing copy fails verification.
// Every downloaded temp file is verified before it is renamed to the
// canonical path, so the canonical path never holds content failing its
// checksum; up to VerifyAttempts download-verify rounds are made before
// giving up with ErrIntegrityVerificationFailed.
func (f *Fetcher) EnsureAvailable(ctx context.Context, asset *models.FetchableAsset) (string, error) {
	if asset == nil || asset.URL == "" {
		return "", errors.NewValidationError(errors.CodeMissingField, "Asset URL is required")
	}

	localPath := asset.LocalPath
	if localPath == "" {
		localPath = filepath.Join(f.config.AssetsDir, asset.Name)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), constants.DefaultDirPerm); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to create assets directory")
	}

	log := f.logger.WithFields(logrus.Fields{
		"asset": asset.Name,
		"path":  localPath,
	})

	if _, err := os.Stat(localPath); err == nil {
		ok, err := f.verify(localPath, asset)
		if err != nil {
			return "", err
		}
		if ok {
			return localPath, nil
		}

		log.Warn("Existing asset failed verification, re-downloading")
		if err := os.Remove(localPath); err != nil {
			return "", errors.WrapError(err, errors.ErrorTypeStorage,
				errors.CodeWriteFailed, "Failed to remove corrupt asset")
		}
	}

	for attempt := 1; attempt <= f.config.VerifyAttempts; attempt++ {
		err := f.download(ctx, asset, localPath)
		if err == nil {
			return localPath, nil
		}
		// Only checksum mismatches are retried here; transfer failures have
		// their own retry budget inside download.
		if !stderrors.Is(err, errors.ErrIntegrityVerificationFailed) {
			return "", err
		}
		log.WithField("attempt", attempt).Warn("Downloaded asset failed verification")
	}

	return "", errors.WrapError(errors.ErrIntegrityVerificationFailed, errors.ErrorTypeIntegrity,
		errors.CodeIntegrityFailed,
		fmt.Sprintf("Asset %s failed verification after %d attempts", asset.Name, f.config.VerifyAttempts))
}

// download fetches the asset with bounded retries on transfer errors. Each
// attempt streams into a fresh temporary file which is verified and only then
// renamed to localPath. Checksum mismatches are not retried here; they count
// against the caller's verify budget.
func (f *Fetcher) download(ctx context.Context, asset *models.FetchableAsset, localPath string) error {
	var lastErr error

	for retry := 0; retry < f.config.DownloadRetries; retry++ {
		if retry > 0 {
			f.logger.WithFields(logrus.Fields{
				"asset": asset.Name,
				"retry": retry,
			}).Warn("Retrying asset download")
		}

		lastErr = f.downloadOnce(ctx, asset, localPath)
		if lastErr == nil {
			return nil
		}
		if stderrors.Is(lastErr, errors.ErrIntegrityVerificationFailed) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}

	return errors.WrapError(lastErr, errors.ErrorTypeTransfer,
		errors.CodeTransferAborted,
		fmt.Sprintf("Download of %s failed after %d retries", asset.Name, f.config.DownloadRetries))
}

func (f *Fetcher) downloadOnce(ctx context.Context, asset *models.FetchableAsset, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeTransfer,
			errors.CodeTransferAborted, "Failed to build download request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeTransfer,
			errors.CodeTransferAborted, "Download request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.WrapError(errors.ErrTransferAborted, errors.ErrorTypeTransfer,
			errors.CodeTransferAborted, fmt.Sprintf("Unexpected status %d for %s", resp.StatusCode, asset.URL))
	}

	// The configured size is authoritative; a contradicting Content-Length
	// aborts before any bytes hit disk.
	expected := asset.Size
	if expected > 0 && resp.ContentLength >= 0 && resp.ContentLength != expected {
		return errors.WrapError(errors.ErrTransferAborted, errors.ErrorTypeTransfer,
			errors.CodeSizeMismatch,
			fmt.Sprintf("Server announced %d bytes, expected %d", resp.ContentLength, expected))
	}
	if expected <= 0 {
		expected = resp.ContentLength
	}

	tmpPath := filepath.Join(filepath.Dir(localPath), ".partial-"+uuid.NewString())
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, constants.DefaultFilePerm)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to create partial download file")
	}

	written, err := f.copyChunks(ctx, tmp, resp.Body, expected)
	if cerr := tmp.Close(); cerr != nil && err == nil {
		err = errors.WrapError(cerr, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to close partial download file")
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if expected >= 0 && written != expected {
		os.Remove(tmpPath)
		return errors.WrapError(errors.ErrTransferAborted, errors.ErrorTypeTransfer,
			errors.CodeSizeMismatch,
			fmt.Sprintf("Downloaded %d bytes, expected %d", written, expected))
	}

	// Verify before promoting so the canonical path never holds bytes that
	// fail their checksum.
	ok, err := f.verify(tmpPath, asset)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	if !ok {
		os.Remove(tmpPath)
		return errors.WrapError(errors.ErrIntegrityVerificationFailed, errors.ErrorTypeIntegrity,
			errors.CodeIntegrityFailed,
			fmt.Sprintf("Downloaded asset %s failed checksum verification", asset.Name))
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeWriteFailed, "Failed to promote downloaded asset")
	}

	f.logger.WithFields(logrus.Fields{
		"asset": asset.Name,
		"bytes": written,
	}).Info("Downloaded asset")

	return nil
}

// copyChunks streams body to dst in fixed-size chunks, checking for
// cancellation and reporting progress between chunks. When the expected total
// is known, exceeding it aborts immediately instead of writing to the end.
func (f *Fetcher) copyChunks(ctx context.Context, dst io.Writer, body io.Reader, expected int64) (int64, error) {
	buf := make([]byte, f.config.ChunkSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, errors.WrapError(ctx.Err(), errors.ErrorTypeTransfer,
				errors.CodeTransferAborted, "Download cancelled")
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, errors.WrapError(err, errors.ErrorTypeStorage,
					errors.CodeWriteFailed, "Failed to write download chunk")
			}
			written += int64(n)

			if expected >= 0 && written > expected {
				return written, errors.WrapError(errors.ErrTransferAborted, errors.ErrorTypeTransfer,
					errors.CodeSizeMismatch,
					fmt.Sprintf("Download exceeded expected size of %d bytes", expected))
			}

			if f.progress != nil {
				f.progress(written, expected)
			}
		}

		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, errors.WrapError(readErr, errors.ErrorTypeTransfer,
				errors.CodeTransferAborted, "Failed to read download stream")
		}
	}
}

// verify streams the file through the asset's checksum algorithm and compares
// hex digests case-insensitively. Assets without a checksum are accepted with
// a warning.
func (f *Fetcher) verify(path string, asset *models.FetchableAsset) (bool, error) {
	if asset.Checksum == "" {
		f.logger.WithField("asset", asset.Name).Warn("Asset has no checksum, skipping verification")
		return true, nil
	}

	hasher, err := newHasher(asset.ChecksumAlgorithm)
	if err != nil {
		return false, err
	}

	file, err := os.Open(path)
	if err != nil {
		return false, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to open asset for verification")
	}
	defer file.Close()

	if _, err := io.Copy(hasher, file); err != nil {
		return false, errors.WrapError(err, errors.ErrorTypeStorage,
			errors.CodeReadFailed, "Failed to hash asset")
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	return strings.EqualFold(actual, asset.Checksum), nil
}

func newHasher(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case constants.ChecksumMD5, "":
		return md5.New(), nil
	case constants.ChecksumSHA256:
		return sha256.New(), nil
	default:
		return nil, errors.NewValidationError(errors.CodeInvalidFormat,
			fmt.Sprintf("Unsupported checksum algorithm: %s", algorithm))
	}
}
