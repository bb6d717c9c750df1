package fetch

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/models"
)

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	config := DefaultConfig()
	config.AssetsDir = t.TempDir()
	fetcher, err := NewFetcher(config, nil)
	require.NoError(t, err)
	return fetcher
}

func TestEnsureAvailableDownloadsAndVerifies(t *testing.T) {
	body := []byte("pretrained model weights")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)

	var lastDownloaded int64
	fetcher.SetProgress(func(downloaded, total int64) {
		lastDownloaded = downloaded
	})

	path, err := fetcher.EnsureAvailable(context.Background(), &models.FetchableAsset{
		Name:              "weights.bin",
		URL:               server.URL,
		Checksum:          md5Hex(body),
		ChecksumAlgorithm: "md5",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, data)
	assert.Equal(t, int64(len(body)), lastDownloaded)
}

func TestEnsureAvailableSHA256CaseInsensitive(t *testing.T) {
	body := []byte("sha asset")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)

	_, err := fetcher.EnsureAvailable(context.Background(), &models.FetchableAsset{
		Name:              "asset.bin",
		URL:               server.URL,
		Checksum:          strings.ToUpper(sha256Hex(body)),
		ChecksumAlgorithm: "sha256",
	})
	require.NoError(t, err)
}

func TestEnsureAvailableSkipsDownloadWhenValid(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("fresh"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)

	body := []byte("already here")
	localPath := filepath.Join(fetcher.config.AssetsDir, "cached.bin")
	require.NoError(t, os.WriteFile(localPath, body, 0644))

	path, err := fetcher.EnsureAvailable(context.Background(), &models.FetchableAsset{
		Name:              "cached.bin",
		URL:               server.URL,
		Checksum:          md5Hex(body),
		ChecksumAlgorithm: "md5",
	})
	require.NoError(t, err)
	assert.Equal(t, localPath, path)
	assert.Zero(t, requests, "valid local copy must not trigger a download")
}

func TestEnsureAvailableReplacesCorruptCopy(t *testing.T) {
	body := []byte("good content")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)

	localPath := filepath.Join(fetcher.config.AssetsDir, "model.bin")
	require.NoError(t, os.WriteFile(localPath, []byte("tampered"), 0644))

	path, err := fetcher.EnsureAvailable(context.Background(), &models.FetchableAsset{
		Name:              "model.bin",
		URL:               server.URL,
		Checksum:          md5Hex(body),
		ChecksumAlgorithm: "md5",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestEnsureAvailablePersistentMismatchFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("never matches"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)

	_, err := fetcher.EnsureAvailable(context.Background(), &models.FetchableAsset{
		Name:              "bad.bin",
		URL:               server.URL,
		Checksum:          md5Hex([]byte("expected content")),
		ChecksumAlgorithm: "md5",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIntegrityVerificationFailed)

	// No file under the canonical path and no leftover partials.
	entries, readErr := os.ReadDir(fetcher.config.AssetsDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestEnsureAvailableNeverPromotesUnverifiedBytes(t *testing.T) {
	fetcher := newTestFetcher(t)
	localPath := filepath.Join(fetcher.config.AssetsDir, "claimed.bin")

	// The server checks whether a previous corrupt response ever became
	// visible under the canonical path.
	var canonicalSeen bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(localPath); err == nil {
			canonicalSeen = true
		}
		w.Write([]byte("corrupt payload"))
	}))
	defer server.Close()

	_, err := fetcher.EnsureAvailable(context.Background(), &models.FetchableAsset{
		Name:              "claimed.bin",
		URL:               server.URL,
		Checksum:          md5Hex([]byte("the real payload")),
		ChecksumAlgorithm: "md5",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIntegrityVerificationFailed)

	assert.False(t, canonicalSeen, "unverified bytes must never appear under the canonical path")
	_, statErr := os.Stat(localPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnsureAvailableDeclaredSizeContradictionAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ten bytes!"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)

	// The catalog declares 4 bytes; the server's Content-Length says 10.
	// The configured size wins and the transfer is refused up front.
	_, err := fetcher.EnsureAvailable(context.Background(), &models.FetchableAsset{
		Name:     "declared.bin",
		URL:      server.URL,
		Size:     4,
		Checksum: md5Hex([]byte("ten bytes!")),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTransferAborted)

	entries, readErr := os.ReadDir(fetcher.config.AssetsDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestEnsureAvailableSizeMismatchAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Declare more bytes than are sent; the connection is torn down
		// before the promised length arrives.
		w.Header().Set("Content-Length", "100")
		w.Write([]byte("short body"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t)

	_, err := fetcher.EnsureAvailable(context.Background(), &models.FetchableAsset{
		Name:     "short.bin",
		URL:      server.URL,
		Checksum: md5Hex([]byte("whatever")),
	})
	require.Error(t, err)
}

func TestEnsureAvailableCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("some bytes then stall"))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	fetcher := newTestFetcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	fetcher.SetProgress(func(downloaded, total int64) {
		cancel()
	})

	_, err := fetcher.EnsureAvailable(ctx, &models.FetchableAsset{
		Name:     "big.bin",
		URL:      server.URL,
		Checksum: md5Hex([]byte("irrelevant")),
	})
	require.Error(t, err)

	entries, readErr := os.ReadDir(fetcher.config.AssetsDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "cancelled download must not leave partial files")
}

func TestEnsureByNameUnknownAsset(t *testing.T) {
	fetcher := newTestFetcher(t)

	_, err := fetcher.EnsureByName(context.Background(), "not-in-catalog")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAssetNotConfigured)
}

func TestEnsureByNameUsesCatalog(t *testing.T) {
	body := []byte("catalog asset")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	config := DefaultConfig()
	config.AssetsDir = t.TempDir()
	config.Assets = map[string]models.FetchableAsset{
		"embeddings": {
			Name:              "embeddings.bin",
			URL:               server.URL,
			Checksum:          sha256Hex(body),
			ChecksumAlgorithm: "sha256",
		},
	}

	fetcher, err := NewFetcher(config, nil)
	require.NoError(t, err)

	path, err := fetcher.EnsureByName(context.Background(), "embeddings")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(config.AssetsDir, "embeddings.bin"), path)
}

func TestNewHasherUnsupportedAlgorithm(t *testing.T) {
	_, err := newHasher("crc32")
	require.Error(t, err)
}
