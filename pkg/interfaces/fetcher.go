package interfaces

import (
	"context"

	"github.com/inferloop/mlregistry/pkg/models"
)

// ProgressFunc receives streamed download progress. total is the declared
// asset size. Called between chunks, never concurrently.
type ProgressFunc func(downloaded, total int64)

// Fetcher provisions auxiliary artifacts whose canonical local path is only
// ever visible with content matching the asset's declared checksum.
type Fetcher interface {
	// EnsureAvailable returns the canonical local path for the asset,
	// downloading and verifying it as needed. A canonical file that fails
	// verification is deleted and re-fetched; after the verify budget is
	// exhausted the call fails with ErrIntegrityVerificationFailed and the
	// canonical path is left absent.
	EnsureAvailable(ctx context.Context, asset *models.FetchableAsset) (string, error)

	// EnsureByName resolves a logical asset name against the configured
	// catalog and delegates to EnsureAvailable. Unknown names fail with
	// ErrAssetNotConfigured.
	EnsureByName(ctx context.Context, name string) (string, error)
}
