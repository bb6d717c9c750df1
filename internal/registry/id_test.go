package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mlregistry/pkg/errors"
)

func TestMintFormat(t *testing.T) {
	clock := func() time.Time {
		return time.Date(2026, 8, 23, 14, 30, 5, 0, time.UTC)
	}
	generator := NewGeneratorWithClock(clock)

	id, err := generator.Mint("gbm", "regression", "sales", "v1")
	require.NoError(t, err)
	assert.Equal(t, "gbm_regression_sales_v1_20260823_143005_1", id)
}

func TestMintUniqueWithinSameSecond(t *testing.T) {
	clock := func() time.Time {
		return time.Date(2026, 8, 23, 14, 30, 5, 0, time.UTC)
	}
	generator := NewGeneratorWithClock(clock)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := generator.Mint("gbm", "regression", "sales", "v1")
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestMintConcurrentUnique(t *testing.T) {
	generator := NewGenerator()

	const n = 50
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			id, err := generator.Mint("rf", "classification", "churn", "v2")
			if err != nil {
				ids <- fmt.Sprintf("error: %v", err)
				return
			}
			ids <- id
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		id := <-ids
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestMintRejectsInvalidComponents(t *testing.T) {
	generator := NewGenerator()

	cases := []struct {
		kind, category, dataset, version string
		sentinel                         error
	}{
		{"", "regression", "sales", "v1", errors.ErrInvalidKind},
		{"GBM", "regression", "sales", "v1", errors.ErrInvalidKind},
		{"gbm", "no spaces", "sales", "v1", errors.ErrInvalidCategory},
		{"gbm", "regression", "", "v1", errors.ErrInvalidDataset},
		{"gbm", "regression", "sales", "V/1", errors.ErrInvalidVersion},
	}

	for _, tc := range cases {
		_, err := generator.Mint(tc.kind, tc.category, tc.dataset, tc.version)
		require.Error(t, err)
		assert.ErrorIs(t, err, tc.sentinel)
	}
}
