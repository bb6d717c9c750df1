package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/models"
)

func TestComputeSummaryNumeric(t *testing.T) {
	summary, err := ComputeSummary(models.Dataset{
		"price": {Numeric: []float64{90, 100, 110}},
	})
	require.NoError(t, err)

	price := summary["price"]
	assert.Equal(t, models.FeatureNumeric, price.Kind)
	assert.InDelta(t, 100.0, price.Mean, 1e-9)
	assert.InDelta(t, 10.0, price.Std, 1e-9)
	assert.Equal(t, int64(3), price.Count)
}

func TestComputeSummarySingleObservation(t *testing.T) {
	summary, err := ComputeSummary(models.Dataset{
		"price": {Numeric: []float64{42}},
	})
	require.NoError(t, err)

	assert.InDelta(t, 42.0, summary["price"].Mean, 1e-9)
	assert.Zero(t, summary["price"].Std)
}

func TestComputeSummaryCategorical(t *testing.T) {
	summary, err := ComputeSummary(models.Dataset{
		"region": {Categorical: []string{"north", "north", "south", "east"}},
	})
	require.NoError(t, err)

	region := summary["region"]
	assert.Equal(t, models.FeatureCategorical, region.Kind)
	assert.InDelta(t, 0.5, region.Frequencies["north"], 1e-9)
	assert.InDelta(t, 0.25, region.Frequencies["south"], 1e-9)
	assert.InDelta(t, 0.25, region.Frequencies["east"], 1e-9)
}

func TestComputeSummaryEmptyDataset(t *testing.T) {
	_, err := ComputeSummary(models.Dataset{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoFeatures)
}
