package drift

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/models"
)

// ComputeSummary computes a FeatureDistributionSummary from raw tabular data.
// Both the training-time reference and every monitoring-time candidate go
// through this function, so the two sides of a drift check are always
// computed identically.
func ComputeSummary(data models.Dataset) (models.FeatureDistributionSummary, error) {
	if len(data) == 0 {
		return nil, errors.WrapError(errors.ErrNoFeatures, errors.ErrorTypeValidation,
			errors.CodeInvalidInput, "Dataset has no columns")
	}

	summary := make(models.FeatureDistributionSummary, len(data))
	for name, column := range data {
		if len(column.Numeric) > 0 {
			summary[name] = summarizeNumeric(column.Numeric)
			continue
		}
		summary[name] = summarizeCategorical(column.Categorical)
	}

	return summary, nil
}

func summarizeNumeric(values []float64) models.FeatureSummary {
	mean := stat.Mean(values, nil)

	// StdDev is NaN for a single observation; a one-row column has no spread.
	std := 0.0
	if len(values) > 1 {
		std = stat.StdDev(values, nil)
		if math.IsNaN(std) {
			std = 0.0
		}
	}

	return models.FeatureSummary{
		Kind:  models.FeatureNumeric,
		Mean:  mean,
		Std:   std,
		Count: int64(len(values)),
	}
}

func summarizeCategorical(values []string) models.FeatureSummary {
	counts := make(map[string]float64, len(values))
	for _, v := range values {
		counts[v]++
	}

	total := float64(len(values))
	frequencies := make(map[string]float64, len(counts))
	for category, count := range counts {
		frequencies[category] = count / total
	}

	return models.FeatureSummary{
		Kind:        models.FeatureCategorical,
		Count:       int64(len(values)),
		Frequencies: frequencies,
	}
}
