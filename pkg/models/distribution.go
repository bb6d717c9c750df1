package models

import "time"

// FeatureKind distinguishes numeric from categorical features.
type FeatureKind string

const (
	FeatureNumeric     FeatureKind = "numeric"
	FeatureCategorical FeatureKind = "categorical"
)

// FeatureSummary captures the distribution of one feature: mean/std/count for
// numeric features, a relative frequency table for categorical ones.
type FeatureSummary struct {
	Kind        FeatureKind        `json:"kind"`
	Mean        float64            `json:"mean,omitempty"`
	Std         float64            `json:"std,omitempty"`
	Count       int64              `json:"count"`
	Frequencies map[string]float64 `json:"frequencies,omitempty"`
}

// FeatureDistributionSummary maps feature name to its summary. A reference
// summary is captured once at training time and never mutated; candidate
// summaries are recomputed on demand for drift checks.
type FeatureDistributionSummary map[string]FeatureSummary

// Column holds the raw values of one tabular column. Exactly one of Numeric
// or Categorical is populated.
type Column struct {
	Numeric     []float64 `json:"numeric,omitempty"`
	Categorical []string  `json:"categorical,omitempty"`
}

// Dataset is tabular input keyed by column name, as handed over by the data
// collaborator. The registry computes distribution summaries from it so that
// reference and candidate summaries are always computed identically.
type Dataset map[string]Column

// FeatureDeviation is the per-feature result of a drift check.
type FeatureDeviation struct {
	Feature           string      `json:"feature"`
	Kind              FeatureKind `json:"kind"`
	MeanDiff          float64     `json:"mean_diff,omitempty"`
	StdDiff           float64     `json:"std_diff,omitempty"`
	FrequencyDistance float64     `json:"frequency_distance,omitempty"`
	// MissingIn is "reference" or "candidate" when the feature exists on only
	// one side; such features are maximally drifted, never skipped.
	MissingIn string `json:"missing_in,omitempty"`
	Drifted   bool   `json:"drifted"`
}

// DriftReport is the result of comparing a reference distribution against a
// candidate one. Created fresh on every check; persisted only by appending a
// monitoring snapshot to the metrics history.
type DriftReport struct {
	ArtifactID    string                      `json:"artifact_id"`
	Timestamp     time.Time                   `json:"timestamp"`
	Deviations    map[string]FeatureDeviation `json:"deviations"`
	DriftDetected bool                        `json:"drift_detected"`
}
