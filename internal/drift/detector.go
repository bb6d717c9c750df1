package drift

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/models"
)

// MaxDeviation marks a feature present on only one side of a drift check.
// Schema changes are reported as maximal drift, never silently skipped.
const MaxDeviation = math.MaxFloat64

// Thresholds holds the deviation limits above which a feature is flagged as
// drifted. A PerFeature entry overrides the global values for that feature.
type Thresholds struct {
	Mean        float64               `json:"mean"`
	Std         float64               `json:"std"`
	Categorical float64               `json:"categorical"`
	PerFeature  map[string]Thresholds `json:"per_feature,omitempty"`
}

// forFeature resolves the thresholds that apply to one feature.
func (t *Thresholds) forFeature(name string) Thresholds {
	if override, ok := t.PerFeature[name]; ok {
		return override
	}
	return *t
}

// DefaultThresholds returns the default deviation limits. Callers override
// them per call or per feature; nothing in the detector hard-codes them.
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		Mean:        constants.DefaultMeanThreshold,
		Std:         constants.DefaultStdThreshold,
		Categorical: constants.DefaultCategoricalThreshold,
	}
}

// DetectorConfig configures the drift detector.
type DetectorConfig struct {
	Thresholds *Thresholds `json:"thresholds"`
}

// Detector compares a stored reference feature distribution against a freshly
// computed candidate and produces per-feature deviations plus an overall
// drift flag.
type Detector struct {
	logger *logrus.Logger
	config *DetectorConfig
}

// NewDetector creates a new drift detector.
func NewDetector(config *DetectorConfig, logger *logrus.Logger) *Detector {
	if config == nil {
		config = &DetectorConfig{}
	}
	if config.Thresholds == nil {
		config.Thresholds = DefaultThresholds()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Detector{
		logger: logger,
		config: config,
	}
}

// ComputeDrift compares reference and candidate summaries. thresholds may be
// nil, in which case the detector's configured thresholds apply. Features
// present on only one side are reported as maximally drifted.
func (d *Detector) ComputeDrift(artifactID string, reference, candidate models.FeatureDistributionSummary, thresholds *Thresholds) (*models.DriftReport, error) {
	if len(reference) == 0 {
		return nil, errors.WrapError(errors.ErrNoFeatures, errors.ErrorTypeValidation,
			errors.CodeInvalidInput, "Reference distribution has no features")
	}

	if thresholds == nil {
		thresholds = d.config.Thresholds
	}

	report := &models.DriftReport{
		ArtifactID: artifactID,
		Timestamp:  time.Now().UTC(),
		Deviations: make(map[string]models.FeatureDeviation, len(reference)),
	}

	for name, ref := range reference {
		cand, ok := candidate[name]
		if !ok {
			report.Deviations[name] = missingDeviation(name, ref.Kind, "candidate")
			continue
		}
		if cand.Kind != ref.Kind {
			// Feature changed type between training and monitoring.
			report.Deviations[name] = missingDeviation(name, ref.Kind, "candidate")
			continue
		}
		report.Deviations[name] = d.compareFeature(name, ref, cand, thresholds.forFeature(name))
	}

	for name, cand := range candidate {
		if _, ok := reference[name]; !ok {
			report.Deviations[name] = missingDeviation(name, cand.Kind, "reference")
		}
	}

	for _, deviation := range report.Deviations {
		if deviation.Drifted {
			report.DriftDetected = true
			break
		}
	}

	d.logger.WithFields(logrus.Fields{
		"artifact_id":    artifactID,
		"features":       len(report.Deviations),
		"drift_detected": report.DriftDetected,
	}).Info("Computed drift report")

	return report, nil
}

func (d *Detector) compareFeature(name string, ref, cand models.FeatureSummary, limits Thresholds) models.FeatureDeviation {
	deviation := models.FeatureDeviation{
		Feature: name,
		Kind:    ref.Kind,
	}

	switch ref.Kind {
	case models.FeatureCategorical:
		deviation.FrequencyDistance = frequencyDistance(ref.Frequencies, cand.Frequencies)
		deviation.Drifted = deviation.FrequencyDistance > limits.Categorical
	default:
		deviation.MeanDiff = math.Abs(ref.Mean - cand.Mean)
		deviation.StdDiff = math.Abs(ref.Std - cand.Std)
		deviation.Drifted = deviation.MeanDiff > limits.Mean || deviation.StdDiff > limits.Std
	}

	return deviation
}

// frequencyDistance is the L1 distance over frequency vectors, with missing
// categories on either side counted as zero frequency.
func frequencyDistance(ref, cand map[string]float64) float64 {
	distance := 0.0
	for category, refFreq := range ref {
		distance += math.Abs(refFreq - cand[category])
	}
	for category, candFreq := range cand {
		if _, ok := ref[category]; !ok {
			distance += candFreq
		}
	}
	return distance
}

func missingDeviation(name string, kind models.FeatureKind, side string) models.FeatureDeviation {
	deviation := models.FeatureDeviation{
		Feature:   name,
		Kind:      kind,
		MissingIn: side,
		Drifted:   true,
	}
	if kind == models.FeatureCategorical {
		deviation.FrequencyDistance = MaxDeviation
	} else {
		deviation.MeanDiff = MaxDeviation
		deviation.StdDiff = MaxDeviation
	}
	return deviation
}
