package constants

import "time"

// Application constants
const (
	// Application metadata
	AppName        = "mlreg-server"
	AppDescription = "Model Registry & Artifact Lifecycle Server"
	AppVersion     = "0.1.0"

	// API constants
	APIVersion = "v1"
	APIPrefix  = "/api/v1"

	// Default configuration values
	DefaultPort            = 8080
	DefaultMetricsPort     = 9090
	DefaultHost            = "0.0.0.0"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Registry defaults
	DefaultRegistryPath = "./mlops"
	DefaultArtifactsDir = "modelos"
	DefaultMetricsDir   = "metricas"
	DefaultAssetsDir    = "models"
	DefaultFilePerm     = 0644
	DefaultDirPerm      = 0755

	// Fetcher defaults
	DefaultDownloadChunkSize = 8192
	DefaultVerifyAttempts    = 2
	DefaultDownloadRetries   = 3
	DefaultDownloadTimeout   = 30 * time.Minute

	// Drift defaults
	DefaultMeanThreshold        = 0.1
	DefaultStdThreshold         = 0.1
	DefaultCategoricalThreshold = 0.2

	// Storage defaults
	DefaultStorageTimeout    = 30 * time.Second
	DefaultCacheTTL          = 5 * time.Minute
	DefaultInfluxBatchSize   = 1000
	DefaultInfluxMeasurement = "model_metrics"
)

// Storage backend types
const (
	StorageTypeFile = "file"
	StorageTypeS3   = "s3"
)

// Checksum algorithms supported by the fetcher
const (
	ChecksumMD5    = "md5"
	ChecksumSHA256 = "sha256"
)

// Artifact file names inside an artifact directory
const (
	ArtifactBlobFile     = "model.bin"
	ArtifactMetadataFile = "metadata.json"
	MetricsLogFile       = "metrics.jsonl"
	RecordFile           = "record.json"
)

// ModelKinds enumerates the artifact kinds the registry accepts, with
// display names. Unknown kinds are registered as "custom".
var ModelKinds = map[string]string{
	"automl":          "AutoML",
	"gbm":             "Gradient Boosting Machine",
	"glm":             "Generalized Linear Model",
	"rf":              "Random Forest",
	"drf":             "Distributed Random Forest",
	"xgboost":         "XGBoost",
	"lightgbm":        "LightGBM",
	"deeplearning":    "Deep Learning",
	"stackedensemble": "Stacked Ensemble",
	"custom":          "Custom Model",
}

// ProblemCategories enumerates supported problem categories.
var ProblemCategories = map[string]string{
	"classification_binary":     "Binary Classification",
	"classification_multiclass": "Multiclass Classification",
	"classification":            "Classification",
	"regression":                "Regression",
	"timeseries":                "Time Series",
	"clustering":                "Clustering",
	"nlp":                       "Natural Language Processing",
	"vision":                    "Computer Vision",
}
