package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/mlregistry/internal/metadata"
	"github.com/inferloop/mlregistry/internal/registry"
	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/models"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	root := t.TempDir()
	store, err := metadata.NewStore(&metadata.StoreConfig{
		BasePath: filepath.Join(root, constants.DefaultMetricsDir),
	}, logger)
	require.NoError(t, err)

	reg, err := registry.NewRegistry(&registry.Config{RootPath: root}, store, logger)
	require.NoError(t, err)

	router := mux.NewRouter()
	NewHandler(reg, nil, logger).RegisterRoutes(router)
	return router
}

func registerViaAPI(t *testing.T, router *mux.Router) *models.ArtifactRecord {
	t.Helper()

	body, err := json.Marshal(registry.RegisterRequest{
		Kind:            "gbm",
		ProblemCategory: "regression",
		DatasetName:     "sales",
		VersionLabel:    "v1",
		Blob:            []byte("model bytes"),
		TrainingMetrics: map[string]float64{"rmse": 12.3},
		ReferenceData: models.Dataset{
			"price": {Numeric: []float64{90, 100, 110}},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, constants.APIPrefix+"/models", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var record models.ArtifactRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	return &record
}

func TestRegisterAndGetModel(t *testing.T) {
	router := newTestRouter(t)

	record := registerViaAPI(t, router)
	assert.Contains(t, record.ID, "gbm_regression_sales_v1_")

	req := httptest.NewRequest(http.MethodGet, constants.APIPrefix+"/models/"+record.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched models.ArtifactRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, record.ID, fetched.ID)
}

func TestGetModelNotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, constants.APIPrefix+"/models/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBlob(t *testing.T) {
	router := newTestRouter(t)
	record := registerViaAPI(t, router)

	req := httptest.NewRequest(http.MethodGet, constants.APIPrefix+"/models/"+record.ID+"/blob", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("model bytes"), rec.Body.Bytes())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
}

func TestListModels(t *testing.T) {
	router := newTestRouter(t)
	registerViaAPI(t, router)

	req := httptest.NewRequest(http.MethodGet, constants.APIPrefix+"/models?kind=gbm", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Models []models.ArtifactRecord `json:"models"`
		Count  int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 1, payload.Count)

	req = httptest.NewRequest(http.MethodGet, constants.APIPrefix+"/models?kind=rf", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 0, payload.Count)
}

func TestMonitorEndpoint(t *testing.T) {
	router := newTestRouter(t)
	record := registerViaAPI(t, router)

	body, err := json.Marshal(map[string]interface{}{
		"candidate": models.Dataset{
			"price": {Numeric: []float64{140, 150, 160}},
		},
		"observed":   map[string]float64{"rmse": 30.0},
		"thresholds": map[string]float64{"mean": 10, "std": 10, "categorical": 0.2},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, constants.APIPrefix+"/models/"+record.ID+"/monitor", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report models.DriftReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.DriftDetected)

	// The monitoring snapshot landed in the history.
	req = httptest.NewRequest(http.MethodGet, constants.APIPrefix+"/models/"+record.ID+"/history", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var history struct {
		Snapshots []models.MetricsSnapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Snapshots, 2)
	assert.Equal(t, models.SnapshotMonitoring, history.Snapshots[1].Kind)
}

func TestFetchAssetWithoutFetcher(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, constants.APIPrefix+"/assets/x/fetch", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndVersion(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/version", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, constants.AppVersion, payload["version"])
}
