package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/mlregistry/internal/drift"
	"github.com/inferloop/mlregistry/internal/registry"
	"github.com/inferloop/mlregistry/pkg/constants"
	"github.com/inferloop/mlregistry/pkg/errors"
	"github.com/inferloop/mlregistry/pkg/interfaces"
	"github.com/inferloop/mlregistry/pkg/models"
)

// Handler serves the registry HTTP API.
type Handler struct {
	registry *registry.Registry
	fetcher  interfaces.Fetcher
	logger   *logrus.Logger
}

// NewHandler creates the API handler.
func NewHandler(reg *registry.Registry, fetcher interfaces.Fetcher, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		registry: reg,
		fetcher:  fetcher,
		logger:   logger,
	}
}

// RegisterRoutes mounts all API routes on the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix(constants.APIPrefix).Subrouter()

	api.HandleFunc("/models", h.registerModel).Methods(http.MethodPost)
	api.HandleFunc("/models", h.listModels).Methods(http.MethodGet)
	api.HandleFunc("/models/{id}", h.getModel).Methods(http.MethodGet)
	api.HandleFunc("/models/{id}/blob", h.getBlob).Methods(http.MethodGet)
	api.HandleFunc("/models/{id}/history", h.getHistory).Methods(http.MethodGet)
	api.HandleFunc("/models/{id}/monitor", h.monitor).Methods(http.MethodPost)
	api.HandleFunc("/models/{id}/supersede", h.supersede).Methods(http.MethodPost)
	api.HandleFunc("/assets/{name}/fetch", h.fetchAsset).Methods(http.MethodPost)

	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/version", h.version).Methods(http.MethodGet)
}

func (h *Handler) registerModel(w http.ResponseWriter, r *http.Request) {
	var req registry.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidationError(errors.CodeInvalidFormat, "Request body does not parse"))
		return
	}

	record, err := h.registry.RegisterModel(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &models.RecordFilter{
		Kind:              q.Get("kind"),
		ProblemCategory:   q.Get("problem_category"),
		DatasetName:       q.Get("dataset"),
		IncludeSuperseded: q.Get("include_superseded") == "true",
	}

	records, err := h.registry.ListModels(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": records,
		"count":  len(records),
	})
}

func (h *Handler) getModel(w http.ResponseWriter, r *http.Request) {
	record, err := h.registry.GetRecord(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

func (h *Handler) getBlob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	blob, _, err := h.registry.LoadModel(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename="+id+".bin")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(blob); err != nil {
		h.logger.WithError(err).WithField("artifact_id", id).Warn("Blob write interrupted")
	}
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	history, err := h.registry.History(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"artifact_id": id,
		"snapshots":   history,
		"count":       len(history),
	})
}

type monitorRequest struct {
	Candidate  models.Dataset     `json:"candidate"`
	Observed   map[string]float64 `json:"observed,omitempty"`
	Thresholds *drift.Thresholds  `json:"thresholds,omitempty"`
}

func (h *Handler) monitor(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidationError(errors.CodeInvalidFormat, "Request body does not parse"))
		return
	}

	report, err := h.registry.RecordMonitoring(r.Context(), mux.Vars(r)["id"], req.Candidate, req.Observed, req.Thresholds)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) supersede(w http.ResponseWriter, r *http.Request) {
	var req registry.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidationError(errors.CodeInvalidFormat, "Request body does not parse"))
		return
	}

	record, err := h.registry.SupersedeModel(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) fetchAsset(w http.ResponseWriter, r *http.Request) {
	if h.fetcher == nil {
		h.writeError(w, errors.NewAppError(errors.ErrorTypeConfiguration,
			errors.CodeAssetUnknown, "No asset fetcher configured"))
		return
	}

	path, err := h.fetcher.EnsureByName(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) version(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"name":    constants.AppName,
		"version": constants.AppVersion,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Warn("Response write interrupted")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatusFor(err)

	h.logger.WithError(err).WithField("status", status).Warn("Request failed")

	body := map[string]interface{}{"error": err.Error()}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		body["code"] = appErr.Code
		body["type"] = appErr.Type
	}

	h.writeJSON(w, status, body)
}
