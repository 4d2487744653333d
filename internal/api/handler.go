package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/harrier/internal/assess"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/flagrules"
	"github.com/opensource-finance/harrier/internal/refdata"
	"github.com/opensource-finance/harrier/internal/report"
	"github.com/opensource-finance/harrier/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	service *assess.Service
	flags   *flagrules.Engine
	loader  *refdata.Loader
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, service *assess.Service, flags *flagrules.Engine, loader *refdata.Loader, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		service: service,
		flags:   flags,
		loader:  loader,
		version: version,
	}
}

// Assess handles POST /assess requests.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.AssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// The authenticated tenant always wins over the body.
	req.TenantID = tenantID
	req.TraceID = traceID

	assessment, err := h.service.Assess(ctx, &req)
	if err != nil {
		writeAssessError(w, err)
		return
	}

	// Notify async consumers of the completed assessment.
	if h.bus != nil {
		payload, _ := json.Marshal(assessment.ToResponse())
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAssessmentCompleted, payload); err != nil {
			slog.Error("failed to publish assessment", "assessment_id", assessment.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, assessment.ToResponse())
}

// AssessBatch handles POST /assess/batch requests.
func (h *Handler) AssessBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.BatchAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	req.TenantID = tenantID

	items, err := h.service.AssessBatch(ctx, &req)
	if err != nil {
		writeAssessError(w, err)
		return
	}

	type batchItem struct {
		Assessment *domain.AssessmentResponse `json:"assessment,omitempty"`
		Error      string                     `json:"error,omitempty"`
	}

	out := make([]batchItem, len(items))
	succeeded := 0
	for i, item := range items {
		if item.Err != nil {
			out[i] = batchItem{Error: item.Err.Error()}
			continue
		}
		out[i] = batchItem{Assessment: item.Assessment.ToResponse()}
		succeeded++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":     out,
		"count":     len(out),
		"succeeded": succeeded,
	})
}

// GetAssessment retrieves an assessment by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAssessment(ctx, tenantID, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get assessment", "id", id, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "assessment not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, a.ToResponse())
}

// ExportAssessment returns the flat key/value export of an assessment.
func (h *Handler) ExportAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	id := chi.URLParam(r, "id")

	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "assessment id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAssessment(ctx, tenantID, id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "assessment not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessmentId": a.ID,
		"fields":       report.Flatten(a),
	})
}

// ListAssessments returns assessments for the tenant, newest first.
// Accepts an optional since query parameter (RFC 3339).
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC 3339",
			})
			return
		}
		since = parsed
	}

	assessments, err := h.repo.ListAssessments(ctx, tenantID, since)
	if err != nil {
		slog.Error("failed to list assessments", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list assessments",
		})
		return
	}

	out := make([]*domain.AssessmentResponse, len(assessments))
	for i, a := range assessments {
		out[i] = a.ToResponse()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assessments": out,
		"count":       len(out),
	})
}

// ListDatasets returns the loaded reference datasets with their versions.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "reference data not available",
		})
		return
	}

	infos := h.loader.Datasets()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": infos,
		"count":    len(infos),
	})
}

// ReplaceDatasetRequest is the request body for PUT /datasets/{dataset}.
type ReplaceDatasetRequest struct {
	Entities []*domain.ReferenceEntity `json:"entities"`
}

// ReplaceDataset swaps a reference dataset wholesale and bumps its version.
func (h *Handler) ReplaceDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	dataset := chi.URLParam(r, "dataset")

	if dataset != domain.DatasetSanctions && dataset != domain.DatasetOffshore {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown dataset: " + dataset,
		})
		return
	}

	if h.loader == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "reference data not available",
		})
		return
	}

	var req ReplaceDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	version, err := h.loader.Replace(ctx, tenantID, dataset, req.Entities)
	if err != nil {
		slog.Error("failed to replace dataset", "dataset", dataset, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to replace dataset",
		})
		return
	}

	if h.bus != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"dataset":     dataset,
			"version":     version,
			"entityCount": len(req.Entities),
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicDatasetReloaded, payload); err != nil {
			slog.Error("failed to publish dataset reload", "dataset", dataset, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset":     dataset,
		"version":     version,
		"entityCount": len(req.Entities),
	})
}

// ReloadDatasets re-reads the persisted datasets into the match indexes.
// Useful after out-of-band writes to the reference tables.
func (h *Handler) ReloadDatasets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.loader == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "reference data not available",
		})
		return
	}

	if err := h.loader.LoadAll(ctx, tenantID); err != nil {
		slog.Error("failed to reload datasets", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload datasets",
		})
		return
	}

	infos := h.loader.Datasets()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": infos,
		"count":    len(infos),
	})
}

// ListRules returns all loaded flag rules from the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.flags.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a flag rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.flags.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a flag rule.
type CreateRuleRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Expression  string          `json:"expression"`
	Message     string          `json:"message"`
	Critical    bool            `json:"critical"`
	Category    domain.Category `json:"category,omitempty"`
	Enabled     bool            `json:"enabled"`
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a flag rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and message are required",
		})
		return
	}

	rule := &domain.FlagRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Message:     req.Message,
		Critical:    req.Critical,
		Category:    req.Category,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.flags.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveFlagRule(ctx, GlobalTenantID, rule); err != nil {
			slog.Error("failed to save flag rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("flag rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all flag rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListFlagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.flags.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("flag rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeAssessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrConfiguration):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrReferenceDataUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": err.Error(),
		})
	default:
		slog.Error("assessment failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "assessment failed",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
