package httptransport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"video-analysis-service/internal/apperrors"
	"video-analysis-service/internal/entity"
	"video-analysis-service/internal/report"
	"video-analysis-service/internal/service"
)

type Handler struct {
	svc      *service.AnalysisService
	renderer *report.Renderer
	logger   *slog.Logger
}

func NewHandler(svc *service.AnalysisService, renderer *report.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:      svc,
		renderer: renderer,
		logger:   logger.With("component", "http_handler"),
	}
}

type createAnalysisDTO struct {
	VideoURL string `json:"video_url"`
}

type createAnalysisResp struct {
	ID string `json:"id"`
}

type analysisResp struct {
	ID          string                 `json:"id"`
	VideoURL    string                 `json:"video_url"`
	Title       *string                `json:"title,omitempty"`
	Status      entity.AnalysisStatus  `json:"status"`
	CreatedAt   string                 `json:"created_at"`
	CompletedAt *string                `json:"completed_at,omitempty"`
	VideoFormat *string                `json:"video_format,omitempty"`
	Subscribers *int64                 `json:"subscribers,omitempty"`
	Views       *int64                 `json:"views,omitempty"`
	PublishedAt *string                `json:"published_at,omitempty"`
	FraudScore  *float64               `json:"fraud_score,omitempty"`
	Confidence  *float64               `json:"confidence,omitempty"`
	Summary     *string                `json:"summary,omitempty"`
	Timeline    []entity.TimelineEvent `json:"timeline_analysis,omitempty"`
}

type statusResp struct {
	Status entity.AnalysisStatus `json:"status"`
	Ready  bool                  `json:"ready"`
}

func toAnalysisResp(a *entity.Analysis) analysisResp {
	resp := analysisResp{
		ID:          a.ID.String(),
		VideoURL:    a.VideoURL,
		Title:       a.Title,
		Status:      a.Status,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
		VideoFormat: a.VideoFormat,
		Subscribers: a.Subscribers,
		Views:       a.Views,
		FraudScore:  a.FraudScore,
		Confidence:  a.Confidence,
		Summary:     a.Summary,
		Timeline:    a.Timeline,
	}
	if a.CompletedAt != nil {
		s := a.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	if a.PublishedAt != nil {
		s := a.PublishedAt.Format(time.RFC3339)
		resp.PublishedAt = &s
	}
	return resp
}

// CreateAnalysis godoc
// @Summary Submit a video for fraud analysis
// @Description Creates the analysis record (pending). Execution starts on the first poll.
// @Tags analyses
// @Accept json
// @Produce json
// @Param request body createAnalysisDTO true "video to analyze"
// @Success 201 {object} createAnalysisResp
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Router /jobs [post]
func (h *Handler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var dto createAnalysisDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	a, err := h.svc.Submit(r.Context(), ownerID, dto.VideoURL)
	if err != nil {
		renderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createAnalysisResp{ID: a.ID.String()})
}

// GetAnalysis godoc
// @Summary Get analysis by id
// @Description Returns the analysis snapshot. A pending analysis is scheduled for execution as a side effect.
// @Tags analyses
// @Produce json
// @Param id path string true "analysis id (uuid)"
// @Success 200 {object} analysisResp
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "authentication required")
		return
	}

	a, err := h.loadOwned(r, ownerID)
	if err != nil {
		renderError(w, err)
		return
	}

	a = h.ensureRunning(r, a)
	writeJSON(w, http.StatusOK, toAnalysisResp(a))
}

// GetStatus godoc
// @Summary Poll analysis status
// @Description Lightweight polling endpoint; ready is true once the analysis reached a terminal state.
// @Tags analyses
// @Produce json
// @Param id path string true "analysis id (uuid)"
// @Success 200 {object} statusResp
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/status [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "authentication required")
		return
	}

	a, err := h.loadOwned(r, ownerID)
	if err != nil {
		renderError(w, err)
		return
	}

	a = h.ensureRunning(r, a)
	writeJSON(w, http.StatusOK, statusResp{Status: a.Status, Ready: a.Status.IsTerminal()})
}

// DownloadReport godoc
// @Summary Download the PDF report for a completed analysis
// @Tags analyses
// @Produce application/pdf
// @Param id path string true "analysis id (uuid)"
// @Success 200 {file} binary
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/report [get]
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "authentication required")
		return
	}

	a, err := h.loadOwned(r, ownerID)
	if err != nil {
		renderError(w, err)
		return
	}

	pdf, err := h.renderer.Generate(a)
	if err != nil {
		renderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="fraud-report-%s.pdf"`, a.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// ListAnalyses godoc
// @Summary List the caller's analyses, newest first
// @Tags analyses
// @Produce json
// @Param limit query int false "maximum number of results (default 5, max 50)"
// @Success 200 {array} analysisResp
// @Failure 401 {object} apiError
// @Router /jobs [get]
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := OwnerFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	analyses, err := h.svc.ListByOwner(r.Context(), ownerID, limit)
	if err != nil {
		renderError(w, err)
		return
	}

	out := make([]analysisResp, 0, len(analyses))
	for i := range analyses {
		out = append(out, toAnalysisResp(&analyses[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// loadOwned fetches the analysis from the path id and enforces ownership.
func (h *Handler) loadOwned(r *http.Request, ownerID uuid.UUID) (*entity.Analysis, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, apperrors.Validation("invalid analysis id")
	}

	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, apperrors.Forbidden("you do not have permission to view this analysis")
	}
	return a, nil
}

// ensureRunning schedules a pending analysis and returns a snapshot
// reflecting the claim. Scheduling failures are logged, not surfaced: the
// client observes the outcome through polling.
func (h *Handler) ensureRunning(r *http.Request, a *entity.Analysis) *entity.Analysis {
	if a.Status != entity.StatusPending {
		return a
	}

	started, err := h.svc.EnsureRunning(r.Context(), a.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "ensure running failed",
			"analysis_id", a.ID, "error", err)
	}
	if started || err != nil {
		if fresh, getErr := h.svc.Get(r.Context(), a.ID); getErr == nil {
			return fresh
		}
	}
	return a
}
