package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "pbrpulse/internal/errors"
	"pbrpulse/internal/services"
)

// BatchHandler handles merge-run HTTP requests with RFC 7807 compliance
type BatchHandler struct {
	service      BatchServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(service BatchServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *BatchHandler {
	return &BatchHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "batch_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the batch routes
func (h *BatchHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.ListBatches)
	r.Post("/", h.StartMerge)
	r.Get("/preview", h.PreviewMerge)

	return r
}

// MergeRunRequest represents the request to merge raw exports into a batch
type MergeRunRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Bind implements the render.Binder interface for merge request validation
func (m *MergeRunRequest) Bind(r *http.Request) error {
	if m.Name == "" {
		return errors.New("name is required")
	}
	if m.StartDate == "" {
		return errors.New("start_date is required")
	}
	if m.EndDate == "" {
		return errors.New("end_date is required")
	}
	return nil
}

// ListBatches handles GET /api/batches
func (h *BatchHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	prefixes, err := h.service.Prefixes(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list batches",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   prefixes,
		"count":  len(prefixes),
	})
}

// StartMerge handles POST /api/batches
func (h *BatchHandler) StartMerge(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	data := &MergeRunRequest{}
	if err := render.Bind(r, data); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "merge run requested",
		slog.String("request_id", reqID),
		slog.String("batch", data.Name),
		slog.String("start_date", data.StartDate),
		slog.String("end_date", data.EndDate))

	result, err := h.service.Merge(r.Context(), data.Name, data.StartDate, data.EndDate)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "merge run failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		switch {
		case errors.Is(err, services.ErrInvalidPrefix),
			errors.Is(err, services.ErrInvalidInput):
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		case errors.Is(err, services.ErrInvalidDateRange):
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("start_date", "start date must not be after end date"))
		case errors.Is(err, services.ErrMergeInProgress):
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusConflict,
				"MERGE_IN_PROGRESS",
				"Another merge run is already executing",
			))
		default:
			h.errorHandler.HandleError(w, r, err)
		}
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// PreviewMerge handles GET /api/batches/preview
func (h *BatchHandler) PreviewMerge(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("start", "start and end query parameters are required"))
		return
	}

	files, err := h.service.Preview(r.Context(), start, end)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) || errors.Is(err, services.ErrInvalidDateRange) {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   files,
		"count":  len(files),
	})
}
