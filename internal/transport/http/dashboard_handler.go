package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "pbrpulse/internal/errors"
	"pbrpulse/internal/exporter"
	"pbrpulse/internal/manual"
	"pbrpulse/internal/plot"
	"pbrpulse/internal/services"
	"pbrpulse/internal/storage"
)

// DashboardHandler serves plot, gantt, export and variable-option requests
type DashboardHandler struct {
	service      DashboardServiceInterface
	batches      BatchServiceInterface
	manual       ManualServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, batches BatchServiceInterface, manual ManualServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		batches:      batches,
		manual:       manual,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/plot", h.GetPlot)
	r.Get("/gantt", h.GetGantt)
	r.Get("/export", h.ExportData)

	r.Route("/variables", func(r chi.Router) {
		r.Get("/process", h.GetProcessVariables)
		r.Get("/analytics", h.GetAnalyticsVariables)
		r.Get("/manual", h.GetManualVariables)
		r.Get("/gantt", h.GetGanttVariables)
	})

	return r
}

// splitList parses a comma-separated query value into trimmed items.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// plotRequestFromQuery builds a plot request from the shared query
// parameters of the plot and export endpoints.
func plotRequestFromQuery(r *http.Request) plot.Request {
	q := r.URL.Query()
	return plot.Request{
		Variables:          splitList(q.Get("series")),
		AnalyticsVariables: splitList(q.Get("analytics")),
		ManualVariables:    splitList(q.Get("manual")),
		TimeMode:           q.Get("time_mode"),
	}
}

// GetPlot handles GET /api/plot
func (h *DashboardHandler) GetPlot(w http.ResponseWriter, r *http.Request) {
	req := plotRequestFromQuery(r)

	payload, err := h.service.Plot(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to assemble plot",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		h.handleDashboardError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   payload,
		"count":  len(payload.Traces),
	})
}

// GetGantt handles GET /api/gantt
func (h *DashboardHandler) GetGantt(w http.ResponseWriter, r *http.Request) {
	variables := splitList(r.URL.Query().Get("variables"))

	payload, err := h.service.Gantt(r.Context(), variables)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to assemble gantt",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		h.handleDashboardError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   payload,
		"count":  len(payload.Entries),
	})
}

// ExportData handles GET /api/export
func (h *DashboardHandler) ExportData(w http.ResponseWriter, r *http.Request) {
	req := plotRequestFromQuery(r)

	format := exporter.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = exporter.FormatCSV
	}

	filename, contentType, data, err := h.service.Export(r.Context(), req, format)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to export plot data",
			slog.String("error", err.Error()),
			slog.String("format", string(format)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		h.handleDashboardError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetProcessVariables handles GET /api/variables/process
func (h *DashboardHandler) GetProcessVariables(w http.ResponseWriter, r *http.Request) {
	prefixes, err := h.batches.Prefixes(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	options := h.service.ProcessVariableOptions(prefixes)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   options,
		"count":  len(options),
	})
}

// GetAnalyticsVariables handles GET /api/variables/analytics
func (h *DashboardHandler) GetAnalyticsVariables(w http.ResponseWriter, r *http.Request) {
	options, err := h.service.AnalyticsVariableOptions(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list analytics variables",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusServiceUnavailable,
			"ANALYTICS_UNAVAILABLE",
			"Lab analytics table could not be loaded",
		))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   options,
		"count":  len(options),
	})
}

// GetManualVariables handles GET /api/variables/manual
func (h *DashboardHandler) GetManualVariables(w http.ResponseWriter, r *http.Request) {
	variables, err := h.manual.PlotVariables(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   variables,
		"count":  len(variables),
	})
}

// GetGanttVariables handles GET /api/variables/gantt
func (h *DashboardHandler) GetGanttVariables(w http.ResponseWriter, r *http.Request) {
	variables, err := h.manual.GanttVariables(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   variables,
		"count":  len(variables),
	})
}

// handleDashboardError maps service errors onto API errors.
func (h *DashboardHandler) handleDashboardError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, manual.ErrVariableNotFound):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusNotFound,
			"SERIES_NOT_FOUND",
			err.Error(),
		))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
