package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "pbrpulse/internal/errors"
	"pbrpulse/internal/manual"
	"pbrpulse/internal/services"
)

// validate checks manual-entry request structs against their tags.
var validate = validator.New()

// ManualHandler handles operator-entered data HTTP requests
type ManualHandler struct {
	service      ManualServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewManualHandler creates a new manual data handler
func NewManualHandler(service ManualServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ManualHandler {
	return &ManualHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "manual_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the manual data routes
func (h *ManualHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/variables", h.CreateVariable)
	r.Post("/entries/{kind}", h.AddEntry)
	r.Get("/options", h.GetEntryOptions)

	return r
}

// ManualVariableRequest represents the request to create a manual variable
type ManualVariableRequest struct {
	Name string `json:"name" validate:"required"`
	Kind string `json:"kind" validate:"required,oneof=float percentage string binary"`
}

// Bind implements the render.Binder interface
func (m *ManualVariableRequest) Bind(r *http.Request) error {
	return validate.Struct(m)
}

// ValueEntryRequest represents one numeric reading for a manual variable
type ValueEntryRequest struct {
	Variable string  `json:"variable_name" validate:"required"`
	Value    float64 `json:"value"`
	Units    string  `json:"units"`
	Notes    string  `json:"notes"`
	Days     int     `json:"days_since_inoculation" validate:"gte=0"`
}

// Bind implements the render.Binder interface
func (v *ValueEntryRequest) Bind(r *http.Request) error {
	return validate.Struct(v)
}

// SpanEntryRequest represents one categorized event span
type SpanEntryRequest struct {
	Variable string `json:"variable_name" validate:"required"`
	StartDay string `json:"start_day" validate:"required"`
	EndDay   string `json:"end_day" validate:"required"`
	Category string `json:"category" validate:"required"`
	Notes    string `json:"notes"`
}

// Bind implements the render.Binder interface
func (s *SpanEntryRequest) Bind(r *http.Request) error {
	return validate.Struct(s)
}

// CreateVariable handles POST /api/manual/variables
func (h *ManualHandler) CreateVariable(w http.ResponseWriter, r *http.Request) {
	data := &ManualVariableRequest{}
	if err := render.Bind(r, data); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	object, err := h.service.CreateVariable(r.Context(), data.Name, manual.Kind(data.Kind))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create manual variable",
			slog.String("error", err.Error()),
			slog.String("variable", data.Name),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		h.handleManualError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"variable": data.Name,
			"kind":     data.Kind,
			"object":   object,
		},
	})
}

// AddEntry handles POST /api/manual/entries/{kind}
func (h *ManualHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	kind := manual.Kind(chi.URLParam(r, "kind"))

	switch {
	case manual.IsValueKind(kind):
		h.addValueEntry(w, r, kind)
	case manual.IsSpanKind(kind):
		h.addSpanEntry(w, r, kind)
	default:
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("kind",
			"kind must be one of float, percentage, string, binary"))
	}
}

func (h *ManualHandler) addValueEntry(w http.ResponseWriter, r *http.Request, kind manual.Kind) {
	data := &ValueEntryRequest{}
	if err := render.Bind(r, data); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	err := h.service.AddValue(r.Context(), kind, manual.ValueEntry{
		Variable: data.Variable,
		Value:    data.Value,
		Units:    data.Units,
		Notes:    data.Notes,
		Days:     data.Days,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to add manual value",
			slog.String("error", err.Error()),
			slog.String("variable", data.Variable),
			slog.String("kind", string(kind)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		h.handleManualError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"variable": data.Variable,
			"kind":     string(kind),
		},
	})
}

func (h *ManualHandler) addSpanEntry(w http.ResponseWriter, r *http.Request, kind manual.Kind) {
	data := &SpanEntryRequest{}
	if err := render.Bind(r, data); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	err := h.service.AddSpan(r.Context(), kind, manual.SpanEntry{
		Variable: data.Variable,
		StartDay: data.StartDay,
		EndDay:   data.EndDay,
		Category: data.Category,
		Notes:    data.Notes,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to add manual span",
			slog.String("error", err.Error()),
			slog.String("variable", data.Variable),
			slog.String("kind", string(kind)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
		h.handleManualError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"variable": data.Variable,
			"kind":     string(kind),
		},
	})
}

// GetEntryOptions handles GET /api/manual/options
func (h *ManualHandler) GetEntryOptions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   h.service.EntryOptions(),
	})
}

// handleManualError maps manual store errors onto API errors.
func (h *ManualHandler) handleManualError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, manual.ErrTemplateExists):
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusConflict,
			"VARIABLE_EXISTS",
			"A manual variable with this name already exists",
		))
	case errors.Is(err, manual.ErrVariableNotFound):
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("manual variable"))
	case errors.Is(err, manual.ErrInvalidKind):
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
	case errors.Is(err, services.ErrInvalidInput):
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}
