package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pbrpulse/internal/config"
	"pbrpulse/internal/infrastructure"
	"pbrpulse/internal/manual"
)

// ManualService validates and records operator-entered data.
type ManualService struct {
	store   *manual.Store
	catalog *config.Catalog
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewManualService creates a manual data service.
func NewManualService(store *manual.Store, catalog *config.Catalog, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *ManualService {
	return &ManualService{
		store:   store,
		catalog: catalog,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "manual_service")),
	}
}

// CreateVariable creates an empty template for a new manual variable.
func (s *ManualService) CreateVariable(ctx context.Context, name string, kind manual.Kind) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: variable name is required", ErrInvalidInput)
	}
	return s.store.CreateTemplate(ctx, name, kind)
}

// AddValue records a numeric manual reading. Percentage readings must
// lie in [0, 100] and always carry the percent unit; float readings
// must use one of the configured unit options.
func (s *ManualService) AddValue(ctx context.Context, kind manual.Kind, e manual.ValueEntry) error {
	if strings.TrimSpace(e.Variable) == "" {
		return fmt.Errorf("%w: variable name is required", ErrInvalidInput)
	}
	if e.Days < 0 {
		return fmt.Errorf("%w: days since inoculation must not be negative", ErrInvalidInput)
	}

	switch kind {
	case manual.KindPercentage:
		if e.Value < 0 || e.Value > 100 {
			return fmt.Errorf("%w: percentage value must be between 0 and 100", ErrInvalidInput)
		}
		e.Units = "%"
	case manual.KindFloat:
		if e.Units == "" {
			return fmt.Errorf("%w: units are required for float data", ErrInvalidInput)
		}
		if !contains(s.catalog.FloatUnits, e.Units) {
			return fmt.Errorf("%w: unknown unit %q", ErrInvalidInput, e.Units)
		}
	default:
		return fmt.Errorf("%w: %s", manual.ErrInvalidKind, kind)
	}

	if err := s.store.AppendValue(ctx, kind, e); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ManualEntriesTotal.Add(ctx, 1)
	}
	return nil
}

// AddSpan records an event span. The span dates must parse and start
// must not be after end; categories come from the configured options.
func (s *ManualService) AddSpan(ctx context.Context, kind manual.Kind, e manual.SpanEntry) error {
	if strings.TrimSpace(e.Variable) == "" {
		return fmt.Errorf("%w: variable name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}

	start, err := time.Parse("2006-01-02", truncateDate(e.StartDay))
	if err != nil {
		return fmt.Errorf("%w: start day %q is not a date", ErrInvalidInput, e.StartDay)
	}
	end, err := time.Parse("2006-01-02", truncateDate(e.EndDay))
	if err != nil {
		return fmt.Errorf("%w: end day %q is not a date", ErrInvalidInput, e.EndDay)
	}
	if start.After(end) {
		return fmt.Errorf("%w: start day cannot be after end day", ErrInvalidInput)
	}

	var categories []string
	switch kind {
	case manual.KindString:
		categories = s.catalog.StringCategories
	case manual.KindBinary:
		categories = s.catalog.BinaryCategories
	default:
		return fmt.Errorf("%w: %s", manual.ErrInvalidKind, kind)
	}
	if len(categories) > 0 && !contains(categories, e.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, e.Category)
	}

	if err := s.store.AppendSpan(ctx, kind, e); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ManualEntriesTotal.Add(ctx, 1)
	}
	return nil
}

// PlotVariables lists numeric manual variables for plot selection.
func (s *ManualService) PlotVariables(ctx context.Context) ([]string, error) {
	vars, err := s.store.ListValueVariables(ctx)
	if err != nil {
		return nil, err
	}
	if vars == nil {
		vars = []string{}
	}
	return vars, nil
}

// GanttVariables lists span variables for Gantt selection.
func (s *ManualService) GanttVariables(ctx context.Context) ([]string, error) {
	vars, err := s.store.ListSpanVariables(ctx)
	if err != nil {
		return nil, err
	}
	if vars == nil {
		vars = []string{}
	}
	return vars, nil
}

// EntryOptions returns the configured dropdown options for manual
// entry forms.
func (s *ManualService) EntryOptions() map[string][]string {
	return map[string][]string{
		"float_units":       s.catalog.FloatUnits,
		"string_categories": s.catalog.StringCategories,
		"binary_categories": s.catalog.BinaryCategories,
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func truncateDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
