package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pbrpulse/internal/analytics"
	"pbrpulse/internal/config"
	"pbrpulse/internal/exporter"
	"pbrpulse/internal/infrastructure"
	"pbrpulse/internal/plot"
	"pbrpulse/internal/storage"
)

// Option is one selectable entry in a dashboard dropdown.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AnalyticsCache lazily loads and caches the offline lab-results table
// from the raw bucket. The file changes only when the lab delivers new
// results, so one parse per process lifetime is enough.
type AnalyticsCache struct {
	raw              storage.Bucket
	objectName       string
	inoculationStart time.Time

	mu    sync.Mutex
	table *analytics.Table
}

// NewAnalyticsCache creates a lab-results cache over the raw bucket.
func NewAnalyticsCache(raw storage.Bucket, objectName string, inoculationStart time.Time) *AnalyticsCache {
	return &AnalyticsCache{
		raw:              raw,
		objectName:       objectName,
		inoculationStart: inoculationStart,
	}
}

// Table returns the parsed lab-results table, loading it on first use.
// Load failures are not cached so a later upload can succeed.
func (c *AnalyticsCache) Table(ctx context.Context) (*analytics.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.table != nil {
		return c.table, nil
	}

	data, err := c.raw.Read(ctx, c.objectName)
	if err != nil {
		return nil, fmt.Errorf("failed to read lab results %s: %w", c.objectName, err)
	}
	table, err := analytics.Parse(data, c.inoculationStart)
	if err != nil {
		return nil, err
	}
	c.table = table
	return table, nil
}

// DashboardService assembles plot, Gantt and export payloads.
type DashboardService struct {
	assembler *plot.Assembler
	analytics *AnalyticsCache
	catalog   *config.Catalog
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger
}

// NewDashboardService creates a dashboard service.
func NewDashboardService(assembler *plot.Assembler, analyticsCache *AnalyticsCache, catalog *config.Catalog, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		assembler: assembler,
		analytics: analyticsCache,
		catalog:   catalog,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "dashboard_service")),
	}
}

// Plot assembles the plot payload for a selection.
func (s *DashboardService) Plot(ctx context.Context, req plot.Request) (*plot.Payload, error) {
	began := time.Now()
	payload, _, err := s.assembler.Assemble(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PlotRendersTotal.Add(ctx, 1)
		s.metrics.PlotRenderDuration.Record(ctx, time.Since(began).Seconds())
	}

	s.logger.DebugContext(ctx, "plot assembled",
		slog.Int("traces", len(payload.Traces)),
		slog.Duration("took", time.Since(began)))
	return payload, nil
}

// Gantt assembles the event timeline for the selected span variables.
func (s *DashboardService) Gantt(ctx context.Context, variables []string) (*plot.GanttPayload, error) {
	return s.assembler.AssembleGantt(ctx, variables)
}

// Export assembles the current plot selection and serializes its
// process-variable rows in the requested format.
func (s *DashboardService) Export(ctx context.Context, req plot.Request, format exporter.Format) (string, string, []byte, error) {
	if format != exporter.FormatCSV && format != exporter.FormatXLSX {
		return "", "", nil, fmt.Errorf("%w: unsupported export format %q", ErrInvalidInput, format)
	}

	payload, rows, err := s.assembler.Assemble(ctx, req)
	if err != nil {
		return "", "", nil, err
	}

	var buf bytes.Buffer
	switch format {
	case exporter.FormatXLSX:
		err = exporter.WriteXLSX(&buf, rows, payload.TimeMode)
	default:
		err = exporter.WriteCSV(&buf, rows, payload.TimeMode)
	}
	if err != nil {
		return "", "", nil, err
	}

	if s.metrics != nil {
		s.metrics.ExportsTotal.Add(ctx, 1)
	}

	filename := exporter.Filename(format, time.Now())
	return filename, exporter.ContentType(format), buf.Bytes(), nil
}

// ProcessVariableOptions lists the selectable process series for a set
// of batch prefixes, labeled "<prefix>: <display name>".
func (s *DashboardService) ProcessVariableOptions(prefixes []string) []Option {
	options := make([]Option, 0, len(prefixes)*len(s.catalog.Variables))
	for _, prefix := range prefixes {
		for _, v := range s.catalog.Variables {
			options = append(options, Option{
				Value: fmt.Sprintf("%s_%s", prefix, v.Name),
				Label: fmt.Sprintf("%s: %s", prefix, s.catalog.DisplayName(v.Name)),
			})
		}
	}
	return options
}

// AnalyticsVariableOptions lists the offline lab columns in file order.
func (s *DashboardService) AnalyticsVariableOptions(ctx context.Context) ([]Option, error) {
	table, err := s.analytics.Table(ctx)
	if err != nil {
		return nil, err
	}

	columns := table.Columns()
	options := make([]Option, 0, len(columns))
	for _, col := range columns {
		options = append(options, Option{Value: col, Label: col})
	}
	return options, nil
}
