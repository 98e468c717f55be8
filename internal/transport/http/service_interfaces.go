package http

import (
	"context"

	"pbrpulse/internal/batch"
	"pbrpulse/internal/exporter"
	"pbrpulse/internal/manual"
	"pbrpulse/internal/plot"
	"pbrpulse/internal/services"
)

// BatchServiceInterface defines the interface for merge-run operations
type BatchServiceInterface interface {
	Merge(ctx context.Context, prefix, startDate, endDate string) (*batch.MergeResult, error)
	Preview(ctx context.Context, startDate, endDate string) ([]string, error)
	Prefixes(ctx context.Context) ([]string, error)
	MergeActive() bool
}

// DashboardServiceInterface defines the interface for plot, gantt and
// export payload assembly
type DashboardServiceInterface interface {
	Plot(ctx context.Context, req plot.Request) (*plot.Payload, error)
	Gantt(ctx context.Context, variables []string) (*plot.GanttPayload, error)
	Export(ctx context.Context, req plot.Request, format exporter.Format) (string, string, []byte, error)
	ProcessVariableOptions(prefixes []string) []services.Option
	AnalyticsVariableOptions(ctx context.Context) ([]services.Option, error)
}

// ManualServiceInterface defines the interface for operator-entered data
type ManualServiceInterface interface {
	CreateVariable(ctx context.Context, name string, kind manual.Kind) (string, error)
	AddValue(ctx context.Context, kind manual.Kind, e manual.ValueEntry) error
	AddSpan(ctx context.Context, kind manual.Kind, e manual.SpanEntry) error
	PlotVariables(ctx context.Context) ([]string, error)
	GanttVariables(ctx context.Context) ([]string, error)
	EntryOptions() map[string][]string
}
