// Package plot assembles the JSON payloads behind the dashboard views:
// the multi-trace time plot and the Gantt event timeline.
package plot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"pbrpulse/internal/analytics"
	"pbrpulse/internal/batch"
	"pbrpulse/internal/config"
	"pbrpulse/internal/manual"
	"pbrpulse/internal/series"
	"pbrpulse/internal/storage"
)

// Time modes for the plot X axis.
const (
	TimeModeAbsolute = "absolute"
	TimeModeElapsed  = "elapsed"
)

// Trace kinds, mirroring the provenance of the data.
const (
	KindLine    = "line"    // merged process data
	KindScatter = "scatter" // manual readings, markers+lines
	KindBar     = "bar"     // offline lab analytics
)

// defaultUnit labels series whose unit is unknown.
const defaultUnit = "Value"

// Request selects the variables and time mode of one plot.
type Request struct {
	// Variables selects merged process series as "<prefix>_<variable>".
	Variables []string `json:"variables"`
	// AnalyticsVariables selects offline lab columns by display name.
	AnalyticsVariables []string `json:"analytics_variables"`
	// ManualVariables selects numeric manual variables, suffix included.
	ManualVariables []string `json:"manual_variables"`
	// TimeMode is "absolute" or "elapsed".
	TimeMode string `json:"time_mode"`
}

// Trace is one plotted series.
type Trace struct {
	Variable  string    `json:"variable"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Unit      string    `json:"unit"`
	Axis      int       `json:"axis"`
	X         []any     `json:"x"`
	Y         []float64 `json:"y"`
	Hovertext []string  `json:"hovertext,omitempty"`
}

// Axis describes one Y axis slot. Slot 1 is the primary axis; all
// higher slots render on the shared secondary axis.
type Axis struct {
	Slot int    `json:"slot"`
	Unit string `json:"unit"`
}

// Payload is a complete plot ready for rendering.
type Payload struct {
	Traces   []Trace `json:"traces"`
	Axes     []Axis  `json:"axes"`
	TimeMode string  `json:"time_mode"`
	XLabel   string  `json:"x_label"`
	XType    string  `json:"x_type"`
}

// ExportRow is one row of the operator data export. Only process
// variables are exported.
type ExportRow struct {
	Time     time.Time
	Elapsed  float64
	Variable string
	Value    float64
}

// AnalyticsSource provides the parsed offline lab-results table.
type AnalyticsSource interface {
	Table(ctx context.Context) (*analytics.Table, error)
}

// Assembler builds plot payloads from the merged, analytics and manual
// data sources.
type Assembler struct {
	merged    storage.Bucket
	catalog   *config.Catalog
	analytics AnalyticsSource
	manual    *manual.Store
	logger    *slog.Logger
}

// NewAssembler creates a plot assembler.
func NewAssembler(merged storage.Bucket, catalog *config.Catalog, analyticsSource AnalyticsSource, manualStore *manual.Store, logger *slog.Logger) *Assembler {
	return &Assembler{
		merged:    merged,
		catalog:   catalog,
		analytics: analyticsSource,
		manual:    manualStore,
		logger:    logger.With(slog.String("component", "plot_assembler")),
	}
}

// loadedSeries is one series with its provenance resolved.
type loadedSeries struct {
	variable  string
	display   string
	unit      string
	kind      string
	points    []series.Point
	hovertext []string
}

// Assemble builds the plot payload for a request and returns the
// export rows alongside it. Selected series that cannot be found are
// skipped, matching the dashboard's forgiving selection model.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Payload, []ExportRow, error) {
	timeMode := req.TimeMode
	if timeMode == "" {
		timeMode = TimeModeAbsolute
	}
	if timeMode != TimeModeAbsolute && timeMode != TimeModeElapsed {
		return nil, nil, fmt.Errorf("unknown time mode %q", req.TimeMode)
	}

	var loaded []loadedSeries
	var exportRows []ExportRow

	for _, sel := range req.Variables {
		ls, err := a.loadProcess(ctx, sel)
		if err != nil {
			a.logger.WarnContext(ctx, "skipping process variable",
				slog.String("selection", sel),
				slog.String("error", err.Error()))
			continue
		}
		loaded = append(loaded, *ls)
		for _, p := range ls.points {
			exportRows = append(exportRows, ExportRow{
				Time:     p.Time,
				Elapsed:  p.Elapsed,
				Variable: ls.variable,
				Value:    p.Value,
			})
		}
	}

	if len(req.AnalyticsVariables) > 0 {
		table, err := a.analytics.Table(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load lab analytics: %w", err)
		}
		for _, col := range req.AnalyticsVariables {
			ls, ok := a.loadAnalytics(table, col)
			if !ok {
				a.logger.WarnContext(ctx, "skipping unknown analytics column",
					slog.String("column", col))
				continue
			}
			loaded = append(loaded, *ls)
		}
	}

	for _, v := range req.ManualVariables {
		ls, err := a.loadManual(ctx, v)
		if err != nil {
			a.logger.WarnContext(ctx, "skipping manual variable",
				slog.String("variable", v),
				slog.String("error", err.Error()))
			continue
		}
		loaded = append(loaded, *ls)
	}

	// Stable trace order regardless of selection order.
	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].variable < loaded[j].variable
	})

	payload := &Payload{TimeMode: timeMode}
	if timeMode == TimeModeElapsed {
		payload.XLabel = "Elapsed Time (minutes)"
		payload.XType = "linear"
	} else {
		payload.XLabel = "Time (Absolute)"
		payload.XType = "date"
	}

	axisSlots := make(map[string]int)
	for _, ls := range loaded {
		unit := ls.unit
		if unit == "" {
			unit = defaultUnit
		}
		slot, ok := axisSlots[unit]
		if !ok {
			slot = len(axisSlots) + 1
			axisSlots[unit] = slot
			payload.Axes = append(payload.Axes, Axis{Slot: slot, Unit: unit})
		}

		trace := Trace{
			Variable:  ls.variable,
			Name:      ls.display,
			Kind:      ls.kind,
			Unit:      unit,
			Axis:      slot,
			Hovertext: ls.hovertext,
			X:         make([]any, len(ls.points)),
			Y:         make([]float64, len(ls.points)),
		}
		for i, p := range ls.points {
			if timeMode == TimeModeElapsed {
				trace.X[i] = p.Elapsed
			} else {
				trace.X[i] = p.Time.Format(time.RFC3339)
			}
			trace.Y[i] = p.Value
		}
		payload.Traces = append(payload.Traces, trace)
	}

	return payload, exportRows, nil
}

// loadProcess loads one merged process series, applying the IQR filter
// and one-minute resampling unless the variable is on the skip list.
func (a *Assembler) loadProcess(ctx context.Context, selection string) (*loadedSeries, error) {
	prefix, varName, found := strings.Cut(selection, "_")
	if !found || prefix == "" || varName == "" {
		return nil, fmt.Errorf("selection %q is not of the form prefix_variable", selection)
	}

	objectName := fmt.Sprintf("%s_%s.csv", prefix, batch.Sanitize(varName))
	data, err := a.merged.Read(ctx, objectName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("merged series %s not found", objectName)
		}
		return nil, fmt.Errorf("failed to read merged series %s: %w", objectName, err)
	}

	s, err := series.ParseMerged(varName, data)
	if err != nil {
		return nil, err
	}

	points := s.Points
	if !a.catalog.SkipOutliers(varName) {
		points = series.FilterIQR(points)
		points = series.Resample(points)
	}

	return &loadedSeries{
		variable: varName,
		display:  a.catalog.DisplayName(varName),
		unit:     a.catalog.Unit(varName),
		kind:     KindLine,
		points:   points,
	}, nil
}

// loadAnalytics converts one lab-results column into a bar trace.
func (a *Assembler) loadAnalytics(table *analytics.Table, column string) (*loadedSeries, bool) {
	samples, ok := table.Series(column)
	if !ok || len(samples) == 0 {
		return nil, false
	}

	start := samples[0].Time
	for _, s := range samples {
		if s.Time.Before(start) {
			start = s.Time
		}
	}

	ls := &loadedSeries{
		variable: column,
		display:  column,
		unit:     a.catalog.AnalyticsUnit(column),
		kind:     KindBar,
	}
	for _, s := range samples {
		ls.points = append(ls.points, series.Point{
			Time:    s.Time,
			Elapsed: s.Time.Sub(start).Minutes(),
			Value:   s.Value,
		})
		ls.hovertext = append(ls.hovertext, s.SampleID)
	}
	return ls, true
}

// loadManual converts one numeric manual variable into a scatter trace.
func (a *Assembler) loadManual(ctx context.Context, variable string) (*loadedSeries, error) {
	vs, err := a.manual.LoadValues(ctx, variable)
	if err != nil {
		return nil, err
	}
	if len(vs.Points) == 0 {
		return nil, fmt.Errorf("manual variable %s has no entries", variable)
	}

	unit := vs.Units
	return &loadedSeries{
		variable: variable,
		display:  variable,
		unit:     unit,
		kind:     KindScatter,
		points:   vs.Points,
	}, nil
}
