package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pbrpulse/internal/config"
	"pbrpulse/internal/exporter"
	"pbrpulse/internal/manual"
	"pbrpulse/internal/plot"
	"pbrpulse/internal/storage"
)

const labResultsObject = "lab_results.csv"

var testInoculation = time.Date(2023, 12, 11, 0, 0, 0, 0, time.UTC)

func labResultsCSV() []byte {
	return []byte("Results;;\n" +
		"Sample Day;3;10\n" +
		"SAMPLE I.D;RS-FV-1;RS-FV-2\n" +
		"% PROTEIN;45,2;47,8\n")
}

func mergedSeriesCSV(times, values []string) []byte {
	out := "VarName,TimeString,VarValue\n"
	for i := range times {
		out += fmt.Sprintf("v,%s,%q\n", times[i], values[i])
	}
	return []byte(out)
}

func newTestDashboardService(t *testing.T) (*DashboardService, *storage.MemoryBucket, *storage.MemoryBucket) {
	t.Helper()

	catalog, err := config.LoadCatalog("")
	require.NoError(t, err)

	raw := storage.NewMemoryBucket()
	merged := storage.NewMemoryBucket()
	manualBucket := storage.NewMemoryBucket()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := manual.NewStore(manualBucket, testInoculation, logger)
	cache := NewAnalyticsCache(raw, labResultsObject, testInoculation)
	assembler := plot.NewAssembler(merged, catalog, cache, store, logger)

	return NewDashboardService(assembler, cache, catalog, nil, logger), raw, merged
}

func TestDashboardService_Plot(t *testing.T) {
	ctx := context.Background()
	svc, _, merged := newTestDashboardService(t)

	require.NoError(t, merged.Write(ctx,
		"RS-FV_AI Values_78TT001 - Analog input.csv",
		mergedSeriesCSV(
			[]string{"10-01-2024 08:00:00", "10-01-2024 08:01:00"},
			[]string{"21,5", "21,7"}),
		"text/csv"))

	payload, err := svc.Plot(ctx, plot.Request{
		Variables: []string{"RS-FV_AI Values_78TT001 - Analog input"},
	})
	require.NoError(t, err)
	require.Len(t, payload.Traces, 1)
	assert.Equal(t, []float64{21.5, 21.7}, payload.Traces[0].Y)
}

func TestDashboardService_Export(t *testing.T) {
	ctx := context.Background()
	svc, _, merged := newTestDashboardService(t)

	require.NoError(t, merged.Write(ctx,
		"RS-FV_AI Values_78TT001 - Analog input.csv",
		mergedSeriesCSV([]string{"10-01-2024 08:00:00"}, []string{"21,5"}),
		"text/csv"))

	req := plot.Request{Variables: []string{"RS-FV_AI Values_78TT001 - Analog input"}}

	filename, contentType, data, err := svc.Export(ctx, req, exporter.FormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "exported_graph_data_"))
	assert.True(t, strings.HasSuffix(filename, ".csv"))
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), "Time,Variable,VarValue")
	assert.Contains(t, string(data), "2024-01-10 08:00:00")

	filename, contentType, data, err = svc.Export(ctx, req, exporter.FormatXLSX)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(filename, ".xlsx"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", contentType)

	book, err := excelize.OpenReader(strings.NewReader(string(data)))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Sheet1")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"Time", "Variable", "VarValue"}, rows[0])
}

func TestDashboardService_Export_UnknownFormat(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestDashboardService(t)

	_, _, _, err := svc.Export(ctx, plot.Request{}, exporter.Format("pdf"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDashboardService_ProcessVariableOptions(t *testing.T) {
	svc, _, _ := newTestDashboardService(t)

	options := svc.ProcessVariableOptions([]string{"RS-FV", "RS2"})
	require.NotEmpty(t, options)
	assert.Len(t, options, 2*len(svc.catalog.Variables))

	assert.Contains(t, options, Option{
		Value: "RS-FV_AI Values_78TT001 - Analog input",
		Label: "RS-FV: Cooling circuit, before PBR (°C)",
	})
	assert.Contains(t, options, Option{
		Value: "RS2_AI Values_78TT001 - Analog input",
		Label: "RS2: Cooling circuit, before PBR (°C)",
	})
}

func TestDashboardService_ProcessVariableOptions_NoPrefixes(t *testing.T) {
	svc, _, _ := newTestDashboardService(t)

	assert.Empty(t, svc.ProcessVariableOptions(nil))
}

func TestDashboardService_AnalyticsVariableOptions(t *testing.T) {
	ctx := context.Background()
	svc, raw, _ := newTestDashboardService(t)

	require.NoError(t, raw.Write(ctx, labResultsObject, labResultsCSV(), "text/csv"))

	options, err := svc.AnalyticsVariableOptions(ctx)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, Option{Value: "Table1: % PROTEIN", Label: "Table1: % PROTEIN"}, options[0])
}

func TestDashboardService_AnalyticsVariableOptions_MissingFile(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestDashboardService(t)

	_, err := svc.AnalyticsVariableOptions(ctx)
	assert.Error(t, err)
}

func TestAnalyticsCache_CachesSuccessNotFailure(t *testing.T) {
	ctx := context.Background()
	raw := storage.NewMemoryBucket()
	cache := NewAnalyticsCache(raw, labResultsObject, testInoculation)

	_, err := cache.Table(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound))

	require.NoError(t, raw.Write(ctx, labResultsObject, labResultsCSV(), "text/csv"))

	first, err := cache.Table(ctx)
	require.NoError(t, err)

	// Replacing the object does not invalidate the parsed table.
	require.NoError(t, raw.Write(ctx, labResultsObject, []byte("Results;;\nSample Day;5\n"), "text/csv"))

	second, err := cache.Table(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
}
