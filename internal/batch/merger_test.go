package batch

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbrpulse/internal/config"
	"pbrpulse/internal/series"
	"pbrpulse/internal/storage"
)

const rawHeader = "VarName;TimeString;VarValue;Validity;Time_ms"

func rawExport(rows ...string) []byte {
	return []byte(rawHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func newTestMerger(t *testing.T) (*Merger, *storage.MemoryBucket, *storage.MemoryBucket) {
	t.Helper()

	catalog, err := config.LoadCatalog("")
	require.NoError(t, err)

	raw := storage.NewMemoryBucket()
	merged := storage.NewMemoryBucket()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewMerger(raw, merged, catalog, logger), raw, merged
}

func TestMerger_Run(t *testing.T) {
	ctx := context.Background()
	m, raw, merged := newTestMerger(t)

	require.NoError(t, raw.Write(ctx,
		"RS-FV_20240110_Export.csv",
		rawExport(
			"AI Values_78TT001 - Analog input;10-01-2024 08:00:00;21,5;1;0",
			"AI Values_78TT001 - Analog input;10-01-2024 08:01:00;21,7;1;0",
			"30P001.HMI.DATA_2;10-01-2024 08:00:00;0;1;0",
		),
		"text/csv"))
	require.NoError(t, raw.Write(ctx,
		"RS-FV_20240111_Export.csv",
		rawExport(
			"AI Values_78TT001 - Analog input;11-01-2024 08:00:00;22,0;1;0",
		),
		"text/csv"))
	// Outside the window, must be ignored.
	require.NoError(t, raw.Write(ctx,
		"RS-FV_20240201_Export.csv",
		rawExport(
			"AI Values_78TT001 - Analog input;01-02-2024 08:00:00;30,0;1;0",
		),
		"text/csv"))

	var stages []string
	result, err := m.Run(ctx, MergeRequest{
		Prefix:    "RS-FV",
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	}, func(stage string, current, total int) {
		stages = append(stages, stage)
	})
	require.NoError(t, err)

	assert.Equal(t, "RS-FV", result.Prefix)
	assert.Equal(t, 3, result.FilesIndexed)
	assert.Equal(t, []string{"RS-FV_20240110_Export.csv", "RS-FV_20240111_Export.csv"}, result.FilesSelected)
	assert.Equal(t, 4, result.RowsWritten)
	assert.Contains(t, result.SavedFiles, "RS-FV_AI Values_78TT001 - Analog input.csv")
	assert.Contains(t, result.SavedFiles, "RS-FV_30P001_HMI_DATA_2.csv")
	assert.Contains(t, stages, "downloading")
	assert.Contains(t, stages, "done")

	data, err := merged.Read(ctx, "RS-FV_AI Values_78TT001 - Analog input.csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "VarName,TimeString,VarValue,Validity,Time_ms", lines[0])
	// Rows keep file listing order so the series stays chronological.
	assert.Contains(t, lines[1], "10-01-2024 08:00:00")
	assert.Contains(t, lines[3], "11-01-2024 08:00:00")
}

func TestMerger_Run_SkipsMalformedRows(t *testing.T) {
	ctx := context.Background()
	m, raw, merged := newTestMerger(t)

	require.NoError(t, raw.Write(ctx,
		"RS-FV_20240110_Export.csv",
		[]byte(rawHeader+"\n"+
			"AI Values_78TT001 - Analog input;10-01-2024 08:00:00;21,5;1;0\n"+
			"short;row\n"+
			"Unknown Variable;10-01-2024 08:00:00;1;1;0\n"),
		"text/csv"))

	result, err := m.Run(ctx, MergeRequest{
		Prefix:    "RS-FV",
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.RowsWritten)
	assert.Equal(t, []string{"RS-FV_AI Values_78TT001 - Analog input.csv"}, result.SavedFiles)

	names, err := merged.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestMerger_Run_SkipsMalformedFiles(t *testing.T) {
	ctx := context.Background()
	m, raw, merged := newTestMerger(t)

	require.NoError(t, raw.Write(ctx,
		"RS-FV_20240110_Export.csv",
		rawExport(
			"AI Values_78TT001 - Analog input;10-01-2024 08:00:00;21,5;1;0",
			"AI Values_78TT001 - Analog input;10-01-2024 08:01:00;21,7;1;0",
		),
		"text/csv"))
	// Export without a VarName column. The merge keeps going with the
	// remaining files.
	require.NoError(t, raw.Write(ctx,
		"RS-FV_20240111_Export.csv",
		[]byte("Foo;Bar\n1;2\n"),
		"text/csv"))

	result, err := m.Run(ctx, MergeRequest{
		Prefix:    "RS-FV",
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	}, nil)
	require.NoError(t, err)

	assert.Len(t, result.FilesSelected, 2)
	assert.Equal(t, 2, result.RowsWritten)
	assert.Equal(t, []string{"RS-FV_AI Values_78TT001 - Analog input.csv"}, result.SavedFiles)

	data, err := merged.Read(ctx, "RS-FV_AI Values_78TT001 - Analog input.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
}

func TestMerger_Run_MergedFilesParseBack(t *testing.T) {
	ctx := context.Background()
	m, raw, merged := newTestMerger(t)

	require.NoError(t, raw.Write(ctx,
		"RS-FV_20240110_Export.csv",
		rawExport(
			"AI Values_78TT001 - Analog input;10-01-2024 08:00:00;21,5;1;0",
			"AI Values_78TT001 - Analog input;10-01-2024 08:01:00;21,7;1;0",
		),
		"text/csv"))
	require.NoError(t, raw.Write(ctx,
		"RS-FV_20240111_Export.csv",
		rawExport(
			"AI Values_78TT001 - Analog input;11-01-2024 08:00:00;22,0;1;0",
		),
		"text/csv"))

	result, err := m.Run(ctx, MergeRequest{
		Prefix:    "RS-FV",
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"RS-FV_AI Values_78TT001 - Analog input.csv"}, result.SavedFiles)

	data, err := merged.Read(ctx, result.SavedFiles[0])
	require.NoError(t, err)

	// The merged file must survive the loader intact, comma decimals
	// included.
	s, err := series.ParseMerged(result.SavedFiles[0], data)
	require.NoError(t, err)
	require.Len(t, s.Points, result.RowsWritten)
	assert.Equal(t, 21.5, s.Points[0].Value)
	assert.Equal(t, 21.7, s.Points[1].Value)
	assert.Equal(t, 22.0, s.Points[2].Value)
	assert.True(t, s.Points[0].Time.Equal(time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1.0, s.Points[1].Elapsed)
}

func TestMerger_Run_NoFilesInWindow(t *testing.T) {
	ctx := context.Background()
	m, raw, merged := newTestMerger(t)

	require.NoError(t, raw.Write(ctx,
		"RS-FV_20240110_Export.csv",
		rawExport("AI Values_78TT001 - Analog input;10-01-2024 08:00:00;21,5;1;0"),
		"text/csv"))

	result, err := m.Run(ctx, MergeRequest{
		Prefix:    "RS-FV",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesIndexed)
	assert.Empty(t, result.SavedFiles)
	assert.Zero(t, result.RowsWritten)

	names, err := merged.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMerger_Preview(t *testing.T) {
	ctx := context.Background()
	m, raw, merged := newTestMerger(t)

	require.NoError(t, raw.Write(ctx, "RS-FV_20240110_Export.csv", []byte("x"), "text/csv"))
	require.NoError(t, raw.Write(ctx, "RS-FV_20240120_Export.csv", []byte("x"), "text/csv"))

	files, err := m.Preview(ctx,
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"RS-FV_20240110_Export.csv"}, files)

	// Preview must not touch the merged bucket.
	names, err := merged.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
