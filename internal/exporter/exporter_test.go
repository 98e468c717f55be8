package exporter

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pbrpulse/internal/plot"
)

var exportRows = []plot.ExportRow{
	{
		Time:     time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC),
		Elapsed:  0,
		Variable: "Before the PBR (°C)",
		Value:    21.5,
	},
	{
		Time:     time.Date(2024, 1, 10, 8, 1, 0, 0, time.UTC),
		Elapsed:  1,
		Variable: "Before the PBR (°C)",
		Value:    21.7,
	},
}

func TestFilename(t *testing.T) {
	ts := time.Date(2024, 1, 10, 8, 30, 15, 0, time.UTC)

	assert.Equal(t, "exported_graph_data_20240110_083015.csv", Filename(FormatCSV, ts))
	assert.Equal(t, "exported_graph_data_20240110_083015.xlsx", Filename(FormatXLSX, ts))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", ContentType(FormatCSV))
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		ContentType(FormatXLSX))
}

func TestWriteCSV_Absolute(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exportRows, plot.TimeModeAbsolute))

	want := "Time,Variable,VarValue\n" +
		"2024-01-10 08:00:00,Before the PBR (°C),21.5\n" +
		"2024-01-10 08:01:00,Before the PBR (°C),21.7\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_Elapsed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exportRows, plot.TimeModeElapsed))

	want := "Elapsed Time (minutes),Variable,VarValue\n" +
		"0,Before the PBR (°C),21.5\n" +
		"1,Before the PBR (°C),21.7\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, plot.TimeModeAbsolute))
	assert.Equal(t, "Time,Variable,VarValue\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, exportRows, plot.TimeModeAbsolute))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Time", "Variable", "VarValue"}, rows[0])
	assert.Equal(t, "2024-01-10 08:00:00", rows[1][0])
	assert.Equal(t, "Before the PBR (°C)", rows[1][1])
	assert.Equal(t, "21.5", rows[1][2])
}
