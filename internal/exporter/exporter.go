// Package exporter writes the currently plotted process data to CSV or
// XLSX for offline analysis.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"pbrpulse/internal/plot"
)

// Format selects the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// exportTimeLayout formats absolute timestamps in export files.
const exportTimeLayout = "2006-01-02 15:04:05"

// Filename returns the download filename for an export taken at ts.
func Filename(format Format, ts time.Time) string {
	return fmt.Sprintf("exported_graph_data_%s.%s", ts.Format("20060102_150405"), format)
}

// ContentType returns the MIME type for a format.
func ContentType(format Format) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// header returns the export column headers for a time mode.
func header(timeMode string) []string {
	if timeMode == plot.TimeModeElapsed {
		return []string{"Elapsed Time (minutes)", "Variable", "VarValue"}
	}
	return []string{"Time", "Variable", "VarValue"}
}

// cells renders one export row for a time mode.
func cells(row plot.ExportRow, timeMode string) []string {
	var x string
	if timeMode == plot.TimeModeElapsed {
		x = strconv.FormatFloat(row.Elapsed, 'f', -1, 64)
	} else {
		x = row.Time.Format(exportTimeLayout)
	}
	return []string{x, row.Variable, strconv.FormatFloat(row.Value, 'f', -1, 64)}
}

// WriteCSV writes export rows as CSV.
func WriteCSV(w io.Writer, rows []plot.ExportRow, timeMode string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(timeMode)); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(cells(row, timeMode)); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return nil
}

// WriteXLSX writes export rows as a single-sheet XLSX workbook.
func WriteXLSX(w io.Writer, rows []plot.ExportRow, timeMode string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	hdr := header(timeMode)
	hdrCells := make([]interface{}, len(hdr))
	for i, h := range hdr {
		hdrCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdrCells); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address export row: %w", err)
		}

		var x interface{}
		if timeMode == plot.TimeModeElapsed {
			x = row.Elapsed
		} else {
			x = row.Time.Format(exportTimeLayout)
		}
		values := []interface{}{x, row.Variable, row.Value}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
