// Package analytics parses the offline lab-results CSV into plottable
// columns. The source file is transposed: each row holds one measured
// quantity, with samples spread across the columns.
package analytics

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"pbrpulse/internal/series"
)

// Lab results arrive as two side-by-side tables within the same sheet:
// composition measurements and mineral content. The column ranges are
// fixed by the lab's export template.
const (
	table1Start = 1
	table1End   = 20
	table2Start = 21
	table2End   = 35
)

// excluded bookkeeping columns, never offered as plottable series.
const (
	sampleDayColumn = "Sample Day"
	sampleIDColumn  = "SAMPLE I.D"
)

// Sample is one lab measurement of one quantity.
type Sample struct {
	// Time is the sampling timestamp derived from the inoculation
	// start and the fractional Sample Day offset.
	Time time.Time
	// Day is days since inoculation.
	Day float64
	// Value is the measured quantity.
	Value float64
	// SampleID labels the physical sample, used as hover text.
	SampleID string
}

// Table holds the parsed lab-results columns keyed by display name
// ("Table1: % PROTEIN", "Table2: Iron", ...).
type Table struct {
	columns []string
	samples map[string][]Sample
}

// Parse decodes the transposed semicolon-delimited lab-results file.
// inoculationStart anchors the Sample Day offsets to calendar time.
func Parse(data []byte, inoculationStart time.Time) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = ';'
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse lab results: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("lab results file is empty")
	}

	// Transposed layout: each record starts with the quantity name,
	// followed by one value per sample.
	headers := make([]string, len(records))
	sampleCount := 0
	for i, rec := range records {
		if len(rec) > 0 {
			headers[i] = rec[0]
		}
		if len(rec)-1 > sampleCount {
			sampleCount = len(rec) - 1
		}
	}

	t := &Table{samples: make(map[string][]Sample)}
	t.parseRange(records, headers, sampleCount, table1Start, table1End, "Table1", inoculationStart)
	t.parseRange(records, headers, sampleCount, table2Start, table2End, "Table2", inoculationStart)

	if len(t.columns) == 0 {
		return nil, fmt.Errorf("lab results file yielded no data columns")
	}
	return t, nil
}

func (t *Table) parseRange(records [][]string, headers []string, sampleCount, start, end int, label string, inoculationStart time.Time) {
	if start >= len(records) {
		return
	}
	if end > len(records) {
		end = len(records)
	}

	cell := func(row, sample int) string {
		rec := records[row]
		if sample+1 < len(rec) {
			return rec[sample+1]
		}
		return ""
	}

	// Locate the bookkeeping rows within this table's range.
	dayRow, idRow := -1, -1
	for i := start; i < end; i++ {
		switch headers[i] {
		case sampleDayColumn:
			dayRow = i
		case sampleIDColumn:
			idRow = i
		}
	}
	if dayRow < 0 {
		return
	}

	// Per-sample timestamps from the Sample Day offsets.
	times := make([]time.Time, sampleCount)
	days := make([]float64, sampleCount)
	valid := make([]bool, sampleCount)
	for s := 0; s < sampleCount; s++ {
		day, err := series.ParseValue(cell(dayRow, s))
		if err != nil {
			continue
		}
		days[s] = day
		times[s] = inoculationStart.Add(time.Duration(day * 24 * float64(time.Hour)))
		valid[s] = true
	}

	for i := start; i < end; i++ {
		name := headers[i]
		if name == "" || name == sampleDayColumn || name == sampleIDColumn {
			continue
		}

		display := fmt.Sprintf("%s: %s", label, name)
		var samples []Sample
		for s := 0; s < sampleCount; s++ {
			if !valid[s] {
				continue
			}
			v, err := series.ParseValue(cell(i, s))
			if err != nil {
				continue
			}
			sample := Sample{Time: times[s], Day: days[s], Value: v}
			if idRow >= 0 {
				sample.SampleID = cell(idRow, s)
			}
			samples = append(samples, sample)
		}
		if len(samples) == 0 {
			continue
		}

		t.columns = append(t.columns, display)
		t.samples[display] = samples
	}
}

// Columns returns the plottable column display names in file order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Series returns the samples of one column.
func (t *Table) Series(column string) ([]Sample, bool) {
	s, ok := t.samples[column]
	return s, ok
}
