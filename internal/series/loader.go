// Package series loads merged per-variable CSV files into time series
// and provides the outlier filtering and resampling applied before
// plotting.
package series

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the timestamp format written by the control-system
// logger into the TimeString column.
const TimeLayout = "02-01-2006 15:04:05"

// ErrNoData indicates a merged file contained no parseable readings.
var ErrNoData = errors.New("series contains no parseable readings")

// Point is one reading of a process variable.
type Point struct {
	// Time is the absolute reading timestamp.
	Time time.Time
	// Elapsed is minutes since the first reading of the series.
	Elapsed float64
	// Value is the reading itself.
	Value float64
}

// Series is an ordered sequence of readings for one variable.
type Series struct {
	Name   string
	Points []Point
}

// ParseMerged decodes a merged comma-delimited series file. Rows whose
// TimeString or VarValue fail to parse are dropped; values may use a
// decimal comma. Points come back sorted by time with Elapsed computed
// relative to the earliest reading.
func ParseMerged(name string, data []byte) (*Series, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header row: %w", err)
	}

	timeCol, valueCol := -1, -1
	for i, col := range header {
		switch col {
		case "TimeString":
			timeCol = i
		case "VarValue":
			valueCol = i
		}
	}
	if timeCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("merged file %s lacks TimeString/VarValue columns", name)
	}

	var points []Point
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if timeCol >= len(record) || valueCol >= len(record) {
			continue
		}

		t, err := time.Parse(TimeLayout, record[timeCol])
		if err != nil {
			continue
		}
		v, err := ParseValue(record[valueCol])
		if err != nil {
			continue
		}
		points = append(points, Point{Time: t, Value: v})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("merged file %s: %w", name, ErrNoData)
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})

	start := points[0].Time
	for i := range points {
		points[i].Elapsed = points[i].Time.Sub(start).Minutes()
	}

	return &Series{Name: name, Points: points}, nil
}

// ParseValue parses a reading that may use either a decimal point or a
// decimal comma.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
