// Package manual manages operator-entered data: lab readings keyed by
// days since inoculation, and string/binary event spans for the Gantt
// view. Each variable lives in its own CSV in the manual bucket.
package manual

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"pbrpulse/internal/batch"
	"pbrpulse/internal/series"
	"pbrpulse/internal/storage"
)

// Kind is the data type of a manual variable, encoded in its filename
// suffix.
type Kind string

const (
	KindFloat      Kind = "float"
	KindPercentage Kind = "percentage"
	KindString     Kind = "string"
	KindBinary     Kind = "binary"
)

var (
	// ErrTemplateExists indicates a variable template already exists.
	ErrTemplateExists = errors.New("variable template already exists")
	// ErrInvalidKind indicates an unknown manual data type.
	ErrInvalidKind = errors.New("invalid manual data type")
	// ErrVariableNotFound indicates the manual variable has no file.
	ErrVariableNotFound = errors.New("manual variable not found")
)

// valueHeader is the schema of float and percentage variables.
var valueHeader = []string{"variable_name", "value", "units", "notes", "days_since_inoculation"}

// spanHeader is the schema of string and binary variables.
var spanHeader = []string{"variable_name", "start_day", "end_day", "category", "notes"}

// ValueEntry is one numeric manual reading.
type ValueEntry struct {
	Variable string  `json:"variable_name"`
	Value    float64 `json:"value"`
	Units    string  `json:"units"`
	Notes    string  `json:"notes"`
	Days     int     `json:"days_since_inoculation"`
}

// SpanEntry is one categorized event span.
type SpanEntry struct {
	Variable string `json:"variable_name"`
	StartDay string `json:"start_day"`
	EndDay   string `json:"end_day"`
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

// ValueSeries is a loaded numeric manual variable ready for plotting.
type ValueSeries struct {
	Name   string
	Units  string
	Points []series.Point
}

// Span is a parsed event span with resolved dates.
type Span struct {
	Variable string    `json:"variable"`
	Category string    `json:"category"`
	Start    time.Time `json:"start"`
	Finish   time.Time `json:"finish"`
}

// Store reads and writes manual variable files in the manual bucket.
type Store struct {
	bucket           storage.Bucket
	inoculationStart time.Time
	logger           *slog.Logger
}

// NewStore creates a manual data store.
func NewStore(bucket storage.Bucket, inoculationStart time.Time, logger *slog.Logger) *Store {
	return &Store{
		bucket:           bucket,
		inoculationStart: inoculationStart,
		logger:           logger.With(slog.String("component", "manual_store")),
	}
}

// IsValueKind reports whether the kind uses the numeric reading schema.
func IsValueKind(k Kind) bool {
	return k == KindFloat || k == KindPercentage
}

// IsSpanKind reports whether the kind uses the event span schema.
func IsSpanKind(k Kind) bool {
	return k == KindString || k == KindBinary
}

// fileName returns the object name of a variable of the given kind.
func fileName(variable string, kind Kind) string {
	return fmt.Sprintf("%s_%s.csv", batch.Sanitize(variable), kind)
}

// CreateTemplate creates an empty, header-only file for a new manual
// variable. Fails if a file of the same name and kind already exists.
func (s *Store) CreateTemplate(ctx context.Context, variable string, kind Kind) (string, error) {
	var header []string
	switch {
	case IsValueKind(kind):
		header = valueHeader
	case IsSpanKind(kind):
		header = spanHeader
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}

	name := fileName(variable, kind)
	exists, err := s.bucket.Exists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to check template %s: %w", name, err)
	}
	if exists {
		return "", fmt.Errorf("template %s: %w", name, ErrTemplateExists)
	}

	data, err := encodeRows(header)
	if err != nil {
		return "", err
	}
	if err := s.bucket.Write(ctx, name, data, "text/csv"); err != nil {
		return "", fmt.Errorf("failed to create template %s: %w", name, err)
	}

	s.logger.InfoContext(ctx, "manual variable template created",
		slog.String("file", name),
		slog.String("kind", string(kind)))
	return name, nil
}

// AppendValue records a numeric manual reading, creating the variable
// file on first write.
func (s *Store) AppendValue(ctx context.Context, kind Kind, e ValueEntry) error {
	if !IsValueKind(kind) {
		return fmt.Errorf("%w: %s is not a numeric type", ErrInvalidKind, kind)
	}
	row := []string{
		e.Variable,
		strconv.FormatFloat(e.Value, 'f', -1, 64),
		e.Units,
		e.Notes,
		strconv.Itoa(e.Days),
	}
	return s.appendRow(ctx, fileName(e.Variable, kind), valueHeader, row)
}

// AppendSpan records an event span, creating the variable file on
// first write.
func (s *Store) AppendSpan(ctx context.Context, kind Kind, e SpanEntry) error {
	if !IsSpanKind(kind) {
		return fmt.Errorf("%w: %s is not a span type", ErrInvalidKind, kind)
	}
	row := []string{e.Variable, e.StartDay, e.EndDay, e.Category, e.Notes}
	return s.appendRow(ctx, fileName(e.Variable, kind), spanHeader, row)
}

func (s *Store) appendRow(ctx context.Context, name string, header, row []string) error {
	exists, err := s.bucket.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", name, err)
	}

	var data []byte
	if !exists {
		data, err = encodeRows(header, row)
		if err != nil {
			return err
		}
	} else {
		existing, err := s.bucket.Read(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		appended, err := encodeRows(row)
		if err != nil {
			return err
		}
		if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
			existing = append(existing, '\n')
		}
		data = append(existing, appended...)
	}

	if err := s.bucket.Write(ctx, name, data, "text/csv"); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	s.logger.InfoContext(ctx, "manual entry recorded", slog.String("file", name))
	return nil
}

// ListValueVariables lists numeric manual variables, filename suffix
// included ("Biomass_float", "Viability_percentage", ...).
func (s *Store) ListValueVariables(ctx context.Context) ([]string, error) {
	files, err := s.bucket.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list manual files: %w", err)
	}

	var vars []string
	for _, f := range files {
		if !strings.HasSuffix(f, ".csv") {
			continue
		}
		if strings.HasSuffix(f, "_binary.csv") || strings.HasSuffix(f, "_string.csv") {
			continue
		}
		base := f
		if idx := strings.LastIndex(base, "/"); idx >= 0 {
			base = base[idx+1:]
		}
		vars = append(vars, strings.TrimSuffix(base, ".csv"))
	}
	return vars, nil
}

// ListSpanVariables lists Gantt variables, deduplicated across their
// _binary and _string files and with the suffix stripped.
func (s *Store) ListSpanVariables(ctx context.Context) ([]string, error) {
	files, err := s.bucket.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list manual files: %w", err)
	}

	seen := make(map[string]struct{})
	for _, f := range files {
		base := f
		if idx := strings.LastIndex(base, "/"); idx >= 0 {
			base = base[idx+1:]
		}
		var name string
		switch {
		case strings.HasSuffix(base, "_binary.csv"):
			name = strings.TrimSuffix(base, "_binary.csv")
		case strings.HasSuffix(base, "_string.csv"):
			name = strings.TrimSuffix(base, "_string.csv")
		default:
			continue
		}
		seen[name] = struct{}{}
	}

	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars, nil
}

// LoadValues loads a numeric manual variable by its suffixed name.
// Day offsets resolve to timestamps against the inoculation start, and
// elapsed minutes are computed relative to the earliest entry.
func (s *Store) LoadValues(ctx context.Context, variable string) (*ValueSeries, error) {
	if strings.HasSuffix(variable, "_binary") || strings.HasSuffix(variable, "_string") {
		return nil, fmt.Errorf("%s holds event spans, not values: %w", variable, ErrVariableNotFound)
	}

	name := variable + ".csv"
	data, err := s.bucket.Read(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%s: %w", variable, ErrVariableNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	cols, rows, err := parseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	for _, required := range []string{"value", "units", "days_since_inoculation"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%s lacks required column %q", name, required)
		}
	}

	vs := &ValueSeries{Name: variable}
	for _, row := range rows {
		days, err := strconv.Atoi(strings.TrimSpace(row[cols["days_since_inoculation"]]))
		if err != nil {
			continue
		}
		value, err := series.ParseValue(row[cols["value"]])
		if err != nil {
			continue
		}
		if vs.Units == "" {
			vs.Units = row[cols["units"]]
		}
		vs.Points = append(vs.Points, series.Point{
			Time:  s.inoculationStart.AddDate(0, 0, days),
			Value: value,
		})
	}

	if len(vs.Points) == 0 {
		return vs, nil
	}

	sort.SliceStable(vs.Points, func(i, j int) bool {
		return vs.Points[i].Time.Before(vs.Points[j].Time)
	})
	start := vs.Points[0].Time
	for i := range vs.Points {
		vs.Points[i].Elapsed = vs.Points[i].Time.Sub(start).Minutes()
	}
	return vs, nil
}

// LoadSpans loads the event spans of a Gantt variable, reading both the
// _binary and _string files when present. Date cells are truncated to
// their first ten characters before parsing; rows with unparseable
// dates are dropped.
func (s *Store) LoadSpans(ctx context.Context, variable string) ([]Span, error) {
	var spans []Span
	for _, kind := range []Kind{KindBinary, KindString} {
		name := fmt.Sprintf("%s_%s.csv", variable, kind)
		data, err := s.bucket.Read(ctx, name)
		if errors.Is(err, storage.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		cols, rows, err := parseCSV(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		missing := false
		for _, required := range []string{"start_day", "end_day", "category"} {
			if _, ok := cols[required]; !ok {
				missing = true
			}
		}
		if missing {
			s.logger.WarnContext(ctx, "span file lacks required columns, skipping",
				slog.String("file", name))
			continue
		}

		for _, row := range rows {
			start, err := parseSpanDate(row[cols["start_day"]])
			if err != nil {
				continue
			}
			finish, err := parseSpanDate(row[cols["end_day"]])
			if err != nil {
				continue
			}
			spans = append(spans, Span{
				Variable: variable,
				Category: row[cols["category"]],
				Start:    start,
				Finish:   finish,
			})
		}
	}
	return spans, nil
}

// parseSpanDate parses a span date cell. Entries written through the
// date pickers sometimes carry a time suffix, so only the leading
// YYYY-MM-DD characters count.
func parseSpanDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}

// parseCSV parses a headered comma CSV into a column index and rows.
// Rows shorter than the header are dropped.
func parseCSV(data []byte) (map[string]int, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("missing header row: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, c := range header {
		cols[strings.TrimSpace(c)] = i
	}

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(record) < len(header) {
			continue
		}
		rows = append(rows, record)
	}
	return cols, rows, nil
}

func encodeRows(rows ...[]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
