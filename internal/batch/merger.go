package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pbrpulse/internal/config"
	"pbrpulse/internal/storage"
)

// Raw exports are semicolon-delimited with one row per reading, tagged
// by the VarName column.
const rawDelimiter = ';'

// downloadConcurrency bounds parallel object downloads during a merge.
const downloadConcurrency = 8

// MergeRequest describes one merge run over the raw bucket.
type MergeRequest struct {
	Prefix    string
	StartDate time.Time
	EndDate   time.Time
}

// MergeResult summarizes a completed merge run.
type MergeResult struct {
	Prefix        string   `json:"prefix"`
	FilesIndexed  int      `json:"files_indexed"`
	FilesSelected []string `json:"files_selected"`
	SavedFiles    []string `json:"saved_files"`
	RowsWritten   int      `json:"rows_written"`
}

// ProgressFunc receives progress updates during a merge run.
type ProgressFunc func(stage string, current, total int)

// Merger merges raw control-system exports into one series file per
// process variable, named "<prefix>_<sanitized variable>.csv" in the
// merged bucket.
type Merger struct {
	raw     storage.Bucket
	merged  storage.Bucket
	catalog *config.Catalog
	logger  *slog.Logger
}

// NewMerger creates a merger over the given buckets.
func NewMerger(raw, merged storage.Bucket, catalog *config.Catalog, logger *slog.Logger) *Merger {
	return &Merger{
		raw:     raw,
		merged:  merged,
		catalog: catalog,
		logger:  logger.With(slog.String("component", "merger")),
	}
}

// fileExtract holds the per-variable rows pulled from one raw export.
type fileExtract struct {
	header map[string][]string
	rows   map[string][][]string
}

// Preview lists the raw exports that a merge over the given window
// would consume, without reading or writing anything.
func (m *Merger) Preview(ctx context.Context, start, end time.Time) ([]string, error) {
	files, err := m.raw.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list raw exports: %w", err)
	}
	return FilterByDate(files, start, end), nil
}

// Run executes a merge: list the raw bucket, select exports in the date
// window, extract catalog variables from each, and write one merged CSV
// per variable. Downloads run concurrently but rows are appended in
// listing order so merged files stay chronological across exports.
// Exports that cannot be read or parsed are logged and skipped so one
// bad file never sinks the whole run.
func (m *Merger) Run(ctx context.Context, req MergeRequest, progress ProgressFunc) (*MergeResult, error) {
	if progress == nil {
		progress = func(string, int, int) {}
	}

	files, err := m.raw.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list raw exports: %w", err)
	}

	selected := FilterByDate(files, req.StartDate, req.EndDate)
	if len(selected) == 0 {
		return &MergeResult{Prefix: req.Prefix, FilesIndexed: len(files)}, nil
	}

	m.logger.InfoContext(ctx, "merge started",
		slog.String("prefix", req.Prefix),
		slog.Int("files_selected", len(selected)),
		slog.Time("start_date", req.StartDate),
		slog.Time("end_date", req.EndDate))

	progress("downloading", 0, len(selected))

	names := m.catalog.Names()
	extracts := make([]*fileExtract, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for i, file := range selected {
		g.Go(func() error {
			data, err := m.raw.Read(gctx, file)
			if err != nil {
				m.logger.WarnContext(gctx, "skipping unreadable raw export",
					slog.String("file", file),
					slog.String("error", err.Error()))
				return nil
			}
			ex, err := extractVariables(data, names)
			if err != nil {
				m.logger.WarnContext(gctx, "skipping malformed raw export",
					slog.String("file", file),
					slog.String("error", err.Error()))
				return nil
			}
			extracts[i] = ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	progress("merging", 0, len(selected))

	// Accumulate rows per variable in file listing order.
	headers := make(map[string][]string)
	rows := make(map[string][][]string)
	for i, ex := range extracts {
		if ex == nil {
			progress("merging", i+1, len(selected))
			continue
		}
		for _, name := range names {
			varRows := ex.rows[name]
			if len(varRows) == 0 {
				continue
			}
			if _, ok := headers[name]; !ok {
				headers[name] = ex.header[name]
			}
			rows[name] = append(rows[name], varRows...)
		}
		progress("merging", i+1, len(selected))
	}

	result := &MergeResult{
		Prefix:        req.Prefix,
		FilesIndexed:  len(files),
		FilesSelected: selected,
	}

	for _, name := range names {
		varRows := rows[name]
		if len(varRows) == 0 {
			continue
		}

		out, err := encodeMerged(headers[name], varRows)
		if err != nil {
			return nil, fmt.Errorf("failed to encode merged series for %s: %w", name, err)
		}

		objectName := fmt.Sprintf("%s_%s.csv", req.Prefix, Sanitize(name))
		if err := m.merged.Write(ctx, objectName, out, "text/csv"); err != nil {
			return nil, fmt.Errorf("failed to write merged series %s: %w", objectName, err)
		}

		result.SavedFiles = append(result.SavedFiles, objectName)
		result.RowsWritten += len(varRows)

		m.logger.DebugContext(ctx, "merged series saved",
			slog.String("object", objectName),
			slog.Int("rows", len(varRows)))
	}

	progress("done", len(selected), len(selected))

	m.logger.InfoContext(ctx, "merge completed",
		slog.String("prefix", req.Prefix),
		slog.Int("saved_files", len(result.SavedFiles)),
		slog.Int("rows_written", result.RowsWritten))

	return result, nil
}

// extractVariables parses a semicolon-delimited raw export and splits
// its rows by the VarName column. Rows with a deviating field count and
// unknown variables are dropped.
func extractVariables(data []byte, names []string) (*fileExtract, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = rawDelimiter
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header row: %w", err)
	}

	varCol := -1
	for i, col := range header {
		if col == "VarName" {
			varCol = i
			break
		}
	}
	if varCol < 0 {
		return nil, fmt.Errorf("no VarName column in header")
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	ex := &fileExtract{
		header: make(map[string][]string),
		rows:   make(map[string][][]string),
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed line. Skip it the way the logger's own
			// exports sometimes require.
			continue
		}
		if len(record) != len(header) || varCol >= len(record) {
			continue
		}
		name := record[varCol]
		if !wanted[name] {
			continue
		}
		if _, ok := ex.header[name]; !ok {
			ex.header[name] = header
		}
		ex.rows[name] = append(ex.rows[name], record)
	}

	return ex, nil
}

// encodeMerged writes the merged series as comma-delimited CSV, header
// first. Downstream loaders and spreadsheet users both expect commas.
func encodeMerged(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
