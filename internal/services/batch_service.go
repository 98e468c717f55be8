package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"pbrpulse/internal/batch"
	"pbrpulse/internal/infrastructure"
	"pbrpulse/internal/storage"
)

// dateLayout is the wire format of merge window boundaries.
const dateLayout = "2006-01-02"

// WebSocketHub pushes updates to connected dashboard clients.
type WebSocketHub interface {
	Broadcast(messageType string, data interface{})
	BroadcastProgress(stage string, current, total int)
}

// BatchService orchestrates merge runs over the raw export bucket.
type BatchService struct {
	merger  *batch.Merger
	merged  storage.Bucket
	hub     WebSocketHub
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger

	// Only one merge runs at a time; concurrent requests are rejected
	// rather than queued so the operator sees the conflict.
	mergeActive atomic.Bool
}

// NewBatchService creates a batch service.
func NewBatchService(merger *batch.Merger, merged storage.Bucket, hub WebSocketHub, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *BatchService {
	return &BatchService{
		merger:  merger,
		merged:  merged,
		hub:     hub,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "batch_service")),
	}
}

// Merge validates and executes one merge run, broadcasting progress to
// connected clients and recording metrics.
func (s *BatchService) Merge(ctx context.Context, prefix, startDate, endDate string) (*batch.MergeResult, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("%w: prefix is required", ErrInvalidPrefix)
	}
	// Prefixes are recovered later by splitting object names on the
	// first underscore, so the prefix itself must not contain one.
	if strings.Contains(prefix, "_") {
		return nil, fmt.Errorf("%w: prefix must not contain underscores", ErrInvalidPrefix)
	}
	if prefix != batch.Sanitize(prefix) {
		return nil, fmt.Errorf("%w: prefix contains unsupported characters", ErrInvalidPrefix)
	}

	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q is not YYYY-MM-DD", ErrInvalidInput, startDate)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: end date %q is not YYYY-MM-DD", ErrInvalidInput, endDate)
	}
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}

	if !s.mergeActive.CompareAndSwap(false, true) {
		return nil, ErrMergeInProgress
	}
	defer s.mergeActive.Store(false)

	began := time.Now()
	result, err := s.merger.Run(ctx, batch.MergeRequest{
		Prefix:    prefix,
		StartDate: start,
		EndDate:   end,
	}, s.progress)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		infrastructure.RecordMergeMetrics(ctx, s.metrics, prefix, 0, 0, time.Since(began), err)
		if s.hub != nil {
			s.hub.Broadcast("error", map[string]interface{}{
				"code":    "MERGE_FAILED",
				"message": err.Error(),
			})
		}
		return nil, fmt.Errorf("merge run failed: %w", err)
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"merge.prefix":        prefix,
		"merge.files_indexed": result.FilesIndexed,
		"merge.rows_written":  result.RowsWritten,
	})
	infrastructure.RecordMergeMetrics(ctx, s.metrics,
		prefix, int64(result.FilesIndexed), int64(result.RowsWritten), time.Since(began), nil)

	if s.hub != nil {
		s.hub.Broadcast("merge:complete", result)
	}

	return result, nil
}

// Preview returns the raw exports a merge over the window would select.
func (s *BatchService) Preview(ctx context.Context, startDate, endDate string) ([]string, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q is not YYYY-MM-DD", ErrInvalidInput, startDate)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: end date %q is not YYYY-MM-DD", ErrInvalidInput, endDate)
	}
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}

	files, err := s.merger.Preview(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []string{}
	}
	return files, nil
}

func (s *BatchService) progress(stage string, current, total int) {
	if s.hub != nil {
		s.hub.BroadcastProgress(stage, current, total)
	}
}

// Prefixes returns the batch prefixes known from merged series files.
func (s *BatchService) Prefixes(ctx context.Context) ([]string, error) {
	prefixes, err := batch.Prefixes(ctx, s.merged)
	if err != nil {
		return nil, err
	}
	if prefixes == nil {
		prefixes = []string{}
	}
	return prefixes, nil
}

// MergeActive reports whether a merge run is currently executing.
func (s *BatchService) MergeActive() bool {
	return s.mergeActive.Load()
}
