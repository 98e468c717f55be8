package services

import (
	"context"
	"log/slog"
	"time"

	"pbrpulse/internal/infrastructure"
	"pbrpulse/internal/storage"
)

// HealthStatus is the aggregate health report of the service.
type HealthStatus struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	UptimeSec float64           `json:"uptime_seconds"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthService reports liveness and storage reachability.
type HealthService struct {
	buckets storage.Buckets
	started time.Time
	logger  *slog.Logger
}

// NewHealthService creates a health service.
func NewHealthService(buckets storage.Buckets, logger *slog.Logger) *HealthService {
	return &HealthService{
		buckets: buckets,
		started: time.Now(),
		logger:  logger.With(slog.String("component", "health_service")),
	}
}

// Check probes each storage bucket with a list call and aggregates the
// results. A single failing bucket degrades the overall status.
func (s *HealthService) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Version:   infrastructure.ServiceVersion,
		UptimeSec: time.Since(s.started).Seconds(),
		Checks:    make(map[string]string),
		Timestamp: time.Now(),
	}

	probes := map[string]storage.Bucket{
		"raw_bucket":    s.buckets.Raw,
		"merged_bucket": s.buckets.Merged,
		"manual_bucket": s.buckets.Manual,
	}

	for name, bucket := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := bucket.List(probeCtx, "")
		cancel()

		if err != nil {
			status.Checks[name] = "unreachable: " + err.Error()
			status.Status = "degraded"
			s.logger.WarnContext(ctx, "storage health probe failed",
				slog.String("bucket", name),
				slog.String("error", err.Error()))
			continue
		}
		status.Checks[name] = "ok"
	}

	return status
}

// Ready reports whether the service can serve data requests.
func (s *HealthService) Ready(ctx context.Context) bool {
	return s.Check(ctx).Status == "healthy"
}
