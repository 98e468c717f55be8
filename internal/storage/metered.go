package storage

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"pbrpulse/internal/infrastructure"
)

// MeteredBucket decorates a Bucket with read/write/error counters.
type MeteredBucket struct {
	inner   Bucket
	metrics *infrastructure.BusinessMetrics
	bucket  string
}

// NewMeteredBucket wraps inner so every operation is counted against the
// named bucket. Returns inner unchanged when metrics is nil.
func NewMeteredBucket(inner Bucket, metrics *infrastructure.BusinessMetrics, bucket string) Bucket {
	if metrics == nil {
		return inner
	}
	return &MeteredBucket{inner: inner, metrics: metrics, bucket: bucket}
}

func (b *MeteredBucket) attrs(op string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("storage.bucket", b.bucket),
		attribute.String("storage.operation", op),
	)
}

// recordError counts operation failures. A missing object is an expected
// outcome, not a storage failure.
func (b *MeteredBucket) recordError(ctx context.Context, op string, err error) {
	if err == nil || errors.Is(err, ErrObjectNotFound) {
		return
	}
	b.metrics.StorageErrors.Add(ctx, 1, b.attrs(op))
}

func (b *MeteredBucket) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := b.inner.List(ctx, prefix)
	b.metrics.StorageReadsTotal.Add(ctx, 1, b.attrs("list"))
	b.recordError(ctx, "list", err)
	return names, err
}

func (b *MeteredBucket) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := b.inner.Read(ctx, name)
	b.metrics.StorageReadsTotal.Add(ctx, 1, b.attrs("read"))
	b.recordError(ctx, "read", err)
	return data, err
}

func (b *MeteredBucket) Write(ctx context.Context, name string, data []byte, contentType string) error {
	err := b.inner.Write(ctx, name, data, contentType)
	b.metrics.StorageWritesTotal.Add(ctx, 1, b.attrs("write"))
	b.recordError(ctx, "write", err)
	return err
}

func (b *MeteredBucket) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := b.inner.Exists(ctx, name)
	b.metrics.StorageReadsTotal.Add(ctx, 1, b.attrs("exists"))
	b.recordError(ctx, "exists", err)
	return ok, err
}
