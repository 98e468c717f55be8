package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBucket implements Bucket on top of a Google Cloud Storage bucket.
type GCSBucket struct {
	bucket *gcs.BucketHandle
	name   string
	logger *slog.Logger
}

// NewGCSClient creates a storage client. credentialsFile may be empty, in
// which case application default credentials are used.
func NewGCSClient(ctx context.Context, projectID, credentialsFile string) (*gcs.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client for project %s: %w", projectID, err)
	}
	return client, nil
}

// NewGCSBucket wraps a named bucket of the given client.
func NewGCSBucket(client *gcs.Client, name string, logger *slog.Logger) *GCSBucket {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSBucket{
		bucket: client.Bucket(name),
		name:   name,
		logger: logger.With(slog.String("component", "gcs_bucket"), slog.String("bucket", name)),
	}
}

// List returns object names under prefix in the order the API yields them.
func (b *GCSBucket) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := b.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", b.name, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (b *GCSBucket) Read(ctx context.Context, name string) ([]byte, error) {
	r, err := b.bucket.Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open object %s: %w", name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", name, err)
	}
	return data, nil
}

func (b *GCSBucket) Write(ctx context.Context, name string, data []byte, contentType string) error {
	w := b.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s: %w", name, err)
	}

	b.logger.Debug("object written",
		slog.String("object", name),
		slog.Int("bytes", len(data)))
	return nil
}

func (b *GCSBucket) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.bucket.Object(name).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat object %s: %w", name, err)
	}
	return true, nil
}
