package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Read when the named object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Bucket is the minimal blob contract the dashboard needs. Write overwrites
// wholesale; there is no partial update.
type Bucket interface {
	// List returns the names of all objects under prefix, in source listing
	// order. An empty prefix lists the whole bucket.
	List(ctx context.Context, prefix string) ([]string, error)

	// Read returns the full object contents. Returns ErrObjectNotFound if
	// the object does not exist.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write creates or replaces the object with the given content type.
	Write(ctx context.Context, name string, data []byte, contentType string) error

	// Exists reports whether the object exists.
	Exists(ctx context.Context, name string) (bool, error)
}

// Buckets groups the three logical containers the dashboard uses.
type Buckets struct {
	Raw    Bucket // raw sensor export CSVs, read-only to this system
	Merged Bucket // per-variable batch outputs
	Manual Bucket // manual annotation store
}
