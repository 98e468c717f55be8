// Package storage defines the object-storage contract the pipeline runs
// against: list, read, write and existence checks over named blobs.
//
// Three logical buckets back the dashboard: raw sensor exports, merged
// batch outputs and manual annotations. The GCS implementation is used in
// production; the in-memory implementation backs tests and local mode.
package storage
