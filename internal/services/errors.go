// Package services contains the business logic behind the HTTP API:
// merge orchestration, dashboard payload assembly, manual data entry
// and health reporting.
package services

import "errors"

// Service-level sentinel errors, mapped to HTTP problems at the
// transport layer.
var (
	// ErrInvalidInput indicates a request failed semantic validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidDateRange indicates start date is after end date.
	ErrInvalidDateRange = errors.New("start date must not be after end date")
	// ErrInvalidPrefix indicates an unusable batch prefix.
	ErrInvalidPrefix = errors.New("invalid batch prefix")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrMergeInProgress indicates another merge run holds the lock.
	ErrMergeInProgress = errors.New("a merge run is already in progress")
)
