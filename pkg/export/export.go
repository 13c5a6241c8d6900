// Package export writes a session's current document to external storage.
//
// Exports are one-way: nothing in collabmd reads an exported document back.
package export

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDisabled is returned when no export target is configured.
	ErrDisabled = errors.New("export: disabled")

	// ErrAccessDenied is returned when the target rejects the credentials.
	ErrAccessDenied = errors.New("export: access denied")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("export: bucket not found")

	// ErrUnavailable is returned for throttling and transient service errors.
	ErrUnavailable = errors.New("export: service unavailable")
)

// Document is one exported snapshot of a session.
type Document struct {
	SessionID string
	Content   string
	Version   uint64
	Time      time.Time
}

// Location identifies where a Document was written.
type Location struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int    `json:"size"`
}

// Exporter writes Documents.
type Exporter interface {
	Export(ctx context.Context, doc Document) (Location, error)
}

// Disabled is an Exporter that always fails with ErrDisabled.
type Disabled struct{}

// Export implements Exporter.
func (Disabled) Export(context.Context, Document) (Location, error) {
	return Location{}, ErrDisabled
}
