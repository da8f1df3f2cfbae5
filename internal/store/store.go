// Package store persists extraction records. Records are versioned by
// (project, school, program): saving always appends the next version and
// never overwrites a prior one.
package store

import (
	"context"

	"github.com/sells-group/tuition-cli/internal/model"
)

// RecordFilter specifies criteria for listing records.
type RecordFilter struct {
	Project string                 `json:"project,omitempty"`
	School  string                 `json:"school,omitempty"`
	Program string                 `json:"program,omitempty"`
	Status  model.ExtractionStatus `json:"status,omitempty"`
	Limit   int                    `json:"limit,omitempty"`
	Offset  int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the extraction pipeline.
type Store interface {
	// SaveRecord appends rec as the next version of its (project, school,
	// program) key, filling ID, Version, and CreatedAt.
	SaveRecord(ctx context.Context, rec *model.ExtractionRecord) error
	GetRecord(ctx context.Context, id string) (*model.ExtractionRecord, error)
	// GetLatest returns the highest version for the key, or nil when the
	// key has never been extracted.
	GetLatest(ctx context.Context, project, school, program string) (*model.ExtractionRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractionRecord, error)
	// ListVersions returns every version for the key, newest first.
	ListVersions(ctx context.Context, project, school, program string) ([]model.ExtractionRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
