// Package store persists tender records. Every mutation is a single
// statement on one field path of the record document, so concurrent
// enrichment branches never overwrite each other's siblings.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/tender-cli/internal/model"
)

// ErrNotFound is returned by mutations addressed to an unknown record.
var ErrNotFound = errors.New("store: tender not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	RegNumber string          `json:"reg_number,omitempty"`
	Status    model.RunStatus `json:"status,omitempty"`
	Limit     int             `json:"limit,omitempty"`
}

// Store defines the persistence interface for tender records.
type Store interface {
	// UpsertByKey inserts rec if its registration number is unknown and
	// reports whether it was created. Existing records are left untouched.
	UpsertByKey(ctx context.Context, rec *model.TenderRecord) (bool, error)
	// FindByKey returns the record, or nil when absent.
	FindByKey(ctx context.Context, key string) (*model.TenderRecord, error)
	// SetField overwrites the value at path.
	SetField(ctx context.Context, key string, path Path, value any) error
	// AppendToArray appends value to the array at path, creating it if needed.
	AppendToArray(ctx context.Context, key string, path Path, value any) error
	// UpsertArrayEntry replaces the entry of the array at path whose
	// matchField equals matchValue, or appends value when none does.
	UpsertArrayEntry(ctx context.Context, key string, path Path, matchField, matchValue string, value any) error
	// MarkProcessed stores the final report and flips isProcessed in one write.
	MarkProcessed(ctx context.Context, key, report string) error
	// ListUnprocessed returns records without a final report, oldest first.
	ListUnprocessed(ctx context.Context, limit int) ([]model.TenderRecord, error)

	// Runs
	CreateRun(ctx context.Context, regNumber string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, stage model.Stage, errMsg string) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
