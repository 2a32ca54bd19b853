package analyses

import (
	"context"
	"time"
)

// Repo defines persistence operations for matching jobs.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	// GetByID is install-scoped: a job belonging to another install is
	// reported as ErrNotFound, not as forbidden.
	GetByID(ctx context.Context, jobID, installID string) (Analysis, error)
	// GetForProcessing loads a job regardless of install, for the pipeline.
	GetForProcessing(ctx context.Context, jobID string) (Analysis, error)
	// UpdateStatus moves a job through the state machine. Implementations
	// return ErrTerminal when the job is already completed or failed.
	UpdateStatus(ctx context.Context, jobID, status string, result map[string]any, errorMessage *string, startedAt, completedAt *time.Time) error
	// ListByInstall returns an install's jobs newest-first, without
	// submissions or results.
	ListByInstall(ctx context.Context, installID string, limit, offset int) ([]Analysis, error)
}
