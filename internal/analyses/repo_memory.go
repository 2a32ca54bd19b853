package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for development and tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Analysis
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Analysis)}
}

func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[analysis.ID] = analysis
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, jobID, installID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[jobID]
	if !ok || a.InstallID != installID {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) GetForProcessing(ctx context.Context, jobID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[jobID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, jobID, status string, result map[string]any, errorMessage *string, startedAt, completedAt *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.data[jobID]
	if !ok {
		return ErrNotFound
	}
	if a.Terminal() {
		return ErrTerminal
	}
	a.Status = status
	if result != nil {
		a.Result = result
	}
	a.ErrorMessage = errorMessage
	if startedAt != nil {
		a.StartedAt = startedAt
	}
	if completedAt != nil {
		a.CompletedAt = completedAt
	}
	r.data[jobID] = a
	return nil
}

func (r *MemoryRepo) ListByInstall(ctx context.Context, installID string, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Analysis
	for _, a := range r.data {
		if a.InstallID != installID {
			continue
		}
		a.Submission = Submission{}
		a.Result = nil
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
