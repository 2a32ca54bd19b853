package usage

import (
	"context"
	"time"
)

type store interface {
	GetOrCreate(ctx context.Context, installID, month, plan string, limit int) (Usage, error)
	Increment(ctx context.Context, installID, month, plan string, limit int) (Usage, error)
}

// Service manages monthly quota records via an underlying store.
type Service struct {
	store store
	now   func() time.Time
}

// NewService constructs a Service with an in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore(), now: time.Now}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore, now: time.Now}
}

// Get returns the install's current month usage, creating the record at zero
// if this is the first request of the month.
func (s *Service) Get(ctx context.Context, installID, plan string) (Usage, error) {
	return s.store.GetOrCreate(ctx, installID, MonthKey(s.now()), plan, LimitForPlan(plan))
}

// CheckAndReserve verifies the install has quota left for one more analysis.
// It does not consume anything: the counter only moves when Increment is
// called after the analysis completes. A store failure is returned as-is,
// which callers treat as a denial.
func (s *Service) CheckAndReserve(ctx context.Context, installID, plan string) (Usage, error) {
	u, err := s.Get(ctx, installID, plan)
	if err != nil {
		return Usage{}, err
	}
	if u.Used >= u.Limit {
		return u, ErrLimitReached
	}
	return u, nil
}

// Increment adds one completed analysis to the install's month counter.
func (s *Service) Increment(ctx context.Context, installID, plan string) (Usage, error) {
	return s.store.Increment(ctx, installID, MonthKey(s.now()), plan, LimitForPlan(plan))
}
