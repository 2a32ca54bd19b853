package usage

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]Usage
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]Usage)}
}

func recordKey(installID, month string) string {
	return installID + "|" + month
}

func (s *memoryStore) GetOrCreate(ctx context.Context, installID, month, plan string, limit int) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(installID, month)
	u, ok := s.data[key]
	if !ok {
		u = Usage{InstallID: installID, Month: month, Plan: plan, Limit: limit, Used: 0}
	} else {
		u.Plan = plan
		u.Limit = limit
	}
	s.data[key] = u
	return u, nil
}

func (s *memoryStore) Increment(ctx context.Context, installID, month, plan string, limit int) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(installID, month)
	u, ok := s.data[key]
	if !ok {
		u = Usage{InstallID: installID, Month: month, Plan: plan, Limit: limit, Used: 0}
	}
	u.Used++
	s.data[key] = u
	return u, nil
}
