package health

import (
	"context"
	"database/sql"
	"time"
)

// Service reports process liveness and database readiness.
type Service struct {
	db *sql.DB
}

// NewService constructs a health service. db may be nil when the process
// runs on in-memory repositories.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Status returns the health payload. The database check is best-effort with
// a short timeout so a slow database cannot stall the check.
func (s *Service) Status() map[string]any {
	payload := map[string]any{"ok": true}
	if s.db == nil {
		return payload
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	payload["db"] = s.db.PingContext(ctx) == nil
	return payload
}
