package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"matching-backend/internal/shared/telemetry"
)

// Recorder captures install-scoped events. Recording is best effort: a
// failing recorder must never fail the operation it describes.
type Recorder interface {
	Record(ctx context.Context, installID, action string, details map[string]any)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Record(context.Context, string, string, map[string]any) {}

// PGRecorder writes events to the audit_log table.
type PGRecorder struct {
	DB *sql.DB
}

func NewPGRecorder(db *sql.DB) *PGRecorder {
	return &PGRecorder{DB: db}
}

func (r *PGRecorder) Record(ctx context.Context, installID, action string, details map[string]any) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}
	_, err = r.DB.ExecContext(ctx, `
INSERT INTO audit_log (id, install_id, action, details, created_at)
VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), installID, action, string(payload), time.Now().UTC())
	if err != nil {
		telemetry.Warn("audit.record_failed", map[string]any{
			"install_id": installID,
			"action":     action,
			"error":      err.Error(),
		})
	}
}
