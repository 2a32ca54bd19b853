package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

// Create inserts a new job with its submission payload.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analysis_jobs (
	id, install_id, plan, mode, status, file_type, submission, result, error_message,
	created_at, started_at, completed_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	submission, err := marshalJSONB(analysis.Submission)
	if err != nil {
		return err
	}
	result, err := marshalJSONB(analysis.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.InstallID,
		analysis.Plan,
		analysis.Mode,
		analysis.Status,
		nullString(analysis.FileType),
		submission,
		result,
		analysis.ErrorMessage,
		analysis.CreatedAt,
		analysis.StartedAt,
		analysis.CompletedAt,
	)
	return err
}

const selectColumns = `
SELECT id, install_id, plan, mode, status, file_type, submission, result, error_message,
       created_at, started_at, completed_at
FROM analysis_jobs`

// GetByID returns a job scoped to its install.
func (r *PGRepo) GetByID(ctx context.Context, jobID, installID string) (Analysis, error) {
	row := r.DB.QueryRowContext(ctx, selectColumns+`
WHERE id = $1 AND install_id = $2
LIMIT 1`, jobID, installID)
	return scanAnalysis(row)
}

// GetForProcessing loads a job for the pipeline, regardless of install.
func (r *PGRepo) GetForProcessing(ctx context.Context, jobID string) (Analysis, error) {
	row := r.DB.QueryRowContext(ctx, selectColumns+`
WHERE id = $1
LIMIT 1`, jobID)
	return scanAnalysis(row)
}

// UpdateStatus moves a job through the state machine. Rows that already
// reached a terminal status are not touched.
func (r *PGRepo) UpdateStatus(ctx context.Context, jobID, status string, result map[string]any, errorMessage *string, startedAt, completedAt *time.Time) error {
	resultPayload, err := marshalJSONB(result)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `
UPDATE analysis_jobs
SET status = $2,
    result = COALESCE($3, result),
    error_message = $4,
    started_at = COALESCE($5, started_at),
    completed_at = COALESCE($6, completed_at),
    updated_at = now()
WHERE id = $1 AND status NOT IN ('completed', 'failed')`,
		jobID, status, resultPayload, errorMessage, startedAt, completedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the job does not exist or it is already terminal.
		var terminal bool
		err := r.DB.QueryRowContext(ctx,
			`SELECT status IN ('completed', 'failed') FROM analysis_jobs WHERE id = $1`, jobID).
			Scan(&terminal)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if terminal {
			return ErrTerminal
		}
		return ErrNotFound
	}
	return nil
}

// ListByInstall returns an install's jobs newest-first without payloads.
func (r *PGRepo) ListByInstall(ctx context.Context, installID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx, `
SELECT id, install_id, plan, mode, status, file_type, error_message,
       created_at, started_at, completed_at
FROM analysis_jobs
WHERE install_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, installID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		var fileType sql.NullString
		var errorMessage sql.NullString
		var startedAt sql.NullTime
		var completedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.InstallID, &a.Plan, &a.Mode, &a.Status, &fileType, &errorMessage,
			&a.CreatedAt, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		a.FileType = fileType.String
		if errorMessage.Valid {
			msg := errorMessage.String
			a.ErrorMessage = &msg
		}
		if startedAt.Valid {
			t := startedAt.Time
			a.StartedAt = &t
		}
		if completedAt.Valid {
			t := completedAt.Time
			a.CompletedAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAnalysis(row *sql.Row) (Analysis, error) {
	var a Analysis
	var fileType sql.NullString
	var submission sql.NullString
	var result sql.NullString
	var errorMessage sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime

	err := row.Scan(&a.ID, &a.InstallID, &a.Plan, &a.Mode, &a.Status, &fileType, &submission, &result,
		&errorMessage, &a.CreatedAt, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, err
	}

	a.FileType = fileType.String
	if submission.Valid && submission.String != "" {
		if err := json.Unmarshal([]byte(submission.String), &a.Submission); err != nil {
			return Analysis{}, err
		}
	}
	if result.Valid && result.String != "" {
		if err := json.Unmarshal([]byte(result.String), &a.Result); err != nil {
			return Analysis{}, err
		}
	}
	if errorMessage.Valid {
		msg := errorMessage.String
		a.ErrorMessage = &msg
	}
	if startedAt.Valid {
		t := startedAt.Time
		a.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return a, nil
}

func marshalJSONB(v any) (any, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if value == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
