package usage

import (
	"context"
	"database/sql"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed usage store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) GetOrCreate(ctx context.Context, installID, month, plan string, limit int) (Usage, error) {
	u := Usage{InstallID: installID, Month: month}
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO usage_records (install_id, month, plan, limit_amount, count)
VALUES ($1, $2, $3, $4, 0)
ON CONFLICT (install_id, month)
DO UPDATE SET plan = EXCLUDED.plan, limit_amount = EXCLUDED.limit_amount, updated_at = now()
RETURNING plan, limit_amount, count`, installID, month, plan, limit)
	if err := row.Scan(&u.Plan, &u.Limit, &u.Used); err != nil {
		return Usage{}, err
	}
	return u, nil
}

func (s *pgStore) Increment(ctx context.Context, installID, month, plan string, limit int) (Usage, error) {
	u := Usage{InstallID: installID, Month: month}
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO usage_records (install_id, month, plan, limit_amount, count)
VALUES ($1, $2, $3, $4, 1)
ON CONFLICT (install_id, month)
DO UPDATE SET count = usage_records.count + 1, updated_at = now()
RETURNING plan, limit_amount, count`, installID, month, plan, limit)
	if err := row.Scan(&u.Plan, &u.Limit, &u.Used); err != nil {
		return Usage{}, err
	}
	return u, nil
}
