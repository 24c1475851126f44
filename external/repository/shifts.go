package repository

import (
	"context"
	"errors"

	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/jackc/pgx/v5"
)

const shiftColumns = `id::text, user_id, server_id, start_time, end_time, status`

func scanShift(row pgx.Row) (*repository.Shift, error) {
	var s repository.Shift
	if err := row.Scan(&s.ID, &s.UserID, &s.ServerID, &s.StartTime, &s.EndTime, &s.Status); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateActiveShift relies on the partial unique index uq_shifts_one_active:
// a concurrent insert for the same pair waits for the first one and then
// returns no row.
func (r *PostgresRepository) CreateActiveShift(ctx context.Context, input repository.StartShiftInput) (*repository.Shift, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO shifts (id, user_id, server_id, start_time, status)
		 VALUES ($1, $2, $3, $4, 'active')
		 ON CONFLICT (user_id, server_id) WHERE status = 'active' DO NOTHING
		 RETURNING `+shiftColumns,
		input.ID, input.UserID, input.ServerID, input.StartedAt.UTC())
	s, err := scanShift(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrActiveShiftExists
		}
		return nil, storeError("create active shift", err)
	}
	return s, nil
}

func (r *PostgresRepository) CompleteActiveShift(ctx context.Context, input repository.EndShiftInput) (*repository.Shift, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE shifts SET end_time = $3, status = 'completed'
		 WHERE user_id = $1 AND server_id = $2 AND status = 'active'
		 RETURNING `+shiftColumns,
		input.UserID, input.ServerID, input.EndedAt.UTC())
	s, err := scanShift(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storeError("complete active shift", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListRecentShifts(ctx context.Context, userID, serverID string, limit int) ([]repository.Shift, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+shiftColumns+`
		 FROM shifts WHERE user_id = $1 AND server_id = $2
		 ORDER BY start_time DESC LIMIT $3`,
		userID, serverID, limit)
	if err != nil {
		return nil, storeError("list recent shifts", err)
	}
	defer rows.Close()
	list := make([]repository.Shift, 0, limit)
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, storeError("scan shift", err)
		}
		list = append(list, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list recent shifts", err)
	}
	return list, nil
}

// SumShiftMinutes adds up whole minutes per shift started inside the window;
// open shifts are measured up to input.Now.
func (r *PostgresRepository) SumShiftMinutes(ctx context.Context, input repository.ShiftMinutesInput) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(GREATEST(
		   FLOOR(EXTRACT(EPOCH FROM (COALESCE(end_time, $4::timestamptz) - start_time)) / 60), 0
		 )), 0)::bigint
		 FROM shifts
		 WHERE server_id = $1 AND start_time >= $2 AND start_time < $3`,
		input.ServerID, input.DayStart.UTC(), input.DayEnd.UTC(), input.Now.UTC()).Scan(&total)
	if err != nil {
		return 0, storeError("sum shift minutes", err)
	}
	return total, nil
}

func (r *PostgresRepository) CountActiveModerators(ctx context.Context, serverID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM shifts WHERE server_id = $1 AND status = 'active'`,
		serverID).Scan(&n)
	if err != nil {
		return 0, storeError("count active moderators", err)
	}
	return n, nil
}
