package repository

import (
	"context"
	"time"
)

func (r *PostgresRepository) RecordMemberJoin(ctx context.Context, serverID, userID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO server_members (server_id, user_id, joined_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (server_id, user_id) DO UPDATE SET joined_at = EXCLUDED.joined_at, left_at = NULL`,
		serverID, userID, at.UTC())
	if err != nil {
		return storeError("record member join", err)
	}
	return nil
}

// RecordMemberLeave is a no-op for members that were never recorded.
func (r *PostgresRepository) RecordMemberLeave(ctx context.Context, serverID, userID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE server_members SET left_at = $3
		 WHERE server_id = $1 AND user_id = $2 AND left_at IS NULL`,
		serverID, userID, at.UTC())
	if err != nil {
		return storeError("record member leave", err)
	}
	return nil
}

func (r *PostgresRepository) CountActiveMembers(ctx context.Context, serverID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM server_members WHERE server_id = $1 AND left_at IS NULL`,
		serverID).Scan(&n)
	if err != nil {
		return 0, storeError("count active members", err)
	}
	return n, nil
}
