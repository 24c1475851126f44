package repository

import (
	"context"
	"time"

	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
)

func (r *PostgresRepository) InsertModerationLog(ctx context.Context, input repository.InsertModerationLogInput) (*repository.ModerationLogEntry, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO moderation_logs (server_id, moderator_id, action_type, target_user, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, server_id, moderator_id, action_type, target_user, reason, created_at`,
		input.ServerID, input.ModeratorID, input.ActionType, input.TargetUser, input.Reason, input.CreatedAt.UTC())
	var e repository.ModerationLogEntry
	err := row.Scan(&e.ID, &e.ServerID, &e.ModeratorID, &e.ActionType, &e.TargetUser, &e.Reason, &e.CreatedAt)
	if err != nil {
		return nil, storeError("insert moderation log", err)
	}
	return &e, nil
}

func (r *PostgresRepository) ListRecentModerationLogs(ctx context.Context, serverID string, limit int) ([]repository.ModerationLogEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ml.id, ml.server_id, ml.moderator_id, ml.action_type, ml.target_user, ml.reason, ml.created_at, p.username
		 FROM moderation_logs ml
		 LEFT JOIN profiles p ON p.discord_id = ml.moderator_id
		 WHERE ml.server_id = $1
		 ORDER BY ml.created_at DESC, ml.id DESC
		 LIMIT $2`,
		serverID, limit)
	if err != nil {
		return nil, storeError("list moderation logs", err)
	}
	defer rows.Close()
	list := make([]repository.ModerationLogEntry, 0, limit)
	for rows.Next() {
		var e repository.ModerationLogEntry
		if err := rows.Scan(&e.ID, &e.ServerID, &e.ModeratorID, &e.ActionType, &e.TargetUser, &e.Reason, &e.CreatedAt, &e.ModeratorName); err != nil {
			return nil, storeError("scan moderation log", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list moderation logs", err)
	}
	return list, nil
}

func (r *PostgresRepository) CountModerationLogs(ctx context.Context, serverID string, from, to time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM moderation_logs
		 WHERE server_id = $1 AND created_at >= $2 AND created_at < $3`,
		serverID, from.UTC(), to.UTC()).Scan(&n)
	if err != nil {
		return 0, storeError("count moderation logs", err)
	}
	return n, nil
}
