package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		discord_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		avatar_url TEXT,
		guilds JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login_at TIMESTAMPTZ NOT NULL
	)`,
	`DO $$ BEGIN CREATE TYPE shift_status AS ENUM ('active', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS shifts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id TEXT NOT NULL,
		server_id TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		status shift_status NOT NULL DEFAULT 'active'
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_shifts_one_active ON shifts (user_id, server_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS idx_shifts_user_server_status ON shifts (user_id, server_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_shifts_server_start ON shifts (server_id, start_time)`,
	`CREATE TABLE IF NOT EXISTS moderation_logs (
		id BIGSERIAL PRIMARY KEY,
		server_id TEXT NOT NULL,
		moderator_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		target_user TEXT NOT NULL,
		reason TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_moderation_logs_server_created ON moderation_logs (server_id, created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS server_members (
		server_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL,
		left_at TIMESTAMPTZ,
		PRIMARY KEY (server_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_server_members_present ON server_members (server_id) WHERE left_at IS NULL`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
