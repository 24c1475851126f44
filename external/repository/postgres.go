package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

// storeError keeps the driver error for logs while letting callers match
// repository.ErrStoreUnavailable.
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, repository.ErrStoreUnavailable, err)
}

func (r *PostgresRepository) UpsertProfile(ctx context.Context, input repository.UpsertProfileInput) error {
	guilds := input.Guilds
	if guilds == nil {
		guilds = []repository.Guild{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (discord_id, username, avatar_url, guilds, last_login_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (discord_id) DO UPDATE SET
		   username = EXCLUDED.username,
		   avatar_url = EXCLUDED.avatar_url,
		   guilds = EXCLUDED.guilds,
		   last_login_at = EXCLUDED.last_login_at`,
		input.DiscordID, input.Username, input.AvatarURL, guilds, input.LastLoginAt.UTC())
	if err != nil {
		return storeError("upsert profile", err)
	}
	return nil
}

func (r *PostgresRepository) GetProfile(ctx context.Context, discordID string) (*repository.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT discord_id, username, avatar_url, guilds, last_login_at
		 FROM profiles WHERE discord_id = $1`,
		discordID)
	var p repository.Profile
	err := row.Scan(&p.DiscordID, &p.Username, &p.AvatarURL, &p.Guilds, &p.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, storeError("get profile", err)
	}
	if p.Guilds == nil {
		p.Guilds = []repository.Guild{}
	}
	return &p, nil
}
