package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TBoneIsntCool/viper-red-panel/internal/config"
	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		p, err := openMigratedPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return NewPostgresRepository(p), nil
	})
}

// Migrate applies the schema and closes the connection.
func Migrate(ctx context.Context, databaseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, databaseInitTimeout)
	defer cancel()

	p, err := openMigratedPool(ctx, databaseURL)
	if err != nil {
		return err
	}
	p.Close()
	return nil
}

func openMigratedPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigration(ctx, p); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return p, nil
}

// Shutdown releases the pool when the injector shuts down.
func (r *PostgresRepository) Shutdown() {
	slog.Info("closing database pool")
	r.pool.Close()
}
