package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/TBoneIsntCool/viper-red-panel/external/config"
	"github.com/TBoneIsntCool/viper-red-panel/external/discord"
	"github.com/TBoneIsntCool/viper-red-panel/external/httpserver"
	repositoryimpl "github.com/TBoneIsntCool/viper-red-panel/external/repository"
	webhookimpl "github.com/TBoneIsntCool/viper-red-panel/external/webhook"
	"github.com/TBoneIsntCool/viper-red-panel/internal/auth"
	"github.com/TBoneIsntCool/viper-red-panel/internal/config"
	"github.com/TBoneIsntCool/viper-red-panel/internal/modlog"
	"github.com/TBoneIsntCool/viper-red-panel/internal/shift"
	"github.com/TBoneIsntCool/viper-red-panel/internal/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app := &cli.Command{
		Name:   "viper-backend",
		Usage:  "Moderation dashboard backend",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the database schema and exit",
				Action: migrate,
			},
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serve(_ context.Context, _ *cli.Command) error {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "bot_probe_enabled", cfg.HasBotToken())

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	return runServer(injector)
}

func migrate(ctx context.Context, _ *cli.Command) error {
	cfg := mustLoadConfig()
	initLogger(cfg)
	if err := repositoryimpl.Migrate(ctx, cfg.DatabaseURL); err != nil {
		return err
	}
	slog.Info("migration complete")
	return nil
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, newRegistry())
	repositoryimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	auth.RegisterDI(injector)
	shift.RegisterDI(injector)
	modlog.RegisterDI(injector)
	stats.RegisterDI(injector)
	httpserver.RegisterDI(injector)

	return injector
}

func runServer(injector do.Injector) error {
	srv, err := do.Invoke[*httpserver.Server](injector)
	if err != nil {
		return fmt.Errorf("failed to resolve http server: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case runErr = <-done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Services shut down in reverse dependency order: the server drains
	// before the database pool closes.
	if report := injector.ShutdownWithContext(ctx); report != nil && !report.Succeed {
		return errors.Join(runErr, fmt.Errorf("shutdown finished with errors: %s", report.Error()))
	}
	return runErr
}
