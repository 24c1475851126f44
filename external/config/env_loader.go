package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	internalconfig "github.com/TBoneIsntCool/viper-red-panel/internal/config"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                     string        `env:"ENV" envDefault:"production"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:":3001"`
	DatabaseURL             string        `env:"DATABASE_URL,required"`
	DiscordClientID         string        `env:"DISCORD_CLIENT_ID,required"`
	DiscordClientSecret     string        `env:"DISCORD_CLIENT_SECRET,required"`
	DiscordRedirectURI      string        `env:"DISCORD_REDIRECT_URI,required"`
	DiscordBotToken         string        `env:"DISCORD_BOT_TOKEN"`
	DiscordBotUserID        string        `env:"DISCORD_BOT_USER_ID"`
	DiscordRequestTimeout   time.Duration `env:"DISCORD_REQUEST_TIMEOUT" envDefault:"10s"`
	DiscordProbeConcurrency int           `env:"DISCORD_PROBE_CONCURRENCY" envDefault:"4"`
	AllowedOrigins          []string      `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:8080" envSeparator:","`
	AuthRateLimitPerSec     float64       `env:"AUTH_RATE_LIMIT_PER_SEC" envDefault:"5"`
	AuthRateLimitBurst      int           `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`
	ModerationWebhookURL    string        `env:"MODERATION_WEBHOOK_URL"`
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set win over the file.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                     raw.Env,
		HTTPAddr:                raw.HTTPAddr,
		DatabaseURL:             raw.DatabaseURL,
		DiscordClientID:         raw.DiscordClientID,
		DiscordClientSecret:     raw.DiscordClientSecret,
		DiscordRedirectURI:      raw.DiscordRedirectURI,
		DiscordBotToken:         raw.DiscordBotToken,
		DiscordBotUserID:        raw.DiscordBotUserID,
		DiscordRequestTimeout:   raw.DiscordRequestTimeout,
		DiscordProbeConcurrency: raw.DiscordProbeConcurrency,
		AllowedOrigins:          raw.AllowedOrigins,
		AuthRateLimitPerSec:     raw.AuthRateLimitPerSec,
		AuthRateLimitBurst:      raw.AuthRateLimitBurst,
		ModerationWebhookURL:    raw.ModerationWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
