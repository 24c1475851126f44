package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	DiscordClientID         string
	DiscordClientSecret     string
	DiscordRedirectURI      string
	DiscordBotToken         string
	DiscordBotUserID        string
	DiscordRequestTimeout   time.Duration
	DiscordProbeConcurrency int
	AllowedOrigins          []string
	AuthRateLimitPerSec     float64
	AuthRateLimitBurst      int
	ModerationWebhookURL    string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.DiscordBotToken != "" && c.DiscordBotUserID == "" {
		return fmt.Errorf("DISCORD_BOT_USER_ID is required when DISCORD_BOT_TOKEN is set")
	}
	if c.DiscordRequestTimeout <= 0 {
		return fmt.Errorf("DISCORD_REQUEST_TIMEOUT must be positive, got %s", c.DiscordRequestTimeout)
	}
	if c.DiscordProbeConcurrency <= 0 {
		return fmt.Errorf("DISCORD_PROBE_CONCURRENCY must be positive, got %d", c.DiscordProbeConcurrency)
	}
	if c.AuthRateLimitPerSec <= 0 || c.AuthRateLimitBurst <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_PER_SEC and AUTH_RATE_LIMIT_BURST must be positive")
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "DISCORD_CLIENT_ID", value: c.DiscordClientID},
		{name: "DISCORD_CLIENT_SECRET", value: c.DiscordClientSecret},
		{name: "DISCORD_REDIRECT_URI", value: c.DiscordRedirectURI},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// HasBotToken reports whether bot membership probes can reach Discord.
func (c *Config) HasBotToken() bool {
	return c.DiscordBotToken != ""
}
