package discord

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCode means Discord rejected the authorization code. Codes are
	// single-use, so a replayed code also lands here.
	ErrInvalidCode         = errors.New("discord rejected authorization code")
	ErrUpstreamUnavailable = errors.New("discord api unavailable")
	ErrUpstreamTimeout     = errors.New("discord api timed out")
)

type AccessToken string

type Identity struct {
	ID       string
	Username string
	Avatar   string
}

type GuildSummary struct {
	ID                string
	Name              string
	Icon              string
	ApproxMemberCount int
	Permissions       int64
}

// IdentityClient issues the outbound Discord calls needed to log a user in.
type IdentityClient interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (AccessToken, error)
	FetchIdentity(ctx context.Context, token AccessToken) (Identity, error)
	FetchGuilds(ctx context.Context, token AccessToken) ([]GuildSummary, error)
	// ProbeBotMembership reports whether the moderation bot is in the guild.
	// A non-nil error always comes with false.
	ProbeBotMembership(ctx context.Context, guildID string) (bool, error)
}

const cdnBaseURL = "https://cdn.discordapp.com"

func AvatarURL(userID, avatarHash string) string {
	if avatarHash == "" {
		return ""
	}
	return cdnBaseURL + "/avatars/" + userID + "/" + avatarHash + ".png"
}

func GuildIconURL(guildID, iconHash string) string {
	if iconHash == "" {
		return ""
	}
	return cdnBaseURL + "/icons/" + guildID + "/" + iconHash + ".png"
}
