package discord

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	discordpkg "github.com/TBoneIsntCool/viper-red-panel/internal/discord"
	"github.com/bwmarrin/discordgo"
	"golang.org/x/oauth2"
)

const (
	authorizeURL = "https://discord.com/oauth2/authorize"
	tokenURL     = "https://discord.com/api/oauth2/token"

	// Discord caps /users/@me/guilds pages at 200.
	userGuildsPageLimit = 200
)

var oauthScopes = []string{"identify", "guilds"}

type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BotToken     string
	BotUserID    string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
	bot        *discordgo.Session
	botUserID  string
}

func NewClient(opts Options) (discordpkg.IdentityClient, error) {
	return newClient(opts)
}

func newClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       oauthScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authorizeURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		timeout:    opts.Timeout,
		botUserID:  opts.BotUserID,
	}
	if opts.BotToken != "" {
		s, err := c.newSession("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("failed to create bot session: %w", err)
		}
		c.bot = s
	}
	return c, nil
}

// newSession builds a REST-only session; the gateway is never opened.
func (c *Client) newSession(authorization string) (*discordgo.Session, error) {
	s, err := discordgo.New(authorization)
	if err != nil {
		return nil, err
	}
	s.Client = c.httpClient
	s.MaxRestRetries = 0
	s.ShouldRetryOnRateLimit = false
	return s, nil
}

func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (discordpkg.AccessToken, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	conf := *c.oauth
	if redirectURI != "" {
		conf.RedirectURL = redirectURI
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", classifyExchangeError(ctx, err)
	}
	return discordpkg.AccessToken(tok.AccessToken), nil
}

func (c *Client) FetchIdentity(ctx context.Context, token discordpkg.AccessToken) (discordpkg.Identity, error) {
	s, err := c.newSession("Bearer " + string(token))
	if err != nil {
		return discordpkg.Identity{}, fmt.Errorf("%w: %w", discordpkg.ErrUpstreamUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return discordpkg.Identity{}, classifyTransportError(ctx, err)
	}
	if u == nil || u.ID == "" || u.Username == "" {
		return discordpkg.Identity{}, fmt.Errorf("%w: identity payload is missing id or username", discordpkg.ErrUpstreamUnavailable)
	}
	return discordpkg.Identity{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
	}, nil
}

func (c *Client) FetchGuilds(ctx context.Context, token discordpkg.AccessToken) ([]discordpkg.GuildSummary, error) {
	s, err := c.newSession("Bearer " + string(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", discordpkg.ErrUpstreamUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := s.UserGuilds(userGuildsPageLimit, "", "", true, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	guilds := make([]discordpkg.GuildSummary, 0, len(raw))
	for i, g := range raw {
		if g == nil || g.ID == "" || g.Name == "" {
			return nil, fmt.Errorf("%w: guild payload %d is missing id or name", discordpkg.ErrUpstreamUnavailable, i)
		}
		guilds = append(guilds, discordpkg.GuildSummary{
			ID:                g.ID,
			Name:              g.Name,
			Icon:              g.Icon,
			ApproxMemberCount: g.ApproximateMemberCount,
			Permissions:       g.Permissions,
		})
	}
	return guilds, nil
}

func (c *Client) ProbeBotMembership(ctx context.Context, guildID string) (bool, error) {
	if c.bot == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	member, err := c.bot.GuildMember(guildID, c.botUserID, discordgo.WithContext(ctx))
	if err != nil {
		if isRESTNotMember(err) {
			return false, nil
		}
		return false, classifyTransportError(ctx, err)
	}
	return member != nil, nil
}

// isRESTNotMember matches the answers Discord gives when the bot is not in
// the guild: 404 Unknown Member/Guild, or 403 Missing Access.
func isRESTNotMember(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	switch restErr.Response.StatusCode {
	case http.StatusNotFound, http.StatusForbidden:
		return true
	}
	return false
}

func classifyExchangeError(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s: %s", discordpkg.ErrInvalidCode, retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
		}
	}
	return classifyTransportError(ctx, err)
}

func classifyTransportError(ctx context.Context, err error) error {
	if isTimeout(ctx, err) {
		return fmt.Errorf("%w: %w", discordpkg.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %w", discordpkg.ErrUpstreamUnavailable, err)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
