package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TBoneIsntCool/viper-red-panel/internal/discord"
	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sourcegraph/conc/pool"
)

type State string

const (
	StateAwaitingCode      State = "awaiting_code"
	StateExchangingToken   State = "exchanging_token"
	StateFetchingIdentity  State = "fetching_identity"
	StateFetchingGuilds    State = "fetching_guilds"
	StateReconcilingBot    State = "reconciling_bot"
	StatePersistingProfile State = "persisting_profile"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

const defaultProbeConcurrency = 4

var ErrMissingCode = errors.New("authorization code is required")

// FlowError reports the step at which a login attempt failed. Err keeps the
// step's error kind for errors.Is.
type FlowError struct {
	Step State
	Err  error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("auth flow failed at %s: %v", e.Step, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

type Result struct {
	ID        string
	Username  string
	AvatarURL *string
}

type Options struct {
	RedirectURI      string
	ProbeConcurrency int
}

// Flow runs the OAuth2 callback: code exchange, identity and guild fetch,
// bot reconciliation and profile upsert, strictly in that order.
type Flow struct {
	discord          discord.IdentityClient
	profiles         repository.ProfileRepository
	redirectURI      string
	probeConcurrency int
	now              func() time.Time
	outcomes         *prometheus.CounterVec
}

func NewFlow(dc discord.IdentityClient, profiles repository.ProfileRepository, opts Options, reg prometheus.Registerer) *Flow {
	concurrency := opts.ProbeConcurrency
	if concurrency <= 0 {
		concurrency = defaultProbeConcurrency
	}
	return &Flow{
		discord:          dc,
		profiles:         profiles,
		redirectURI:      opts.RedirectURI,
		probeConcurrency: concurrency,
		now:              time.Now,
		outcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "viper",
			Subsystem: "auth",
			Name:      "flow_outcomes_total",
			Help:      "Completed login flows by final state and failing step.",
		}, []string{"state", "step"}),
	}
}

func (f *Flow) AuthorizeURL(state string) string {
	return f.discord.AuthorizeURL(state)
}

type run struct {
	state State
}

func (r *run) advance(next State) {
	slog.Debug("auth flow transition", "from", r.state, "to", next)
	r.state = next
}

func (f *Flow) fail(r *run, err error) error {
	step := r.state
	r.state = StateFailed
	f.outcomes.WithLabelValues(string(StateFailed), string(step)).Inc()
	slog.Debug("auth flow transition", "from", step, "to", StateFailed, "error", err)
	return &FlowError{Step: step, Err: err}
}

// Complete drives one login attempt from a fresh authorization code. No
// profile is written unless every earlier step succeeded.
func (f *Flow) Complete(ctx context.Context, code string) (*Result, error) {
	r := &run{state: StateAwaitingCode}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, f.fail(r, ErrMissingCode)
	}

	r.advance(StateExchangingToken)
	token, err := f.discord.ExchangeCode(ctx, code, f.redirectURI)
	if err != nil {
		return nil, f.fail(r, err)
	}

	r.advance(StateFetchingIdentity)
	identity, err := f.discord.FetchIdentity(ctx, token)
	if err != nil {
		return nil, f.fail(r, err)
	}

	r.advance(StateFetchingGuilds)
	summaries, err := f.discord.FetchGuilds(ctx, token)
	if err != nil {
		return nil, f.fail(r, err)
	}

	r.advance(StateReconcilingBot)
	guilds := f.reconcileBot(ctx, summaries)

	r.advance(StatePersistingProfile)
	var avatar *string
	if u := discord.AvatarURL(identity.ID, identity.Avatar); u != "" {
		avatar = &u
	}
	err = f.profiles.UpsertProfile(ctx, repository.UpsertProfileInput{
		DiscordID:   identity.ID,
		Username:    identity.Username,
		AvatarURL:   avatar,
		Guilds:      guilds,
		LastLoginAt: f.now().UTC(),
	})
	if err != nil {
		return nil, f.fail(r, err)
	}

	r.advance(StateDone)
	f.outcomes.WithLabelValues(string(StateDone), "").Inc()
	slog.Info("user logged in", "user_id", identity.ID, "guilds", len(guilds))
	return &Result{ID: identity.ID, Username: identity.Username, AvatarURL: avatar}, nil
}

// reconcileBot probes every guild with bounded concurrency and keeps the
// Discord order. A failed probe yields HasBot=false.
func (f *Flow) reconcileBot(ctx context.Context, summaries []discord.GuildSummary) []repository.Guild {
	guilds := make([]repository.Guild, len(summaries))
	p := pool.New().WithMaxGoroutines(f.probeConcurrency)
	for i, g := range summaries {
		p.Go(func() {
			hasBot, err := f.discord.ProbeBotMembership(ctx, g.ID)
			if err != nil {
				slog.Warn("bot membership probe failed", "guild_id", g.ID, "error", err)
				hasBot = false
			}
			guilds[i] = toGuild(g, hasBot)
		})
	}
	p.Wait()
	return guilds
}

func toGuild(g discord.GuildSummary, hasBot bool) repository.Guild {
	guild := repository.Guild{
		ID:      g.ID,
		Name:    g.Name,
		IconURL: discord.GuildIconURL(g.ID, g.Icon),
		HasBot:  hasBot,
	}
	if g.ApproxMemberCount > 0 {
		count := g.ApproxMemberCount
		guild.ApproxMemberCount = &count
	}
	perms := g.Permissions
	guild.PermissionsBitfield = &perms
	return guild
}
