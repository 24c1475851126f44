package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TBoneIsntCool/viper-red-panel/internal/discord"
	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeDiscord struct {
	mu          sync.Mutex
	validCodes  map[string]bool
	identity    discord.Identity
	identityErr error
	guilds      []discord.GuildSummary
	probes      map[string]bool
	probeErrs   map[string]error
	probeDelay  time.Duration

	exchangeCalls int
	guildCalls    int
	probeCalls    int
	inFlight      atomic.Int32
	maxInFlight   atomic.Int32
	gotRedirect   string
}

func (f *fakeDiscord) AuthorizeURL(state string) string {
	return "https://discord.test/authorize?state=" + state
}

func (f *fakeDiscord) ExchangeCode(_ context.Context, code, redirectURI string) (discord.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeCalls++
	f.gotRedirect = redirectURI
	if !f.validCodes[code] {
		return "", fmt.Errorf("invalid_grant: %w", discord.ErrInvalidCode)
	}
	delete(f.validCodes, code)
	return discord.AccessToken("token-" + code), nil
}

func (f *fakeDiscord) FetchIdentity(_ context.Context, _ discord.AccessToken) (discord.Identity, error) {
	if f.identityErr != nil {
		return discord.Identity{}, f.identityErr
	}
	return f.identity, nil
}

func (f *fakeDiscord) FetchGuilds(_ context.Context, _ discord.AccessToken) ([]discord.GuildSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guildCalls++
	return f.guilds, nil
}

func (f *fakeDiscord) ProbeBotMembership(_ context.Context, guildID string) (bool, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxInFlight.Load()
		if n <= seen || f.maxInFlight.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.probeDelay > 0 {
		time.Sleep(f.probeDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	if err := f.probeErrs[guildID]; err != nil {
		return false, err
	}
	return f.probes[guildID], nil
}

type fakeProfiles struct {
	upserts   []repository.UpsertProfileInput
	upsertErr error
}

func (f *fakeProfiles) UpsertProfile(_ context.Context, input repository.UpsertProfileInput) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, input)
	return nil
}

func (f *fakeProfiles) GetProfile(_ context.Context, _ string) (*repository.Profile, error) {
	return nil, repository.ErrNotFound
}

var loginTime = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newTestFlow(dc *fakeDiscord, profiles *fakeProfiles, concurrency int) *Flow {
	f := NewFlow(dc, profiles, Options{RedirectURI: "http://localhost:8080/callback", ProbeConcurrency: concurrency}, prometheus.NewRegistry())
	f.now = func() time.Time { return loginTime }
	return f
}

func newFakeDiscord() *fakeDiscord {
	return &fakeDiscord{
		validCodes: map[string]bool{"abc": true},
		identity:   discord.Identity{ID: "42", Username: "alice", Avatar: "hash"},
		guilds: []discord.GuildSummary{
			{ID: "g1", Name: "One", Icon: "i1", ApproxMemberCount: 120, Permissions: 8},
			{ID: "g2", Name: "Two"},
			{ID: "g3", Name: "Three"},
		},
		probes: map[string]bool{"g1": true, "g3": true},
	}
}

func flowStep(t *testing.T, err error) State {
	t.Helper()
	var fe *FlowError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FlowError, got %v", err)
	}
	return fe.Step
}

func TestFlow_CompleteSuccess(t *testing.T) {
	dc := newFakeDiscord()
	profiles := &fakeProfiles{}
	f := newTestFlow(dc, profiles, 2)

	res, err := f.Complete(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantAvatar := "https://cdn.discordapp.com/avatars/42/hash.png"
	if res.ID != "42" || res.Username != "alice" || res.AvatarURL == nil || *res.AvatarURL != wantAvatar {
		t.Fatalf("unexpected result: %+v", res)
	}
	if dc.gotRedirect != "http://localhost:8080/callback" {
		t.Fatalf("unexpected redirect uri: %q", dc.gotRedirect)
	}
	if len(profiles.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(profiles.upserts))
	}

	count := 120
	perms8, perms0 := int64(8), int64(0)
	want := repository.UpsertProfileInput{
		DiscordID: "42",
		Username:  "alice",
		AvatarURL: &wantAvatar,
		Guilds: []repository.Guild{
			{ID: "g1", Name: "One", IconURL: "https://cdn.discordapp.com/icons/g1/i1.png", ApproxMemberCount: &count, PermissionsBitfield: &perms8, HasBot: true},
			{ID: "g2", Name: "Two", PermissionsBitfield: &perms0},
			{ID: "g3", Name: "Three", PermissionsBitfield: &perms0, HasBot: true},
		},
		LastLoginAt: loginTime,
	}
	if diff := cmp.Diff(want, profiles.upserts[0]); diff != "" {
		t.Fatalf("unexpected upsert (-want +got):\n%s", diff)
	}
	if got := testutil.ToFloat64(f.outcomes.WithLabelValues(string(StateDone), "")); got != 1 {
		t.Fatalf("expected one done outcome, got %v", got)
	}
}

func TestFlow_ReplayedCodeFails(t *testing.T) {
	dc := newFakeDiscord()
	profiles := &fakeProfiles{}
	f := newTestFlow(dc, profiles, 2)
	ctx := context.Background()

	if _, err := f.Complete(ctx, "abc"); err != nil {
		t.Fatalf("first attempt failed: %v", err)
	}
	_, err := f.Complete(ctx, "abc")
	if !errors.Is(err, discord.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if step := flowStep(t, err); step != StateExchangingToken {
		t.Fatalf("expected failure at %s, got %s", StateExchangingToken, step)
	}
	if len(profiles.upserts) != 1 {
		t.Fatalf("expected replay to write nothing, got %d upserts", len(profiles.upserts))
	}
}

func TestFlow_MissingCode(t *testing.T) {
	dc := newFakeDiscord()
	f := newTestFlow(dc, &fakeProfiles{}, 2)

	_, err := f.Complete(context.Background(), "   ")
	if !errors.Is(err, ErrMissingCode) {
		t.Fatalf("expected ErrMissingCode, got %v", err)
	}
	if step := flowStep(t, err); step != StateAwaitingCode {
		t.Fatalf("expected failure at %s, got %s", StateAwaitingCode, step)
	}
	if dc.exchangeCalls != 0 {
		t.Fatalf("expected no exchange call, got %d", dc.exchangeCalls)
	}
}

func TestFlow_IdentityFailureShortCircuits(t *testing.T) {
	dc := newFakeDiscord()
	dc.identityErr = fmt.Errorf("users/@me: %w", discord.ErrUpstreamTimeout)
	profiles := &fakeProfiles{}
	f := newTestFlow(dc, profiles, 2)

	_, err := f.Complete(context.Background(), "abc")
	if !errors.Is(err, discord.ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
	if step := flowStep(t, err); step != StateFetchingIdentity {
		t.Fatalf("expected failure at %s, got %s", StateFetchingIdentity, step)
	}
	if dc.guildCalls != 0 || dc.probeCalls != 0 {
		t.Fatalf("expected later steps skipped, got %d guild and %d probe calls", dc.guildCalls, dc.probeCalls)
	}
	if len(profiles.upserts) != 0 {
		t.Fatalf("expected no upsert, got %d", len(profiles.upserts))
	}
	if got := testutil.ToFloat64(f.outcomes.WithLabelValues(string(StateFailed), string(StateFetchingIdentity))); got != 1 {
		t.Fatalf("expected one failed outcome, got %v", got)
	}
}

func TestFlow_ProbeFailureKeepsGuild(t *testing.T) {
	dc := newFakeDiscord()
	dc.probeErrs = map[string]error{"g1": fmt.Errorf("probe: %w", discord.ErrUpstreamUnavailable)}
	profiles := &fakeProfiles{}
	f := newTestFlow(dc, profiles, 2)

	if _, err := f.Complete(context.Background(), "abc"); err != nil {
		t.Fatalf("probe failure must not fail the flow: %v", err)
	}
	guilds := profiles.upserts[0].Guilds
	if len(guilds) != 3 {
		t.Fatalf("expected all guilds kept, got %d", len(guilds))
	}
	if guilds[0].ID != "g1" || guilds[0].HasBot {
		t.Fatalf("expected g1 kept with hasBot=false, got %+v", guilds[0])
	}
	if !guilds[2].HasBot {
		t.Fatalf("expected g3 hasBot=true, got %+v", guilds[2])
	}
}

func TestFlow_ProbesRespectConcurrencyAndOrder(t *testing.T) {
	dc := newFakeDiscord()
	dc.probeDelay = 10 * time.Millisecond
	dc.guilds = nil
	for i := range 8 {
		dc.guilds = append(dc.guilds, discord.GuildSummary{ID: fmt.Sprintf("g%d", i), Name: fmt.Sprintf("Guild %d", i)})
	}
	profiles := &fakeProfiles{}
	f := newTestFlow(dc, profiles, 2)

	if _, err := f.Complete(context.Background(), "abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := dc.maxInFlight.Load(); got > 2 {
		t.Fatalf("expected at most 2 concurrent probes, got %d", got)
	}
	for i, g := range profiles.upserts[0].Guilds {
		if want := fmt.Sprintf("g%d", i); g.ID != want {
			t.Fatalf("expected guild %s at position %d, got %s", want, i, g.ID)
		}
	}
}

func TestFlow_UpsertFailure(t *testing.T) {
	dc := newFakeDiscord()
	profiles := &fakeProfiles{upsertErr: fmt.Errorf("upsert: %w", repository.ErrStoreUnavailable)}
	f := newTestFlow(dc, profiles, 2)

	_, err := f.Complete(context.Background(), "abc")
	if !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if step := flowStep(t, err); step != StatePersistingProfile {
		t.Fatalf("expected failure at %s, got %s", StatePersistingProfile, step)
	}
}

func TestFlow_NoAvatar(t *testing.T) {
	dc := newFakeDiscord()
	dc.identity.Avatar = ""
	profiles := &fakeProfiles{}
	f := newTestFlow(dc, profiles, 2)

	res, err := f.Complete(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AvatarURL != nil || profiles.upserts[0].AvatarURL != nil {
		t.Fatalf("expected nil avatar, got %v", res.AvatarURL)
	}
}
