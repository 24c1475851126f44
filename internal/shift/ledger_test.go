package shift

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/google/uuid"
)

type memoryShiftRepository struct {
	mu      sync.Mutex
	shifts  []repository.Shift
	listErr error
	gotLim  int
}

func (m *memoryShiftRepository) CreateActiveShift(_ context.Context, input repository.StartShiftInput) (*repository.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shifts {
		if s.UserID == input.UserID && s.ServerID == input.ServerID && s.Status == repository.ShiftStatusActive {
			return nil, repository.ErrActiveShiftExists
		}
	}
	s := repository.Shift{
		ID:        input.ID,
		UserID:    input.UserID,
		ServerID:  input.ServerID,
		StartTime: input.StartedAt,
		Status:    repository.ShiftStatusActive,
	}
	m.shifts = append(m.shifts, s)
	return &s, nil
}

func (m *memoryShiftRepository) CompleteActiveShift(_ context.Context, input repository.EndShiftInput) (*repository.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.shifts {
		if s.UserID == input.UserID && s.ServerID == input.ServerID && s.Status == repository.ShiftStatusActive {
			end := input.EndedAt
			m.shifts[i].EndTime = &end
			m.shifts[i].Status = repository.ShiftStatusCompleted
			closed := m.shifts[i]
			return &closed, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryShiftRepository) ListRecentShifts(_ context.Context, userID, serverID string, limit int) ([]repository.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotLim = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []repository.Shift
	for i := len(m.shifts) - 1; i >= 0 && len(out) < limit; i-- {
		s := m.shifts[i]
		if s.UserID == userID && s.ServerID == serverID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryShiftRepository) SumShiftMinutes(_ context.Context, input repository.ShiftMinutesInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, s := range m.shifts {
		if s.ServerID != input.ServerID || s.StartTime.Before(input.DayStart) || !s.StartTime.Before(input.DayEnd) {
			continue
		}
		end := input.Now
		if s.EndTime != nil {
			end = *s.EndTime
		}
		if minutes := int64(end.Sub(s.StartTime) / time.Minute); minutes > 0 {
			total += minutes
		}
	}
	return total, nil
}

func (m *memoryShiftRepository) CountActiveModerators(_ context.Context, serverID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := map[string]struct{}{}
	for _, s := range m.shifts {
		if s.ServerID == serverID && s.Status == repository.ShiftStatusActive {
			users[s.UserID] = struct{}{}
		}
	}
	return int64(len(users)), nil
}

func (m *memoryShiftRepository) activeCount(userID, serverID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.shifts {
		if s.UserID == userID && s.ServerID == serverID && s.Status == repository.ShiftStatusActive {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLedger(start time.Time) (*Ledger, *memoryShiftRepository, *fakeClock) {
	repo := &memoryShiftRepository{}
	clock := &fakeClock{now: start}
	l := NewLedger(repo)
	l.now = clock.Now
	return l, repo, clock
}

func TestLedger_StartShiftRejectsSecondActive(t *testing.T) {
	l, repo, _ := newTestLedger(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	s, err := l.StartShift(ctx, "M1", "S1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != repository.ShiftStatusActive {
		t.Fatalf("expected active shift, got %q", s.Status)
	}
	if id, err := uuid.Parse(s.ID); err != nil || id.Version() != 7 {
		t.Fatalf("expected a v7 uuid shift id, got %q", s.ID)
	}
	if _, err := l.StartShift(ctx, "M1", "S1"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if _, err := l.StartShift(ctx, "M1", "S2"); err != nil {
		t.Fatalf("other server should be independent: %v", err)
	}
	if got := repo.activeCount("M1", "S1"); got != 1 {
		t.Fatalf("expected one active shift, got %d", got)
	}
}

func TestLedger_ConcurrentStartShiftHasOneWinner(t *testing.T) {
	l, repo, _ := newTestLedger(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = l.StartShift(ctx, "M1", "S1")
		}()
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyActive):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected one success and one conflict, got %d and %d", successes, conflicts)
	}
	if got := repo.activeCount("M1", "S1"); got != 1 {
		t.Fatalf("expected one active shift, got %d", got)
	}
}

func TestLedger_EndShiftWithoutActive(t *testing.T) {
	l, repo, _ := newTestLedger(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))

	if _, err := l.EndShift(context.Background(), "M1", "S1"); !errors.Is(err, ErrNoActiveShift) {
		t.Fatalf("expected ErrNoActiveShift, got %v", err)
	}
	if len(repo.shifts) != 0 {
		t.Fatalf("expected ledger unchanged, got %d shifts", len(repo.shifts))
	}
}

func TestLedger_EndShiftClosesActive(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	l, _, clock := newTestLedger(start)
	ctx := context.Background()

	if _, err := l.StartShift(ctx, "M1", "S1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	clock.Advance(90 * time.Minute)
	s, err := l.EndShift(ctx, "M1", "S1")
	if err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if s.Status != repository.ShiftStatusCompleted || s.EndTime == nil || !s.EndTime.Equal(start.Add(90*time.Minute)) {
		t.Fatalf("unexpected closed shift: %+v", s)
	}
	if _, err := l.StartShift(ctx, "M1", "S1"); err != nil {
		t.Fatalf("expected new shift after close, got %v", err)
	}
}

func TestLedger_TotalShiftMinutesMonotoneThenFrozen(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	l, _, clock := newTestLedger(start)
	ctx := context.Background()

	if _, err := l.StartShift(ctx, "M1", "S1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var last int64
	for range 5 {
		clock.Advance(7*time.Minute + 30*time.Second)
		got, err := l.TotalShiftMinutesToday(ctx, "S1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got < last {
			t.Fatalf("minutes decreased while active: %d -> %d", last, got)
		}
		last = got
	}
	if last != 37 {
		t.Fatalf("expected 37 whole minutes, got %d", last)
	}

	if _, err := l.EndShift(ctx, "M1", "S1"); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	clock.Advance(2 * time.Hour)
	got, err := l.TotalShiftMinutesToday(ctx, "S1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != last {
		t.Fatalf("expected minutes frozen at %d after close, got %d", last, got)
	}
}

func TestLedger_ActiveModerators(t *testing.T) {
	l, _, _ := newTestLedger(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, user := range []string{"M1", "M2", "M3"} {
		if _, err := l.StartShift(ctx, user, "S1"); err != nil {
			t.Fatalf("start failed: %v", err)
		}
	}
	if _, err := l.EndShift(ctx, "M2", "S1"); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	n, err := l.ActiveModerators(ctx, "S1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 active moderators, got %d", n)
	}
}

func TestLedger_ListRecentShiftsClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero uses default", limit: 0, want: DefaultListLimit},
		{name: "negative uses default", limit: -3, want: DefaultListLimit},
		{name: "in range kept", limit: 25, want: 25},
		{name: "above max capped", limit: 500, want: MaxListLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, repo, _ := newTestLedger(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
			if _, err := l.ListRecentShifts(context.Background(), "M1", "S1", tt.limit); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.gotLim != tt.want {
				t.Fatalf("expected limit %d, got %d", tt.want, repo.gotLim)
			}
		})
	}
}

func TestLedger_StoreErrorsPropagate(t *testing.T) {
	l, repo, _ := newTestLedger(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	repo.listErr = fmt.Errorf("list: %w", repository.ErrStoreUnavailable)

	_, err := l.ListRecentShifts(context.Background(), "M1", "S1", 10)
	if !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
