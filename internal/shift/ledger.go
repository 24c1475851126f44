package shift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/google/uuid"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

var (
	ErrAlreadyActive = errors.New("moderator already has an active shift")
	ErrNoActiveShift = errors.New("no active shift")
)

// Ledger owns the on/off duty lifecycle of moderators per server.
type Ledger struct {
	repo repository.ShiftRepository
	now  func() time.Time
}

func NewLedger(repo repository.ShiftRepository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

func (l *Ledger) StartShift(ctx context.Context, userID, serverID string) (*repository.Shift, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate shift id: %w", err)
	}
	s, err := l.repo.CreateActiveShift(ctx, repository.StartShiftInput{
		ID:        id.String(),
		UserID:    userID,
		ServerID:  serverID,
		StartedAt: l.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrActiveShiftExists) {
			return nil, ErrAlreadyActive
		}
		return nil, fmt.Errorf("failed to start shift: %w", err)
	}
	slog.Info("shift started", "shift_id", s.ID, "user_id", userID, "server_id", serverID)
	return s, nil
}

// EndShift closes the pair's active shift. ErrNoActiveShift leaves the
// ledger untouched.
func (l *Ledger) EndShift(ctx context.Context, userID, serverID string) (*repository.Shift, error) {
	s, err := l.repo.CompleteActiveShift(ctx, repository.EndShiftInput{
		UserID:   userID,
		ServerID: serverID,
		EndedAt:  l.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveShift
		}
		return nil, fmt.Errorf("failed to end shift: %w", err)
	}
	slog.Info("shift ended", "shift_id", s.ID, "user_id", userID, "server_id", serverID)
	return s, nil
}

func (l *Ledger) ListRecentShifts(ctx context.Context, userID, serverID string, limit int) ([]repository.Shift, error) {
	shifts, err := l.repo.ListRecentShifts(ctx, userID, serverID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return shifts, nil
}

// TotalShiftMinutesToday sums whole minutes of shifts started in the current
// UTC day. Open shifts count up to now.
func (l *Ledger) TotalShiftMinutesToday(ctx context.Context, serverID string) (int64, error) {
	now := l.now().UTC()
	dayStart, dayEnd := repository.DayWindow(now)
	total, err := l.repo.SumShiftMinutes(ctx, repository.ShiftMinutesInput{
		ServerID: serverID,
		DayStart: dayStart,
		DayEnd:   dayEnd,
		Now:      now,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sum shift minutes: %w", err)
	}
	return total, nil
}

func (l *Ledger) ActiveModerators(ctx context.Context, serverID string) (int64, error) {
	n, err := l.repo.CountActiveModerators(ctx, serverID)
	if err != nil {
		return 0, fmt.Errorf("failed to count active moderators: %w", err)
	}
	return n, nil
}

// ClampLimit applies the default for non-positive limits and caps the rest.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
