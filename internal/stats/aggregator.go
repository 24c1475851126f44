package stats

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

type ServerStats struct {
	MemberCount           int64 `json:"memberCount"`
	ModerationsToday      int64 `json:"moderationsToday"`
	ActiveModerators      int64 `json:"activeModerators"`
	TotalShiftTimeMinutes int64 `json:"totalShiftTimeMinutes"`
}

type ShiftReader interface {
	ActiveModerators(ctx context.Context, serverID string) (int64, error)
	TotalShiftMinutesToday(ctx context.Context, serverID string) (int64, error)
}

type ActionCounter interface {
	CountToday(ctx context.Context, serverID string) (int64, error)
}

type MemberCounter interface {
	CountActiveMembers(ctx context.Context, serverID string) (int64, error)
}

// Aggregator derives dashboard figures on every call; nothing is cached.
type Aggregator struct {
	members MemberCounter
	actions ActionCounter
	shifts  ShiftReader
}

func NewAggregator(members MemberCounter, actions ActionCounter, shifts ShiftReader) *Aggregator {
	return &Aggregator{members: members, actions: actions, shifts: shifts}
}

// Snapshot runs the four reads in parallel. Any failure fails the snapshot.
func (a *Aggregator) Snapshot(ctx context.Context, serverID string) (ServerStats, error) {
	var s ServerStats
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		n, err := a.members.CountActiveMembers(ctx, serverID)
		if err != nil {
			return fmt.Errorf("member count: %w", err)
		}
		s.MemberCount = n
		return nil
	})
	p.Go(func(ctx context.Context) error {
		n, err := a.actions.CountToday(ctx, serverID)
		if err != nil {
			return fmt.Errorf("moderations today: %w", err)
		}
		s.ModerationsToday = n
		return nil
	})
	p.Go(func(ctx context.Context) error {
		n, err := a.shifts.ActiveModerators(ctx, serverID)
		if err != nil {
			return fmt.Errorf("active moderators: %w", err)
		}
		s.ActiveModerators = n
		return nil
	})
	p.Go(func(ctx context.Context) error {
		n, err := a.shifts.TotalShiftMinutesToday(ctx, serverID)
		if err != nil {
			return fmt.Errorf("shift minutes: %w", err)
		}
		s.TotalShiftTimeMinutes = n
		return nil
	})
	if err := p.Wait(); err != nil {
		return ServerStats{}, fmt.Errorf("failed to build stats for server %s: %w", serverID, err)
	}
	return s, nil
}
