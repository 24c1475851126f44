package modlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/TBoneIsntCool/viper-red-panel/internal/webhook"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100

	// UnknownModerator is shown for moderators without a stored profile.
	UnknownModerator = "Unknown"
)

var ErrInvalidEntry = errors.New("invalid moderation log entry")

type Action struct {
	ServerID    string
	ModeratorID string
	ActionType  string
	TargetUser  string
	Reason      *string
}

func (a Action) validate() error {
	var missing []string
	if strings.TrimSpace(a.ServerID) == "" {
		missing = append(missing, "server id")
	}
	if strings.TrimSpace(a.ModeratorID) == "" {
		missing = append(missing, "moderator id")
	}
	if strings.TrimSpace(a.ActionType) == "" {
		missing = append(missing, "action type")
	}
	if strings.TrimSpace(a.TargetUser) == "" {
		missing = append(missing, "target user")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidEntry, strings.Join(missing, ", "))
	}
	return nil
}

// Log is the append-only record of moderation actions.
type Log struct {
	repo     repository.ModerationLogRepository
	notifier webhook.Notifier
	now      func() time.Time
}

func NewLog(repo repository.ModerationLogRepository, notifier webhook.Notifier) *Log {
	return &Log{repo: repo, notifier: notifier, now: time.Now}
}

// LogAction appends an entry. ActionType is stored verbatim. A failed webhook
// delivery is logged and does not fail the call.
func (l *Log) LogAction(ctx context.Context, action Action) (*repository.ModerationLogEntry, error) {
	if err := action.validate(); err != nil {
		return nil, err
	}
	reason := action.Reason
	if reason != nil && *reason == "" {
		reason = nil
	}
	entry, err := l.repo.InsertModerationLog(ctx, repository.InsertModerationLogInput{
		ServerID:    action.ServerID,
		ModeratorID: action.ModeratorID,
		ActionType:  action.ActionType,
		TargetUser:  action.TargetUser,
		Reason:      reason,
		CreatedAt:   l.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to log moderation action: %w", err)
	}
	slog.Info("moderation action logged", "log_id", entry.ID, "server_id", entry.ServerID, "moderator_id", entry.ModeratorID, "action_type", entry.ActionType)

	err = l.notifier.NotifyModerationAction(ctx, webhook.ModerationActionPayload{
		ID:          entry.ID,
		ServerID:    entry.ServerID,
		ModeratorID: entry.ModeratorID,
		Action:      entry.ActionType,
		TargetUser:  entry.TargetUser,
		Reason:      entry.Reason,
		Timestamp:   entry.CreatedAt,
	})
	if err != nil {
		slog.Warn("failed to deliver moderation webhook", "error", err, "log_id", entry.ID, "server_id", entry.ServerID)
	}
	return entry, nil
}

// RecentActions returns the newest entries first.
func (l *Log) RecentActions(ctx context.Context, serverID string, limit int) ([]repository.ModerationLogEntry, error) {
	entries, err := l.repo.ListRecentModerationLogs(ctx, serverID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation logs: %w", err)
	}
	return entries, nil
}

// CountToday counts entries created in the current UTC day.
func (l *Log) CountToday(ctx context.Context, serverID string) (int64, error) {
	from, to := repository.DayWindow(l.now())
	n, err := l.repo.CountModerationLogs(ctx, serverID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to count moderation logs: %w", err)
	}
	return n, nil
}

func ModeratorDisplayName(e repository.ModerationLogEntry) string {
	if e.ModeratorName == nil || *e.ModeratorName == "" {
		return UnknownModerator
	}
	return *e.ModeratorName
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}
