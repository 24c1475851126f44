package webhook

import (
	"context"
	"time"
)

// ModerationActionPayload is posted for every logged moderation action.
type ModerationActionPayload struct {
	ID          int64     `json:"id"`
	ServerID    string    `json:"serverId"`
	ModeratorID string    `json:"moderatorId"`
	Action      string    `json:"action"`
	TargetUser  string    `json:"targetUser"`
	Reason      *string   `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

type Notifier interface {
	NotifyModerationAction(ctx context.Context, payload ModerationActionPayload) error
}
