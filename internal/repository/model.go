package repository

import "time"

type ShiftStatus string

const (
	ShiftStatusActive    ShiftStatus = "active"
	ShiftStatusCompleted ShiftStatus = "completed"
)

type Guild struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	IconURL             string `json:"iconUrl,omitempty"`
	ApproxMemberCount   *int   `json:"approxMemberCount,omitempty"`
	PermissionsBitfield *int64 `json:"permissionsBitfield,omitempty"`
	HasBot              bool   `json:"hasBot"`
}

type Profile struct {
	DiscordID   string
	Username    string
	AvatarURL   *string
	Guilds      []Guild
	LastLoginAt time.Time
}

type Shift struct {
	ID        string
	UserID    string
	ServerID  string
	StartTime time.Time
	EndTime   *time.Time
	Status    ShiftStatus
}

type ModerationLogEntry struct {
	ID          int64
	ServerID    string
	ModeratorID string
	ActionType  string
	TargetUser  string
	Reason      *string
	CreatedAt   time.Time
	// ModeratorName is the moderator's profile username, nil when no
	// profile exists for ModeratorID.
	ModeratorName *string
}

// DayWindow returns the UTC calendar day containing t as [start, end).
func DayWindow(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
