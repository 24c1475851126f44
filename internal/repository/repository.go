package repository

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStoreUnavailable wraps every driver-level failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrActiveShiftExists is returned when the (user, server) pair already
	// has an active shift.
	ErrActiveShiftExists = errors.New("active shift already exists")
)

type UpsertProfileInput struct {
	DiscordID   string
	Username    string
	AvatarURL   *string
	Guilds      []Guild
	LastLoginAt time.Time
}

type StartShiftInput struct {
	ID        string
	UserID    string
	ServerID  string
	StartedAt time.Time
}

type EndShiftInput struct {
	UserID   string
	ServerID string
	EndedAt  time.Time
}

type ShiftMinutesInput struct {
	ServerID string
	DayStart time.Time
	DayEnd   time.Time
	Now      time.Time
}

type InsertModerationLogInput struct {
	ServerID    string
	ModeratorID string
	ActionType  string
	TargetUser  string
	Reason      *string
	CreatedAt   time.Time
}

type ProfileRepository interface {
	UpsertProfile(ctx context.Context, input UpsertProfileInput) error
	GetProfile(ctx context.Context, discordID string) (*Profile, error)
}

type ShiftRepository interface {
	// CreateActiveShift returns ErrActiveShiftExists instead of inserting a
	// second active row for the pair.
	CreateActiveShift(ctx context.Context, input StartShiftInput) (*Shift, error)
	// CompleteActiveShift returns ErrNotFound when the pair has no active shift.
	CompleteActiveShift(ctx context.Context, input EndShiftInput) (*Shift, error)
	ListRecentShifts(ctx context.Context, userID, serverID string, limit int) ([]Shift, error)
	SumShiftMinutes(ctx context.Context, input ShiftMinutesInput) (int64, error)
	CountActiveModerators(ctx context.Context, serverID string) (int64, error)
}

type ModerationLogRepository interface {
	InsertModerationLog(ctx context.Context, input InsertModerationLogInput) (*ModerationLogEntry, error)
	ListRecentModerationLogs(ctx context.Context, serverID string, limit int) ([]ModerationLogEntry, error)
	CountModerationLogs(ctx context.Context, serverID string, from, to time.Time) (int64, error)
}

type MemberRepository interface {
	RecordMemberJoin(ctx context.Context, serverID, userID string, at time.Time) error
	RecordMemberLeave(ctx context.Context, serverID, userID string, at time.Time) error
	CountActiveMembers(ctx context.Context, serverID string) (int64, error)
}

type Repository interface {
	ProfileRepository
	ShiftRepository
	ModerationLogRepository
	MemberRepository
}
