package httpserver

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TBoneIsntCool/viper-red-panel/internal/auth"
	"github.com/TBoneIsntCool/viper-red-panel/internal/discord"
	"github.com/TBoneIsntCool/viper-red-panel/internal/modlog"
	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/TBoneIsntCool/viper-red-panel/internal/shift"
	"github.com/TBoneIsntCool/viper-red-panel/internal/stats"
	"github.com/go-chi/chi/v5"
)

type AuthFlow interface {
	AuthorizeURL(state string) string
	Complete(ctx context.Context, code string) (*auth.Result, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, discordID string) (*repository.Profile, error)
}

type ShiftLedger interface {
	StartShift(ctx context.Context, userID, serverID string) (*repository.Shift, error)
	EndShift(ctx context.Context, userID, serverID string) (*repository.Shift, error)
	ListRecentShifts(ctx context.Context, userID, serverID string, limit int) ([]repository.Shift, error)
}

type ModerationLog interface {
	LogAction(ctx context.Context, action modlog.Action) (*repository.ModerationLogEntry, error)
	RecentActions(ctx context.Context, serverID string, limit int) ([]repository.ModerationLogEntry, error)
}

type StatsSource interface {
	Snapshot(ctx context.Context, serverID string) (stats.ServerStats, error)
}

type MemberRoster interface {
	RecordMemberJoin(ctx context.Context, serverID, userID string, at time.Time) error
	RecordMemberLeave(ctx context.Context, serverID, userID string, at time.Time) error
}

type handlers struct {
	auth     AuthFlow
	profiles ProfileReader
	shifts   ShiftLedger
	logs     ModerationLog
	stats    StatsSource
	members  MemberRoster
	now      func() time.Time
}

type userView struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar"`
}

type userResponse struct {
	User userView `json:"user"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": h.now().UTC(),
	})
}

func (h *handlers) authorize(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"url": h.auth.AuthorizeURL(rand.Text())})
}

type callbackRequest struct {
	Code string `json:"code"`
}

func (h *handlers) callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := h.auth.Complete(r.Context(), req.Code)
	if err != nil {
		status, msg := callbackFailure(err)
		slog.Error("auth callback failed", "error", err, "status", status)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: userView{ID: res.ID, Username: res.Username, Avatar: res.AvatarURL}})
}

func callbackFailure(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingCode):
		return http.StatusBadRequest, "No authorization code provided"
	case errors.Is(err, discord.ErrInvalidCode):
		return http.StatusUnauthorized, "Invalid or expired authorization code"
	case errors.Is(err, discord.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "Discord did not respond in time"
	case errors.Is(err, discord.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "Discord is unavailable"
	default:
		return http.StatusInternalServerError, "Authentication callback failed"
	}
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	p, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		slog.Error("failed to load profile", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: userView{ID: p.DiscordID, Username: p.Username, Avatar: p.AvatarURL}})
}

type shiftRequest struct {
	UserID   string `json:"userId"`
	ServerID string `json:"serverId"`
}

func (req shiftRequest) valid() bool {
	return strings.TrimSpace(req.UserID) != "" && strings.TrimSpace(req.ServerID) != ""
}

func (h *handlers) startShift(w http.ResponseWriter, r *http.Request) {
	var req shiftRequest
	if err := decodeBody(r, &req); err != nil || !req.valid() {
		writeStatus(w, http.StatusBadRequest, false, "userId and serverId are required")
		return
	}
	if _, err := h.shifts.StartShift(r.Context(), req.UserID, req.ServerID); err != nil {
		if errors.Is(err, shift.ErrAlreadyActive) {
			writeStatus(w, http.StatusConflict, false, "Shift already active")
			return
		}
		slog.Error("failed to start shift", "error", err, "user_id", req.UserID, "server_id", req.ServerID)
		writeStatus(w, http.StatusInternalServerError, false, "Failed to start shift")
		return
	}
	writeStatus(w, http.StatusOK, true, "Shift started")
}

// endShift reports success even when nothing was active.
func (h *handlers) endShift(w http.ResponseWriter, r *http.Request) {
	var req shiftRequest
	if err := decodeBody(r, &req); err != nil || !req.valid() {
		writeStatus(w, http.StatusBadRequest, false, "userId and serverId are required")
		return
	}
	if _, err := h.shifts.EndShift(r.Context(), req.UserID, req.ServerID); err != nil {
		if errors.Is(err, shift.ErrNoActiveShift) {
			writeStatus(w, http.StatusOK, true, "No active shift")
			return
		}
		slog.Error("failed to end shift", "error", err, "user_id", req.UserID, "server_id", req.ServerID)
		writeStatus(w, http.StatusInternalServerError, false, "Failed to end shift")
		return
	}
	writeStatus(w, http.StatusOK, true, "Shift ended")
}

type shiftView struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	ServerID  string     `json:"serverId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Status    string     `json:"status"`
}

func (h *handlers) listShifts(w http.ResponseWriter, r *http.Request) {
	serverID, userID := chi.URLParam(r, "serverId"), chi.URLParam(r, "userId")
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	shifts, err := h.shifts.ListRecentShifts(r.Context(), userID, serverID, limit)
	if err != nil {
		slog.Error("failed to list shifts", "error", err, "user_id", userID, "server_id", serverID)
		writeError(w, http.StatusInternalServerError, "Failed to fetch shifts")
		return
	}
	views := make([]shiftView, 0, len(shifts))
	for _, s := range shifts {
		views = append(views, shiftView{
			ID:        s.ID,
			UserID:    s.UserID,
			ServerID:  s.ServerID,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Status:    string(s.Status),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"shifts": views})
}

type logActionRequest struct {
	ModeratorID string  `json:"moderatorId"`
	Action      string  `json:"action"`
	TargetUser  string  `json:"targetUser"`
	Reason      *string `json:"reason"`
	ServerID    string  `json:"serverId"`
}

func (h *handlers) logAction(w http.ResponseWriter, r *http.Request) {
	var req logActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}
	_, err := h.logs.LogAction(r.Context(), modlog.Action{
		ServerID:    req.ServerID,
		ModeratorID: req.ModeratorID,
		ActionType:  req.Action,
		TargetUser:  req.TargetUser,
		Reason:      req.Reason,
	})
	if err != nil {
		if errors.Is(err, modlog.ErrInvalidEntry) {
			writeStatus(w, http.StatusBadRequest, false, "moderatorId, action, targetUser and serverId are required")
			return
		}
		slog.Error("failed to log moderation action", "error", err, "server_id", req.ServerID, "moderator_id", req.ModeratorID)
		writeStatus(w, http.StatusInternalServerError, false, "Failed to log action")
		return
	}
	writeStatus(w, http.StatusOK, true, "Action logged")
}

type moderationLogView struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Moderator string    `json:"moderator"`
	Target    string    `json:"target"`
	Reason    *string   `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type panelResponse struct {
	ModerationLogs []moderationLogView `json:"moderationLogs"`
	ServerStats    stats.ServerStats   `json:"serverStats"`
}

func (h *handlers) panel(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "serverId")
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	entries, err := h.logs.RecentActions(r.Context(), serverID, limit)
	if err != nil {
		slog.Error("failed to load moderation logs", "error", err, "server_id", serverID)
		writeError(w, http.StatusInternalServerError, "Failed to fetch panel data")
		return
	}
	snapshot, err := h.stats.Snapshot(r.Context(), serverID)
	if err != nil {
		slog.Error("failed to load server stats", "error", err, "server_id", serverID)
		writeError(w, http.StatusInternalServerError, "Failed to fetch panel data")
		return
	}

	logs := make([]moderationLogView, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, moderationLogView{
			ID:        e.ID,
			Action:    e.ActionType,
			Moderator: modlog.ModeratorDisplayName(e),
			Target:    e.TargetUser,
			Reason:    e.Reason,
			Timestamp: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, panelResponse{ModerationLogs: logs, ServerStats: snapshot})
}

type memberRequest struct {
	ServerID string `json:"serverId"`
	UserID   string `json:"userId"`
}

func (h *handlers) memberJoin(w http.ResponseWriter, r *http.Request) {
	h.memberEvent(w, r, h.members.RecordMemberJoin)
}

func (h *handlers) memberLeave(w http.ResponseWriter, r *http.Request) {
	h.memberEvent(w, r, h.members.RecordMemberLeave)
}

func (h *handlers) memberEvent(w http.ResponseWriter, r *http.Request, record func(ctx context.Context, serverID, userID string, at time.Time) error) {
	var req memberRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.ServerID) == "" || strings.TrimSpace(req.UserID) == "" {
		writeStatus(w, http.StatusBadRequest, false, "serverId and userId are required")
		return
	}
	if err := record(r.Context(), req.ServerID, req.UserID, h.now().UTC()); err != nil {
		slog.Error("failed to record member event", "error", err, "server_id", req.ServerID, "user_id", req.UserID, "path", r.URL.Path)
		writeStatus(w, http.StatusInternalServerError, false, "Failed to record member event")
		return
	}
	writeStatus(w, http.StatusOK, true, "")
}

// parseLimit returns 0 for an absent limit; callers clamp.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
