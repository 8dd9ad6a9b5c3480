package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// SessionPayload is the API view of an access session.
type SessionPayload struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	SpaceID     string     `json:"space_id"`
	FloorID     *string    `json:"floor_id,omitempty"`
	EntryTime   time.Time  `json:"entry_time"`
	ExitTime    *time.Time `json:"exit_time,omitempty"`
	LastSeen    time.Time  `json:"last_seen"`
	AccessGrant bool       `json:"access_grant"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func newSessionPayload(session domain.AccessSession) SessionPayload {
	return SessionPayload{
		ID:          session.ID,
		UserID:      session.UserID,
		SpaceID:     session.SpaceID,
		FloorID:     session.FloorID,
		EntryTime:   session.EntryTime,
		ExitTime:    session.ExitTime,
		LastSeen:    session.LastSeen,
		AccessGrant: session.AccessGrant,
		Notes:       session.Notes,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}

// OpenSessionRequest defines the payload for opening a presence session.
type OpenSessionRequest struct {
	SpaceID   string     `json:"space_id" binding:"required"`
	UserID    string     `json:"user_id"`
	EntryTime *time.Time `json:"entry_time"`
	Notes     *string    `json:"notes"`
}

// CloseSessionRequest defines the payload for closing a presence session.
type CloseSessionRequest struct {
	SpaceID  string     `json:"space_id" binding:"required"`
	UserID   string     `json:"user_id"`
	ExitTime *time.Time `json:"exit_time"`
}

// HeartbeatRequest defines the payload for a session liveness signal.
type HeartbeatRequest struct {
	SpaceID   string     `json:"space_id" binding:"required"`
	UserID    string     `json:"user_id"`
	Timestamp *time.Time `json:"timestamp"`
}

// HeartbeatResponse acknowledges a liveness signal.
type HeartbeatResponse struct {
	LastSeen time.Time `json:"last_seen"`
}

// SessionListResponse wraps a page of sessions.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// UpdateNotesRequest replaces the annotation on a session.
type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

// GrantPayload is the API view of a permission grant.
type GrantPayload struct {
	UserID    string     `json:"user_id"`
	SpaceID   string     `json:"space_id"`
	CanEnter  bool       `json:"can_enter"`
	CanManage bool       `json:"can_manage"`
	CreatedBy *string    `json:"created_by,omitempty"`
	Revoked   bool       `json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func newGrantPayload(grant domain.Permission) GrantPayload {
	return GrantPayload{
		UserID:    grant.UserID,
		SpaceID:   grant.SpaceID,
		CanEnter:  grant.CanEnter,
		CanManage: grant.CanManage,
		CreatedBy: grant.CreatedBy,
		Revoked:   grant.Revoked,
		RevokedAt: grant.RevokedAt,
		ExpiresAt: grant.ExpiresAt,
		CreatedAt: grant.CreatedAt,
		UpdatedAt: grant.UpdatedAt,
	}
}

// UpsertGrantRequest defines the payload for issuing or replacing a grant.
type UpsertGrantRequest struct {
	UserID    string     `json:"user_id" binding:"required"`
	SpaceID   string     `json:"space_id" binding:"required"`
	CanEnter  bool       `json:"can_enter"`
	CanManage bool       `json:"can_manage"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// GrantListResponse wraps a page of grants.
type GrantListResponse struct {
	Grants []GrantPayload `json:"grants"`
	Total  int            `json:"total"`
}

// ActiveSpacesResponse lists spaces a user currently holds entry for.
type ActiveSpacesResponse struct {
	UserID   string   `json:"user_id"`
	SpaceIDs []string `json:"space_ids"`
}

// HealthResponse reports service liveness or readiness.
type HealthResponse struct {
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Checks    map[string]string `json:"checks,omitempty"`
}
