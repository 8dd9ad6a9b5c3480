package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/port"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/transport/http/middleware"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/usecase"
)

// SessionHandler exposes the presence session lifecycle endpoints.
type SessionHandler struct {
	sessions *usecase.SessionService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds session lifecycle routes to the provided router group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/open", h.Open)
	r.POST("/close", h.Close)
	r.POST("/heartbeat", h.Heartbeat)
	r.GET("", h.List)
	r.PATCH("/:session_id/notes", h.UpdateNotes)
}

var sessionErrorCases = []ErrorCase{
	{Err: usecase.ErrSpaceNotFound, Status: http.StatusBadRequest, Message: "unknown space"},
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Message: "invalid request"},
	{Err: usecase.ErrNotAuthorized, Status: http.StatusForbidden, Message: "access not permitted"},
	{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "no open session for user and space"},
}

// Open starts a presence session for a user in a space. An open session left
// behind for the pair is superseded rather than rejected.
func (h *SessionHandler) Open(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "space_id is required"))
		return
	}

	session, err := h.sessions.Open(c.Request.Context(), usecase.OpenSessionInput{
		Actor:        actor,
		SpaceID:      req.SpaceID,
		TargetUserID: req.UserID,
		EntryTime:    req.EntryTime,
		Notes:        req.Notes,
	})
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, "failed to open session")
		return
	}

	c.JSON(http.StatusCreated, newSessionPayload(*session))
}

// Close finalises the open session for a user and space.
func (h *SessionHandler) Close(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req CloseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "space_id is required"))
		return
	}

	session, err := h.sessions.Close(c.Request.Context(), usecase.CloseSessionInput{
		Actor:        actor,
		SpaceID:      req.SpaceID,
		TargetUserID: req.UserID,
		ExitTime:     req.ExitTime,
	})
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, "failed to close session")
		return
	}

	c.JSON(http.StatusOK, newSessionPayload(*session))
}

// Heartbeat advances last-seen on the open session for a user and space.
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "space_id is required"))
		return
	}

	lastSeen, err := h.sessions.Heartbeat(c.Request.Context(), usecase.HeartbeatInput{
		Actor:        actor,
		SpaceID:      req.SpaceID,
		TargetUserID: req.UserID,
		Timestamp:    req.Timestamp,
	})
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, "failed to record heartbeat")
		return
	}

	c.JSON(http.StatusOK, HeartbeatResponse{LastSeen: lastSeen})
}

// List returns sessions matching the query filters, newest entry first.
// Non-privileged callers only ever see their own sessions.
func (h *SessionHandler) List(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	filter := port.SessionFilter{
		UserID:  strings.TrimSpace(c.Query("user_id")),
		SpaceID: strings.TrimSpace(c.Query("space_id")),
		FloorID: strings.TrimSpace(c.Query("floor_id")),
	}

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "from must be RFC 3339"))
			return
		}
		filter.From = &parsed
	}

	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "to must be RFC 3339"))
			return
		}
		filter.To = &parsed
	}

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a non-negative integer"))
			return
		}
		filter.Limit = parsed
	}

	sessions, err := h.sessions.List(c.Request.Context(), actor, filter)
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	response := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		response = append(response, newSessionPayload(session))
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: response, Total: len(response)})
}

// UpdateNotes replaces the annotation on a session.
func (h *SessionHandler) UpdateNotes(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id is required"))
		return
	}

	var req UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid notes payload"))
		return
	}

	session, err := h.sessions.UpdateNotes(c.Request.Context(), actor, sessionID, req.Notes)
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Message: "invalid request"},
			{Err: usecase.ErrNotAuthorized, Status: http.StatusForbidden, Message: "session not owned by caller"},
			{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to update notes")
		return
	}

	c.JSON(http.StatusOK, newSessionPayload(*session))
}
