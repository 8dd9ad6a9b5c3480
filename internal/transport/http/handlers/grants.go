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

// GrantHandler exposes permission grant administration endpoints.
type GrantHandler struct {
	grants *usecase.GrantService
	gate   *usecase.PermissionGate
}

// NewGrantHandler constructs a grant handler.
func NewGrantHandler(grants *usecase.GrantService, gate *usecase.PermissionGate) *GrantHandler {
	return &GrantHandler{grants: grants, gate: gate}
}

// RegisterRoutes binds grant administration routes to the provided router group.
func (h *GrantHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	privileged := middleware.RequirePrivileged()

	r.PUT("", privileged, h.Upsert)
	r.DELETE("", privileged, h.Revoke)
	r.GET("", privileged, h.List)
	r.GET("/spaces", h.ActiveSpaces)
}

var grantErrorCases = []ErrorCase{
	{Err: usecase.ErrSpaceNotFound, Status: http.StatusBadRequest, Message: "unknown space"},
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest, Message: "invalid request"},
	{Err: usecase.ErrNotAuthorized, Status: http.StatusForbidden, Message: "insufficient permissions"},
	{Err: usecase.ErrGrantNotFound, Status: http.StatusNotFound, Message: "grant not found"},
}

// Upsert issues or replaces the grant for a (user, space) pair.
func (h *GrantHandler) Upsert(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req UpsertGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id and space_id are required"))
		return
	}

	grant, err := h.grants.Upsert(c.Request.Context(), usecase.UpsertGrantInput{
		Actor:     actor,
		UserID:    req.UserID,
		SpaceID:   req.SpaceID,
		CanEnter:  req.CanEnter,
		CanManage: req.CanManage,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		RespondWithMappedError(c, err, grantErrorCases, http.StatusInternalServerError, "failed to upsert grant")
		return
	}

	c.JSON(http.StatusOK, newGrantPayload(*grant))
}

// Revoke soft-revokes the grant for a (user, space) pair.
func (h *GrantHandler) Revoke(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	userID := strings.TrimSpace(c.Query("user_id"))
	spaceID := strings.TrimSpace(c.Query("space_id"))
	if userID == "" || spaceID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id and space_id are required"))
		return
	}

	reason := strings.TrimSpace(c.Query("reason"))

	grant, err := h.grants.Revoke(c.Request.Context(), actor, userID, spaceID, reason)
	if err != nil {
		RespondWithMappedError(c, err, grantErrorCases, http.StatusInternalServerError, "failed to revoke grant")
		return
	}

	c.JSON(http.StatusOK, newGrantPayload(*grant))
}

// List returns grants matching the query filters. Privileged roles only.
func (h *GrantHandler) List(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	filter := port.GrantFilter{
		UserID:  strings.TrimSpace(c.Query("user_id")),
		SpaceID: strings.TrimSpace(c.Query("space_id")),
	}

	if raw := c.Query("active_only"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			filter.ActiveOnly = parsed
		}
	}

	grants, err := h.grants.List(c.Request.Context(), actor, filter)
	if err != nil {
		RespondWithMappedError(c, err, grantErrorCases, http.StatusInternalServerError, "failed to list grants")
		return
	}

	response := make([]GrantPayload, 0, len(grants))
	for _, grant := range grants {
		response = append(response, newGrantPayload(grant))
	}

	c.JSON(http.StatusOK, GrantListResponse{Grants: response, Total: len(response)})
}

// ActiveSpaces lists the spaces a user currently holds entry for. Callers may
// only query another user when privileged.
func (h *GrantHandler) ActiveSpaces(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		userID = actor.ID
	}
	if userID != actor.ID && !actor.Role.IsPrivileged() {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "insufficient permissions"))
		return
	}

	spaceIDs, err := h.gate.ActiveSpacesForUser(c.Request.Context(), userID, time.Now().UTC())
	if err != nil {
		RespondWithMappedError(c, err, grantErrorCases, http.StatusInternalServerError, "failed to list active spaces")
		return
	}

	c.JSON(http.StatusOK, ActiveSpacesResponse{UserID: userID, SpaceIDs: spaceIDs})
}
