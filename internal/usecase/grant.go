package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/port"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/repository"
)

// GrantService manages permission grants. All writes are restricted to
// privileged roles; the session lifecycle only ever reads grants through the
// PermissionGate.
type GrantService struct {
	grants port.PermissionRepository
	spaces port.SpaceDirectory
	cache  port.GrantCache
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewGrantService constructs a GrantService.
func NewGrantService(grants port.PermissionRepository, spaces port.SpaceDirectory, events port.EventPublisher, logger *zap.Logger) *GrantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &GrantService{
		grants: grants,
		spaces: spaces,
		events: events,
		logger: logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithGrantCache injects the cache so writes can invalidate stale entries.
func (s *GrantService) WithGrantCache(cache port.GrantCache) *GrantService {
	s.cache = cache
	return s
}

// WithClock overrides the internal clock for deterministic tests.
func (s *GrantService) WithClock(clock func() time.Time) *GrantService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// UpsertGrantInput captures the payload for issuing or replacing a grant.
type UpsertGrantInput struct {
	Actor     domain.Actor
	UserID    string
	SpaceID   string
	CanEnter  bool
	CanManage bool
	ExpiresAt *time.Time
}

// Upsert issues or replaces the grant for a (user, space) pair. Re-granting
// clears a previous revocation and records the issuing actor for audit.
func (s *GrantService) Upsert(ctx context.Context, input UpsertGrantInput) (*domain.Permission, error) {
	if !input.Actor.Role.IsPrivileged() {
		return nil, ErrNotAuthorized
	}
	if strings.TrimSpace(input.UserID) == "" || strings.TrimSpace(input.SpaceID) == "" {
		return nil, fmt.Errorf("%w: user id and space id are required", ErrInvalidInput)
	}

	if _, err := s.spaces.GetSpace(ctx, input.SpaceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSpaceNotFound
		}
		return nil, fmt.Errorf("resolve space: %w", err)
	}

	createdBy := input.Actor.ID
	grant := domain.Permission{
		UserID:    input.UserID,
		SpaceID:   input.SpaceID,
		CanEnter:  input.CanEnter,
		CanManage: input.CanManage,
		CreatedBy: &createdBy,
		ExpiresAt: input.ExpiresAt,
	}

	stored, err := s.grants.Upsert(ctx, grant)
	if err != nil {
		return nil, fmt.Errorf("upsert grant: %w", err)
	}

	s.invalidate(ctx, stored.UserID, stored.SpaceID)

	return stored, nil
}

// Revoke soft-revokes the grant for a pair. Revoking an already-revoked
// grant is a no-op that returns the stored record.
func (s *GrantService) Revoke(ctx context.Context, actor domain.Actor, userID, spaceID, reason string) (*domain.Permission, error) {
	if !actor.Role.IsPrivileged() {
		return nil, ErrNotAuthorized
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(spaceID) == "" {
		return nil, fmt.Errorf("%w: user id and space id are required", ErrInvalidInput)
	}

	now := s.now()
	grant, err := s.grants.Revoke(ctx, userID, spaceID, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("revoke grant: %w", err)
	}

	s.invalidate(ctx, userID, spaceID)

	if reason == "" {
		reason = "manual_revoke"
	}
	s.publishRevoked(ctx, *grant, actor.ID, reason)

	return grant, nil
}

// List returns grants matching the filter. Privileged roles only.
func (s *GrantService) List(ctx context.Context, actor domain.Actor, filter port.GrantFilter) ([]domain.Permission, error) {
	if !actor.Role.IsPrivileged() {
		return nil, ErrNotAuthorized
	}
	grants, err := s.grants.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

func (s *GrantService) invalidate(ctx context.Context, userID, spaceID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID, spaceID); err != nil {
		s.logger.Warn("grant cache invalidation failed",
			zap.String("user_id", userID),
			zap.String("space_id", spaceID),
			zap.Error(err),
		)
	}
}

func (s *GrantService) publishRevoked(ctx context.Context, grant domain.Permission, revokedBy, reason string) {
	if s.events == nil {
		return
	}
	revokedAt := s.now()
	if grant.RevokedAt != nil {
		revokedAt = *grant.RevokedAt
	}
	event := domain.GrantRevokedEvent{
		EventID:   uuid.NewString(),
		UserID:    grant.UserID,
		SpaceID:   grant.SpaceID,
		RevokedBy: revokedBy,
		RevokedAt: revokedAt,
		Reason:    reason,
	}
	if err := s.events.PublishGrantRevoked(ctx, event); err != nil {
		s.logger.Warn("publish grant revoked event failed",
			zap.String("user_id", grant.UserID),
			zap.String("space_id", grant.SpaceID),
			zap.Error(err),
		)
	}
}
