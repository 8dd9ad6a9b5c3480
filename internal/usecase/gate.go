package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/port"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/repository"
)

// PermissionGate answers whether a user may currently enter or remain in a
// space. It is a pure read-time predicate: the evaluation instant is always
// supplied by the caller, never read from a wall clock, and the gate performs
// no writes. Roles are not its concern; privileged bypass happens before the
// gate is consulted.
type PermissionGate struct {
	grants port.PermissionRepository
	cache  port.GrantCache
	logger *zap.Logger
}

// NewPermissionGate constructs a gate over the permission store.
func NewPermissionGate(grants port.PermissionRepository, logger *zap.Logger) *PermissionGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionGate{grants: grants, logger: logger}
}

// WithGrantCache injects a read-through cache in front of the store.
func (g *PermissionGate) WithGrantCache(cache port.GrantCache) *PermissionGate {
	g.cache = cache
	return g
}

// IsActiveGrant reports whether an entry-capable, unrevoked, unexpired grant
// exists for the pair at the supplied instant. Absence of a grant record is
// an inactive grant: default-deny.
func (g *PermissionGate) IsActiveGrant(ctx context.Context, userID, spaceID string, at time.Time) (bool, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(spaceID) == "" {
		return false, nil
	}

	grant, err := g.lookup(ctx, userID, spaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup grant: %w", err)
	}

	return grant.AllowsEntry(at), nil
}

// ActiveSpacesForUser returns the space ids the user holds an active,
// entry-capable grant for at the supplied instant. Collaborators use this
// read path to scope space and floor listings.
func (g *PermissionGate) ActiveSpacesForUser(ctx context.Context, userID string, at time.Time) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	spaces, err := g.grants.ListActiveSpaces(ctx, userID, at)
	if err != nil {
		return nil, fmt.Errorf("list active spaces: %w", err)
	}
	return spaces, nil
}

func (g *PermissionGate) lookup(ctx context.Context, userID, spaceID string) (*domain.Permission, error) {
	if g.cache != nil {
		cached, ok, err := g.cache.Get(ctx, userID, spaceID)
		if err != nil {
			// A broken cache degrades to the store; the gate stays correct.
			g.logger.Warn("grant cache read failed",
				zap.String("user_id", userID),
				zap.String("space_id", spaceID),
				zap.Error(err),
			)
		} else if ok {
			return cached, nil
		}
	}

	grant, err := g.grants.Get(ctx, userID, spaceID)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, *grant); err != nil {
			g.logger.Warn("grant cache write failed",
				zap.String("user_id", userID),
				zap.String("space_id", spaceID),
				zap.Error(err),
			)
		}
	}

	return grant, nil
}
