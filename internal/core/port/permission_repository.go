package port

import (
	"context"
	"time"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
)

// GrantFilter narrows grant listings. Zero values are ignored.
type GrantFilter struct {
	UserID     string
	SpaceID    string
	ActiveOnly bool
}

// PermissionRepository manages grant storage. At most one grant exists per
// (user, space) pair; Upsert replaces rather than duplicates.
type PermissionRepository interface {
	Upsert(ctx context.Context, grant domain.Permission) (*domain.Permission, error)

	// Get returns the grant for the pair, or repository.ErrNotFound.
	Get(ctx context.Context, userID, spaceID string) (*domain.Permission, error)

	// Revoke soft-revokes the grant for the pair. Already-revoked grants are
	// returned unchanged; a missing grant yields repository.ErrNotFound.
	Revoke(ctx context.Context, userID, spaceID string, at time.Time) (*domain.Permission, error)

	List(ctx context.Context, filter GrantFilter) ([]domain.Permission, error)

	// ListActiveSpaces returns the space ids the user holds an entry-capable,
	// unrevoked, unexpired grant for at the supplied instant.
	ListActiveSpaces(ctx context.Context, userID string, at time.Time) ([]string, error)

	// RevokeExpired marks every unrevoked grant with expires_at <= now as
	// revoked and returns the affected grants. Re-running is a no-op.
	RevokeExpired(ctx context.Context, now time.Time) ([]domain.Permission, error)
}
