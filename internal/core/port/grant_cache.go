package port

import (
	"context"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
)

// GrantCache is a read-through cache of grant records sitting in front of the
// permission store. Only the record is cached; activity is always evaluated
// against the instant supplied by the caller, so a cached grant never makes a
// stale expiry decision.
type GrantCache interface {
	// Get returns the cached grant and whether the cache held an entry.
	Get(ctx context.Context, userID, spaceID string) (*domain.Permission, bool, error)
	Set(ctx context.Context, grant domain.Permission) error
	Invalidate(ctx context.Context, userID, spaceID string) error
}
