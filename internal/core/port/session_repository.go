package port

import (
	"context"
	"time"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
)

// SessionFilter narrows session listings. Zero values are ignored.
type SessionFilter struct {
	UserID  string
	SpaceID string
	FloorID string
	From    *time.Time
	To      *time.Time
	Limit   int
}

// SessionRepository persists access sessions. CloseOpen, TouchOpen and
// CloseStale are single conditional writes: the store applies the predicate
// and the mutation as one indivisible step, which is the only concurrency
// primitive the lifecycle relies on.
type SessionRepository interface {
	// OpenSupersede closes any open session for the pair at closeAt, then
	// inserts the new session, both inside one transaction. Returns the id
	// of the superseded session when one existed.
	OpenSupersede(ctx context.Context, session domain.AccessSession, closeAt time.Time) (*string, error)

	// CloseOpen sets exit_time on the open session for the pair. Returns
	// repository.ErrNotFound when no open session exists.
	CloseOpen(ctx context.Context, userID, spaceID string, exitTime time.Time) (*domain.AccessSession, error)

	// TouchOpen sets last_seen on the open session for the pair. Returns
	// repository.ErrNotFound when no open session exists.
	TouchOpen(ctx context.Context, userID, spaceID string, seenAt time.Time) (*domain.AccessSession, error)

	// CloseStale closes open sessions whose last_seen predates the cutoff,
	// stamping exit_time one second after last contact. At most limit
	// sessions are closed per call; the closed sessions are returned.
	CloseStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.AccessSession, error)

	GetByID(ctx context.Context, sessionID string) (*domain.AccessSession, error)
	List(ctx context.Context, filter SessionFilter) ([]domain.AccessSession, error)
	UpdateNotes(ctx context.Context, sessionID, notes string) (*domain.AccessSession, error)
}
