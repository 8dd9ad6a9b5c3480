package port

import (
	"context"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
)

// SpaceDirectory resolves space identifiers. Space and floor management is an
// external collaborator; the lifecycle only needs existence checks and the
// floor denormalisation at session creation.
type SpaceDirectory interface {
	// GetSpace returns the space, or repository.ErrNotFound.
	GetSpace(ctx context.Context, spaceID string) (*domain.Space, error)
}
