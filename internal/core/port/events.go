package port

import (
	"context"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
)

// EventPublisher broadcasts presence lifecycle events to downstream
// consumers. Publishing is best-effort: the lifecycle never fails an
// operation because an event could not be delivered.
type EventPublisher interface {
	PublishSessionOpened(ctx context.Context, event domain.SessionOpenedEvent) error
	PublishSessionClosed(ctx context.Context, event domain.SessionClosedEvent) error
	PublishGrantRevoked(ctx context.Context, event domain.GrantRevokedEvent) error
}
