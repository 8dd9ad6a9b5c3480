package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishSessionOpened logs presence.session.opened events.
func (p *StubPublisher) PublishSessionOpened(_ context.Context, event domain.SessionOpenedEvent) error {
	payload := map[string]any{
		"session_id":            event.SessionID,
		"user_id":               event.UserID,
		"space_id":              event.SpaceID,
		"floor_id":              event.FloorID,
		"entry_time":            event.EntryTime,
		"superseded_session_id": event.SupersededID,
	}
	p.logEvent("presence.session.opened", event.UserID, event.EntryTime, payload)
	return nil
}

// PublishSessionClosed logs presence.session.closed events.
func (p *StubPublisher) PublishSessionClosed(_ context.Context, event domain.SessionClosedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"user_id":    event.UserID,
		"space_id":   event.SpaceID,
		"exit_time":  event.ExitTime,
		"reason":     event.Reason,
	}
	p.logEvent("presence.session.closed", event.UserID, event.ExitTime, payload)
	return nil
}

// PublishGrantRevoked logs presence.grant.revoked events.
func (p *StubPublisher) PublishGrantRevoked(_ context.Context, event domain.GrantRevokedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"space_id":   event.SpaceID,
		"revoked_by": event.RevokedBy,
		"revoked_at": event.RevokedAt,
		"reason":     event.Reason,
	}
	p.logEvent("presence.grant.revoked", event.UserID, event.RevokedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
