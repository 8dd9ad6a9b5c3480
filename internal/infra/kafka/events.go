package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/port"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionOpened publishes presence.session.opened events.
func (p *EventPublisher) PublishSessionOpened(ctx context.Context, event domain.SessionOpenedEvent) error {
	payload := struct {
		SessionID    string    `json:"session_id"`
		UserID       string    `json:"user_id"`
		SpaceID      string    `json:"space_id"`
		FloorID      *string   `json:"floor_id,omitempty"`
		EntryTime    time.Time `json:"entry_time"`
		SupersededID *string   `json:"superseded_session_id,omitempty"`
	}{
		SessionID:    event.SessionID,
		UserID:       event.UserID,
		SpaceID:      event.SpaceID,
		FloorID:      event.FloorID,
		EntryTime:    event.EntryTime.UTC(),
		SupersededID: event.SupersededID,
	}

	return p.publish(ctx, event.EventID, "presence.session.opened", event.UserID, event.EntryTime, payload)
}

// PublishSessionClosed publishes presence.session.closed events.
func (p *EventPublisher) PublishSessionClosed(ctx context.Context, event domain.SessionClosedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id"`
		UserID    string    `json:"user_id"`
		SpaceID   string    `json:"space_id"`
		ExitTime  time.Time `json:"exit_time"`
		Reason    string    `json:"reason"`
	}{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		SpaceID:   event.SpaceID,
		ExitTime:  event.ExitTime.UTC(),
		Reason:    event.Reason,
	}

	return p.publish(ctx, event.EventID, "presence.session.closed", event.UserID, event.ExitTime, payload)
}

// PublishGrantRevoked publishes presence.grant.revoked events.
func (p *EventPublisher) PublishGrantRevoked(ctx context.Context, event domain.GrantRevokedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		SpaceID   string    `json:"space_id"`
		RevokedBy string    `json:"revoked_by"`
		RevokedAt time.Time `json:"revoked_at"`
		Reason    string    `json:"reason"`
	}{
		UserID:    event.UserID,
		SpaceID:   event.SpaceID,
		RevokedBy: event.RevokedBy,
		RevokedAt: event.RevokedAt.UTC(),
		Reason:    event.Reason,
	}

	return p.publish(ctx, event.EventID, "presence.grant.revoked", event.UserID, event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
