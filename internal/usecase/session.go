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

// SessionService is the only component that creates or mutates access
// sessions on behalf of live traffic. It drives the two-state machine per
// (user, space) pair: Open (record with no exit) and Closed (no record, or
// exit recorded). Correctness under concurrent requests comes entirely from
// the repository's conditional writes; the service holds no locks and no
// cross-request state.
type SessionService struct {
	sessions port.SessionRepository
	spaces   port.SpaceDirectory
	gate     *PermissionGate
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions port.SessionRepository, spaces port.SpaceDirectory, gate *PermissionGate, events port.EventPublisher, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &SessionService{
		sessions: sessions,
		spaces:   spaces,
		gate:     gate,
		events:   events,
		logger:   logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) *SessionService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// OpenSessionInput captures the payload for opening a session.
type OpenSessionInput struct {
	Actor        domain.Actor
	SpaceID      string
	TargetUserID string
	EntryTime    *time.Time
	Notes        *string
}

// CloseSessionInput captures the payload for closing a session.
type CloseSessionInput struct {
	Actor        domain.Actor
	SpaceID      string
	TargetUserID string
	ExitTime     *time.Time
}

// HeartbeatInput captures the payload for a liveness signal.
type HeartbeatInput struct {
	Actor        domain.Actor
	SpaceID      string
	TargetUserID string
	Timestamp    *time.Time
}

// authDecision is the single authorization result consumed by all three
// lifecycle operations.
type authDecision struct {
	Allowed      bool
	TargetUserID string
}

// authorize resolves who the operation acts on and whether it may proceed.
// Privileged roles bypass the gate and may target any user; everyone else is
// forced onto their own identity and must hold an active grant at the
// supplied instant.
func (s *SessionService) authorize(ctx context.Context, actor domain.Actor, targetUserID, spaceID string, at time.Time) (authDecision, error) {
	target := strings.TrimSpace(targetUserID)

	if actor.Role.IsPrivileged() {
		if target == "" {
			target = actor.ID
		}
		return authDecision{Allowed: true, TargetUserID: target}, nil
	}

	if target != "" && target != actor.ID {
		return authDecision{}, nil
	}
	target = actor.ID

	allowed, err := s.gate.IsActiveGrant(ctx, target, spaceID, at)
	if err != nil {
		return authDecision{}, fmt.Errorf("evaluate grant: %w", err)
	}
	if !allowed {
		return authDecision{}, nil
	}

	return authDecision{Allowed: true, TargetUserID: target}, nil
}

// Open starts a presence session. Any session still open for the pair is
// superseded: closed at the authorization instant inside the same store
// transaction that inserts the new record. Clients that vanished without
// closing therefore re-open cleanly instead of being rejected.
func (s *SessionService) Open(ctx context.Context, input OpenSessionInput) (*domain.AccessSession, error) {
	if strings.TrimSpace(input.SpaceID) == "" {
		return nil, fmt.Errorf("%w: space id is required", ErrInvalidInput)
	}

	now := s.now()

	decision, err := s.authorize(ctx, input.Actor, input.TargetUserID, input.SpaceID, now)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrNotAuthorized
	}

	space, err := s.spaces.GetSpace(ctx, input.SpaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSpaceNotFound
		}
		return nil, fmt.Errorf("resolve space: %w", err)
	}

	entry := now
	if input.EntryTime != nil {
		entry = input.EntryTime.UTC()
	}

	session := domain.AccessSession{
		ID:          uuid.NewString(),
		UserID:      decision.TargetUserID,
		SpaceID:     space.ID,
		FloorID:     space.FloorID,
		EntryTime:   entry,
		LastSeen:    now,
		AccessGrant: true,
		Notes:       input.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	supersededID, err := s.sessions.OpenSupersede(ctx, session, now)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	if supersededID != nil {
		s.logger.Info("superseded stale open session",
			zap.String("session_id", *supersededID),
			zap.String("user_id", session.UserID),
			zap.String("space_id", session.SpaceID),
		)
	}

	s.publishOpened(ctx, session, supersededID)

	return &session, nil
}

// Close finalises the open session for the pair with a single conditional
// write. A missing open session is reported as ErrSessionNotFound, which the
// caller should read as "already closed".
func (s *SessionService) Close(ctx context.Context, input CloseSessionInput) (*domain.AccessSession, error) {
	if strings.TrimSpace(input.SpaceID) == "" {
		return nil, fmt.Errorf("%w: space id is required", ErrInvalidInput)
	}

	now := s.now()

	decision, err := s.authorize(ctx, input.Actor, input.TargetUserID, input.SpaceID, now)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrNotAuthorized
	}

	exit := now
	if input.ExitTime != nil {
		exit = input.ExitTime.UTC()
	}

	session, err := s.sessions.CloseOpen(ctx, decision.TargetUserID, input.SpaceID, exit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("close session: %w", err)
	}

	s.publishClosed(ctx, *session, domain.CloseReasonClient)

	return session, nil
}

// Heartbeat advances last-seen on the open session for the pair. A missing
// open session tells the caller to stop heartbeating and, if appropriate,
// re-open. Timestamps are not validated for monotonicity; out-of-order
// signals are applied as supplied.
func (s *SessionService) Heartbeat(ctx context.Context, input HeartbeatInput) (time.Time, error) {
	if strings.TrimSpace(input.SpaceID) == "" {
		return time.Time{}, fmt.Errorf("%w: space id is required", ErrInvalidInput)
	}

	now := s.now()

	decision, err := s.authorize(ctx, input.Actor, input.TargetUserID, input.SpaceID, now)
	if err != nil {
		return time.Time{}, err
	}
	if !decision.Allowed {
		return time.Time{}, ErrNotAuthorized
	}

	seen := now
	if input.Timestamp != nil {
		seen = input.Timestamp.UTC()
	}

	session, err := s.sessions.TouchOpen(ctx, decision.TargetUserID, input.SpaceID, seen)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, ErrSessionNotFound
		}
		return time.Time{}, fmt.Errorf("heartbeat session: %w", err)
	}

	return session.LastSeen, nil
}

// List returns sessions matching the filter, newest entry first.
// Non-privileged callers are always scoped to their own identity regardless
// of the requested filter.
func (s *SessionService) List(ctx context.Context, actor domain.Actor, filter port.SessionFilter) ([]domain.AccessSession, error) {
	if !actor.Role.IsPrivileged() {
		filter.UserID = actor.ID
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}

	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// UpdateNotes replaces the annotation on a session. Allowed for the owning
// user or a privileged role.
func (s *SessionService) UpdateNotes(ctx context.Context, actor domain.Actor, sessionID, notes string) (*domain.AccessSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.UserID != actor.ID && !actor.Role.IsPrivileged() {
		return nil, ErrNotAuthorized
	}

	updated, err := s.sessions.UpdateNotes(ctx, sessionID, notes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("update notes: %w", err)
	}
	return updated, nil
}

func (s *SessionService) publishOpened(ctx context.Context, session domain.AccessSession, supersededID *string) {
	if s.events == nil {
		return
	}
	event := domain.SessionOpenedEvent{
		EventID:      uuid.NewString(),
		SessionID:    session.ID,
		UserID:       session.UserID,
		SpaceID:      session.SpaceID,
		FloorID:      session.FloorID,
		EntryTime:    session.EntryTime,
		SupersededID: supersededID,
	}
	if err := s.events.PublishSessionOpened(ctx, event); err != nil {
		s.logger.Warn("publish session opened event failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
}

func (s *SessionService) publishClosed(ctx context.Context, session domain.AccessSession, reason string) {
	if s.events == nil || session.ExitTime == nil {
		return
	}
	event := domain.SessionClosedEvent{
		EventID:   uuid.NewString(),
		SessionID: session.ID,
		UserID:    session.UserID,
		SpaceID:   session.SpaceID,
		ExitTime:  *session.ExitTime,
		Reason:    reason,
	}
	if err := s.events.PublishSessionClosed(ctx, event); err != nil {
		s.logger.Warn("publish session closed event failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
}
