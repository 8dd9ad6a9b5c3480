package domain

import "time"

// Session close reasons carried on SessionClosedEvent.
const (
	CloseReasonClient = "client_close"
	CloseReasonIdle   = "idle_timeout"
)

// SessionOpenedEvent represents the payload for presence.session.opened messages.
type SessionOpenedEvent struct {
	EventID      string
	SessionID    string
	UserID       string
	SpaceID      string
	FloorID      *string
	EntryTime    time.Time
	SupersededID *string
}

// SessionClosedEvent represents the payload for presence.session.closed messages.
type SessionClosedEvent struct {
	EventID   string
	SessionID string
	UserID    string
	SpaceID   string
	ExitTime  time.Time
	Reason    string
}

// GrantRevokedEvent represents the payload for presence.grant.revoked messages.
type GrantRevokedEvent struct {
	EventID   string
	UserID    string
	SpaceID   string
	RevokedBy string
	RevokedAt time.Time
	Reason    string
}
