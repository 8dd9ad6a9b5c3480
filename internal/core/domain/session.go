package domain

import "time"

// AccessSession records one continuous presence interval of a user inside a
// space. A session with no ExitTime is open; everything else about it is an
// audit trail of how the interval began and ended.
type AccessSession struct {
	ID      string
	UserID  string
	SpaceID string
	// FloorID is copied from the space at creation time for cheap
	// aggregation. It is not re-synced if the space later moves floors.
	FloorID     *string
	EntryTime   time.Time
	ExitTime    *time.Time
	LastSeen    time.Time
	AccessGrant bool
	Notes       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOpen reports whether the session has not yet recorded an exit.
func (s AccessSession) IsOpen() bool {
	return s.ExitTime == nil
}

// Close stamps the exit instant. Returns false when the session was already
// closed, which callers treat as an idempotent no-op.
func (s *AccessSession) Close(at time.Time) bool {
	if s.ExitTime != nil {
		return false
	}
	exit := at.UTC()
	s.ExitTime = &exit
	return true
}

// Touch records a heartbeat. Timestamps are stored as supplied: out-of-order
// heartbeats are accepted and simply overwrite LastSeen.
func (s *AccessSession) Touch(at time.Time) {
	s.LastSeen = at.UTC()
}
