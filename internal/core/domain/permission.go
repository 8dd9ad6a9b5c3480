package domain

import "time"

// Permission is a grant of access for a single (user, space) pair. Grants are
// upserted, never duplicated: the pair identifies the record.
type Permission struct {
	UserID    string
	SpaceID   string
	CanEnter  bool
	CanManage bool
	CreatedBy *string
	Revoked   bool
	RevokedAt *time.Time
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the grant is neither revoked nor expired at the
// supplied instant. An absent ExpiresAt means the grant never expires.
func (p Permission) IsActive(at time.Time) bool {
	if p.Revoked {
		return false
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(at) {
		return false
	}
	return true
}

// AllowsEntry combines the active predicate with the entry capability. This is
// the exact question the session lifecycle asks of a grant.
func (p Permission) AllowsEntry(at time.Time) bool {
	return p.CanEnter && p.IsActive(at)
}

// Revoke soft-revokes the grant. Returns false when it was already revoked.
func (p *Permission) Revoke(at time.Time) bool {
	if p.Revoked {
		return false
	}
	revokedAt := at.UTC()
	p.Revoked = true
	p.RevokedAt = &revokedAt
	return true
}
