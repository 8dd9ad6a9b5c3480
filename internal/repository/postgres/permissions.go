package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/port"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/repository"
)

const permissionColumnList = "user_id, space_id, can_enter, can_manage, created_by, revoked, revoked_at, expires_at, created_at, updated_at"

// PermissionRepository implements port.PermissionRepository backed by
// PostgreSQL. The (user_id, space_id) primary key is what makes grants an
// upsert rather than an append.
type PermissionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPermissionRepository constructs a repository over any pgExecutor.
func NewPermissionRepository(exec pgExecutor) *PermissionRepository {
	return &PermissionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const upsertGrantSQL = `
        INSERT INTO presence.permissions
               (user_id, space_id, can_enter, can_manage, created_by, revoked, revoked_at, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, false, NULL, $6, $7, $7)
   ON CONFLICT (user_id, space_id) DO UPDATE
           SET can_enter = EXCLUDED.can_enter,
               can_manage = EXCLUDED.can_manage,
               created_by = EXCLUDED.created_by,
               revoked = false,
               revoked_at = NULL,
               expires_at = EXCLUDED.expires_at,
               updated_at = EXCLUDED.updated_at
     RETURNING ` + permissionColumnList

// Upsert creates or replaces the grant for the pair. Re-granting clears any
// previous revocation.
func (r *PermissionRepository) Upsert(ctx context.Context, grant domain.Permission) (*domain.Permission, error) {
	now := time.Now().UTC()
	row := r.exec.QueryRow(ctx, upsertGrantSQL,
		grant.UserID,
		grant.SpaceID,
		grant.CanEnter,
		grant.CanManage,
		optionalString(grant.CreatedBy),
		optionalTime(grant.ExpiresAt),
		now,
	)
	stored, err := scanPermission(row)
	if err != nil {
		return nil, fmt.Errorf("upsert grant: %w", err)
	}
	return stored, nil
}

// Get fetches the grant for the pair.
func (r *PermissionRepository) Get(ctx context.Context, userID, spaceID string) (*domain.Permission, error) {
	stmt, args, err := r.builder.
		Select("user_id", "space_id", "can_enter", "can_manage", "created_by", "revoked", "revoked_at", "expires_at", "created_at", "updated_at").
		From("presence.permissions").
		Where(squirrel.Eq{"user_id": userID, "space_id": spaceID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select grant sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	grant, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get grant: %w", err)
	}
	return grant, nil
}

const revokeGrantSQL = `
        UPDATE presence.permissions
           SET revoked = true,
               revoked_at = COALESCE(revoked_at, $3),
               updated_at = $3
         WHERE user_id = $1 AND space_id = $2
     RETURNING ` + permissionColumnList

// Revoke soft-revokes the grant. Revoking an already-revoked grant keeps the
// original revocation instant.
func (r *PermissionRepository) Revoke(ctx context.Context, userID, spaceID string, at time.Time) (*domain.Permission, error) {
	row := r.exec.QueryRow(ctx, revokeGrantSQL, userID, spaceID, at.UTC())
	grant, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("revoke grant: %w", err)
	}
	return grant, nil
}

// List retrieves grants matching the filter, newest first.
func (r *PermissionRepository) List(ctx context.Context, filter port.GrantFilter) ([]domain.Permission, error) {
	builder := r.builder.
		Select("user_id", "space_id", "can_enter", "can_manage", "created_by", "revoked", "revoked_at", "expires_at", "created_at", "updated_at").
		From("presence.permissions").
		OrderBy("created_at DESC")

	if filter.UserID != "" {
		builder = builder.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.SpaceID != "" {
		builder = builder.Where(squirrel.Eq{"space_id": filter.SpaceID})
	}
	if filter.ActiveOnly {
		builder = builder.Where(squirrel.Eq{"revoked": false})
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list grants sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	grants := make([]domain.Permission, 0)
	for rows.Next() {
		grant, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, *grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}

const activeSpacesSQL = `
        SELECT space_id
          FROM presence.permissions
         WHERE user_id = $1
           AND can_enter
           AND NOT revoked
           AND (expires_at IS NULL OR expires_at > $2)
      ORDER BY space_id
`

// ListActiveSpaces returns the space ids the user may currently enter.
func (r *PermissionRepository) ListActiveSpaces(ctx context.Context, userID string, at time.Time) ([]string, error) {
	rows, err := r.exec.Query(ctx, activeSpacesSQL, userID, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("query active spaces: %w", err)
	}
	defer rows.Close()

	spaces := make([]string, 0)
	for rows.Next() {
		var spaceID string
		if err := rows.Scan(&spaceID); err != nil {
			return nil, fmt.Errorf("scan space id: %w", err)
		}
		spaces = append(spaces, spaceID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active spaces: %w", err)
	}
	return spaces, nil
}

const revokeExpiredSQL = `
        UPDATE presence.permissions
           SET revoked = true, revoked_at = $1, updated_at = $1
         WHERE NOT revoked
           AND expires_at IS NOT NULL
           AND expires_at <= $1
     RETURNING ` + permissionColumnList

// RevokeExpired flips every lapsed grant in one conditional write. The
// predicate makes re-runs a no-op.
func (r *PermissionRepository) RevokeExpired(ctx context.Context, now time.Time) ([]domain.Permission, error) {
	rows, err := r.exec.Query(ctx, revokeExpiredSQL, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("revoke expired grants: %w", err)
	}
	defer rows.Close()

	revoked := make([]domain.Permission, 0)
	for rows.Next() {
		grant, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revoked grant: %w", err)
		}
		revoked = append(revoked, *grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revoked grants: %w", err)
	}
	return revoked, nil
}

func scanPermission(row pgx.Row) (*domain.Permission, error) {
	var (
		grant     domain.Permission
		createdBy sql.NullString
		revokedAt sql.NullTime
		expiresAt sql.NullTime
	)

	if err := row.Scan(
		&grant.UserID,
		&grant.SpaceID,
		&grant.CanEnter,
		&grant.CanManage,
		&createdBy,
		&grant.Revoked,
		&revokedAt,
		&expiresAt,
		&grant.CreatedAt,
		&grant.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	grant.CreatedBy = nullableStringPtr(createdBy)
	grant.RevokedAt = nullableTimePtr(revokedAt)
	grant.ExpiresAt = nullableTimePtr(expiresAt)

	return &grant, nil
}

var _ port.PermissionRepository = (*PermissionRepository)(nil)
