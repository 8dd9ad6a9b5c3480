package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/repository"
)

var permissionColumns = []string{
	"user_id", "space_id", "can_enter", "can_manage", "created_by",
	"revoked", "revoked_at", "expires_at", "created_at", "updated_at",
}

func permissionRows(grants ...domain.Permission) *pgxmock.Rows {
	rows := pgxmock.NewRows(permissionColumns)
	for _, g := range grants {
		rows.AddRow(
			g.UserID, g.SpaceID, g.CanEnter, g.CanManage, rowValue(g.CreatedBy),
			g.Revoked, rowValue(g.RevokedAt), rowValue(g.ExpiresAt), g.CreatedAt, g.UpdatedAt,
		)
	}
	return rows
}

func TestPermissionRepository_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPermissionRepository(mock)

	now := time.Now().UTC()
	issuer := "mgr-1"
	grant := domain.Permission{
		UserID:    "user-1",
		SpaceID:   "space-1",
		CanEnter:  true,
		CanManage: false,
		CreatedBy: &issuer,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectQuery(`INSERT INTO presence\.permissions`).
		WithArgs("user-1", "space-1", true, false, "mgr-1", nil, pgxmock.AnyArg()).
		WillReturnRows(permissionRows(grant))

	stored, err := repo.Upsert(context.Background(), grant)
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if stored.CreatedBy == nil || *stored.CreatedBy != "mgr-1" {
		t.Fatalf("created_by = %v, want mgr-1", stored.CreatedBy)
	}
	if stored.Revoked {
		t.Fatal("expected upserted grant to be unrevoked")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_GetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPermissionRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM presence\.permissions`).
		WithArgs("space-1", "user-1").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.Get(context.Background(), "user-1", "space-1")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want repository.ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_Revoke(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPermissionRepository(mock)

	now := time.Now().UTC()
	revoked := domain.Permission{
		UserID:    "user-1",
		SpaceID:   "space-1",
		CanEnter:  true,
		Revoked:   true,
		RevokedAt: &now,
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now,
	}

	mock.ExpectQuery(`UPDATE presence\.permissions`).
		WithArgs("user-1", "space-1", now).
		WillReturnRows(permissionRows(revoked))

	grant, err := repo.Revoke(context.Background(), "user-1", "space-1", now)
	if err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if !grant.Revoked || grant.RevokedAt == nil || !grant.RevokedAt.Equal(now) {
		t.Fatalf("grant = %+v, want revoked at %v", grant, now)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_RevokeNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPermissionRepository(mock)

	mock.ExpectQuery(`UPDATE presence\.permissions`).
		WithArgs("user-1", "space-1", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.Revoke(context.Background(), "user-1", "space-1", time.Now().UTC())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want repository.ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_RevokeExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPermissionRepository(mock)

	now := time.Now().UTC()
	lapsed := now.Add(-time.Minute)
	first := domain.Permission{
		UserID: "user-1", SpaceID: "space-1", CanEnter: true,
		Revoked: true, RevokedAt: &now, ExpiresAt: &lapsed,
		CreatedAt: now.Add(-time.Hour), UpdatedAt: now,
	}
	second := domain.Permission{
		UserID: "user-2", SpaceID: "space-2", CanEnter: true,
		Revoked: true, RevokedAt: &now, ExpiresAt: &lapsed,
		CreatedAt: now.Add(-time.Hour), UpdatedAt: now,
	}

	mock.ExpectQuery(`UPDATE presence\.permissions`).
		WithArgs(now).
		WillReturnRows(permissionRows(first, second))

	revoked, err := repo.RevokeExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("RevokeExpired returned error: %v", err)
	}
	if len(revoked) != 2 {
		t.Fatalf("revoked = %d, want 2", len(revoked))
	}
	for _, g := range revoked {
		if !g.Revoked {
			t.Fatalf("grant %s/%s not revoked", g.UserID, g.SpaceID)
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPermissionRepository_ListActiveSpaces(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPermissionRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"space_id"}).
		AddRow("space-1").
		AddRow("space-3")

	mock.ExpectQuery(`SELECT space_id`).
		WithArgs("user-1", now).
		WillReturnRows(rows)

	spaces, err := repo.ListActiveSpaces(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("ListActiveSpaces returned error: %v", err)
	}
	if len(spaces) != 2 || spaces[0] != "space-1" || spaces[1] != "space-3" {
		t.Fatalf("spaces = %v, want [space-1 space-3]", spaces)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
