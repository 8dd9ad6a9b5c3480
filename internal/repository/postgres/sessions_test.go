package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/port"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/repository"
)

func sessionRows(sessions ...domain.AccessSession) *pgxmock.Rows {
	rows := pgxmock.NewRows(sessionColumns)
	for _, s := range sessions {
		rows.AddRow(
			s.ID, s.UserID, s.SpaceID, rowValue(s.FloorID), s.EntryTime, rowValue(s.ExitTime),
			s.LastSeen, s.AccessGrant, rowValue(s.Notes), s.CreatedAt, s.UpdatedAt,
		)
	}
	return rows
}

func rowValue[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestSessionRepository_CloseOpen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	exit := now.Add(-time.Minute)
	closed := domain.AccessSession{
		ID:          "session-1",
		UserID:      "user-1",
		SpaceID:     "space-1",
		EntryTime:   now.Add(-time.Hour),
		ExitTime:    &exit,
		LastSeen:    exit,
		AccessGrant: true,
		CreatedAt:   now.Add(-time.Hour),
		UpdatedAt:   now,
	}

	mock.ExpectQuery(`UPDATE presence\.access_sessions`).
		WithArgs("user-1", "space-1", exit, pgxmock.AnyArg()).
		WillReturnRows(sessionRows(closed))

	session, err := repo.CloseOpen(context.Background(), "user-1", "space-1", exit)
	if err != nil {
		t.Fatalf("CloseOpen returned error: %v", err)
	}
	if session.ExitTime == nil || !session.ExitTime.Equal(exit) {
		t.Fatalf("exit time = %v, want %v", session.ExitTime, exit)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_CloseOpenNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	mock.ExpectQuery(`UPDATE presence\.access_sessions`).
		WithArgs("user-1", "space-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.CloseOpen(context.Background(), "user-1", "space-1", time.Now().UTC())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want repository.ErrNotFound", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_TouchOpen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	touched := domain.AccessSession{
		ID:          "session-1",
		UserID:      "user-1",
		SpaceID:     "space-1",
		EntryTime:   now.Add(-time.Hour),
		LastSeen:    now,
		AccessGrant: true,
		CreatedAt:   now.Add(-time.Hour),
		UpdatedAt:   now,
	}

	mock.ExpectQuery(`UPDATE presence\.access_sessions`).
		WithArgs("user-1", "space-1", now, pgxmock.AnyArg()).
		WillReturnRows(sessionRows(touched))

	session, err := repo.TouchOpen(context.Background(), "user-1", "space-1", now)
	if err != nil {
		t.Fatalf("TouchOpen returned error: %v", err)
	}
	if !session.LastSeen.Equal(now) {
		t.Fatalf("last seen = %v, want %v", session.LastSeen, now)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_OpenSupersede(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	session := domain.AccessSession{
		ID:          "session-2",
		UserID:      "user-1",
		SpaceID:     "space-1",
		EntryTime:   now,
		LastSeen:    now,
		AccessGrant: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE presence\.access_sessions`).
		WithArgs("user-1", "space-1", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("session-1"))
	mock.ExpectExec(`INSERT INTO presence\.access_sessions`).
		WithArgs(
			session.ID, session.UserID, session.SpaceID, nil, session.EntryTime,
			nil, session.LastSeen, session.AccessGrant, nil, session.CreatedAt, session.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	superseded, err := repo.OpenSupersede(context.Background(), session, now)
	if err != nil {
		t.Fatalf("OpenSupersede returned error: %v", err)
	}
	if superseded == nil || *superseded != "session-1" {
		t.Fatalf("superseded = %v, want session-1", superseded)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_OpenSupersedeNothingOpen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	session := domain.AccessSession{
		ID:          "session-1",
		UserID:      "user-1",
		SpaceID:     "space-1",
		EntryTime:   now,
		LastSeen:    now,
		AccessGrant: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE presence\.access_sessions`).
		WithArgs("user-1", "space-1", now).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO presence\.access_sessions`).
		WithArgs(
			session.ID, session.UserID, session.SpaceID, nil, session.EntryTime,
			nil, session.LastSeen, session.AccessGrant, nil, session.CreatedAt, session.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	superseded, err := repo.OpenSupersede(context.Background(), session, now)
	if err != nil {
		t.Fatalf("OpenSupersede returned error: %v", err)
	}
	if superseded != nil {
		t.Fatalf("superseded = %v, want nil", *superseded)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_CloseStale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	cutoff := now.Add(-10 * time.Minute)
	lastSeen := now.Add(-time.Hour)
	exit := lastSeen.Add(time.Second)

	stale := domain.AccessSession{
		ID:          "session-1",
		UserID:      "user-1",
		SpaceID:     "space-1",
		EntryTime:   now.Add(-2 * time.Hour),
		ExitTime:    &exit,
		LastSeen:    lastSeen,
		AccessGrant: true,
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now,
	}

	mock.ExpectQuery(`UPDATE presence\.access_sessions`).
		WithArgs(cutoff, pgxmock.AnyArg(), 10).
		WillReturnRows(sessionRows(stale))

	closed, err := repo.CloseStale(context.Background(), cutoff, 10)
	if err != nil {
		t.Fatalf("CloseStale returned error: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(closed))
	}
	if closed[0].ExitTime == nil || !closed[0].ExitTime.Equal(exit) {
		t.Fatalf("exit time = %v, want %v", closed[0].ExitTime, exit)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_UpdateNotes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	notes := "visitor escort required"
	updated := domain.AccessSession{
		ID:          "session-1",
		UserID:      "user-1",
		SpaceID:     "space-1",
		EntryTime:   now.Add(-time.Hour),
		LastSeen:    now,
		AccessGrant: true,
		Notes:       &notes,
		CreatedAt:   now.Add(-time.Hour),
		UpdatedAt:   now,
	}

	mock.ExpectQuery(`UPDATE presence\.access_sessions`).
		WithArgs("session-1", notes, pgxmock.AnyArg()).
		WillReturnRows(sessionRows(updated))

	session, err := repo.UpdateNotes(context.Background(), "session-1", notes)
	if err != nil {
		t.Fatalf("UpdateNotes returned error: %v", err)
	}
	if session.Notes == nil || *session.Notes != notes {
		t.Fatalf("notes = %v, want %s", session.Notes, notes)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_ListOrdersNewestFirst(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	newer := domain.AccessSession{
		ID:        "session-2",
		UserID:    "user-1",
		SpaceID:   "space-2",
		EntryTime: now.Add(-time.Minute),
		LastSeen:  now,
	}
	older := domain.AccessSession{
		ID:        "session-1",
		UserID:    "user-1",
		SpaceID:   "space-1",
		EntryTime: now.Add(-time.Hour),
		LastSeen:  now,
	}

	mock.ExpectQuery(`SELECT .+ FROM presence\.access_sessions WHERE user_id = \$1 ORDER BY entry_time DESC LIMIT 100`).
		WithArgs("user-1").
		WillReturnRows(sessionRows(newer, older))

	sessions, err := repo.List(context.Background(), port.SessionFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[0].ID != "session-2" || sessions[1].ID != "session-1" {
		t.Fatalf("order = [%s %s], want newest entry first", sessions[0].ID, sessions[1].ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
