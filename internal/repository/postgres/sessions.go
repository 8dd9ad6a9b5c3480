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

var sessionColumns = []string{
	"id",
	"user_id",
	"space_id",
	"floor_id",
	"entry_time",
	"exit_time",
	"last_seen",
	"access_grant",
	"notes",
	"created_at",
	"updated_at",
}

const sessionColumnList = "id, user_id, space_id, floor_id, entry_time, exit_time, last_seen, access_grant, notes, created_at, updated_at"

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
// Conditional transitions are single UPDATE statements predicated on
// "exit_time IS NULL"; a partial unique index over open (user_id, space_id)
// pairs enforces the at-most-one-open invariant at the storage layer.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository over any pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const closeOpenSQL = `
        UPDATE presence.access_sessions
           SET exit_time = $3, updated_at = $4
         WHERE user_id = $1 AND space_id = $2 AND exit_time IS NULL
     RETURNING ` + sessionColumnList

// OpenSupersede closes any open session for the pair and inserts the new one
// inside a single transaction, so a concurrent Open or Close cannot observe
// zero or two open sessions for the pair.
func (r *SessionRepository) OpenSupersede(ctx context.Context, session domain.AccessSession, closeAt time.Time) (*string, error) {
	beginner, ok := r.exec.(txBeginner)
	if !ok {
		return r.openSupersedeSequential(ctx, r.exec, session, closeAt)
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin open session tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	superseded, err := r.openSupersedeSequential(ctx, tx, session, closeAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit open session tx: %w", err)
	}
	return superseded, nil
}

func (r *SessionRepository) openSupersedeSequential(ctx context.Context, exec pgExecutor, session domain.AccessSession, closeAt time.Time) (*string, error) {
	var supersededID *string
	row := exec.QueryRow(ctx,
		`UPDATE presence.access_sessions
            SET exit_time = $3, updated_at = $3
          WHERE user_id = $1 AND space_id = $2 AND exit_time IS NULL
      RETURNING id`,
		session.UserID, session.SpaceID, closeAt.UTC(),
	)
	var closedID string
	if err := row.Scan(&closedID); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("close superseded session: %w", err)
		}
	} else {
		supersededID = &closedID
	}

	stmt, args, err := r.builder.Insert("presence.access_sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.SpaceID,
			optionalString(session.FloorID),
			session.EntryTime.UTC(),
			optionalTime(session.ExitTime),
			session.LastSeen.UTC(),
			session.AccessGrant,
			optionalString(session.Notes),
			session.CreatedAt.UTC(),
			session.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return supersededID, nil
}

// CloseOpen finalises the open session for the pair in one conditional write.
// Concurrent closes race on the predicate: exactly one wins, the other sees
// repository.ErrNotFound.
func (r *SessionRepository) CloseOpen(ctx context.Context, userID, spaceID string, exitTime time.Time) (*domain.AccessSession, error) {
	now := time.Now().UTC()
	row := r.exec.QueryRow(ctx, closeOpenSQL, userID, spaceID, exitTime.UTC(), now)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("close open session: %w", err)
	}
	return session, nil
}

const touchOpenSQL = `
        UPDATE presence.access_sessions
           SET last_seen = $3, updated_at = $4
         WHERE user_id = $1 AND space_id = $2 AND exit_time IS NULL
     RETURNING ` + sessionColumnList

// TouchOpen records a heartbeat on the open session for the pair. The same
// predicate that guards CloseOpen prevents a heartbeat from resurrecting a
// session a concurrent close just finalised.
func (r *SessionRepository) TouchOpen(ctx context.Context, userID, spaceID string, seenAt time.Time) (*domain.AccessSession, error) {
	now := time.Now().UTC()
	row := r.exec.QueryRow(ctx, touchOpenSQL, userID, spaceID, seenAt.UTC(), now)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("touch open session: %w", err)
	}
	return session, nil
}

const closeStaleSQL = `
        UPDATE presence.access_sessions
           SET exit_time = last_seen + interval '1 second', updated_at = $2
         WHERE id IN (
               SELECT id FROM presence.access_sessions
                WHERE exit_time IS NULL AND last_seen < $1
                ORDER BY last_seen
                LIMIT $3
                FOR UPDATE SKIP LOCKED)
     RETURNING ` + sessionColumnList

// CloseStale force-closes abandoned sessions, stamping exit_time one second
// after last contact so reaped closes are distinguishable from client closes.
// SKIP LOCKED keeps concurrent sweeps from stalling on each other.
func (r *SessionRepository) CloseStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.AccessSession, error) {
	if limit <= 0 {
		limit = 500
	}
	now := time.Now().UTC()
	rows, err := r.exec.Query(ctx, closeStaleSQL, cutoff.UTC(), now, limit)
	if err != nil {
		return nil, fmt.Errorf("close stale sessions: %w", err)
	}
	defer rows.Close()

	closed := make([]domain.AccessSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale session: %w", err)
		}
		closed = append(closed, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale sessions: %w", err)
	}
	return closed, nil
}

// GetByID fetches a session by its identifier.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.AccessSession, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("presence.access_sessions").
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// List retrieves sessions matching the filter, newest entry first.
func (r *SessionRepository) List(ctx context.Context, filter port.SessionFilter) ([]domain.AccessSession, error) {
	builder := r.builder.
		Select(sessionColumns...).
		From("presence.access_sessions").
		OrderBy("entry_time DESC")

	if filter.UserID != "" {
		builder = builder.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.SpaceID != "" {
		builder = builder.Where(squirrel.Eq{"space_id": filter.SpaceID})
	}
	if filter.FloorID != "" {
		builder = builder.Where(squirrel.Eq{"floor_id": filter.FloorID})
	}
	if filter.From != nil {
		builder = builder.Where(squirrel.GtOrEq{"entry_time": filter.From.UTC()})
	}
	if filter.To != nil {
		builder = builder.Where(squirrel.LtOrEq{"entry_time": filter.To.UTC()})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	builder = builder.Limit(uint64(limit))

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.AccessSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

const updateNotesSQL = `
        UPDATE presence.access_sessions
           SET notes = $2, updated_at = $3
         WHERE id = $1
     RETURNING ` + sessionColumnList

// UpdateNotes replaces the free-form annotation on a session.
func (r *SessionRepository) UpdateNotes(ctx context.Context, sessionID, notes string) (*domain.AccessSession, error) {
	now := time.Now().UTC()
	row := r.exec.QueryRow(ctx, updateNotesSQL, sessionID, notes, now)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update session notes: %w", err)
	}
	return session, nil
}

func scanSession(row pgx.Row) (*domain.AccessSession, error) {
	var (
		session  domain.AccessSession
		floorID  sql.NullString
		exitTime sql.NullTime
		notes    sql.NullString
	)

	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.SpaceID,
		&floorID,
		&session.EntryTime,
		&exitTime,
		&session.LastSeen,
		&session.AccessGrant,
		&notes,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	session.FloorID = nullableStringPtr(floorID)
	session.ExitTime = nullableTimePtr(exitTime)
	session.Notes = nullableStringPtr(notes)

	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
