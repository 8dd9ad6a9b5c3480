package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/port"
	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/repository"
)

// SpaceRepository implements port.SpaceDirectory over the space-management
// collaborator's tables. Only reads: the core never mutates spaces.
type SpaceRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSpaceRepository constructs a repository over any pgExecutor.
func NewSpaceRepository(exec pgExecutor) *SpaceRepository {
	return &SpaceRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetSpace resolves a space id to its record, including the floor reference
// denormalised onto new sessions.
func (r *SpaceRepository) GetSpace(ctx context.Context, spaceID string) (*domain.Space, error) {
	stmt, args, err := r.builder.
		Select("id", "space_name", "space_type", "floor_id").
		From("presence.spaces").
		Where(squirrel.Eq{"id": spaceID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select space sql: %w", err)
	}

	var (
		space     domain.Space
		spaceType sql.NullString
		floorID   sql.NullString
	)
	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(&space.ID, &space.Name, &spaceType, &floorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get space: %w", err)
	}

	space.SpaceType = nullableStringPtr(spaceType)
	space.FloorID = nullableStringPtr(floorID)

	return &space, nil
}

var _ port.SpaceDirectory = (*SpaceRepository)(nil)
