package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool the repositories use. It is
// satisfied by pgxmock.PgxPoolIface in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ProfileRepositoryInterface defines operations for learned profile storage
type ProfileRepositoryInterface interface {
	Save(ctx context.Context, p *domain.GeometricProfile, samples []domain.GeometricRatios) error
	Load(ctx context.Context) (*domain.GeometricProfile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GeometricProfile, error)
	List(ctx context.Context, limit int) ([]domain.GeometricProfile, error)
	Samples(ctx context.Context, profileID uuid.UUID) ([]domain.GeometricRatios, error)
}
