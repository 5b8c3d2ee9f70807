package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

const profileColumns = `id, head_height_mean, center_x_mean, head_top_mean,
		head_height_std, center_x_std, head_top_std, sample_size, created_at`

// ProfileRepository stores learned profiles in Postgres. Each profile keeps
// the ratio vectors it was computed from so it can be recomputed later.
type ProfileRepository struct {
	pool PgxPool
}

var _ ProfileRepositoryInterface = (*ProfileRepository)(nil)

func NewProfileRepository(pool PgxPool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) Save(ctx context.Context, p *domain.GeometricProfile, samples []domain.GeometricRatios) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save profile: %w", err)
	}

	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, query,
		p.ID,
		p.Mean.HeadHeight,
		p.Mean.CenterX,
		p.Mean.HeadTop,
		p.StdDev.HeadHeight,
		p.StdDev.CenterX,
		p.StdDev.HeadTop,
		p.SampleSize,
		p.CreatedAt,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert profile: %w", err)
	}

	for _, s := range samples {
		_, err := tx.Exec(ctx,
			`INSERT INTO profile_samples (profile_id, ratios) VALUES ($1, $2)`,
			p.ID, pgvector.NewVector(s.Vector()),
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert profile sample: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save profile: %w", err)
	}
	return nil
}

// Load returns the most recently created profile.
func (r *ProfileRepository) Load(ctx context.Context) (*domain.GeometricProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		ORDER BY created_at DESC
		LIMIT 1
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.GeometricProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE id = $1
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by id: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) List(ctx context.Context, limit int) ([]domain.GeometricProfile, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []domain.GeometricProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

// Samples returns the ratio vectors stored with a profile, in insert order.
func (r *ProfileRepository) Samples(ctx context.Context, profileID uuid.UUID) ([]domain.GeometricRatios, error) {
	query := `
		SELECT ratios
		FROM profile_samples
		WHERE profile_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("list profile samples: %w", err)
	}
	defer rows.Close()

	samples := []domain.GeometricRatios{}
	for rows.Next() {
		var v pgvector.Vector
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan profile sample: %w", err)
		}
		s := v.Slice()
		if len(s) != 3 {
			return nil, fmt.Errorf("profile sample has %d dimensions, want 3", len(s))
		}
		samples = append(samples, domain.GeometricRatios{
			HeadHeight: float64(s[0]),
			CenterX:    float64(s[1]),
			HeadTop:    float64(s[2]),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile samples: %w", err)
	}
	return samples, nil
}

func scanProfile(row pgx.Row) (*domain.GeometricProfile, error) {
	var p domain.GeometricProfile
	err := row.Scan(
		&p.ID,
		&p.Mean.HeadHeight,
		&p.Mean.CenterX,
		&p.Mean.HeadTop,
		&p.StdDev.HeadHeight,
		&p.StdDev.CenterX,
		&p.StdDev.HeadTop,
		&p.SampleSize,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
