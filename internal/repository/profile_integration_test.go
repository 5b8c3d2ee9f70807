//go:build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/database"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

func setupIntegrationTest(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "idphoto_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://test:test@%s:%s/idphoto_test?sslmode=disable", host, port.Port())

	sqlDB, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	migrator, err := database.NewMigrator(sqlDB, "idphoto_test")
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	_ = migrator.Close()

	db, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func TestProfileRepository_Integration(t *testing.T) {
	db, cleanup := setupIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewProfileRepository(db)

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)

	samples := []domain.GeometricRatios{
		{HeadHeight: 0.5, CenterX: 0.5, HeadTop: 0.25},
		{HeadHeight: 0.75, CenterX: 0.5, HeadTop: 0.125},
	}
	older := &domain.GeometricProfile{
		ID:         uuid.New(),
		Mean:       domain.GeometricRatios{HeadHeight: 0.6, CenterX: 0.5, HeadTop: 0.2},
		StdDev:     domain.GeometricRatios{HeadHeight: 0.05},
		SampleSize: 10,
		CreatedAt:  time.Now().Add(-time.Hour).UTC().Truncate(time.Microsecond),
	}
	newer := &domain.GeometricProfile{
		ID:         uuid.New(),
		Mean:       domain.GeometricRatios{HeadHeight: 0.625, CenterX: 0.5, HeadTop: 0.1875},
		StdDev:     domain.GeometricRatios{HeadHeight: 0.125, HeadTop: 0.0625},
		SampleSize: 2,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}

	require.NoError(t, repo.Save(ctx, older, nil))
	require.NoError(t, repo.Save(ctx, newer, samples))

	latest, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, newer.Mean, latest.Mean)
	assert.True(t, newer.CreatedAt.Equal(latest.CreatedAt))

	stored, err := repo.Samples(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, samples, stored)

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, older.ID, list[1].ID)
}
