//go:build integration

package database_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/database"
)

func startPostgres(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
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
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/idphoto_test?sslmode=disable", host, port.Port())
	return dsn, func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}
}

// TestMigratorIntegration tests the migration functionality
func TestMigratorIntegration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	db, err := database.NewSQLDB(database.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	t.Run("Up runs migrations successfully", func(t *testing.T) {
		migrator, err := database.NewMigrator(db, "idphoto_test")
		require.NoError(t, err)
		defer func() { _ = migrator.Close() }()

		require.NoError(t, migrator.Up())
		require.NoError(t, migrator.Up(), "second Up must be a no-op")

		assertTableExists(t, db, "profiles")
		assertTableExists(t, db, "profile_samples")
	})

	t.Run("Version returns current version", func(t *testing.T) {
		migrator, err := database.NewMigrator(db, "idphoto_test")
		require.NoError(t, err)
		defer func() { _ = migrator.Close() }()

		version, dirty, err := migrator.Version()
		require.NoError(t, err)
		assert.False(t, dirty, "migration should not be dirty")
		assert.Equal(t, uint(1), version)

		status, err := migrator.Status()
		require.NoError(t, err)
		assert.Equal(t, database.SchemaStatus{Current: 1, Latest: 1}, status)
		assert.False(t, status.Pending())
	})

	t.Run("profiles table has correct columns", func(t *testing.T) {
		columns := getTableColumns(t, db, "profiles")
		for _, col := range []string{
			"id", "head_height_mean", "center_x_mean", "head_top_mean",
			"head_height_std", "center_x_std", "head_top_std", "sample_size", "created_at",
		} {
			assert.Contains(t, columns, col)
		}
	})

	t.Run("samples cascade with their profile", func(t *testing.T) {
		var id string
		err := db.QueryRow(`
			INSERT INTO profiles (id, head_height_mean, center_x_mean, head_top_mean,
				head_height_std, center_x_std, head_top_std, sample_size)
			VALUES (gen_random_uuid(), 0.6, 0.5, 0.2, 0.1, 0.01, 0.1, 1)
			RETURNING id
		`).Scan(&id)
		require.NoError(t, err)

		_, err = db.Exec(`INSERT INTO profile_samples (profile_id, ratios) VALUES ($1, '[0.6,0.5,0.2]')`, id)
		require.NoError(t, err)

		_, err = db.Exec(`DELETE FROM profiles WHERE id = $1`, id)
		require.NoError(t, err)

		var count int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM profile_samples WHERE profile_id = $1`, id).Scan(&count))
		assert.Equal(t, 0, count, "samples should be deleted via CASCADE")
	})

	t.Run("sample_size must be positive", func(t *testing.T) {
		_, err := db.Exec(`
			INSERT INTO profiles (id, head_height_mean, center_x_mean, head_top_mean,
				head_height_std, center_x_std, head_top_std, sample_size)
			VALUES (gen_random_uuid(), 0.6, 0.5, 0.2, 0.1, 0.01, 0.1, 0)
		`)
		assert.Error(t, err)
	})

	t.Run("Down rolls back", func(t *testing.T) {
		migrator, err := database.NewMigrator(db, "idphoto_test")
		require.NoError(t, err)
		defer func() { _ = migrator.Close() }()

		require.NoError(t, migrator.Down())

		var exists bool
		require.NoError(t, db.QueryRow(`
			SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'profiles')
		`).Scan(&exists))
		assert.False(t, exists)
	})
}

func assertTableExists(t *testing.T, db *sql.DB, tableName string) {
	t.Helper()

	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)

	require.NoError(t, err)
	assert.True(t, exists, "table %s should exist", tableName)
}

func getTableColumns(t *testing.T, db *sql.DB, tableName string) []string {
	t.Helper()

	rows, err := db.Query(`
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = $1
		ORDER BY ordinal_position
	`, tableName)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var col string
		require.NoError(t, rows.Scan(&col))
		columns = append(columns, col)
	}

	return columns
}
