package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

func TestFileSource_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profile.json")
	src := NewFileSource(path)
	p := testProfile(0.61)
	p.CreatedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, src.Save(context.Background(), p, nil))
	got, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, p, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestFileSource_Missing(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "profile.json"))

	_, err := src.Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestFileSource_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileSource(path).Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrInvalidProfile)
}

func TestFileSource_FieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, NewFileSource(path).Save(context.Background(), testProfile(0.6), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, key := range []string{`"head_height_ratio"`, `"face_center_x_ratio"`, `"head_top_y_ratio"`, `"sample_size"`, `"std_dev"`} {
		assert.Contains(t, string(data), key)
	}
}
