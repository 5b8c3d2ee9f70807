package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// FileSource reads and writes the profile as a JSON document.
type FileSource struct {
	path string
}

var (
	_ Source = (*FileSource)(nil)
	_ Sink   = (*FileSource)(nil)
)

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Path() string {
	return f.path
}

func (f *FileSource) Load(_ context.Context) (*domain.GeometricProfile, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", f.path, err)
	}

	var p domain.GeometricProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, domain.ErrInvalidProfile.WithError(err)
	}
	return &p, nil
}

// Save writes p through a temp file and a rename so the watcher never
// sees a half-written document. Samples are not stored in the file.
func (f *FileSource) Save(_ context.Context, p *domain.GeometricProfile, _ []domain.GeometricRatios) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".profile-*.json")
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("rename profile: %w", err)
	}
	return nil
}
