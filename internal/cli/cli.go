package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/audit"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/config"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/database"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/detection"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/profile"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/repository"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/service"
)

// PhotoProcessor is what the process and assess commands run
type PhotoProcessor interface {
	Process(ctx context.Context, data []byte, opts service.ProcessOptions) (*service.PhotoReport, error)
	Assess(ctx context.Context, data []byte, requestID string) (*service.AssessReport, error)
}

// Root holds shared state for all commands. The factory fields are
// replaced in tests.
type Root struct {
	cfg   *config.Config
	log   *slog.Logger
	audit audit.Logger

	newDetector  func(ctx context.Context) (profile.FaceDetector, error)
	newProcessor func(ctx context.Context, profiles service.ProfileProvider) (PhotoProcessor, error)
	openDatabase func(ctx context.Context) (repository.ProfileRepositoryInterface, func(), error)
}

// NewRoot wires the commands to the real detector, pipeline and database
func NewRoot(cfg *config.Config, log *slog.Logger, auditLogger audit.Logger) *Root {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	r := &Root{cfg: cfg, log: log, audit: auditLogger}

	r.newDetector = func(ctx context.Context) (profile.FaceDetector, error) {
		cascade, err := detection.NewCascadeFromConfig(ctx, r.cfg, r.log, r.audit)
		if err != nil {
			return nil, err
		}
		return cascade, nil
	}
	r.newProcessor = func(ctx context.Context, profiles service.ProfileProvider) (PhotoProcessor, error) {
		svc, err := service.NewPhotoServiceFromConfig(ctx, r.cfg, profiles, r.log, r.audit)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	r.openDatabase = func(ctx context.Context) (repository.ProfileRepositoryInterface, func(), error) {
		if r.cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required")
		}
		pool, err := database.NewPool(ctx, database.DefaultPoolConfig(r.cfg.DatabaseURL))
		if err != nil {
			return nil, nil, err
		}
		return repository.NewProfileRepository(pool), pool.Close, nil
	}
	return r
}

// profileSource opens the configured profile source
func (r *Root) profileSource(ctx context.Context) (profile.Source, func(), error) {
	if r.cfg.ProfileSource == "database" {
		repo, closeFn, err := r.openDatabase(ctx)
		if err != nil {
			return nil, nil, err
		}
		return repo, closeFn, nil
	}
	return profile.NewFileSource(r.cfg.ProfilePath), func() {}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
