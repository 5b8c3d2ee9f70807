package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/audit"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// Source loads the persisted profile. Implementations return
// domain.ErrProfileNotFound when nothing has been learned yet.
type Source interface {
	Load(ctx context.Context) (*domain.GeometricProfile, error)
}

// Sink persists a learned profile together with the samples it came from.
type Sink interface {
	Save(ctx context.Context, p *domain.GeometricProfile, samples []domain.GeometricRatios) error
}

// snapshot wraps the loaded profile so that "loaded, but absent" can be
// told apart from "not loaded yet".
type snapshot struct {
	profile *domain.GeometricProfile
}

// Store holds the process-wide profile. Readers get an immutable pointer;
// Reload swaps it whole.
type Store struct {
	source      Source
	logger      *slog.Logger
	auditLogger audit.Logger

	current atomic.Pointer[snapshot]
	loadMu  sync.Mutex
}

func NewStore(source Source, logger *slog.Logger, auditLogger audit.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &Store{
		source:      source,
		logger:      logger.With("component", "profile_store"),
		auditLogger: auditLogger,
	}
}

// Current returns the loaded profile, loading it on first use. A nil
// result means no profile is available and defaults apply. Load failures
// are logged and also yield nil, but nothing is cached so the next call
// tries again. The load is detached from ctx cancellation.
func (s *Store) Current(ctx context.Context) *domain.GeometricProfile {
	if snap := s.current.Load(); snap != nil {
		return snap.profile
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if snap := s.current.Load(); snap != nil {
		return snap.profile
	}

	if err := s.reload(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "profile unavailable, using defaults", "error", err)
		return nil
	}
	return s.current.Load().profile
}

// Reload reads the source again and swaps the profile in. In-flight
// readers keep the pointer they already hold. On error the previous
// profile stays active.
func (s *Store) Reload(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.reload(ctx)
}

func (s *Store) reload(ctx context.Context) error {
	if s.source == nil {
		s.current.Store(&snapshot{})
		return nil
	}

	p, err := s.source.Load(ctx)
	if errors.Is(err, domain.ErrProfileNotFound) {
		s.logger.InfoContext(ctx, "no learned profile, using defaults")
		s.current.Store(&snapshot{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return domain.ErrInvalidProfile.WithError(err)
	}

	s.current.Store(&snapshot{profile: p})
	s.logger.InfoContext(ctx, "profile loaded",
		"profile_id", p.ID,
		"sample_size", p.SampleSize,
		"head_height_mean", p.Mean.HeadHeight,
	)
	_ = s.auditLogger.Log(ctx, audit.Event{
		EventType: audit.EventProfileReloaded,
		Source:    "profile_store",
		Success:   true,
		Metadata: map[string]string{
			"profile_id":  p.ID.String(),
			"sample_size": fmt.Sprint(p.SampleSize),
		},
	})
	return nil
}

// Set installs p directly, bypassing the source. A nil p clears the profile.
func (s *Store) Set(p *domain.GeometricProfile) {
	s.current.Store(&snapshot{profile: p})
}
