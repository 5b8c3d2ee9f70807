package detection

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/audit"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/config"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/face"
)

const (
	DetectorPigo     = "pigo"
	DetectorPigoFast = "pigo-fast"
	DetectorNone     = "none"
)

// NewCascadeFromConfig builds the primary and fallback detectors named by
// DETECTOR_PRIMARY and DETECTOR_FALLBACK.
func NewCascadeFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger, auditLogger audit.Logger) (*Cascade, error) {
	var detectors []Detector
	for _, name := range []string{cfg.DetectorPrimary, cfg.DetectorFallback} {
		if name == "" || name == DetectorNone {
			continue
		}
		d, err := newDetector(ctx, cfg, name, auditLogger)
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, d)
	}
	if len(detectors) == 0 {
		return nil, fmt.Errorf("no face detector configured")
	}

	return NewCascade(logger, CascadeConfig{
		MaxDimension:  cfg.DetectionMaxDimension,
		MinConfidence: cfg.DetectionMinConfidence,
	}, detectors...), nil
}

func newDetector(ctx context.Context, cfg *config.Config, name string, auditLogger audit.Logger) (Detector, error) {
	switch name {
	case DetectorPigo, DetectorPigoFast:
		faceCascade, err := os.ReadFile(cfg.PigoCascadePath)
		if err != nil {
			return nil, fmt.Errorf("read pigo cascade: %w", err)
		}
		var puploc []byte
		if cfg.PuplocCascadePath != "" {
			puploc, err = os.ReadFile(cfg.PuplocCascadePath)
			if err != nil {
				return nil, fmt.Errorf("read puploc cascade: %w", err)
			}
		}
		pc := AccuratePigoConfig()
		if name == DetectorPigoFast {
			pc = FastPigoConfig()
		}
		return NewPigoDetector(name, faceCascade, puploc, pc)
	default:
		p, err := face.NewFaceProvider(ctx, cfg, name, auditLogger)
		if err != nil {
			return nil, fmt.Errorf("detector %s: %w", name, err)
		}
		return NewProviderDetector(name, p), nil
	}
}
