package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/audit"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/background"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/config"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/detection"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/enhance"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/face"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/geometry"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/quality"
)

// NewPhotoServiceFromConfig wires the full pipeline from environment
// configuration: detector cascade, planner, assessor, enhancement loop and
// the optional background and analysis capabilities.
func NewPhotoServiceFromConfig(ctx context.Context, cfg *config.Config, profiles ProfileProvider, logger *slog.Logger, auditLogger audit.Logger) (*PhotoService, error) {
	detector, err := detection.NewCascadeFromConfig(ctx, cfg, logger, auditLogger)
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}

	analyzer, err := face.NewFaceAnalyzer(ctx, cfg, auditLogger)
	if err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}

	assessor := quality.NewAssessor(cfg.OutputSize)
	controller := enhance.NewController(assessor, enhance.NewImagingEnhancer(), logger)

	opts := []Option{
		WithAuditLogger(auditLogger),
		WithMultiFacePolicy(MultiFacePolicy(cfg.MultiFacePolicy)),
		WithMaxConcurrentJobs(cfg.MaxConcurrentJobs),
		WithMaxImagePixels(cfg.MaxImagePixels),
		WithAnalyzer(analyzer),
	}
	if cfg.BackgroundURL != "" {
		bc := background.DefaultConfig()
		bc.BaseURL = cfg.BackgroundURL
		if cfg.BackgroundTimeout > 0 {
			bc.Timeout = cfg.BackgroundTimeout
		}
		opts = append(opts, WithIsolator(background.NewClient(bc)))
	}

	return NewPhotoService(
		detector,
		geometry.NewCropPlanner(geometry.DefaultTargets()),
		assessor,
		controller,
		profiles,
		logger,
		opts...,
	), nil
}
