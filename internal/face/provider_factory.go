package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/audit"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/config"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/provider"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/provider/rekognition"
)

// ProviderType defines supported remote face provider types
type ProviderType string

const (
	// ProviderTypeDeepFace is the DeepFace provider (self-hosted)
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeRekognition is the AWS Rekognition provider (cloud)
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeMock is the in-process provider used in development
	ProviderTypeMock ProviderType = "mock"
	// ProviderTypeNone disables an optional capability
	ProviderTypeNone ProviderType = "none"
)

// NewFaceProvider creates a remote FaceProvider by name
//
// Environment variables:
//   - DEEPFACE_URL: DeepFace API URL (default: "http://localhost:5005")
//   - AWS_REGION: AWS region for Rekognition (default: "us-east-1")
//   - AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY: via AWS SDK credential chain
func NewFaceProvider(ctx context.Context, cfg *config.Config, name string, auditLogger audit.Logger) (provider.FaceProvider, error) {
	switch ProviderType(name) {
	case ProviderTypeRekognition:
		prov, err := createRekognitionProvider(ctx, cfg, auditLogger)
		if err != nil {
			return nil, err
		}
		return prov, nil
	case ProviderTypeDeepFace:
		return createDeepFaceProvider(cfg), nil
	case ProviderTypeMock:
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
			name, ProviderTypeDeepFace, ProviderTypeRekognition, ProviderTypeMock)
	}
}

// NewFaceAnalyzer creates the qualitative analysis capability configured
// by ANALYSIS_PROVIDER. It returns nil when analysis is disabled.
func NewFaceAnalyzer(ctx context.Context, cfg *config.Config, auditLogger audit.Logger) (provider.FaceAnalyzer, error) {
	switch ProviderType(cfg.AnalysisProvider) {
	case ProviderTypeNone, "":
		return nil, nil
	case ProviderTypeRekognition:
		prov, err := createRekognitionProvider(ctx, cfg, auditLogger)
		if err != nil {
			return nil, err
		}
		return prov, nil
	case ProviderTypeMock:
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unknown analysis provider: %s (supported: %s, %s, %s)",
			cfg.AnalysisProvider, ProviderTypeNone, ProviderTypeRekognition, ProviderTypeMock)
	}
}

// createRekognitionProvider creates an AWS Rekognition provider instance
func createRekognitionProvider(ctx context.Context, cfg *config.Config, auditLogger audit.Logger) (*rekognition.Provider, error) {
	rekogConfig := rekognition.DefaultConfig()
	if cfg.AWSRegion != "" {
		rekogConfig.Region = cfg.AWSRegion
	}

	var opts []rekognition.ProviderOption
	if auditLogger != nil {
		opts = append(opts, rekognition.WithAuditLogger(auditLogger))
	}

	prov, err := rekognition.NewProvider(ctx, rekogConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("create rekognition provider: %w", err)
	}

	return prov, nil
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config) provider.FaceProvider {
	deepfaceConfig := deepface.DefaultConfig()
	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}

	return deepface.NewProvider(deepfaceConfig)
}
