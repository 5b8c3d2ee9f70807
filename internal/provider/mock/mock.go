package mock

import (
	"context"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/provider"
)

// Provider implementa provider.FaceProvider e provider.FaceAnalyzer para testes e desenvolvimento
type Provider struct {
	Faces  []provider.DetectedFace
	Issues []string
}

// New cria uma nova instância do MockProvider com uma face centralizada
func New() *Provider {
	return &Provider{
		Faces: []provider.DetectedFace{
			{
				BoundingBox: provider.BoundingBox{
					X:      0.3,
					Y:      0.2,
					Width:  0.4,
					Height: 0.5,
				},
				Confidence:   0.99,
				QualityScore: 0.95,
				LeftEye:      &provider.Point{X: 0.42, Y: 0.4},
				RightEye:     &provider.Point{X: 0.58, Y: 0.4},
			},
		},
	}
}

// DetectFaces simula detecção de faces
func (p *Provider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	if len(image) < 1000 {
		return nil, domain.ErrInvalidImage
	}

	faces := make([]provider.DetectedFace, len(p.Faces))
	copy(faces, p.Faces)
	return faces, nil
}

// AnalyzeFace simula a análise qualitativa usando os issues configurados
func (p *Provider) AnalyzeFace(ctx context.Context, image []byte) (*domain.FaceAnalysis, error) {
	if len(image) < 1000 {
		return nil, domain.ErrInvalidImage
	}

	issues := make([]string, len(p.Issues))
	copy(issues, p.Issues)

	return &domain.FaceAnalysis{
		Provider:  "mock",
		Compliant: len(issues) == 0,
		Issues:    issues,
	}, nil
}

var (
	_ provider.FaceProvider = (*Provider)(nil)
	_ provider.FaceAnalyzer = (*Provider)(nil)
)
