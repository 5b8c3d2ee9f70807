package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/provider"
)

const (
	// minFaceArea is the minimum face area (in pixels²) for reliable detection
	minFaceArea = 2500 // 50x50 pixels
	// maxFaceArea is used for confidence scaling
	maxFaceArea = 250000 // 500x500 pixels
)

// Provider implements provider.FaceProvider using DeepFace API
type Provider struct {
	client *Client
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

// DetectFaces detects faces in the image. Boxes are returned relative to
// the image size, so the image header is decoded to learn its dimensions.
func (p *Provider) DetectFaces(ctx context.Context, img []byte) ([]provider.DetectedFace, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageFormat, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, ErrInvalidImageFormat
	}

	resp, err := p.client.Represent(ctx, base64.StdEncoding.EncodeToString(img))
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	w := float64(cfg.Width)
	h := float64(cfg.Height)

	faces := make([]provider.DetectedFace, 0, len(resp.Results))
	for _, result := range resp.Results {
		area := result.FacialArea
		if result.FaceConfidence <= 0 && area.W >= cfg.Width && area.H >= cfg.Height {
			// whole-image placeholder returned when nothing was detected
			continue
		}

		faceArea := float64(area.W * area.H)
		confidence := result.FaceConfidence
		if confidence <= 0 {
			confidence = calculateConfidence(faceArea)
		}

		face := provider.DetectedFace{
			BoundingBox: provider.BoundingBox{
				X:      float64(area.X) / w,
				Y:      float64(area.Y) / h,
				Width:  float64(area.W) / w,
				Height: float64(area.H) / h,
			},
			Confidence:   math.Min(1, confidence),
			QualityScore: calculateQuality(faceArea),
		}
		if len(area.LeftEye) == 2 && len(area.RightEye) == 2 {
			face.LeftEye = &provider.Point{X: float64(area.LeftEye[0]) / w, Y: float64(area.LeftEye[1]) / h}
			face.RightEye = &provider.Point{X: float64(area.RightEye[0]) / w, Y: float64(area.RightEye[1]) / h}
		}

		faces = append(faces, face)
	}

	return faces, nil
}

// calculateConfidence estimates confidence based on face area for
// detectors that do not report one
func calculateConfidence(faceArea float64) float64 {
	if faceArea < minFaceArea {
		return 0.5
	}
	// Scale from 0.7 to 0.99 based on face area
	normalized := math.Min(1.0, (faceArea-minFaceArea)/(maxFaceArea-minFaceArea))
	return 0.7 + (normalized * 0.29)
}

// calculateQuality estimates quality score based on face area
func calculateQuality(faceArea float64) float64 {
	if faceArea < minFaceArea {
		return 0.4
	}
	// Scale from 0.6 to 0.95 based on face area
	normalized := math.Min(1.0, (faceArea-minFaceArea)/(maxFaceArea-minFaceArea))
	return 0.6 + (normalized * 0.35)
}

// Ensure Provider implements provider.FaceProvider
var _ provider.FaceProvider = (*Provider)(nil)
