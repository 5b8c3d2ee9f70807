package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/provider"
)

// ProviderDetector adapts a remote provider.FaceProvider to the Detector
// interface. The image is sent as JPEG and relative boxes are converted to
// pixels.
type ProviderDetector struct {
	name     string
	provider provider.FaceProvider
	quality  int
}

var _ Detector = (*ProviderDetector)(nil)

func NewProviderDetector(name string, p provider.FaceProvider) *ProviderDetector {
	return &ProviderDetector{name: name, provider: p, quality: 90}
}

func (d *ProviderDetector) Name() string {
	return d.name
}

func (d *ProviderDetector) Detect(ctx context.Context, img image.Image) ([]domain.FaceCandidate, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(d.quality)); err != nil {
		return nil, fmt.Errorf("%s: encode image: %w", d.name, err)
	}

	detected, err := d.provider.DetectFaces(ctx, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.name, err)
	}

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())

	faces := make([]domain.FaceCandidate, 0, len(detected))
	for _, f := range detected {
		face := domain.FaceCandidate{
			Box: domain.BoundingBox{
				X:      f.BoundingBox.X * w,
				Y:      f.BoundingBox.Y * h,
				Width:  f.BoundingBox.Width * w,
				Height: f.BoundingBox.Height * h,
			},
			Confidence: f.Confidence,
			Detector:   d.name,
		}
		if f.LeftEye != nil && f.RightEye != nil {
			face.Eyes = &domain.EyePair{
				Left:  domain.Point{X: f.LeftEye.X * w, Y: f.LeftEye.Y * h},
				Right: domain.Point{X: f.RightEye.X * w, Y: f.RightEye.Y * h},
			}
		}
		faces = append(faces, face)
	}

	return faces, nil
}
