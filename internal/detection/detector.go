package detection

import (
	"context"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

const (
	DefaultMaxDimension  = 1024
	DefaultMinConfidence = 0.5
)

// Detector finds faces in an image. Boxes are in the pixel coordinates of
// the image it was given.
type Detector interface {
	Name() string
	Detect(ctx context.Context, img image.Image) ([]domain.FaceCandidate, error)
}

type CascadeConfig struct {
	// MaxDimension bounds the longest side of the working copy used for detection
	MaxDimension int
	// MinConfidence below which the next detector is consulted
	MinConfidence float64
}

func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		MaxDimension:  DefaultMaxDimension,
		MinConfidence: DefaultMinConfidence,
	}
}

// Cascade runs detectors in order and stops at the first one that yields a
// face at or above MinConfidence. Results of different detectors are never
// merged. If none reaches the threshold, the non-empty result with the
// highest confidence is returned.
type Cascade struct {
	detectors []Detector
	config    CascadeConfig
	logger    *slog.Logger
}

func NewCascade(logger *slog.Logger, config CascadeConfig, detectors ...Detector) *Cascade {
	if config.MaxDimension <= 0 {
		config.MaxDimension = DefaultMaxDimension
	}
	return &Cascade{
		detectors: detectors,
		config:    config,
		logger:    logger.With("component", "detection"),
	}
}

// Detect never fails: detector errors are logged and treated as empty.
// Returned boxes are in the coordinates of img and clamped to its bounds.
func (c *Cascade) Detect(ctx context.Context, img image.Image) []domain.FaceCandidate {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	working, factor := c.workingCopy(img)

	var fallback []domain.FaceCandidate
	fallbackBest := -1.0

	for i, d := range c.detectors {
		if ctx.Err() != nil {
			break
		}

		faces, err := d.Detect(ctx, working)
		if err != nil {
			c.logger.WarnContext(ctx, "detector failed",
				slog.String("detector", d.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		faces = usable(faces)
		best := maxConfidence(faces)

		c.logger.DebugContext(ctx, "detector finished",
			slog.String("detector", d.Name()),
			slog.Int("stage", i),
			slog.Int("faces", len(faces)),
			slog.Float64("max_confidence", best),
		)

		if len(faces) == 0 {
			continue
		}
		if best >= c.config.MinConfidence {
			return mapBack(faces, d.Name(), factor, width, height)
		}
		if best > fallbackBest {
			fallback = mapBack(faces, d.Name(), factor, width, height)
			fallbackBest = best
		}
	}

	return fallback
}

// workingCopy downsizes img so its longest side is at most MaxDimension and
// returns the factor that maps working coordinates back to img.
func (c *Cascade) workingCopy(img image.Image) (image.Image, float64) {
	bounds := img.Bounds()
	longest := max(bounds.Dx(), bounds.Dy())
	if longest <= c.config.MaxDimension {
		return img, 1
	}
	working := imaging.Fit(img, c.config.MaxDimension, c.config.MaxDimension, imaging.Linear)
	return working, float64(bounds.Dx()) / float64(working.Bounds().Dx())
}

func usable(faces []domain.FaceCandidate) []domain.FaceCandidate {
	out := faces[:0:0]
	for _, f := range faces {
		if f.Box.Width > 0 && f.Box.Height > 0 {
			out = append(out, f)
		}
	}
	return out
}

func maxConfidence(faces []domain.FaceCandidate) float64 {
	best := 0.0
	for _, f := range faces {
		best = max(best, f.Confidence)
	}
	return best
}

func mapBack(faces []domain.FaceCandidate, name string, factor float64, width, height int) []domain.FaceCandidate {
	out := make([]domain.FaceCandidate, 0, len(faces))
	for _, f := range faces {
		m := f
		m.Box = f.Box.Scale(factor).ClampTo(width, height)
		if m.Box.Width <= 0 || m.Box.Height <= 0 {
			continue
		}
		if f.Eyes != nil {
			m.Eyes = &domain.EyePair{
				Left:  domain.Point{X: f.Eyes.Left.X * factor, Y: f.Eyes.Left.Y * factor},
				Right: domain.Point{X: f.Eyes.Right.X * factor, Y: f.Eyes.Right.Y * factor},
			}
		}
		if m.Detector == "" {
			m.Detector = name
		}
		out = append(out, m)
	}
	return out
}
