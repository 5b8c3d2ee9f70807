package enhance

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// Enhancer applies one enhancement pass. Implementations must return an
// image with the same dimensions as the input.
type Enhancer interface {
	Enhance(img image.Image, strategy domain.Strategy, m domain.QualityMetrics) (image.Image, []string, error)
}

// Tier thresholds over the compliance score.
const (
	MinimalAbove  = 0.6
	StandardAbove = 0.3
)

// SelectStrategy maps a compliance score to an enhancement tier.
func SelectStrategy(score float64) domain.Strategy {
	switch {
	case score > MinimalAbove:
		return domain.StrategyMinimal
	case score >= StandardAbove:
		return domain.StrategyStandard
	default:
		return domain.StrategyFull
	}
}

// ImagingEnhancer is the default Enhancer built on disintegration/imaging.
type ImagingEnhancer struct {
	SharpenSigma    float64
	DenoiseSigma    float64
	ContrastPercent float64
	// TargetBrightness is the mean luminance, in [0, 1], that the full tier
	// pulls exposure towards.
	TargetBrightness float64
}

var _ Enhancer = (*ImagingEnhancer)(nil)

func NewImagingEnhancer() *ImagingEnhancer {
	return &ImagingEnhancer{
		SharpenSigma:     1.0,
		DenoiseSigma:     0.6,
		ContrastPercent:  12,
		TargetBrightness: 0.55,
	}
}

func (e *ImagingEnhancer) Enhance(img image.Image, strategy domain.Strategy, m domain.QualityMetrics) (image.Image, []string, error) {
	if img == nil {
		return nil, nil, fmt.Errorf("enhance: nil image")
	}

	var ops []string
	out := imaging.Clone(img)

	switch strategy {
	case domain.StrategyNone:
		return out, ops, nil

	case domain.StrategyMinimal:
		out = imaging.Sharpen(out, e.SharpenSigma/2)
		ops = append(ops, "sharpen")

	case domain.StrategyStandard:
		out = imaging.Sharpen(out, e.SharpenSigma)
		out = imaging.AdjustContrast(out, e.ContrastPercent/2)
		ops = append(ops, "sharpen", "contrast")

	case domain.StrategyFull:
		out = imaging.Blur(out, e.DenoiseSigma)
		out = imaging.Sharpen(out, e.SharpenSigma*1.5)
		out = imaging.AdjustContrast(out, e.ContrastPercent)
		ops = append(ops, "denoise", "sharpen", "contrast")
		if m.Brightness > 0 {
			delta := (e.TargetBrightness - m.Brightness) * 100
			if delta > 1 || delta < -1 {
				out = imaging.AdjustBrightness(out, clamp(delta, -30, 30))
				ops = append(ops, "brightness")
			}
		}

	default:
		return nil, nil, fmt.Errorf("enhance: unknown strategy %q", strategy)
	}

	return out, ops, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
