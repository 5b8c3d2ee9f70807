package geometry

import (
	"math"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

const (
	DefaultHeadHeightRatio = 0.60
	DefaultHeadTopRatio    = 0.18
	DefaultCenterXRatio    = 0.50
)

// Targets are the ratios a crop is planned against.
type Targets struct {
	HeadHeight float64
	HeadTop    float64
	CenterX    float64
}

func DefaultTargets() Targets {
	return Targets{
		HeadHeight: DefaultHeadHeightRatio,
		HeadTop:    DefaultHeadTopRatio,
		CenterX:    DefaultCenterXRatio,
	}
}

// TargetsFor returns the profile means, or the defaults when profile is nil.
func TargetsFor(profile *domain.GeometricProfile) Targets {
	if profile == nil || profile.Mean.HeadHeight <= 0 {
		return DefaultTargets()
	}
	return Targets{
		HeadHeight: profile.Mean.HeadHeight,
		HeadTop:    profile.Mean.HeadTop,
		CenterX:    profile.Mean.CenterX,
	}
}

type CropPlanner struct {
	defaults Targets
}

func NewCropPlanner(defaults Targets) *CropPlanner {
	if defaults.HeadHeight <= 0 {
		defaults = DefaultTargets()
	}
	return &CropPlanner{defaults: defaults}
}

// Plan returns a square crop inside a width x height image. A nil face
// yields the centered square of side min(width, height). The result is
// always within bounds: the box is first translated back inside the image
// and only shrunk when it is larger than the image's short side.
func (p *CropPlanner) Plan(face *domain.FaceCandidate, width, height int, profile *domain.GeometricProfile) domain.CropBox {
	side := min(width, height)
	if side <= 0 {
		return domain.CropBox{}
	}
	if face == nil || face.Box.Height <= 0 {
		return centerSquare(width, height)
	}

	t := p.defaults
	if profile != nil {
		t = TargetsFor(profile)
	}

	sizePx := int(math.Round(face.Box.Height / t.HeadHeight))
	if sizePx > side {
		sizePx = side
	}
	if sizePx < 1 {
		sizePx = 1
	}

	size := float64(sizePx)
	x := face.Box.CenterX() - size*t.CenterX
	y := face.Box.Y - size*t.HeadTop

	return domain.CropBox{
		X:    clampInt(int(math.Round(x)), 0, width-sizePx),
		Y:    clampInt(int(math.Round(y)), 0, height-sizePx),
		Size: sizePx,
	}
}

func centerSquare(width, height int) domain.CropBox {
	side := min(width, height)
	return domain.CropBox{
		X:    (width - side) / 2,
		Y:    (height - side) / 2,
		Size: side,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
