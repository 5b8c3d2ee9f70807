package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// GeometricRatios are face-box measurements normalized by image size.
type GeometricRatios struct {
	HeadHeight float64 `json:"head_height_ratio"`
	CenterX    float64 `json:"face_center_x_ratio"`
	HeadTop    float64 `json:"head_top_y_ratio"`
}

func (r GeometricRatios) Vector() []float32 {
	return []float32{float32(r.HeadHeight), float32(r.CenterX), float32(r.HeadTop)}
}

// GeometricProfile representa o perfil aprendido de fotos de referência
type GeometricProfile struct {
	ID         uuid.UUID       `json:"id"`
	Mean       GeometricRatios `json:"mean"`
	StdDev     GeometricRatios `json:"std_dev"`
	SampleSize int             `json:"sample_size"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (p *GeometricProfile) Validate() error {
	if p.SampleSize < 1 {
		return fmt.Errorf("sample_size must be >= 1, got %d", p.SampleSize)
	}
	for name, v := range map[string]float64{
		"mean.head_height_ratio":      p.Mean.HeadHeight,
		"mean.face_center_x_ratio":    p.Mean.CenterX,
		"mean.head_top_y_ratio":       p.Mean.HeadTop,
		"std_dev.head_height_ratio":   p.StdDev.HeadHeight,
		"std_dev.face_center_x_ratio": p.StdDev.CenterX,
		"std_dev.head_top_y_ratio":    p.StdDev.HeadTop,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s is not a finite non-negative number", name)
		}
	}
	if p.Mean.HeadHeight <= 0 {
		return fmt.Errorf("mean.head_height_ratio must be positive")
	}
	return nil
}

// HeadHeightWindow returns mean +/- 2 std_dev, kept inside (0, 1].
func (p *GeometricProfile) HeadHeightWindow() (float64, float64) {
	lo := p.Mean.HeadHeight - 2*p.StdDev.HeadHeight
	hi := p.Mean.HeadHeight + 2*p.StdDev.HeadHeight
	if lo < 0 {
		lo = 0
	}
	if hi > 1 {
		hi = 1
	}
	return lo, hi
}
