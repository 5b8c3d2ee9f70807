package profile

import (
	"math"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// FromSamples computes the mean and population standard deviation of each
// ratio. It is deterministic: the same samples always give the same
// statistics. ID and CreatedAt are left for the caller to stamp.
func FromSamples(samples []domain.GeometricRatios) (*domain.GeometricProfile, error) {
	if len(samples) == 0 {
		return nil, domain.ErrEmptyCorpus
	}

	n := float64(len(samples))
	var mean domain.GeometricRatios
	for _, s := range samples {
		mean.HeadHeight += s.HeadHeight
		mean.CenterX += s.CenterX
		mean.HeadTop += s.HeadTop
	}
	mean.HeadHeight /= n
	mean.CenterX /= n
	mean.HeadTop /= n

	var ss domain.GeometricRatios
	for _, s := range samples {
		ss.HeadHeight += sq(s.HeadHeight - mean.HeadHeight)
		ss.CenterX += sq(s.CenterX - mean.CenterX)
		ss.HeadTop += sq(s.HeadTop - mean.HeadTop)
	}

	return &domain.GeometricProfile{
		Mean: mean,
		StdDev: domain.GeometricRatios{
			HeadHeight: math.Sqrt(ss.HeadHeight / n),
			CenterX:    math.Sqrt(ss.CenterX / n),
			HeadTop:    math.Sqrt(ss.HeadTop / n),
		},
		SampleSize: len(samples),
	}, nil
}

func sq(v float64) float64 { return v * v }
