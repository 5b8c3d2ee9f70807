package quality

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

const (
	// sharpnessScale maps Laplacian variance to a [0, 1] score
	sharpnessScale = 1000.0
	// homogeneousLaplacian is the |Laplacian| under which a pixel counts as flat
	homogeneousLaplacian = 8.0
	// borderFraction of the short side sampled as background
	borderFraction = 0.05
)

// luma is a row-major luminance buffer in [0, 255]
type luma struct {
	w, h int
	pix  []float64
}

func lumaFromNRGBA(img *image.NRGBA) luma {
	b := img.Bounds()
	l := luma{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < l.h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < l.w; x++ {
			l.pix[y*l.w+x] = float64(row[x*4])
		}
	}
	return l
}

func (l luma) at(x, y int) float64 {
	return l.pix[y*l.w+x]
}

// Measure computes the raw quality metrics of img.
func Measure(img image.Image) domain.QualityMetrics {
	b := img.Bounds()
	m := domain.QualityMetrics{Width: b.Dx(), Height: b.Dy()}
	if b.Empty() {
		return m
	}

	gray := imaging.Grayscale(img)
	l := lumaFromNRGBA(gray)
	lap := laplacian(l)

	m.Sharpness = variance(lap)
	m.SharpnessScore = math.Min(1, m.Sharpness/sharpnessScale)
	m.Noise = noise(l, lumaFromNRGBA(imaging.Blur(gray, 1.0)), lap)

	mean, std := meanStd(l.pix)
	m.Brightness = mean / 255
	m.Contrast = math.Min(1, std/127.5)
	m.BackgroundUniformity = borderUniformity(l)

	return m
}

// laplacian returns the 4-neighbour Laplacian response of every interior
// pixel. Responses are signed, which is why the buffer is kept in float.
func laplacian(l luma) []float64 {
	if l.w < 3 || l.h < 3 {
		return nil
	}
	out := make([]float64, 0, (l.w-2)*(l.h-2))
	for y := 1; y < l.h-1; y++ {
		for x := 1; x < l.w-1; x++ {
			v := l.at(x-1, y) + l.at(x+1, y) + l.at(x, y-1) + l.at(x, y+1) - 4*l.at(x, y)
			out = append(out, v)
		}
	}
	return out
}

// noise is the spread of the residual between the image and its Gaussian
// blur, sampled where the image is locally flat, normalized to [0, 1].
func noise(l, blurred luma, lap []float64) float64 {
	if len(lap) == 0 {
		return 0
	}

	flat := make([]float64, 0, len(lap)/2)
	all := make([]float64, 0, len(lap))
	i := 0
	for y := 1; y < l.h-1; y++ {
		for x := 1; x < l.w-1; x++ {
			r := math.Abs(l.at(x, y) - blurred.at(x, y))
			all = append(all, r)
			if math.Abs(lap[i]) < homogeneousLaplacian {
				flat = append(flat, r)
			}
			i++
		}
	}

	sample := flat
	if len(flat) < len(all)/100 {
		sample = all
	}
	_, std := meanStd(sample)
	return std / 255
}

// borderUniformity is 1 - stddev(border luminance)/127.5, clamped to [0, 1].
func borderUniformity(l luma) float64 {
	strip := max(1, int(float64(min(l.w, l.h))*borderFraction))

	var border []float64
	for y := 0; y < l.h; y++ {
		for x := 0; x < l.w; x++ {
			if x < strip || y < strip || x >= l.w-strip || y >= l.h-strip {
				border = append(border, l.at(x, y))
			}
		}
	}

	_, std := meanStd(border)
	return math.Max(0, math.Min(1, 1-std/127.5))
}

func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	mean := sum / float64(len(v))
	var ss float64
	for _, x := range v {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(v)))
}

func variance(v []float64) float64 {
	_, std := meanStd(v)
	return std * std
}
