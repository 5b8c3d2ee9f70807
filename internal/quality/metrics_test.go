package quality

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func uniformImage(w, h int, v uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

func checkerImage(w, h, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 255}
			if (x/cell+y/cell)%2 == 0 {
				c.R, c.G, c.B = 255, 255, 255
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func noisyImage(w, h int, base uint8, amplitude int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := int(base) + rng.Intn(2*amplitude+1) - amplitude
		v = max(0, min(255, v))
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(v), uint8(v), uint8(v), 255
	}
	return img
}

func TestMeasure_Uniform(t *testing.T) {
	m := Measure(uniformImage(120, 80, 200))

	assert.Equal(t, 120, m.Width)
	assert.Equal(t, 80, m.Height)
	assert.InDelta(t, 0, m.Sharpness, 1e-9)
	assert.InDelta(t, 0, m.SharpnessScore, 1e-9)
	assert.InDelta(t, 0, m.Noise, 1e-9)
	assert.InDelta(t, 0, m.Contrast, 1e-9)
	assert.InDelta(t, 200.0/255, m.Brightness, 1e-3)
	assert.InDelta(t, 1, m.BackgroundUniformity, 1e-9)
}

func TestMeasure_Checkerboard(t *testing.T) {
	m := Measure(checkerImage(100, 100, 2))

	assert.Greater(t, m.Sharpness, sharpnessScale)
	assert.Equal(t, 1.0, m.SharpnessScore)
	assert.InDelta(t, 1, m.Contrast, 0.01)
	assert.Less(t, m.BackgroundUniformity, 0.1)
}

func TestMeasure_NoiseIncreasesWithAmplitude(t *testing.T) {
	quiet := Measure(noisyImage(100, 100, 128, 2, 1))
	loud := Measure(noisyImage(100, 100, 128, 40, 1))

	assert.Greater(t, loud.Noise, quiet.Noise)
	assert.Greater(t, loud.Noise, 0.0)
	assert.LessOrEqual(t, loud.Noise, 1.0)
}

func TestMeasure_Empty(t *testing.T) {
	m := Measure(image.NewNRGBA(image.Rect(0, 0, 0, 0)))

	assert.Equal(t, 0, m.Width)
	assert.Equal(t, 0.0, m.Sharpness)
}

func TestMeasure_TinyImage(t *testing.T) {
	m := Measure(uniformImage(2, 2, 10))

	assert.Equal(t, 0.0, m.Sharpness)
	assert.Equal(t, 0.0, m.Noise)
}

func TestMeasure_Deterministic(t *testing.T) {
	img := noisyImage(64, 64, 100, 20, 7)
	assert.Equal(t, Measure(img), Measure(img))
}
