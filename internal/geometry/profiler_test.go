package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

func TestComputeRatios(t *testing.T) {
	tests := []struct {
		name   string
		box    domain.BoundingBox
		w, h   int
		expect domain.GeometricRatios
	}{
		{
			name:   "centered face",
			box:    domain.BoundingBox{X: 250, Y: 250, Width: 500, Height: 500},
			w:      1000,
			h:      1000,
			expect: domain.GeometricRatios{HeadHeight: 0.5, CenterX: 0.5, HeadTop: 0.25},
		},
		{
			name:   "landscape image",
			box:    domain.BoundingBox{X: 3600, Y: 100, Width: 300, Height: 400},
			w:      4000,
			h:      3000,
			expect: domain.GeometricRatios{HeadHeight: 400.0 / 3000, CenterX: 3750.0 / 4000, HeadTop: 100.0 / 3000},
		},
		{
			name:   "box at origin",
			box:    domain.BoundingBox{X: 0, Y: 0, Width: 10, Height: 20},
			w:      40,
			h:      80,
			expect: domain.GeometricRatios{HeadHeight: 0.25, CenterX: 0.125, HeadTop: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRatios(tt.box, tt.w, tt.h)
			assert.InDelta(t, tt.expect.HeadHeight, got.HeadHeight, 1e-9)
			assert.InDelta(t, tt.expect.CenterX, got.CenterX, 1e-9)
			assert.InDelta(t, tt.expect.HeadTop, got.HeadTop, 1e-9)
		})
	}
}

func TestProjectCandidate(t *testing.T) {
	c := domain.FaceCandidate{
		Box:        domain.BoundingBox{X: 250, Y: 250, Width: 500, Height: 500},
		Confidence: 0.9,
		Eyes: &domain.EyePair{
			Left:  domain.Point{X: 400, Y: 450},
			Right: domain.Point{X: 600, Y: 450},
		},
	}
	crop := domain.CropBox{X: 100, Y: 100, Size: 800}

	got := ProjectCandidate(c, crop, 400)

	assert.Equal(t, domain.BoundingBox{X: 75, Y: 75, Width: 250, Height: 250}, got.Box)
	assert.Equal(t, domain.Point{X: 150, Y: 175}, got.Eyes.Left)
	assert.Equal(t, domain.Point{X: 250, Y: 175}, got.Eyes.Right)
	assert.Equal(t, 0.9, got.Confidence)
	// source untouched
	assert.Equal(t, 400.0, c.Eyes.Left.X)
}
