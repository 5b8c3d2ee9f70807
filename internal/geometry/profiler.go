package geometry

import (
	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// ComputeRatios normalizes a face box against the dimensions of the image
// it was detected in. Width and height must be positive.
func ComputeRatios(box domain.BoundingBox, width, height int) domain.GeometricRatios {
	w := float64(width)
	h := float64(height)
	return domain.GeometricRatios{
		HeadHeight: box.Height / h,
		CenterX:    (box.X + box.Width/2) / w,
		HeadTop:    box.Y / h,
	}
}

// ProjectBox maps a box from source coordinates into the coordinates of a
// crop that has been resized to outSize x outSize.
func ProjectBox(box domain.BoundingBox, crop domain.CropBox, outSize int) domain.BoundingBox {
	if crop.Size <= 0 {
		return domain.BoundingBox{}
	}
	f := float64(outSize) / float64(crop.Size)
	return domain.BoundingBox{
		X:      (box.X - float64(crop.X)) * f,
		Y:      (box.Y - float64(crop.Y)) * f,
		Width:  box.Width * f,
		Height: box.Height * f,
	}
}

// ProjectCandidate is ProjectBox applied to a candidate and its landmarks.
func ProjectCandidate(c domain.FaceCandidate, crop domain.CropBox, outSize int) domain.FaceCandidate {
	out := c
	out.Box = ProjectBox(c.Box, crop, outSize)
	if c.Eyes != nil && crop.Size > 0 {
		f := float64(outSize) / float64(crop.Size)
		project := func(p domain.Point) domain.Point {
			return domain.Point{X: (p.X - float64(crop.X)) * f, Y: (p.Y - float64(crop.Y)) * f}
		}
		out.Eyes = &domain.EyePair{Left: project(c.Eyes.Left), Right: project(c.Eyes.Right)}
	}
	return out
}
