package background

import (
	"context"
	"errors"
	"image"
	"image/color"
)

var (
	ErrUnavailable     = errors.New("background service unavailable")
	ErrInvalidResponse = errors.New("invalid response from background service")
	ErrSizeMismatch    = errors.New("background service changed image size")
)

// Isolator replaces the background of an image with a uniform backdrop.
// Callers fall back to the original image on any error.
type Isolator interface {
	Isolate(ctx context.Context, img image.Image) (image.Image, error)
}

// White is the backdrop the foreground is composited onto.
var White = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Noop returns the input untouched. Used when no service is configured.
type Noop struct{}

var _ Isolator = Noop{}

func (Noop) Isolate(_ context.Context, img image.Image) (image.Image, error) {
	return img, nil
}
