package imageio

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// DefaultMaxPixels bounds width*height before any pixel is allocated
const DefaultMaxPixels = 40_000_000

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
)

var supportedTypes = map[string]bool{
	MimeJPEG: true,
	MimePNG:  true,
	MimeWebP: true,
}

// Decoded is an upright image plus what was learned while decoding it
type Decoded struct {
	Image       image.Image
	MimeType    string
	Orientation int
}

type decodeOptions struct {
	maxPixels int
}

type DecodeOption func(*decodeOptions)

// WithMaxPixels overrides DefaultMaxPixels. Values <= 0 keep the default.
func WithMaxPixels(n int) DecodeOption {
	return func(o *decodeOptions) {
		if n > 0 {
			o.maxPixels = n
		}
	}
}

// Decode sniffs the content type, decodes the image and applies the EXIF
// orientation so that pixel rows match what the viewer sees. The header is
// read first so oversized images are rejected without being decoded.
func Decode(data []byte, opts ...DecodeOption) (*Decoded, error) {
	o := decodeOptions{maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(&o)
	}

	if len(data) == 0 {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("empty payload"))
	}

	mt := mimetype.Detect(data)
	if !supportedTypes[mt.String()] {
		return nil, domain.ErrUnsupportedImageType.WithError(fmt.Errorf("detected %s", mt.String()))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(o.maxPixels) {
		return nil, domain.ErrImageTooLarge.WithError(
			fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, o.maxPixels))
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	if img.Bounds().Empty() {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("zero-sized image"))
	}

	orientation := 1
	if mt.String() == MimeJPEG {
		orientation = readOrientation(data)
	}

	return &Decoded{
		Image:       applyOrientation(img, orientation),
		MimeType:    mt.String(),
		Orientation: orientation,
	}, nil
}

// ReadAll reads at most limit bytes from r
func ReadAll(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, domain.ErrImageTooLarge
	}
	return data, nil
}

// readOrientation returns the EXIF orientation tag, or 1 when absent
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
