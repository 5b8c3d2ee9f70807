package detection

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// PigoConfig tunes a pigo cascade run. Quality is pigo's raw detection
// score; confidence is Quality / QualityScale capped at 1.
type PigoConfig struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
	QualityScale float64
}

// AccuratePigoConfig is the strict primary profile: dense scan and a high
// score floor.
func AccuratePigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:      60,
		ShiftFactor:  0.05,
		ScaleFactor:  1.05,
		IoUThreshold: 0.2,
		MinQuality:   5,
		QualityScale: 50,
	}
}

// FastPigoConfig is the lightweight fallback: coarse scan, low floor.
func FastPigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:      30,
		ShiftFactor:  0.15,
		ScaleFactor:  1.2,
		IoUThreshold: 0.3,
		MinQuality:   1,
		QualityScale: 25,
	}
}

type PigoDetector struct {
	name       string
	classifier *pigo.Pigo
	puploc     *pigo.PuplocCascade
	config     PigoConfig
}

var _ Detector = (*PigoDetector)(nil)

// NewPigoDetector unpacks a facefinder cascade. puplocCascade is optional;
// when present, pupils are localised for every detection.
func NewPigoDetector(name string, faceCascade, puplocCascade []byte, config PigoConfig) (*PigoDetector, error) {
	if len(faceCascade) == 0 {
		return nil, fmt.Errorf("pigo %s: empty face cascade", name)
	}

	classifier, err := pigo.NewPigo().Unpack(faceCascade)
	if err != nil {
		return nil, fmt.Errorf("pigo %s: unpack face cascade: %w", name, err)
	}

	d := &PigoDetector{
		name:       name,
		classifier: classifier,
		config:     config,
	}

	if len(puplocCascade) > 0 {
		plc, err := pigo.NewPuplocCascade().UnpackCascade(puplocCascade)
		if err != nil {
			return nil, fmt.Errorf("pigo %s: unpack puploc cascade: %w", name, err)
		}
		d.puploc = plc
	}

	return d, nil
}

func (d *PigoDetector) Name() string {
	return d.name
}

func (d *PigoDetector) Detect(ctx context.Context, img image.Image) ([]domain.FaceCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := imaging.Clone(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()

	maxSize := d.config.MaxSize
	if maxSize <= 0 {
		maxSize = min(cols, rows)
	}

	imgParams := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(src),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}

	params := pigo.CascadeParams{
		MinSize:     d.config.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: imgParams,
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	faces := make([]domain.FaceCandidate, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.config.MinQuality {
			continue
		}

		half := float64(det.Scale) / 2
		face := domain.FaceCandidate{
			Box: domain.BoundingBox{
				X:      float64(det.Col) - half,
				Y:      float64(det.Row) - half,
				Width:  float64(det.Scale),
				Height: float64(det.Scale),
			},
			Confidence: d.confidence(det.Q),
			Detector:   d.name,
		}
		if d.puploc != nil {
			face.Eyes = d.locatePupils(det, imgParams)
		}

		faces = append(faces, face)
	}

	return faces, nil
}

func (d *PigoDetector) confidence(q float32) float64 {
	if d.config.QualityScale <= 0 {
		return 1
	}
	return math.Min(1, math.Max(0, float64(q)/d.config.QualityScale))
}

func (d *PigoDetector) locatePupils(det pigo.Detection, imgParams pigo.ImageParams) *domain.EyePair {
	scale := float32(det.Scale)

	left := d.puploc.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: 50,
	}, imgParams, 0.0, false)

	right := d.puploc.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: 50,
	}, imgParams, 0.0, false)

	if left == nil || right == nil || left.Row <= 0 || left.Col <= 0 || right.Row <= 0 || right.Col <= 0 {
		return nil
	}

	return &domain.EyePair{
		Left:  domain.Point{X: float64(left.Col), Y: float64(left.Row)},
		Right: domain.Point{X: float64(right.Col), Y: float64(right.Row)},
	}
}
