package domain

import (
	"image"
	"math"
	"time"
)

// BoundingBox é um retângulo em pixels no sistema de coordenadas da imagem original
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

func (b BoundingBox) CenterX() float64 {
	return b.X + b.Width/2
}

func (b BoundingBox) CenterY() float64 {
	return b.Y + b.Height/2
}

// Scale multiplies every coordinate by f. Used to map boxes between the
// working resolution and the original image.
func (b BoundingBox) Scale(f float64) BoundingBox {
	return BoundingBox{X: b.X * f, Y: b.Y * f, Width: b.Width * f, Height: b.Height * f}
}

// ClampTo trims the box so it lies inside a w x h image.
func (b BoundingBox) ClampTo(w, h int) BoundingBox {
	x0 := math.Max(0, b.X)
	y0 := math.Max(0, b.Y)
	x1 := math.Min(float64(w), b.X+b.Width)
	y1 := math.Min(float64(h), b.Y+b.Height)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return BoundingBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyePair holds pupil positions when the detector can localise them.
type EyePair struct {
	Left  Point `json:"left"`
	Right Point `json:"right"`
}

// FaceCandidate representa uma face detectada
type FaceCandidate struct {
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
	Eyes       *EyePair    `json:"eyes,omitempty"`
	Detector   string      `json:"detector,omitempty"`
}

type SelectionStatus string

const (
	SelectionNoFace        SelectionStatus = "no_face"
	SelectionSingleFace    SelectionStatus = "single_face"
	SelectionMultipleFaces SelectionStatus = "multiple_faces"
)

// FaceSelection is the classified outcome of primary face selection.
// Primary is nil only when Status is SelectionNoFace.
type FaceSelection struct {
	Status     SelectionStatus `json:"status"`
	Primary    *FaceCandidate  `json:"primary,omitempty"`
	Candidates []FaceCandidate `json:"candidates"`
}

// ReviewConfidence is the confidence below which a single face is still
// flagged for manual review.
const ReviewConfidence = 0.9

func (s FaceSelection) NeedsReview() bool {
	switch s.Status {
	case SelectionNoFace, SelectionMultipleFaces:
		return true
	default:
		return s.Primary == nil || s.Primary.Confidence < ReviewConfidence
	}
}

type CropBox struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Size int `json:"size"`
}

func (c CropBox) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Size, c.Y+c.Size)
}

// QualityMetrics are raw measurements of an image. Sharpness is the raw
// Laplacian variance; SharpnessScore is its normalized form in [0, 1].
type QualityMetrics struct {
	Width                int     `json:"width"`
	Height               int     `json:"height"`
	Sharpness            float64 `json:"sharpness"`
	SharpnessScore       float64 `json:"sharpness_score"`
	Noise                float64 `json:"noise"`
	Contrast             float64 `json:"contrast"`
	Brightness           float64 `json:"brightness"`
	BackgroundUniformity float64 `json:"background_uniformity"`
}

type CategoryScores struct {
	Dimensions float64 `json:"dimensions"`
	Background float64 `json:"background"`
	Face       float64 `json:"face"`
	Quality    float64 `json:"quality"`
}

type ComplianceResult struct {
	Score           float64        `json:"score"`
	Passing         bool           `json:"passing"`
	Grade           string         `json:"grade"`
	Categories      CategoryScores `json:"categories"`
	Recommendations []string       `json:"recommendations"`
}

type Strategy string

const (
	StrategyNone     Strategy = "none"
	StrategyMinimal  Strategy = "minimal"
	StrategyStandard Strategy = "standard"
	StrategyFull     Strategy = "full"
)

// ProcessingAttempt records one assessment. Attempt 0 is the image as
// received; later attempts follow one enhancement pass each.
type ProcessingAttempt struct {
	Number       int              `json:"attempt"`
	Strategy     Strategy         `json:"strategy"`
	Operations   []string         `json:"operations,omitempty"`
	Metrics      QualityMetrics   `json:"metrics"`
	Compliance   ComplianceResult `json:"compliance"`
	Rejected     bool             `json:"rejected,omitempty"`
	RejectReason string           `json:"reject_reason,omitempty"`
	Duration     time.Duration    `json:"processing_time_ns"`
}

type Outcome string

const (
	OutcomePassing   Outcome = "passing"
	OutcomeExhausted Outcome = "exhausted"
)

type ProcessingResult struct {
	Image                 image.Image         `json:"-"`
	Outcome               Outcome             `json:"outcome"`
	BestAttempt           int                 `json:"best_attempt"`
	Compliance            ComplianceResult    `json:"compliance"`
	Attempts              []ProcessingAttempt `json:"attempts"`
	ImprovementPercentage float64             `json:"improvement_percentage"`
}

// FaceAnalysis is the qualitative verdict of an external analysis
// capability. It is reported next to the compliance score, never inside it.
type FaceAnalysis struct {
	Provider  string   `json:"provider"`
	Compliant bool     `json:"compliant"`
	Issues    []string `json:"issues"`
}
