package quality

import (
	"fmt"
	"image"
	"math"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/geometry"
)

const (
	DefaultOutputSize = 600

	// head height window used when no profile is loaded
	DefaultHeadHeightMin = 0.50
	DefaultHeadHeightMax = 0.69

	// sizeTolerance widens the head window for partial credit
	sizeTolerance = 0.05
	// eyeLevelTolerance is the max vertical eye offset relative to the interocular distance
	eyeLevelTolerance = 0.15

	weightSumTolerance = 1e-9
)

type Thresholds struct {
	MinSharpness            float64
	MaxNoise                float64
	MinContrast             float64
	MinBackgroundUniformity float64
	CategoryPass            float64
	Passing                 float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSharpness:            0.7,
		MaxNoise:                0.01,
		MinContrast:             0.3,
		MinBackgroundUniformity: 0.9,
		CategoryPass:            0.8,
		Passing:                 0.8,
	}
}

type Weights struct {
	Dimensions float64
	Background float64
	Face       float64
	Quality    float64
}

func DefaultWeights() Weights {
	return Weights{
		Dimensions: 0.25,
		Background: 0.25,
		Face:       0.30,
		Quality:    0.20,
	}
}

func (w Weights) Sum() float64 {
	return w.Dimensions + w.Background + w.Face + w.Quality
}

// Valid reports whether every weight is non-negative and they sum to 1.
func (w Weights) Valid() bool {
	if w.Dimensions < 0 || w.Background < 0 || w.Face < 0 || w.Quality < 0 {
		return false
	}
	return math.Abs(w.Sum()-1) <= weightSumTolerance
}

// Assessor scores an image against the output requirements. It holds no
// mutable state and is safe for concurrent use.
type Assessor struct {
	outputSize int
	thresholds Thresholds
	weights    Weights
}

type Option func(*Assessor)

func WithThresholds(t Thresholds) Option {
	return func(a *Assessor) { a.thresholds = t }
}

// WithWeights overrides the category weights. Weights that are not a valid
// distribution are discarded by NewAssessor in favor of DefaultWeights.
func WithWeights(w Weights) Option {
	return func(a *Assessor) { a.weights = w }
}

func NewAssessor(outputSize int, opts ...Option) *Assessor {
	if outputSize <= 0 {
		outputSize = DefaultOutputSize
	}
	a := &Assessor{
		outputSize: outputSize,
		thresholds: DefaultThresholds(),
		weights:    DefaultWeights(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if !a.weights.Valid() {
		a.weights = DefaultWeights()
	}
	return a
}

func (a *Assessor) OutputSize() int {
	return a.outputSize
}

// Assess measures img and scores it. face is the primary face in img's
// coordinates, or nil when none was found. profile narrows the head height
// window when present.
func (a *Assessor) Assess(img image.Image, face *domain.FaceCandidate, profile *domain.GeometricProfile) (domain.QualityMetrics, domain.ComplianceResult) {
	m := Measure(img)
	return m, a.Score(m, face, profile)
}

// Score derives a ComplianceResult from already measured metrics.
func (a *Assessor) Score(m domain.QualityMetrics, face *domain.FaceCandidate, profile *domain.GeometricProfile) domain.ComplianceResult {
	lo, hi := a.headWindow(profile)

	cats := domain.CategoryScores{
		Dimensions: a.dimensionScore(m),
		Background: a.backgroundScore(m),
		Face:       a.faceScore(face, m, lo, hi),
		Quality:    a.qualityScore(m),
	}

	score := cats.Dimensions*a.weights.Dimensions +
		cats.Background*a.weights.Background +
		cats.Face*a.weights.Face +
		cats.Quality*a.weights.Quality
	score = math.Round(score*1e6) / 1e6

	return domain.ComplianceResult{
		Score:           score,
		Passing:         score >= a.thresholds.Passing,
		Grade:           Grade(score),
		Categories:      cats,
		Recommendations: a.recommendations(cats, face, m, lo, hi),
	}
}

func (a *Assessor) headWindow(profile *domain.GeometricProfile) (float64, float64) {
	if profile != nil && profile.SampleSize > 0 {
		return profile.HeadHeightWindow()
	}
	return DefaultHeadHeightMin, DefaultHeadHeightMax
}

func (a *Assessor) dimensionScore(m domain.QualityMetrics) float64 {
	if m.Width == a.outputSize && m.Height == a.outputSize {
		return 1
	}
	return 0
}

// backgroundScore ramps linearly from 0 at uniformity 0.5 to 1 at the
// threshold. A threshold at or below 0.5 makes it a step.
func (a *Assessor) backgroundScore(m domain.QualityMetrics) float64 {
	t := a.thresholds.MinBackgroundUniformity
	if m.BackgroundUniformity >= t {
		return 1
	}
	if t <= 0.5 {
		return 0
	}
	return clamp01((m.BackgroundUniformity - 0.5) / (t - 0.5))
}

func (a *Assessor) faceScore(face *domain.FaceCandidate, m domain.QualityMetrics, lo, hi float64) float64 {
	if face == nil || m.Height == 0 {
		return 0
	}

	var score float64
	switch {
	case face.Confidence >= 0.9:
		score += 0.4
	case face.Confidence >= 0.7:
		score += 0.3
	default:
		score += 0.2
	}

	ratio := geometry.ComputeRatios(face.Box, m.Width, m.Height).HeadHeight
	switch {
	case ratio >= lo && ratio <= hi:
		score += 0.4
	case ratio >= lo-sizeTolerance && ratio <= hi+sizeTolerance:
		score += 0.2
	}

	if face.Eyes != nil {
		if eyesLevel(face.Eyes) {
			score += 0.2
		} else {
			score += 0.1
		}
	}

	return math.Min(1, score)
}

func eyesLevel(e *domain.EyePair) bool {
	dx := math.Abs(e.Right.X - e.Left.X)
	if dx == 0 {
		return false
	}
	return math.Abs(e.Right.Y-e.Left.Y)/dx <= eyeLevelTolerance
}

// qualityScore weighs sharpness 50%, noise 25% and contrast 25%.
func (a *Assessor) qualityScore(m domain.QualityMetrics) float64 {
	t := a.thresholds

	sharp := 0.5 * fractionOf(m.SharpnessScore, t.MinSharpness)

	noise := 0.25
	if m.Noise > t.MaxNoise {
		// full penalty once noise is 0.05 above the limit
		noise = 0.25 * clamp01(1-(m.Noise-t.MaxNoise)/0.05)
	}

	contrast := 0.25 * fractionOf(m.Contrast, t.MinContrast)

	return sharp + noise + contrast
}

// fractionOf is v/target clamped to [0,1]; a non-positive target is always met.
func fractionOf(v, target float64) float64 {
	if target <= 0 {
		return 1
	}
	return clamp01(v / target)
}

// recommendations emits one hint per category below CategoryPass, in a
// fixed category order.
func (a *Assessor) recommendations(c domain.CategoryScores, face *domain.FaceCandidate, m domain.QualityMetrics, lo, hi float64) []string {
	pass := a.thresholds.CategoryPass
	recs := []string{}

	if c.Dimensions < pass {
		recs = append(recs, fmt.Sprintf("Resize the photo to exactly %dx%d pixels", a.outputSize, a.outputSize))
	}
	if c.Background < pass {
		recs = append(recs, "Use a plain, evenly lit, light-colored background")
	}
	if c.Face < pass {
		switch {
		case face == nil:
			recs = append(recs, "Make sure one face is clearly visible and facing the camera")
		default:
			ratio := geometry.ComputeRatios(face.Box, m.Width, m.Height).HeadHeight
			if ratio < lo || ratio > hi {
				recs = append(recs, fmt.Sprintf("Adjust framing so the head fills %.0f%%-%.0f%% of the photo height", lo*100, hi*100))
			} else {
				recs = append(recs, "Face the camera directly with both eyes open and visible")
			}
		}
	}
	if c.Quality < pass {
		t := a.thresholds
		switch {
		case m.SharpnessScore < t.MinSharpness:
			recs = append(recs, "Photo is out of focus; hold the camera steady and focus on the face")
		case m.Noise > t.MaxNoise:
			recs = append(recs, "Photo is grainy; take it in brighter light")
		default:
			recs = append(recs, "Increase lighting so the face has more contrast")
		}
	}

	return recs
}

// Grade maps a score to a letter grade.
func Grade(score float64) string {
	switch {
	case score >= 0.9:
		return "A"
	case score >= 0.8:
		return "B"
	case score >= 0.7:
		return "C"
	case score >= 0.6:
		return "D"
	default:
		return "F"
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
