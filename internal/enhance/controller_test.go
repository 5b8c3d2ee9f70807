package enhance

import (
	"errors"
	"image"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/quality"
)

// MockEnhancer is a testify mock of Enhancer
type MockEnhancer struct {
	mock.Mock
}

func (m *MockEnhancer) Enhance(img image.Image, strategy domain.Strategy, metrics domain.QualityMetrics) (image.Image, []string, error) {
	args := m.Called(img, strategy, metrics)
	var out image.Image
	if v := args.Get(0); v != nil {
		out = v.(image.Image)
	}
	var ops []string
	if v := args.Get(1); v != nil {
		ops = v.([]string)
	}
	return out, ops, args.Error(2)
}

// scriptedAssessor returns the queued scores in order and remembers every
// image it was given.
type scriptedAssessor struct {
	scores []float64
	seen   []image.Image
}

func (s *scriptedAssessor) Assess(img image.Image, _ *domain.FaceCandidate, _ *domain.GeometricProfile) (domain.QualityMetrics, domain.ComplianceResult) {
	score := s.scores[len(s.seen)]
	s.seen = append(s.seen, img)
	b := img.Bounds()
	return domain.QualityMetrics{Width: b.Dx(), Height: b.Dy()}, domain.ComplianceResult{
		Score:   score,
		Passing: score >= 0.8,
		Grade:   quality.Grade(score),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newImage(size int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, size, size))
}

func TestController_PassesWithoutEnhancement(t *testing.T) {
	assessor := &scriptedAssessor{scores: []float64{0.85}}
	enhancer := &MockEnhancer{}
	img := newImage(600)

	res := NewController(assessor, enhancer, discardLogger()).Run(img, nil, nil)

	assert.Equal(t, domain.OutcomePassing, res.Outcome)
	assert.Equal(t, 0, res.BestAttempt)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, domain.StrategyNone, res.Attempts[0].Strategy)
	assert.Same(t, img, res.Image)
	assert.Equal(t, 0.0, res.ImprovementPercentage)
	enhancer.AssertNotCalled(t, "Enhance", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_ExhaustedReturnsBestAttempt(t *testing.T) {
	assessor := &scriptedAssessor{scores: []float64{0.45, 0.70, 0.60}}
	enhancer := &MockEnhancer{}
	initial, first, second := newImage(600), newImage(600), newImage(600)
	enhancer.On("Enhance", initial, domain.StrategyStandard, mock.Anything).
		Return(first, []string{"sharpen", "contrast"}, nil).Once()
	enhancer.On("Enhance", first, domain.StrategyMinimal, mock.Anything).
		Return(second, []string{"sharpen"}, nil).Once()

	res := NewController(assessor, enhancer, discardLogger()).Run(initial, nil, nil)

	assert.Equal(t, domain.OutcomeExhausted, res.Outcome)
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, domain.StrategyStandard, res.Attempts[1].Strategy)
	assert.Equal(t, []string{"sharpen", "contrast"}, res.Attempts[1].Operations)
	assert.Equal(t, domain.StrategyMinimal, res.Attempts[2].Strategy)
	assert.Equal(t, 1, res.BestAttempt)
	assert.Same(t, first, res.Image)
	assert.InDelta(t, 0.70, res.Compliance.Score, 1e-9)
	assert.InDelta(t, 55.56, res.ImprovementPercentage, 1e-9)
	enhancer.AssertExpectations(t)
}

func TestController_StopsOnceEnhancementPasses(t *testing.T) {
	assessor := &scriptedAssessor{scores: []float64{0.5, 0.85}}
	enhancer := &MockEnhancer{}
	initial, enhanced := newImage(600), newImage(600)
	enhancer.On("Enhance", initial, domain.StrategyStandard, mock.Anything).
		Return(enhanced, []string{"sharpen", "contrast"}, nil).Once()

	res := NewController(assessor, enhancer, discardLogger()).Run(initial, nil, nil)

	assert.Equal(t, domain.OutcomePassing, res.Outcome)
	assert.Len(t, res.Attempts, 2)
	assert.Same(t, enhanced, res.Image)
	enhancer.AssertExpectations(t)
}

func TestController_NeverExceedsIterationCeiling(t *testing.T) {
	assessor := &scriptedAssessor{scores: []float64{0.1, 0.05, 0.02}}
	enhancer := &MockEnhancer{}
	enhancer.On("Enhance", mock.Anything, domain.StrategyFull, mock.Anything).
		Return(newImage(600), []string{"denoise", "sharpen", "contrast"}, nil)

	res := NewController(assessor, enhancer, discardLogger()).Run(newImage(600), nil, nil)

	assert.Equal(t, domain.OutcomeExhausted, res.Outcome)
	assert.Len(t, res.Attempts, 1+MaxIterations)
	assert.Equal(t, 0, res.BestAttempt)
	enhancer.AssertNumberOfCalls(t, "Enhance", MaxIterations)
}

func TestController_RejectsDimensionChange(t *testing.T) {
	assessor := &scriptedAssessor{scores: []float64{0.4}}
	enhancer := &MockEnhancer{}
	initial := newImage(600)
	initial.Pix[0] = 42
	enhancer.On("Enhance", initial, mock.Anything, mock.Anything).
		Return(image.NewNRGBA(image.Rect(0, 0, 600, 601)), []string{"sharpen"}, nil)

	res := NewController(assessor, enhancer, discardLogger()).Run(initial, nil, nil)

	require.Len(t, res.Attempts, 3)
	for _, a := range res.Attempts[1:] {
		assert.True(t, a.Rejected)
		assert.Contains(t, a.RejectReason, "600x601")
		assert.InDelta(t, 0.4, a.Compliance.Score, 1e-9)
	}
	assert.Same(t, initial, res.Image)
	assert.Equal(t, uint8(42), res.Image.(*image.NRGBA).Pix[0])
	assert.Len(t, assessor.seen, 1)
}

func TestController_RejectsEnhancerError(t *testing.T) {
	assessor := &scriptedAssessor{scores: []float64{0.7}}
	enhancer := &MockEnhancer{}
	enhancer.On("Enhance", mock.Anything, domain.StrategyMinimal, mock.Anything).
		Return(nil, nil, errors.New("boom"))

	res := NewController(assessor, enhancer, discardLogger(), WithMaxIterations(1)).Run(newImage(600), nil, nil)

	require.Len(t, res.Attempts, 2)
	assert.True(t, res.Attempts[1].Rejected)
	assert.Equal(t, "boom", res.Attempts[1].RejectReason)
	assert.Equal(t, domain.OutcomeExhausted, res.Outcome)
}

func TestWithMaxIterations_IsCapped(t *testing.T) {
	c := NewController(&scriptedAssessor{}, &MockEnhancer{}, nil, WithMaxIterations(10))
	assert.Equal(t, MaxIterations, c.maxIterations)
}

func TestController_WithRealAssessor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 120))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}

	c := NewController(quality.NewAssessor(120), NewImagingEnhancer(), discardLogger())
	res := c.Run(img, nil, nil)

	assert.LessOrEqual(t, len(res.Attempts), 1+MaxIterations)
	assert.Equal(t, img.Bounds().Size(), res.Image.Bounds().Size())
	for _, a := range res.Attempts {
		assert.False(t, a.Rejected)
		assert.Equal(t, 120, a.Metrics.Width)
	}
}

func TestImprovement(t *testing.T) {
	assert.Equal(t, 0.0, improvement(0, 0))
	assert.Equal(t, 100.0, improvement(0, 0.5))
	assert.Equal(t, 50.0, improvement(0.4, 0.6))
}
