package enhance

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// MaxIterations is the number of enhancement passes allowed after the
// initial assessment.
const MaxIterations = 2

// Assessor scores an image. quality.Assessor satisfies it.
type Assessor interface {
	Assess(img image.Image, face *domain.FaceCandidate, profile *domain.GeometricProfile) (domain.QualityMetrics, domain.ComplianceResult)
}

// Controller runs the bounded assess/enhance loop:
//
//	Initial -> Assessed -> Passing
//	                    -> Enhancing -> Assessed
//	                    -> Exhausted
type Controller struct {
	assessor      Assessor
	enhancer      Enhancer
	maxIterations int
	logger        *slog.Logger
	now           func() time.Time
}

type ControllerOption func(*Controller)

// WithMaxIterations lowers the iteration ceiling. Values above
// MaxIterations are capped.
func WithMaxIterations(n int) ControllerOption {
	return func(c *Controller) {
		c.maxIterations = max(0, min(n, MaxIterations))
	}
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

func NewController(assessor Assessor, enhancer Enhancer, logger *slog.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		assessor:      assessor,
		enhancer:      enhancer,
		maxIterations: MaxIterations,
		logger:        logger.With("component", "enhance"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type state struct {
	img        image.Image
	metrics    domain.QualityMetrics
	compliance domain.ComplianceResult
}

// Run assesses img and enhances it until it passes or the iteration
// ceiling is hit. face must be in img's coordinates. The returned image is
// the best scoring state observed; ties keep the earliest.
func (c *Controller) Run(img image.Image, face *domain.FaceCandidate, profile *domain.GeometricProfile) domain.ProcessingResult {
	start := c.now()
	m, res := c.assessor.Assess(img, face, profile)
	current := state{img: img, metrics: m, compliance: res}
	best, bestAttempt := current, 0

	attempts := []domain.ProcessingAttempt{{
		Number:     0,
		Strategy:   domain.StrategyNone,
		Metrics:    m,
		Compliance: res,
		Duration:   c.now().Sub(start),
	}}

	for i := 1; i <= c.maxIterations && !current.compliance.Passing; i++ {
		start = c.now()
		strategy := SelectStrategy(current.compliance.Score)
		attempt := domain.ProcessingAttempt{Number: i, Strategy: strategy}

		next, ops, err := c.enhancer.Enhance(current.img, strategy, current.metrics)
		attempt.Operations = ops
		if reason := rejectReason(current.img, next, err); reason != "" {
			c.logger.Warn("enhancement rejected",
				"attempt", i,
				"strategy", strategy,
				"reason", reason,
			)
			attempt.Rejected = true
			attempt.RejectReason = reason
			attempt.Metrics = current.metrics
			attempt.Compliance = current.compliance
			attempt.Duration = c.now().Sub(start)
			attempts = append(attempts, attempt)
			continue
		}

		m, res := c.assessor.Assess(next, face, profile)
		current = state{img: next, metrics: m, compliance: res}
		attempt.Metrics = m
		attempt.Compliance = res
		attempt.Duration = c.now().Sub(start)
		attempts = append(attempts, attempt)

		c.logger.Debug("enhancement attempt",
			"attempt", i,
			"strategy", strategy,
			"score", res.Score,
			"passing", res.Passing,
		)

		if res.Score > best.compliance.Score {
			best, bestAttempt = current, i
		}
	}

	outcome := domain.OutcomeExhausted
	if best.compliance.Passing {
		outcome = domain.OutcomePassing
	}

	return domain.ProcessingResult{
		Image:                 best.img,
		Outcome:               outcome,
		BestAttempt:           bestAttempt,
		Compliance:            best.compliance,
		Attempts:              attempts,
		ImprovementPercentage: improvement(attempts[0].Compliance.Score, best.compliance.Score),
	}
}

func rejectReason(prev, next image.Image, err error) string {
	if err != nil {
		return err.Error()
	}
	if next == nil {
		return "enhancer returned no image"
	}
	pb, nb := prev.Bounds(), next.Bounds()
	if pb.Dx() != nb.Dx() || pb.Dy() != nb.Dy() {
		return fmt.Sprintf("dimensions changed from %dx%d to %dx%d", pb.Dx(), pb.Dy(), nb.Dx(), nb.Dy())
	}
	return ""
}

// improvement is the relative gain of final over initial, in percent,
// rounded to two decimals.
func improvement(initial, final float64) float64 {
	if initial <= 0 {
		if final > 0 {
			return 100
		}
		return 0
	}
	return math.Round((final-initial)/initial*10000) / 100
}
