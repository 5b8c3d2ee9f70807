package service

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/audit"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/background"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/detection"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/geometry"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/imageio"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/provider"
)

type FaceDetector interface {
	Detect(ctx context.Context, img image.Image) []domain.FaceCandidate
}

type ProfileProvider interface {
	Current(ctx context.Context) *domain.GeometricProfile
}

type Assessor interface {
	Assess(img image.Image, face *domain.FaceCandidate, profile *domain.GeometricProfile) (domain.QualityMetrics, domain.ComplianceResult)
	OutputSize() int
}

type EnhancementRunner interface {
	Run(img image.Image, face *domain.FaceCandidate, profile *domain.GeometricProfile) domain.ProcessingResult
}

type MultiFacePolicy string

const (
	MultiFaceContinue MultiFacePolicy = "continue"
	MultiFaceReject   MultiFacePolicy = "reject"
)

type ProcessOptions struct {
	RemoveBackground bool
	// MultiFacePolicy overrides the service default when set
	MultiFacePolicy MultiFacePolicy
	RequestID       string
}

// PhotoReport is everything the caller needs to present a processed photo.
// Analysis sits next to Processing and never changes its score.
type PhotoReport struct {
	Orientation       int                     `json:"exif_orientation"`
	SourceWidth       int                     `json:"source_width"`
	SourceHeight      int                     `json:"source_height"`
	Selection         domain.FaceSelection    `json:"selection"`
	NeedsReview       bool                    `json:"needs_review"`
	Ratios            *domain.GeometricRatios `json:"ratios,omitempty"`
	Crop              domain.CropBox          `json:"crop"`
	ProfileID         *uuid.UUID              `json:"profile_id,omitempty"`
	BackgroundRemoved bool                    `json:"background_removed"`
	BackgroundError   string                  `json:"background_error,omitempty"`
	Processing        domain.ProcessingResult `json:"processing"`
	Analysis          *domain.FaceAnalysis    `json:"analysis,omitempty"`
	AnalysisError     string                  `json:"analysis_error,omitempty"`
	Duration          time.Duration           `json:"processing_time_ns"`
}

// AssessReport scores an upload as it is, without cropping or enhancing.
type AssessReport struct {
	Selection     domain.FaceSelection    `json:"selection"`
	NeedsReview   bool                    `json:"needs_review"`
	Metrics       domain.QualityMetrics   `json:"metrics"`
	Compliance    domain.ComplianceResult `json:"compliance"`
	Analysis      *domain.FaceAnalysis    `json:"analysis,omitempty"`
	AnalysisError string                  `json:"analysis_error,omitempty"`
}

type PhotoService struct {
	detector    FaceDetector
	planner     *geometry.CropPlanner
	assessor    Assessor
	enhancer    EnhancementRunner
	isolator    background.Isolator
	analyzer    provider.FaceAnalyzer
	profiles    ProfileProvider
	auditLogger audit.Logger
	logger      *slog.Logger
	policy      MultiFacePolicy
	jobs        *semaphore.Weighted
	maxPixels   int
}

type Option func(*PhotoService)

func WithIsolator(i background.Isolator) Option {
	return func(s *PhotoService) {
		if i != nil {
			s.isolator = i
		}
	}
}

// WithAnalyzer enables the qualitative analysis capability. A nil
// analyzer leaves it disabled.
func WithAnalyzer(a provider.FaceAnalyzer) Option {
	return func(s *PhotoService) { s.analyzer = a }
}

func WithAuditLogger(l audit.Logger) Option {
	return func(s *PhotoService) {
		if l != nil {
			s.auditLogger = l
		}
	}
}

func WithMultiFacePolicy(p MultiFacePolicy) Option {
	return func(s *PhotoService) {
		if p != "" {
			s.policy = p
		}
	}
}

// WithMaxConcurrentJobs bounds how many pipelines run at once.
func WithMaxConcurrentJobs(n int) Option {
	return func(s *PhotoService) {
		if n > 0 {
			s.jobs = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithMaxImagePixels rejects uploads whose width*height exceeds n before
// they are decoded.
func WithMaxImagePixels(n int) Option {
	return func(s *PhotoService) {
		if n > 0 {
			s.maxPixels = n
		}
	}
}

func NewPhotoService(
	detector FaceDetector,
	planner *geometry.CropPlanner,
	assessor Assessor,
	enhancer EnhancementRunner,
	profiles ProfileProvider,
	logger *slog.Logger,
	opts ...Option,
) *PhotoService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PhotoService{
		detector:    detector,
		planner:     planner,
		assessor:    assessor,
		enhancer:    enhancer,
		isolator:    background.Noop{},
		profiles:    profiles,
		auditLogger: &audit.NoOpLogger{},
		logger:      logger.With("component", "photo_service"),
		policy:      MultiFaceContinue,
		maxPixels:   imageio.DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// acquire takes a job slot, giving up with ErrServerBusy when ctx ends first.
func (s *PhotoService) acquire(ctx context.Context) (func(), error) {
	if s.jobs == nil {
		return func() {}, nil
	}
	if err := s.jobs.Acquire(ctx, 1); err != nil {
		return nil, domain.ErrServerBusy.WithError(err)
	}
	return func() { s.jobs.Release(1) }, nil
}

type analysisResult struct {
	analysis *domain.FaceAnalysis
	err      error
}

// analyze runs the analyzer alongside the pipeline. The returned channel
// yields exactly one value, or nothing when analysis is disabled.
func (s *PhotoService) analyze(ctx context.Context, data []byte) <-chan analysisResult {
	if s.analyzer == nil {
		return nil
	}
	ch := make(chan analysisResult, 1)
	go func() {
		a, err := s.analyzer.AnalyzeFace(ctx, data)
		ch <- analysisResult{analysis: a, err: err}
	}()
	return ch
}

func (s *PhotoService) collect(ch <-chan analysisResult) (*domain.FaceAnalysis, string) {
	if ch == nil {
		return nil, ""
	}
	r := <-ch
	if r.err != nil {
		s.logger.Warn("face analysis failed", "error", r.err)
		return nil, r.err.Error()
	}
	return r.analysis, ""
}

// Process runs the full pipeline on an uploaded photo. Only undecodable
// input, a rejected multi-face photo or an exhausted job queue are errors;
// every other outcome is reported.
func (s *PhotoService) Process(ctx context.Context, data []byte, opts ProcessOptions) (*PhotoReport, error) {
	start := time.Now()

	decoded, err := imageio.Decode(data, imageio.WithMaxPixels(s.maxPixels))
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	actx, cancelAnalysis := context.WithCancel(ctx)
	defer cancelAnalysis()
	analysisCh := s.analyze(actx, data)

	img := decoded.Image
	b := img.Bounds()
	report := &PhotoReport{
		Orientation:  decoded.Orientation,
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
	}

	faces := s.detector.Detect(ctx, img)
	sel := detection.SelectPrimary(faces, b.Dx(), b.Dy())
	report.Selection = sel
	report.NeedsReview = sel.NeedsReview()

	policy := s.policy
	if opts.MultiFacePolicy != "" {
		policy = opts.MultiFacePolicy
	}
	if sel.Status == domain.SelectionMultipleFaces && policy == MultiFaceReject {
		s.logAudit(ctx, opts.RequestID, audit.EventPhotoProcessed, false, domain.ErrMultipleFaces.Message, map[string]string{
			"faces": fmt.Sprint(len(sel.Candidates)),
		})
		return nil, domain.ErrMultipleFaces
	}

	profile := s.profiles.Current(ctx)
	if profile != nil {
		id := profile.ID
		report.ProfileID = &id
	}

	if sel.Primary != nil {
		r := geometry.ComputeRatios(sel.Primary.Box, b.Dx(), b.Dy())
		report.Ratios = &r
	}

	size := s.assessor.OutputSize()
	crop := s.planner.Plan(sel.Primary, b.Dx(), b.Dy(), profile)
	report.Crop = crop
	var out image.Image = cropAndResize(img, crop, size)

	var face *domain.FaceCandidate
	if sel.Primary != nil {
		projected := geometry.ProjectCandidate(*sel.Primary, crop, size)
		face = &projected
	}

	if opts.RemoveBackground {
		out, report.BackgroundRemoved, report.BackgroundError = s.isolate(ctx, out, opts.RequestID)
	}

	report.Processing = s.enhancer.Run(out, face, profile)
	report.Analysis, report.AnalysisError = s.collect(analysisCh)
	report.Duration = time.Since(start)

	res := report.Processing
	s.logger.InfoContext(ctx, "photo processed",
		"request_id", opts.RequestID,
		"selection", sel.Status,
		"outcome", res.Outcome,
		"score", res.Compliance.Score,
		"grade", res.Compliance.Grade,
		"attempts", len(res.Attempts),
		"duration_ms", report.Duration.Milliseconds(),
	)
	s.logAudit(ctx, opts.RequestID, audit.EventPhotoProcessed, true, "", map[string]string{
		"selection":   string(sel.Status),
		"outcome":     string(res.Outcome),
		"score":       fmt.Sprintf("%.4f", res.Compliance.Score),
		"grade":       res.Compliance.Grade,
		"attempts":    fmt.Sprint(len(res.Attempts)),
		"improvement": fmt.Sprintf("%.2f", res.ImprovementPercentage),
		"review":      fmt.Sprint(report.NeedsReview),
	})

	return report, nil
}

// isolate calls the background capability and falls back to img on any
// failure, including a result of the wrong size.
func (s *PhotoService) isolate(ctx context.Context, img image.Image, requestID string) (image.Image, bool, string) {
	out, err := s.isolator.Isolate(ctx, img)
	if err == nil && out != nil && out.Bounds().Size() != img.Bounds().Size() {
		err = fmt.Errorf("isolated image is %v, want %v", out.Bounds().Size(), img.Bounds().Size())
	}
	if err == nil && out == nil {
		err = fmt.Errorf("isolator returned no image")
	}
	if err != nil {
		s.logger.WarnContext(ctx, "background isolation failed, keeping original", "error", err)
		s.logAudit(ctx, requestID, audit.EventBackgroundFailed, false, err.Error(), nil)
		return img, false, err.Error()
	}
	return out, true, ""
}

// Assess scores an upload without cropping or enhancing it.
func (s *PhotoService) Assess(ctx context.Context, data []byte, requestID string) (*AssessReport, error) {
	decoded, err := imageio.Decode(data, imageio.WithMaxPixels(s.maxPixels))
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	actx, cancelAnalysis := context.WithCancel(ctx)
	defer cancelAnalysis()
	analysisCh := s.analyze(actx, data)

	img := decoded.Image
	b := img.Bounds()
	sel := detection.SelectPrimary(s.detector.Detect(ctx, img), b.Dx(), b.Dy())
	metrics, compliance := s.assessor.Assess(img, sel.Primary, s.profiles.Current(ctx))

	report := &AssessReport{
		Selection:   sel,
		NeedsReview: sel.NeedsReview(),
		Metrics:     metrics,
		Compliance:  compliance,
	}
	report.Analysis, report.AnalysisError = s.collect(analysisCh)

	s.logAudit(ctx, requestID, audit.EventPhotoAssessed, true, "", map[string]string{
		"selection": string(sel.Status),
		"score":     fmt.Sprintf("%.4f", compliance.Score),
		"grade":     compliance.Grade,
	})
	return report, nil
}

func (s *PhotoService) logAudit(ctx context.Context, requestID string, t audit.EventType, success bool, errMsg string, meta map[string]string) {
	_ = s.auditLogger.Log(ctx, audit.Event{
		RequestID: requestID,
		EventType: t,
		Source:    "photo_service",
		Success:   success,
		Error:     errMsg,
		Metadata:  meta,
	})
}

func cropAndResize(img image.Image, crop domain.CropBox, size int) *image.NRGBA {
	cropped := imaging.Crop(img, crop.Rect().Add(img.Bounds().Min))
	return imaging.Resize(cropped, size, size, imaging.Lanczos)
}
