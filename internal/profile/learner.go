package profile

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/audit"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/geometry"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/imageio"
)

// FaceDetector is what the learner needs from detection.Cascade.
type FaceDetector interface {
	Detect(ctx context.Context, img image.Image) []domain.FaceCandidate
}

type Sample struct {
	Path   string                 `json:"path"`
	Ratios domain.GeometricRatios `json:"ratios"`
}

// Warning explains why a corpus file did not contribute a sample.
type Warning struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type Report struct {
	Profile  *domain.GeometricProfile `json:"profile"`
	Scanned  int                      `json:"scanned"`
	Samples  []Sample                 `json:"samples"`
	Warnings []Warning                `json:"warnings"`
}

var corpusExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

type Learner struct {
	detector    FaceDetector
	logger      *slog.Logger
	auditLogger audit.Logger
	concurrency int
	now         func() time.Time
}

type LearnerOption func(*Learner)

func WithConcurrency(n int) LearnerOption {
	return func(l *Learner) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

func WithLearnerClock(now func() time.Time) LearnerOption {
	return func(l *Learner) { l.now = now }
}

func NewLearner(detector FaceDetector, logger *slog.Logger, auditLogger audit.Logger, opts ...LearnerOption) *Learner {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	l := &Learner{
		detector:    detector,
		logger:      logger.With("component", "profile_learner"),
		auditLogger: auditLogger,
		concurrency: runtime.NumCPU(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Learn scans dir for images, keeps those with exactly one detectable face
// and computes the profile from their ratios. Unreadable files and files
// with zero or several faces become warnings. It fails only when ctx is
// cancelled, dir cannot be walked or no sample survives.
func (l *Learner) Learn(ctx context.Context, dir string) (*Report, error) {
	paths, err := corpusFiles(dir)
	if err != nil {
		return nil, err
	}

	type result struct {
		sample  *Sample
		warning *Warning
	}
	results := make([]result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, reason := l.measure(gctx, path)
			if reason != "" {
				results[i].warning = &Warning{Path: path, Reason: reason}
				return nil
			}
			results[i].sample = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}

	report := &Report{Scanned: len(paths), Samples: []Sample{}, Warnings: []Warning{}}
	ratios := make([]domain.GeometricRatios, 0, len(paths))
	for _, r := range results {
		if r.warning != nil {
			l.logger.WarnContext(ctx, "skipping sample", "path", r.warning.Path, "reason", r.warning.Reason)
			report.Warnings = append(report.Warnings, *r.warning)
			continue
		}
		report.Samples = append(report.Samples, *r.sample)
		ratios = append(ratios, r.sample.Ratios)
	}

	p, err := FromSamples(ratios)
	if err != nil {
		return report, err
	}
	p.ID = uuid.New()
	p.CreatedAt = l.now().UTC()
	report.Profile = p

	l.logger.InfoContext(ctx, "profile learned",
		"scanned", report.Scanned,
		"samples", p.SampleSize,
		"warnings", len(report.Warnings),
		"head_height_mean", p.Mean.HeadHeight,
		"head_height_std", p.StdDev.HeadHeight,
	)
	_ = l.auditLogger.Log(ctx, audit.Event{
		EventType: audit.EventProfileLearned,
		Source:    "profile_learner",
		Success:   true,
		Metadata: map[string]string{
			"profile_id":  p.ID.String(),
			"scanned":     fmt.Sprint(report.Scanned),
			"sample_size": fmt.Sprint(p.SampleSize),
			"warnings":    fmt.Sprint(len(report.Warnings)),
		},
	})

	return report, nil
}

// measure returns a sample, or the reason the file was skipped.
func (l *Learner) measure(ctx context.Context, path string) (*Sample, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Sprintf("read failed: %v", err)
	}
	decoded, err := imageio.Decode(data)
	if err != nil {
		return nil, fmt.Sprintf("decode failed: %v", err)
	}

	faces := l.detector.Detect(ctx, decoded.Image)
	switch len(faces) {
	case 0:
		return nil, "no face detected"
	case 1:
	default:
		return nil, fmt.Sprintf("%d faces detected", len(faces))
	}

	b := decoded.Image.Bounds()
	return &Sample{
		Path:   path,
		Ratios: geometry.ComputeRatios(faces[0].Box, b.Dx(), b.Dy()),
	}, ""
}

func corpusFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if corpusExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
