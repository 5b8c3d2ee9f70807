package rekognition

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/audit"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100

	providerName = "rekognition"
)

// Provider implements provider.FaceProvider and provider.FaceAnalyzer using AWS Rekognition
type Provider struct {
	client      *Client
	config      Config
	auditLogger audit.Logger
}

// ProviderOption defines optional configuration for Provider
type ProviderOption func(*Provider)

// WithAuditLogger sets the audit logger for the provider
func WithAuditLogger(logger audit.Logger) ProviderOption {
	return func(p *Provider) {
		p.auditLogger = logger
	}
}

var (
	_ provider.FaceProvider = (*Provider)(nil)
	_ provider.FaceAnalyzer = (*Provider)(nil)
)

// NewProvider creates a new Rekognition provider
func NewProvider(ctx context.Context, cfg Config, opts ...ProviderOption) (*Provider, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}

	return newProvider(client, cfg, opts...), nil
}

func newProvider(client *Client, cfg Config, opts ...ProviderOption) *Provider {
	p := &Provider{
		client: client,
		config: cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// logAudit logs an audit event if an audit logger is configured
// Audit failure does not affect the operation (fire-and-forget)
func (p *Provider) logAudit(ctx context.Context, eventType audit.EventType, success bool, err error, metadata map[string]string) {
	if p.auditLogger == nil {
		return
	}

	event := audit.Event{
		EventType: eventType,
		Source:    providerName,
		Success:   success,
		Metadata:  metadata,
	}

	if err != nil {
		event.Error = err.Error()
	}

	_ = p.auditLogger.Log(ctx, event)
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

func (p *Provider) faceDetails(ctx context.Context, eventType audit.EventType, image []byte) ([]types.FaceDetail, error) {
	meta := map[string]string{"image_size": strconv.Itoa(len(image))}

	if err := validateImage(image); err != nil {
		p.logAudit(ctx, eventType, false, err, meta)
		return nil, err
	}

	details, err := p.client.DetectFaceDetails(ctx, image)
	if err != nil {
		p.logAudit(ctx, eventType, false, err, meta)
		return nil, err
	}

	meta["faces_count"] = strconv.Itoa(len(details))
	p.logAudit(ctx, eventType, true, nil, meta)

	return details, nil
}

// DetectFaces detects faces in an image using AWS Rekognition DetectFaces API
// Returns an empty slice if no faces are detected (not an error)
func (p *Provider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	details, err := p.faceDetails(ctx, audit.EventFaceDetected, image)
	if err != nil {
		return nil, err
	}

	faces := make([]provider.DetectedFace, 0, len(details))
	for _, detail := range details {
		if detail.BoundingBox == nil {
			continue
		}
		face := provider.DetectedFace{
			BoundingBox: provider.BoundingBox{
				X:      f32(detail.BoundingBox.Left),
				Y:      f32(detail.BoundingBox.Top),
				Width:  f32(detail.BoundingBox.Width),
				Height: f32(detail.BoundingBox.Height),
			},
			// Rekognition reports confidence on a 0-100 scale
			Confidence:   f32(detail.Confidence) / 100.0,
			QualityScore: calculateQualityScore(detail.Quality),
		}
		if detail.EyesOpen != nil {
			open := detail.EyesOpen.Value
			face.EyesOpen = &open
		}
		if detail.Pose != nil {
			face.Pose = &provider.Pose{
				Pitch: f32(detail.Pose.Pitch),
				Roll:  f32(detail.Pose.Roll),
				Yaw:   f32(detail.Pose.Yaw),
			}
		}
		for _, lm := range detail.Landmarks {
			pt := &provider.Point{X: f32(lm.X), Y: f32(lm.Y)}
			switch lm.Type {
			case types.LandmarkTypeEyeLeft:
				face.LeftEye = pt
			case types.LandmarkTypeEyeRight:
				face.RightEye = pt
			}
		}
		faces = append(faces, face)
	}

	return faces, nil
}

// AnalyzeFace reports the qualitative issues of the most prominent face:
// closed eyes, sunglasses, open mouth, head pose and image quality.
func (p *Provider) AnalyzeFace(ctx context.Context, image []byte) (*domain.FaceAnalysis, error) {
	details, err := p.faceDetails(ctx, audit.EventFaceAnalyzed, image)
	if err != nil {
		return nil, err
	}

	analysis := &domain.FaceAnalysis{Provider: providerName, Issues: []string{}}

	switch {
	case len(details) == 0:
		analysis.Issues = append(analysis.Issues, "no face detected")
	case len(details) > 1:
		analysis.Issues = append(analysis.Issues, "multiple faces detected")
	}

	if len(details) > 0 {
		analysis.Issues = append(analysis.Issues, p.detailIssues(largestFace(details))...)
	}

	analysis.Compliant = len(analysis.Issues) == 0
	return analysis, nil
}

func (p *Provider) detailIssues(d types.FaceDetail) []string {
	var issues []string

	if d.EyesOpen != nil && !d.EyesOpen.Value {
		issues = append(issues, "eyes appear closed")
	}
	if d.Sunglasses != nil && d.Sunglasses.Value {
		issues = append(issues, "sunglasses detected")
	}
	if d.MouthOpen != nil && d.MouthOpen.Value {
		issues = append(issues, "mouth is open")
	}
	if d.FaceOccluded != nil && d.FaceOccluded.Value {
		issues = append(issues, "face is partially covered")
	}
	if d.Pose != nil {
		if math.Abs(f32(d.Pose.Yaw)) > p.config.MaxPoseDegrees {
			issues = append(issues, "head turned to the side")
		}
		if math.Abs(f32(d.Pose.Pitch)) > p.config.MaxPoseDegrees {
			issues = append(issues, "head tilted up or down")
		}
		if math.Abs(f32(d.Pose.Roll)) > p.config.MaxRollDegrees {
			issues = append(issues, "head is tilted")
		}
	}
	if d.Quality != nil {
		if d.Quality.Brightness != nil && f32(d.Quality.Brightness) < p.config.MinQuality {
			issues = append(issues, "face is underexposed")
		}
		if d.Quality.Sharpness != nil && f32(d.Quality.Sharpness) < p.config.MinQuality {
			issues = append(issues, "face is blurry")
		}
	}

	return issues
}

func largestFace(details []types.FaceDetail) types.FaceDetail {
	best := details[0]
	bestArea := -1.0
	for _, d := range details {
		if d.BoundingBox == nil {
			continue
		}
		area := f32(d.BoundingBox.Width) * f32(d.BoundingBox.Height)
		if area > bestArea {
			best, bestArea = d, area
		}
	}
	return best
}

// calculateQualityScore computes an overall quality score from Rekognition quality metrics
func calculateQualityScore(quality *types.ImageQuality) float64 {
	if quality == nil {
		return 0.0
	}

	// brightness and sharpness come as 0-100
	brightness := f32(quality.Brightness) / 100.0
	sharpness := f32(quality.Sharpness) / 100.0

	return brightness*0.3 + sharpness*0.7
}

func f32(v *float32) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}
