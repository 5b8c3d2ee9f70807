package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/imageio"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/service"
)

const (
	defaultMaxUploadBytes = 15 * 1024 * 1024 // 15MB

	formatJSON = "json"
	formatJPEG = "jpeg"
)

// PhotoService is the pipeline behind the photo endpoints
type PhotoService interface {
	Process(ctx context.Context, data []byte, opts service.ProcessOptions) (*service.PhotoReport, error)
	Assess(ctx context.Context, data []byte, requestID string) (*service.AssessReport, error)
}

// PhotoHandler handles photo upload requests
type PhotoHandler struct {
	service        PhotoService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewPhotoHandler creates a new PhotoHandler instance
func NewPhotoHandler(service PhotoService, maxUploadBytes int64, logger *slog.Logger) *PhotoHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &PhotoHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// ProcessResponse response for the process endpoint
type ProcessResponse struct {
	*service.PhotoReport
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

// Process POST /v1/photos - crop, assess and enhance an uploaded photo
func (h *PhotoHandler) Process(c *fiber.Ctx) error {
	// 1. Parse options before touching the upload
	opts, format, err := parseProcessOptions(c)
	if err != nil {
		return err
	}
	opts.RequestID = middleware.RequestID(c)

	// 2. Extract image bytes
	imageBytes, err := h.readImage(c)
	if err != nil {
		return fmt.Errorf("process photo: %w", err)
	}

	// 3. Run the pipeline
	report, err := h.service.Process(c.Context(), imageBytes, opts)
	if err != nil {
		return err
	}

	// 4. Encode the final image
	out, err := imageio.JPEGBytes(report.Processing.Image, imageio.DefaultJPEGQuality)
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	if format == formatJPEG {
		setReportHeaders(c, report)
		c.Set(fiber.HeaderContentType, imageio.MimeJPEG)
		return c.Send(out)
	}

	return c.JSON(ProcessResponse{
		PhotoReport: report,
		Image:       base64.StdEncoding.EncodeToString(out),
		MimeType:    imageio.MimeJPEG,
	})
}

// Assess POST /v1/photos/assess - score an uploaded photo as it is
func (h *PhotoHandler) Assess(c *fiber.Ctx) error {
	imageBytes, err := h.readImage(c)
	if err != nil {
		return fmt.Errorf("assess photo: %w", err)
	}

	report, err := h.service.Assess(c.Context(), imageBytes, middleware.RequestID(c))
	if err != nil {
		return err
	}

	return c.JSON(report)
}

// readImage extracts the "image" form file, enforcing the upload limit
func (h *PhotoHandler) readImage(c *fiber.Ctx) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrMissingImage.WithError(err)
	}

	if file.Size == 0 {
		return nil, domain.ErrInvalidImage.WithError(errors.New("empty file"))
	}
	if file.Size > h.maxUploadBytes {
		return nil, domain.ErrImageTooLarge
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	return imageio.ReadAll(f, h.maxUploadBytes)
}

func parseProcessOptions(c *fiber.Ctx) (service.ProcessOptions, string, error) {
	var opts service.ProcessOptions

	if v := strings.TrimSpace(c.FormValue("remove_background")); v != "" {
		remove, err := strconv.ParseBool(v)
		if err != nil {
			return opts, "", domain.ErrValidationFailed.WithError(fmt.Errorf("remove_background: %w", err))
		}
		opts.RemoveBackground = remove
	}

	switch p := service.MultiFacePolicy(strings.ToLower(strings.TrimSpace(c.FormValue("multi_face_policy")))); p {
	case "", service.MultiFaceContinue, service.MultiFaceReject:
		opts.MultiFacePolicy = p
	default:
		return opts, "", domain.ErrValidationFailed.WithError(fmt.Errorf("multi_face_policy must be continue or reject, got %q", p))
	}

	format := strings.ToLower(strings.TrimSpace(c.FormValue("format", c.Query("format"))))
	switch format {
	case "":
		format = formatJSON
	case formatJSON, formatJPEG:
	default:
		return opts, "", domain.ErrValidationFailed.WithError(fmt.Errorf("format must be json or jpeg, got %q", format))
	}

	return opts, format, nil
}

// setReportHeaders summarizes the report for clients that asked for the
// raw JPEG
func setReportHeaders(c *fiber.Ctx, report *service.PhotoReport) {
	res := report.Processing
	c.Set("X-Compliance-Score", strconv.FormatFloat(res.Compliance.Score, 'f', 4, 64))
	c.Set("X-Compliance-Grade", res.Compliance.Grade)
	c.Set("X-Compliance-Passing", strconv.FormatBool(res.Compliance.Passing))
	c.Set("X-Processing-Outcome", string(res.Outcome))
	c.Set("X-Improvement-Percentage", strconv.FormatFloat(res.ImprovementPercentage, 'f', 2, 64))
	c.Set("X-Face-Selection", string(report.Selection.Status))
	c.Set("X-Needs-Review", strconv.FormatBool(report.NeedsReview))
	c.Set("X-Background-Removed", strconv.FormatBool(report.BackgroundRemoved))
}
