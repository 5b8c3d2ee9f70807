package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/service"
)

// MockPhotoService is a mock implementation of PhotoService
type MockPhotoService struct {
	mock.Mock
}

func (m *MockPhotoService) Process(ctx context.Context, data []byte, opts service.ProcessOptions) (*service.PhotoReport, error) {
	args := m.Called(ctx, data, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PhotoReport), args.Error(1)
}

func (m *MockPhotoService) Assess(ctx context.Context, data []byte, requestID string) (*service.AssessReport, error) {
	args := m.Called(ctx, data, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AssessReport), args.Error(1)
}

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createMultipartRequest builds a form with an optional image and fields
func createMultipartRequest(t *testing.T, imageContent []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}

	if imageContent != nil {
		part, err := writer.CreateFormFile("image", "photo.jpg")
		require.NoError(t, err)
		_, err = part.Write(imageContent)
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func createTestApp(h *PhotoHandler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(testLogger())})
	app.Post("/v1/photos", h.Process)
	app.Post("/v1/photos/assess", h.Assess)
	return app
}

func sampleReport() *service.PhotoReport {
	out := image.NewNRGBA(image.Rect(0, 0, 600, 600))
	for i := range out.Pix {
		out.Pix[i] = 0xee
	}
	return &service.PhotoReport{
		Selection: domain.FaceSelection{Status: domain.SelectionSingleFace},
		Crop:      domain.CropBox{X: 84, Y: 100, Size: 833},
		Processing: domain.ProcessingResult{
			Image:                 out,
			Outcome:               domain.OutcomePassing,
			ImprovementPercentage: 12.5,
			Compliance: domain.ComplianceResult{
				Score:   0.9125,
				Passing: true,
				Grade:   "A",
			},
		},
	}
}

func uploadBytes() []byte {
	return []byte("fake-image-bytes")
}

func TestPhotoHandler_Process(t *testing.T) {
	t.Run("returns json report with encoded image", func(t *testing.T) {
		svc := new(MockPhotoService)
		svc.On("Process", mock.Anything, uploadBytes(), service.ProcessOptions{RemoveBackground: true}).
			Return(sampleReport(), nil)

		app := createTestApp(NewPhotoHandler(svc, 0, testLogger()))
		body, ct := createMultipartRequest(t, uploadBytes(), map[string]string{"remove_background": "true"})

		req := httptest.NewRequest("POST", "/v1/photos", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var result struct {
			Image      string `json:"image"`
			MimeType   string `json:"mime_type"`
			Crop       domain.CropBox
			Processing domain.ProcessingResult `json:"processing"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, "image/jpeg", result.MimeType)
		assert.Equal(t, 833, result.Crop.Size)
		assert.Equal(t, "A", result.Processing.Compliance.Grade)

		raw, err := base64.StdEncoding.DecodeString(result.Image)
		require.NoError(t, err)
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, 600, cfg.Width)
		assert.Equal(t, 600, cfg.Height)

		svc.AssertExpectations(t)
	})

	t.Run("returns jpeg with report headers", func(t *testing.T) {
		svc := new(MockPhotoService)
		svc.On("Process", mock.Anything, uploadBytes(), service.ProcessOptions{MultiFacePolicy: service.MultiFaceReject}).
			Return(sampleReport(), nil)

		app := createTestApp(NewPhotoHandler(svc, 0, testLogger()))
		body, ct := createMultipartRequest(t, uploadBytes(), map[string]string{
			"format":            "jpeg",
			"multi_face_policy": "reject",
		})

		req := httptest.NewRequest("POST", "/v1/photos", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
		assert.Equal(t, "0.9125", resp.Header.Get("X-Compliance-Score"))
		assert.Equal(t, "A", resp.Header.Get("X-Compliance-Grade"))
		assert.Equal(t, "true", resp.Header.Get("X-Compliance-Passing"))
		assert.Equal(t, "passing", resp.Header.Get("X-Processing-Outcome"))
		assert.Equal(t, "12.50", resp.Header.Get("X-Improvement-Percentage"))
		assert.Equal(t, "single_face", resp.Header.Get("X-Face-Selection"))

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		img, err := jpeg.Decode(bytes.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, 600, img.Bounds().Dx())
	})

	t.Run("passes request id from header", func(t *testing.T) {
		svc := new(MockPhotoService)
		svc.On("Process", mock.Anything, uploadBytes(), service.ProcessOptions{RequestID: "req-42"}).
			Return(sampleReport(), nil)

		app := createTestApp(NewPhotoHandler(svc, 0, testLogger()))
		body, ct := createMultipartRequest(t, uploadBytes(), nil)

		req := httptest.NewRequest("POST", "/v1/photos", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("X-Request-ID", "req-42")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	tests := []struct {
		name       string
		image      []byte
		fields     map[string]string
		maxBytes   int64
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing image",
			image:      nil,
			wantStatus: 400,
			wantCode:   "MISSING_IMAGE",
		},
		{
			name:       "empty image",
			image:      []byte{},
			wantStatus: 422,
			wantCode:   "INVALID_IMAGE",
		},
		{
			name:       "image over limit",
			image:      bytes.Repeat([]byte{1}, 64),
			maxBytes:   16,
			wantStatus: 413,
			wantCode:   "IMAGE_TOO_LARGE",
		},
		{
			name:       "bad remove_background",
			image:      uploadBytes(),
			fields:     map[string]string{"remove_background": "maybe"},
			wantStatus: 422,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown multi face policy",
			image:      uploadBytes(),
			fields:     map[string]string{"multi_face_policy": "largest"},
			wantStatus: 422,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "unknown format",
			image:      uploadBytes(),
			fields:     map[string]string{"format": "gif"},
			wantStatus: 422,
			wantCode:   "VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPhotoService)
			app := createTestApp(NewPhotoHandler(svc, tt.maxBytes, testLogger()))
			body, ct := createMultipartRequest(t, tt.image, tt.fields)

			req := httptest.NewRequest("POST", "/v1/photos", body)
			req.Header.Set("Content-Type", ct)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var result map[string]map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, tt.wantCode, result["error"]["code"])

			svc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("maps service errors", func(t *testing.T) {
		svc := new(MockPhotoService)
		svc.On("Process", mock.Anything, uploadBytes(), mock.Anything).Return(nil, domain.ErrMultipleFaces)

		app := createTestApp(NewPhotoHandler(svc, 0, testLogger()))
		body, ct := createMultipartRequest(t, uploadBytes(), nil)

		req := httptest.NewRequest("POST", "/v1/photos", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)

		var result map[string]map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, "MULTIPLE_FACES", result["error"]["code"])
	})
}

func TestPhotoHandler_Assess(t *testing.T) {
	t.Run("returns assessment", func(t *testing.T) {
		svc := new(MockPhotoService)
		svc.On("Assess", mock.Anything, uploadBytes(), "").Return(&service.AssessReport{
			Selection:   domain.FaceSelection{Status: domain.SelectionNoFace},
			NeedsReview: true,
			Metrics:     domain.QualityMetrics{Width: 1000, Height: 1200},
			Compliance:  domain.ComplianceResult{Score: 0.55, Grade: "F"},
		}, nil)

		app := createTestApp(NewPhotoHandler(svc, 0, testLogger()))
		body, ct := createMultipartRequest(t, uploadBytes(), nil)

		req := httptest.NewRequest("POST", "/v1/photos/assess", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var result service.AssessReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.True(t, result.NeedsReview)
		assert.Equal(t, domain.SelectionNoFace, result.Selection.Status)
		assert.Equal(t, "F", result.Compliance.Grade)
		assert.Equal(t, 1000, result.Metrics.Width)
	})

	t.Run("undecodable upload", func(t *testing.T) {
		svc := new(MockPhotoService)
		svc.On("Assess", mock.Anything, uploadBytes(), "").Return(nil, domain.ErrUnsupportedImageType)

		app := createTestApp(NewPhotoHandler(svc, 0, testLogger()))
		body, ct := createMultipartRequest(t, uploadBytes(), nil)

		req := httptest.NewRequest("POST", "/v1/photos/assess", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, 415, resp.StatusCode)
	})
}

func TestSetReportHeaders_NeedsReview(t *testing.T) {
	report := sampleReport()
	report.NeedsReview = true
	report.Selection.Status = domain.SelectionMultipleFaces

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		setReportHeaders(c, report)
		return c.SendStatus(204)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "true", resp.Header.Get("X-Needs-Review"))
	assert.Equal(t, "multiple_faces", resp.Header.Get("X-Face-Selection"))
	assert.Equal(t, "false", resp.Header.Get("X-Background-Removed"))
}
