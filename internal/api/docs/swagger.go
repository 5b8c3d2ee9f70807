package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// CropBoxData is the square crop taken from the upright source image
type CropBoxData struct {
	X    int `json:"x" example:"84"`
	Y    int `json:"y" example:"100"`
	Size int `json:"size" example:"833"`
}

// CategoryScoresData breaks the compliance score into its weighted parts
type CategoryScoresData struct {
	Dimensions float64 `json:"dimensions" example:"1"`
	Background float64 `json:"background" example:"0.92"`
	Face       float64 `json:"face" example:"1"`
	Quality    float64 `json:"quality" example:"0.81"`
}

// ComplianceData represents the compliance verdict of one image
type ComplianceData struct {
	Score           float64            `json:"score" example:"0.9420"`
	Passing         bool               `json:"passing" example:"true"`
	Grade           string             `json:"grade" example:"A"`
	Categories      CategoryScoresData `json:"categories"`
	Recommendations []string           `json:"recommendations" example:"[]"`
}

// QualityMetricsData represents raw image measurements
type QualityMetricsData struct {
	Width                int     `json:"width" example:"600"`
	Height               int     `json:"height" example:"600"`
	Sharpness            float64 `json:"sharpness" example:"812.4"`
	SharpnessScore       float64 `json:"sharpness_score" example:"0.81"`
	Noise                float64 `json:"noise" example:"0.006"`
	Contrast             float64 `json:"contrast" example:"0.34"`
	Brightness           float64 `json:"brightness" example:"0.58"`
	BackgroundUniformity float64 `json:"background_uniformity" example:"0.93"`
}

// AttemptData represents one assessment in the enhancement loop
type AttemptData struct {
	Attempt      int                `json:"attempt" example:"1"`
	Strategy     string             `json:"strategy" example:"standard"`
	Operations   []string           `json:"operations,omitempty" example:"sharpen,contrast"`
	Metrics      QualityMetricsData `json:"metrics"`
	Compliance   ComplianceData     `json:"compliance"`
	Rejected     bool               `json:"rejected,omitempty" example:"false"`
	RejectReason string             `json:"reject_reason,omitempty" example:""`
}

// ProcessingData represents the outcome of the enhancement loop
type ProcessingData struct {
	Outcome               string         `json:"outcome" example:"passing"`
	BestAttempt           int            `json:"best_attempt" example:"1"`
	Compliance            ComplianceData `json:"compliance"`
	Attempts              []AttemptData  `json:"attempts"`
	ImprovementPercentage float64        `json:"improvement_percentage" example:"55.56"`
}

// SelectionData represents primary face selection
type SelectionData struct {
	Status string `json:"status" example:"single_face"`
}

// AnalysisData represents the optional qualitative analysis
type AnalysisData struct {
	Provider  string   `json:"provider" example:"rekognition"`
	Compliant bool     `json:"compliant" example:"true"`
	Issues    []string `json:"issues" example:"[]"`
}

// ProcessPhotoResponse represents the response of the photo pipeline
type ProcessPhotoResponse struct {
	Selection         SelectionData  `json:"selection"`
	NeedsReview       bool           `json:"needs_review" example:"false"`
	Crop              CropBoxData    `json:"crop"`
	ProfileID         string         `json:"profile_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	BackgroundRemoved bool           `json:"background_removed" example:"false"`
	Processing        ProcessingData `json:"processing"`
	Analysis          *AnalysisData  `json:"analysis,omitempty"`
	Image             string         `json:"image" example:"/9j/4AAQSkZJRgABAQ..."`
	MimeType          string         `json:"mime_type" example:"image/jpeg"`
}

// AssessPhotoResponse represents the response of an as-is assessment
type AssessPhotoResponse struct {
	Selection   SelectionData      `json:"selection"`
	NeedsReview bool               `json:"needs_review" example:"true"`
	Metrics     QualityMetricsData `json:"metrics"`
	Compliance  ComplianceData     `json:"compliance"`
	Analysis    *AnalysisData      `json:"analysis,omitempty"`
}

// RatiosData represents normalized face geometry
type RatiosData struct {
	HeadHeight float64 `json:"head_height_ratio" example:"0.6"`
	CenterX    float64 `json:"face_center_x_ratio" example:"0.5"`
	HeadTop    float64 `json:"head_top_y_ratio" example:"0.18"`
}

// ProfileData represents a learned geometric profile
type ProfileData struct {
	ID         string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Mean       RatiosData `json:"mean"`
	StdDev     RatiosData `json:"std_dev"`
	SampleSize int        `json:"sample_size" example:"120"`
	CreatedAt  string     `json:"created_at" example:"2024-01-01T00:00:00Z"`
}

// WindowData represents the accepted head height range
type WindowData struct {
	Min float64 `json:"min" example:"0.52"`
	Max float64 `json:"max" example:"0.68"`
}

// ProfileResponse represents the active profile
type ProfileResponse struct {
	Active           bool         `json:"active" example:"true"`
	Profile          *ProfileData `json:"profile,omitempty"`
	HeadHeightWindow *WindowData  `json:"head_height_window,omitempty"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "ID Photo API",
		Version:     "v1.0.0",
		Description: "Crops, scores and enhances portrait photos into square ID photos",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	uploadErrors := []response.Response{
		response.New(ErrorResponse{Code: "MISSING_IMAGE", Message: "Image file is required"}, "400", "Bad Request"),
		response.New(ErrorResponse{Code: "IMAGE_TOO_LARGE", Message: "Image exceeds the maximum upload size"}, "413", "Payload Too Large"),
		response.New(ErrorResponse{Code: "UNSUPPORTED_IMAGE_TYPE", Message: "Image type not supported, use JPEG, PNG or WebP"}, "415", "Unsupported Media Type"),
		response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity"),
		response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded, please try again later"}, "429", "Too Many Requests"),
		response.New(ErrorResponse{Code: "SERVER_BUSY", Message: "Too many photos in progress, please retry shortly"}, "503", "Service Unavailable"),
		response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
	}

	endpoints := []*endpoint.EndPoint{
		// POST /v1/photos - Process Photo
		endpoint.New(
			endpoint.POST,
			"/photos",
			endpoint.WithTags("Photos"),
			endpoint.WithSummary("Produce an ID photo"),
			endpoint.WithDescription("Upload a JPEG, PNG or WebP as multipart field \"image\". The primary face is located, the photo is cropped to a square, scored and enhanced up to two times. Options may be sent as form fields or query parameters."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON, mime.MIME("image/jpeg")}),
			endpoint.WithParams(
				parameter.StrParam("remove_background", parameter.Query, parameter.WithDescription("Replace the background with white (true/false, default false)")),
				parameter.StrParam("multi_face_policy", parameter.Query, parameter.WithDescription("continue or reject when several faces are found (default: server setting)")),
				parameter.StrParam("format", parameter.Query, parameter.WithDescription("json (default) or jpeg; jpeg returns the image with X-Compliance-* headers")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ProcessPhotoResponse{}, "200", "Photo processed"),
			}),
			endpoint.WithErrors(append([]response.Response{
				response.New(ErrorResponse{Code: "MULTIPLE_FACES", Message: "Multiple faces detected, please provide image with single face"}, "422", "Unprocessable Entity"),
			}, uploadErrors...)),
		),

		// POST /v1/photos/assess - Assess Photo
		endpoint.New(
			endpoint.POST,
			"/photos/assess",
			endpoint.WithTags("Photos"),
			endpoint.WithSummary("Score a photo as it is"),
			endpoint.WithDescription("Runs face detection and the compliance assessment on the uploaded image without cropping or enhancing it"),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AssessPhotoResponse{}, "200", "Photo assessed"),
			}),
			endpoint.WithErrors(uploadErrors),
		),

		// GET /v1/profile - Active Profile
		endpoint.New(
			endpoint.GET,
			"/profile",
			endpoint.WithTags("Profile"),
			endpoint.WithSummary("Get the active geometric profile"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ProfileResponse{}, "200", "Active profile"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "PROFILE_NOT_FOUND", Message: "No geometric profile has been learned yet"}, "404", "Not Found"),
			}),
		),

		// POST /v1/profile/reload - Reload Profile
		endpoint.New(
			endpoint.POST,
			"/profile/reload",
			endpoint.WithTags("Profile"),
			endpoint.WithSummary("Reload the geometric profile from its source"),
			endpoint.WithDescription("A missing profile is not an error; built-in defaults apply until one is learned"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ProfileResponse{}, "200", "Profile reloaded"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INVALID_PROFILE", Message: "Geometric profile is malformed"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
