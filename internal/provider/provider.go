package provider

import (
	"context"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// FaceProvider define a interface para provedores externos de detecção facial
type FaceProvider interface {
	// DetectFaces detecta faces na imagem e retorna informações sobre cada uma.
	// Bounding boxes are relative to the image size (0.0 to 1.0).
	DetectFaces(ctx context.Context, image []byte) ([]DetectedFace, error)
}

// FaceAnalyzer produces a qualitative verdict (eyes, pose, accessories)
// that the geometric pipeline cannot measure on its own.
type FaceAnalyzer interface {
	AnalyzeFace(ctx context.Context, image []byte) (*domain.FaceAnalysis, error)
}

// DetectedFace represents a detected face in the image
type DetectedFace struct {
	BoundingBox  BoundingBox `json:"bounding_box"`
	Confidence   float64     `json:"confidence"`
	QualityScore float64     `json:"quality_score"`
	EyesOpen     *bool       `json:"eyes_open,omitempty"`
	Pose         *Pose       `json:"pose,omitempty"`
	LeftEye      *Point      `json:"left_eye,omitempty"`
	RightEye     *Point      `json:"right_eye,omitempty"`
}

// Pose represents face orientation angles
type Pose struct {
	Pitch float64 `json:"pitch"` // up/down rotation
	Roll  float64 `json:"roll"`  // tilted rotation
	Yaw   float64 `json:"yaw"`   // left/right rotation
}

// BoundingBox represents the face area in the image, relative to its size
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a landmark position relative to the image size
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
