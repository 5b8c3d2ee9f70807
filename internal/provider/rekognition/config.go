package rekognition

// Config holds configuration for AWS Rekognition provider
type Config struct {
	// Region is the AWS region where Rekognition service will be used (e.g., "us-east-1")
	Region string

	// MaxPoseDegrees is the largest yaw or pitch accepted by the analyzer
	MaxPoseDegrees float64

	// MaxRollDegrees is the largest head tilt accepted by the analyzer
	MaxRollDegrees float64

	// MinQuality is the minimum Rekognition brightness/sharpness (0-100)
	MinQuality float64
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:         "us-east-1",
		MaxPoseDegrees: 15,
		MaxRollDegrees: 10,
		MinQuality:     40,
	}
}
