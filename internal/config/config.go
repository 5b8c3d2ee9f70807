package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port              int           `envconfig:"PORT" default:"3000"`
	Environment       string        `envconfig:"ENV" default:"development"`
	LogLevel          string        `envconfig:"LOG_LEVEL"`
	MaxUploadBytes    int           `envconfig:"MAX_UPLOAD_BYTES" default:"15728640"`
	MaxImagePixels    int           `envconfig:"MAX_IMAGE_PIXELS" default:"40000000"`
	MaxConcurrentJobs int           `envconfig:"MAX_CONCURRENT_JOBS" default:"4"`
	RateLimitMax      int           `envconfig:"RATE_LIMIT_MAX" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// Database (optional, only needed when profiles are stored in Postgres)
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Detection
	DetectorPrimary        string  `envconfig:"DETECTOR_PRIMARY" default:"pigo"`
	DetectorFallback       string  `envconfig:"DETECTOR_FALLBACK" default:"pigo-fast"`
	PigoCascadePath        string  `envconfig:"PIGO_CASCADE_PATH" default:"cascade/facefinder"`
	PuplocCascadePath      string  `envconfig:"PUPLOC_CASCADE_PATH"`
	DetectionMaxDimension  int     `envconfig:"DETECTION_MAX_DIMENSION" default:"1024"`
	DetectionMinConfidence float64 `envconfig:"DETECTION_MIN_CONFIDENCE" default:"0.5"`
	DeepFaceURL            string  `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	AWSRegion              string  `envconfig:"AWS_REGION" default:"us-east-1"`

	// Profile
	ProfileSource string `envconfig:"PROFILE_SOURCE" default:"file"`
	ProfilePath   string `envconfig:"PROFILE_PATH" default:"profile.json"`
	ProfileWatch  bool   `envconfig:"PROFILE_WATCH" default:"true"`

	// External capabilities
	BackgroundURL     string        `envconfig:"BACKGROUND_URL"`
	BackgroundTimeout time.Duration `envconfig:"BACKGROUND_TIMEOUT" default:"20s"`
	AnalysisProvider  string        `envconfig:"ANALYSIS_PROVIDER" default:"none"`

	// Output
	OutputSize      int    `envconfig:"OUTPUT_SIZE" default:"600"`
	MultiFacePolicy string `envconfig:"MULTI_FACE_POLICY" default:"continue"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.OutputSize <= 0 {
		return fmt.Errorf("OUTPUT_SIZE must be positive, got %d", c.OutputSize)
	}
	if c.DetectionMaxDimension <= 0 {
		return fmt.Errorf("DETECTION_MAX_DIMENSION must be positive, got %d", c.DetectionMaxDimension)
	}
	if c.DetectionMinConfidence < 0 || c.DetectionMinConfidence > 1 {
		return fmt.Errorf("DETECTION_MIN_CONFIDENCE must be between 0 and 1")
	}
	if _, ok := parseLevel(c.LogLevel); c.LogLevel != "" && !ok {
		return fmt.Errorf("unknown LOG_LEVEL %q (supported: debug, info, warn, error)", c.LogLevel)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be positive, got %d", c.MaxImagePixels)
	}
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be positive, got %d", c.MaxConcurrentJobs)
	}
	switch c.ProfileSource {
	case "file":
	case "database":
		if c.DatabaseURL == "" {
			return fmt.Errorf("PROFILE_SOURCE=database requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown PROFILE_SOURCE %q (supported: file, database)", c.ProfileSource)
	}
	switch c.MultiFacePolicy {
	case "continue", "reject":
	default:
		return fmt.Errorf("unknown MULTI_FACE_POLICY %q (supported: continue, reject)", c.MultiFacePolicy)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
