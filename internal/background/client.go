package background

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	Backdrop   color.Color
}

func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:7000",
		Timeout:    20 * time.Second,
		RetryCount: 1,
		Backdrop:   White,
	}
}

// Client talks to a rembg-compatible HTTP service: the image is posted as
// the multipart field "file" to /api/remove and a PNG with an alpha
// channel comes back.
type Client struct {
	httpClient *http.Client
	config     Config
	backoff    func(attempt int) time.Duration
}

var _ Isolator = (*Client)(nil)

func NewClient(config Config) *Client {
	if config.Backdrop == nil {
		config.Backdrop = White
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		backoff:    calculateBackoff,
	}
}

// Isolate returns img composited onto the configured backdrop with its
// original background removed.
func (c *Client) Isolate(ctx context.Context, img image.Image) (image.Image, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	cutout, err := c.removeWithRetry(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if cutout.Bounds().Dx() != b.Dx() || cutout.Bounds().Dy() != b.Dy() {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSizeMismatch,
			cutout.Bounds().Dx(), cutout.Bounds().Dy(), b.Dx(), b.Dy())
	}

	canvas := imaging.New(b.Dx(), b.Dy(), c.config.Backdrop)
	return imaging.Overlay(canvas, cutout, image.Pt(0, 0), 1.0), nil
}

const maxBackoff = 10 * time.Second

// calculateBackoff returns 1s, 2s, 4s, ... capped at maxBackoff
func calculateBackoff(attempt int) time.Duration {
	d := time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("background service returned status %d: %s", e.code, e.body)
}

func (c *Client) removeWithRetry(ctx context.Context, data []byte) (image.Image, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		img, err := c.remove(ctx, data)
		if err == nil {
			return img, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// only 5xx and transport errors are retried
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			return nil, err
		}
		if errors.Is(err, ErrInvalidResponse) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) remove(ctx context.Context, data []byte) (image.Image, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "photo.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/remove", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	img, err := imaging.Decode(bytes.NewReader(respBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return img, nil
}
