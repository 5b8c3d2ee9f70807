package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"app error", domain.ErrInvalidImage, 422, "INVALID_IMAGE"},
		{"wrapped app error", fmt.Errorf("process photo: %w", domain.ErrImageTooLarge), 413, "IMAGE_TOO_LARGE"},
		{"app error with cause", domain.ErrServerBusy.WithError(errors.New("deadline")), 503, "SERVER_BUSY"},
		{"fiber error", fiber.ErrRequestEntityTooLarge, 413, "HTTP_ERROR"},
		{"unknown error", errors.New("boom"), 500, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(testLogger())})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var result map[string]map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, tt.wantCode, result["error"]["code"])
			assert.NotEmpty(t, result["error"]["message"])
		})
	}
}

func TestRecover(t *testing.T) {
	app := fiber.New()
	app.Use(Recover(testLogger()))
	app.Get("/", func(c *fiber.Ctx) error {
		panic("decoder exploded")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
}
