package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// ProfileStore exposes the active geometric profile
type ProfileStore interface {
	Current(ctx context.Context) *domain.GeometricProfile
	Reload(ctx context.Context) error
}

type ProfileHandler struct {
	store  ProfileStore
	logger *slog.Logger
}

func NewProfileHandler(store ProfileStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		store:  store,
		logger: logger,
	}
}

// HeadHeightWindow is the accepted head height range derived from a profile
type HeadHeightWindow struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type ProfileResponse struct {
	Active           bool                     `json:"active"`
	Profile          *domain.GeometricProfile `json:"profile,omitempty"`
	HeadHeightWindow *HeadHeightWindow        `json:"head_height_window,omitempty"`
}

func newProfileResponse(p *domain.GeometricProfile) ProfileResponse {
	if p == nil {
		return ProfileResponse{}
	}
	lo, hi := p.HeadHeightWindow()
	return ProfileResponse{
		Active:           true,
		Profile:          p,
		HeadHeightWindow: &HeadHeightWindow{Min: lo, Max: hi},
	}
}

// Get GET /v1/profile - the profile currently steering crops and scoring
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	p := h.store.Current(c.Context())
	if p == nil {
		return domain.ErrProfileNotFound
	}
	return c.JSON(newProfileResponse(p))
}

// Reload POST /v1/profile/reload - re-read the profile from its source.
// A missing profile is not an error; defaults apply until one is learned.
func (h *ProfileHandler) Reload(c *fiber.Ctx) error {
	if err := h.store.Reload(c.Context()); err != nil {
		return err
	}

	resp := newProfileResponse(h.store.Current(c.Context()))
	h.logger.Info("profile reloaded via api", "active", resp.Active)
	return c.JSON(resp)
}
