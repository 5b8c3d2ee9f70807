package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/database"
)

// multipartOverhead leaves room for form boundaries and option fields on
// top of the image itself
const multipartOverhead = 1 << 20

type Dependencies struct {
	Photos   handler.PhotoService
	Profiles handler.ProfileStore
	// DB is optional; when set, /ready pings it
	DB database.Pinger

	MaxUploadBytes  int
	RateLimitMax    int
	RateLimitWindow time.Duration
	DisableDocs     bool
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	cfg := fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "ID Photo API",
	}
	if deps != nil && deps.MaxUploadBytes > 0 {
		cfg.BodyLimit = deps.MaxUploadBytes + multipartOverhead
	}

	return &Router{
		app:    fiber.New(cfg),
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders: "X-Request-ID,X-Compliance-Score,X-Compliance-Grade,X-Compliance-Passing,X-Processing-Outcome,X-Needs-Review",
	}))

	// Swagger documentation
	if r.deps == nil || !r.deps.DisableDocs {
		sw := docs.NewSwagger()
		swagger.SwaggerHandler(r.app, sw.MustToJson())
	}

	var db database.Pinger
	if r.deps != nil {
		db = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(db)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	v1 := r.app.Group("/v1")

	// Only configure pipeline routes if dependencies were provided
	if r.deps == nil {
		return
	}

	// Rate limiting (per client IP)
	r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Max:    r.deps.RateLimitMax,
		Window: r.deps.RateLimitWindow,
	})
	v1.Use(r.rateLimiter.Handler())

	if r.deps.Photos != nil {
		photoHandler := handler.NewPhotoHandler(r.deps.Photos, int64(r.deps.MaxUploadBytes), r.logger)
		v1.Post("/photos", photoHandler.Process)
		v1.Post("/photos/assess", photoHandler.Assess)
	}

	if r.deps.Profiles != nil {
		profileHandler := handler.NewProfileHandler(r.deps.Profiles, r.logger)
		v1.Get("/profile", profileHandler.Get)
		v1.Post("/profile/reload", profileHandler.Reload)
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
