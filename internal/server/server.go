// Package server contains the HTTP handlers and wiring for the explorer API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "explorer/docs" // swagger docs
	"explorer/internal/assets"
	"explorer/internal/auth"
	"explorer/internal/bootstrap"
	"explorer/internal/cache"
	"explorer/internal/config"
	"explorer/internal/geo"
	"explorer/internal/middleware"
	"explorer/internal/models"
	"explorer/internal/repository"
	"explorer/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

const (
	bodyLimit         = 1 << 20
	registerRateLimit = 5
	registerWindow    = 10 * time.Minute
	loginRateLimit    = 10
	loginWindow       = 5 * time.Minute
)

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://www.googletagmanager.com https://www.google-analytics.com; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: https: http: blob:; " +
	"connect-src 'self' https://www.google-analytics.com https://analytics.google.com https://upload.imagekit.io https://ik.imagekit.io; " +
	"font-src 'self' data: https:; " +
	"object-src 'none'; media-src 'self'; frame-src 'none'"

// Server represents the HTTP server
type Server struct {
	config         *config.Config
	db             *gorm.DB
	cache          *cache.Cache
	logger         *slog.Logger
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	rateLimiter    *middleware.RateLimiter
	tokens         *auth.TokenService
	userRepo       repository.UserRepository
	locations      *geo.Hierarchy

	authService       *service.AuthService
	experienceService *service.ExperienceService
	uploadService     *service.UploadService

	now func() time.Time
}

// Deps are the already-initialized collaborators of a Server.
type Deps struct {
	DB     *gorm.DB
	Cache  *cache.Cache
	Logger *slog.Logger
	// Assets removes stored images when experiences are deleted. Nil keeps every image.
	Assets service.AssetDeleter
	// ImageStore receives uploads. Nil stores them on local disk under UPLOAD_DIR.
	ImageStore service.ImageStore
	Locations  *geo.Hierarchy
}

// NewServer creates a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	rt, err := bootstrap.InitRuntime(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		return nil, err
	}

	storage, err := bootstrap.NewStorage(ctx, cfg, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	return NewServerWithDeps(cfg, Deps{
		DB:         rt.DB,
		Cache:      rt.Cache,
		Logger:     logger,
		Assets:     storage.Assets,
		ImageStore: storage.ImageStore,
	})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil || deps.DB == nil {
		return nil, errors.New("config and database are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	locations := deps.Locations
	if locations == nil {
		locations = geo.Default()
	}

	deleter := deps.Assets
	if deleter == nil {
		deleter = assets.NewManager(logger)
	}

	store := deps.ImageStore
	if store == nil {
		store = service.NewLocalImageStore(filepath.Join(cfg.UploadDir, "experiences"), cfg.PublicBaseURL)
	}

	userRepo := repository.NewUserRepository(deps.DB, deps.Cache)
	experienceRepo := repository.NewExperienceRepository(deps.DB)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		cache:          deps.Cache,
		logger:         logger,
		promMiddleware: middleware.InitMetrics("explorer-api"),
		rateLimiter:    middleware.NewRateLimiter(deps.Cache.Client(), cfg.Env, logger),
		tokens:         tokens,
		userRepo:       userRepo,
		locations:      locations,
		now:            time.Now,
	}

	s.authService = service.NewAuthService(userRepo, hasher, tokens, logger)
	s.experienceService = service.NewExperienceService(experienceRepo, locations, deleter, logger)
	s.uploadService = service.NewUploadService(store,
		service.UploadLimits{
			MaxFiles:     cfg.UploadMaxFiles,
			MaxFileBytes: cfg.UploadMaxBytes(),
		},
		service.ImageKitSettings{
			PublicKey:   cfg.ImageKitPublicKey,
			PrivateKey:  cfg.ImageKitPrivateKey,
			URLEndpoint: cfg.ImageKitURLEndpoint,
			Folder:      cfg.ImageKitFolder,
		},
		logger,
	)

	return s, nil
}

// App builds the Fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName:      "Sri Lanka Explorer API",
		BodyLimit:    s.config.UploadMaxFiles*int(s.config.UploadMaxBytes()) + bodyLimit,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// errorHandler answers errors that escaped a handler. Fiber's own errors keep their status;
// anything else is an unexpected failure.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		if fiberErr.Code == fiber.StatusNotFound {
			return routeNotFound(c)
		}
		return c.Status(fiberErr.Code).JSON(models.Envelope{
			Status:  models.StatusError,
			Message: fiberErr.Message,
		})
	}

	s.logger.ErrorContext(c.UserContext(), "unhandled request error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	response := models.Envelope{
		Status:  models.StatusError,
		Message: "Something went wrong!",
	}
	if !s.config.IsProduction() {
		response.Error = err.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(response)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Error detail is only ever shown outside production
	exposeErrors := !s.config.IsProduction()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(models.LocalsExposeErrors, exposeErrors)
		return c.Next()
	})

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers; uploaded images are embedded by other origins
	app.Use(helmet.New(helmet.Config{
		ContentSecurityPolicy:     contentSecurityPolicy,
		CrossOriginResourcePolicy: "cross-origin",
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger(s.logger))

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.allowedOrigins(),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.Envelope{
				Status:  models.StatusError,
				Message: "Too many requests, please try again later",
			})
		},
	}))
}

// allowedOrigins merges ALLOWED_ORIGINS with FRONTEND_URL. Credentialed CORS cannot use a wildcard.
func (s *Server) allowedOrigins() string {
	seen := map[string]bool{}
	var origins []string
	for _, origin := range strings.Split(s.config.AllowedOrigins+","+s.config.FrontendURL, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" || origin == "*" || seen[origin] {
			continue
		}
		seen[origin] = true
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		return "http://localhost:5173,http://localhost:3000"
	}
	return strings.Join(origins, ",")
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")
	requireIdentity := middleware.RequireIdentity(s.tokens, s.userRepo, s.logger)

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	api.Get("/health", s.HealthCheck)
	api.Get("/test-connection", s.TestConnection)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Sri Lanka Explorer Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", s.rateLimiter.Limit(
		"register", registerRateLimit, registerWindow, middleware.FailOpen), s.Register)
	authRoutes.Post("/login", s.rateLimiter.Limit(
		"login", loginRateLimit, loginWindow, middleware.FailOpen), s.Login)
	authRoutes.Get("/me", requireIdentity, s.GetMe)
	authRoutes.Put("/profile", requireIdentity, s.UpdateProfile)

	// Experience routes; reads are public
	experiences := api.Group("/experiences")
	experiences.Get("/", s.ListExperiences)
	experiences.Get("/:id", s.GetExperience)
	experiences.Post("/", requireIdentity, s.CreateExperience)
	experiences.Put("/:id", requireIdentity, s.UpdateExperience)
	experiences.Delete("/:id", requireIdentity, s.DeleteExperience)

	// Upload routes
	uploads := api.Group("/upload", requireIdentity)
	uploads.Post("/", s.UploadImages)
	uploads.Post("/imagekit-auth", s.ImageKitAuth)
	uploads.Delete("/:filename", s.DeleteUpload)

	// SEO and location data
	api.Get("/sitemap.xml", s.Sitemap)
	api.Get("/robots.txt", s.Robots)
	api.Get("/locations", s.ListLocations)
	api.Get("/locations/:provinceId", s.GetProvince)

	// Unknown API routes never fall through to the SPA
	api.Use(routeNotFound)

	// Uploaded files, readable from any origin
	app.Use("/uploads", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set("Cross-Origin-Resource-Policy", "cross-origin")
		return c.Next()
	})
	app.Static("/uploads", s.config.UploadDir)

	if s.config.IsProduction() {
		s.setupSPA(app)
	} else {
		app.Get("/", s.Welcome)
	}

	app.Use(routeNotFound)
}

// setupSPA serves the frontend build with index.html as the fallback for client-side routes.
func (s *Server) setupSPA(app *fiber.App) {
	index := filepath.Join(s.config.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.logger.Warn("frontend build not found, SPA disabled",
			slog.String("static_dir", s.config.StaticDir))
		return
	}

	app.Static("/", s.config.StaticDir)
	app.Get("/*", func(c *fiber.Ctx) error {
		return c.SendFile(index)
	})
}

func routeNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(models.Envelope{
		Status:  models.StatusError,
		Message: "Route not found",
	})
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	s.logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			s.logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			s.logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing redis", slog.String("error", err.Error()))
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
