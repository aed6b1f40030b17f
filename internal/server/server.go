// Package server contains the HTML pages and JSON API handlers of quill.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	_ "quill/docs" // swagger docs
	"quill/internal/config"
	"quill/internal/featureflags"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/service"
	"quill/internal/templates"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SiteName is shown in page titles and the navigation bar.
const SiteName = "Quill"

// CommentIndent is the left margin in pixels per reply level.
const CommentIndent = 24

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	views          *templates.Engine
	promMiddleware *fiberprometheus.FiberPrometheus
	featureFlags   *featureflags.Manager
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	profileRepo    repository.ProfileRepository
	imageRepo      repository.ImageRepository
	authService    *service.AuthService
	postService    *service.PostService
	commentService *service.CommentService
	profileService *service.ProfileService
	imageService   *service.ImageService
}

// NewServerWithDeps creates a Server over an open database. A nil Redis
// client disables caching and rate limits.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	views, err := templates.New(map[string]any{
		"site_name": SiteName,
		"indent":    CommentIndent,
	})
	if err != nil {
		return nil, err
	}
	if err := views.Load(); err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		views:          views,
		promMiddleware: middleware.InitMetrics("quill"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		profileRepo:    repository.NewProfileRepository(db),
		imageRepo:      repository.NewImageRepository(db),
	}

	server.imageService = service.NewImageService(server.imageRepo, cfg)
	server.authService = service.NewAuthService(server.userRepo, cfg.JWTSecret)
	server.postService = service.NewPostService(server.postRepo, server.imageService, server.featureFlags)
	server.commentService = service.NewCommentService(server.commentRepo, server.postRepo, server.featureFlags)
	server.profileService = service.NewProfileService(server.profileRepo, server.imageService)

	return server, nil
}

// NewApp builds the fiber application with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Quill",
		Views:        s.views,
		BodyLimit:    s.bodyLimit(),
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) bodyLimit() int {
	mb := service.DefaultImageMaxUploadSizeMB
	if s.config != nil && s.config.ImageMaxUploadSizeMB > 0 {
		mb = s.config.ImageMaxUploadSizeMB
	}
	// Room for the other form fields next to the file.
	return (mb + 1) * 1024 * 1024
}

// errorHandler answers unhandled errors with a page or JSON depending on
// who asked.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		status = fe.Code
	} else {
		status = models.StatusFor(err)
	}
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed", "path", c.Path(), "error", err)
	}

	if isAPI(c) {
		if fe, ok := err.(*fiber.Error); ok {
			return c.Status(status).JSON(models.ErrorResponse{Error: fe.Message})
		}
		if status >= fiber.StatusInternalServerError {
			err = models.NewInternalError(err)
		}
		return models.RespondWithError(c, status, err)
	}
	return s.renderError(c, status)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Trace span per request, then propagate request/user/trace IDs to the context.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Pages pull their stylesheet from a CDN.
	app.Use(helmet.New(helmet.Config{
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := ""
	if s.config != nil {
		origins = s.config.AllowedOrigins
	}
	if origins == "" {
		origins = "http://localhost:8000,http://127.0.0.1:8000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	authRequired := middleware.AuthRequired(s.authService)
	authOptional := middleware.AuthOptional(s.authService)
	authLimit := middleware.RateLimit(s.redis, 10, time.Minute, "auth")
	writeLimit := middleware.RateLimit(s.redis, 30, time.Minute, "write")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Uploaded images
	app.Get("/media/i/:hash/:file", s.ServeImage)

	// HTML pages
	app.Get("/", authOptional, s.Index)
	app.Get("/register", authOptional, s.RegisterPage)
	app.Post("/register", authLimit, s.Register)
	app.Get("/login", authOptional, s.LoginPage)
	app.Post("/login", authLimit, s.Login)
	app.Post("/logout", s.Logout)
	app.Get("/posts/new", authRequired, s.NewPostPage)
	app.Post("/posts/new", authRequired, writeLimit, s.CreatePost)
	app.Get("/posts/:id", authOptional, s.PostDetail)
	app.Post("/posts/:id/comments", authRequired, writeLimit, s.CreateComment)
	app.Get("/profile", authRequired, s.ProfilePage)
	app.Post("/profile", authRequired, writeLimit, s.UpdateProfile)

	// JSON API
	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Get("/feature-flags", authOptional, s.GetFeatureFlags)

	auth := api.Group("/auth")
	auth.Post("/register", authLimit, s.APIRegister)
	auth.Post("/login", authLimit, s.APILogin)
	auth.Post("/logout", authRequired, s.APILogout)

	posts := api.Group("/posts")
	posts.Get("/", s.APIListPosts)
	posts.Post("/", authRequired, writeLimit, s.APICreatePost)
	posts.Get("/:id", s.APIGetPost)
	posts.Get("/:id/comments", s.APIListComments)
	posts.Post("/:id/comments", authRequired, writeLimit, s.APICreateComment)

	api.Get("/profile", authRequired, s.APIGetProfile)
	api.Put("/profile", authRequired, writeLimit, s.APIUpdateProfile)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so
// only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unhealthy"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "disabled"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.NewApp()

	port := "8000"
	if s.config != nil && s.config.Port != "" {
		port = s.config.Port
	}
	log.Printf("Server starting on port %s...", port)
	return s.app.Listen(":" + port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				log.Printf("error closing sql DB: %v", cerr)
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
