package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sentinel-ng/backend/internal/api/handlers"
	"github.com/sentinel-ng/backend/internal/cache/redis"
	"github.com/sentinel-ng/backend/internal/geocoding"
	"github.com/sentinel-ng/backend/internal/metrics"
	"github.com/sentinel-ng/backend/internal/middleware/ratelimit"
	"github.com/sentinel-ng/backend/internal/middleware/security"
	"github.com/sentinel-ng/backend/internal/middleware/validation"
	"github.com/sentinel-ng/backend/internal/storage/sqlite"
	"github.com/sentinel-ng/backend/internal/verification"
	"github.com/sentinel-ng/backend/pkg/config"
	appLogger "github.com/sentinel-ng/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting incident verification API server")

	metrics.Init()

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer store.Close()

	err = store.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, statistics caching disabled", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	var geocoder *geocoding.Client
	if cfg.Geocoding.Enabled {
		geocoder = geocoding.NewClient(
			cfg.Geocoding.BaseURL,
			cfg.Geocoding.UserAgent,
			time.Duration(cfg.Geocoding.TimeoutSec)*time.Second,
		)
	}

	scorer := verification.NewScorer(&cfg.Verification, store)
	hub := handlers.NewHub()

	incidentHandler := handlers.NewIncidentHandler(store, scorer, geocoder, cache, hub, cfg)
	reviewHandler := handlers.NewReviewHandler(store)

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute, appLogger.Log)
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(strings.Split(cfg.Server.AllowedOrigins, ","), ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Server.Development,
	}))
	app.Use(validation.Middleware(validation.Config{
		MaxBodySize: cfg.Server.BodyLimit,
		Logger:      appLogger.Log,
	}))

	api := app.Group("/api/v1")

	api.Post("/incidents", limiter.Middleware(), incidentHandler.CreateIncident)
	api.Get("/incidents/recent", incidentHandler.RecentIncidents)
	api.Get("/incidents/geojson", incidentHandler.IncidentsGeoJSON)
	api.Get("/incidents/stats", incidentHandler.Stats)

	api.Use("/incidents/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/incidents/stream", websocket.New(hub.HandleConnection))

	api.Get("/incidents/:id", incidentHandler.GetIncident)

	// Review endpoints expect an authenticating proxy in front of them.
	api.Post("/incidents/:id/verify", reviewHandler.VerifyIncident)
	api.Post("/incidents/:id/reject", reviewHandler.RejectIncident)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
