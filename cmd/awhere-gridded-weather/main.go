package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/agrosphere/awhere-gridded-weather/internal/api/http"
	"github.com/agrosphere/awhere-gridded-weather/internal/awhere"
	"github.com/agrosphere/awhere-gridded-weather/internal/config"
	"github.com/agrosphere/awhere-gridded-weather/internal/geocode"
	"github.com/agrosphere/awhere-gridded-weather/internal/grid"
	"github.com/agrosphere/awhere-gridded-weather/internal/scheduler"
	"github.com/agrosphere/awhere-gridded-weather/internal/store"
	"github.com/agrosphere/awhere-gridded-weather/internal/survey"
)

func main() {
	// Load configuration (godotenv runs inside Load).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound API calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// aWhere client with resilience (backoff + circuit breaker).
	var clientOpts []awhere.Option
	if cfg.AWhereBaseURL != "" {
		clientOpts = append(clientOpts, awhere.WithBaseURL(cfg.AWhereBaseURL))
	}
	client := awhere.NewClient(httpClient, cfg.AWhereAPIKey, cfg.AWhereAPISecret, clientOpts...)

	// Survey grid over the configured area of interest.
	var surveyGrid *grid.Grid
	if cfg.BoundaryPath != "" {
		boundary, err := grid.LoadBoundary(cfg.BoundaryPath, grid.CRSWGS84)
		if err != nil {
			log.Fatalf("failed to load boundary: %v", err)
		}

		builder := grid.Builder{CellSize: cfg.GridCellSize}
		full, reprojected, err := builder.Build(boundary, cfg.GridBuffer)
		if err != nil {
			log.Fatalf("failed to build grid: %v", err)
		}

		// Survey only cells whose centroid falls inside the boundary, not
		// the whole bounding rectangle.
		surveyGrid, err = grid.Clip(full, reprojected)
		if err != nil {
			log.Fatalf("failed to clip grid: %v", err)
		}
		log.Printf("INFO: built %dx%d survey grid (%d of %d cells inside boundary)",
			surveyGrid.Rows, surveyGrid.Cols, len(surveyGrid.Cells), len(full.Cells))
	} else {
		log.Println("INFO: no BOUNDARY_GEOJSON configured; surveys disabled")
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Core service orchestrating surveys over the grid.
	source := survey.ObservationSource{Client: client}
	service := survey.NewService(memStore, source, surveyGrid, cfg.SurveyWorkers)

	// Scheduler that periodically surveys the grid.
	if surveyGrid != nil {
		sched := scheduler.New(service, cfg.SurveyInterval, cfg.SurveyTimeout)
		if err := sched.Start(); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "awhere-gridded-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "awhere-gridded-weather",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Service:  service,
		Source:   source,
		Resolver: geocode.NewGoogleResolver(cfg.GeocoderAPIKey),
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
