package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// aWhere API credentials.
	AWhereAPIKey    string
	AWhereAPISecret string
	AWhereBaseURL   string

	// Google geocoding key for place lookups; optional.
	GeocoderAPIKey string

	// Outbound HTTP client timeout.
	HTTPTimeout time.Duration

	// Boundary of the area of interest as a GeoJSON file path.
	BoundaryPath string

	// Grid construction parameters. Buffer and cell size are in degrees.
	GridBuffer   float64
	GridCellSize float64

	// SurveyInterval controls how often the grid is surveyed.
	SurveyInterval time.Duration

	// SurveyTimeout bounds one full survey run.
	SurveyTimeout time.Duration

	// SurveyWorkers caps concurrent observation fetches.
	SurveyWorkers int

	// In-memory store retention.
	StoreMaxHistory int           // max number of snapshots per cell (0 = unlimited)
	StoreMaxAge     time.Duration // max age of snapshots (0 = unlimited)

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.AWhereAPIKey = os.Getenv("AWHERE_API_KEY")
	cfg.AWhereAPISecret = os.Getenv("AWHERE_API_SECRET")
	cfg.AWhereBaseURL = os.Getenv("AWHERE_BASE_URL")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "15s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.BoundaryPath = os.Getenv("BOUNDARY_GEOJSON")

	cfg.GridBuffer, err = getenvFloat("GRID_BUFFER", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid GRID_BUFFER: %w", err)
	}
	cfg.GridCellSize, err = getenvFloat("GRID_CELL_SIZE", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid GRID_CELL_SIZE: %w", err)
	}

	// Survey interval: default 1 hour; observations are daily upstream.
	intervalStr := getenvDefault("SURVEY_INTERVAL", "1h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SURVEY_INTERVAL: %w", err)
	}
	cfg.SurveyInterval = interval

	surveyTimeoutStr := getenvDefault("SURVEY_TIMEOUT", "5m")
	surveyTimeout, err := time.ParseDuration(surveyTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SURVEY_TIMEOUT: %w", err)
	}
	cfg.SurveyTimeout = surveyTimeout

	cfg.SurveyWorkers = getenvInt("SURVEY_WORKERS", 8)

	// Store retention.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 168) // one week at hourly surveys

	maxAgeStr := getenvDefault("STORE_MAX_AGE", "168h")
	maxAge, err := time.ParseDuration(maxAgeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	cfg.StoreMaxAge = maxAge
	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.AWhereAPIKey == "" || cfg.AWhereAPISecret == "" {
		return nil, fmt.Errorf("AWHERE_API_KEY and AWHERE_API_SECRET are required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}
