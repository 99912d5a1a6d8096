package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"

	"github.com/agrosphere/awhere-gridded-weather/internal/awhere"
	"github.com/agrosphere/awhere-gridded-weather/internal/grid"
	"github.com/agrosphere/awhere-gridded-weather/internal/store"
	"github.com/agrosphere/awhere-gridded-weather/internal/survey"
)

// staticSource serves a fixed observation for any coordinate.
type staticSource struct{}

func (staticSource) Observe(ctx context.Context, loc awhere.Location) (awhere.Observation, error) {
	return awhere.Observation{
		Date:      "2026-08-28",
		TempMaxC:  25.0,
		Longitude: loc.Longitude,
		Latitude:  loc.Latitude,
	}, nil
}

func newTestApp(t *testing.T) (*fiber.App, *survey.Service) {
	t.Helper()

	poly := orb.Polygon{{
		{0, 0}, {0.16, 0}, {0.16, 0.16}, {0, 0.16}, {0, 0},
	}}
	builder := grid.Builder{}
	g, _, err := builder.Build(grid.Boundary{Geometry: poly}, 0)
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}

	memStore := store.NewMemoryStore(10, time.Hour)
	svc := survey.NewService(memStore, staticSource{}, g, 2)

	app := fiber.New()
	RegisterRoutes(app, Deps{Service: svc, Source: staticSource{}})
	return app, svc
}

// TestCurrentWeatherValidation verifies the current weather endpoint
// enforces coordinate parameters.
func TestCurrentWeatherValidation(t *testing.T) {
	app, _ := newTestApp(t)

	// Missing parameters should return 400.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/current", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Out-of-range coordinates should also return 400.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?lat=95&lon=10", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// A place without a configured resolver should return 400.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?place=Fort+Collins", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

// TestCurrentWeatherByCoordinates verifies a valid coordinate yields the
// source observation.
func TestCurrentWeatherByCoordinates(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weather/current?lat=40.5&lon=-105.1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var obs awhere.Observation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if obs.Latitude != 40.5 || obs.Longitude != -105.1 {
		t.Fatalf("unexpected observation: %+v", obs)
	}
}

// TestCellLatestNotFound verifies an unsurveyed cell yields 404 and a
// surveyed one yields its snapshot.
func TestCellLatest(t *testing.T) {
	app, svc := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cells/r0c0/latest", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	if _, err := svc.RunSurvey(context.Background()); err != nil {
		t.Fatalf("run survey: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cells/r0c0/latest", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var snapshot survey.CellSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snapshot.CellID != "r0c0" || snapshot.TempMaxC != 25.0 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

// TestCellHistoryValidation verifies the history endpoint requires a valid
// time window.
func TestCellHistoryValidation(t *testing.T) {
	app, _ := newTestApp(t)

	// Missing from/to should return 400.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cells/r0c0/history", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// An inverted window should also return 400.
	req = httptest.NewRequest(http.MethodGet,
		"/api/v1/cells/r0c0/history?from=2026-08-28T00:00:00Z&to=2026-08-27T00:00:00Z", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

// TestBuildGridEndpoint verifies POST /grids tessellates a boundary and
// reports the lattice dimensions.
func TestBuildGridEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	body := `{
		"boundary": {
			"type": "Polygon",
			"coordinates": [[[0,0],[0.16,0],[0.16,0.16],[0,0.16],[0,0]]]
		},
		"buffer": 0
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grids", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.StatusCode, raw)
	}

	var out struct {
		Rows  int `json:"rows"`
		Cols  int `json:"cols"`
		Cells int `json:"cells"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Rows != 2 || out.Cols != 2 || out.Cells != 4 {
		t.Fatalf("unexpected grid dimensions: %+v", out)
	}
}

// TestBuildGridRejectsBadBoundary verifies degenerate geometry yields 400.
func TestBuildGridRejectsBadBoundary(t *testing.T) {
	app, _ := newTestApp(t)

	body := `{"boundary": {"type": "Point", "coordinates": [0, 0]}, "buffer": 0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grids", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

// TestBuildGridRejectsTinyCellSize verifies a cell size that would blow the
// lattice past the builder's cell limit yields 400 instead of allocating.
func TestBuildGridRejectsTinyCellSize(t *testing.T) {
	app, _ := newTestApp(t)

	body := `{
		"boundary": {
			"type": "Polygon",
			"coordinates": [[[0,0],[0.16,0],[0.16,0.16],[0,0.16],[0,0]]]
		},
		"buffer": 0,
		"cell_size": 0.0000001
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grids", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

// TestSurveyRunEndpoint verifies a triggered run reports its cell counts.
func TestSurveyRunEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/survey/run", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var report survey.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.Cells != 4 || report.Succeeded != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
