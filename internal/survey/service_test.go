package survey

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/agrosphere/awhere-gridded-weather/internal/awhere"
	"github.com/agrosphere/awhere-gridded-weather/internal/grid"
)

var errNotFound = errors.New("not found")

// fakeStore records snapshots keyed by cell id.
type fakeStore struct {
	mu        sync.Mutex
	snapshots map[string][]CellSnapshot
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[string][]CellSnapshot)}
}

func (f *fakeStore) SaveSnapshot(cellID string, snapshot CellSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[cellID] = append(f.snapshots[cellID], snapshot)
}

func (f *fakeStore) GetLatest(cellID string) (CellSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.snapshots[cellID]
	if len(history) == 0 {
		return CellSnapshot{}, errNotFound
	}
	return history[len(history)-1], nil
}

func (f *fakeStore) GetRange(cellID string, from, to time.Time) ([]CellSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.snapshots[cellID]
	if len(history) == 0 {
		return nil, errNotFound
	}
	return history, nil
}

// fakeSource serves a fixed observation, failing for centroids it was told
// to reject.
type fakeSource struct {
	mu     sync.Mutex
	calls  int
	reject func(loc awhere.Location) bool
}

func (f *fakeSource) Observe(ctx context.Context, loc awhere.Location) (awhere.Observation, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.reject != nil && f.reject(loc) {
		return awhere.Observation{}, ErrNoObservation
	}
	return awhere.Observation{
		Date:           "2026-08-28",
		TempMaxC:       24.5,
		TempMinC:       11.0,
		PrecipAmountMM: 2.2,
		Longitude:      loc.Longitude,
		Latitude:       loc.Latitude,
	}, nil
}

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()

	poly := orb.Polygon{{
		{0, 0}, {0.16, 0}, {0.16, 0.16}, {0, 0.16}, {0, 0},
	}}
	builder := grid.Builder{}
	g, _, err := builder.Build(grid.Boundary{Geometry: poly}, 0)
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}
	if len(g.Cells) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(g.Cells))
	}
	return g
}

// TestRunSurveyStoresEveryCell verifies every centroid is sampled once and
// one snapshot is stored per cell.
func TestRunSurveyStoresEveryCell(t *testing.T) {
	g := testGrid(t)
	store := newFakeStore()
	source := &fakeSource{}
	svc := NewService(store, source, g, 2)

	report, err := svc.RunSurvey(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.RunID == "" {
		t.Fatal("expected a run id")
	}
	if report.Cells != 4 || report.Succeeded != 4 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if source.calls != 4 {
		t.Fatalf("expected 4 source calls, got %d", source.calls)
	}

	for _, cell := range g.Cells {
		snapshot, err := store.GetLatest(cell.ID())
		if err != nil {
			t.Fatalf("missing snapshot for cell %s", cell.ID())
		}
		if snapshot.RunID != report.RunID {
			t.Fatalf("expected snapshot tagged with run id %s, got %s", report.RunID, snapshot.RunID)
		}
		centroid := cell.Centroid()
		if snapshot.Longitude != centroid.Lon() || snapshot.Latitude != centroid.Lat() {
			t.Fatalf("snapshot coordinates do not match centroid: %+v", snapshot)
		}
	}
}

// TestRunSurveyPartialFailure verifies a failing cell is counted but does
// not stop the rest of the survey.
func TestRunSurveyPartialFailure(t *testing.T) {
	g := testGrid(t)
	store := newFakeStore()
	first := g.Cells[0].Centroid()
	source := &fakeSource{
		reject: func(loc awhere.Location) bool {
			return loc.Longitude == first.Lon() && loc.Latitude == first.Lat()
		},
	}
	svc := NewService(store, source, g, 0)

	report, err := svc.RunSurvey(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Succeeded != 3 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	if _, err := store.GetLatest(g.Cells[0].ID()); err == nil {
		t.Fatal("expected no snapshot for the failed cell")
	}
}

// TestRunSurveyEmptyGrid verifies a survey without cells fails fast.
func TestRunSurveyEmptyGrid(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeSource{}, nil, 1)
	if _, err := svc.RunSurvey(context.Background()); err == nil {
		t.Fatal("expected error for empty grid")
	}
}

// TestLatestFeatures verifies the GeoJSON export carries one point feature
// per surveyed cell with the observation columns as properties.
func TestLatestFeatures(t *testing.T) {
	g := testGrid(t)
	store := newFakeStore()
	svc := NewService(store, &fakeSource{}, g, 1)

	if _, err := svc.RunSurvey(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fc := svc.LatestFeatures()
	if len(fc.Features) != 4 {
		t.Fatalf("expected 4 features, got %d", len(fc.Features))
	}

	f := fc.Features[0]
	if _, ok := f.Geometry.(orb.Point); !ok {
		t.Fatalf("expected point geometry, got %T", f.Geometry)
	}
	if f.Properties["temp_max_cels"] != 24.5 {
		t.Fatalf("unexpected feature properties: %+v", f.Properties)
	}
	if f.Properties["cell_id"] == "" {
		t.Fatal("expected cell id property")
	}
}
