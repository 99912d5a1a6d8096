package survey

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/agrosphere/awhere-gridded-weather/internal/awhere"
	"github.com/agrosphere/awhere-gridded-weather/internal/grid"
)

// ErrNoObservation is returned when the API has no observation for a
// coordinate.
var ErrNoObservation = errors.New("no observation available for location")

const defaultWorkers = 8

// Report summarizes one survey run over the grid.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Cells     int           `json:"cells"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// Service orchestrates surveys over a grid's cell centroids and persists
// per-cell snapshots.
type Service struct {
	store   Store
	source  Source
	grid    *grid.Grid
	workers int
}

// NewService creates a new Service. A non-positive workers value uses a
// default pool size.
func NewService(store Store, source Source, g *grid.Grid, workers int) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Service{
		store:   store,
		source:  source,
		grid:    g,
		workers: workers,
	}
}

// Grid returns the surveyed grid.
func (s *Service) Grid() *grid.Grid {
	return s.grid
}

// RunSurvey fetches the latest observation for every cell centroid
// concurrently and stores one snapshot per cell. Cells whose fetch fails are
// logged and skipped; their last good snapshot is not overwritten.
func (s *Service) RunSurvey(ctx context.Context) (Report, error) {
	if s.grid == nil || len(s.grid.Cells) == 0 {
		return Report{}, errors.New("no grid cells to survey")
	}

	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Cells:     len(s.grid.Cells),
	}
	log.Printf("INFO: survey %s starting over %d cells", report.RunID, report.Cells)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, s.workers)
	)

	for _, cell := range s.grid.Cells {
		cell := cell
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			centroid := cell.Centroid()
			loc := awhere.Location{Latitude: centroid.Lat(), Longitude: centroid.Lon()}

			obs, err := s.source.Observe(ctx, loc)
			if err != nil {
				log.Printf("ERROR: survey %s: cell %s fetch failed: %v", report.RunID, cell.ID(), err)
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return
			}

			snapshot := CellSnapshot{
				CellID:            cell.ID(),
				Row:               cell.Row,
				Col:               cell.Col,
				Longitude:         centroid.Lon(),
				Latitude:          centroid.Lat(),
				RunID:             report.RunID,
				Timestamp:         time.Now().UTC(),
				Date:              obs.Date,
				TempMaxC:          obs.TempMaxC,
				TempMinC:          obs.TempMinC,
				PrecipAmountMM:    obs.PrecipAmountMM,
				SolarEnergyWhM2:   obs.SolarEnergyWhM2,
				RelHumidityAvgPct: obs.RelHumidityAvgPct,
				WindAvgMS:         obs.WindAvgMS,
			}
			s.store.SaveSnapshot(cell.ID(), snapshot)

			mu.Lock()
			report.Succeeded++
			mu.Unlock()
		}()
	}

	wg.Wait()

	report.Duration = time.Since(report.StartedAt)
	log.Printf("INFO: survey %s finished: %d succeeded, %d failed in %s",
		report.RunID, report.Succeeded, report.Failed, report.Duration)
	return report, nil
}

// Latest delegates to the underlying store.
func (s *Service) Latest(cellID string) (CellSnapshot, error) {
	return s.store.GetLatest(cellID)
}

// History delegates to the underlying store.
func (s *Service) History(cellID string, from, to time.Time) ([]CellSnapshot, error) {
	return s.store.GetRange(cellID, from, to)
}

// LatestFeatures exports the most recent snapshot of every surveyed cell as
// a GeoJSON point feature collection. Cells without data are skipped.
func (s *Service) LatestFeatures() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if s.grid == nil {
		return fc
	}

	for _, cell := range s.grid.Cells {
		snapshot, err := s.store.GetLatest(cell.ID())
		if err != nil {
			continue
		}

		feature := geojson.NewFeature(cell.Centroid())
		feature.Properties = geojson.Properties{
			"cell_id":                 snapshot.CellID,
			"run_id":                  snapshot.RunID,
			"date":                    snapshot.Date,
			"temp_max_cels":           snapshot.TempMaxC,
			"temp_min_cels":           snapshot.TempMinC,
			"precip_amount_mm":        snapshot.PrecipAmountMM,
			"solar_energy_w_h_per_m2": snapshot.SolarEnergyWhM2,
			"rel_humidity_avg_pct":    snapshot.RelHumidityAvgPct,
			"wind_avg_m_per_sec":      snapshot.WindAvgMS,
		}
		fc.Append(feature)
	}
	return fc
}
