// Package survey periodically samples aWhere observations across the
// centroids of a gridded area of interest and keeps a per-cell history.
package survey

import (
	"context"
	"time"

	"github.com/agrosphere/awhere-gridded-weather/internal/awhere"
)

// CellSnapshot is the observed weather for one grid cell at a point in time.
type CellSnapshot struct {
	CellID    string    `json:"cell_id"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Longitude float64   `json:"longitude"`
	Latitude  float64   `json:"latitude"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"` // always UTC

	// Observation date and columns as served by the API.
	Date              string  `json:"date"`
	TempMaxC          float64 `json:"temp_max_cels"`
	TempMinC          float64 `json:"temp_min_cels"`
	PrecipAmountMM    float64 `json:"precip_amount_mm"`
	SolarEnergyWhM2   float64 `json:"solar_energy_w_h_per_m2"`
	RelHumidityAvgPct float64 `json:"rel_humidity_avg_pct"`
	WindAvgMS         float64 `json:"wind_avg_m_per_sec"`
}

// Store is the contract the in-memory store (and any future persistent
// store) must satisfy.
type Store interface {
	SaveSnapshot(cellID string, snapshot CellSnapshot)
	GetLatest(cellID string) (CellSnapshot, error)
	GetRange(cellID string, from, to time.Time) ([]CellSnapshot, error)
}

// Source abstracts where observations come from, so surveys can run against
// the live API or a fixture.
type Source interface {
	Observe(ctx context.Context, loc awhere.Location) (awhere.Observation, error)
}

// ObservationSource fetches the most recent daily observation for a
// coordinate from the aWhere API.
type ObservationSource struct {
	Client *awhere.Client
}

func (s ObservationSource) Observe(ctx context.Context, loc awhere.Location) (awhere.Observation, error) {
	rows, err := s.Client.LocationObservations(ctx, loc, awhere.DayRange{}, awhere.PageOptions{})
	if err != nil {
		return awhere.Observation{}, err
	}
	if len(rows) == 0 {
		return awhere.Observation{}, ErrNoObservation
	}
	// The API serves the trailing week oldest first.
	return rows[len(rows)-1], nil
}
