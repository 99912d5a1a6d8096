package store

import (
	"errors"
	"sync"
	"time"

	"github.com/agrosphere/awhere-gridded-weather/internal/survey"
)

var (
	// ErrNotFound is returned when no data is available for a given cell.
	ErrNotFound = errors.New("no survey data for cell")
)

// SnapshotHistory holds a time-ordered list of snapshots for a grid cell.
type SnapshotHistory struct {
	Snapshots []survey.CellSnapshot
}

// MemoryStore is a concurrency-safe in-memory implementation of a survey store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: grid cell id, value: history
	data map[string]*SnapshotHistory

	// retention configuration
	maxHistory int           // max number of snapshots per cell
	maxAge     time.Duration // optional max age for snapshots
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*SnapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveSnapshot appends a new snapshot for a cell and enforces retention.
func (s *MemoryStore) SaveSnapshot(cellID string, snapshot survey.CellSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[cellID]
	if !ok {
		history = &SnapshotHistory{}
		s.data[cellID] = history
	}

	history.Snapshots = append(history.Snapshots, snapshot)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Snapshots) > s.maxHistory {
		over := len(history.Snapshots) - s.maxHistory
		history.Snapshots = history.Snapshots[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Snapshots); i++ {
			if history.Snapshots[i].Timestamp.After(cutoff) || history.Snapshots[i].Timestamp.Equal(cutoff) {
				break
			}
		}
		if i > 0 {
			history.Snapshots = history.Snapshots[i:]
		}
	}
}

// GetLatest returns the most recent snapshot for a cell.
func (s *MemoryStore) GetLatest(cellID string) (survey.CellSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[cellID]
	if !ok || len(history.Snapshots) == 0 {
		return survey.CellSnapshot{}, ErrNotFound
	}
	return history.Snapshots[len(history.Snapshots)-1], nil
}

// GetRange returns all snapshots for a cell between from and to (inclusive).
func (s *MemoryStore) GetRange(cellID string, from, to time.Time) ([]survey.CellSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[cellID]
	if !ok || len(history.Snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []survey.CellSnapshot
	for _, snap := range history.Snapshots {
		if (snap.Timestamp.Equal(from) || snap.Timestamp.After(from)) &&
			(snap.Timestamp.Equal(to) || snap.Timestamp.Before(to)) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
