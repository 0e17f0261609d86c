package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// cycleMarker records the last refresh cycle that started and the last one
// that ran to completion. Batch checkpoints date records before a cycle ends,
// so the snapshot's own dates cannot tell a finished cycle from a killed one.
type cycleMarker struct {
	Started   string `json:"started,omitempty"`   // YYYY-MM-DD
	Completed string `json:"completed,omitempty"` // YYYY-MM-DD
}

// CyclePath returns the location of the cycle marker beside the snapshot
func (s *Store) CyclePath() string {
	return s.path + ".cycle"
}

// BeginCycle marks a cycle for date as started and not yet completed
func (s *Store) BeginCycle(date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCycleLocked(cycleMarker{Started: date})
}

// CompleteCycle marks the cycle for date as completed
func (s *Store) CompleteCycle(date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker, err := s.readCycle()
	if err != nil {
		return err
	}
	marker.Completed = date
	return s.writeCycleLocked(marker)
}

// CompletedCycle returns the date of the last completed cycle, or "" when
// no cycle has completed or the marker is missing
func (s *Store) CompletedCycle() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	marker, err := s.readCycle()
	if err != nil {
		return "", err
	}
	return marker.Completed, nil
}

func (s *Store) readCycle() (cycleMarker, error) {
	var marker cycleMarker

	data, err := os.ReadFile(s.CyclePath())
	if errors.Is(err, fs.ErrNotExist) {
		return marker, nil
	}
	if err != nil {
		return marker, fmt.Errorf("read cycle marker: %w", err)
	}
	if len(data) == 0 {
		return marker, nil
	}
	if err := json.Unmarshal(data, &marker); err != nil {
		return marker, fmt.Errorf("decode cycle marker: %w", err)
	}
	return marker, nil
}

func (s *Store) writeCycleLocked(marker cycleMarker) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("encode cycle marker: %w", err)
	}
	if err := writeAtomic(s.CyclePath(), data); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"started":   marker.Started,
		"completed": marker.Completed,
	}).Debug("Cycle marker saved")
	return nil
}
