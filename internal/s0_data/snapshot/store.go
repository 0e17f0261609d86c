package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/pkg/logger"
)

// Store owns the persisted snapshot file and an in-memory copy of it.
// Writes go to a temp file in the same directory and are renamed into place,
// so a concurrent reader sees either the old or the new file, never a partial one.
type Store struct {
	path   string
	logger *logger.Logger

	mu      sync.RWMutex
	records []contracts.MetricRecord
	loaded  bool
}

// NewStore creates a store for the snapshot at path
func NewStore(path string, log *logger.Logger) *Store {
	return &Store{
		path:   path,
		logger: log.WithField("module", "snapshot"),
	}
}

// Path returns the snapshot file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot from disk. A missing file is an empty snapshot.
func (s *Store) Load() ([]contracts.MetricRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return clone(s.records), nil
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.records = nil
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	var records []contracts.MetricRecord
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("decode snapshot %s: %w", s.path, err)
		}
	}

	s.records = Normalize(records)
	s.loaded = true
	return nil
}

// Save replaces the snapshot. Records are de-duplicated by symbol (last wins)
// and sorted by symbol before they are written.
func (s *Store) Save(records []contracts.MetricRecord) error {
	normalized := Normalize(records)

	data, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.path, data); err != nil {
		return err
	}

	s.records = normalized
	s.loaded = true

	s.logger.WithFields(map[string]interface{}{
		"path":    s.path,
		"records": len(normalized),
	}).Debug("Snapshot saved")

	return nil
}

// Records returns the current snapshot, loading it on first use
func (s *Store) Records() ([]contracts.MetricRecord, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.records), nil
}

// Get returns one symbol's record
func (s *Store) Get(symbol string) (contracts.MetricRecord, bool, error) {
	if err := s.ensureLoaded(); err != nil {
		return contracts.MetricRecord{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.records), func(i int) bool { return s.records[i].Symbol >= symbol })
	if i < len(s.records) && s.records[i].Symbol == symbol {
		return s.records[i], true, nil
	}
	return contracts.MetricRecord{}, false, nil
}

// LatestUpdate returns the most recent last-updated date in the snapshot, or "" when empty
func (s *Store) LatestUpdate() (string, error) {
	if err := s.ensureLoaded(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return LatestUpdate(s.records), nil
}

func (s *Store) ensureLoaded() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	return s.loadLocked()
}

// Normalize returns records with one entry per symbol (the last one seen), sorted by symbol
func Normalize(records []contracts.MetricRecord) []contracts.MetricRecord {
	bySymbol := Index(records)
	out := make([]contracts.MetricRecord, 0, len(bySymbol))
	for _, rec := range bySymbol {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Index maps records by symbol; a later duplicate replaces an earlier one
func Index(records []contracts.MetricRecord) map[string]contracts.MetricRecord {
	out := make(map[string]contracts.MetricRecord, len(records))
	for _, rec := range records {
		if rec.Symbol == "" {
			continue
		}
		out[rec.Symbol] = rec
	}
	return out
}

// LatestUpdate returns the max LastUpdated across records
func LatestUpdate(records []contracts.MetricRecord) string {
	latest := ""
	for _, rec := range records {
		// YYYY-MM-DD compares correctly as a string
		if rec.LastUpdated > latest {
			latest = rec.LastUpdated
		}
	}
	return latest
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func clone(records []contracts.MetricRecord) []contracts.MetricRecord {
	if records == nil {
		return nil
	}
	out := make([]contracts.MetricRecord, len(records))
	copy(out, records)
	return out
}
