// Package positions provides crash-safe persistence for open weather
// positions using a JSON file.
//
// All open positions live in one file (weather_positions.json) as a JSON
// list ordered by entry time, so the file and All() are deterministic
// across runs. Writes use atomic file replacement (write to .tmp, then
// rename) to prevent corruption from partial writes or crashes mid-save.
// The engine saves after every entry and exit, and loads on startup to
// restore state.
package positions

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Web3Newcomer/polymarket-weather/pkg/types"
)

const fileName = "weather_positions.json"

// Store persists open positions to a JSON file in the data directory.
// All operations are mutex-protected and write through to disk.
type Store struct {
	path   string
	logger *slog.Logger

	mu        sync.Mutex
	positions map[string]types.WeatherPosition // keyed by market ID
}

// Open creates the store and loads any existing positions. A missing file
// is a fresh start; a malformed file is logged and treated as empty rather
// than blocking startup.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		path:      filepath.Join(dir, fileName),
		logger:    logger.With("component", "positions"),
		positions: make(map[string]types.WeatherPosition),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read positions: %w", err)
	}
	var list []types.WeatherPosition
	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Warn("positions file malformed, starting empty", "path", s.path, "error", err)
		return s, nil
	}
	for _, pos := range list {
		s.positions[pos.MarketID] = pos
	}
	return s, nil
}

// Get returns the open position for a market.
func (s *Store) Get(marketID string) (types.WeatherPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[marketID]
	return pos, ok
}

// Has reports whether a market already has an open position.
func (s *Store) Has(marketID string) bool {
	_, ok := s.Get(marketID)
	return ok
}

// All returns a snapshot of every open position, oldest entry first.
func (s *Store) All() []types.WeatherPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Len returns the number of open positions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// Put records a position and persists immediately.
func (s *Store) Put(pos types.WeatherPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[pos.MarketID] = pos
	return s.save()
}

// Remove closes out a position and persists immediately. Removing an
// unknown market is a no-op.
func (s *Store) Remove(marketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[marketID]; !ok {
		return nil
	}
	delete(s.positions, marketID)
	return s.save()
}

// sortedLocked snapshots the positions ordered by entry time, market ID
// breaking ties. Caller holds the mutex.
func (s *Store) sortedLocked() []types.WeatherPosition {
	out := make([]types.WeatherPosition, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].MarketID < out[j].MarketID
	})
	return out
}

// save atomically rewrites the whole file. Caller holds the mutex.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.sortedLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return os.Rename(tmp, s.path)
}
