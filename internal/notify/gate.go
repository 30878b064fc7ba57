package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultCooldown is how long one market stays quiet after an alert.
const DefaultCooldown = 6 * time.Hour

const gateFileName = "notification_state.json"

// Gate rate-limits notifications per market: at most one alert per market
// per cooldown window, surviving restarts via a JSON state file.
type Gate struct {
	path     string
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]int64 // market ID → unix seconds of last alert
}

// OpenGate loads the persisted cooldown state. Entries older than the
// cooldown are pruned on load so the file never grows unbounded. A missing
// or malformed file starts empty.
func OpenGate(dir string, cooldown time.Duration, logger *slog.Logger) (*Gate, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	g := &Gate{
		path:     filepath.Join(dir, gateFileName),
		cooldown: cooldown,
		logger:   logger.With("component", "notify"),
		now:      time.Now,
		lastSent: make(map[string]int64),
	}

	data, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			return g, nil
		}
		return nil, fmt.Errorf("read notification state: %w", err)
	}
	if err := json.Unmarshal(data, &g.lastSent); err != nil {
		g.logger.Warn("notification state malformed, starting empty", "error", err)
		g.lastSent = make(map[string]int64)
		return g, nil
	}

	g.prune()
	return g, nil
}

// ShouldNotify reports whether a market is clear to alert. It does not
// record anything: callers mark the alert with MarkNotified only after a
// delivery actually succeeds, so a failed send does not burn the window.
func (g *Gate) ShouldNotify(marketID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastSent[marketID]
	if !ok {
		return true
	}
	return g.now().Unix()-last >= int64(g.cooldown.Seconds())
}

// MarkNotified records a delivered alert for a market and persists.
func (g *Gate) MarkNotified(marketID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastSent[marketID] = g.now().Unix()
	if err := g.save(); err != nil {
		g.logger.Warn("failed to persist notification state", "error", err)
	}
}

// prune drops expired entries. Caller holds the mutex or has exclusive access.
func (g *Gate) prune() {
	cutoff := g.now().Add(-g.cooldown).Unix()
	for market, last := range g.lastSent {
		if last < cutoff {
			delete(g.lastSent, market)
		}
	}
}

func (g *Gate) save() error {
	data, err := json.Marshal(g.lastSent)
	if err != nil {
		return err
	}
	tmp := g.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, g.path)
}
