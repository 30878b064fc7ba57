package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGateCooldown(t *testing.T) {
	t.Parallel()

	g, err := OpenGate(t.TempDir(), 6*time.Hour, testLogger())
	if err != nil {
		t.Fatalf("OpenGate: %v", err)
	}

	now := time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	if !g.ShouldNotify("m1") {
		t.Fatal("first alert should pass")
	}
	g.MarkNotified("m1")
	if g.ShouldNotify("m1") {
		t.Error("second alert inside the window should be suppressed")
	}
	if !g.ShouldNotify("m2") {
		t.Error("a different market is unaffected")
	}

	now = now.Add(5 * time.Hour)
	if g.ShouldNotify("m1") {
		t.Error("alert at 5h should still be suppressed")
	}

	now = now.Add(2 * time.Hour) // 7h after the first alert
	if !g.ShouldNotify("m1") {
		t.Error("alert after the window should pass")
	}
}

func TestGateChecksWithoutRecording(t *testing.T) {
	t.Parallel()

	g, err := OpenGate(t.TempDir(), 6*time.Hour, testLogger())
	if err != nil {
		t.Fatalf("OpenGate: %v", err)
	}

	// A check alone never starts a cooldown, so a delivery that failed
	// can be retried on the next scan.
	for i := 0; i < 3; i++ {
		if !g.ShouldNotify("m1") {
			t.Fatalf("check %d started a cooldown without a delivery", i)
		}
	}

	g.MarkNotified("m1")
	if g.ShouldNotify("m1") {
		t.Error("market should be in cooldown after the alert is recorded")
	}
}

func TestGatePersistsAcrossRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	g, err := OpenGate(dir, 6*time.Hour, testLogger())
	if err != nil {
		t.Fatalf("OpenGate: %v", err)
	}
	if !g.ShouldNotify("m1") {
		t.Fatal("first alert should pass")
	}
	g.MarkNotified("m1")

	g2, err := OpenGate(dir, 6*time.Hour, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if g2.ShouldNotify("m1") {
		t.Error("cooldown must survive a restart")
	}
}

func TestGatePrunesExpiredOnLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := map[string]int64{
		"old":    time.Now().Add(-48 * time.Hour).Unix(),
		"recent": time.Now().Add(-time.Hour).Unix(),
	}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, gateFileName), data, 0o600); err != nil {
		t.Fatal(err)
	}

	g, err := OpenGate(dir, 6*time.Hour, testLogger())
	if err != nil {
		t.Fatalf("OpenGate: %v", err)
	}
	if len(g.lastSent) != 1 {
		t.Errorf("loaded %d entries, want 1 (expired pruned)", len(g.lastSent))
	}
	if _, ok := g.lastSent["recent"]; !ok {
		t.Error("recent entry was pruned")
	}
	if g.ShouldNotify("recent") {
		t.Error("recent market should still be in cooldown")
	}
	if !g.ShouldNotify("old") {
		t.Error("pruned market should be clear to alert")
	}
}

func TestGateMalformedStateStartsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, gateFileName), []byte("{oops"), 0o600); err != nil {
		t.Fatal(err)
	}

	g, err := OpenGate(dir, 0, testLogger())
	if err != nil {
		t.Fatalf("OpenGate should tolerate a malformed file: %v", err)
	}
	if g.cooldown != DefaultCooldown {
		t.Errorf("cooldown = %v, want default %v", g.cooldown, DefaultCooldown)
	}
	if !g.ShouldNotify("m1") {
		t.Error("empty gate should allow the first alert")
	}
}
