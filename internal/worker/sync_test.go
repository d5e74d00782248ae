package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/snake-game/backend/internal/config"
	"github.com/snake-game/backend/internal/domain"
)

type fakeSource struct {
	mu      sync.Mutex
	entries map[string][]domain.RankingEntry
	errs    map[string]error
	calls   int
}

func (f *fakeSource) BestScores(ctx context.Context, mode string) ([]domain.RankingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[mode]; err != nil {
		return nil, err
	}
	return f.entries[mode], nil
}

type fakeSink struct {
	mu       sync.Mutex
	rebuilds map[string][]domain.RankingEntry
	err      error
}

func (f *fakeSink) Rebuild(ctx context.Context, mode string, entries []domain.RankingEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.rebuilds == nil {
		f.rebuilds = make(map[string][]domain.RankingEntry)
	}
	f.rebuilds[mode] = entries
	return nil
}

func (f *fakeSink) got(mode string) ([]domain.RankingEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, ok := f.rebuilds[mode]
	return entries, ok
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rebuilds)
}

func newTestSync(source *fakeSource, sink *fakeSink, interval time.Duration) *RankingSync {
	cfg := &config.LeaderboardConfig{
		DefaultLimit: 10,
		MaxLimit:     100,
		RankingSize:  100,
		SyncInterval: interval,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRankingSync(source, sink, cfg, logger)
}

func TestSyncRebuildsEveryMode(t *testing.T) {
	source := &fakeSource{entries: map[string][]domain.RankingEntry{
		"pass-through": {
			{Rank: 1, Username: "alice", Score: 300},
			{Rank: 2, Username: "bob", Score: 150},
		},
		"walls": {
			{Rank: 1, Username: "carol", Score: 90},
		},
	}}
	sink := &fakeSink{}
	w := newTestSync(source, sink, time.Minute)

	w.RunOnce(context.Background())

	passThrough, ok := sink.got("pass-through")
	if !ok {
		t.Fatal("pass-through ranking not rebuilt")
	}
	if len(passThrough) != 2 || passThrough[0].Username != "alice" {
		t.Errorf("pass-through entries = %+v, want alice then bob", passThrough)
	}

	walls, ok := sink.got("walls")
	if !ok {
		t.Fatal("walls ranking not rebuilt")
	}
	if len(walls) != 1 || walls[0].Username != "carol" {
		t.Errorf("walls entries = %+v, want carol", walls)
	}
}

func TestSyncContinuesAfterModeFailure(t *testing.T) {
	source := &fakeSource{
		entries: map[string][]domain.RankingEntry{
			"walls": {{Rank: 1, Username: "carol", Score: 90}},
		},
		errs: map[string]error{
			"pass-through": errors.New("connection refused"),
		},
	}
	sink := &fakeSink{}
	w := newTestSync(source, sink, time.Minute)

	w.RunOnce(context.Background())

	if _, ok := sink.got("pass-through"); ok {
		t.Error("pass-through rebuilt despite source failure")
	}
	if _, ok := sink.got("walls"); !ok {
		t.Error("walls not rebuilt after pass-through failure")
	}
}

func TestSyncRebuildsEmptyMode(t *testing.T) {
	source := &fakeSource{entries: map[string][]domain.RankingEntry{}}
	sink := &fakeSink{}
	w := newTestSync(source, sink, time.Minute)

	w.RunOnce(context.Background())

	if got := sink.count(); got != len(domain.GameModes()) {
		t.Errorf("rebuilt %d modes, want %d", got, len(domain.GameModes()))
	}
}

func TestSyncBackgroundLoop(t *testing.T) {
	source := &fakeSource{entries: map[string][]domain.RankingEntry{
		"walls": {{Rank: 1, Username: "carol", Score: 90}},
	}}
	sink := &fakeSink{}
	w := newTestSync(source, sink, 10*time.Millisecond)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := sink.got("walls"); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("background loop never rebuilt the ranking")
}

func TestSyncStartStop(t *testing.T) {
	w := newTestSync(&fakeSource{}, &fakeSink{}, time.Minute)

	if w.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !w.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}

	if w.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestSyncStopWithoutStart(t *testing.T) {
	w := newTestSync(&fakeSource{}, &fakeSink{}, time.Minute)

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() without Start error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
