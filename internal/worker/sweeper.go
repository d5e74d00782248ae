package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/snake-game/backend/internal/config"
	"github.com/snake-game/backend/internal/domain"
	"github.com/snake-game/backend/internal/metrics"
	"github.com/snake-game/backend/internal/session"
)

// EventPublisher delivers session events to observers
type EventPublisher interface {
	Publish(event domain.Event)
}

// Sweeper periodically evicts sessions whose heartbeat went quiet and
// announces their departure to observers. Evictions never record a score;
// only an explicit end call reaches the leaderboard.
type Sweeper struct {
	store   *session.Store
	hub     EventPublisher
	config  *config.SessionConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSweeper creates a new liveness sweeper
func NewSweeper(
	store *session.Store,
	hub EventPublisher,
	cfg *config.SessionConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Sweeper {
	return &Sweeper{
		store:   store,
		hub:     hub,
		config:  cfg,
		logger:  logger,
		metrics: m,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background sweep loop
func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("liveness sweeper started",
		"interval", w.config.CleanupInterval,
		"timeout", w.config.Timeout,
	)

	go w.run(ctx)
	return nil
}

// Stop stops the sweep loop and waits for the in-flight tick to finish
func (w *Sweeper) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.logger.Info("liveness sweeper stopped")
	return nil
}

// run is the main sweep loop
func (w *Sweeper) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

// sweep runs one eviction cycle
func (w *Sweeper) sweep() {
	cutoff := time.Now().UTC().Add(-w.config.Timeout)
	expired := w.store.ExpireBefore(cutoff)
	if len(expired) == 0 {
		return
	}

	for _, sess := range expired {
		w.hub.Publish(domain.Event{
			Type:      domain.EventPlayerLeave,
			SessionID: sess.ID,
		})
		w.logger.Info("evicted stale session",
			"session_id", sess.ID,
			"username", sess.Username,
			"last_updated_at", sess.LastUpdatedAt,
		)
	}

	w.metrics.SessionsSwept.Add(float64(len(expired)))
	w.metrics.ActiveSessions.Set(float64(w.store.Count()))
}

// IsRunning returns whether the sweeper is currently running
func (w *Sweeper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sweep cycle (useful for manual triggers)
func (w *Sweeper) RunOnce() {
	w.sweep()
}
