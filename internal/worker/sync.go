package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/snake-game/backend/internal/config"
	"github.com/snake-game/backend/internal/domain"
)

// RankingSource provides each user's best score for a game mode
type RankingSource interface {
	BestScores(ctx context.Context, mode string) ([]domain.RankingEntry, error)
}

// RankingSink is the fast-read ranking being rebuilt
type RankingSink interface {
	Rebuild(ctx context.Context, mode string, entries []domain.RankingEntry) error
}

// RankingSync periodically rebuilds the per-mode ranking from the score
// store. The score store is the source of truth; the rebuild heals the
// ranking after cache restarts or missed updates.
type RankingSync struct {
	source  RankingSource
	sink    RankingSink
	config  *config.LeaderboardConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewRankingSync creates a new ranking sync worker
func NewRankingSync(
	source RankingSource,
	sink RankingSink,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *RankingSync {
	return &RankingSync{
		source: source,
		sink:   sink,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *RankingSync) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("ranking sync started", "interval", w.config.SyncInterval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *RankingSync) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.logger.Info("ranking sync stopped")
	return nil
}

// run is the main worker loop
func (w *RankingSync) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.syncAll(ctx)
		}
	}
}

// syncAll rebuilds the ranking for every game mode
func (w *RankingSync) syncAll(ctx context.Context) {
	startTime := time.Now()

	syncedCount := 0
	errorCount := 0

	for _, mode := range domain.GameModes() {
		if err := w.syncMode(ctx, string(mode)); err != nil {
			w.logger.Error("failed to rebuild ranking",
				"game_mode", mode,
				"error", err,
			)
			errorCount++
		} else {
			syncedCount++
		}
	}

	w.logger.Info("ranking sync completed",
		"duration", time.Since(startTime),
		"synced", syncedCount,
		"errors", errorCount,
	)
}

// syncMode rebuilds one mode's ranking from the score store
func (w *RankingSync) syncMode(ctx context.Context, mode string) error {
	entries, err := w.source.BestScores(ctx, mode)
	if err != nil {
		return err
	}

	if err := w.sink.Rebuild(ctx, mode, entries); err != nil {
		return err
	}

	w.logger.Debug("rebuilt ranking",
		"game_mode", mode,
		"player_count", len(entries),
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *RankingSync) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle (useful at startup and for manual triggers)
func (w *RankingSync) RunOnce(ctx context.Context) {
	w.syncAll(ctx)
}
