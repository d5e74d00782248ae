package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snake-game/backend/internal/config"
	"github.com/snake-game/backend/internal/domain"
	"github.com/snake-game/backend/internal/metrics"
	"github.com/snake-game/backend/internal/session"
)

// EventPublisher delivers session events to observers
type EventPublisher interface {
	Publish(event domain.Event)
}

// WatchService coordinates live game sessions: tracking them in the
// session store, broadcasting their lifecycle to observers, and recording
// final scores when they end.
type WatchService struct {
	store   *session.Store
	hub     EventPublisher
	scores  ScoreStore
	ranking Ranking
	config  *config.SessionConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWatchService creates a new watch service
func NewWatchService(
	store *session.Store,
	hub EventPublisher,
	scores ScoreStore,
	ranking Ranking,
	cfg *config.SessionConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *WatchService {
	return &WatchService{
		store:   store,
		hub:     hub,
		scores:  scores,
		ranking: ranking,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// StartSession creates a session for the user and announces the join
func (s *WatchService) StartSession(ctx context.Context, user *domain.User, req domain.WatchStartRequest) (*domain.Session, error) {
	if !req.GameMode.Valid() {
		return nil, domain.ErrInvalidGameMode
	}

	sess := s.store.Create(user.ID, user.Username, req.GameMode)
	s.metrics.ActiveSessions.Set(float64(s.store.Count()))

	s.hub.Publish(domain.Event{
		Type:      domain.EventPlayerJoin,
		SessionID: sess.ID,
		Session:   &sess,
	})

	s.logger.Info("session started",
		"session_id", sess.ID,
		"user_id", user.ID,
		"game_mode", req.GameMode,
	)
	return &sess, nil
}

// UpdateSession stores a fresh game state and broadcasts it to observers
func (s *WatchService) UpdateSession(ctx context.Context, userID, sessionID string, req domain.WatchUpdateRequest) (*domain.Session, error) {
	if err := req.GameState.Validate(); err != nil {
		return nil, err
	}

	sess, err := s.store.Update(sessionID, userID, req.GameState)
	if err != nil {
		return nil, err
	}

	s.hub.Publish(domain.Event{
		Type:      domain.EventPlayerUpdate,
		SessionID: sess.ID,
		Session:   &sess,
	})
	return &sess, nil
}

// EndSession removes the session, records the final score and announces
// the departure. Once the session is gone the score write and ranking
// update are best-effort: failures are logged and the end still stands.
func (s *WatchService) EndSession(ctx context.Context, user *domain.User, sessionID string, req domain.WatchEndRequest) (*domain.WatchEndResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.End(sessionID, user.ID); err != nil {
		return nil, err
	}
	s.metrics.ActiveSessions.Set(float64(s.store.Count()))

	entry := &domain.ScoreEntry{
		ID:       uuid.New().String(),
		UserID:   user.ID,
		Username: user.Username,
		Score:    req.FinalScore,
		GameMode: req.GameMode,
		Date:     domain.NewDate(time.Now().UTC()),
	}
	if err := s.scores.InsertScore(ctx, entry); err != nil {
		s.logger.Error("failed to persist final score",
			"session_id", sessionID,
			"user_id", user.ID,
			"error", err,
		)
	} else if err := s.ranking.RecordScore(ctx, string(req.GameMode), user.ID, user.Username, req.FinalScore); err != nil {
		s.logger.Warn("failed to update ranking", "user_id", user.ID, "error", err)
	}

	s.hub.Publish(domain.Event{
		Type:      domain.EventPlayerLeave,
		SessionID: sessionID,
	})

	s.logger.Info("session ended",
		"session_id", sessionID,
		"user_id", user.ID,
		"final_score", req.FinalScore,
	)

	return &domain.WatchEndResponse{
		Message: "Session ended",
		LeaderboardEntry: domain.WatchEndEntry{
			ID:       entry.ID,
			Username: entry.Username,
			Score:    entry.Score,
			GameMode: entry.GameMode,
			Date:     entry.Date.Format("2006-01-02"),
		},
	}, nil
}

// ListActivePlayers returns sessions with a recent heartbeat, most recent first
func (s *WatchService) ListActivePlayers() []domain.Session {
	return s.store.ListActive(time.Now().UTC(), s.config.Timeout)
}

// GetActivePlayer returns one session, treating stale sessions as absent
func (s *WatchService) GetActivePlayer(sessionID string) (*domain.Session, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().Sub(sess.LastUpdatedAt) > s.config.Timeout {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}
