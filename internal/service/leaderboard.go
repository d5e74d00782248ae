package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snake-game/backend/internal/config"
	"github.com/snake-game/backend/internal/domain"
)

// ScoreStore persists and queries finished-game scores
type ScoreStore interface {
	InsertScore(ctx context.Context, entry *domain.ScoreEntry) error
	ListScores(ctx context.Context, mode string, limit, offset int) ([]domain.ScoreEntry, error)
	CountScores(ctx context.Context, mode string) (int, error)
	TopScores(ctx context.Context, mode string, limit int) ([]domain.RankingEntry, error)
}

// Ranking keeps per-mode best scores for fast top-N reads
type Ranking interface {
	RecordScore(ctx context.Context, mode, userID, username string, score int) error
	TopN(ctx context.Context, mode string, n int) ([]domain.RankingEntry, error)
	UserRank(ctx context.Context, mode, userID string) (*domain.RankingEntry, error)
}

// LeaderboardService provides business logic for leaderboard operations
type LeaderboardService struct {
	scores  ScoreStore
	ranking Ranking
	config  *config.LeaderboardConfig
	logger  *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	scores ScoreStore,
	ranking Ranking,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		scores:  scores,
		ranking: ranking,
		config:  cfg,
		logger:  logger,
	}
}

// SubmitScore records a score for the user
func (s *LeaderboardService) SubmitScore(ctx context.Context, user *domain.User, req domain.SubmitScoreRequest) (*domain.ScoreEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	entry := &domain.ScoreEntry{
		ID:       uuid.New().String(),
		UserID:   user.ID,
		Username: user.Username,
		Score:    req.Score,
		GameMode: req.GameMode,
		Date:     domain.NewDate(time.Now().UTC()),
	}
	if err := s.scores.InsertScore(ctx, entry); err != nil {
		return nil, fmt.Errorf("inserting score: %w", err)
	}

	if err := s.ranking.RecordScore(ctx, string(req.GameMode), user.ID, user.Username, req.Score); err != nil {
		// Don't fail the request if the ranking update fails
		s.logger.Warn("failed to update ranking", "user_id", user.ID, "error", err)
	}

	return entry, nil
}

// RecordSubmission applies a score submission from the ingestion topic
func (s *LeaderboardService) RecordSubmission(ctx context.Context, sub domain.ScoreSubmission) error {
	if !sub.GameMode.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidGameMode, sub.GameMode)
	}
	if sub.Score < 0 {
		return fmt.Errorf("score must be non-negative")
	}

	date := sub.Timestamp
	if date.IsZero() {
		date = time.Now().UTC()
	}

	entry := &domain.ScoreEntry{
		ID:       uuid.New().String(),
		UserID:   sub.UserID,
		Username: sub.Username,
		Score:    sub.Score,
		GameMode: sub.GameMode,
		Date:     domain.NewDate(date),
	}
	if err := s.scores.InsertScore(ctx, entry); err != nil {
		return fmt.Errorf("inserting score: %w", err)
	}

	if err := s.ranking.RecordScore(ctx, string(sub.GameMode), sub.UserID, sub.Username, sub.Score); err != nil {
		s.logger.Warn("failed to update ranking", "user_id", sub.UserID, "error", err)
	}
	return nil
}

// GetLeaderboard returns a page of score entries, highest score first.
// An empty mode spans all game modes.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, mode string, limit, offset int) (*domain.LeaderboardResponse, error) {
	if mode != "" && !domain.GameMode(mode).Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidGameMode, mode)
	}

	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.scores.ListScores(ctx, mode, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	total, err := s.scores.CountScores(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("counting scores: %w", err)
	}

	if entries == nil {
		entries = []domain.ScoreEntry{}
	}
	return &domain.LeaderboardResponse{
		Entries: entries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// GetRankings returns the cached best-score top N for a mode, falling
// back to the score store when the cache is unavailable
func (s *LeaderboardService) GetRankings(ctx context.Context, mode string, limit int) ([]domain.RankingEntry, error) {
	if !domain.GameMode(mode).Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidGameMode, mode)
	}

	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.RankingSize {
		limit = s.config.RankingSize
	}

	entries, err := s.ranking.TopN(ctx, mode, limit)
	if err != nil {
		s.logger.Warn("ranking read failed, falling back to score store",
			"game_mode", mode,
			"error", err,
		)
		entries, err = s.scores.TopScores(ctx, mode, limit)
		if err != nil {
			return nil, fmt.Errorf("getting top scores: %w", err)
		}
	}

	if entries == nil {
		entries = []domain.RankingEntry{}
	}
	return entries, nil
}

// PlayerRank returns the user's position in a mode's ranking.
// ErrUserNotFound means the user has no ranked score there.
func (s *LeaderboardService) PlayerRank(ctx context.Context, mode, userID string) (*domain.RankingEntry, error) {
	if !domain.GameMode(mode).Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidGameMode, mode)
	}

	entry, err := s.ranking.UserRank(ctx, mode, userID)
	if err != nil {
		return nil, err
	}
	return entry, nil
}
