package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/snake-game/backend/internal/config"
	"github.com/snake-game/backend/internal/domain"
)

// Ranking provides Redis-based best-score rankings, one sorted set per
// game mode with the user id as member and the user's best score as score.
type Ranking struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRanking creates a new Redis ranking store
func NewRanking(cfg *config.RedisConfig, logger *slog.Logger) (*Ranking, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Ranking{
		client: client,
		logger: logger,
	}, nil
}

// NewRankingFromClient creates a ranking store on an existing client
func NewRankingFromClient(client *redis.Client, logger *slog.Logger) *Ranking {
	return &Ranking{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (r *Ranking) Close() error {
	return r.client.Close()
}

// Client returns the underlying Redis client
func (r *Ranking) Client() *redis.Client {
	return r.client
}

// Ping checks Redis connectivity
func (r *Ranking) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// rankingKey returns the Redis key for a game mode's sorted set
func (r *Ranking) rankingKey(mode string) string {
	return fmt.Sprintf("leaderboard:%s:best", mode)
}

// playerInfoKey returns the Redis key for a user's cached info
func (r *Ranking) playerInfoKey(userID string) string {
	return fmt.Sprintf("player:%s:info", userID)
}

// RecordScore stores a score if it beats the user's current best
func (r *Ranking) RecordScore(ctx context.Context, mode, userID, username string, score int) error {
	pipe := r.client.Pipeline()
	pipe.ZAddGT(ctx, r.rankingKey(mode), redis.Z{
		Score:  float64(score),
		Member: userID,
	})
	pipe.HSet(ctx, r.playerInfoKey(userID), "username", username)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording score: %w", err)
	}
	return nil
}

// TopN returns the top N users for a game mode, best first
func (r *Ranking) TopN(ctx context.Context, mode string, n int) ([]domain.RankingEntry, error) {
	results, err := r.client.ZRevRangeWithScores(ctx, r.rankingKey(mode), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	nameCmds := make([]*redis.StringCmd, len(results))
	for i, result := range results {
		nameCmds[i] = pipe.HGet(ctx, r.playerInfoKey(result.Member.(string)), "username")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("getting usernames: %w", err)
	}

	entries := make([]domain.RankingEntry, len(results))
	for i, result := range results {
		username, err := nameCmds[i].Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("getting username: %w", err)
		}
		entries[i] = domain.RankingEntry{
			Rank:     i + 1,
			UserID:   result.Member.(string),
			Username: username,
			Score:    int(result.Score),
		}
	}
	return entries, nil
}

// UserRank returns a user's rank and best score for a game mode
func (r *Ranking) UserRank(ctx context.Context, mode, userID string) (*domain.RankingEntry, error) {
	key := r.rankingKey(mode)

	pipe := r.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, key, userID)
	scoreCmd := pipe.ZScore(ctx, key, userID)
	nameCmd := pipe.HGet(ctx, r.playerInfoKey(userID), "username")
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("getting user rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting rank result: %w", err)
	}
	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}
	username, err := nameCmd.Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("getting username result: %w", err)
	}

	return &domain.RankingEntry{
		Rank:     int(rank) + 1, // Convert 0-indexed to 1-indexed
		UserID:   userID,
		Username: username,
		Score:    int(score),
	}, nil
}

// Count returns the number of ranked users for a game mode
func (r *Ranking) Count(ctx context.Context, mode string) (int64, error) {
	count, err := r.client.ZCard(ctx, r.rankingKey(mode)).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// Rebuild replaces a game mode's ranking with the given entries
func (r *Ranking) Rebuild(ctx context.Context, mode string, entries []domain.RankingEntry) error {
	key := r.rankingKey(mode)

	pipe := r.client.Pipeline()
	pipe.Del(ctx, key)
	for _, entry := range entries {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(entry.Score),
			Member: entry.UserID,
		})
		pipe.HSet(ctx, r.playerInfoKey(entry.UserID), "username", entry.Username)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuilding ranking: %w", err)
	}

	r.logger.Info("ranking rebuilt", "game_mode", mode, "entries", len(entries))
	return nil
}
