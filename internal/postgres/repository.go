package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snake-game/backend/internal/config"
	"github.com/snake-game/backend/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(64) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			username VARCHAR(64) NOT NULL,
			score BIGINT NOT NULL,
			game_mode VARCHAR(20) NOT NULL,
			date DATE NOT NULL DEFAULT CURRENT_DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_score ON scores(score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_mode_score ON scores(game_mode, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user ON scores(user_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreateUser inserts a new user row
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by id
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, "id", id)
}

// GetUserByUsername retrieves a user by username
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, "username", username)
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, "email", email)
}

func (r *Repository) getUser(ctx context.Context, column, value string) (*domain.User, error) {
	query := fmt.Sprintf(`
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE %s = $1
	`, column)

	var user domain.User
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user by %s: %w", column, err)
	}
	return &user, nil
}

// InsertScore records a finished game's score
func (r *Repository) InsertScore(ctx context.Context, entry *domain.ScoreEntry) error {
	query := `
		INSERT INTO scores (id, user_id, username, score, game_mode, date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Username,
		entry.Score,
		string(entry.GameMode),
		entry.Date.Time,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting score: %w", err)
	}
	return nil
}

// ListScores retrieves score entries sorted by score descending.
// An empty mode returns entries for all game modes.
func (r *Repository) ListScores(ctx context.Context, mode string, limit, offset int) ([]domain.ScoreEntry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if mode != "" {
		query := `
			SELECT id, user_id, username, score, game_mode, date
			FROM scores
			WHERE game_mode = $1
			ORDER BY score DESC, created_at ASC
			LIMIT $2 OFFSET $3
		`
		rows, err = r.pool.Query(ctx, query, mode, limit, offset)
	} else {
		query := `
			SELECT id, user_id, username, score, game_mode, date
			FROM scores
			ORDER BY score DESC, created_at ASC
			LIMIT $1 OFFSET $2
		`
		rows, err = r.pool.Query(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	defer rows.Close()

	var entries []domain.ScoreEntry
	for rows.Next() {
		var (
			entry domain.ScoreEntry
			day   time.Time
		)
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Username,
			&entry.Score,
			&entry.GameMode,
			&day,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		entry.Date = domain.NewDate(day)
		entries = append(entries, entry)
	}
	return entries, nil
}

// CountScores returns the number of score entries, optionally filtered by mode
func (r *Repository) CountScores(ctx context.Context, mode string) (int, error) {
	var (
		count int
		err   error
	)
	if mode != "" {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scores WHERE game_mode = $1`, mode).Scan(&count)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scores`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting scores: %w", err)
	}
	return count, nil
}

// TopScores returns each user's best score for a mode, best first
func (r *Repository) TopScores(ctx context.Context, mode string, limit int) ([]domain.RankingEntry, error) {
	query := `
		SELECT user_id, username, MAX(score) AS best
		FROM scores
		WHERE game_mode = $1
		GROUP BY user_id, username
		ORDER BY best DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, mode, limit)
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w", err)
	}
	defer rows.Close()

	var entries []domain.RankingEntry
	for rows.Next() {
		var entry domain.RankingEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.Score); err != nil {
			return nil, fmt.Errorf("scanning top score: %w", err)
		}
		entry.Rank = len(entries) + 1
		entries = append(entries, entry)
	}
	return entries, nil
}

// BestScores returns every user's best score for a mode, for ranking rebuilds
func (r *Repository) BestScores(ctx context.Context, mode string) ([]domain.RankingEntry, error) {
	query := `
		SELECT user_id, username, MAX(score) AS best
		FROM scores
		WHERE game_mode = $1
		GROUP BY user_id, username
		ORDER BY best DESC
	`
	rows, err := r.pool.Query(ctx, query, mode)
	if err != nil {
		return nil, fmt.Errorf("getting best scores: %w", err)
	}
	defer rows.Close()

	var entries []domain.RankingEntry
	for rows.Next() {
		var entry domain.RankingEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.Score); err != nil {
			return nil, fmt.Errorf("scanning best score: %w", err)
		}
		entry.Rank = len(entries) + 1
		entries = append(entries, entry)
	}
	return entries, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return domain.ErrEmailExists
		case strings.Contains(pgErr.ConstraintName, "username"):
			return domain.ErrUsernameExists
		}
	}
	return nil
}
