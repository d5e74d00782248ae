package domain

import (
	"fmt"
	"time"
)

// Date is a day-granularity timestamp that marshals as an ISO calendar
// date (YYYY-MM-DD), matching the leaderboard's date column.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	t, err := time.Parse("2006-01-02", s[1:len(s)-1])
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ScoreEntry represents a single leaderboard row. The leaderboard API keeps
// the snake_case keys of the storage schema.
type ScoreEntry struct {
	ID       string   `json:"id"`
	UserID   string   `json:"-"`
	Username string   `json:"username"`
	Score    int      `json:"score"`
	GameMode GameMode `json:"game_mode"`
	Date     Date     `json:"date"`
}

// SubmitScoreRequest represents a direct score submission
type SubmitScoreRequest struct {
	Score    int      `json:"score"`
	GameMode GameMode `json:"game_mode"`
}

// Validate checks the submission before it is stored
func (r *SubmitScoreRequest) Validate() error {
	if r.Score < 0 {
		return fmt.Errorf("score must be non-negative")
	}
	if !r.GameMode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidGameMode, r.GameMode)
	}
	return nil
}

// LeaderboardResponse is a paginated slice of the leaderboard
type LeaderboardResponse struct {
	Entries []ScoreEntry `json:"entries"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// RankingEntry is one row of the best-score ranking served from Redis
type RankingEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// RankingsResponse is the best-score ranking for one game mode
type RankingsResponse struct {
	GameMode GameMode       `json:"game_mode"`
	Rankings []RankingEntry `json:"rankings"`
}

// ScoreSubmission represents a score event consumed from the ingestion topic
type ScoreSubmission struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Score     int       `json:"score"`
	GameMode  GameMode  `json:"game_mode"`
	Timestamp time.Time `json:"timestamp"`
}
