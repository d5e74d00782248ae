package domain

import (
	"fmt"
	"time"
)

// Session represents a live game session being watched. The registry owns
// the canonical copy; everything handed out is a snapshot.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	Score         int       `json:"score"`
	GameMode      GameMode  `json:"gameMode"`
	GameState     GameState `json:"gameState"`
	StartedAt     time.Time `json:"startedAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// Clone returns a deep copy of the session
func (s Session) Clone() Session {
	out := s
	out.GameState = s.GameState.Clone()
	return out
}

// WatchStartRequest represents a request to start tracking a game session
type WatchStartRequest struct {
	GameMode GameMode `json:"gameMode"`
}

// WatchStartResponse is returned when a session is created
type WatchStartResponse struct {
	SessionID string    `json:"sessionId"`
	GameMode  GameMode  `json:"gameMode"`
	StartedAt time.Time `json:"startedAt"`
}

// WatchUpdateRequest carries a fresh game state for an active session
type WatchUpdateRequest struct {
	GameState GameState `json:"gameState"`
}

// WatchUpdateResponse acknowledges a state update
type WatchUpdateResponse struct {
	Message       string    `json:"message"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// WatchEndRequest represents a request to end a session and record its score
type WatchEndRequest struct {
	FinalScore int      `json:"finalScore"`
	GameMode   GameMode `json:"gameMode"`
}

// Validate checks the final score before it is recorded
func (r *WatchEndRequest) Validate() error {
	if r.FinalScore < 0 {
		return fmt.Errorf("score must be non-negative")
	}
	if !r.GameMode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidGameMode, r.GameMode)
	}
	return nil
}

// WatchEndEntry is the leaderboard row echoed back when a session ends.
// Unlike the leaderboard API it uses the watch API's camelCase keys.
type WatchEndEntry struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Score    int      `json:"score"`
	GameMode GameMode `json:"gameMode"`
	Date     string   `json:"date"`
}

// WatchEndResponse acknowledges session end
type WatchEndResponse struct {
	Message          string        `json:"message"`
	LeaderboardEntry WatchEndEntry `json:"leaderboardEntry"`
}

// ActivePlayersResponse lists the sessions currently considered live
type ActivePlayersResponse struct {
	Players []Session `json:"players"`
}
