package domain

import "fmt"

// GameMode represents the rule set a snake game is played under
type GameMode string

const (
	GameModePassThrough GameMode = "pass-through"
	GameModeWalls       GameMode = "walls"
)

// Valid checks whether the mode is one of the supported rule sets
func (m GameMode) Valid() bool {
	return m == GameModePassThrough || m == GameModeWalls
}

// GameModes lists every supported rule set
func GameModes() []GameMode {
	return []GameMode{GameModePassThrough, GameModeWalls}
}

// GridSize is the board dimension; coordinates run 0..GridSize-1
const GridSize = 20

// Position represents a cell on the game grid
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InBounds checks whether the position lies on the grid
func (p Position) InBounds() bool {
	return p.X >= 0 && p.X < GridSize && p.Y >= 0 && p.Y < GridSize
}

// Directions the snake can travel
const (
	DirectionUp    = "up"
	DirectionDown  = "down"
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// GameState represents a full snapshot of a running game
type GameState struct {
	Snake     []Position `json:"snake"`
	Food      Position   `json:"food"`
	Direction string     `json:"direction"`
	Score     int        `json:"score"`
	GameOver  bool       `json:"gameOver"`
}

// NewGameState returns the starting configuration: a three-segment snake
// in the middle of the grid heading right
func NewGameState() GameState {
	return GameState{
		Snake:     []Position{{X: 10, Y: 10}, {X: 9, Y: 10}, {X: 8, Y: 10}},
		Food:      Position{X: 15, Y: 15},
		Direction: DirectionRight,
		Score:     0,
		GameOver:  false,
	}
}

// Validate checks grid bounds, direction and score before a client-supplied
// state is accepted
func (s *GameState) Validate() error {
	if len(s.Snake) == 0 {
		return fmt.Errorf("%w: snake must have at least one segment", ErrInvalidGameState)
	}
	for _, p := range s.Snake {
		if !p.InBounds() {
			return fmt.Errorf("%w: snake segment (%d,%d) outside %dx%d grid", ErrInvalidGameState, p.X, p.Y, GridSize, GridSize)
		}
	}
	if !s.Food.InBounds() {
		return fmt.Errorf("%w: food (%d,%d) outside %dx%d grid", ErrInvalidGameState, s.Food.X, s.Food.Y, GridSize, GridSize)
	}
	switch s.Direction {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidGameState, s.Direction)
	}
	if s.Score < 0 {
		return fmt.Errorf("%w: score must be non-negative", ErrInvalidGameState)
	}
	return nil
}

// Clone returns a deep copy so callers can hand out snapshots without
// sharing the snake slice
func (s GameState) Clone() GameState {
	out := s
	out.Snake = make([]Position, len(s.Snake))
	copy(out.Snake, s.Snake)
	return out
}
