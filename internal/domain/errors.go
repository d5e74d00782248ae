package domain

import "errors"

// Domain errors
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionForbidden   = errors.New("session doesn't belong to authenticated user")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrUsernameExists     = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidGameMode    = errors.New("invalid game mode")
	ErrInvalidGameState   = errors.New("invalid game state")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrUserNotFound)
}

// IsConflictError checks if an error is a uniqueness conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrEmailExists) || errors.Is(err, ErrUsernameExists)
}
