package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// User represents a registered account
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SignupRequest represents a new account registration
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate applies the registration rules: username 3-20 word characters,
// password at least 8 characters, email syntactically plausible
func (r *SignupRequest) Validate() error {
	if len(r.Username) < 3 || len(r.Username) > 20 {
		return fmt.Errorf("username must be between 3 and 20 characters")
	}
	if !usernamePattern.MatchString(r.Username) {
		return fmt.Errorf("username can only contain alphanumeric characters and underscores")
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	at := strings.Index(r.Email, "@")
	if at <= 0 || at == len(r.Email)-1 {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// LoginRequest represents a credential check
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned on successful signup or login
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
