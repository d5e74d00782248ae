package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snake-game/backend/internal/auth"
	"github.com/snake-game/backend/internal/domain"
	"github.com/snake-game/backend/internal/service"
	"github.com/snake-game/backend/internal/watch"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries the collaborators the HTTP layer needs
type Deps struct {
	Auth        *service.AuthService
	Leaderboard *service.LeaderboardService
	Watch       *service.WatchService
	Tokens      *auth.Manager
	Hub         *watch.Hub
	Registry    *prometheus.Registry
	DB          Pinger
	Cache       Pinger
	Logger      *slog.Logger
}

// Handler provides the HTTP handlers for the API
type Handler struct {
	authService        *service.AuthService
	leaderboardService *service.LeaderboardService
	watchService       *service.WatchService
	tokens             *auth.Manager
	hub                *watch.Hub
	registry           *prometheus.Registry
	db                 Pinger
	cache              Pinger
	logger             *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Deps) *Handler {
	return &Handler{
		authService:        deps.Auth,
		leaderboardService: deps.Leaderboard,
		watchService:       deps.Watch,
		tokens:             deps.Tokens,
		hub:                deps.Hub,
		registry:           deps.Registry,
		db:                 deps.DB,
		cache:              deps.Cache,
		logger:             deps.Logger,
	}
}

// ErrorBody is the machine-readable half of an error response
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the error envelope shared by every endpoint
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Get("/", h.Welcome)
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))

	// Observer WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/logout", h.Logout)
				r.Get("/me", h.Me)
			})
		})

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", h.GetLeaderboard)
			r.Get("/rankings", h.GetRankings)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/", h.SubmitScore)
				r.Get("/rankings/me", h.GetMyRank)
			})
		})

		r.Route("/watch", func(r chi.Router) {
			r.Get("/active", h.GetActivePlayers)
			r.Get("/active/{playerId}", h.GetActivePlayer)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/start", h.StartWatch)
				r.Put("/update/{sessionId}", h.UpdateWatch)
				r.Post("/end/{sessionId}", h.EndWatch)
			})
		})

		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

var allowedOrigins = map[string]bool{
	"http://localhost:5173": true,
	"http://localhost:3000": true,
}

// corsMiddleware adds CORS headers for the browser frontend
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type contextKey string

const userContextKey contextKey = "user"

// requireAuth resolves the bearer token to a user and stores it on the
// request context
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Could not validate credentials")
			return
		}

		userID, err := h.tokens.ValidateToken(token)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Could not validate credentials")
			return
		}

		user, err := h.authService.GetUser(r.Context(), userID)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				h.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
				return
			}
			h.logger.Error("failed to load authenticated user", "user_id", userID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFrom returns the authenticated user stored by requireAuth
func userFrom(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userContextKey).(*domain.User)
	return user
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// writeDomainError maps a service error to its status code and envelope
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmailExists):
		h.writeError(w, http.StatusConflict, "EMAIL_EXISTS", "The user with this email already exists in the system.")
	case errors.Is(err, domain.ErrUsernameExists):
		h.writeError(w, http.StatusConflict, "USERNAME_EXISTS", "The user with this username already exists in the system.")
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	case errors.Is(err, domain.ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found")
	case errors.Is(err, domain.ErrSessionForbidden):
		h.writeError(w, http.StatusForbidden, "FORBIDDEN", "Session doesn't belong to authenticated user")
	case errors.Is(err, domain.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, domain.ErrInvalidGameMode):
		h.writeError(w, http.StatusBadRequest, "INVALID_GAME_MODE", "Game mode must be 'pass-through' or 'walls'")
	case errors.Is(err, domain.ErrInvalidGameState):
		h.writeError(w, http.StatusBadRequest, "INVALID_GAME_STATE", err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// writeValidationError maps a request validation failure to 400
func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidGameMode) {
		h.writeError(w, http.StatusBadRequest, "INVALID_GAME_MODE", "Game mode must be 'pass-through' or 'walls'")
		return
	}
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}

// Welcome greets API explorers
func (h *Handler) Welcome(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Snake Game API"})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck verifies the backing stores are reachable
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("database not ready", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "NOT_READY", "Database unavailable")
		return
	}
	if err := h.cache.Ping(ctx); err != nil {
		h.logger.Warn("cache not ready", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "NOT_READY", "Cache unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleWebSocket handles observer WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	watch.ServeWS(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns observer connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]int{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// Signup registers a new account
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeValidationError(w, err)
		return
	}

	resp, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

// Login exchanges credentials for a token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Logout acknowledges a logout. Tokens are stateless, so the client just
// discards its copy.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Me returns the authenticated user
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, userFrom(r.Context()))
}

// GetLeaderboard returns a leaderboard page sorted by score descending
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}
	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil {
			offset = o
		}
	}

	resp, err := h.leaderboardService.GetLeaderboard(r.Context(), query.Get("gameMode"), limit, offset)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// SubmitScore records a score for the authenticated user
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeValidationError(w, err)
		return
	}

	entry, err := h.leaderboardService.SubmitScore(r.Context(), userFrom(r.Context()), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, entry)
}

// GetRankings returns the best-score ranking for one game mode
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	mode := query.Get("gameMode")
	rankings, err := h.leaderboardService.GetRankings(r.Context(), mode, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, domain.RankingsResponse{
		GameMode: domain.GameMode(mode),
		Rankings: rankings,
	})
}

// GetMyRank returns the authenticated user's position in a mode's ranking
func (h *Handler) GetMyRank(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	entry, err := h.leaderboardService.PlayerRank(r.Context(), r.URL.Query().Get("gameMode"), user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "No ranked score for this game mode")
			return
		}
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, entry)
}

// GetActivePlayers lists the sessions currently being played
func (h *Handler) GetActivePlayers(w http.ResponseWriter, r *http.Request) {
	players := h.watchService.ListActivePlayers()
	if players == nil {
		players = []domain.Session{}
	}
	h.writeJSON(w, http.StatusOK, domain.ActivePlayersResponse{Players: players})
}

// GetActivePlayer returns one live session
func (h *Handler) GetActivePlayer(w http.ResponseWriter, r *http.Request) {
	sess, err := h.watchService.GetActivePlayer(chi.URLParam(r, "playerId"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "Player session not found or not active")
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// StartWatch opens a new watched session for the authenticated user
func (h *Handler) StartWatch(w http.ResponseWriter, r *http.Request) {
	var req domain.WatchStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	sess, err := h.watchService.StartSession(r.Context(), userFrom(r.Context()), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, domain.WatchStartResponse{
		SessionID: sess.ID,
		GameMode:  sess.GameMode,
		StartedAt: sess.StartedAt,
	})
}

// UpdateWatch stores a fresh game state for a session
func (h *Handler) UpdateWatch(w http.ResponseWriter, r *http.Request) {
	var req domain.WatchUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	user := userFrom(r.Context())
	sess, err := h.watchService.UpdateSession(r.Context(), user.ID, chi.URLParam(r, "sessionId"), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, domain.WatchUpdateResponse{
		Message:       "Game state updated",
		LastUpdatedAt: sess.LastUpdatedAt,
	})
}

// EndWatch closes a session and records its final score
func (h *Handler) EndWatch(w http.ResponseWriter, r *http.Request) {
	var req domain.WatchEndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeValidationError(w, err)
		return
	}

	resp, err := h.watchService.EndSession(r.Context(), userFrom(r.Context()), chi.URLParam(r, "sessionId"), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}
