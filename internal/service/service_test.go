package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/snake-game/backend/internal/auth"
	"github.com/snake-game/backend/internal/config"
	"github.com/snake-game/backend/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*domain.User)}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return domain.ErrEmailExists
		}
		if u.Username == user.Username {
			return domain.ErrUsernameExists
		}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type fakeScoreStore struct {
	mu        sync.Mutex
	entries   []domain.ScoreEntry
	insertErr error
	topErr    error
}

func (f *fakeScoreStore) InsertScore(ctx context.Context, entry *domain.ScoreEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeScoreStore) ListScores(ctx context.Context, mode string, limit, offset int) ([]domain.ScoreEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var filtered []domain.ScoreEntry
	for _, e := range f.entries {
		if mode == "" || string(e.GameMode) == mode {
			filtered = append(filtered, e)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })
	if offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[offset:]
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func (f *fakeScoreStore) CountScores(ctx context.Context, mode string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, e := range f.entries {
		if mode == "" || string(e.GameMode) == mode {
			count++
		}
	}
	return count, nil
}

func (f *fakeScoreStore) TopScores(ctx context.Context, mode string, limit int) ([]domain.RankingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topErr != nil {
		return nil, f.topErr
	}
	best := make(map[string]domain.RankingEntry)
	for _, e := range f.entries {
		if string(e.GameMode) != mode {
			continue
		}
		if cur, ok := best[e.UserID]; !ok || e.Score > cur.Score {
			best[e.UserID] = domain.RankingEntry{UserID: e.UserID, Username: e.Username, Score: e.Score}
		}
	}
	out := make([]domain.RankingEntry, 0, len(best))
	for _, entry := range best {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (f *fakeScoreStore) all() []domain.ScoreEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ScoreEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

type fakeRanking struct {
	mu        sync.Mutex
	best      map[string]map[string]int
	names     map[string]string
	recordErr error
	topErr    error
}

func newFakeRanking() *fakeRanking {
	return &fakeRanking{
		best:  make(map[string]map[string]int),
		names: make(map[string]string),
	}
}

func (f *fakeRanking) RecordScore(ctx context.Context, mode, userID, username string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	if f.best[mode] == nil {
		f.best[mode] = make(map[string]int)
	}
	if cur, ok := f.best[mode][userID]; !ok || score > cur {
		f.best[mode][userID] = score
	}
	f.names[userID] = username
	return nil
}

func (f *fakeRanking) TopN(ctx context.Context, mode string, n int) ([]domain.RankingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topErr != nil {
		return nil, f.topErr
	}
	var out []domain.RankingEntry
	for userID, score := range f.best[mode] {
		out = append(out, domain.RankingEntry{UserID: userID, Username: f.names[userID], Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (f *fakeRanking) UserRank(ctx context.Context, mode, userID string) (*domain.RankingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	score, ok := f.best[mode][userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	rank := 1
	for _, other := range f.best[mode] {
		if other > score {
			rank++
		}
	}
	return &domain.RankingEntry{Rank: rank, UserID: userID, Username: f.names[userID], Score: score}, nil
}

func (f *fakeRanking) bestFor(mode, userID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	score, ok := f.best[mode][userID]
	return score, ok
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakePublisher) Publish(event domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) all() []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Event, len(f.events))
	copy(out, f.events)
	return out
}

func newTestAuthService() (*AuthService, *fakeUserStore) {
	users := newFakeUserStore()
	tokens := auth.NewManager(&config.AuthConfig{
		Secret:      "test-secret",
		TokenExpiry: time.Hour,
	})
	return NewAuthService(users, tokens, testLogger()), users
}

func signupReq() domain.SignupRequest {
	return domain.SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	}
}

func TestSignupCreatesUserWithToken(t *testing.T) {
	svc, users := newTestAuthService()

	resp, err := svc.Signup(context.Background(), signupReq())
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if resp.Token == "" {
		t.Error("Signup() returned empty token")
	}
	if resp.User.ID == "" {
		t.Error("Signup() returned empty user id")
	}
	if resp.User.Username != "alice" {
		t.Errorf("username = %q, want %q", resp.User.Username, "alice")
	}

	stored, err := users.GetUserByID(context.Background(), resp.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if stored.PasswordHash == "password123" {
		t.Error("password stored in plaintext")
	}
	if !auth.VerifyPassword("password123", stored.PasswordHash) {
		t.Error("stored hash does not verify against the password")
	}
}

func TestSignupConflicts(t *testing.T) {
	svc, _ := newTestAuthService()
	if _, err := svc.Signup(context.Background(), signupReq()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	tests := []struct {
		name string
		req  domain.SignupRequest
		want error
	}{
		{
			name: "same email",
			req:  domain.SignupRequest{Username: "bob", Email: "alice@example.com", Password: "password123"},
			want: domain.ErrEmailExists,
		},
		{
			name: "same username",
			req:  domain.SignupRequest{Username: "alice", Email: "bob@example.com", Password: "password123"},
			want: domain.ErrUsernameExists,
		},
		{
			// Email is checked first, so both clashing reports the email
			name: "same email and username",
			req:  domain.SignupRequest{Username: "alice", Email: "alice@example.com", Password: "password123"},
			want: domain.ErrEmailExists,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Signup(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Signup() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestAuthService()

	tests := []struct {
		name string
		req  domain.SignupRequest
	}{
		{"short username", domain.SignupRequest{Username: "ab", Email: "a@b.com", Password: "password123"}},
		{"long username", domain.SignupRequest{Username: "abcdefghijklmnopqrstu", Email: "a@b.com", Password: "password123"}},
		{"bad characters", domain.SignupRequest{Username: "al ice!", Email: "a@b.com", Password: "password123"}},
		{"short password", domain.SignupRequest{Username: "alice", Email: "a@b.com", Password: "short"}},
		{"bad email", domain.SignupRequest{Username: "alice", Email: "not-an-email", Password: "password123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Signup(context.Background(), tt.req); err == nil {
				t.Error("Signup() error = nil, want validation error")
			}
		})
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestAuthService()
	if _, err := svc.Signup(context.Background(), signupReq()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	resp, err := svc.Login(context.Background(), domain.LoginRequest{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Token == "" {
		t.Error("Login() returned empty token")
	}
	if resp.User.Username != "alice" {
		t.Errorf("username = %q, want %q", resp.User.Username, "alice")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestAuthService()
	if _, err := svc.Signup(context.Background(), signupReq()); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	tests := []struct {
		name string
		req  domain.LoginRequest
	}{
		{"wrong password", domain.LoginRequest{Username: "alice", Password: "wrongpassword"}},
		{"unknown user", domain.LoginRequest{Username: "mallory", Password: "password123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(context.Background(), tt.req); !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}
