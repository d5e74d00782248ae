package watch

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/snake-game/backend/internal/domain"
	"github.com/snake-game/backend/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub() *Hub {
	return NewHub(testLogger(), metrics.New(prometheus.NewRegistry()))
}

func testSession(id, username string) *domain.Session {
	return &domain.Session{
		ID:        id,
		UserID:    "user-" + id,
		Username:  username,
		Score:     0,
		GameMode:  domain.GameModeWalls,
		GameState: domain.NewGameState(),
	}
}

func recvFrame(t *testing.T, c *Client) EventFrame {
	t.Helper()
	select {
	case data := <-c.send:
		var frame EventFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("received unparseable frame %s: %v", data, err)
		}
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return EventFrame{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame received: %s", data)
	default:
	}
}

func TestPublishUpdateHonorsSubscriptions(t *testing.T) {
	h := newTestHub()
	subscriber := testClient("subscriber")
	watchesAll := testClient("watches-all")
	h.Register(subscriber)
	h.Register(watchesAll)
	h.Subscribe(subscriber, "s1")

	// Both match s1: one by subscription, one by the empty-set rule.
	h.Publish(domain.Event{Type: domain.EventPlayerUpdate, SessionID: "s1", Session: testSession("s1", "alice")})

	got := recvFrame(t, subscriber)
	if got.Type != "player:update" || got.PlayerID != "s1" {
		t.Errorf("subscriber got %+v, want player:update for s1", got)
	}
	got = recvFrame(t, watchesAll)
	if got.Type != "player:update" || got.PlayerID != "s1" {
		t.Errorf("watches-all got %+v, want player:update for s1", got)
	}

	// Only the empty-set connection matches s2.
	h.Publish(domain.Event{Type: domain.EventPlayerUpdate, SessionID: "s2", Session: testSession("s2", "bob")})

	assertNoFrame(t, subscriber)
	got = recvFrame(t, watchesAll)
	if got.PlayerID != "s2" {
		t.Errorf("watches-all got update for %q, want s2", got.PlayerID)
	}
}

func TestPublishJoinIgnoresSubscriptions(t *testing.T) {
	h := newTestHub()
	subscriber := testClient("subscriber")
	h.Register(subscriber)
	h.Subscribe(subscriber, "s1")

	// Joins are announced to everyone, even connections whose
	// subscriptions do not cover the joining player.
	h.Publish(domain.Event{Type: domain.EventPlayerJoin, SessionID: "s2", Session: testSession("s2", "bob")})

	got := recvFrame(t, subscriber)
	if got.Type != "player:join" || got.PlayerID != "s2" {
		t.Errorf("got %+v, want global player:join for s2", got)
	}
}

func TestPublishLeaveIgnoresSubscriptions(t *testing.T) {
	h := newTestHub()
	subscriber := testClient("subscriber")
	h.Register(subscriber)
	h.Subscribe(subscriber, "s1")

	h.Publish(domain.Event{Type: domain.EventPlayerLeave, SessionID: "s2"})

	got := recvFrame(t, subscriber)
	if got.Type != "player:leave" || got.PlayerID != "s2" {
		t.Errorf("got %+v, want global player:leave for s2", got)
	}
	if got.Data != nil {
		t.Errorf("leave frame carries data: %+v", got.Data)
	}
}

func TestPublishSkipsNonMatching(t *testing.T) {
	h := newTestHub()
	a := testClient("a")
	h.Register(a)
	h.Subscribe(a, "s1")

	h.Publish(domain.Event{Type: domain.EventPlayerUpdate, SessionID: "s2", Session: testSession("s2", "bob")})

	assertNoFrame(t, a)
}

func TestPublishDropsFailedConnection(t *testing.T) {
	h := newTestHub()
	healthy1 := testClient("healthy-1")
	healthy2 := testClient("healthy-2")
	stuck := &Client{id: "stuck", send: make(chan []byte)} // zero buffer, never drained
	h.Register(healthy1)
	h.Register(stuck)
	h.Register(healthy2)

	h.Publish(domain.Event{Type: domain.EventPlayerUpdate, SessionID: "s1", Session: testSession("s1", "alice")})

	// The two healthy connections still got the event.
	if got := recvFrame(t, healthy1); got.PlayerID != "s1" {
		t.Errorf("healthy-1 got %+v", got)
	}
	if got := recvFrame(t, healthy2); got.PlayerID != "s1" {
		t.Errorf("healthy-2 got %+v", got)
	}

	// The stuck one was unregistered.
	if got := h.GetTotalConnections(); got != 2 {
		t.Errorf("GetTotalConnections() = %d after dropping stuck connection, want 2", got)
	}
}

func TestPublishNoRecipients(t *testing.T) {
	h := newTestHub()
	// Publishing into an empty hub is a no-op, not an error.
	h.Publish(domain.Event{Type: domain.EventPlayerJoin, SessionID: "s1", Session: testSession("s1", "alice")})
	h.Publish(domain.Event{Type: domain.EventPlayerLeave, SessionID: "s1"})
}

func TestUnregisterTwice(t *testing.T) {
	h := newTestHub()
	c := testClient("a")
	h.Register(c)

	h.Unregister(c)
	h.Unregister(c) // second call must be a clean no-op

	if got := h.GetTotalConnections(); got != 0 {
		t.Errorf("GetTotalConnections() = %d, want 0", got)
	}
}

func TestUnregisteredReceivesNothing(t *testing.T) {
	h := newTestHub()
	c := testClient("a")
	h.Register(c)
	h.Unregister(c)

	h.Publish(domain.Event{Type: domain.EventPlayerJoin, SessionID: "s1", Session: testSession("s1", "alice")})

	if _, ok := <-c.send; ok {
		t.Error("unregistered connection received a frame")
	}
}

func TestStopClosesConnections(t *testing.T) {
	h := newTestHub()
	a := testClient("a")
	b := testClient("b")
	h.Register(a)
	h.Register(b)

	h.Stop()

	if got := h.GetTotalConnections(); got != 0 {
		t.Errorf("GetTotalConnections() after Stop = %d, want 0", got)
	}
	if _, ok := <-a.send; ok {
		t.Error("client a send channel still open after Stop")
	}
	if _, ok := <-b.send; ok {
		t.Error("client b send channel still open after Stop")
	}
}

func TestRegisterAfterStop(t *testing.T) {
	h := newTestHub()
	h.Stop()

	c := testClient("late")
	h.Register(c)

	if got := h.GetTotalConnections(); got != 0 {
		t.Errorf("GetTotalConnections() = %d, want 0 after registering into stopped hub", got)
	}
	if _, ok := <-c.send; ok {
		t.Error("late client was not closed")
	}
}

func TestUpdateFrameCarriesGameState(t *testing.T) {
	h := newTestHub()
	c := testClient("a")
	h.Register(c)

	sess := testSession("s1", "alice")
	sess.Score = 30
	sess.GameState.Score = 30
	h.Publish(domain.Event{Type: domain.EventPlayerUpdate, SessionID: "s1", Session: sess})

	got := recvFrame(t, c)
	if got.Data == nil || got.Data.GameState == nil {
		t.Fatalf("update frame missing game state: %+v", got)
	}
	if got.Data.Score != 30 || got.Data.GameState.Score != 30 {
		t.Errorf("update frame score = %d/%d, want 30/30", got.Data.Score, got.Data.GameState.Score)
	}
	if got.Data.Username != "alice" {
		t.Errorf("update frame username = %q, want alice", got.Data.Username)
	}
}

func TestJoinFrameOmitsGameState(t *testing.T) {
	h := newTestHub()
	c := testClient("a")
	h.Register(c)

	h.Publish(domain.Event{Type: domain.EventPlayerJoin, SessionID: "s1", Session: testSession("s1", "alice")})

	got := recvFrame(t, c)
	if got.Data == nil {
		t.Fatal("join frame missing data")
	}
	if got.Data.GameState != nil {
		t.Error("join frame carries game state, want none")
	}
}
