package domain

// EventType labels the observer broadcast events
type EventType string

const (
	EventPlayerJoin   EventType = "player:join"
	EventPlayerUpdate EventType = "player:update"
	EventPlayerLeave  EventType = "player:leave"
)

// Event is one broadcast unit flowing from the watch API to observers.
// Session is a point-in-time snapshot and is nil for leave events.
type Event struct {
	Type      EventType
	SessionID string
	Session   *Session
}
