package watch

import (
	"encoding/json"
	"fmt"

	"github.com/snake-game/backend/internal/domain"
)

// Message types
const (
	MessageTypeConnected    = "connected"
	MessageTypeSubscribe    = "subscribe"
	MessageTypeUnsubscribe  = "unsubscribe"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"
)

// welcomeMessage is sent with the connected acknowledgement
const welcomeMessage = "Connected to Snake Game WebSocket"

// ControlFrame represents an inbound message from an observer
type ControlFrame struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId,omitempty"`
}

// ConnectedFrame acknowledges a new observer connection
type ConnectedFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	Message      string `json:"message"`
}

// SubscriptionFrame acknowledges a subscribe or unsubscribe
type SubscriptionFrame struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// PongFrame answers an observer ping
type PongFrame struct {
	Type string `json:"type"`
}

// ErrorFrame reports a recoverable protocol error; the connection stays open
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PlayerData is the event payload observers receive. GameState is only
// present on update events.
type PlayerData struct {
	ID        string            `json:"id"`
	Username  string            `json:"username"`
	Score     int               `json:"score"`
	GameMode  domain.GameMode   `json:"gameMode"`
	GameState *domain.GameState `json:"gameState,omitempty"`
}

// EventFrame carries a player lifecycle or state-change event. Data is
// absent on leave events.
type EventFrame struct {
	Type     string      `json:"type"`
	PlayerID string      `json:"playerId"`
	Data     *PlayerData `json:"data,omitempty"`
}

// EncodeEvent renders a session event into its wire frame
func EncodeEvent(ev domain.Event) ([]byte, error) {
	frame := EventFrame{
		Type:     string(ev.Type),
		PlayerID: ev.SessionID,
	}

	switch ev.Type {
	case domain.EventPlayerJoin:
		if ev.Session == nil {
			return nil, fmt.Errorf("join event for %s has no session snapshot", ev.SessionID)
		}
		frame.Data = &PlayerData{
			ID:       ev.Session.ID,
			Username: ev.Session.Username,
			Score:    ev.Session.Score,
			GameMode: ev.Session.GameMode,
		}
	case domain.EventPlayerUpdate:
		if ev.Session == nil {
			return nil, fmt.Errorf("update event for %s has no session snapshot", ev.SessionID)
		}
		state := ev.Session.GameState.Clone()
		frame.Data = &PlayerData{
			ID:        ev.Session.ID,
			Username:  ev.Session.Username,
			Score:     ev.Session.Score,
			GameMode:  ev.Session.GameMode,
			GameState: &state,
		}
	case domain.EventPlayerLeave:
		// playerId only
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}

	return json.Marshal(frame)
}

func encodeConnected(connectionID string) []byte {
	data, _ := json.Marshal(ConnectedFrame{
		Type:         MessageTypeConnected,
		ConnectionID: connectionID,
		Message:      welcomeMessage,
	})
	return data
}

func encodeSubscription(ack, playerID string) []byte {
	data, _ := json.Marshal(SubscriptionFrame{
		Type:     ack,
		PlayerID: playerID,
	})
	return data
}

func encodePong() []byte {
	data, _ := json.Marshal(PongFrame{Type: MessageTypePong})
	return data
}

func encodeError(message string) []byte {
	data, _ := json.Marshal(ErrorFrame{
		Type:    MessageTypeError,
		Message: message,
	})
	return data
}
