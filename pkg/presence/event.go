package presence

import "time"

// EventType identifies a wire-level event sent to connected clients.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventRoomJoined   EventType = "room_joined"
	EventRoomLeft     EventType = "room_left"
	EventMessage      EventType = "message"
	EventTypingStart  EventType = "typing_start"
	EventTypingStop   EventType = "typing_stop"
	EventNotification EventType = "notification"
)

// Event is the wire-level contract delivered to client connections and to
// presence observers. RoomID is empty for events outside room scope.
type Event struct {
	Type   EventType      `json:"type"`
	RoomID string         `json:"room_id,omitempty"`
	UserID string         `json:"user_id,omitempty"`
	At     time.Time      `json:"at"`
	Data   map[string]any `json:"data,omitempty"`
}
