// internal/types/events.go
package types

import (
	"time"
)

// EventType names one kind of bus event.
type EventType string

const (
	EventStageChanged             EventType = "stage_changed"
	EventThoughtCompleted         EventType = "thought_completed"
	EventActionCompleted          EventType = "action_completed"
	EventActionFailed             EventType = "action_failed"
	EventLyricsGenerated          EventType = "lyrics_generated"
	EventLyricsApproved           EventType = "lyrics_approved"
	EventMusicGenerationStarted   EventType = "music_generation_started"
	EventMusicGenerationCompleted EventType = "music_generation_completed"
	EventAssetCreated             EventType = "asset_created"
	EventAssetFinalized           EventType = "asset_finalized"
	EventErrorOccurred            EventType = "error_occurred"
)

// Event is one immutable bus event. Ownership passes to the bus at emission;
// payload maps must not be mutated after NewEvent.
type Event struct {
	ID        EventID        `json:"id"`
	Type      EventType      `json:"type"`
	SessionID SessionID      `json:"session_id"`
	At        time.Time      `json:"at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent stamps id and timestamp on a fresh event.
func NewEvent(typ EventType, sessionID SessionID, payload map[string]any) Event {
	return Event{
		ID:        NewEventID(),
		Type:      typ,
		SessionID: sessionID,
		At:        time.Now(),
		Payload:   payload,
	}
}

// PushEvent is one entry of a session's outbound push queue, delivered to
// stream consumers as a named SSE event.
type PushEvent struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Push event names seen by stream consumers.
const (
	PushSessionCreated = "session_created"
	PushStateUpdate    = "state_update"
	PushChatMessage    = "chat_message"
	PushDebugLog       = "debug_log"
	PushError          = "error"
	PushComplete       = "complete"
	PushHeartbeat      = "heartbeat"
	PushConnected      = "connected"
	PushDisconnected   = "disconnected"
)
