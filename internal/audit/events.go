package audit

import "time"

// EventType enumerates supported auth event identifiers.
type EventType string

const (
	EventSessionCreated   EventType = "session_created"
	EventSessionRejected  EventType = "session_rejected"
	EventSessionDestroyed EventType = "session_destroyed"
)

// Event represents an auth lifecycle event emitted by the session service.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
