package api

// LiveFeed provides the dashboard change stream to the API layer.
// The live package implements this interface; api owns it so there are no circular imports.
type LiveFeed interface {
	// Subscribe registers a listener for events matching filter. The returned
	// func unregisters it and must be called when the client goes away.
	Subscribe(filter EventFilter) (<-chan SSEEvent, func())

	// ReplaySince returns buffered events after the given event ID (for Last-Event-ID recovery).
	ReplaySince(lastEventID string, filter EventFilter) []SSEEvent

	// Status reports the change feed state for health checks: "listening",
	// "reconnecting" or "stopped".
	Status() string
}

// EventFilter specifies which events a live subscriber wants to receive.
type EventFilter struct {
	UserID string   // only events owned by this user; empty matches all
	Types  []string // "interview" or compound "interview:delete"; empty matches all
}

// SSEEvent represents a live event ready for transmission.
type SSEEvent struct {
	ID        string `json:"event_id"`
	Type      string `json:"event_type"`
	SubType   string `json:"sub_type,omitempty"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"-"`
	Data      []byte `json:"-"` // pre-serialized JSON payload
}
