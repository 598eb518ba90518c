package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave  Action = "autosave"
	ActionViolation Action = "violation"
	ActionClock     Action = "clock"
	ActionPing      Action = "ping"
)

// RequestPayload is the single client message shape. Fields beyond Action
// are read depending on the action.
type RequestPayload struct {
	Action Action `json:"action"`
	// Autosave fields.
	QID   string          `json:"q_id,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	// Violation fields.
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSaved      Event = "saved"
	EventRestore    Event = "restore"
	EventViolation  Event = "violation_recorded"
	EventTerminated Event = "terminated"
	EventClock      Event = "clock"
	EventPong       Event = "pong"
)

type SavedResponse struct {
	Event Event  `json:"event"`
	QID   string `json:"q_id"`
}

// RestoreResponse replays the answers still staged in Redis when a client
// connects, keyed by question ID. Sent once, before any other event.
type RestoreResponse struct {
	Event   Event                      `json:"event"`
	Answers map[string]json.RawMessage `json:"answers"`
}

type ViolationResponse struct {
	Event Event  `json:"event"`
	Kind  string `json:"kind"`
}

// ClockResponse carries the server-authoritative remaining time. A null
// RemainingSeconds means the assessment has no countdown.
type ClockResponse struct {
	Event            Event  `json:"event"`
	RemainingSeconds *int64 `json:"remaining_seconds"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
