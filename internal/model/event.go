package model

import (
	"time"
)

// StreamEventType discriminates wire stream events.
type StreamEventType string

const (
	StreamEventToken StreamEventType = "token"
	StreamEventDone  StreamEventType = "done"
)

// StreamEvent is one newline-delimited JSON object on the response stream.
// A turn is a sequence of token events terminated by exactly one done event.
type StreamEvent struct {
	Type    StreamEventType     `json:"type"`
	Content string              `json:"content,omitempty"`
	Payload *StructuredResponse `json:"payload,omitempty"`
}

// TokenEvent builds a token stream event.
func TokenEvent(content string) StreamEvent {
	return StreamEvent{Type: StreamEventToken, Content: content}
}

// DoneEvent builds the terminal stream event.
func DoneEvent(payload StructuredResponse) StreamEvent {
	return StreamEvent{Type: StreamEventDone, Payload: &payload}
}

// ErrorResponse is the non-streaming failure envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// AuditEventType classifies audit stream events.
type AuditEventType string

const (
	AuditTurnCompleted    AuditEventType = "turn_completed"
	AuditActionDispatched AuditEventType = "action_dispatched"
)

// AuditEvent is one record on the optional JetStream audit stream. Telemetry
// only; conversation state is never reconstructed from it.
type AuditEvent struct {
	ID        string         `json:"id"`
	Subject   string         `json:"subject"`
	Type      AuditEventType `json:"type"`
	Model     string         `json:"model,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	TokensIn  int            `json:"tokens_in,omitempty"`
	TokensOut int            `json:"tokens_out,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
