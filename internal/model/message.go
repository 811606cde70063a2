// Package model defines data structures for the copilot pipeline.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a conversation message. Assistant messages start empty
// and are filled in as the turn completes.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// LLM metadata (assistant messages only)
	Model     *string `json:"model,omitempty"`
	TokensIn  *int    `json:"tokens_in,omitempty"`
	TokensOut *int    `json:"tokens_out,omitempty"`
	LatencyMs *int64  `json:"latency_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// QueryRequest is the inbound query+context envelope. Stream defaults to
// true; callers that cannot consume NDJSON set it false to receive the
// structured response as a single JSON body.
type QueryRequest struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context"`
	Stream  *bool          `json:"stream,omitempty"`
}

// Streaming reports whether the caller asked for the NDJSON event wire.
func (r *QueryRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// ProviderResponse describes the configured model provider.
type ProviderResponse struct {
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
	Models     []string `json:"models"`
	Configured bool     `json:"configured"`
}

// MessagesResponse is the conversation history read by presentation.
type MessagesResponse struct {
	Messages     []Message           `json:"messages"`
	LastResponse *StructuredResponse `json:"last_response,omitempty"`
	InFlight     bool                `json:"in_flight"`
}
