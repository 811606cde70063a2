package copilot

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brijeshdobariya07/insightOS/internal/model"
)

// ErrBusy is returned when a submission arrives while another is in flight.
// Concurrent submissions are rejected at the entry point, never queued.
var ErrBusy = errors.New("a submission is already in flight")

// Session holds one conversation's state: message history, the in-flight
// guard, and the most recent validated structured response. Mutation is
// limited to the pipeline; presentation only reads.
type Session struct {
	mu           sync.RWMutex
	messages     []model.Message
	lastResponse *model.StructuredResponse
	inFlight     bool
}

// NewSession creates an empty conversation session.
func NewSession() *Session {
	return &Session{}
}

// Begin claims the in-flight guard and appends the user message plus an
// empty assistant message for the turn. Returns ErrBusy when another
// submission holds the guard.
func (s *Session) Begin(query string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return nil, ErrBusy
	}
	s.inFlight = true

	now := time.Now()
	s.messages = append(s.messages,
		model.Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Role:      model.RoleUser,
			Content:   query,
			CreatedAt: now,
		},
		model.Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Role:      model.RoleAssistant,
			CreatedAt: now,
		},
	)

	assistant := s.messages[len(s.messages)-1]
	return &assistant, nil
}

// AppendToken appends a streamed delta to the in-flight assistant message.
// Tokens are applied strictly in arrival order.
func (s *Session) AppendToken(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inFlight || len(s.messages) == 0 {
		return
	}
	s.messages[len(s.messages)-1].Content += content
}

// Complete finishes the turn: the assistant message content becomes the
// validated (or fallback) summary, the response is cached as the latest, and
// the in-flight guard is released.
func (s *Session) Complete(resp model.StructuredResponse, meta *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) > 0 {
		last := &s.messages[len(s.messages)-1]
		if last.Role == model.RoleAssistant {
			last.Content = resp.Summary
			if meta != nil {
				last.Model = meta.Model
				last.TokensIn = meta.TokensIn
				last.TokensOut = meta.TokensOut
				last.LatencyMs = meta.LatencyMs
			}
		}
	}

	s.lastResponse = &resp
	s.inFlight = false
}

// Messages returns a copy of the conversation history.
func (s *Session) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastResponse returns the most recent validated structured response, or nil
// before the first completed turn.
func (s *Session) LastResponse() *model.StructuredResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastResponse == nil {
		return nil
	}
	resp := *s.lastResponse
	return &resp
}

// InFlight reports whether a submission is currently being processed.
func (s *Session) InFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}

// Reset clears messages, the cached response, and the in-flight flag
// atomically.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.lastResponse = nil
	s.inFlight = false
}
