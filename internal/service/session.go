// Package service provides business logic for the copilot pipeline.
package service

import (
	"sync"

	"github.com/brijeshdobariya07/insightOS/internal/copilot"
	"github.com/brijeshdobariya07/insightOS/pkg/logger"
)

// SessionService manages one in-memory conversation session per
// authenticated subject. Sessions are host-scoped and never persisted.
type SessionService struct {
	logger *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*copilot.Session
}

// NewSessionService creates a new session service.
func NewSessionService(log *logger.Logger) *SessionService {
	return &SessionService{
		logger:   log,
		sessions: make(map[string]*copilot.Session),
	}
}

// Get returns the subject's session, creating it on first use.
func (s *SessionService) Get(subject string) *copilot.Session {
	s.mu.RLock()
	session, exists := s.sessions[subject]
	s.mu.RUnlock()
	if exists {
		return session
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, exists = s.sessions[subject]; exists {
		return session
	}
	session = copilot.NewSession()
	s.sessions[subject] = session
	return session
}

// Reset atomically clears the subject's session.
func (s *SessionService) Reset(subject string) {
	s.Get(subject).Reset()
}
