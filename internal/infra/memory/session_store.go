package memory

import (
	"context"
	"sync"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu     sync.RWMutex
	byID   map[string]*app.Attempt
	active map[string]string // quizID/ownerID -> attemptID
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:   make(map[string]*app.Attempt),
		active: make(map[string]string),
	}
}

func (s *SessionStore) Reserve(_ context.Context, attempt *app.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ActiveKey(attempt.QuizID(), attempt.OwnerID())
	if _, ok := s.active[key]; ok {
		return domain.ErrAttemptInProgress
	}
	s.active[key] = attempt.ID()
	s.byID[attempt.ID()] = attempt
	return nil
}

func (s *SessionStore) Get(attemptID string) (*app.Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.byID[attemptID]
	return attempt, ok
}

func (s *SessionStore) Release(attempt *app.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, attempt.ID())
	key := ActiveKey(attempt.QuizID(), attempt.OwnerID())
	if s.active[key] == attempt.ID() {
		delete(s.active, key)
	}
}

// Len reports how many attempts are active.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ActiveKey identifies the single active attempt slot for a quiz and owner.
func ActiveKey(quizID, ownerID string) string {
	return quizID + "/" + ownerID
}
