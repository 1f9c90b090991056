package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the lock only if it still belongs to the releasing attempt.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Attempts themselves live in a local map; their clocks and subscribers are process-bound.
//   - Redis holds one lock per quiz/owner (SET NX) so a second instance cannot start a
//     concurrent attempt for the same owner.
//   - The lock expires after the quiz duration plus grace, so a crashed instance does
//     not block the owner forever.
type SessionStore struct {
	client         *redis.Client
	grace          time.Duration
	releaseTimeout time.Duration

	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewSessionStore(client *redis.Client, grace time.Duration) *SessionStore {
	return &SessionStore{
		client:         client,
		grace:          grace,
		releaseTimeout: 2 * time.Second,
		attempts:       make(map[string]*app.Attempt),
	}
}

func (s *SessionStore) Reserve(ctx context.Context, attempt *app.Attempt) error {
	ttl := time.Duration(attempt.Quiz().DurationSeconds)*time.Second + s.grace
	ok, err := s.client.SetNX(ctx, s.key(attempt.QuizID(), attempt.OwnerID()), attempt.ID(), ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: reserve attempt: %v", domain.ErrTransientPersistence, err)
	}
	if !ok {
		return domain.ErrAttemptInProgress
	}

	s.mu.Lock()
	s.attempts[attempt.ID()] = attempt
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(attemptID string) (*app.Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	return attempt, ok
}

func (s *SessionStore) Release(attempt *app.Attempt) {
	s.mu.Lock()
	delete(s.attempts, attempt.ID())
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.releaseTimeout)
	defer cancel()
	key := s.key(attempt.QuizID(), attempt.OwnerID())
	if err := releaseScript.Run(ctx, s.client, []string{key}, attempt.ID()).Err(); err != nil {
		log.Warn().Err(err).Str("attempt_id", attempt.ID()).Msg("release attempt lock")
	}
}

func (s *SessionStore) key(quizID, ownerID string) string {
	return "quiz:attempt:" + quizID + ":" + ownerID
}
