package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz definitions from a backing store (e.g. Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches whole definitions in Redis and falls back to a loader on miss.
// Definitions are stored as JSON: SET quiz:{quizID}:definition {json} EX ttl
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		data, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, err
		}
		if err := r.client.Set(ctx, definitionKey(quizID), data, r.ttlWithJitter()).Err(); err != nil {
			// the loader already answered; a failed cache fill only costs a reload
			log.Warn().Err(err).Str("quiz_id", quizID).Msg("cache quiz definition")
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// ListQuizzes passes through to the loader when it supports listing.
func (r *QuizRepository) ListQuizzes(ctx context.Context, ownerID string) ([]domain.Quiz, error) {
	lister, ok := r.loader.(interface {
		ListQuizzes(ctx context.Context, ownerID string) ([]domain.Quiz, error)
	})
	if !ok {
		return nil, nil
	}
	return lister.ListQuizzes(ctx, ownerID)
}

// Invalidate drops the cached definition.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	return r.client.Del(ctx, definitionKey(quizID)).Err()
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	data, err := r.client.Get(ctx, definitionKey(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("quiz_id", quizID).Msg("read cached quiz definition")
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func definitionKey(quizID string) string {
	return "quiz:" + quizID + ":definition"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
