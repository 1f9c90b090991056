package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz definitions from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizLister is implemented by loaders that can enumerate an owner's quizzes.
type QuizLister interface {
	ListQuizzes(ctx context.Context, ownerID string) ([]domain.Quiz, error)
}

// QuizRepository keeps definitions in process memory for ttl (plus jitter).
// Definitions are immutable during an attempt, so a stale entry is harmless until it expires.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu      sync.RWMutex
	rnd     *rand.Rand
	entries map[string]cacheEntry
}

type cacheEntry struct {
	quiz    domain.Quiz
	expires time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return NewQuizRepositoryWithClock(loader, ttl, time.Now)
}

// NewQuizRepositoryWithClock allows tests to control expiry.
func NewQuizRepositoryWithClock(loader QuizLoader, ttl time.Duration, now func() time.Time) *QuizRepository {
	return &QuizRepository{
		loader:  loader,
		ttl:     ttl,
		now:     now,
		rnd:     rand.New(rand.NewSource(now().UnixNano())),
		entries: make(map[string]cacheEntry),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.lookup(quizID); ok {
		return quiz, nil
	}

	v, err, _ := r.group.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.lookup(quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return v.(domain.Quiz), nil
}

// ListQuizzes passes through to the loader; listings are not cached.
func (r *QuizRepository) ListQuizzes(ctx context.Context, ownerID string) ([]domain.Quiz, error) {
	lister, ok := r.loader.(QuizLister)
	if !ok {
		return nil, nil
	}
	return lister.ListQuizzes(ctx, ownerID)
}

// Invalidate drops a cached definition.
func (r *QuizRepository) Invalidate(quizID string) {
	r.mu.Lock()
	delete(r.entries, quizID)
	r.mu.Unlock()
}

func (r *QuizRepository) lookup(quizID string) (domain.Quiz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[quizID]
	if !ok || !entry.expires.After(r.now()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) store(quiz domain.Quiz) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ttl := r.ttl
	if ttl > 0 {
		// up to 10% jitter so a batch of quizzes does not expire together
		ttl += time.Duration(r.rnd.Int63n(int64(ttl)/10 + 1))
	}
	r.entries[quiz.ID] = cacheEntry{quiz: quiz, expires: r.now().Add(ttl)}
}

// StaticQuizLoader serves definitions from a fixed map (tests, demos, the score command).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// ListQuizzes returns every quiz owned by ownerID, in no particular order.
func (l *StaticQuizLoader) ListQuizzes(_ context.Context, ownerID string) ([]domain.Quiz, error) {
	quizzes := make([]domain.Quiz, 0)
	for _, quiz := range l.quizzes {
		if quiz.OwnerID == ownerID {
			quizzes = append(quizzes, quiz)
		}
	}
	return quizzes, nil
}
