package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"assessment-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionRepository tracks active attempts (in-memory, Redis, etc). At most one active
// attempt may exist per quiz and owner.
type SessionRepository interface {
	Reserve(ctx context.Context, attempt *Attempt) error
	Get(attemptID string) (*Attempt, bool)
	Release(attempt *Attempt)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizLister lists the quizzes that belong to an owner.
type QuizLister interface {
	ListQuizzes(ctx context.Context, ownerID string) ([]domain.Quiz, error)
}

// ServiceOptions tunes attempt behaviour. Zero values pick the defaults.
type ServiceOptions struct {
	Ticks         TickSource
	SubmitTimeout time.Duration
	Now           func() time.Time
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	sessions  SessionRepository
	quizzes   QuizRepository
	lister    QuizLister
	results   ResultStore
	evaluator *Evaluator
	ticks     TickSource
	timeout   time.Duration
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, lister QuizLister, results ResultStore, opts ServiceOptions) *QuizService {
	if opts.Ticks == nil {
		opts.Ticks = RealTicks{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &QuizService{
		sessions:  store,
		quizzes:   quizzes,
		lister:    lister,
		results:   results,
		evaluator: NewEvaluatorWithClock(quizzes, results, opts.Now),
		ticks:     opts.Ticks,
		timeout:   opts.SubmitTimeout,
	}
}

// Evaluator exposes the authoritative scorer used for submissions.
func (s *QuizService) Evaluator() *Evaluator {
	return s.evaluator
}

// ListQuizzes returns the owner's quizzes ordered by due date, with completion state.
func (s *QuizService) ListQuizzes(ctx context.Context, ownerID string) ([]domain.QuizSummary, error) {
	quizzes, err := s.lister.ListQuizzes(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.QuizSummary, 0, len(quizzes))
	for _, quiz := range quizzes {
		if quiz.OwnerID != ownerID {
			continue
		}
		summary := domain.QuizSummary{
			ID:              quiz.ID,
			CourseID:        quiz.CourseID,
			Title:           quiz.Title,
			Description:     quiz.Description,
			DueDate:         quiz.DueDate,
			DurationSeconds: quiz.DurationSeconds,
			TotalQuestions:  quiz.TotalQuestions(),
		}
		result, err := s.results.Result(ctx, quiz.ID, ownerID)
		switch {
		case err == nil:
			score := result.Score
			summary.Completed = true
			summary.Score = &score
		case !errors.Is(err, domain.ErrResultNotFound):
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].DueDate.Equal(summaries[j].DueDate) {
			return summaries[i].DueDate.Before(summaries[j].DueDate)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// GetQuiz returns the client-facing quiz for its owner.
func (s *QuizService) GetQuiz(ctx context.Context, quizID, ownerID string) (domain.PublicQuiz, error) {
	quiz, err := loadOwnedQuiz(ctx, s.quizzes, quizID, ownerID)
	if err != nil {
		return domain.PublicQuiz{}, err
	}
	return quiz.Public(), nil
}

// Result returns the persisted result of a completed quiz.
func (s *QuizService) Result(ctx context.Context, quizID, ownerID string) (domain.SubmissionResult, error) {
	if _, err := loadOwnedQuiz(ctx, s.quizzes, quizID, ownerID); err != nil {
		return domain.SubmissionResult{}, err
	}
	return s.results.Result(ctx, quizID, ownerID)
}

// StartAttempt opens a running attempt. Completed quizzes cannot be re-entered, and only
// one attempt per quiz and owner may be active at a time.
func (s *QuizService) StartAttempt(ctx context.Context, quizID, ownerID string) (*Attempt, error) {
	quiz, err := loadOwnedQuiz(ctx, s.quizzes, quizID, ownerID)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, domain.ErrNoQuestions
	}

	if _, err := s.results.Result(ctx, quizID, ownerID); err == nil {
		return nil, domain.ErrAlreadySubmitted
	} else if !errors.Is(err, domain.ErrResultNotFound) {
		return nil, err
	}

	attempt := NewAttempt(ctx, uuid.NewString(), quiz, ownerID, s.evaluator, s.ticks)
	attempt.submitTimeout = s.timeout
	attempt.onFinish = s.sessions.Release

	if err := s.sessions.Reserve(ctx, attempt); err != nil {
		return nil, err
	}
	if err := attempt.Start(); err != nil {
		s.sessions.Release(attempt)
		return nil, err
	}
	log.Debug().Str("attempt_id", attempt.ID()).Msg("attempt registered")
	return attempt, nil
}

// Attempt looks up an active attempt owned by ownerID.
func (s *QuizService) Attempt(attemptID, ownerID string) (*Attempt, error) {
	attempt, ok := s.sessions.Get(attemptID)
	if !ok || attempt.OwnerID() != ownerID {
		return nil, domain.ErrAttemptNotFound
	}
	return attempt, nil
}
