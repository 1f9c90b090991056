package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
)

// ResultStore persists submissions. Complete must atomically check the quiz's completed
// flag and write the score; when already completed it returns the stored result together
// with domain.ErrAlreadySubmitted.
type ResultStore interface {
	Complete(ctx context.Context, submission domain.Submission) (domain.SubmissionResult, error)
	Result(ctx context.Context, quizID, ownerID string) (domain.SubmissionResult, error)
}

// Evaluator is the authoritative scorer. Client-side tallies are never trusted.
type Evaluator struct {
	quizzes QuizRepository
	results ResultStore
	now     func() time.Time
}

func NewEvaluator(quizzes QuizRepository, results ResultStore) *Evaluator {
	return NewEvaluatorWithClock(quizzes, results, time.Now)
}

// NewEvaluatorWithClock is test-only for deterministic submission timestamps.
func NewEvaluatorWithClock(quizzes QuizRepository, results ResultStore, now func() time.Time) *Evaluator {
	return &Evaluator{quizzes: quizzes, results: results, now: now}
}

// RecordSubmission scores a dense answer list and persists the result exactly once.
func (e *Evaluator) RecordSubmission(ctx context.Context, quizID, ownerID string, answers []int) (domain.SubmissionResult, error) {
	quiz, err := loadOwnedQuiz(ctx, e.quizzes, quizID, ownerID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	score, total := Score(quiz, answers)
	stored := make([]int, len(quiz.Questions))
	for i := range stored {
		stored[i] = domain.Unanswered
		if i < len(answers) {
			stored[i] = answers[i]
		}
	}

	submission := domain.Submission{
		QuizID:  quizID,
		OwnerID: ownerID,
		Answers: stored,
		SubmissionResult: domain.SubmissionResult{
			Score:       score,
			TotalPoints: total,
			SubmittedAt: e.now().UTC(),
		},
	}
	result, err := e.results.Complete(ctx, submission)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return result, err
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrTransientPersistence):
		return domain.SubmissionResult{}, err
	default:
		return domain.SubmissionResult{}, fmt.Errorf("%w: %v", domain.ErrTransientPersistence, err)
	}
}

// Score sums the points of every question whose answer matches the correct option.
// Missing, unanswered and out-of-range answers score zero; extra answers are ignored.
func Score(quiz domain.Quiz, answers []int) (score, total int) {
	for i, question := range quiz.Questions {
		total += question.Points
		if i < len(answers) && answers[i] == question.CorrectOptionIndex {
			score += question.Points
		}
	}
	return score, total
}

// loadOwnedQuiz hides quizzes owned by someone else behind ErrQuizNotFound.
func loadOwnedQuiz(ctx context.Context, quizzes QuizRepository, quizID, ownerID string) (domain.Quiz, error) {
	quiz, err := quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) || errors.Is(err, domain.ErrInvalidQuiz) {
			return domain.Quiz{}, err
		}
		return domain.Quiz{}, fmt.Errorf("%w: load quiz %s: %v", domain.ErrTransientPersistence, quizID, err)
	}
	if quiz.OwnerID != ownerID {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}
