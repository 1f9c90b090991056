package memory

import (
	"context"
	"errors"
	"testing"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	attempt := app.NewAttempt(ctx, "a1", sampleQuiz(), "u1", nil, app.NewManualTicks())
	if err := store.Reserve(ctx, attempt); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, ok := store.Get("a1"); !ok {
		t.Fatalf("expected attempt present")
	}

	second := app.NewAttempt(ctx, "a2", sampleQuiz(), "u1", nil, app.NewManualTicks())
	if err := store.Reserve(ctx, second); !errors.Is(err, domain.ErrAttemptInProgress) {
		t.Fatalf("expected ErrAttemptInProgress, got %v", err)
	}

	store.Release(attempt)
	if _, ok := store.Get("a1"); ok {
		t.Fatalf("expected attempt removed")
	}
	if err := store.Reserve(ctx, second); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 active attempt, got %d", store.Len())
	}
}

func TestResultStoreCompletesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	first := domain.Submission{
		QuizID:           "quiz-1",
		OwnerID:          "u1",
		Answers:          []int{1},
		SubmissionResult: domain.SubmissionResult{Score: 1, TotalPoints: 1},
	}
	if _, err := store.Complete(ctx, first); err != nil {
		t.Fatalf("complete: %v", err)
	}

	second := first
	second.SubmissionResult = domain.SubmissionResult{Score: 0, TotalPoints: 1}
	result, err := store.Complete(ctx, second)
	if !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if result.Score != 1 {
		t.Fatalf("expected original score 1, got %d", result.Score)
	}

	if _, err := store.Result(ctx, "quiz-1", "u2"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound for other owner, got %v", err)
	}
	stored, ok := store.Submission("quiz-1", "u1")
	if !ok || len(stored.Answers) != 1 || stored.Answers[0] != 1 {
		t.Fatalf("expected stored answers, got %+v", stored)
	}
}
