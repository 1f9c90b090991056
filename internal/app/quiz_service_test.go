package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
)

type serviceEnv struct {
	service  *app.QuizService
	sessions *memory.SessionStore
	ticks    *app.ManualTicks
}

func newTestService(t *testing.T) *serviceEnv {
	t.Helper()
	later := threeQuestionQuiz(60)
	later.DueDate = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	sooner := domain.Quiz{
		ID:              "quiz-2",
		OwnerID:         "u1",
		Title:           "Sooner",
		DueDate:         time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		DurationSeconds: 30,
		Questions: []domain.Question{
			{ID: "s1", Prompt: "only", Options: []string{"yes", "no"}, CorrectOptionIndex: 0, Points: 5},
		},
	}
	empty := domain.Quiz{ID: "quiz-empty", OwnerID: "u1", Title: "Empty", DurationSeconds: 30}
	foreign := domain.Quiz{ID: "quiz-foreign", OwnerID: "u2", Title: "Not yours", DurationSeconds: 30,
		Questions: sooner.Questions}

	loader := memory.NewStaticQuizLoader(map[string]domain.Quiz{
		later.ID: later, sooner.ID: sooner, empty.ID: empty, foreign.ID: foreign,
	})
	repo := memory.NewQuizRepository(loader, time.Minute)
	env := &serviceEnv{sessions: memory.NewSessionStore(), ticks: app.NewManualTicks()}
	env.service = app.NewQuizService(env.sessions, repo, repo, memory.NewResultStore(), app.ServiceOptions{
		Ticks: env.ticks,
		Now:   fixedNow,
	})
	return env
}

func TestStartAttemptSingleActive(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	attempt, err := env.service.StartAttempt(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if attempt.Snapshot().Status != domain.StatusRunning {
		t.Fatalf("expected running attempt")
	}
	if _, err := env.service.StartAttempt(ctx, "quiz-1", "u1"); !errors.Is(err, domain.ErrAttemptInProgress) {
		t.Fatalf("expected ErrAttemptInProgress, got %v", err)
	}

	if found, err := env.service.Attempt(attempt.ID(), "u1"); err != nil || found != attempt {
		t.Fatalf("expected attempt lookup to succeed, got %v", err)
	}
	if _, err := env.service.Attempt(attempt.ID(), "u2"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound for other owner, got %v", err)
	}

	if err := attempt.Abandon(); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if env.sessions.Len() != 0 {
		t.Fatalf("abandoned attempt still registered")
	}
	if _, err := env.service.StartAttempt(ctx, "quiz-1", "u1"); err != nil {
		t.Fatalf("restart after abandon: %v", err)
	}
}

func TestStartAttemptRejections(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	if _, err := env.service.StartAttempt(ctx, "quiz-foreign", "u1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if _, err := env.service.StartAttempt(ctx, "quiz-empty", "u1"); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if env.sessions.Len() != 0 {
		t.Fatalf("rejected starts must not register attempts")
	}
}

func TestSubmittedQuizIsCompleted(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	attempt, err := env.service.StartAttempt(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = attempt.SelectAnswer(0)
	_ = attempt.GoToNext()
	_ = attempt.SelectAnswer(1)

	result, err := attempt.RequestSubmit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 20 || result.TotalPoints != 30 {
		t.Fatalf("expected 20/30, got %+v", result)
	}
	if env.sessions.Len() != 0 {
		t.Fatalf("submitted attempt still registered")
	}
	if _, err := env.service.StartAttempt(ctx, "quiz-1", "u1"); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted on restart, got %v", err)
	}

	stored, err := env.service.Result(ctx, "quiz-1", "u1")
	if err != nil || stored.Score != 20 {
		t.Fatalf("expected stored result, got %+v, %v", stored, err)
	}

	summaries, err := env.service.ListQuizzes(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 owned quizzes, got %d", len(summaries))
	}
	var completed *domain.QuizSummary
	for i := range summaries {
		if summaries[i].ID == "quiz-1" {
			completed = &summaries[i]
		}
	}
	if completed == nil || !completed.Completed || completed.Score == nil || *completed.Score != 20 {
		t.Fatalf("expected quiz-1 completed with score 20, got %+v", completed)
	}
}

func TestListQuizzesOrderedByDueDate(t *testing.T) {
	env := newTestService(t)
	summaries, err := env.service.ListQuizzes(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// quiz-empty has the zero due date and sorts first
	want := []string{"quiz-empty", "quiz-2", "quiz-1"}
	for i, id := range want {
		if summaries[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, summaries[i].ID)
		}
	}
}

func TestExpiredAttemptAutoSubmits(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	attempt, err := env.service.StartAttempt(ctx, "quiz-2", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = attempt.SelectAnswer(0)
	env.ticks.Advance(30)

	select {
	case <-attempt.Done():
	default:
		t.Fatalf("attempt not finished at deadline")
	}
	result, err := env.service.Result(ctx, "quiz-2", "u1")
	if err != nil || result.Score != 5 {
		t.Fatalf("expected auto-submitted score 5, got %+v, %v", result, err)
	}
	if !result.SubmittedAt.Equal(fixedNow()) {
		t.Fatalf("expected injected clock time, got %v", result.SubmittedAt)
	}
}

func TestGetQuizStripsAnswers(t *testing.T) {
	env := newTestService(t)
	quiz, err := env.service.GetQuiz(context.Background(), "quiz-1", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if quiz.TotalQuestions != 3 || len(quiz.Questions[0].Options) != 3 {
		t.Fatalf("unexpected public quiz %+v", quiz)
	}
	if _, err := env.service.GetQuiz(context.Background(), "quiz-1", "u2"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}
