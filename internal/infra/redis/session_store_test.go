package redis

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)

	attempt := app.NewAttempt(ctx, "a1", sampleQuiz(), "u1", nil, app.NewManualTicks())
	if err := store.Reserve(ctx, attempt); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !mr.Exists("quiz:attempt:quiz-1:u1") {
		t.Fatalf("expected redis lock to be set")
	}
	if ttl := mr.TTL("quiz:attempt:quiz-1:u1"); ttl != 2*time.Minute {
		t.Fatalf("expected duration plus grace ttl, got %v", ttl)
	}

	// A second instance sharing the same redis must not start a parallel attempt.
	other := NewSessionStore(newClient(mr), time.Minute)
	second := app.NewAttempt(ctx, "a2", sampleQuiz(), "u1", nil, app.NewManualTicks())
	if err := other.Reserve(ctx, second); !errors.Is(err, domain.ErrAttemptInProgress) {
		t.Fatalf("expected ErrAttemptInProgress, got %v", err)
	}

	// Releasing someone else's attempt leaves the lock alone.
	other.Release(second)
	if !mr.Exists("quiz:attempt:quiz-1:u1") {
		t.Fatalf("lock removed by non-owner")
	}

	store.Release(attempt)
	if mr.Exists("quiz:attempt:quiz-1:u1") {
		t.Fatalf("expected redis lock to be removed")
	}
	if _, ok := store.Get("a1"); ok {
		t.Fatalf("expected attempt dropped from local map")
	}
}

func TestSessionStoreReleaseGivesUpOnStalledRedis(t *testing.T) {
	// accepts connections but never answers
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu   sync.Mutex
		held []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, conn)
			mu.Unlock()
		}
	}()
	defer func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range held {
			conn.Close()
		}
	}()

	client := redis.NewClient(&redis.Options{
		Addr:                  ln.Addr().String(),
		Protocol:              2,
		ReadTimeout:           time.Minute,
		WriteTimeout:          time.Minute,
		ContextTimeoutEnabled: true,
	})
	defer client.Close()
	store := NewSessionStore(client, time.Minute)
	store.releaseTimeout = 100 * time.Millisecond

	attempt := app.NewAttempt(context.Background(), "a1", sampleQuiz(), "u1", nil, app.NewManualTicks())
	store.mu.Lock()
	store.attempts[attempt.ID()] = attempt
	store.mu.Unlock()

	done := make(chan struct{})
	go func() {
		store.Release(attempt)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("release blocked on an unresponsive redis")
	}
	if _, ok := store.Get("a1"); ok {
		t.Fatalf("expected attempt dropped from local map")
	}
}

func TestResultStoreSetNX(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewResultStore(newClient(mr))

	if _, err := store.Result(ctx, "quiz-1", "u1"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}

	submittedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first := domain.Submission{
		QuizID:  "quiz-1",
		OwnerID: "u1",
		Answers: []int{1, -1},
		SubmissionResult: domain.SubmissionResult{
			Score: 10, TotalPoints: 20, SubmittedAt: submittedAt,
		},
	}
	if _, err := store.Complete(ctx, first); err != nil {
		t.Fatalf("complete: %v", err)
	}

	retry := first
	retry.SubmissionResult.Score = 0
	result, err := store.Complete(ctx, retry)
	if !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	if result.Score != 10 || !result.SubmittedAt.Equal(submittedAt) {
		t.Fatalf("expected original result, got %+v", result)
	}
}

func TestResultStoreReportsTransientFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	store := NewResultStore(client)
	_, err = store.Complete(context.Background(), domain.Submission{QuizID: "quiz-1", OwnerID: "u1"})
	if !errors.Is(err, domain.ErrTransientPersistence) {
		t.Fatalf("expected ErrTransientPersistence, got %v", err)
	}
}
