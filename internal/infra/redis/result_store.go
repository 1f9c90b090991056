package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ResultStore records submissions as JSON under quiz:{quizID}:result:{ownerID}.
// SET NX is the atomic check-and-write: the key existing is the completed flag.
type ResultStore struct {
	client *redis.Client
}

func NewResultStore(client *redis.Client) *ResultStore {
	return &ResultStore{client: client}
}

func (s *ResultStore) Complete(ctx context.Context, submission domain.Submission) (domain.SubmissionResult, error) {
	data, err := json.Marshal(submission)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	key := resultKey(submission.QuizID, submission.OwnerID)
	ok, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("%w: %v", domain.ErrTransientPersistence, err)
	}
	if !ok {
		existing, err := s.Result(ctx, submission.QuizID, submission.OwnerID)
		if err != nil {
			return domain.SubmissionResult{}, err
		}
		return existing, domain.ErrAlreadySubmitted
	}
	return submission.SubmissionResult, nil
}

func (s *ResultStore) Result(ctx context.Context, quizID, ownerID string) (domain.SubmissionResult, error) {
	data, err := s.client.Get(ctx, resultKey(quizID, ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SubmissionResult{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("%w: %v", domain.ErrTransientPersistence, err)
	}
	var submission domain.Submission
	if err := json.Unmarshal(data, &submission); err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("decode result: %w", err)
	}
	return submission.SubmissionResult, nil
}

func resultKey(quizID, ownerID string) string {
	return "quiz:" + quizID + ":result:" + ownerID
}
