package memory

import (
	"context"
	"sync"

	"assessment-service/internal/domain"
)

// ResultStore keeps submissions in memory. The mutex is the check-and-write guard.
type ResultStore struct {
	mu          sync.Mutex
	submissions map[string]domain.Submission
}

func NewResultStore() *ResultStore {
	return &ResultStore{submissions: make(map[string]domain.Submission)}
}

func (s *ResultStore) Complete(_ context.Context, submission domain.Submission) (domain.SubmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ActiveKey(submission.QuizID, submission.OwnerID)
	if existing, ok := s.submissions[key]; ok {
		return existing.SubmissionResult, domain.ErrAlreadySubmitted
	}
	answers := make([]int, len(submission.Answers))
	copy(answers, submission.Answers)
	submission.Answers = answers
	s.submissions[key] = submission
	return submission.SubmissionResult, nil
}

func (s *ResultStore) Result(_ context.Context, quizID, ownerID string) (domain.SubmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.submissions[ActiveKey(quizID, ownerID)]
	if !ok {
		return domain.SubmissionResult{}, domain.ErrResultNotFound
	}
	return existing.SubmissionResult, nil
}

// Submission returns the full stored record, including the dense answers.
func (s *ResultStore) Submission(quizID, ownerID string) (domain.Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.submissions[ActiveKey(quizID, ownerID)]
	return existing, ok
}
