package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz does not exist or belongs to another owner.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound is returned when no active attempt matches the identifier.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptInProgress is returned when the owner already has an active attempt on the quiz.
	ErrAttemptInProgress = errors.New("attempt already in progress")
	// ErrNoQuestions indicates the quiz has nothing to answer and cannot be started.
	ErrNoQuestions = errors.New("no questions available")
	// ErrInvalidInput indicates an out-of-range option or question index.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotRunning is returned for intents issued outside the running state.
	ErrNotRunning = errors.New("attempt is not running")
	// ErrAlreadySubmitted indicates the quiz already has a persisted result.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrTransientPersistence wraps storage failures that are safe to retry.
	ErrTransientPersistence = errors.New("transient persistence failure")
	// ErrResultNotFound is returned when no result has been recorded yet.
	ErrResultNotFound = errors.New("result not found")
	// ErrInvalidQuiz indicates a stored definition failed validation. Retrying will not help.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
)
