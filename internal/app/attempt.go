package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"assessment-service/internal/domain"
	"github.com/rs/zerolog/log"
)

// runningOutThreshold is the remaining time below which clients should warn the user.
const runningOutThreshold = 60

// Submitter persists a finalized answer set and returns the authoritative result.
type Submitter interface {
	RecordSubmission(ctx context.Context, quizID, ownerID string, answers []int) (domain.SubmissionResult, error)
}

// Attempt is one user's timed pass through a quiz. All transitions are serialized
// by mu; the submission round-trip runs unlocked while the status is submitting.
type Attempt struct {
	id        string
	quiz      domain.Quiz
	ownerID   string
	submitter Submitter
	clock     *Clock

	ctx           context.Context
	cancel        context.CancelFunc
	submitTimeout time.Duration
	onFinish      func(*Attempt)

	mu          sync.Mutex
	status      domain.AttemptStatus
	current     int
	answers     map[int]int
	remaining   int
	payload     []int
	inFlight    bool
	result      *domain.SubmissionResult
	lastErr     error
	subscribers map[chan domain.AttemptState]struct{}
	done        chan struct{}
}

// NewAttempt builds an attempt in the not-started state. The attempt owns its own
// lifetime: parent cancellation is not inherited, Abandon cancels it.
func NewAttempt(parent context.Context, id string, quiz domain.Quiz, ownerID string, submitter Submitter, ticks TickSource) *Attempt {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	a := &Attempt{
		id:          id,
		quiz:        quiz,
		ownerID:     ownerID,
		submitter:   submitter,
		ctx:         ctx,
		cancel:      cancel,
		status:      domain.StatusNotStarted,
		answers:     make(map[int]int),
		subscribers: make(map[chan domain.AttemptState]struct{}),
		done:        make(chan struct{}),
	}
	a.clock = NewClock(ticks, a.handleTick, a.OnTimeExpired)
	return a
}

func (a *Attempt) ID() string      { return a.id }
func (a *Attempt) QuizID() string  { return a.quiz.ID }
func (a *Attempt) OwnerID() string { return a.ownerID }

// Quiz returns the client-facing view of the definition being attempted.
func (a *Attempt) Quiz() domain.PublicQuiz { return a.quiz.Public() }

// Done is closed once the attempt is submitted or abandoned.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Start moves the attempt into running and starts the countdown.
func (a *Attempt) Start() error {
	a.mu.Lock()
	if a.status != domain.StatusNotStarted {
		a.mu.Unlock()
		return domain.ErrNotRunning
	}
	if len(a.quiz.Questions) == 0 {
		a.mu.Unlock()
		return domain.ErrNoQuestions
	}
	a.status = domain.StatusRunning
	a.current = 0
	a.remaining = max(a.quiz.DurationSeconds, 0)
	a.broadcastLocked()
	a.mu.Unlock()

	log.Info().Str("attempt_id", a.id).Str("quiz_id", a.quiz.ID).Str("owner_id", a.ownerID).
		Int("duration_seconds", a.quiz.DurationSeconds).Msg("attempt started")

	// outside the lock: a zero duration expires synchronously
	a.clock.Start(a.quiz.DurationSeconds)
	return nil
}

// SelectAnswer records the option for the current question without moving the pointer.
func (a *Attempt) SelectAnswer(optionIndex int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != domain.StatusRunning {
		return domain.ErrNotRunning
	}
	options := len(a.quiz.Questions[a.current].Options)
	if optionIndex < 0 || optionIndex >= options {
		return fmt.Errorf("%w: option %d out of range [0,%d)", domain.ErrInvalidInput, optionIndex, options)
	}
	a.answers[a.current] = optionIndex
	a.broadcastLocked()
	return nil
}

// GoToNext moves forward one question; a no-op on the last question.
func (a *Attempt) GoToNext() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != domain.StatusRunning {
		return domain.ErrNotRunning
	}
	if a.current < len(a.quiz.Questions)-1 {
		a.current++
		a.broadcastLocked()
	}
	return nil
}

// GoToPrevious moves back one question; a no-op on the first question.
func (a *Attempt) GoToPrevious() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != domain.StatusRunning {
		return domain.ErrNotRunning
	}
	if a.current > 0 {
		a.current--
		a.broadcastLocked()
	}
	return nil
}

// GoToQuestion jumps to a question position, rejecting out-of-range indexes.
func (a *Attempt) GoToQuestion(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != domain.StatusRunning {
		return domain.ErrNotRunning
	}
	if index < 0 || index >= len(a.quiz.Questions) {
		return fmt.Errorf("%w: question %d out of range [0,%d)", domain.ErrInvalidInput, index, len(a.quiz.Questions))
	}
	if a.current != index {
		a.current = index
		a.broadcastLocked()
	}
	return nil
}

// RequestSubmit finalizes the current answers. Unanswered questions score zero.
// A submitting attempt whose earlier submission failed after time ran out can be retried
// with the same captured answers.
func (a *Attempt) RequestSubmit(ctx context.Context) (domain.SubmissionResult, error) {
	a.mu.Lock()
	switch {
	case a.status == domain.StatusSubmitted && a.result != nil:
		result := *a.result
		a.mu.Unlock()
		return result, domain.ErrAlreadySubmitted
	case a.status == domain.StatusRunning:
		a.beginSubmitLocked()
	case a.status == domain.StatusSubmitting && !a.inFlight:
		a.inFlight = true
	default:
		a.mu.Unlock()
		return domain.SubmissionResult{}, domain.ErrNotRunning
	}
	payload := a.payload
	a.mu.Unlock()

	log.Info().Str("attempt_id", a.id).Str("quiz_id", a.quiz.ID).Msg("attempt submit requested")
	return a.submit(ctx, payload)
}

// OnTimeExpired forces submission of the frozen answers. A no-op unless running.
func (a *Attempt) OnTimeExpired() {
	a.mu.Lock()
	if a.status != domain.StatusRunning {
		a.mu.Unlock()
		return
	}
	a.remaining = 0
	a.beginSubmitLocked()
	payload := a.payload
	a.mu.Unlock()

	log.Info().Str("attempt_id", a.id).Str("quiz_id", a.quiz.ID).Msg("attempt time expired, auto-submitting")
	_, _ = a.submit(a.ctx, payload)
}

// Abandon tears the attempt down without persisting anything.
func (a *Attempt) Abandon() error {
	a.mu.Lock()
	if a.status != domain.StatusRunning && a.status != domain.StatusSubmitting {
		a.mu.Unlock()
		return domain.ErrNotRunning
	}
	a.clock.Stop()
	a.status = domain.StatusAbandoned
	a.broadcastLocked()
	a.finishLocked()
	a.mu.Unlock()

	a.cancel()
	log.Info().Str("attempt_id", a.id).Str("quiz_id", a.quiz.ID).Msg("attempt abandoned")
	a.notifyFinish()
	return nil
}

// Snapshot returns the current observable state.
func (a *Attempt) Snapshot() domain.AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Subscribe returns a channel of state snapshots. The first value is the current state.
// The caller must invoke cancel; the channel is closed when the attempt ends.
func (a *Attempt) Subscribe() (<-chan domain.AttemptState, func()) {
	ch := make(chan domain.AttemptState, 8)

	a.mu.Lock()
	ch <- a.snapshotLocked()
	if a.status.Terminal() {
		close(ch)
		a.mu.Unlock()
		return ch, func() {}
	}
	a.subscribers[ch] = struct{}{}
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *Attempt) handleTick(remaining int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != domain.StatusRunning {
		return
	}
	a.remaining = remaining
	a.broadcastLocked()
}

// beginSubmitLocked freezes the answers and releases the clock.
func (a *Attempt) beginSubmitLocked() {
	a.clock.Stop()
	a.payload = a.denseLocked()
	a.status = domain.StatusSubmitting
	a.inFlight = true
	a.broadcastLocked()
}

func (a *Attempt) submit(ctx context.Context, payload []int) (domain.SubmissionResult, error) {
	if a.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.submitTimeout)
		defer cancel()
	}
	result, err := a.submitter.RecordSubmission(ctx, a.quiz.ID, a.ownerID, payload)

	a.mu.Lock()
	a.inFlight = false
	a.lastErr = err
	if a.status != domain.StatusSubmitting {
		// abandoned while the submission was in flight
		a.mu.Unlock()
		return result, err
	}

	if a.clock.Expired() {
		// the last tick raced with the submit intent
		a.remaining = 0
	}
	logger := log.With().Str("attempt_id", a.id).Str("quiz_id", a.quiz.ID).Logger()
	finished := false
	switch {
	case err == nil || errors.Is(err, domain.ErrAlreadySubmitted):
		a.result = &result
		a.status = domain.StatusSubmitted
		finished = true
		logger.Info().Int("score", result.Score).Int("total_points", result.TotalPoints).Err(err).Msg("attempt submitted")
	case errors.Is(err, domain.ErrTransientPersistence) && a.remaining > 0:
		a.status = domain.StatusRunning
		a.clock.Resume()
		logger.Warn().Err(err).Int("remaining_seconds", a.remaining).Msg("submission failed, attempt resumed")
	default:
		logger.Error().Err(err).Msg("submission failed, awaiting retry")
	}
	a.broadcastLocked()
	if finished {
		a.finishLocked()
	}
	a.mu.Unlock()

	if finished {
		a.notifyFinish()
	}
	return result, err
}

func (a *Attempt) denseLocked() []int {
	dense := make([]int, len(a.quiz.Questions))
	for i := range dense {
		dense[i] = domain.Unanswered
	}
	for position, option := range a.answers {
		dense[position] = option
	}
	return dense
}

// finishLocked closes subscribers and the done channel exactly once.
func (a *Attempt) finishLocked() {
	select {
	case <-a.done:
		return
	default:
	}
	close(a.done)
	for ch := range a.subscribers {
		delete(a.subscribers, ch)
		close(ch)
	}
}

func (a *Attempt) notifyFinish() {
	if a.onFinish != nil {
		a.onFinish(a)
	}
}

func (a *Attempt) broadcastLocked() {
	state := a.snapshotLocked()
	for ch := range a.subscribers {
		select {
		case ch <- state:
		default:
			// drop the stale state so slow readers always see the latest one
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func (a *Attempt) snapshotLocked() domain.AttemptState {
	answers := make(map[int]int, len(a.answers))
	for position, option := range a.answers {
		answers[position] = option
	}
	total := len(a.quiz.Questions)
	progress := 0
	if total > 0 {
		progress = (a.current + 1) * 100 / total
	}
	state := domain.AttemptState{
		AttemptID:            a.id,
		QuizID:               a.quiz.ID,
		Status:               a.status,
		CurrentQuestionIndex: a.current,
		TotalQuestions:       total,
		Answers:              answers,
		AnsweredCount:        len(answers),
		Complete:             total > 0 && len(answers) == total,
		Progress:             progress,
		RemainingSeconds:     a.remaining,
		Clock:                FormatClock(a.remaining),
		TimeRunningOut:       a.status == domain.StatusRunning && a.remaining < runningOutThreshold,
	}
	if a.result != nil {
		result := *a.result
		state.Result = &result
	}
	return state
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
