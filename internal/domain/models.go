package domain

import (
	"time"
)

// Unanswered marks a question position with no recorded answer in a dense answer list.
const Unanswered = -1

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID                 string   `json:"id" validate:"required"`
	Prompt             string   `json:"prompt" validate:"required"`
	Options            []string `json:"options" validate:"min=1"`
	CorrectOptionIndex int      `json:"correctOptionIndex" validate:"gte=0"`
	Points             int      `json:"points" validate:"gte=0"`
}

// Quiz is an immutable assessment definition owned by a single user.
type Quiz struct {
	ID              string     `json:"id" validate:"required"`
	OwnerID         string     `json:"ownerId" validate:"required"`
	CourseID        string     `json:"courseId"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DueDate         time.Time  `json:"dueDate"`
	DurationSeconds int        `json:"durationSeconds" validate:"gt=0"`
	Questions       []Question `json:"questions" validate:"dive"`
}

// TotalQuestions is the number of questions in the quiz.
func (q Quiz) TotalQuestions() int {
	return len(q.Questions)
}

// TotalPoints sums the points of every question, answered or not.
func (q Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// Public strips the correct answers so the quiz can be sent to a client.
func (q Quiz) Public() PublicQuiz {
	questions := make([]PublicQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		options := make([]string, len(question.Options))
		copy(options, question.Options)
		questions = append(questions, PublicQuestion{
			ID:      question.ID,
			Prompt:  question.Prompt,
			Options: options,
			Points:  question.Points,
		})
	}
	return PublicQuiz{
		ID:              q.ID,
		CourseID:        q.CourseID,
		Title:           q.Title,
		Description:     q.Description,
		DueDate:         q.DueDate,
		DurationSeconds: q.DurationSeconds,
		TotalQuestions:  len(q.Questions),
		Questions:       questions,
	}
}

// PublicQuestion is a question without its answer key.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Points  int      `json:"points"`
}

// PublicQuiz is the client-facing view of a quiz.
type PublicQuiz struct {
	ID              string           `json:"id"`
	CourseID        string           `json:"courseId"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	DueDate         time.Time        `json:"dueDate"`
	DurationSeconds int              `json:"durationSeconds"`
	TotalQuestions  int              `json:"totalQuestions"`
	Questions       []PublicQuestion `json:"questions"`
}

// QuizSummary is a listing row for an owner's quizzes.
type QuizSummary struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"courseId"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DueDate         time.Time `json:"dueDate"`
	DurationSeconds int       `json:"durationSeconds"`
	TotalQuestions  int       `json:"totalQuestions"`
	Completed       bool      `json:"completed"`
	Score           *int      `json:"score,omitempty"`
}

// AttemptStatus is the lifecycle state of a single attempt.
type AttemptStatus string

const (
	StatusNotStarted AttemptStatus = "not_started"
	StatusRunning    AttemptStatus = "running"
	StatusSubmitting AttemptStatus = "submitting"
	StatusSubmitted  AttemptStatus = "submitted"
	StatusAbandoned  AttemptStatus = "abandoned"
)

// Terminal reports whether no further transitions are possible.
func (s AttemptStatus) Terminal() bool {
	return s == StatusSubmitted || s == StatusAbandoned
}

// SubmissionResult is the authoritative outcome of a submitted attempt.
type SubmissionResult struct {
	Score       int       `json:"score"`
	TotalPoints int       `json:"totalPoints"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Submission is the persisted record of a scored attempt.
type Submission struct {
	QuizID  string `json:"quizId"`
	OwnerID string `json:"ownerId"`
	Answers []int  `json:"answers"`
	SubmissionResult
}

// AttemptState is a read-only snapshot of an attempt for presentation.
type AttemptState struct {
	AttemptID            string            `json:"attemptId"`
	QuizID               string            `json:"quizId"`
	Status               AttemptStatus     `json:"status"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	TotalQuestions       int               `json:"totalQuestions"`
	Answers              map[int]int       `json:"answers"`
	AnsweredCount        int               `json:"answeredCount"`
	Complete             bool              `json:"complete"`
	Progress             int               `json:"progress"`
	RemainingSeconds     int               `json:"remainingSeconds"`
	Clock                string            `json:"clock"`
	TimeRunningOut       bool              `json:"timeRunningOut"`
	Result               *SubmissionResult `json:"result,omitempty"`
}
