package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID        string `bun:"id,pk"`
	OwnerID   string `bun:"owner_id"`
	Completed bool   `bun:"completed"`
	Score     *int   `bun:"score"`
}

type submissionRow struct {
	bun.BaseModel `bun:"table:quiz_submissions"`

	ID          int64     `bun:"id,pk,autoincrement"`
	QuizID      string    `bun:"quiz_id"`
	OwnerID     string    `bun:"owner_id"`
	Answers     []int     `bun:"answers,type:jsonb"`
	Score       int       `bun:"score"`
	TotalPoints int       `bun:"total_points"`
	SubmittedAt time.Time `bun:"submitted_at"`
}

func (r submissionRow) result() domain.SubmissionResult {
	return domain.SubmissionResult{
		Score:       r.Score,
		TotalPoints: r.TotalPoints,
		SubmittedAt: r.SubmittedAt.UTC(),
	}
}

// ResultStore persists submissions with bun. The conditional UPDATE on quizzes.completed
// and the submission INSERT share one transaction, so a quiz is never marked completed
// without its score or vice versa.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) Complete(ctx context.Context, submission domain.Submission) (domain.SubmissionResult, error) {
	var result domain.SubmissionResult
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*quizRow)(nil)).
			Set("completed = TRUE").
			Set("score = ?", submission.Score).
			Where("id = ?", submission.QuizID).
			Where("owner_id = ?", submission.OwnerID).
			Where("NOT completed").
			Exec(ctx)
		if err != nil {
			return err
		}
		updated, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if updated == 0 {
			var quiz quizRow
			err := tx.NewSelect().Model(&quiz).
				Where("id = ?", submission.QuizID).
				Where("owner_id = ?", submission.OwnerID).
				Scan(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrQuizNotFound
			}
			if err != nil {
				return err
			}
			existing, err := s.result(ctx, tx, submission.QuizID, submission.OwnerID)
			if err != nil {
				return err
			}
			result = existing
			return domain.ErrAlreadySubmitted
		}

		row := submissionRow{
			QuizID:      submission.QuizID,
			OwnerID:     submission.OwnerID,
			Answers:     submission.Answers,
			Score:       submission.Score,
			TotalPoints: submission.TotalPoints,
			SubmittedAt: submission.SubmittedAt,
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return err
		}
		result = row.result()
		return nil
	})

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return result, err
	case errors.Is(err, domain.ErrQuizNotFound):
		return domain.SubmissionResult{}, err
	default:
		return domain.SubmissionResult{}, fmt.Errorf("%w: complete quiz %s: %v", domain.ErrTransientPersistence, submission.QuizID, err)
	}
}

func (s *ResultStore) Result(ctx context.Context, quizID, ownerID string) (domain.SubmissionResult, error) {
	result, err := s.result(ctx, s.db, quizID, ownerID)
	if err != nil && !errors.Is(err, domain.ErrResultNotFound) {
		return domain.SubmissionResult{}, fmt.Errorf("%w: %v", domain.ErrTransientPersistence, err)
	}
	return result, err
}

func (s *ResultStore) result(ctx context.Context, db bun.IDB, quizID, ownerID string) (domain.SubmissionResult, error) {
	var row submissionRow
	err := db.NewSelect().Model(&row).
		Where("quiz_id = ?", quizID).
		Where("owner_id = ?", ownerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SubmissionResult{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	return row.result(), nil
}
