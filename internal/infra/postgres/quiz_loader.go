package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const quizColumns = `id, owner_id, course_id, title, description, due_date, duration_seconds, data`

// QuizLoader loads quiz definitions; questions are stored as a JSONB array.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id=$1`, quizID)
	quiz, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// ListQuizzes returns the owner's quizzes ordered by due date.
func (l *QuizLoader) ListQuizzes(ctx context.Context, ownerID string) ([]domain.Quiz, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE owner_id=$1 ORDER BY due_date, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := make([]domain.Quiz, 0)
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

// SaveQuiz upserts a definition. Completion state is left untouched.
func (l *QuizLoader) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	if err := quiz.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO quizzes (`+quizColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			course_id = EXCLUDED.course_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			due_date = EXCLUDED.due_date,
			duration_seconds = EXCLUDED.duration_seconds,
			data = EXCLUDED.data`,
		quiz.ID, quiz.OwnerID, quiz.CourseID, quiz.Title, quiz.Description,
		quiz.DueDate, quiz.DurationSeconds, string(data),
	)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var (
		quiz    domain.Quiz
		dueDate time.Time
		raw     []byte
	)
	if err := row.Scan(&quiz.ID, &quiz.OwnerID, &quiz.CourseID, &quiz.Title, &quiz.Description,
		&dueDate, &quiz.DurationSeconds, &raw); err != nil {
		return domain.Quiz{}, err
	}
	quiz.DueDate = dueDate.UTC()
	if err := json.Unmarshal(raw, &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	return quiz, nil
}
