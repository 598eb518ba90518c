package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/asesmen-backend/internal/model"
)

// AnswerRepository handles answer row data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// ReplaceForQuestion swaps all answer rows for (attempt, question) inside a
// single transaction. The delete and inserts commit together, so a
// concurrent reader sees either the old set or the new set, never an empty
// or mixed one.
func (r *AnswerRepository) ReplaceForQuestion(ctx context.Context, attemptID, questionID uuid.UUID, answers []model.Answer) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM answers WHERE attempt_id = $1 AND question_id = $2`,
		attemptID, questionID,
	); err != nil {
		return fmt.Errorf("delete previous answers: %w", err)
	}

	for _, a := range answers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO answers (attempt_id, question_id, choice_id, answer_text, file_key, saved_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			a.AttemptID, a.QuestionID, a.ChoiceID, a.AnswerText, a.FileKey, a.SavedAt,
		); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListByAttempt retrieves all answer rows for an attempt, ordered so
// multi-choice rows for one question stay adjacent.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, question_id, choice_id, answer_text, file_key, saved_at
		 FROM answers
		 WHERE attempt_id = $1
		 ORDER BY question_id, choice_id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.ChoiceID, &a.AnswerText, &a.FileKey, &a.SavedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
