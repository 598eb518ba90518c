package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/asesmen-backend/internal/clock"
	"github.com/stemsi/asesmen-backend/internal/delivery"
	"github.com/stemsi/asesmen-backend/internal/model"
	"github.com/stemsi/asesmen-backend/internal/timing"
)

// AnswerService is the answer intake: idempotent replace-on-resave
// persistence of a student's responses. It does not interpret whether an
// answer's shape matches its question type — that is the question-type
// owner's responsibility.
type AnswerService struct {
	answers   AnswerStore
	questions QuestionStore
	clk       clock.Clock
	log       zerolog.Logger
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(answers AnswerStore, questions QuestionStore, clk clock.Clock, log zerolog.Logger) *AnswerService {
	return &AnswerService{
		answers:   answers,
		questions: questions,
		clk:       clk,
		log:       log.With().Str("component", "answer_service").Logger(),
	}
}

// SaveReport summarizes a batch save: how many questions were replaced and
// how many entries were skipped (unknown question IDs, malformed values).
type SaveReport struct {
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

// Save replaces the answer rows for a single question.
func (s *AnswerService) Save(ctx context.Context, attempt *model.Attempt, assessment *model.Assessment, questionID uuid.UUID, value model.AnswerValue) error {
	report, err := s.SaveAll(ctx, attempt, assessment, map[uuid.UUID]model.AnswerValue{questionID: value})
	if err != nil {
		return err
	}
	if report.Saved == 0 {
		return fmt.Errorf("answer for question %s was not saved: %w", questionID, ErrInvalidAnswer)
	}
	return nil
}

// SaveAll performs one replace per question in the batch. Unknown question
// IDs and malformed values are skipped rather than aborting the batch: the
// exam client streams autosaves and a single bad entry must not lose the
// rest. Each replace is atomic — a concurrent reader never observes a
// half-replaced answer set for a question.
func (s *AnswerService) SaveAll(ctx context.Context, attempt *model.Attempt, assessment *model.Assessment, values map[uuid.UUID]model.AnswerValue) (*SaveReport, error) {
	now := s.clk.Now()
	mode := delivery.ForAssessment(assessment)

	// Deadline first: a take-home save past an intolerant due date is a
	// distinct condition from writing to a submitted attempt.
	if mode.RequiresDeadlineCheck() && timing.IsExpired(attempt, assessment, now) &&
		!mode.ToleratesLateSubmission(assessment) {
		return nil, ErrDeadlinePassed
	}
	if attempt.IsTerminal() {
		return nil, ErrAttemptLocked
	}

	questions, err := s.questions.ListByAssessment(ctx, assessment.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	known := make(map[uuid.UUID]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}

	report := &SaveReport{}
	for questionID, value := range values {
		if !known[questionID] {
			s.log.Debug().
				Str("attempt_id", attempt.ID.String()).
				Str("question_id", questionID.String()).
				Msg("Skipping unknown question in batch")
			report.Skipped++
			continue
		}
		if err := value.Validate(); err != nil {
			s.log.Warn().Err(err).
				Str("question_id", questionID.String()).
				Msg("Skipping malformed answer value")
			report.Skipped++
			continue
		}

		rows := value.Rows(attempt.ID, questionID)
		for i := range rows {
			rows[i].SavedAt = now
		}
		if err := s.answers.ReplaceForQuestion(ctx, attempt.ID, questionID, rows); err != nil {
			return report, fmt.Errorf("replace answer for question %s: %w", questionID, err)
		}
		report.Saved++
	}
	return report, nil
}

// ListByAttempt returns all persisted answer rows of an attempt.
func (s *AnswerService) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	return s.answers.ListByAttempt(ctx, attemptID)
}
