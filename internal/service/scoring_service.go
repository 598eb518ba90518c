package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/asesmen-backend/internal/model"
)

// ScoringService backs the Scorer hook with a straightforward key
// comparison for choice questions. Essay and file answers are never machine
// graded: their presence flags the attempt as awaiting manual grading, and
// the final score stays null until a teacher grades them.
type ScoringService struct {
	questions QuestionStore
	answers   AnswerStore
	log       zerolog.Logger
}

// NewScoringService creates a new ScoringService.
func NewScoringService(questions QuestionStore, answers AnswerStore, log zerolog.Logger) *ScoringService {
	return &ScoringService{
		questions: questions,
		answers:   answers,
		log:       log.With().Str("component", "scoring_service").Logger(),
	}
}

// Evaluate computes the auto-scored component of an attempt and whether any
// manually graded answers remain.
func (s *ScoringService) Evaluate(ctx context.Context, assessment *model.Assessment, attemptID uuid.UUID) (float64, bool, error) {
	questions, err := s.questions.ListByAssessment(ctx, assessment.ID)
	if err != nil {
		return 0, false, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.answers.ListByAttempt(ctx, attemptID)
	if err != nil {
		return 0, false, fmt.Errorf("list answers: %w", err)
	}

	byQuestion := make(map[uuid.UUID][]model.Answer)
	for _, a := range answers {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}

	var autoScore float64
	hasUngraded := false

	for _, q := range questions {
		rows := byQuestion[q.ID]
		if !q.QuestionType.IsAutoScorable() {
			if len(rows) > 0 {
				hasUngraded = true
			}
			continue
		}
		if len(rows) == 0 || len(q.AnswerKey) == 0 {
			continue
		}

		var key model.AnswerKeyPayload
		if err := json.Unmarshal(q.AnswerKey, &key); err != nil {
			s.log.Error().Err(err).
				Str("question_id", q.ID.String()).
				Msg("Malformed answer key, skipping question")
			continue
		}
		if correct(q.QuestionType, rows, key) {
			autoScore += q.ScoreValue
		}
	}

	return autoScore, hasUngraded, nil
}

func correct(qt model.QuestionType, rows []model.Answer, key model.AnswerKeyPayload) bool {
	switch qt {
	case model.QuestionTypeSingleChoice, model.QuestionTypeTrueFalse:
		if len(rows) != 1 || rows[0].ChoiceID == nil || key.ChoiceID == nil {
			return false
		}
		return *rows[0].ChoiceID == *key.ChoiceID
	case model.QuestionTypeMultiChoice:
		if len(key.ChoiceIDs) == 0 || len(rows) != len(key.ChoiceIDs) {
			return false
		}
		chosen := make([]string, 0, len(rows))
		for _, r := range rows {
			if r.ChoiceID == nil {
				return false
			}
			chosen = append(chosen, *r.ChoiceID)
		}
		expected := append([]string(nil), key.ChoiceIDs...)
		sort.Strings(chosen)
		sort.Strings(expected)
		for i := range chosen {
			if chosen[i] != expected[i] {
				return false
			}
		}
		return true
	}
	return false
}
