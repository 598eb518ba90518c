package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question shapes.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
	QuestionTypeMultiChoice  QuestionType = "multi_choice"
	QuestionTypeTrueFalse    QuestionType = "true_false"
	QuestionTypeEssay        QuestionType = "essay"
	QuestionTypeFileUpload   QuestionType = "file_upload"
)

// IsAutoScorable reports whether the question can be machine graded.
// Essay and file-upload answers always wait for a teacher.
func (t QuestionType) IsAutoScorable() bool {
	return t == QuestionTypeSingleChoice || t == QuestionTypeMultiChoice || t == QuestionTypeTrueFalse
}

// Question belongs to an assessment. Authoring is external; this service
// reads questions for answer validation and the auto-scoring hook.
type Question struct {
	ID           uuid.UUID       `json:"id"`
	AssessmentID uuid.UUID       `json:"assessment_id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options,omitempty"`
	AnswerKey    json.RawMessage `json:"-"`
	ScoreValue   float64         `json:"score_value"`
	OrderNum     int             `json:"order_num"`
}

// AnswerKeyPayload is the decoded shape of Question.AnswerKey.
type AnswerKeyPayload struct {
	ChoiceID  *string  `json:"choice_id,omitempty"`
	ChoiceIDs []string `json:"choice_ids,omitempty"`
}
