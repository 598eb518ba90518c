package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AnswerKind tags the variant carried by an AnswerValue.
type AnswerKind string

const (
	AnswerKindSingleChoice AnswerKind = "single_choice"
	AnswerKindMultiChoice  AnswerKind = "multi_choice"
	AnswerKindText         AnswerKind = "text"
	AnswerKindFile         AnswerKind = "file"
)

// AnswerValue is the tagged variant a student submits for one question.
// Exactly the field matching Kind is populated; Validate enforces this so
// the replace logic downstream can switch exhaustively on Kind.
type AnswerValue struct {
	Kind      AnswerKind `json:"type" binding:"required"`
	ChoiceID  *string    `json:"choice_id,omitempty"`
	ChoiceIDs []string   `json:"choice_ids,omitempty"`
	Text      string     `json:"text,omitempty"`
	FileKey   string     `json:"file_key,omitempty"`
}

// Validate checks that the populated fields match the declared kind.
func (v AnswerValue) Validate() error {
	switch v.Kind {
	case AnswerKindSingleChoice:
		if v.ChoiceID == nil || *v.ChoiceID == "" {
			return errors.New("single_choice answer requires choice_id")
		}
	case AnswerKindMultiChoice:
		if len(v.ChoiceIDs) == 0 {
			return errors.New("multi_choice answer requires choice_ids")
		}
	case AnswerKindText:
		if v.Text == "" {
			return errors.New("text answer requires text")
		}
	case AnswerKindFile:
		if v.FileKey == "" {
			return errors.New("file answer requires file_key")
		}
	default:
		return errors.New("unknown answer type: " + string(v.Kind))
	}
	return nil
}

// Answer is one persisted row for a question within an attempt. Multi-choice
// answers expand to one row per selected choice; resaving a question replaces
// all of its rows wholesale.
type Answer struct {
	ID         uuid.UUID `json:"id"`
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	ChoiceID   *string   `json:"choice_id,omitempty"`
	AnswerText *string   `json:"answer_text,omitempty"`
	FileKey    *string   `json:"file_key,omitempty"`
	SavedAt    time.Time `json:"saved_at"`
}

// Rows expands an AnswerValue into the answer rows that replace the
// question's previous ones. The value must already be validated.
func (v AnswerValue) Rows(attemptID, questionID uuid.UUID) []Answer {
	switch v.Kind {
	case AnswerKindSingleChoice:
		return []Answer{{AttemptID: attemptID, QuestionID: questionID, ChoiceID: v.ChoiceID}}
	case AnswerKindMultiChoice:
		rows := make([]Answer, 0, len(v.ChoiceIDs))
		for i := range v.ChoiceIDs {
			rows = append(rows, Answer{AttemptID: attemptID, QuestionID: questionID, ChoiceID: &v.ChoiceIDs[i]})
		}
		return rows
	case AnswerKindText:
		text := v.Text
		return []Answer{{AttemptID: attemptID, QuestionID: questionID, AnswerText: &text}}
	case AnswerKindFile:
		key := v.FileKey
		return []Answer{{AttemptID: attemptID, QuestionID: questionID, FileKey: &key}}
	}
	return nil
}
