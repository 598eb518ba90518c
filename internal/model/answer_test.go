package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAnswerValueValidate(t *testing.T) {
	choice := "a"

	require.NoError(t, AnswerValue{Kind: AnswerKindSingleChoice, ChoiceID: &choice}.Validate())
	require.NoError(t, AnswerValue{Kind: AnswerKindMultiChoice, ChoiceIDs: []string{"a", "b"}}.Validate())
	require.NoError(t, AnswerValue{Kind: AnswerKindText, Text: "jawaban"}.Validate())
	require.NoError(t, AnswerValue{Kind: AnswerKindFile, FileKey: "uploads/x.pdf"}.Validate())

	require.Error(t, AnswerValue{Kind: AnswerKindSingleChoice}.Validate())
	require.Error(t, AnswerValue{Kind: AnswerKindMultiChoice}.Validate())
	require.Error(t, AnswerValue{Kind: AnswerKindText}.Validate())
	require.Error(t, AnswerValue{Kind: AnswerKindFile}.Validate())
	require.Error(t, AnswerValue{Kind: AnswerKind("drawing")}.Validate())
}

func TestAnswerValueRowsExpansion(t *testing.T) {
	attemptID, questionID := uuid.New(), uuid.New()

	rows := AnswerValue{Kind: AnswerKindMultiChoice, ChoiceIDs: []string{"a", "b", "c"}}.Rows(attemptID, questionID)
	require.Len(t, rows, 3)
	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, attemptID, rows[i].AttemptID)
		require.Equal(t, questionID, rows[i].QuestionID)
		require.Equal(t, want, *rows[i].ChoiceID)
	}

	rows = AnswerValue{Kind: AnswerKindText, Text: "esai"}.Rows(attemptID, questionID)
	require.Len(t, rows, 1)
	require.Equal(t, "esai", *rows[0].AnswerText)
	require.Nil(t, rows[0].ChoiceID)
}

func TestAttemptStatusDerivation(t *testing.T) {
	now := time.Now()
	a := &Attempt{}

	require.Equal(t, AttemptStatusNotStarted, a.Status())
	require.False(t, a.IsTerminal())

	a.StartedAt = &now
	require.Equal(t, AttemptStatusInProgress, a.Status())
	require.False(t, a.IsTerminal())

	a.SubmittedAt = &now
	require.Equal(t, AttemptStatusSubmitted, a.Status())
	require.True(t, a.IsTerminal())

	a.GradedAt = &now
	require.Equal(t, AttemptStatusGraded, a.Status())
}
