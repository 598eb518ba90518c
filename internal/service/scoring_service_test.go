package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/asesmen-backend/internal/model"
)

type scoringFixture struct {
	svc        *ScoringService
	answers    *fakeAnswerStore
	questions  *fakeQuestionStore
	assessment *model.Assessment
	attemptID  uuid.UUID
}

func newScoringFixture(t *testing.T) *scoringFixture {
	t.Helper()
	answers := newFakeAnswerStore()
	questions := &fakeQuestionStore{}
	return &scoringFixture{
		svc:        NewScoringService(questions, answers, zerolog.Nop()),
		answers:    answers,
		questions:  questions,
		assessment: proctoredFixtureAssessment(),
		attemptID:  uuid.New(),
	}
}

func (f *scoringFixture) addQuestion(qt model.QuestionType, key json.RawMessage, score float64) uuid.UUID {
	q := model.Question{
		ID:           uuid.New(),
		AssessmentID: f.assessment.ID,
		QuestionType: qt,
		AnswerKey:    key,
		ScoreValue:   score,
	}
	f.questions.questions = append(f.questions.questions, q)
	return q.ID
}

func (f *scoringFixture) answerChoices(t *testing.T, qID uuid.UUID, choices ...string) {
	t.Helper()
	rows := make([]model.Answer, 0, len(choices))
	for i := range choices {
		rows = append(rows, model.Answer{AttemptID: f.attemptID, QuestionID: qID, ChoiceID: &choices[i]})
	}
	require.NoError(t, f.answers.ReplaceForQuestion(context.Background(), f.attemptID, qID, rows))
}

func (f *scoringFixture) answerText(t *testing.T, qID uuid.UUID, text string) {
	t.Helper()
	require.NoError(t, f.answers.ReplaceForQuestion(context.Background(), f.attemptID, qID, []model.Answer{
		{AttemptID: f.attemptID, QuestionID: qID, AnswerText: &text},
	}))
}

func TestEvaluateSingleChoice(t *testing.T) {
	f := newScoringFixture(t)
	right := f.addQuestion(model.QuestionTypeSingleChoice, []byte(`{"choice_id":"b"}`), 2)
	wrong := f.addQuestion(model.QuestionTypeSingleChoice, []byte(`{"choice_id":"a"}`), 3)
	f.answerChoices(t, right, "b")
	f.answerChoices(t, wrong, "c")

	score, hasUngraded, err := f.svc.Evaluate(context.Background(), f.assessment, f.attemptID)
	require.NoError(t, err)
	require.Equal(t, 2.0, score)
	require.False(t, hasUngraded)
}

func TestEvaluateTrueFalse(t *testing.T) {
	f := newScoringFixture(t)
	qID := f.addQuestion(model.QuestionTypeTrueFalse, []byte(`{"choice_id":"true"}`), 1)
	f.answerChoices(t, qID, "true")

	score, _, err := f.svc.Evaluate(context.Background(), f.assessment, f.attemptID)
	require.NoError(t, err)
	require.Equal(t, 1.0, score)
}

func TestEvaluateMultiChoiceIsOrderInsensitive(t *testing.T) {
	f := newScoringFixture(t)
	qID := f.addQuestion(model.QuestionTypeMultiChoice, []byte(`{"choice_ids":["a","c","d"]}`), 5)
	f.answerChoices(t, qID, "d", "a", "c")

	score, _, err := f.svc.Evaluate(context.Background(), f.assessment, f.attemptID)
	require.NoError(t, err)
	require.Equal(t, 5.0, score)
}

func TestEvaluateMultiChoiceRequiresExactSet(t *testing.T) {
	f := newScoringFixture(t)
	subset := f.addQuestion(model.QuestionTypeMultiChoice, []byte(`{"choice_ids":["a","b"]}`), 5)
	superset := f.addQuestion(model.QuestionTypeMultiChoice, []byte(`{"choice_ids":["a"]}`), 5)
	f.answerChoices(t, subset, "a")
	f.answerChoices(t, superset, "a", "b")

	score, _, err := f.svc.Evaluate(context.Background(), f.assessment, f.attemptID)
	require.NoError(t, err)
	require.Zero(t, score)
}

func TestEvaluateEssayFlagsUngraded(t *testing.T) {
	f := newScoringFixture(t)
	choice := f.addQuestion(model.QuestionTypeSingleChoice, []byte(`{"choice_id":"a"}`), 2)
	essay := f.addQuestion(model.QuestionTypeEssay, nil, 10)
	f.answerChoices(t, choice, "a")
	f.answerText(t, essay, "Karena rotasi bumi.")

	score, hasUngraded, err := f.svc.Evaluate(context.Background(), f.assessment, f.attemptID)
	require.NoError(t, err)
	// The essay waits for a teacher; only the choice counts automatically.
	require.Equal(t, 2.0, score)
	require.True(t, hasUngraded)
}

func TestEvaluateUnansweredEssayIsNotUngraded(t *testing.T) {
	f := newScoringFixture(t)
	f.addQuestion(model.QuestionTypeEssay, nil, 10)

	score, hasUngraded, err := f.svc.Evaluate(context.Background(), f.assessment, f.attemptID)
	require.NoError(t, err)
	require.Zero(t, score)
	require.False(t, hasUngraded)
}

func TestEvaluateSkipsMalformedAnswerKey(t *testing.T) {
	f := newScoringFixture(t)
	broken := f.addQuestion(model.QuestionTypeSingleChoice, []byte(`{not json`), 2)
	ok := f.addQuestion(model.QuestionTypeSingleChoice, []byte(`{"choice_id":"a"}`), 1)
	f.answerChoices(t, broken, "a")
	f.answerChoices(t, ok, "a")

	score, _, err := f.svc.Evaluate(context.Background(), f.assessment, f.attemptID)
	require.NoError(t, err)
	require.Equal(t, 1.0, score)
}

func TestEvaluateUnansweredQuestionsScoreNothing(t *testing.T) {
	f := newScoringFixture(t)
	f.addQuestion(model.QuestionTypeSingleChoice, []byte(`{"choice_id":"a"}`), 2)

	score, hasUngraded, err := f.svc.Evaluate(context.Background(), f.assessment, f.attemptID)
	require.NoError(t, err)
	require.Zero(t, score)
	require.False(t, hasUngraded)
}
