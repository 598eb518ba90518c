package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/asesmen-backend/internal/clock"
	"github.com/stemsi/asesmen-backend/internal/config"
	"github.com/stemsi/asesmen-backend/internal/model"
	"github.com/stemsi/asesmen-backend/internal/proctor"
)

// ─── in-memory fakes ───────────────────────────────────────────────────────

// fakeAttemptStore serializes access with a mutex, mirroring the atomicity
// of the single-statement conditional updates in the real repository.
type fakeAttemptStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Attempt
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{byID: make(map[uuid.UUID]*model.Attempt)}
}

func cloneAttempt(a *model.Attempt) *model.Attempt {
	c := *a
	return &c
}

func (s *fakeAttemptStore) findByPairLocked(assessmentID, enrollmentID uuid.UUID) (*model.Attempt, error) {
	for _, a := range s.byID {
		if a.AssessmentID == assessmentID && a.EnrollmentID == enrollmentID {
			return cloneAttempt(a), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeAttemptStore) FindByPair(_ context.Context, assessmentID, enrollmentID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByPairLocked(assessmentID, enrollmentID)
}

func (s *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneAttempt(a), nil
}

func (s *fakeAttemptStore) Create(_ context.Context, attempt *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.findByPairLocked(attempt.AssessmentID, attempt.EnrollmentID); err == nil {
		return ErrDuplicatePair
	}
	attempt.ID = uuid.New()
	attempt.CreatedAt = time.Now()
	attempt.UpdatedAt = attempt.CreatedAt
	s.byID[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (s *fakeAttemptStore) MarkStarted(_ context.Context, id uuid.UUID, at time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return time.Time{}, pgx.ErrNoRows
	}
	if a.StartedAt == nil {
		started := at
		a.StartedAt = &started
	}
	return *a.StartedAt, nil
}

func (s *fakeAttemptStore) Submit(_ context.Context, id uuid.UUID, sub SubmissionUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if a.SubmittedAt != nil {
		return false, nil
	}
	submitted := sub.SubmittedAt
	a.SubmittedAt = &submitted
	a.GradedAt = sub.GradedAt
	a.ForcedSubmission = sub.Forced
	a.SecurityViolation = sub.SecurityViolation
	a.Score = sub.Score
	auto := sub.AutoScore
	a.AutoScore = &auto
	return true, nil
}

func (s *fakeAttemptStore) RecordViolation(_ context.Context, id uuid.UUID, kind string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if a.SubmittedAt != nil {
		return false, nil
	}
	a.SecurityViolation = &kind
	a.UpdatedAt = at
	return true, nil
}

func (s *fakeAttemptStore) Reopen(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if a.SubmittedAt == nil || a.GradedAt != nil || !a.ForcedSubmission {
		return false, nil
	}
	a.SubmittedAt = nil
	a.ForcedSubmission = false
	a.SecurityViolation = nil
	a.Score = nil
	a.AutoScore = nil
	return true, nil
}

func (s *fakeAttemptStore) ListByAssessment(_ context.Context, assessmentID uuid.UUID, _, _ int) ([]AttemptSummary, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var summaries []AttemptSummary
	for _, a := range s.byID {
		if a.AssessmentID != assessmentID {
			continue
		}
		summaries = append(summaries, AttemptSummary{
			AttemptID:        a.ID,
			Status:           a.Status(),
			StartedAt:        a.StartedAt,
			SubmittedAt:      a.SubmittedAt,
			ForcedSubmission: a.ForcedSubmission,
			Score:            a.Score,
		})
	}
	return summaries, int64(len(summaries)), nil
}

type fakeAnswerStore struct {
	mu        sync.Mutex
	byAttempt map[uuid.UUID]map[uuid.UUID][]model.Answer
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{byAttempt: make(map[uuid.UUID]map[uuid.UUID][]model.Answer)}
}

func (s *fakeAnswerStore) ReplaceForQuestion(_ context.Context, attemptID, questionID uuid.UUID, rows []model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byAttempt[attemptID] == nil {
		s.byAttempt[attemptID] = make(map[uuid.UUID][]model.Answer)
	}
	s.byAttempt[attemptID][questionID] = append([]model.Answer(nil), rows...)
	return nil
}

func (s *fakeAnswerStore) ListByAttempt(_ context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Answer
	for _, rows := range s.byAttempt[attemptID] {
		all = append(all, rows...)
	}
	return all, nil
}

type fakeAssessmentStore struct {
	assessments map[uuid.UUID]*model.Assessment
}

func (s *fakeAssessmentStore) GetByID(_ context.Context, id uuid.UUID) (*model.Assessment, error) {
	a, ok := s.assessments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

type fakeEnrollmentStore struct {
	enrollment *model.Enrollment
}

func (s *fakeEnrollmentStore) FindByStudentAndClass(_ context.Context, studentID, classID int) (*model.Enrollment, error) {
	if s.enrollment == nil || s.enrollment.StudentID != studentID || s.enrollment.ClassID != classID {
		return nil, pgx.ErrNoRows
	}
	return s.enrollment, nil
}

type fakeQuestionStore struct {
	questions []model.Question
}

func (s *fakeQuestionStore) ListByAssessment(_ context.Context, _ uuid.UUID) ([]model.Question, error) {
	return s.questions, nil
}

type fakeAuditSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *fakeAuditSink) Record(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ─── fixture ───────────────────────────────────────────────────────────────

const (
	testStudentID = 7
	testTeacherID = 42
	testClassID   = 1
)

type engineFixture struct {
	svc        *AttemptService
	attempts   *fakeAttemptStore
	answers    *fakeAnswerStore
	questions  *fakeQuestionStore
	audit      *fakeAuditSink
	assessment *model.Assessment
	enrollment *model.Enrollment
	clk        *clock.Fixed
	mr         *miniredis.Miniredis
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func proctoredFixtureAssessment() *model.Assessment {
	return &model.Assessment{
		ID:              uuid.New(),
		ClassID:         testClassID,
		Title:           "Ujian Matematika",
		DeliveryMode:    model.DeliveryModeProctored,
		DurationMinutes: intPtr(60),
		Status:          model.AssessmentStatusPublished,
	}
}

func takeHomeFixtureAssessment(dueAt time.Time, allowLate bool) *model.Assessment {
	return &model.Assessment{
		ID:                  uuid.New(),
		ClassID:             testClassID,
		Title:               "Tugas Esai",
		DeliveryMode:        model.DeliveryModeTakeHome,
		DueAt:               &dueAt,
		AllowLateSubmission: allowLate,
		Status:              model.AssessmentStatusPublished,
	}
}

func newEngineFixture(t *testing.T, assessment *model.Assessment) *engineFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	clk := &clock.Fixed{Instant: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)}
	log := zerolog.Nop()

	attempts := newFakeAttemptStore()
	answers := newFakeAnswerStore()
	questions := &fakeQuestionStore{}
	audit := &fakeAuditSink{}
	enrollment := &model.Enrollment{ID: uuid.New(), StudentID: testStudentID, ClassID: testClassID}

	answerService := NewAnswerService(answers, questions, clk, log)
	scorer := NewScoringService(questions, answers, log)
	svc := NewAttemptService(
		attempts,
		&fakeAssessmentStore{assessments: map[uuid.UUID]*model.Assessment{assessment.ID: assessment}},
		&fakeEnrollmentStore{enrollment: enrollment},
		answerService,
		scorer,
		audit,
		rdb,
		clk,
		log,
	)

	return &engineFixture{
		svc:        svc,
		attempts:   attempts,
		answers:    answers,
		questions:  questions,
		audit:      audit,
		assessment: assessment,
		enrollment: enrollment,
		clk:        clk,
		mr:         mr,
	}
}

func (f *engineFixture) addSingleChoiceQuestion(keyChoice string, score float64) uuid.UUID {
	q := model.Question{
		ID:           uuid.New(),
		AssessmentID: f.assessment.ID,
		QuestionText: "Pilih jawaban yang benar",
		QuestionType: model.QuestionTypeSingleChoice,
		AnswerKey:    []byte(`{"choice_id": "` + keyChoice + `"}`),
		ScoreValue:   score,
	}
	f.questions.questions = append(f.questions.questions, q)
	return q.ID
}

func (f *engineFixture) addEssayQuestion() uuid.UUID {
	q := model.Question{
		ID:           uuid.New(),
		AssessmentID: f.assessment.ID,
		QuestionText: "Jelaskan jawaban Anda",
		QuestionType: model.QuestionTypeEssay,
		ScoreValue:   10,
	}
	f.questions.questions = append(f.questions.questions, q)
	return q.ID
}

// ─── lifecycle tests ───────────────────────────────────────────────────────

func TestGetSessionCreatesAttemptLazily(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	view, err := f.svc.GetSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptStatusNotStarted, view.Status)
	require.Nil(t, view.RemainingSeconds)
	require.Empty(t, view.Answers)

	// A second access adopts the same attempt instead of creating another.
	again, err := f.svc.GetSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, view.Attempt.ID, again.Attempt.ID)
	require.Len(t, f.attempts.byID, 1)
}

func TestGetSessionRejectsUnenrolledStudent(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())

	_, err := f.svc.GetSession(context.Background(), 999, f.assessment.ID)
	require.ErrorIs(t, err, ErrNotEnrolled)
}

func TestGetSessionRejectsUnpublishedAssessment(t *testing.T) {
	assessment := proctoredFixtureAssessment()
	assessment.Status = model.AssessmentStatusDraft
	f := newEngineFixture(t, assessment)

	_, err := f.svc.GetSession(context.Background(), testStudentID, f.assessment.ID)
	require.ErrorIs(t, err, ErrAssessmentNotOpen)
}

func TestStartSessionIdempotent(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	first, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptStatusInProgress, first.Status)
	require.NotNil(t, first.RemainingSeconds)
	require.EqualValues(t, 60*60, *first.RemainingSeconds)

	// A reload five minutes later must not move the clock.
	f.clk.Advance(5 * time.Minute)
	second, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, *first.Attempt.StartedAt, *second.Attempt.StartedAt)
	require.EqualValues(t, 55*60, *second.RemainingSeconds)
}

func TestStartSessionBeforeScheduledOpenRejected(t *testing.T) {
	assessment := proctoredFixtureAssessment()
	f := newEngineFixture(t, assessment)
	assessment.ScheduledAt = timePtr(f.clk.Instant.Add(time.Hour))

	_, err := f.svc.StartSession(context.Background(), testStudentID, f.assessment.ID)
	require.ErrorIs(t, err, ErrAssessmentNotOpen)
}

func TestStartSessionCachesStartInstant(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())

	view, err := f.svc.StartSession(context.Background(), testStudentID, f.assessment.ID)
	require.NoError(t, err)

	key := config.CacheKey.AttemptStartKey(f.assessment.ID.String(), f.enrollment.ID.String())
	cached, err := f.mr.Get(key)
	require.NoError(t, err)
	require.NotNil(t, view.Attempt.StartedAt)
	require.Equal(t, strconv.FormatInt(view.Attempt.StartedAt.Unix(), 10), cached)
}

// ─── expiry tests ──────────────────────────────────────────────────────────

func TestExpiredProctoredAttemptAutoSubmitsAtDeadline(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	started, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	deadline := started.Attempt.StartedAt.Add(60 * time.Minute)

	// The student walks away; the next poll happens well past the window.
	f.clk.Advance(90 * time.Minute)
	view, err := f.svc.GetSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	require.Equal(t, model.AttemptStatusSubmitted, view.Status)
	require.True(t, view.Attempt.ForcedSubmission)
	require.NotNil(t, view.Attempt.SecurityViolation)
	require.Equal(t, model.ViolationTimeExpired, *view.Attempt.SecurityViolation)
	// The submission instant is the deadline, not the polling time.
	require.Equal(t, deadline, *view.Attempt.SubmittedAt)
	require.EqualValues(t, 0, *view.RemainingSeconds)
}

func TestExpiredAttemptRejectsFurtherSaves(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	qID := f.addSingleChoiceQuestion("a", 1)
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	f.clk.Advance(2 * time.Hour)
	_, err = f.svc.SaveAnswers(ctx, testStudentID, f.assessment.ID, map[uuid.UUID]model.AnswerValue{
		qID: {Kind: model.AnswerKindSingleChoice, ChoiceID: strPtr("a")},
	})
	require.ErrorIs(t, err, ErrAttemptLocked)
}

func TestTakeHomeNeverAutoSubmits(t *testing.T) {
	f := newEngineFixture(t, takeHomeFixtureAssessment(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), false))
	qID := f.addEssayQuestion()
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	// Past the due date the attempt stays open but rejects writes.
	f.clk.Advance(48 * time.Hour)
	view, err := f.svc.GetSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptStatusInProgress, view.Status)
	require.False(t, view.Attempt.ForcedSubmission)

	_, err = f.svc.SaveAnswers(ctx, testStudentID, f.assessment.ID, map[uuid.UUID]model.AnswerValue{
		qID: {Kind: model.AnswerKindText, Text: "terlambat"},
	})
	require.ErrorIs(t, err, ErrDeadlinePassed)

	_, err = f.svc.Submit(ctx, testStudentID, f.assessment.ID)
	require.ErrorIs(t, err, ErrDeadlinePassed)
}

func TestTakeHomeLateSubmissionTolerated(t *testing.T) {
	f := newEngineFixture(t, takeHomeFixtureAssessment(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), true))
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	f.clk.Advance(48 * time.Hour)
	view, err := f.svc.Submit(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.False(t, view.Attempt.ForcedSubmission)
	require.NotNil(t, view.Attempt.SubmittedAt)
}

// ─── submit tests ──────────────────────────────────────────────────────────

func TestSubmitGradesFullyAutoScoredAttempt(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	qID := f.addSingleChoiceQuestion("a", 2.5)
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	_, err = f.svc.SaveAnswers(ctx, testStudentID, f.assessment.ID, map[uuid.UUID]model.AnswerValue{
		qID: {Kind: model.AnswerKindSingleChoice, ChoiceID: strPtr("a")},
	})
	require.NoError(t, err)

	view, err := f.svc.Submit(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptStatusGraded, view.Status)
	require.NotNil(t, view.Attempt.Score)
	require.Equal(t, 2.5, *view.Attempt.Score)
	require.False(t, view.Attempt.ForcedSubmission)
}

func TestSubmitLeavesScoreOpenWhileEssayUngraded(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	choiceID := f.addSingleChoiceQuestion("b", 1)
	essayID := f.addEssayQuestion()
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	_, err = f.svc.SaveAnswers(ctx, testStudentID, f.assessment.ID, map[uuid.UUID]model.AnswerValue{
		choiceID: {Kind: model.AnswerKindSingleChoice, ChoiceID: strPtr("b")},
		essayID:  {Kind: model.AnswerKindText, Text: "Karena gravitasi."},
	})
	require.NoError(t, err)

	view, err := f.svc.Submit(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptStatusSubmitted, view.Status)
	require.Nil(t, view.Attempt.Score)
	require.NotNil(t, view.Attempt.AutoScore)
	require.Equal(t, 1.0, *view.Attempt.AutoScore)
}

func TestSubmitExactlyOnce(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, testStudentID, f.assessment.ID)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmitConcurrentCallersExactlyOnce(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	// Double-click plus a second tab: every caller races Submit at once.
	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Submit(ctx, testStudentID, f.assessment.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadySubmitted)
	}
	require.Equal(t, 1, winners)
}

func TestSubmitClearsAutosaveCache(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	key := config.CacheKey.AttemptAnswersKey(f.assessment.ID.String(), f.enrollment.ID.String())
	f.mr.HSet(key, uuid.NewString(), `{"type":"text","text":"draf"}`)

	_, err = f.svc.Submit(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.False(t, f.mr.Exists(key))
}

// ─── violation tests ───────────────────────────────────────────────────────

func TestAdvisoryViolationKeepsAttemptLive(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	terminated, err := f.svc.ReportViolation(ctx, testStudentID, f.assessment.ID, proctor.KindCopyPaste, "ctrl+v di soal 3")
	require.NoError(t, err)
	require.False(t, terminated)

	view, err := f.svc.GetSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptStatusInProgress, view.Status)
	require.NotNil(t, view.Attempt.SecurityViolation)
	require.Equal(t, string(proctor.KindCopyPaste), *view.Attempt.SecurityViolation)

	// The raw event is queued for the batch writer.
	require.EqualValues(t, 1, queueLen(t, f.mr, config.WorkerKey.ViolationEventsQueue))
}

func TestTerminalViolationForcesSubmission(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	terminated, err := f.svc.ReportViolation(ctx, testStudentID, f.assessment.ID, proctor.KindTabSwitch, "")
	require.NoError(t, err)
	require.True(t, terminated)

	view, err := f.svc.GetSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptStatusSubmitted, view.Status)
	require.True(t, view.Attempt.ForcedSubmission)
	require.Equal(t, string(proctor.KindTabSwitch), *view.Attempt.SecurityViolation)

	require.Len(t, f.audit.events, 1)
	require.Equal(t, "attempt_terminated", f.audit.events[0].Event)
	require.Equal(t, testStudentID, f.audit.events[0].ActorID)
}

func TestViolationAfterTerminationRejected(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	_, err = f.svc.ReportViolation(ctx, testStudentID, f.assessment.ID, proctor.KindTabSwitch, "")
	require.NoError(t, err)

	_, err = f.svc.ReportViolation(ctx, testStudentID, f.assessment.ID, proctor.KindCopyPaste, "")
	require.ErrorIs(t, err, ErrAttemptLocked)
}

func TestViolationOnTakeHomeUnsupported(t *testing.T) {
	f := newEngineFixture(t, takeHomeFixtureAssessment(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), false))
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	_, err = f.svc.ReportViolation(ctx, testStudentID, f.assessment.ID, proctor.KindTabSwitch, "")
	require.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestViolationUnknownKindRejected(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	_, err = f.svc.ReportViolation(ctx, testStudentID, f.assessment.ID, proctor.Kind("screenshot"), "")
	require.ErrorIs(t, err, ErrInvalidViolationKind)
}

// ─── reopen tests ──────────────────────────────────────────────────────────

func TestReopenRestoresInterruptedAttempt(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	started, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	attemptID := started.Attempt.ID

	// Terminated 20 minutes in; the teacher reopens 5 minutes later.
	f.clk.Advance(20 * time.Minute)
	_, err = f.svc.ReportViolation(ctx, testStudentID, f.assessment.ID, proctor.KindFullscreenExit, "")
	require.NoError(t, err)
	f.clk.Advance(5 * time.Minute)

	remaining, err := f.svc.Reopen(ctx, testTeacherID, attemptID, "salah pencet alt+tab")
	require.NoError(t, err)
	require.EqualValues(t, 35*60, remaining)

	view, err := f.svc.GetSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptStatusInProgress, view.Status)
	require.False(t, view.Attempt.ForcedSubmission)
	require.Nil(t, view.Attempt.SecurityViolation)

	// Termination and reopen are both audited.
	require.Len(t, f.audit.events, 2)
	require.Equal(t, "attempt_reopened", f.audit.events[1].Event)
	require.Equal(t, testTeacherID, f.audit.events[1].ActorID)
	require.Equal(t, "salah pencet alt+tab", f.audit.events[1].Details["reason"])
}

func TestReopenVoluntarySubmissionRejected(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	f.addEssayQuestion()
	ctx := context.Background()

	started, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	_, err = f.svc.Reopen(ctx, testTeacherID, started.Attempt.ID, "minta dibuka lagi")
	require.ErrorIs(t, err, ErrNotInterrupted)
}

func TestReopenTakeHomeRejected(t *testing.T) {
	f := newEngineFixture(t, takeHomeFixtureAssessment(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), false))
	ctx := context.Background()

	started, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	_, err = f.svc.Reopen(ctx, testTeacherID, started.Attempt.ID, "coba")
	require.ErrorIs(t, err, ErrNotSupervised)
}

func TestReopenAfterTimeFullyElapsedRejected(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	started, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	f.clk.Advance(20 * time.Minute)
	_, err = f.svc.ReportViolation(ctx, testStudentID, f.assessment.ID, proctor.KindTabSwitch, "")
	require.NoError(t, err)

	// By the time the teacher acts, the original window is gone.
	f.clk.Advance(50 * time.Minute)
	_, err = f.svc.Reopen(ctx, testTeacherID, started.Attempt.ID, "terlambat")
	require.ErrorIs(t, err, ErrTimeFullyElapsed)
}

func TestReopenMissingAttempt(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())

	_, err := f.svc.Reopen(context.Background(), testTeacherID, uuid.New(), "tidak ada")
	require.ErrorIs(t, err, ErrAttemptNotFound)
}

// ─── clock cache tests ─────────────────────────────────────────────────────

func TestCachedRemainingSecondsFromCache(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)
	f.clk.Advance(15 * time.Minute)

	remaining, err := f.svc.CachedRemainingSeconds(ctx, f.assessment, f.enrollment.ID)
	require.NoError(t, err)
	require.NotNil(t, remaining)
	require.EqualValues(t, 45*60, *remaining)
}

func TestCachedRemainingSecondsSelfHealsOnMiss(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	// Simulate a Redis flush: the fallback reads the attempt row and
	// repopulates the cache.
	key := config.CacheKey.AttemptStartKey(f.assessment.ID.String(), f.enrollment.ID.String())
	f.mr.Del(key)

	remaining, err := f.svc.CachedRemainingSeconds(ctx, f.assessment, f.enrollment.ID)
	require.NoError(t, err)
	require.NotNil(t, remaining)
	require.EqualValues(t, 60*60, *remaining)
	require.True(t, f.mr.Exists(key))
}

func TestStagedAnswersReplayedUntilSubmit(t *testing.T) {
	f := newEngineFixture(t, proctoredFixtureAssessment())
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	// Drafts staged over the stream, not yet drained by the worker.
	qID := uuid.NewString()
	key := config.CacheKey.AttemptAnswersKey(f.assessment.ID.String(), f.enrollment.ID.String())
	f.mr.HSet(key, qID, `{"type":"text","text":"draf jawaban"}`)

	staged, err := f.svc.StagedAnswers(ctx, f.assessment, f.enrollment.ID)
	require.NoError(t, err)
	require.Len(t, staged, 1)
	require.JSONEq(t, `{"type":"text","text":"draf jawaban"}`, string(staged[qID]))

	// Submit clears the stage; a later reconnect replays nothing.
	_, err = f.svc.Submit(ctx, testStudentID, f.assessment.ID)
	require.NoError(t, err)

	staged, err = f.svc.StagedAnswers(ctx, f.assessment, f.enrollment.ID)
	require.NoError(t, err)
	require.Empty(t, staged)
}

func TestCachedRemainingSecondsNilForTakeHome(t *testing.T) {
	f := newEngineFixture(t, takeHomeFixtureAssessment(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), false))

	remaining, err := f.svc.CachedRemainingSeconds(context.Background(), f.assessment, f.enrollment.ID)
	require.NoError(t, err)
	require.Nil(t, remaining)
}

func queueLen(t *testing.T, mr *miniredis.Miniredis, key string) int {
	t.Helper()
	items, err := mr.List(key)
	if err != nil {
		return 0
	}
	return len(items)
}
