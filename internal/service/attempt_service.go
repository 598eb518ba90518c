package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/asesmen-backend/internal/clock"
	"github.com/stemsi/asesmen-backend/internal/config"
	"github.com/stemsi/asesmen-backend/internal/delivery"
	"github.com/stemsi/asesmen-backend/internal/model"
	"github.com/stemsi/asesmen-backend/internal/proctor"
	"github.com/stemsi/asesmen-backend/internal/timing"
)

// AttemptService owns the attempt lifecycle: lazy creation, start, answer
// intake, voluntary and forced submission, and teacher-initiated reopen.
// Every operation re-reads persisted state; no attempt state survives in
// memory across requests.
type AttemptService struct {
	attempts    AttemptStore
	assessments AssessmentStore
	enrollments EnrollmentStore
	answers     *AnswerService
	scorer      Scorer
	audit       AuditSink
	rdb         *redis.Client
	clk         clock.Clock
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attempts AttemptStore,
	assessments AssessmentStore,
	enrollments EnrollmentStore,
	answers *AnswerService,
	scorer Scorer,
	audit AuditSink,
	rdb *redis.Client,
	clk clock.Clock,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts:    attempts,
		assessments: assessments,
		enrollments: enrollments,
		answers:     answers,
		scorer:      scorer,
		audit:       audit,
		rdb:         rdb,
		clk:         clk,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// SessionView is the live session snapshot returned to the exam client.
type SessionView struct {
	Attempt           *model.Attempt      `json:"attempt"`
	Status            model.AttemptStatus `json:"status"`
	RemainingSeconds  *int64              `json:"remaining_seconds"`
	ElapsedPercentage float64             `json:"elapsed_percentage"`
	NearExpiration    bool                `json:"near_expiration"`
	Answers           []model.Answer      `json:"answers"`
}

// MonitorEvent is published to the assessment's Redis channel so teacher
// dashboards can follow the session live.
type MonitorEvent struct {
	Type         string    `json:"type"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	AttemptID    uuid.UUID `json:"attempt_id"`
	EnrollmentID uuid.UUID `json:"enrollment_id"`
	Kind         string    `json:"kind,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	At           time.Time `json:"at"`
}

// violationEventPayload is what gets queued for the violation worker.
type violationEventPayload struct {
	AttemptID    string `json:"attempt_id"`
	AssessmentID string `json:"assessment_id"`
	Kind         string `json:"kind"`
	Detail       string `json:"detail"`
	Timestamp    int64  `json:"timestamp"`
}

// GetSession returns the student's live session for an assessment, creating
// the attempt lazily on first access. Expired proctored attempts are
// auto-submitted before the view is built, so a late page load can never
// resume writing past its window.
func (s *AttemptService) GetSession(ctx context.Context, studentID int, assessmentID uuid.UUID) (*SessionView, error) {
	_, _, attempt, err := s.liveAttempt(ctx, studentID, assessmentID)
	if err != nil {
		return nil, err
	}
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return s.buildView(ctx, attempt, assessment)
}

// StartSession is the idempotent start transition: the first call pins
// started_at, repeated calls (second tab, page reload) observe the first
// caller's clock.
func (s *AttemptService) StartSession(ctx context.Context, studentID int, assessmentID uuid.UUID) (*SessionView, error) {
	assessment, _, attempt, err := s.liveAttempt(ctx, studentID, assessmentID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	mode := delivery.ForAssessment(assessment)

	if attempt.StartedAt == nil {
		// Proctored assessments cannot be entered before their open time.
		if mode.HasCountdown() && assessment.ScheduledAt != nil && now.Before(*assessment.ScheduledAt) {
			return nil, ErrAssessmentNotOpen
		}
		// A take-home assessment past an intolerant deadline cannot begin.
		if mode.RequiresDeadlineCheck() && timing.IsExpired(attempt, assessment, now) {
			return nil, ErrDeadlinePassed
		}

		startedAt, err := s.attempts.MarkStarted(ctx, attempt.ID, now)
		if err != nil {
			return nil, fmt.Errorf("mark started: %w", err)
		}
		attempt.StartedAt = &startedAt
		s.cacheStart(ctx, assessment, attempt)
	}

	return s.buildView(ctx, attempt, assessment)
}

// SaveAnswers guards the session and forwards the batch to the answer
// intake. Unknown question IDs are skipped, not fatal.
func (s *AttemptService) SaveAnswers(ctx context.Context, studentID int, assessmentID uuid.UUID, values map[uuid.UUID]model.AnswerValue) (*SaveReport, error) {
	assessment, _, attempt, err := s.liveAttempt(ctx, studentID, assessmentID)
	if err != nil {
		return nil, err
	}
	return s.answers.SaveAll(ctx, attempt, assessment, values)
}

// Submit is the voluntary terminal transition. Exactly one concurrent
// caller wins; losers get ErrAlreadySubmitted, which handlers present as
// success because the student's submission did land.
func (s *AttemptService) Submit(ctx context.Context, studentID int, assessmentID uuid.UUID) (*SessionView, error) {
	assessment, _, attempt, err := s.liveAttempt(ctx, studentID, assessmentID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	mode := delivery.ForAssessment(assessment)

	if attempt.IsTerminal() {
		return nil, ErrAlreadySubmitted
	}
	if mode.RequiresDeadlineCheck() && timing.IsExpired(attempt, assessment, now) &&
		!mode.ToleratesLateSubmission(assessment) {
		return nil, ErrDeadlinePassed
	}

	autoScore, hasUngraded, err := s.scorer.Evaluate(ctx, assessment, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("evaluate score: %w", err)
	}

	sub := SubmissionUpdate{
		SubmittedAt: now,
		AutoScore:   autoScore,
	}
	if !hasUngraded {
		sub.Score = &autoScore
		sub.GradedAt = &now
	}

	won, err := s.attempts.Submit(ctx, attempt.ID, sub)
	if err != nil {
		return nil, fmt.Errorf("submit attempt: %w", err)
	}
	if !won {
		return nil, ErrAlreadySubmitted
	}

	s.clearAutosaveCache(ctx, assessment, attempt)
	s.publishMonitor(ctx, MonitorEvent{
		Type:         "submission",
		AssessmentID: assessment.ID,
		AttemptID:    attempt.ID,
		EnrollmentID: attempt.EnrollmentID,
		At:           now,
	})
	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Float64("auto_score", autoScore).
		Bool("has_ungraded", hasUngraded).
		Msg("Attempt submitted")

	fresh, err := s.attempts.GetByID(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("reload attempt: %w", err)
	}
	return s.buildView(ctx, fresh, assessment)
}

// ReportViolation handles a proctoring event from the exam client. It
// returns true when the violation terminated the attempt. Take-home
// attempts reject reports outright: no proctoring context exists for them.
func (s *AttemptService) ReportViolation(ctx context.Context, studentID int, assessmentID uuid.UUID, kind proctor.Kind, detail string) (bool, error) {
	assessment, _, attempt, err := s.liveAttempt(ctx, studentID, assessmentID)
	if err != nil {
		return false, err
	}

	mode := delivery.ForAssessment(assessment)
	if !mode.MonitorsSecurity() {
		return false, ErrUnsupportedOperation
	}
	if !proctor.IsValidKind(kind) {
		return false, ErrInvalidViolationKind
	}
	if attempt.IsTerminal() {
		return false, ErrAttemptLocked
	}

	now := s.clk.Now()
	s.queueViolationEvent(ctx, assessment, attempt, kind, detail, now)
	s.publishMonitor(ctx, MonitorEvent{
		Type:         "violation",
		AssessmentID: assessment.ID,
		AttemptID:    attempt.ID,
		EnrollmentID: attempt.EnrollmentID,
		Kind:         string(kind),
		Detail:       detail,
		At:           now,
	})

	if !proctor.ShouldTerminate(kind) {
		if _, err := s.attempts.RecordViolation(ctx, attempt.ID, string(kind), now); err != nil {
			return false, fmt.Errorf("record violation: %w", err)
		}
		s.log.Warn().
			Str("attempt_id", attempt.ID.String()).
			Str("kind", string(kind)).
			Msg("Advisory violation recorded")
		return false, nil
	}

	if err := s.forceSubmitAt(ctx, assessment, attempt, now, string(kind)); err != nil {
		return false, err
	}
	if err := s.audit.Record(ctx, AuditEvent{
		Event:     "attempt_terminated",
		ActorID:   studentID,
		AttemptID: attempt.ID,
		Details:   map[string]any{"kind": string(kind), "detail": detail},
		At:        now,
	}); err != nil {
		s.log.Error().Err(err).Msg("Audit record failed")
	}
	return true, nil
}

// Reopen restores a forcibly submitted proctored attempt to in-progress
// and returns the freshly computed remaining seconds. It is a teacher
// accountability action and is always audited.
func (s *AttemptService) Reopen(ctx context.Context, teacherID int, attemptID uuid.UUID, reason string) (int64, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAttemptNotFound
		}
		return 0, fmt.Errorf("get attempt: %w", err)
	}
	assessment, err := s.assessments.GetByID(ctx, attempt.AssessmentID)
	if err != nil {
		return 0, fmt.Errorf("get assessment: %w", err)
	}

	mode := delivery.ForAssessment(assessment)
	if !mode.MonitorsSecurity() {
		return 0, ErrNotSupervised
	}
	// Only interrupted (forced) submissions are recoverable; a clean
	// voluntary submission stays final.
	if attempt.Status() != model.AttemptStatusSubmitted || !attempt.ForcedSubmission {
		return 0, ErrNotInterrupted
	}

	now := s.clk.Now()
	if attempt.StartedAt == nil || assessment.DurationMinutes == nil {
		return 0, ErrNotInterrupted
	}
	remaining := int64(attempt.StartedAt.Add(assessment.Duration()).Sub(now).Seconds())
	if remaining <= 0 {
		return 0, ErrTimeFullyElapsed
	}

	won, err := s.attempts.Reopen(ctx, attempt.ID)
	if err != nil {
		return 0, fmt.Errorf("reopen attempt: %w", err)
	}
	if !won {
		return 0, ErrNotInterrupted
	}

	if err := s.audit.Record(ctx, AuditEvent{
		Event:     "attempt_reopened",
		ActorID:   teacherID,
		AttemptID: attempt.ID,
		Details: map[string]any{
			"reason":            reason,
			"remaining_seconds": remaining,
			"violation":         attempt.SecurityViolation,
		},
		At: now,
	}); err != nil {
		// The reopen already happened; surface the audit failure loudly.
		s.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Audit record failed for reopen")
	}
	s.publishMonitor(ctx, MonitorEvent{
		Type:         "reopen",
		AssessmentID: assessment.ID,
		AttemptID:    attempt.ID,
		EnrollmentID: attempt.EnrollmentID,
		Detail:       reason,
		At:           now,
	})
	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Int("teacher_id", teacherID).
		Int64("remaining_seconds", remaining).
		Msg("Attempt reopened")

	return remaining, nil
}

// ListAttempts returns the paginated teacher-facing progress listing.
func (s *AttemptService) ListAttempts(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]AttemptSummary, int64, error) {
	return s.attempts.ListByAssessment(ctx, assessmentID, page, perPage)
}

// CachedRemainingSeconds serves the WebSocket clock sync from the Redis
// start-time cache, falling back to the attempt row on a miss and
// self-healing the cache.
func (s *AttemptService) CachedRemainingSeconds(ctx context.Context, assessment *model.Assessment, enrollmentID uuid.UUID) (*int64, error) {
	if assessment.DeliveryMode != model.DeliveryModeProctored || assessment.DurationMinutes == nil {
		return nil, nil
	}

	startKey := config.CacheKey.AttemptStartKey(assessment.ID.String(), enrollmentID.String())
	val, err := s.rdb.Get(ctx, startKey).Result()

	var startUnix int64
	switch {
	case errors.Is(err, redis.Nil):
		attempt, dbErr := s.attempts.FindByPair(ctx, assessment.ID, enrollmentID)
		if dbErr != nil {
			return nil, fmt.Errorf("attempt not found in cache or db: %w", dbErr)
		}
		if attempt.StartedAt == nil {
			return nil, nil
		}
		startUnix = attempt.StartedAt.Unix()
		_ = s.rdb.Set(ctx, startKey, startUnix, 0)
	case err != nil:
		return nil, fmt.Errorf("redis error getting start time: %w", err)
	default:
		startUnix, err = strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start time format in cache: %w", err)
		}
	}

	deadline := time.Unix(startUnix, 0).Add(assessment.Duration())
	remaining := int64(deadline.Sub(s.clk.Now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &remaining, nil
}

// StagedAnswers returns the autosaved answers still staged in Redis for a
// session, keyed by question ID. A reconnecting client gets these replayed
// before the answer worker has drained the persist queue, so a dropped
// connection never loses drafts from the view.
func (s *AttemptService) StagedAnswers(ctx context.Context, assessment *model.Assessment, enrollmentID uuid.UUID) (map[string]json.RawMessage, error) {
	key := config.CacheKey.AttemptAnswersKey(assessment.ID.String(), enrollmentID.String())
	staged, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read staged answers: %w", err)
	}
	if len(staged) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(staged))
	for qid, raw := range staged {
		out[qid] = json.RawMessage(raw)
	}
	return out, nil
}

// GetAssessmentForStudent resolves an assessment and verifies the student's
// enrollment. Used by the WebSocket stream before upgrading.
func (s *AttemptService) GetAssessmentForStudent(ctx context.Context, studentID int, assessmentID uuid.UUID) (*model.Assessment, *model.Enrollment, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrAssessmentNotFound
		}
		return nil, nil, fmt.Errorf("get assessment: %w", err)
	}
	enrollment, err := s.enrollments.FindByStudentAndClass(ctx, studentID, assessment.ClassID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotEnrolled
		}
		return nil, nil, fmt.Errorf("find enrollment: %w", err)
	}
	return assessment, enrollment, nil
}

// ─── internals ─────────────────────────────────────────────────────────────

// liveAttempt loads the assessment, verifies enrollment, lazily creates the
// attempt and runs the expiry guard. Every access path goes through here
// before trusting an attempt's liveness.
func (s *AttemptService) liveAttempt(ctx context.Context, studentID int, assessmentID uuid.UUID) (*model.Assessment, *model.Enrollment, *model.Attempt, error) {
	assessment, enrollment, err := s.GetAssessmentForStudent(ctx, studentID, assessmentID)
	if err != nil {
		return nil, nil, nil, err
	}
	if assessment.Status != model.AssessmentStatusPublished {
		return nil, nil, nil, ErrAssessmentNotOpen
	}

	attempt, err := s.findOrCreate(ctx, assessment.ID, enrollment.ID)
	if err != nil {
		return nil, nil, nil, err
	}

	attempt, err = s.guardAccess(ctx, assessment, attempt)
	if err != nil {
		return nil, nil, nil, err
	}
	return assessment, enrollment, attempt, nil
}

// findOrCreate returns the attempt for (assessment, enrollment), creating
// it on first access. Safe under concurrent first access: the unique
// constraint decides the winner and the loser adopts the winner's row.
func (s *AttemptService) findOrCreate(ctx context.Context, assessmentID, enrollmentID uuid.UUID) (*model.Attempt, error) {
	existing, err := s.attempts.FindByPair(ctx, assessmentID, enrollmentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find attempt: %w", err)
	}

	attempt := &model.Attempt{
		AssessmentID: assessmentID,
		EnrollmentID: enrollmentID,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, ErrDuplicatePair) {
			existing, fetchErr := s.attempts.FindByPair(ctx, assessmentID, enrollmentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent create detected, but fetch failed: %w", fetchErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return attempt, nil
}

// guardAccess auto-submits a proctored attempt whose window closed while
// nobody was looking. The submission instant is the effective deadline, not
// wall-clock now, so late polling never credits extra time. Take-home
// attempts are never auto-submitted; their late writes fail with
// ErrDeadlinePassed instead.
func (s *AttemptService) guardAccess(ctx context.Context, assessment *model.Assessment, attempt *model.Attempt) (*model.Attempt, error) {
	mode := delivery.ForAssessment(assessment)
	now := s.clk.Now()

	if attempt.IsTerminal() || !mode.HasCountdown() || !timing.IsExpired(attempt, assessment, now) {
		return attempt, nil
	}

	deadline := timing.EffectiveDeadline(attempt, assessment)
	if deadline == nil {
		return attempt, nil
	}
	if err := s.forceSubmitAt(ctx, assessment, attempt, *deadline, model.ViolationTimeExpired); err != nil {
		return nil, err
	}

	fresh, err := s.attempts.GetByID(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("reload attempt: %w", err)
	}
	return fresh, nil
}

func (s *AttemptService) forceSubmitAt(ctx context.Context, assessment *model.Assessment, attempt *model.Attempt, at time.Time, violation string) error {
	autoScore, hasUngraded, err := s.scorer.Evaluate(ctx, assessment, attempt.ID)
	if err != nil {
		return fmt.Errorf("evaluate score: %w", err)
	}

	sub := SubmissionUpdate{
		SubmittedAt:       at,
		Forced:            true,
		SecurityViolation: &violation,
		AutoScore:         autoScore,
	}
	if !hasUngraded {
		sub.Score = &autoScore
	}

	won, err := s.attempts.Submit(ctx, attempt.ID, sub)
	if err != nil {
		return fmt.Errorf("force submit: %w", err)
	}
	if won {
		s.clearAutosaveCache(ctx, assessment, attempt)
		s.publishMonitor(ctx, MonitorEvent{
			Type:         "forced_submission",
			AssessmentID: assessment.ID,
			AttemptID:    attempt.ID,
			EnrollmentID: attempt.EnrollmentID,
			Kind:         violation,
			At:           at,
		})
		s.log.Info().
			Str("attempt_id", attempt.ID.String()).
			Str("violation", violation).
			Time("submitted_at", at).
			Msg("Attempt force-submitted")
	}
	// A losing race means another request already ended the attempt, which
	// is the outcome we wanted anyway.
	return nil
}

func (s *AttemptService) buildView(ctx context.Context, attempt *model.Attempt, assessment *model.Assessment) (*SessionView, error) {
	answers, err := s.answers.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	if answers == nil {
		answers = []model.Answer{}
	}

	now := s.clk.Now()
	return &SessionView{
		Attempt:           attempt,
		Status:            attempt.Status(),
		RemainingSeconds:  timing.RemainingSeconds(attempt, assessment, now),
		ElapsedPercentage: timing.ElapsedPercentage(attempt, assessment, now),
		NearExpiration:    timing.IsNearExpiration(attempt, assessment, now),
		Answers:           answers,
	}, nil
}

// cacheStart mirrors the authoritative start instant into Redis so the
// WebSocket clock sync avoids a database round trip per tick.
func (s *AttemptService) cacheStart(ctx context.Context, assessment *model.Assessment, attempt *model.Attempt) {
	if attempt.StartedAt == nil {
		return
	}
	startKey := config.CacheKey.AttemptStartKey(assessment.ID.String(), attempt.EnrollmentID.String())
	if err := s.rdb.Set(ctx, startKey, attempt.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache start time")
	}
	if assessment.DurationMinutes != nil {
		durKey := config.CacheKey.AssessmentDurationKey(assessment.ID.String())
		if err := s.rdb.Set(ctx, durKey, *assessment.DurationMinutes, 0).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache duration")
		}
	}
}

func (s *AttemptService) clearAutosaveCache(ctx context.Context, assessment *model.Assessment, attempt *model.Attempt) {
	key := config.CacheKey.AttemptAnswersKey(assessment.ID.String(), attempt.EnrollmentID.String())
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to clear autosave cache")
	}
}

func (s *AttemptService) publishMonitor(ctx context.Context, event MonitorEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	channel := config.CacheKey.AssessmentMonitorChannel(event.AssessmentID.String())
	if err := s.rdb.Publish(ctx, channel, data).Err(); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("Monitor publish failed")
	}
}

func (s *AttemptService) queueViolationEvent(ctx context.Context, assessment *model.Assessment, attempt *model.Attempt, kind proctor.Kind, detail string, at time.Time) {
	payload := violationEventPayload{
		AttemptID:    attempt.ID.String(),
		AssessmentID: assessment.ID.String(),
		Kind:         string(kind),
		Detail:       detail,
		Timestamp:    at.Unix(),
	}
	data, _ := json.Marshal(payload)
	if err := s.rdb.RPush(ctx, config.WorkerKey.ViolationEventsQueue, data).Err(); err != nil {
		s.log.Error().Err(err).Msg("Failed to queue violation event")
	}
}
