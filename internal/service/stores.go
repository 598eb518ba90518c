package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/asesmen-backend/internal/model"
)

// SubmissionUpdate carries the terminal transition fields for an attempt.
// SubmittedAt is the deadline instant for expiry auto-submits, wall-clock
// time otherwise. GradedAt is set only for voluntary submits with no
// manually graded answers left; forced submissions stay ungraded so a
// reopen remains possible.
type SubmissionUpdate struct {
	SubmittedAt       time.Time
	GradedAt          *time.Time
	Forced            bool
	SecurityViolation *string
	Score             *float64
	AutoScore         float64
}

// AttemptSummary is one row of a teacher-facing progress listing.
type AttemptSummary struct {
	AttemptID         uuid.UUID           `json:"attempt_id"`
	StudentID         int                 `json:"student_id"`
	StudentName       string              `json:"student_name"`
	Status            model.AttemptStatus `json:"status"`
	StartedAt         *time.Time          `json:"started_at,omitempty"`
	SubmittedAt       *time.Time          `json:"submitted_at,omitempty"`
	ForcedSubmission  bool                `json:"forced_submission"`
	SecurityViolation *string             `json:"security_violation,omitempty"`
	Score             *float64            `json:"score,omitempty"`
}

// AttemptStore is the persistence contract for attempts. All transitions
// are conditional single-statement updates: the boolean results report
// whether this caller won the transition, which is how the engine keeps
// start and submit exactly-once under concurrent requests.
type AttemptStore interface {
	FindByPair(ctx context.Context, assessmentID, enrollmentID uuid.UUID) (*model.Attempt, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	// Create inserts a NotStarted attempt. When a concurrent caller already
	// created the row it returns ErrDuplicatePair; the caller re-fetches.
	Create(ctx context.Context, attempt *model.Attempt) error
	// MarkStarted sets started_at only if currently null and returns the
	// authoritative value, so duplicate tab opens never move the clock.
	MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) (time.Time, error)
	// Submit applies the terminal transition only if submitted_at is null.
	// Returns false when another caller already submitted.
	Submit(ctx context.Context, id uuid.UUID, sub SubmissionUpdate) (bool, error)
	// RecordViolation stores an advisory violation kind on a live attempt.
	RecordViolation(ctx context.Context, id uuid.UUID, kind string, at time.Time) (bool, error)
	// Reopen clears submitted_at, forced_submission and security_violation
	// on a forcibly submitted attempt. Returns false if the attempt is not
	// in that state anymore.
	Reopen(ctx context.Context, id uuid.UUID) (bool, error)
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]AttemptSummary, int64, error)
}

// AnswerStore persists answer rows with replace-on-resave semantics.
type AnswerStore interface {
	// ReplaceForQuestion atomically swaps all rows for (attempt, question)
	// with the given ones. Readers never observe a partial replace.
	ReplaceForQuestion(ctx context.Context, attemptID, questionID uuid.UUID, rows []model.Answer) error
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)
}

// AssessmentStore reads assessments owned by the platform's admin surfaces.
type AssessmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
}

// EnrollmentStore resolves a student's enrollment in a class.
type EnrollmentStore interface {
	FindByStudentAndClass(ctx context.Context, studentID, classID int) (*model.Enrollment, error)
}

// QuestionStore reads the question set of an assessment.
type QuestionStore interface {
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error)
}

// UserStore resolves accounts for login and audit attribution.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// AuditEvent is one auditable action. Reopens and forced submissions must
// never be silent, so they always pass through an AuditSink.
type AuditEvent struct {
	Event     string         `json:"event"`
	ActorID   int            `json:"actor_id"`
	AttemptID uuid.UUID      `json:"attempt_id"`
	Details   map[string]any `json:"details,omitempty"`
	At        time.Time      `json:"at"`
}

// AuditSink records auditable events (who, when, why, which attempt).
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// Scorer is the external scoring hook: it supplies the machine-computed
// score and whether manually graded answers remain, before submit runs.
type Scorer interface {
	Evaluate(ctx context.Context, assessment *model.Assessment, attemptID uuid.UUID) (autoScore float64, hasUngraded bool, err error)
}
