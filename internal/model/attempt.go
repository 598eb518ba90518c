package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is derived from an attempt's timestamps, never stored.
type AttemptStatus string

const (
	AttemptStatusNotStarted AttemptStatus = "not_started"
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusGraded     AttemptStatus = "graded"
)

// ViolationTimeExpired is recorded on attempts that were force-submitted
// because their time window ran out, so monitoring dashboards can tell a
// timeout apart from a proctoring violation.
const ViolationTimeExpired = "time_expired"

// Attempt is one student's session record against one assessment. There is
// at most one per (assessment, enrollment) pair, enforced by a unique
// constraint; it is never deleted, only transitioned.
type Attempt struct {
	ID           uuid.UUID `json:"id"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	EnrollmentID uuid.UUID `json:"enrollment_id"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`

	ForcedSubmission  bool    `json:"forced_submission"`
	SecurityViolation *string `json:"security_violation,omitempty"`

	// Score stays null while any free-text question awaits manual grading;
	// AutoScore always holds the machine-computed component.
	Score     *float64 `json:"score,omitempty"`
	AutoScore *float64 `json:"auto_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status derives the lifecycle state from the timestamp progression
// startedAt → submittedAt → gradedAt.
func (a *Attempt) Status() AttemptStatus {
	switch {
	case a.GradedAt != nil:
		return AttemptStatusGraded
	case a.SubmittedAt != nil:
		return AttemptStatusSubmitted
	case a.StartedAt != nil:
		return AttemptStatusInProgress
	default:
		return AttemptStatusNotStarted
	}
}

// IsTerminal reports whether the attempt can no longer accept writes.
func (a *Attempt) IsTerminal() bool {
	return a.SubmittedAt != nil
}
