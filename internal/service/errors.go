package service

import "errors"

// Domain errors returned by the session engine and answer intake. Handlers
// translate these to API error codes; none of them indicates corruption —
// every failed operation leaves the attempt unchanged.
var (
	// ErrAttemptLocked means a write was attempted on a submitted attempt.
	ErrAttemptLocked = errors.New("attempt is locked")
	// ErrAlreadySubmitted is what the loser of a concurrent submit race
	// observes. The student's answers were recorded by the winner, so
	// callers treat this as a successful outcome.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrDeadlinePassed rejects saves/submits after a take-home deadline
	// with no late tolerance.
	ErrDeadlinePassed = errors.New("deadline has passed")
	// ErrUnsupportedOperation rejects violation reports for delivery modes
	// without proctoring.
	ErrUnsupportedOperation = errors.New("operation not supported for this delivery mode")
	// ErrInvalidViolationKind rejects violation kinds outside the policy table.
	ErrInvalidViolationKind = errors.New("unknown violation kind")
	// ErrInvalidAnswer rejects an answer value whose shape does not match
	// its declared kind, or one aimed at a question outside the assessment.
	ErrInvalidAnswer = errors.New("invalid answer")

	// Reopen rejections. Each maps to a distinct user-facing reason since
	// reopening is a support and audit workflow.
	ErrNotSupervised    = errors.New("attempt is not supervised")
	ErrNotInterrupted   = errors.New("attempt was not interrupted")
	ErrTimeFullyElapsed = errors.New("attempt time has fully elapsed")

	// ErrDuplicatePair is returned by AttemptStore.Create when a concurrent
	// caller already created the attempt for the same (assessment,
	// enrollment) pair. The caller re-fetches the winner's row.
	ErrDuplicatePair = errors.New("attempt already exists for this pair")

	// Lookup failures.
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrAssessmentNotOpen  = errors.New("assessment is not open")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrNotEnrolled        = errors.New("student is not enrolled in this class")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
