// Package timing computes deadlines and remaining time for attempts. All
// functions are pure and total: missing data maps to nil/false/zero, never
// to an error or panic, so results are reproducible in tests.
package timing

import (
	"time"

	"github.com/stemsi/asesmen-backend/internal/model"
)

// nearExpirationFraction is the low-water mark for UI warnings: once the
// remaining time drops to 5% of the total duration the frontend shows the
// red timer. Warning only, never enforcement.
const nearExpirationFraction = 0.05

// EffectiveDeadline returns the instant after which the attempt may no
// longer accept writes.
//
// Proctored: startedAt + duration (nil until the attempt starts or when the
// assessment has no duration). Take-home: the assessment's due date
// regardless of when the attempt started.
func EffectiveDeadline(attempt *model.Attempt, assessment *model.Assessment) *time.Time {
	switch assessment.DeliveryMode {
	case model.DeliveryModeProctored:
		if attempt.StartedAt == nil || assessment.DurationMinutes == nil {
			return nil
		}
		deadline := attempt.StartedAt.Add(assessment.Duration())
		return &deadline
	case model.DeliveryModeTakeHome:
		return assessment.DueAt
	}
	return nil
}

// RemainingSeconds returns the countdown value for proctored attempts,
// clamped at zero. Take-home attempts are deadline-based, not
// countdown-based, and always report nil. Unstarted attempts report nil.
func RemainingSeconds(attempt *model.Attempt, assessment *model.Assessment, now time.Time) *int64 {
	if assessment.DeliveryMode != model.DeliveryModeProctored {
		return nil
	}
	deadline := EffectiveDeadline(attempt, assessment)
	if deadline == nil {
		return nil
	}
	remaining := int64(deadline.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// IsExpired reports whether the attempt's legitimate window has closed.
//
// Proctored attempts expire once started and past their deadline. Take-home
// attempts expire past the due date unless late submission is allowed.
func IsExpired(attempt *model.Attempt, assessment *model.Assessment, now time.Time) bool {
	switch assessment.DeliveryMode {
	case model.DeliveryModeProctored:
		deadline := EffectiveDeadline(attempt, assessment)
		if deadline == nil {
			return false
		}
		return !now.Before(*deadline)
	case model.DeliveryModeTakeHome:
		if assessment.DueAt == nil || assessment.AllowLateSubmission {
			return false
		}
		return now.After(*assessment.DueAt)
	}
	return false
}

// ElapsedPercentage returns how much of the proctored duration has been
// used, capped at 100. Zero when the attempt has not started or the
// assessment has no duration.
func ElapsedPercentage(attempt *model.Attempt, assessment *model.Assessment, now time.Time) float64 {
	if attempt.StartedAt == nil || assessment.DurationMinutes == nil || *assessment.DurationMinutes <= 0 {
		return 0
	}
	elapsed := now.Sub(*attempt.StartedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	pct := elapsed / assessment.Duration().Seconds() * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// IsNearExpiration reports whether the remaining proctored time has dropped
// to the warning threshold.
func IsNearExpiration(attempt *model.Attempt, assessment *model.Assessment, now time.Time) bool {
	remaining := RemainingSeconds(attempt, assessment, now)
	if remaining == nil || assessment.DurationMinutes == nil {
		return false
	}
	threshold := assessment.Duration().Seconds() * nearExpirationFraction
	return float64(*remaining) <= threshold
}
