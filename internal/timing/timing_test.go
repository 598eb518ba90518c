package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stemsi/asesmen-backend/internal/model"
)

func proctoredAssessment(durationMinutes int) *model.Assessment {
	return &model.Assessment{
		DeliveryMode:    model.DeliveryModeProctored,
		DurationMinutes: &durationMinutes,
	}
}

func takeHomeAssessment(dueAt time.Time, allowLate bool) *model.Assessment {
	return &model.Assessment{
		DeliveryMode:        model.DeliveryModeTakeHome,
		DueAt:               &dueAt,
		AllowLateSubmission: allowLate,
	}
}

func startedAttempt(at time.Time) *model.Attempt {
	return &model.Attempt{StartedAt: &at}
}

func TestEffectiveDeadlineProctored(t *testing.T) {
	start := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	assessment := proctoredAssessment(60)

	deadline := EffectiveDeadline(startedAttempt(start), assessment)
	require.NotNil(t, deadline)
	require.Equal(t, start.Add(60*time.Minute), *deadline)

	// Unstarted attempts have no deadline yet.
	require.Nil(t, EffectiveDeadline(&model.Attempt{}, assessment))

	// A proctored assessment without a duration cannot expire.
	noDuration := &model.Assessment{DeliveryMode: model.DeliveryModeProctored}
	require.Nil(t, EffectiveDeadline(startedAttempt(start), noDuration))
}

func TestEffectiveDeadlineTakeHome(t *testing.T) {
	due := time.Date(2026, 3, 16, 23, 59, 0, 0, time.UTC)
	assessment := takeHomeAssessment(due, false)

	// Due date applies no matter when the attempt started.
	deadline := EffectiveDeadline(startedAttempt(due.Add(-10*24*time.Hour)), assessment)
	require.NotNil(t, deadline)
	require.Equal(t, due, *deadline)

	deadline = EffectiveDeadline(&model.Attempt{}, assessment)
	require.NotNil(t, deadline)
	require.Equal(t, due, *deadline)
}

func TestRemainingSeconds(t *testing.T) {
	start := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	assessment := proctoredAssessment(60)
	attempt := startedAttempt(start)

	remaining := RemainingSeconds(attempt, assessment, start.Add(10*time.Minute))
	require.NotNil(t, remaining)
	require.EqualValues(t, 50*60, *remaining)

	// Clamped at zero once past the deadline.
	remaining = RemainingSeconds(attempt, assessment, start.Add(2*time.Hour))
	require.NotNil(t, remaining)
	require.EqualValues(t, 0, *remaining)

	// Take-home is deadline-based, never countdown-based.
	due := start.Add(7 * 24 * time.Hour)
	require.Nil(t, RemainingSeconds(attempt, takeHomeAssessment(due, false), start))

	// Unstarted proctored attempts have no countdown yet.
	require.Nil(t, RemainingSeconds(&model.Attempt{}, assessment, start))
}

func TestIsExpiredProctored(t *testing.T) {
	start := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	assessment := proctoredAssessment(60)
	attempt := startedAttempt(start)

	require.False(t, IsExpired(attempt, assessment, start.Add(59*time.Minute)))
	// The deadline instant itself is already expired.
	require.True(t, IsExpired(attempt, assessment, start.Add(60*time.Minute)))
	require.True(t, IsExpired(attempt, assessment, start.Add(61*time.Minute)))

	// Never expires before starting.
	require.False(t, IsExpired(&model.Attempt{}, assessment, start.Add(24*time.Hour)))
}

func TestIsExpiredTakeHome(t *testing.T) {
	due := time.Date(2026, 3, 16, 23, 59, 0, 0, time.UTC)
	attempt := &model.Attempt{}

	require.False(t, IsExpired(attempt, takeHomeAssessment(due, false), due))
	require.True(t, IsExpired(attempt, takeHomeAssessment(due, false), due.Add(time.Second)))

	// Late tolerance suppresses expiry entirely.
	require.False(t, IsExpired(attempt, takeHomeAssessment(due, true), due.Add(24*time.Hour)))

	// No due date means no deadline.
	noDue := &model.Assessment{DeliveryMode: model.DeliveryModeTakeHome}
	require.False(t, IsExpired(attempt, noDue, due))
}

func TestElapsedPercentage(t *testing.T) {
	start := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	assessment := proctoredAssessment(100)
	attempt := startedAttempt(start)

	require.InDelta(t, 0, ElapsedPercentage(attempt, assessment, start), 0.001)
	require.InDelta(t, 25, ElapsedPercentage(attempt, assessment, start.Add(25*time.Minute)), 0.001)
	require.InDelta(t, 100, ElapsedPercentage(attempt, assessment, start.Add(3*time.Hour)), 0.001)

	require.Zero(t, ElapsedPercentage(&model.Attempt{}, assessment, start))
}

func TestIsNearExpiration(t *testing.T) {
	start := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	assessment := proctoredAssessment(60)
	attempt := startedAttempt(start)

	require.False(t, IsNearExpiration(attempt, assessment, start.Add(30*time.Minute)))
	// 5% of 60 minutes is 3 minutes.
	require.True(t, IsNearExpiration(attempt, assessment, start.Add(58*time.Minute)))
	require.True(t, IsNearExpiration(attempt, assessment, start.Add(2*time.Hour)))

	due := start.Add(time.Hour)
	require.False(t, IsNearExpiration(attempt, takeHomeAssessment(due, false), start.Add(59*time.Minute)))
}
