package delivery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stemsi/asesmen-backend/internal/model"
)

func TestProctoredMode(t *testing.T) {
	mode := ForAssessment(&model.Assessment{DeliveryMode: model.DeliveryModeProctored})

	require.True(t, mode.HasCountdown())
	require.False(t, mode.RequiresDeadlineCheck())
	require.True(t, mode.MonitorsSecurity())
	// Proctored time runs out; the late-submission flag is ignored.
	require.False(t, mode.ToleratesLateSubmission(&model.Assessment{AllowLateSubmission: true}))
}

func TestTakeHomeMode(t *testing.T) {
	mode := ForAssessment(&model.Assessment{DeliveryMode: model.DeliveryModeTakeHome})

	require.False(t, mode.HasCountdown())
	require.True(t, mode.RequiresDeadlineCheck())
	require.False(t, mode.MonitorsSecurity())
	require.False(t, mode.ToleratesLateSubmission(&model.Assessment{}))
	require.True(t, mode.ToleratesLateSubmission(&model.Assessment{AllowLateSubmission: true}))
}

func TestUnknownModeFallsBackToTakeHome(t *testing.T) {
	mode := ForAssessment(&model.Assessment{DeliveryMode: model.DeliveryMode("ORAL_EXAM")})
	require.False(t, mode.HasCountdown())
	require.False(t, mode.MonitorsSecurity())
}
