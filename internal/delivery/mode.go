// Package delivery models the two assessment delivery modes as strategies.
// All mode-conditional logic in the session engine dispatches through Mode
// instead of branching on the raw type tag, so a third delivery mode only
// needs a new implementation here.
package delivery

import "github.com/stemsi/asesmen-backend/internal/model"

// Mode answers the mode-specific questions the session engine asks.
type Mode interface {
	// HasCountdown reports whether attempts run on a per-student countdown.
	HasCountdown() bool
	// RequiresDeadlineCheck reports whether saves and submits must be
	// checked against a fixed due date.
	RequiresDeadlineCheck() bool
	// MonitorsSecurity reports whether violation reports are meaningful.
	MonitorsSecurity() bool
	// ToleratesLateSubmission reports whether a submit after the deadline
	// is still accepted for this assessment.
	ToleratesLateSubmission(assessment *model.Assessment) bool
}

type proctored struct{}

func (proctored) HasCountdown() bool          { return true }
func (proctored) RequiresDeadlineCheck() bool { return false }
func (proctored) MonitorsSecurity() bool      { return true }

// Proctored time simply runs out; there is no late window to tolerate.
func (proctored) ToleratesLateSubmission(*model.Assessment) bool { return false }

type takeHome struct{}

func (takeHome) HasCountdown() bool          { return false }
func (takeHome) RequiresDeadlineCheck() bool { return true }
func (takeHome) MonitorsSecurity() bool      { return false }

func (takeHome) ToleratesLateSubmission(assessment *model.Assessment) bool {
	return assessment.AllowLateSubmission
}

// ForAssessment selects the strategy for an assessment. Unknown modes fall
// back to take-home, the more permissive variant.
func ForAssessment(assessment *model.Assessment) Mode {
	if assessment.DeliveryMode == model.DeliveryModeProctored {
		return proctored{}
	}
	return takeHome{}
}
