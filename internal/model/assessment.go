package model

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryMode determines how an assessment is taken and which rules
// the session engine applies to its attempts.
type DeliveryMode string

const (
	DeliveryModeProctored DeliveryMode = "PROCTORED"
	DeliveryModeTakeHome  DeliveryMode = "TAKE_HOME"
)

// AssessmentStatus enumerates the publication states of an assessment.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "DRAFT"
	AssessmentStatusPublished AssessmentStatus = "PUBLISHED"
	AssessmentStatusClosed    AssessmentStatus = "CLOSED"
	AssessmentStatusArchived  AssessmentStatus = "ARCHIVED"
)

// Assessment is read-only to this service; authoring and publication are
// owned by the platform's administrative surfaces.
//
// Exactly one of DurationMinutes / DueAt is semantically active, selected
// by DeliveryMode: proctored assessments run on a countdown from the
// attempt's start, take-home assessments run against a fixed deadline.
type Assessment struct {
	ID                  uuid.UUID        `json:"id"`
	ClassID             int              `json:"class_id"`
	Title               string           `json:"title"`
	DeliveryMode        DeliveryMode     `json:"delivery_mode"`
	DurationMinutes     *int             `json:"duration_minutes,omitempty"`
	ScheduledAt         *time.Time       `json:"scheduled_at,omitempty"`
	DueAt               *time.Time       `json:"due_at,omitempty"`
	AllowLateSubmission bool             `json:"allow_late_submission"`
	AllowFileUploads    bool             `json:"allow_file_uploads"`
	MonitoringEnabled   bool             `json:"monitoring_enabled"`
	Status              AssessmentStatus `json:"status"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// Duration returns the proctored time budget, or zero if none is set.
func (a *Assessment) Duration() time.Duration {
	if a.DurationMinutes == nil {
		return 0
	}
	return time.Duration(*a.DurationMinutes) * time.Minute
}
