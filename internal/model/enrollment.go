package model

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment links a student to a class for an academic term. Attempts are
// keyed by enrollment rather than by student so a repeating student gets a
// fresh attempt space each term.
type Enrollment struct {
	ID        uuid.UUID `json:"id"`
	StudentID int       `json:"student_id"`
	ClassID   int       `json:"class_id"`
	CreatedAt time.Time `json:"created_at"`
}
