package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/asesmen-backend/internal/model"
)

// AssessmentRepository reads assessments. Authoring and publication belong
// to the platform's admin surfaces; this service only consumes them.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// GetByID retrieves an assessment by primary key.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, class_id, title, delivery_mode, duration_minutes, scheduled_at, due_at,
		        allow_late_submission, allow_file_uploads, monitoring_enabled, status,
		        created_at, updated_at
		 FROM assessments
		 WHERE id = $1`, id,
	).Scan(
		&a.ID, &a.ClassID, &a.Title, &a.DeliveryMode, &a.DurationMinutes, &a.ScheduledAt, &a.DueAt,
		&a.AllowLateSubmission, &a.AllowFileUploads, &a.MonitoringEnabled, &a.Status,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
