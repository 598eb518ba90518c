package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/asesmen-backend/internal/model"
)

// EnrollmentRepository resolves student enrollments.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// FindByStudentAndClass retrieves a student's enrollment in a class.
func (r *EnrollmentRepository) FindByStudentAndClass(ctx context.Context, studentID, classID int) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, class_id, created_at
		 FROM enrollments
		 WHERE student_id = $1 AND class_id = $2`, studentID, classID,
	).Scan(&e.ID, &e.StudentID, &e.ClassID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}
