package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/asesmen-backend/internal/model"
	"github.com/stemsi/asesmen-backend/internal/service"
)

// AttemptRepository handles attempt data access. Every lifecycle transition
// is a single conditional UPDATE so the set-once guarantees (started_at,
// submitted_at) hold under concurrent requests without advisory locks.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, assessment_id, enrollment_id, started_at, submitted_at, graded_at,
	forced_submission, security_violation, score, auto_score, created_at, updated_at`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(
		&a.ID, &a.AssessmentID, &a.EnrollmentID, &a.StartedAt, &a.SubmittedAt, &a.GradedAt,
		&a.ForcedSubmission, &a.SecurityViolation, &a.Score, &a.AutoScore, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FindByPair retrieves the attempt for an (assessment, enrollment) pair.
func (r *AttemptRepository) FindByPair(ctx context.Context, assessmentID, enrollmentID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE assessment_id = $1 AND enrollment_id = $2`, assessmentID, enrollmentID,
	))
}

// GetByID retrieves an attempt by primary key.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE id = $1`, id,
	))
}

// Create inserts a NotStarted attempt. The unique constraint on
// (assessment_id, enrollment_id) arbitrates concurrent first access: the
// loser gets service.ErrDuplicatePair and adopts the winner's row.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (assessment_id, enrollment_id)
		 VALUES ($1, $2)
		 ON CONFLICT (assessment_id, enrollment_id) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		a.AssessmentID, a.EnrollmentID,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.ErrDuplicatePair
	}
	return err
}

// MarkStarted sets started_at only if it is currently null and returns the
// authoritative value, so N concurrent starts all observe the first one.
func (r *AttemptRepository) MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) (time.Time, error) {
	var startedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET started_at = COALESCE(started_at, $2), updated_at = NOW()
		 WHERE id = $1
		 RETURNING started_at`,
		id, at,
	).Scan(&startedAt)
	return startedAt, err
}

// Submit applies the terminal transition only when submitted_at is still
// null. Returns false when another caller won the race.
func (r *AttemptRepository) Submit(ctx context.Context, id uuid.UUID, sub service.SubmissionUpdate) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET submitted_at = $2,
		     graded_at = $3,
		     forced_submission = $4,
		     security_violation = $5,
		     score = $6,
		     auto_score = $7,
		     updated_at = NOW()
		 WHERE id = $1 AND submitted_at IS NULL`,
		id, sub.SubmittedAt, sub.GradedAt, sub.Forced, sub.SecurityViolation, sub.Score, sub.AutoScore,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecordViolation stores the latest advisory violation kind on a live
// attempt without ending it.
func (r *AttemptRepository) RecordViolation(ctx context.Context, id uuid.UUID, kind string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET security_violation = $2, updated_at = $3
		 WHERE id = $1 AND submitted_at IS NULL`,
		id, kind, at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Reopen clears the submission fields of a forcibly submitted attempt. The
// WHERE clause re-checks the preconditions so a concurrent grade or a
// second reopen cannot double-apply.
func (r *AttemptRepository) Reopen(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET submitted_at = NULL,
		     forced_submission = FALSE,
		     security_violation = NULL,
		     score = NULL,
		     auto_score = NULL,
		     updated_at = NOW()
		 WHERE id = $1 AND submitted_at IS NOT NULL AND graded_at IS NULL AND forced_submission`,
		id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByAssessment retrieves the paginated teacher-facing progress listing
// for one assessment.
func (r *AttemptRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]service.AttemptSummary, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id = $1`, assessmentID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, u.id, u.name, a.started_at, a.submitted_at, a.graded_at,
		        a.forced_submission, a.security_violation, a.score
		 FROM attempts a
		 JOIN enrollments e ON a.enrollment_id = e.id
		 JOIN users u ON e.student_id = u.id
		 WHERE a.assessment_id = $1
		 ORDER BY u.name ASC
		 LIMIT $2 OFFSET $3`,
		assessmentID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var summaries []service.AttemptSummary
	for rows.Next() {
		var s service.AttemptSummary
		var gradedAt *time.Time
		if err := rows.Scan(
			&s.AttemptID, &s.StudentID, &s.StudentName, &s.StartedAt, &s.SubmittedAt, &gradedAt,
			&s.ForcedSubmission, &s.SecurityViolation, &s.Score,
		); err != nil {
			return nil, 0, err
		}
		s.Status = (&model.Attempt{
			StartedAt:   s.StartedAt,
			SubmittedAt: s.SubmittedAt,
			GradedAt:    gradedAt,
		}).Status()
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}
