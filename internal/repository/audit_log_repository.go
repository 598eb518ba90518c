package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/asesmen-backend/internal/service"
)

// AuditLogRepository persists auditable events (reopens, terminations) and
// mirrors them to the structured log so support staff can correlate the two.
type AuditLogRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewAuditLogRepository creates a new AuditLogRepository.
func NewAuditLogRepository(pool *pgxpool.Pool, log zerolog.Logger) *AuditLogRepository {
	return &AuditLogRepository{
		pool: pool,
		log:  log.With().Str("component", "audit").Logger(),
	}
}

// Record writes one audit row. The insert is the source of truth; the log
// line is a convenience copy.
func (r *AuditLogRepository) Record(ctx context.Context, event service.AuditEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_logs (event, actor_id, attempt_id, details, recorded_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)`,
		event.Event, event.ActorID, event.AttemptID, details, event.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	r.log.Info().
		Str("event", event.Event).
		Int("actor_id", event.ActorID).
		Str("attempt_id", event.AttemptID.String()).
		Fields(event.Details).
		Msg("Audit event recorded")
	return nil
}
