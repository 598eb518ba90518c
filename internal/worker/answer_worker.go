package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/asesmen-backend/internal/config"
	"github.com/stemsi/asesmen-backend/internal/model"
	"github.com/stemsi/asesmen-backend/internal/service"
)

// AnswerWorker consumes persist_answers_queue and writes autosaved answers
// through the session engine, so every durable write passes the same
// deadline and lock checks as a direct save.
type AnswerWorker struct {
	attempts *service.AttemptService
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(attempts *service.AttemptService, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		attempts: attempts,
		rdb:      rdb,
		log:      log.With().Str("component", "answer_worker").Logger(),
	}
}

type answerPayload struct {
	StudentID    int             `json:"student_id"`
	AssessmentID string          `json:"assessment_id"`
	QID          string          `json:"q_id"`
	Value        json.RawMessage `json:"value"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload answerPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Discarding malformed payload")
		return
	}

	if err := w.persistAnswer(ctx, &payload); err != nil {
		if rejectedByEngine(err) {
			// The attempt ended between autosave and persistence. The
			// stale answer must not land; drop it.
			w.log.Warn().
				Int("student_id", payload.StudentID).
				Str("assessment_id", payload.AssessmentID).
				Str("q_id", payload.QID).
				Msg("Dropping autosave for closed attempt")
			return
		}
		w.log.Error().Err(err).
			Int("student_id", payload.StudentID).
			Str("assessment_id", payload.AssessmentID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AnswerWorker) persistAnswer(ctx context.Context, p *answerPayload) error {
	assessmentID, err := uuid.Parse(p.AssessmentID)
	if err != nil {
		return err
	}

	questionID, err := uuid.Parse(p.QID)
	if err != nil {
		return err
	}

	var value model.AnswerValue
	if err := json.Unmarshal(p.Value, &value); err != nil {
		return err
	}

	_, err = w.attempts.SaveAnswers(ctx, p.StudentID, assessmentID,
		map[uuid.UUID]model.AnswerValue{questionID: value})
	return err
}

// rejectedByEngine reports errors that mean the answer may never land.
// Retrying those would spin forever.
func rejectedByEngine(err error) bool {
	return errors.Is(err, service.ErrAttemptLocked) ||
		errors.Is(err, service.ErrDeadlinePassed) ||
		errors.Is(err, service.ErrAlreadySubmitted) ||
		errors.Is(err, service.ErrInvalidAnswer)
}

// drain processes all remaining items in the queue before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var payload answerPayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistAnswer(ctx, &payload); err != nil {
			if rejectedByEngine(err) {
				continue
			}
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
