package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/asesmen-backend/internal/config"
	"github.com/stemsi/asesmen-backend/internal/middleware"
	"github.com/stemsi/asesmen-backend/internal/model"
	"github.com/stemsi/asesmen-backend/internal/proctor"
	"github.com/stemsi/asesmen-backend/internal/service"
	ws "github.com/stemsi/asesmen-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the live assessment stream: autosave, violation
// reports and server-authoritative clock sync over one connection.
type WSHandler struct {
	rdb            *redis.Client
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AssessmentStream godoc
// WS /ws/v1/student/assessments/:assessment_id/stream
// Upgrades to WebSocket for real-time autosave and clock synchronization.
func (h *WSHandler) AssessmentStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assessment ID"})
		return
	}

	studentID := claims.UserID

	// Resolve enrollment before upgrading so access failures stay HTTP.
	assessment, enrollment, err := h.attemptService.GetAssessmentForStudent(c.Request.Context(), studentID, assessmentID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no access to this assessment"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	answersKey := config.CacheKey.AttemptAnswersKey(assessmentID.String(), enrollment.ID.String())

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("assessment_id", assessmentID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	// Replay drafts staged by a previous connection so a reconnect does not
	// lose answers the worker has not persisted yet.
	staged, err := h.attemptService.StagedAnswers(c.Request.Context(), assessment, enrollment.ID)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Staged answer replay failed")
	} else if len(staged) > 0 {
		ws.WriteTyped(conn, ws.RestoreResponse{Event: ws.EventRestore, Answers: staged})
	}

	for {
		var msg ws.RequestPayload
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, answersKey, studentID, assessmentID, &msg)
		case ws.ActionViolation:
			if terminated := h.handleViolation(conn, wsLog, studentID, assessmentID, &msg); terminated {
				return
			}
		case ws.ActionClock:
			h.handleClock(conn, assessment, enrollment.ID)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

// handleAutosave stages a single answer in Redis and queues it for durable
// persistence by the answer worker.
func (h *WSHandler) handleAutosave(conn *websocket.Conn, answersKey string, studentID int, assessmentID uuid.UUID, msg *ws.RequestPayload) {
	ctx := context.Background()

	if msg.QID == "" || len(msg.Value) == 0 {
		ws.WriteError(conn, "q_id and value are required")
		return
	}

	// SECURITY: Validate QID is a well-formed UUID to prevent Redis key injection.
	if _, err := uuid.Parse(msg.QID); err != nil {
		ws.WriteError(conn, "invalid q_id format")
		return
	}

	var value model.AnswerValue
	if err := json.Unmarshal(msg.Value, &value); err != nil {
		ws.WriteError(conn, "malformed answer value")
		return
	}
	if err := value.Validate(); err != nil {
		ws.WriteError(conn, err.Error())
		return
	}

	if err := h.rdb.HSet(ctx, answersKey, msg.QID, string(msg.Value)).Err(); err != nil {
		h.log.Error().Err(err).Int("student_id", studentID).Msg("Autosave Redis error")
		ws.WriteError(conn, "save failed")
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"student_id":    studentID,
		"assessment_id": assessmentID.String(),
		"q_id":          msg.QID,
		"value":         msg.Value,
	})
	h.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QID: msg.QID})
}

// handleViolation forwards a proctoring event. Returns true when the
// violation terminated the attempt, which also ends the stream.
func (h *WSHandler) handleViolation(conn *websocket.Conn, wsLog zerolog.Logger, studentID int, assessmentID uuid.UUID, msg *ws.RequestPayload) bool {
	ctx := context.Background()

	terminated, err := h.attemptService.ReportViolation(ctx, studentID, assessmentID, proctor.Kind(msg.Kind), msg.Detail)
	if err != nil {
		if errors.Is(err, service.ErrAttemptLocked) || errors.Is(err, service.ErrAlreadySubmitted) {
			ws.WriteTyped(conn, ws.ViolationResponse{Event: ws.EventTerminated, Kind: msg.Kind})
			return true
		}
		ws.WriteError(conn, "violation rejected")
		return false
	}

	if terminated {
		wsLog.Warn().Str("kind", msg.Kind).Msg("Attempt terminated over stream")
		ws.WriteTyped(conn, ws.ViolationResponse{Event: ws.EventTerminated, Kind: msg.Kind})
		return true
	}

	ws.WriteTyped(conn, ws.ViolationResponse{Event: ws.EventViolation, Kind: msg.Kind})
	return false
}

// handleClock answers with the server-authoritative remaining seconds so
// the client countdown cannot drift.
func (h *WSHandler) handleClock(conn *websocket.Conn, assessment *model.Assessment, enrollmentID uuid.UUID) {
	remaining, err := h.attemptService.CachedRemainingSeconds(context.Background(), assessment, enrollmentID)
	if err != nil {
		ws.WriteError(conn, "clock unavailable")
		return
	}
	ws.WriteTyped(conn, ws.ClockResponse{Event: ws.EventClock, RemainingSeconds: remaining})
}
