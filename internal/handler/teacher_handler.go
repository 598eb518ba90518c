package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/asesmen-backend/internal/config"
	"github.com/stemsi/asesmen-backend/internal/middleware"
	"github.com/stemsi/asesmen-backend/internal/response"
	"github.com/stemsi/asesmen-backend/internal/service"
	"github.com/stemsi/asesmen-backend/internal/validator"
)

const keepAliveInterval = 30 * time.Second

// TeacherHandler handles teacher-facing oversight endpoints: attempt
// listings, the live monitor feed, and reopening interrupted attempts.
type TeacherHandler struct {
	rdb            *redis.Client
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewTeacherHandler creates a new TeacherHandler.
func NewTeacherHandler(rdb *redis.Client, attemptService *service.AttemptService, log zerolog.Logger) *TeacherHandler {
	return &TeacherHandler{
		rdb:            rdb,
		attemptService: attemptService,
		log:            log.With().Str("component", "teacher_handler").Logger(),
	}
}

// ReopenRequest explains why an attempt is being reopened. The reason
// lands in the audit log verbatim.
type ReopenRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=512"`
}

// ListAttempts godoc
// GET /api/v1/teacher/assessments/:assessment_id/attempts
// Paginated progress listing for one assessment.
func (h *TeacherHandler) ListAttempts(c *gin.Context) {
	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	attempts, total, err := h.attemptService.ListAttempts(c.Request.Context(), assessmentID, page, perPage)
	if err != nil {
		failSessionError(c, err)
		return
	}
	if attempts == nil {
		attempts = []service.AttemptSummary{}
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// ReopenAttempt godoc
// POST /api/v1/teacher/attempts/:attempt_id/reopen
// Restores a forcibly submitted proctored attempt to in-progress. Only
// attempts that ended through intervention and still have time left qualify.
func (h *TeacherHandler) ReopenAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req ReopenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	remaining, err := h.attemptService.Reopen(c.Request.Context(), claims.UserID, attemptID, req.Reason)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt_id":        attemptID,
		"remaining_seconds": remaining,
	})
}

// MonitorSSE godoc
// GET /api/v1/teacher/assessments/:assessment_id/monitor
// Streams the live proctoring feed over SSE: an initial snapshot of all
// attempts, then every monitor event published for the assessment.
func (h *TeacherHandler) MonitorSSE(c *gin.Context) {
	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Initial snapshot so the dashboard renders before the first event.
	attempts, total, err := h.attemptService.ListAttempts(reqCtx, assessmentID, 1, 200)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	c.SSEvent("message", gin.H{
		"type":     "snapshot",
		"total":    total,
		"attempts": attempts,
	})
	c.Writer.Flush()

	channelName := config.CacheKey.AssessmentMonitorChannel(assessmentID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Str("assessment_id", assessmentID.String()).Msg("Teacher attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("assessment_id", assessmentID.String()).Msg("Teacher disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}
