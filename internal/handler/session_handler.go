package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/asesmen-backend/internal/middleware"
	"github.com/stemsi/asesmen-backend/internal/model"
	"github.com/stemsi/asesmen-backend/internal/proctor"
	"github.com/stemsi/asesmen-backend/internal/response"
	"github.com/stemsi/asesmen-backend/internal/service"
	"github.com/stemsi/asesmen-backend/internal/validator"
)

// SessionHandler handles the student-facing attempt lifecycle endpoints.
type SessionHandler struct {
	attemptService *service.AttemptService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(attemptService *service.AttemptService) *SessionHandler {
	return &SessionHandler{attemptService: attemptService}
}

// SaveAnswersRequest is a batch of answers keyed by question ID.
type SaveAnswersRequest struct {
	Answers map[uuid.UUID]model.AnswerValue `json:"answers" binding:"required,min=1"`
}

// ViolationRequest reports one proctoring event from the exam client.
type ViolationRequest struct {
	Kind   string `json:"kind" binding:"required"`
	Detail string `json:"detail" binding:"max=512"`
}

// GetSession godoc
// GET /api/v1/student/assessments/:assessment_id/session
// Returns the live session snapshot, creating the attempt lazily. Covers
// page reload: answered questions and the remaining time come back together.
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims, assessmentID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	view, err := h.attemptService.GetSession(c.Request.Context(), claims.UserID, assessmentID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// StartSession godoc
// POST /api/v1/student/assessments/:assessment_id/session/start
// Pins started_at on first call; repeated calls observe the same clock.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims, assessmentID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	view, err := h.attemptService.StartSession(c.Request.Context(), claims.UserID, assessmentID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// SaveAnswers godoc
// POST /api/v1/student/assessments/:assessment_id/session/answers
// Saves a batch of answers with replace-on-resave semantics. Unknown
// question IDs are skipped and reported, not fatal.
func (h *SessionHandler) SaveAnswers(c *gin.Context) {
	claims, assessmentID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req SaveAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	report, err := h.attemptService.SaveAnswers(c.Request.Context(), claims.UserID, assessmentID, req.Answers)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}

// Submit godoc
// POST /api/v1/student/assessments/:assessment_id/session/submit
// Applies the terminal transition. A concurrent duplicate observes the
// winner's submission and still gets a success response.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims, assessmentID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	view, err := h.attemptService.Submit(c.Request.Context(), claims.UserID, assessmentID)
	if errors.Is(err, service.ErrAlreadySubmitted) {
		// The submission landed (this caller lost the race or re-clicked).
		view, err = h.attemptService.GetSession(c.Request.Context(), claims.UserID, assessmentID)
	}
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// ReportViolation godoc
// POST /api/v1/student/assessments/:assessment_id/session/violations
// Records a proctoring event. Terminal kinds force-submit the attempt;
// the response tells the client whether its session just ended.
func (h *SessionHandler) ReportViolation(c *gin.Context) {
	claims, assessmentID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req ViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	terminated, err := h.attemptService.ReportViolation(
		c.Request.Context(), claims.UserID, assessmentID, proctor.Kind(req.Kind), req.Detail)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"terminated": terminated})
}

func (h *SessionHandler) sessionParams(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}

	return claims, assessmentID, true
}

// failSessionError maps domain errors to API error codes. Unmapped errors
// become 500s; none of them leaks internals to the client.
func failSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound),
		errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotEnrolled):
		response.Fail(c, http.StatusForbidden, response.ErrNotEnrolled)
	case errors.Is(err, service.ErrAssessmentNotOpen):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrAssessmentNotOpen)
	case errors.Is(err, service.ErrAttemptLocked):
		response.Fail(c, http.StatusConflict, response.ErrAttemptLocked)
	case errors.Is(err, service.ErrDeadlinePassed):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrDeadlinePassed)
	case errors.Is(err, service.ErrUnsupportedOperation):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrUnsupportedOperation)
	case errors.Is(err, service.ErrInvalidViolationKind):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidViolationKind)
	case errors.Is(err, service.ErrNotSupervised):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNotSupervised)
	case errors.Is(err, service.ErrNotInterrupted):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNotInterrupted)
	case errors.Is(err, service.ErrTimeFullyElapsed):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrTimeFullyElapsed)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
