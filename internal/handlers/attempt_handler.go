package handlers

import (
	"errors"
	"net/http"

	"github.com/classforge/attempt-service/internal/attempt"
	apperrors "github.com/classforge/attempt-service/internal/errors"
	"github.com/classforge/attempt-service/internal/models"
	"github.com/classforge/attempt-service/internal/utils"
	"github.com/classforge/attempt-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// AttemptHandler is the HTTP host of the attempt controller: it renders
// questions, relays answers and converges the two submission paths onto the
// controller's single entry point. It holds no state machine logic of its
// own.
type AttemptHandler struct {
	BaseHandler
	loader    *attempt.Loader
	registry  *attempt.Registry
	session   attempt.Session
	validator *validator.Validator
}

func NewAttemptHandler(loader *attempt.Loader, registry *attempt.Registry, session attempt.Session, v *validator.Validator, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler: NewBaseHandler(logger),
		loader:      loader,
		registry:    registry,
		session:     session,
		validator:   v,
	}
}

// ===== REQUEST / RESPONSE STRUCTURES =====

type StartAttemptRequest struct {
	EvaluationID uint `json:"evaluation_id" validate:"required"`
}

type AnswerPatchRequest struct {
	Text              *string   `json:"text"`
	SelectedOptionIDs *[]string `json:"selected_option_ids"`
}

type NavigateRequest struct {
	Action string `json:"action" validate:"required,oneof=next previous move"`
	Index  int    `json:"index"`
}

type AttemptResponse struct {
	State     attempt.State     `json:"state"`
	Questions []models.Question `json:"questions,omitempty"`
	Answers   []attempt.Answer  `json:"answers,omitempty"`
}

// ===== ENDPOINTS =====

// StartAttempt loads the evaluation, opens the attempt record and starts
// the countdown.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	studentID, err := h.session.CurrentUserID(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "No authenticated user"})
		return
	}

	var req StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleError(c, err)
		return
	}

	controller, err := h.loader.Load(c.Request.Context(), req.EvaluationID, studentID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.registry.Add(controller)
	controller.StartTimer()

	c.JSON(http.StatusCreated, AttemptResponse{
		State:     controller.Snapshot(),
		Questions: controller.Definition().Questions,
		Answers:   controller.Answers(),
	})
}

// GetAttempt returns the current snapshot with questions and saved answers.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	controller, ok := h.liveController(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, AttemptResponse{
		State:     controller.Snapshot(),
		Questions: controller.Definition().Questions,
		Answers:   controller.Answers(),
	})
}

// PatchAnswer merges a partial answer into the attempt's ledger.
func (h *AttemptHandler) PatchAnswer(c *gin.Context) {
	controller, ok := h.liveController(c)
	if !ok {
		return
	}
	questionID, ok := ParseUintParam(c, "question_id")
	if !ok {
		return
	}

	var req AnswerPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Details: err.Error()})
		return
	}

	patch := attempt.AnswerPatch{Text: req.Text, SelectedOptionIDs: req.SelectedOptionIDs}
	if err := controller.Answer(questionID, patch); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer recorded"})
}

// ToggleFlag flips the review flag on a question.
func (h *AttemptHandler) ToggleFlag(c *gin.Context) {
	controller, ok := h.liveController(c)
	if !ok {
		return
	}
	questionID, ok := ParseUintParam(c, "question_id")
	if !ok {
		return
	}

	flagged, err := controller.ToggleFlag(questionID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Flag toggled", Data: gin.H{"flagged": flagged}})
}

// Navigate moves the question cursor; out-of-range indices clamp.
func (h *AttemptHandler) Navigate(c *gin.Context) {
	controller, ok := h.liveController(c)
	if !ok {
		return
	}

	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleError(c, err)
		return
	}

	var index int
	switch req.Action {
	case "next":
		index = controller.Next()
	case "previous":
		index = controller.Previous()
	case "move":
		index = controller.MoveTo(req.Index)
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Cursor moved", Data: gin.H{"current_index": index}})
}

// SubmitAttempt is the manual submission path. The timer expiry path calls
// the same controller entry point internally.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	controller, ok := h.liveController(c)
	if !ok {
		return
	}

	result, err := controller.Submit(c.Request.Context(), attempt.TriggerManual)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attempt graded", Data: result})
}

// AbandonAttempt tears down a Ready attempt when the host navigates away.
func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	studentID, err := h.session.CurrentUserID(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "No authenticated user"})
		return
	}
	attemptID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.registry.Abandon(c.Request.Context(), attemptID, studentID); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attempt abandoned"})
}

// ===== HELPERS =====

func (h *AttemptHandler) liveController(c *gin.Context) (*attempt.Controller, bool) {
	studentID, err := h.session.CurrentUserID(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "No authenticated user"})
		return nil, false
	}
	attemptID, ok := ParseUintParam(c, "id")
	if !ok {
		return nil, false
	}

	controller, err := h.registry.Get(attemptID, studentID)
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	return controller, true
}

func (h *AttemptHandler) handleError(c *gin.Context, err error) {
	var validationErrors apperrors.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var partialErr *attempt.PartialUploadError
	if errors.As(err, &partialErr) {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Some answers could not be uploaded; submission may be retried",
			Details: gin.H{"failed_question_ids": partialErr.FailedQuestionIDs},
			Code:    "partial_upload_failure",
		})
		return
	}

	var gradingErr *attempt.GradingError
	if errors.As(err, &gradingErr) {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Answers are saved but grading failed; submission may be retried",
			Code:    "grading_failed",
		})
		return
	}

	var networkErr *attempt.NetworkError
	if errors.As(err, &networkErr) {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Upstream service unavailable; safe to retry",
			Code:    "network_error",
		})
		return
	}

	switch {
	case errors.Is(err, attempt.ErrNoIdentity):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "No authenticated user"})
	case errors.Is(err, attempt.ErrEvaluationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Evaluation not found"})
	case errors.Is(err, attempt.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Attempt not found"})
	case errors.Is(err, attempt.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Question not in evaluation"})
	case errors.Is(err, attempt.ErrAttemptNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt is not accepting this operation"})
	case errors.Is(err, attempt.ErrAttemptStartFailed):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Attempt could not be started; retry loading",
			Code:    "attempt_start_failed",
		})
	default:
		h.LogError(c, err, "Unexpected attempt error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}
