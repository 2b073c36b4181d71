package handlers

import (
	"github.com/classforge/attempt-service/internal/attempt"
	"github.com/classforge/attempt-service/internal/services"
	"github.com/classforge/attempt-service/internal/session"
	"github.com/classforge/attempt-service/internal/utils"
	"github.com/classforge/attempt-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	reportHandler  *ReportHandler
	sessions       *session.CasdoorSession
}

func NewHandlerManager(
	loader *attempt.Loader,
	registry *attempt.Registry,
	sessions *session.CasdoorSession,
	reports services.ReportService,
	v *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(loader, registry, sessions, v, logger),
		reportHandler:  NewReportHandler(reports, logger),
		sessions:       sessions,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(hm.sessions.Middleware())
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("", hm.attemptHandler.StartAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/answers/:question_id", hm.attemptHandler.PatchAnswer)
			attempts.POST("/:id/questions/:question_id/flag", hm.attemptHandler.ToggleFlag)
			attempts.PUT("/:id/position", hm.attemptHandler.Navigate)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.DELETE("/:id", hm.attemptHandler.AbandonAttempt)
		}

		evaluations := v1.Group("/evaluations")
		{
			evaluations.GET("/:id/results/export", hm.reportHandler.ExportResults)
		}
	}
}
