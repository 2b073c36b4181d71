package attempt

import (
	"context"

	"github.com/classforge/attempt-service/internal/models"
)

// Store is the persistence collaborator for a running attempt. The
// controller treats grading as an opaque remote computation; it never
// inspects answer keys itself.
type Store interface {
	// GetEvaluationWithQuestions returns the evaluation definition with its
	// ordered question list, or ErrEvaluationNotFound when the evaluation
	// does not exist or the student lacks access.
	GetEvaluationWithQuestions(ctx context.Context, evaluationID uint, studentID string) (*models.Evaluation, error)

	// StartAttempt opens a new attempt record and returns its id. Each
	// successful call creates exactly one record; it is not idempotent.
	StartAttempt(ctx context.Context, evaluationID uint, studentID string) (uint, error)

	// SubmitAnswer persists a single answer. Safe to call again for the
	// same question; the latest write wins.
	SubmitAnswer(ctx context.Context, attemptID, questionID uint, studentID string, text string, selectedOptionIDs []string) error

	// GradeAttempt scores the persisted answer set and finalizes the
	// attempt record with the given end reason.
	GradeAttempt(ctx context.Context, attemptID uint, reason models.AttemptEndReason) (*models.GradeResult, error)

	// AbandonAttempt marks an in-progress attempt abandoned.
	AbandonAttempt(ctx context.Context, attemptID uint) error
}

// Session is the session collaborator: it yields the identity of the
// current user, or ErrNoIdentity when none is present.
type Session interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// DefinitionCache is an optional read-through cache for evaluation
// definitions. Definitions are immutable for the duration of an attempt,
// so stale reads are bounded by the cache TTL only.
type DefinitionCache interface {
	GetEvaluation(ctx context.Context, evaluationID uint) (*models.Evaluation, bool)
	PutEvaluation(ctx context.Context, evaluation *models.Evaluation)
}
