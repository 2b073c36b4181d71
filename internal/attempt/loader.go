package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classforge/attempt-service/internal/events"
	"github.com/classforge/attempt-service/internal/models"
	"github.com/classforge/attempt-service/internal/utils"
)

// Loader fetches an evaluation definition, opens an attempt record and
// builds the controller that will drive the attempt. It does not start the
// countdown; the host does that explicitly once Ready is observed.
type Loader struct {
	store     Store
	cache     DefinitionCache
	publisher events.EventPublisher
	logger    utils.Logger
}

func NewLoader(store Store, cache DefinitionCache, publisher events.EventPublisher, logger utils.Logger) *Loader {
	return &Loader{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// Load fetches the definition and opens one attempt record. On any failure
// no partial state is retained; in particular a failed StartAttempt after a
// successful fetch surfaces ErrAttemptStartFailed and the host must retry
// Load from scratch.
func (l *Loader) Load(ctx context.Context, evaluationID uint, studentID string) (*Controller, error) {
	if studentID == "" {
		return nil, ErrNoIdentity
	}

	l.logger.Info("Loading evaluation for attempt",
		"evaluation_id", evaluationID,
		"student_id", studentID)

	definition, err := l.fetchDefinition(ctx, evaluationID, studentID)
	if err != nil {
		return nil, err
	}

	attemptID, err := l.store.StartAttempt(ctx, evaluationID, studentID)
	if err != nil {
		l.logger.Error("Failed to start attempt",
			"evaluation_id", evaluationID,
			"student_id", studentID,
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrAttemptStartFailed, err)
	}

	session := &AttemptSession{
		AttemptID:        attemptID,
		StartedAt:        time.Now(),
		RemainingSeconds: definition.DurationMinutes * 60,
		Status:           StatusReady,
	}

	l.logger.Info("Attempt started",
		"attempt_id", attemptID,
		"evaluation_id", evaluationID,
		"questions", len(definition.Questions),
		"time_limit_seconds", session.RemainingSeconds)

	l.publish(ctx, events.NewAttemptEvent(events.EventAttemptStarted, attemptID, evaluationID, studentID, map[string]interface{}{
		"duration_minutes": definition.DurationMinutes,
		"question_count":   len(definition.Questions),
	}))

	return newController(definition, session, studentID, l.store, l.publisher, l.logger), nil
}

func (l *Loader) fetchDefinition(ctx context.Context, evaluationID uint, studentID string) (*models.Evaluation, error) {
	if l.cache != nil {
		if definition, ok := l.cache.GetEvaluation(ctx, evaluationID); ok {
			return definition, nil
		}
	}

	definition, err := l.store.GetEvaluationWithQuestions(ctx, evaluationID, studentID)
	if err != nil {
		if errors.Is(err, ErrEvaluationNotFound) {
			return nil, ErrEvaluationNotFound
		}
		return nil, &NetworkError{Op: "get_evaluation_with_questions", Err: err}
	}

	if l.cache != nil {
		l.cache.PutEvaluation(ctx, definition)
	}
	return definition, nil
}

func (l *Loader) publish(ctx context.Context, event *events.AttemptEvent) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishAttemptEvent(ctx, event); err != nil {
		l.logger.Error("Failed to publish attempt event",
			"event_type", event.Type,
			"attempt_id", event.AttemptID,
			"error", err)
	}
}
