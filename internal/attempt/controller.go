package attempt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/classforge/attempt-service/internal/events"
	"github.com/classforge/attempt-service/internal/models"
	"github.com/classforge/attempt-service/internal/utils"
)

type Status string

const (
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	StatusSubmitting   Status = "submitting"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// SubmitTrigger tags which path invoked Submit. Both converge on the same
// reducer; the tag only affects the recorded end reason.
type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
)

// AttemptSession is the mutable state of one attempt. Status is owned
// exclusively by the Controller; RemainingSeconds is monotonically
// non-increasing and written only by the countdown tick.
type AttemptSession struct {
	AttemptID        uint      `json:"attempt_id"`
	StartedAt        time.Time `json:"started_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Status           Status    `json:"status"`
}

// State is the read-only snapshot exposed to the host UI: everything the
// confirmation dialog needs (answered count, remaining time) plus
// navigation and flag state.
type State struct {
	AttemptID          uint                `json:"attempt_id"`
	EvaluationID       uint                `json:"evaluation_id"`
	Status             Status              `json:"status"`
	RemainingSeconds   int                 `json:"remaining_seconds"`
	CurrentIndex       int                 `json:"current_index"`
	QuestionCount      int                 `json:"question_count"`
	AnsweredCount      int                 `json:"answered_count"`
	UnansweredRequired int                 `json:"unanswered_required"`
	FlaggedQuestionIDs []uint              `json:"flagged_question_ids"`
	Result             *models.GradeResult `json:"result,omitempty"`
}

// Controller drives a single student through a single attempt. It owns the
// answer ledger, flag set, cursor and countdown, and serializes all status
// transitions: exactly one upload+grade sequence runs per attempt no matter
// how many times Submit is invoked or from which path.
type Controller struct {
	mu sync.Mutex

	definition *models.Evaluation
	session    *AttemptSession
	studentID  string

	ledger *Ledger
	flags  *FlagSet
	cursor *Cursor
	timer  *CountdownTimer

	store     Store
	publisher events.EventPublisher
	logger    utils.Logger

	// persisted records questions whose uploads were confirmed, so a retry
	// after a partial failure or a grading failure skips re-uploading them.
	persisted map[uint]bool
	result    *models.GradeResult
	submitErr error
	inflight  chan struct{}
	abandoned bool
}

func newController(definition *models.Evaluation, session *AttemptSession, studentID string, store Store, publisher events.EventPublisher, logger utils.Logger) *Controller {
	return &Controller{
		definition: definition,
		session:    session,
		studentID:  studentID,
		ledger:     NewLedger(),
		flags:      NewFlagSet(),
		cursor:     NewCursor(len(definition.Questions)),
		timer:      NewCountdownTimer(),
		store:      store,
		publisher:  publisher,
		logger:     logger,
		persisted:  make(map[uint]bool),
	}
}

func (c *Controller) Definition() *models.Evaluation { return c.definition }

func (c *Controller) AttemptID() uint { return c.session.AttemptID }

func (c *Controller) StudentID() string { return c.studentID }

// StartTimer acquires the countdown for the attempt's time limit. Expiry
// feeds the same Submit entry point as a manual submission.
func (c *Controller) StartTimer() {
	c.mu.Lock()
	if c.session.Status != StatusReady || c.abandoned {
		c.mu.Unlock()
		return
	}
	initial := c.session.RemainingSeconds
	c.mu.Unlock()

	c.timer.Start(initial,
		func(remaining int) {
			c.mu.Lock()
			if remaining < c.session.RemainingSeconds {
				c.session.RemainingSeconds = remaining
			}
			c.mu.Unlock()
		},
		func() {
			c.mu.Lock()
			c.session.RemainingSeconds = 0
			c.mu.Unlock()

			if _, err := c.Submit(context.Background(), TriggerTimeout); err != nil {
				c.logger.Error("Automatic submission on expiry failed",
					"attempt_id", c.session.AttemptID,
					"error", err)
			}
		})
}

// Answer merges a partial answer into the ledger. Rejected once the attempt
// stops accepting answers; a failed submission leaves the ledger untouched
// so retry never forces re-entry.
func (c *Controller) Answer(questionID uint, patch AnswerPatch) error {
	c.mu.Lock()
	if c.session.Status != StatusReady && c.session.Status != StatusFailed || c.abandoned {
		c.mu.Unlock()
		return ErrAttemptNotActive
	}
	c.mu.Unlock()

	question, ok := c.questionByID(questionID)
	if !ok {
		return ErrQuestionNotFound
	}
	if patch.SelectedOptionIDs != nil && len(*patch.SelectedOptionIDs) > 0 && question.Kind != models.KindSingleChoice {
		return ErrQuestionNotFound
	}

	c.ledger.Set(questionID, patch)

	// An edit after a failed submission round invalidates the confirmed
	// upload for this question; the next Submit re-uploads it.
	c.mu.Lock()
	delete(c.persisted, questionID)
	c.mu.Unlock()
	return nil
}

// ToggleFlag flips the review flag for a question. Advisory only.
func (c *Controller) ToggleFlag(questionID uint) (bool, error) {
	if _, ok := c.questionByID(questionID); !ok {
		return false, ErrQuestionNotFound
	}
	return c.flags.Toggle(questionID), nil
}

func (c *Controller) MoveTo(index int) int { return c.cursor.MoveTo(index) }
func (c *Controller) Next() int            { return c.cursor.Next() }
func (c *Controller) Previous() int        { return c.cursor.Previous() }

// Snapshot returns the state the host renders from.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	status := c.session.Status
	remaining := c.session.RemainingSeconds
	result := c.result
	c.mu.Unlock()

	answered := c.ledger.AnsweredCount(c.definition.Questions)
	unansweredRequired := 0
	for _, q := range c.definition.Questions {
		if q.IsRequired && c.ledger.Get(q.ID).IsEmpty() {
			unansweredRequired++
		}
	}

	return State{
		AttemptID:          c.session.AttemptID,
		EvaluationID:       c.definition.ID,
		Status:             status,
		RemainingSeconds:   remaining,
		CurrentIndex:       c.cursor.Current(),
		QuestionCount:      len(c.definition.Questions),
		AnsweredCount:      answered,
		UnansweredRequired: unansweredRequired,
		FlaggedQuestionIDs: c.flags.IDs(),
		Result:             result,
	}
}

// Submit is the single entry point for both the manual path and the timer
// expiry path. The status check and transition happen atomically before any
// blocking call, so concurrent invocations collapse onto one upload+grade
// sequence and all callers resolve to the same result.
//
// Missing required answers never block submission; the host surfaces the
// count in its confirmation dialog only.
func (c *Controller) Submit(ctx context.Context, trigger SubmitTrigger) (*models.GradeResult, error) {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return nil, ErrAttemptNotActive
	}
	switch c.session.Status {
	case StatusCompleted:
		result := c.result
		c.mu.Unlock()
		return result, nil

	case StatusSubmitting:
		// A submission is in flight; wait for it and return its outcome.
		wait := c.inflight
		c.mu.Unlock()
		<-wait
		c.mu.Lock()
		result, err := c.result, c.submitErr
		c.mu.Unlock()
		return result, err

	case StatusReady, StatusFailed:
		c.session.Status = StatusSubmitting
		c.inflight = make(chan struct{})
	default:
		c.mu.Unlock()
		return nil, ErrAttemptNotActive
	}
	finished := c.inflight
	c.mu.Unlock()

	// No further expiry may re-trigger submission once Submitting is
	// entered. On the timeout path the timer has already stopped itself.
	c.timer.Stop()

	result, err := c.uploadAndGrade(ctx, trigger)

	c.mu.Lock()
	if err != nil {
		c.session.Status = StatusFailed
		c.submitErr = err
	} else {
		c.session.Status = StatusCompleted
		c.result = result
		c.submitErr = nil
	}
	close(finished)
	c.mu.Unlock()

	c.publishOutcome(ctx, trigger, result, err)
	return result, err
}

func (c *Controller) uploadAndGrade(ctx context.Context, trigger SubmitTrigger) (*models.GradeResult, error) {
	failed := c.uploadAnswers(ctx)
	if len(failed) > 0 {
		c.logger.Warn("Partial answer upload, grading withheld",
			"attempt_id", c.session.AttemptID,
			"failed_questions", len(failed))
		return nil, &PartialUploadError{FailedQuestionIDs: failed}
	}

	reason := models.EndReasonManual
	if trigger == TriggerTimeout {
		reason = models.EndReasonTimeout
	}

	result, err := c.store.GradeAttempt(ctx, c.session.AttemptID, reason)
	if err != nil {
		return nil, &GradingError{Err: err}
	}

	c.logger.Info("Attempt graded",
		"attempt_id", c.session.AttemptID,
		"trigger", trigger,
		"total_score", result.TotalScore,
		"max_score", result.MaxScore)
	return result, nil
}

// uploadAnswers uploads every question's current ledger entry, empty
// defaults included, skipping uploads already confirmed by an earlier
// submission round. Uploads for different questions run concurrently;
// failures are collected best-effort so the remaining answers still
// persist.
func (c *Controller) uploadAnswers(ctx context.Context) []uint {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []uint
	)

	for _, question := range c.definition.Questions {
		c.mu.Lock()
		skip := c.persisted[question.ID]
		c.mu.Unlock()
		if skip {
			continue
		}
		wg.Add(1)
		go func(q models.Question) {
			defer wg.Done()

			answer := c.ledger.Get(q.ID)
			err := c.store.SubmitAnswer(ctx, c.session.AttemptID, q.ID, c.studentID, answer.Text, answer.SelectedOptionIDs)
			if err != nil {
				c.logger.Error("Answer upload failed",
					"attempt_id", c.session.AttemptID,
					"question_id", q.ID,
					"error", err)
				mu.Lock()
				failed = append(failed, q.ID)
				mu.Unlock()
				return
			}
			c.mu.Lock()
			c.persisted[q.ID] = true
			c.mu.Unlock()
		}(question)
	}
	wg.Wait()

	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed
}

// Abandon tears the controller down while the attempt is still Ready: the
// countdown is stopped so no stale expiry fires into a dead controller, and
// the attempt record is marked abandoned.
func (c *Controller) Abandon(ctx context.Context) error {
	c.mu.Lock()
	if c.session.Status != StatusReady || c.abandoned {
		c.mu.Unlock()
		return ErrAttemptNotActive
	}
	c.abandoned = true
	c.mu.Unlock()

	c.timer.Stop()

	if err := c.store.AbandonAttempt(ctx, c.session.AttemptID); err != nil {
		c.logger.Error("Failed to mark attempt abandoned",
			"attempt_id", c.session.AttemptID,
			"error", err)
		return err
	}
	return nil
}

// Answers returns the current ledger entry for every question, empty
// defaults included, in question order.
func (c *Controller) Answers() []Answer {
	answers := make([]Answer, 0, len(c.definition.Questions))
	for _, q := range c.definition.Questions {
		answers = append(answers, c.ledger.Get(q.ID))
	}
	return answers
}

func (c *Controller) questionByID(questionID uint) (models.Question, bool) {
	for _, q := range c.definition.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return models.Question{}, false
}

func (c *Controller) publishOutcome(ctx context.Context, trigger SubmitTrigger, result *models.GradeResult, submitErr error) {
	if c.publisher == nil {
		return
	}

	eventType := events.EventAttemptCompleted
	data := map[string]interface{}{"trigger": string(trigger)}
	if submitErr != nil {
		eventType = events.EventAttemptFailed
		data["error"] = submitErr.Error()
	} else {
		data["total_score"] = result.TotalScore
		data["max_score"] = result.MaxScore
	}

	event := events.NewAttemptEvent(eventType, c.session.AttemptID, c.definition.ID, c.studentID, data)
	if err := c.publisher.PublishAttemptEvent(ctx, event); err != nil {
		c.logger.Error("Failed to publish attempt event",
			"event_type", eventType,
			"attempt_id", c.session.AttemptID,
			"error", err)
	}
}
