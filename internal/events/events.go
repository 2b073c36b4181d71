package events

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

type EventType string

const (
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptCompleted EventType = "attempt.completed"
	EventAttemptFailed    EventType = "attempt.failed"
	EventAttemptAbandoned EventType = "attempt.abandoned"
)

// AttemptEvent is the lifecycle event emitted by the attempt controller.
// Downstream consumers (gradebook sync, notifications) key on Type.
type AttemptEvent struct {
	ID           string                 `json:"id"`
	Type         EventType              `json:"type"`
	AttemptID    uint                   `json:"attempt_id"`
	EvaluationID uint                   `json:"evaluation_id"`
	StudentID    string                 `json:"student_id"`
	Source       string                 `json:"source"`
	Version      string                 `json:"version"`
	Timestamp    time.Time              `json:"timestamp"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

func NewAttemptEvent(eventType EventType, attemptID, evaluationID uint, studentID string, data map[string]interface{}) *AttemptEvent {
	return &AttemptEvent{
		ID:           watermill.NewUUID(),
		Type:         eventType,
		AttemptID:    attemptID,
		EvaluationID: evaluationID,
		StudentID:    studentID,
		Source:       "attempt-service",
		Version:      "1.0",
		Timestamp:    time.Now(),
		Data:         data,
	}
}
