package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptFailed     AttemptStatus = "failed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

type AttemptEndReason string

const (
	EndReasonManual    AttemptEndReason = "manual_submit"
	EndReasonTimeout   AttemptEndReason = "time_out"
	EndReasonAbandoned AttemptEndReason = "abandoned"
)

// EvaluationAttempt is one student's timed instance of taking an evaluation.
type EvaluationAttempt struct {
	ID           uint          `json:"id" gorm:"primaryKey"`
	EvaluationID uint          `json:"evaluation_id" gorm:"not null;index"`
	StudentID    string        `json:"student_id" gorm:"not null;index;size:255"`
	Status       AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	TimeLimit   int        `json:"time_limit"` // seconds

	// Scoring
	TotalScore float64 `json:"total_score"`
	MaxScore   float64 `json:"max_score"`
	IsGraded   bool    `json:"is_graded"`

	EndReason *AttemptEndReason `json:"end_reason" gorm:"size:30"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Evaluation Evaluation      `json:"evaluation" gorm:"foreignKey:EvaluationID"`
	Answers    []StudentAnswer `json:"answers" gorm:"foreignKey:AttemptID"`
}

func (EvaluationAttempt) TableName() string {
	return "evaluation_attempts"
}

// StudentAnswer is one persisted answer within an attempt. SelectedOptionIDs
// is meaningful only for single-choice questions and holds at most one entry
// in practice (single-selection model).
type StudentAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`

	Text              string         `json:"text" gorm:"type:text"`
	SelectedOptionIDs datatypes.JSON `json:"selected_option_ids" gorm:"type:jsonb"`

	// Grading
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
	IsCorrect *bool   `json:"is_correct"` // nil for manually graded kinds

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StudentAnswer) TableName() string {
	return "student_answers"
}

// GradeResult is the outcome of grading a full attempt.
type GradeResult struct {
	TotalScore float64 `json:"total_score"`
	MaxScore   float64 `json:"max_score"`
}
