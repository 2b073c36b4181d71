package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionKind string

const (
	KindSingleChoice QuestionKind = "single_choice"
	KindTrueFalse    QuestionKind = "true_false"
	KindShortText    QuestionKind = "short_text"
	KindLongText     QuestionKind = "long_text"
)

type EvaluationStatus string

const (
	EvaluationDraft    EvaluationStatus = "Draft"
	EvaluationActive   EvaluationStatus = "Active"
	EvaluationArchived EvaluationStatus = "Archived"
)

// Evaluation is the definition of an assessment: title, duration and an
// ordered question set. It is immutable for the lifetime of an attempt.
type Evaluation struct {
	ID              uint             `json:"id" gorm:"primaryKey"`
	Title           string           `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description     *string          `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	DurationMinutes int              `json:"duration_minutes" gorm:"not null" validate:"required,min=1,max=300"`
	Status          EvaluationStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Active Archived"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []Question `json:"questions" gorm:"foreignKey:EvaluationID"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

// Question belongs to exactly one evaluation; Position fixes the display
// order. Options is non-empty only for single-choice questions; true/false
// questions have the two implicit options "true" and "false".
type Question struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	EvaluationID uint         `json:"evaluation_id" gorm:"not null;index"`
	Kind         QuestionKind `json:"kind" gorm:"not null;size:20" validate:"required,question_kind"`
	Text         string       `json:"text" gorm:"not null;type:text" validate:"required"`
	Points       float64      `json:"points" gorm:"not null" validate:"min=0"`
	IsRequired   bool         `json:"is_required" gorm:"default:false"`
	Position     int          `json:"position" gorm:"not null;index"`

	// Options holds []QuestionOption for single-choice questions.
	Options datatypes.JSON `json:"options" gorm:"type:jsonb"`

	// CorrectOptionIDs / CorrectText drive auto-grading; never exposed to
	// students through the attempt API.
	CorrectOptionIDs datatypes.JSON `json:"-" gorm:"type:jsonb"`
	CorrectText      *string        `json:"-" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
