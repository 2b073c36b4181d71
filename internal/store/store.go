package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/classforge/attempt-service/internal/attempt"
	"github.com/classforge/attempt-service/internal/models"
	"github.com/classforge/attempt-service/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements attempt.Store on Postgres. Grading happens here:
// from the controller's point of view it is an opaque remote call that
// returns a total/maximum score.
type GormStore struct {
	db     *gorm.DB
	logger utils.Logger
}

func NewGormStore(db *gorm.DB, logger utils.Logger) *GormStore {
	return &GormStore{db: db, logger: logger}
}

// AutoMigrate creates the schema for the attempt service tables.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.Evaluation{},
		&models.Question{},
		&models.EvaluationAttempt{},
		&models.StudentAnswer{},
	)
}

func (s *GormStore) GetEvaluationWithQuestions(ctx context.Context, evaluationID uint, studentID string) (*models.Evaluation, error) {
	var evaluation models.Evaluation
	err := s.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ? AND status = ?", evaluationID, models.EvaluationActive).
		First(&evaluation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, attempt.ErrEvaluationNotFound
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return &evaluation, nil
}

func (s *GormStore) StartAttempt(ctx context.Context, evaluationID uint, studentID string) (uint, error) {
	var evaluation models.Evaluation
	if err := s.db.WithContext(ctx).First(&evaluation, evaluationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, attempt.ErrEvaluationNotFound
		}
		return 0, fmt.Errorf("failed to get evaluation: %w", err)
	}

	record := &models.EvaluationAttempt{
		EvaluationID: evaluationID,
		StudentID:    studentID,
		Status:       models.AttemptInProgress,
		StartedAt:    time.Now(),
		TimeLimit:    evaluation.DurationMinutes * 60,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return 0, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Attempt record created",
		"attempt_id", record.ID,
		"evaluation_id", evaluationID,
		"student_id", studentID)
	return record.ID, nil
}

func (s *GormStore) SubmitAnswer(ctx context.Context, attemptID, questionID uint, studentID string, text string, selectedOptionIDs []string) error {
	var record models.EvaluationAttempt
	if err := s.db.WithContext(ctx).First(&record, attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return attempt.ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}
	if record.StudentID != studentID {
		return attempt.ErrAttemptNotFound
	}

	var optionsJSON datatypes.JSON
	if len(selectedOptionIDs) > 0 {
		raw, err := json.Marshal(selectedOptionIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal selected options: %w", err)
		}
		optionsJSON = raw
	}

	answer := models.StudentAnswer{
		AttemptID:         attemptID,
		QuestionID:        questionID,
		Text:              text,
		SelectedOptionIDs: optionsJSON,
	}

	// Latest write wins per (attempt, question)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "selected_option_ids", "updated_at"}),
	}).Create(&answer).Error
	if err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}
	return nil
}

// GradeAttempt scores the persisted answer set and finalizes the attempt.
// Grading an attempt that is already graded returns the stored result, so
// the terminal state is reached exactly once even if a retry slips through.
func (s *GormStore) GradeAttempt(ctx context.Context, attemptID uint, reason models.AttemptEndReason) (*models.GradeResult, error) {
	var record models.EvaluationAttempt
	err := s.db.WithContext(ctx).
		Preload("Evaluation.Questions").
		Preload("Answers").
		First(&record, attemptID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, attempt.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if record.IsGraded {
		return &models.GradeResult{TotalScore: record.TotalScore, MaxScore: record.MaxScore}, nil
	}

	answersByQuestion := make(map[uint]*models.StudentAnswer, len(record.Answers))
	for i := range record.Answers {
		answersByQuestion[record.Answers[i].QuestionID] = &record.Answers[i]
	}

	var total, max float64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, question := range record.Evaluation.Questions {
			outcome := gradeAnswer(question, answersByQuestion[question.ID])
			total += outcome.Points
			max += outcome.MaxPoints

			if answer, ok := answersByQuestion[question.ID]; ok {
				answer.Score = outcome.Points
				answer.MaxScore = outcome.MaxPoints
				answer.IsCorrect = outcome.IsCorrect
				if err := tx.Model(&models.StudentAnswer{}).
					Where("id = ?", answer.ID).
					Updates(map[string]interface{}{
						"score":      answer.Score,
						"max_score":  answer.MaxScore,
						"is_correct": answer.IsCorrect,
					}).Error; err != nil {
					return fmt.Errorf("failed to store answer grade: %w", err)
				}
			}
		}

		now := time.Now()
		return tx.Model(&models.EvaluationAttempt{}).
			Where("id = ?", attemptID).
			Updates(map[string]interface{}{
				"status":       models.AttemptCompleted,
				"submitted_at": &now,
				"end_reason":   reason,
				"total_score":  total,
				"max_score":    max,
				"is_graded":    true,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grade attempt: %w", err)
	}

	s.logger.Info("Attempt graded and finalized",
		"attempt_id", attemptID,
		"total_score", total,
		"max_score", max,
		"end_reason", reason)
	return &models.GradeResult{TotalScore: total, MaxScore: max}, nil
}

func (s *GormStore) AbandonAttempt(ctx context.Context, attemptID uint) error {
	reason := models.EndReasonAbandoned
	result := s.db.WithContext(ctx).Model(&models.EvaluationAttempt{}).
		Where("id = ? AND status = ?", attemptID, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":     models.AttemptAbandoned,
			"end_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to abandon attempt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return attempt.ErrAttemptNotFound
	}
	return nil
}

// ListAttemptsByEvaluation returns graded and in-progress attempts for the
// results export.
func (s *GormStore) ListAttemptsByEvaluation(ctx context.Context, evaluationID uint) ([]*models.EvaluationAttempt, error) {
	var attempts []*models.EvaluationAttempt
	err := s.db.WithContext(ctx).
		Where("evaluation_id = ?", evaluationID).
		Order("created_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}
