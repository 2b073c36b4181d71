package services

import (
	"context"
	"fmt"

	"github.com/classforge/attempt-service/internal/models"
	"github.com/classforge/attempt-service/internal/utils"
	"github.com/xuri/excelize/v2"
)

// ResultsStore is the slice of the persistence layer the report service
// needs.
type ResultsStore interface {
	ListAttemptsByEvaluation(ctx context.Context, evaluationID uint) ([]*models.EvaluationAttempt, error)
}

// ReportService produces teacher-facing exports of attempt results.
type ReportService interface {
	ExportEvaluationResults(ctx context.Context, evaluationID uint) ([]byte, error)
}

type reportService struct {
	store  ResultsStore
	logger utils.Logger
}

func NewReportService(store ResultsStore, logger utils.Logger) ReportService {
	return &reportService{store: store, logger: logger}
}

// ExportEvaluationResults renders every attempt of an evaluation into an
// xlsx sheet: one row per attempt with status, timing, end reason and score.
func (s *reportService) ExportEvaluationResults(ctx context.Context, evaluationID uint) ([]byte, error) {
	attempts, err := s.store.ListAttemptsByEvaluation(ctx, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Attempt ID", "Student ID", "Status", "Started At", "Submitted At",
		"End Reason", "Total Score", "Max Score", "Graded",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, attempt := range attempts {
		row := attemptToRow(attempt)
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Evaluation results exported",
		"evaluation_id", evaluationID,
		"attempts", len(attempts))
	return buf.Bytes(), nil
}

func attemptToRow(attempt *models.EvaluationAttempt) []interface{} {
	submittedAt := ""
	if attempt.SubmittedAt != nil {
		submittedAt = attempt.SubmittedAt.Format("2006-01-02 15:04:05")
	}
	endReason := ""
	if attempt.EndReason != nil {
		endReason = string(*attempt.EndReason)
	}

	return []interface{}{
		attempt.ID,
		attempt.StudentID,
		string(attempt.Status),
		attempt.StartedAt.Format("2006-01-02 15:04:05"),
		submittedAt,
		endReason,
		attempt.TotalScore,
		attempt.MaxScore,
		attempt.IsGraded,
	}
}
