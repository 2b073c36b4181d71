package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/classforge/attempt-service/internal/models"
	"github.com/classforge/attempt-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// MockResultsStore is a mock implementation of ResultsStore
type MockResultsStore struct {
	mock.Mock
}

func (m *MockResultsStore) ListAttemptsByEvaluation(ctx context.Context, evaluationID uint) ([]*models.EvaluationAttempt, error) {
	args := m.Called(ctx, evaluationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EvaluationAttempt), args.Error(1)
}

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestReportService_ExportEvaluationResults(t *testing.T) {
	store := &MockResultsStore{}
	service := NewReportService(store, testLogger())

	submitted := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	reason := models.EndReasonTimeout
	attempts := []*models.EvaluationAttempt{
		{
			ID:           1,
			EvaluationID: 7,
			StudentID:    "student-1",
			Status:       models.AttemptCompleted,
			StartedAt:    submitted.Add(-30 * time.Minute),
			SubmittedAt:  &submitted,
			EndReason:    &reason,
			TotalScore:   8,
			MaxScore:     10,
			IsGraded:     true,
		},
		{
			ID:           2,
			EvaluationID: 7,
			StudentID:    "student-2",
			Status:       models.AttemptAbandoned,
			StartedAt:    submitted,
		},
	}
	store.On("ListAttemptsByEvaluation", mock.Anything, uint(7)).Return(attempts, nil).Once()

	data, err := service.ExportEvaluationResults(context.Background(), 7)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Attempt ID", rows[0][0])
	assert.Equal(t, "student-1", rows[1][1])
	assert.Equal(t, "completed", rows[1][2])
	assert.Equal(t, "time_out", rows[1][5])
	assert.Equal(t, "8", rows[1][6])
	assert.Equal(t, "student-2", rows[2][1])
	assert.Equal(t, "abandoned", rows[2][2])

	store.AssertExpectations(t)
}

func TestReportService_ExportFailsWhenStoreFails(t *testing.T) {
	store := &MockResultsStore{}
	service := NewReportService(store, testLogger())

	store.On("ListAttemptsByEvaluation", mock.Anything, uint(7)).
		Return(nil, errors.New("database unavailable")).Once()

	_, err := service.ExportEvaluationResults(context.Background(), 7)
	assert.Error(t, err)
}
