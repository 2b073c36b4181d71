package attempt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/classforge/attempt-service/internal/events"
	"github.com/classforge/attempt-service/internal/models"
	"github.com/classforge/attempt-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a mock implementation of the Store collaborator
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetEvaluationWithQuestions(ctx context.Context, evaluationID uint, studentID string) (*models.Evaluation, error) {
	args := m.Called(ctx, evaluationID, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Evaluation), args.Error(1)
}

func (m *MockStore) StartAttempt(ctx context.Context, evaluationID uint, studentID string) (uint, error) {
	args := m.Called(ctx, evaluationID, studentID)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockStore) SubmitAnswer(ctx context.Context, attemptID, questionID uint, studentID string, text string, selectedOptionIDs []string) error {
	args := m.Called(ctx, attemptID, questionID, studentID, text, selectedOptionIDs)
	return args.Error(0)
}

func (m *MockStore) GradeAttempt(ctx context.Context, attemptID uint, reason models.AttemptEndReason) (*models.GradeResult, error) {
	args := m.Called(ctx, attemptID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GradeResult), args.Error(1)
}

func (m *MockStore) AbandonAttempt(ctx context.Context, attemptID uint) error {
	args := m.Called(ctx, attemptID)
	return args.Error(0)
}

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testPublisher() *events.MockEventPublisher {
	return events.NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func twoQuestions() []models.Question {
	return []models.Question{
		{ID: 1, EvaluationID: 7, Kind: models.KindSingleChoice, Text: "Pick one", Points: 2, IsRequired: true, Position: 1},
		{ID: 2, EvaluationID: 7, Kind: models.KindShortText, Text: "Type it", Points: 1, Position: 2},
	}
}

func newTestController(store Store, publisher events.EventPublisher, questions []models.Question) *Controller {
	definition := &models.Evaluation{
		ID:              7,
		Title:           "Midterm",
		DurationMinutes: 30,
		Status:          models.EvaluationActive,
		Questions:       questions,
	}
	session := &AttemptSession{
		AttemptID:        42,
		StartedAt:        time.Now(),
		RemainingSeconds: definition.DurationMinutes * 60,
		Status:           StatusReady,
	}
	return newController(definition, session, "student-1", store, publisher, testLogger())
}

func TestController_SubmitUploadsEveryQuestionAndGrades(t *testing.T) {
	store := &MockStore{}
	publisher := testPublisher()
	c := newTestController(store, publisher, twoQuestions())

	require.NoError(t, c.Answer(1, AnswerPatch{SelectedOptionIDs: idsPtr("opt-a"), Text: strPtr("Option A")}))

	store.On("SubmitAnswer", mock.Anything, uint(42), uint(1), "student-1", "Option A", []string{"opt-a"}).Return(nil).Once()
	// Question 2 was never touched; its empty default still uploads.
	store.On("SubmitAnswer", mock.Anything, uint(42), uint(2), "student-1", "", []string(nil)).Return(nil).Once()
	store.On("GradeAttempt", mock.Anything, uint(42), models.EndReasonManual).
		Return(&models.GradeResult{TotalScore: 2, MaxScore: 3}, nil).Once()

	result, err := c.Submit(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 2.0, result.TotalScore)
	assert.Equal(t, 3.0, result.MaxScore)

	state := c.Snapshot()
	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, result, state.Result)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventAttemptCompleted, published[0].Type)

	store.AssertExpectations(t)
}

func TestController_SubmitIsIdempotent(t *testing.T) {
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())

	store.On("SubmitAnswer", mock.Anything, uint(42), mock.Anything, "student-1", mock.Anything, mock.Anything).Return(nil).Times(2)
	store.On("GradeAttempt", mock.Anything, uint(42), models.EndReasonManual).
		Return(&models.GradeResult{TotalScore: 1, MaxScore: 3}, nil).Once()

	first, err := c.Submit(context.Background(), TriggerManual)
	require.NoError(t, err)

	// A completed attempt resolves every further Submit to the cached result.
	second, err := c.Submit(context.Background(), TriggerTimeout)
	require.NoError(t, err)
	assert.Same(t, first, second)

	store.AssertExpectations(t)
}

func TestController_ConcurrentSubmitsShareOneSubmission(t *testing.T) {
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())

	store.On("SubmitAnswer", mock.Anything, uint(42), mock.Anything, "student-1", mock.Anything, mock.Anything).
		Return(nil).Times(2).
		Run(func(mock.Arguments) { time.Sleep(10 * time.Millisecond) })
	store.On("GradeAttempt", mock.Anything, uint(42), mock.Anything).
		Return(&models.GradeResult{TotalScore: 3, MaxScore: 3}, nil).Once()

	var wg sync.WaitGroup
	results := make([]*models.GradeResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Submit(context.Background(), TriggerManual)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Same(t, results[0], results[1])

	store.AssertExpectations(t)
}

func TestController_PartialUploadFailureWithholdsGrading(t *testing.T) {
	store := &MockStore{}
	publisher := testPublisher()
	c := newTestController(store, publisher, twoQuestions())

	store.On("SubmitAnswer", mock.Anything, uint(42), uint(1), "student-1", mock.Anything, mock.Anything).Return(nil).Once()
	store.On("SubmitAnswer", mock.Anything, uint(42), uint(2), "student-1", mock.Anything, mock.Anything).
		Return(errors.New("connection reset")).Once()

	result, err := c.Submit(context.Background(), TriggerManual)
	assert.Nil(t, result)

	var partial *PartialUploadError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []uint{2}, partial.FailedQuestionIDs)
	assert.Equal(t, StatusFailed, c.Snapshot().Status)
	store.AssertNotCalled(t, "GradeAttempt", mock.Anything, mock.Anything, mock.Anything)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventAttemptFailed, published[0].Type)

	// Retry re-uploads only the failed question, then grades.
	store.On("SubmitAnswer", mock.Anything, uint(42), uint(2), "student-1", mock.Anything, mock.Anything).Return(nil).Once()
	store.On("GradeAttempt", mock.Anything, uint(42), models.EndReasonManual).
		Return(&models.GradeResult{TotalScore: 2, MaxScore: 3}, nil).Once()

	result, err = c.Submit(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 2.0, result.TotalScore)
	assert.Equal(t, StatusCompleted, c.Snapshot().Status)

	store.AssertExpectations(t)
}

func TestController_GradingFailureRetrySkipsUploads(t *testing.T) {
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())

	store.On("SubmitAnswer", mock.Anything, uint(42), mock.Anything, "student-1", mock.Anything, mock.Anything).Return(nil).Times(2)
	store.On("GradeAttempt", mock.Anything, uint(42), models.EndReasonManual).
		Return(nil, errors.New("grading backend down")).Once()

	_, err := c.Submit(context.Background(), TriggerManual)
	var gradingErr *GradingError
	require.ErrorAs(t, err, &gradingErr)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, StatusFailed, c.Snapshot().Status)

	// All uploads are confirmed; the retry goes straight to grading.
	store.On("GradeAttempt", mock.Anything, uint(42), models.EndReasonManual).
		Return(&models.GradeResult{TotalScore: 3, MaxScore: 3}, nil).Once()

	result, err := c.Submit(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 3.0, result.TotalScore)

	store.AssertExpectations(t)
}

func TestController_EditAfterFailedRoundReuploadsThatQuestion(t *testing.T) {
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())

	store.On("SubmitAnswer", mock.Anything, uint(42), uint(1), "student-1", "", []string(nil)).Return(nil).Once()
	store.On("SubmitAnswer", mock.Anything, uint(42), uint(2), "student-1", "", []string(nil)).Return(nil).Once()
	store.On("GradeAttempt", mock.Anything, uint(42), models.EndReasonManual).
		Return(nil, errors.New("grading backend down")).Once()

	_, err := c.Submit(context.Background(), TriggerManual)
	require.Error(t, err)

	// Revising an answer while Failed invalidates its confirmed upload.
	require.NoError(t, c.Answer(2, AnswerPatch{Text: strPtr("revised")}))

	store.On("SubmitAnswer", mock.Anything, uint(42), uint(2), "student-1", "revised", []string(nil)).Return(nil).Once()
	store.On("GradeAttempt", mock.Anything, uint(42), models.EndReasonManual).
		Return(&models.GradeResult{TotalScore: 1, MaxScore: 3}, nil).Once()

	_, err = c.Submit(context.Background(), TriggerManual)
	require.NoError(t, err)

	store.AssertExpectations(t)
}

func TestController_AnswerValidation(t *testing.T) {
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())

	t.Run("unknown question", func(t *testing.T) {
		err := c.Answer(99, AnswerPatch{Text: strPtr("x")})
		assert.ErrorIs(t, err, ErrQuestionNotFound)
	})

	t.Run("option ids on a text question", func(t *testing.T) {
		err := c.Answer(2, AnswerPatch{SelectedOptionIDs: idsPtr("opt-a")})
		assert.ErrorIs(t, err, ErrQuestionNotFound)
	})

	t.Run("rejected once completed", func(t *testing.T) {
		store.On("SubmitAnswer", mock.Anything, uint(42), mock.Anything, "student-1", mock.Anything, mock.Anything).Return(nil)
		store.On("GradeAttempt", mock.Anything, uint(42), mock.Anything).
			Return(&models.GradeResult{}, nil).Once()

		_, err := c.Submit(context.Background(), TriggerManual)
		require.NoError(t, err)

		err = c.Answer(1, AnswerPatch{Text: strPtr("too late")})
		assert.ErrorIs(t, err, ErrAttemptNotActive)
	})
}

func TestController_RequiredUnansweredNeverBlocksSubmit(t *testing.T) {
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())

	// Question 1 is required and unanswered; the snapshot surfaces that but
	// submission proceeds regardless.
	assert.Equal(t, 1, c.Snapshot().UnansweredRequired)

	store.On("SubmitAnswer", mock.Anything, uint(42), mock.Anything, "student-1", mock.Anything, mock.Anything).Return(nil).Times(2)
	store.On("GradeAttempt", mock.Anything, uint(42), models.EndReasonManual).
		Return(&models.GradeResult{TotalScore: 0, MaxScore: 3}, nil).Once()

	_, err := c.Submit(context.Background(), TriggerManual)
	require.NoError(t, err)

	store.AssertExpectations(t)
}

func TestController_FlagsNeverAffectUploads(t *testing.T) {
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())

	flagged, err := c.ToggleFlag(2)
	require.NoError(t, err)
	assert.True(t, flagged)

	// The flagged question still uploads its plain ledger entry.
	store.On("SubmitAnswer", mock.Anything, uint(42), uint(1), "student-1", "", []string(nil)).Return(nil).Once()
	store.On("SubmitAnswer", mock.Anything, uint(42), uint(2), "student-1", "", []string(nil)).Return(nil).Once()
	store.On("GradeAttempt", mock.Anything, uint(42), models.EndReasonManual).
		Return(&models.GradeResult{}, nil).Once()

	_, err = c.Submit(context.Background(), TriggerManual)
	require.NoError(t, err)

	store.AssertExpectations(t)
}

func TestController_TimerExpiryAutoSubmits(t *testing.T) {
	store := &MockStore{}
	publisher := testPublisher()
	c := newTestController(store, publisher, twoQuestions())
	c.timer = newCountdownTimerWithInterval(2 * time.Millisecond)
	c.session.RemainingSeconds = 2

	require.NoError(t, c.Answer(2, AnswerPatch{Text: strPtr("answered in time")}))

	store.On("SubmitAnswer", mock.Anything, uint(42), uint(1), "student-1", "", []string(nil)).Return(nil).Once()
	store.On("SubmitAnswer", mock.Anything, uint(42), uint(2), "student-1", "answered in time", []string(nil)).Return(nil).Once()
	store.On("GradeAttempt", mock.Anything, uint(42), models.EndReasonTimeout).
		Return(&models.GradeResult{TotalScore: 1, MaxScore: 3}, nil).Once()

	c.StartTimer()

	require.Eventually(t, func() bool {
		return c.Snapshot().Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)

	state := c.Snapshot()
	assert.Equal(t, 0, state.RemainingSeconds)
	assert.NotNil(t, state.Result)

	store.AssertExpectations(t)
}

func TestController_Abandon(t *testing.T) {
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())

	store.On("AbandonAttempt", mock.Anything, uint(42)).Return(nil).Once()
	require.NoError(t, c.Abandon(context.Background()))

	// A dead controller accepts nothing further.
	assert.ErrorIs(t, c.Answer(1, AnswerPatch{Text: strPtr("x")}), ErrAttemptNotActive)
	_, err := c.Submit(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, ErrAttemptNotActive)
	assert.ErrorIs(t, c.Abandon(context.Background()), ErrAttemptNotActive)

	store.AssertExpectations(t)
}

func TestController_SnapshotCounts(t *testing.T) {
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())

	require.NoError(t, c.Answer(1, AnswerPatch{SelectedOptionIDs: idsPtr("opt-b")}))
	c.MoveTo(1)
	_, err := c.ToggleFlag(1)
	require.NoError(t, err)

	state := c.Snapshot()
	assert.Equal(t, uint(42), state.AttemptID)
	assert.Equal(t, uint(7), state.EvaluationID)
	assert.Equal(t, 2, state.QuestionCount)
	assert.Equal(t, 1, state.AnsweredCount)
	assert.Equal(t, 0, state.UnansweredRequired)
	assert.Equal(t, 1, state.CurrentIndex)
	assert.Equal(t, []uint{1}, state.FlaggedQuestionIDs)
}

func TestController_AnswersReturnsEntryPerQuestion(t *testing.T) {
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())

	require.NoError(t, c.Answer(2, AnswerPatch{Text: strPtr("hello")}))

	answers := c.Answers()
	require.Len(t, answers, 2)
	assert.Equal(t, uint(1), answers[0].QuestionID)
	assert.True(t, answers[0].IsEmpty())
	assert.Equal(t, "hello", answers[1].Text)
}
