package events

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAttemptEvent(t *testing.T) {
	event := NewAttemptEvent(EventAttemptCompleted, 42, 7, "student-1", map[string]interface{}{
		"total_score": 8.0,
	})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventAttemptCompleted, event.Type)
	assert.Equal(t, uint(42), event.AttemptID)
	assert.Equal(t, uint(7), event.EvaluationID)
	assert.Equal(t, "student-1", event.StudentID)
	assert.Equal(t, "attempt-service", event.Source)
	assert.Equal(t, "1.0", event.Version)
	assert.False(t, event.Timestamp.IsZero())

	// Ids are unique per event
	other := NewAttemptEvent(EventAttemptCompleted, 42, 7, "student-1", nil)
	assert.NotEqual(t, event.ID, other.ID)
}

func TestMockEventPublisher(t *testing.T) {
	publisher := NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	require.NoError(t, publisher.PublishAttemptEvent(ctx, NewAttemptEvent(EventAttemptStarted, 1, 7, "student-1", nil)))
	require.NoError(t, publisher.PublishAttemptEvent(ctx, NewAttemptEvent(EventAttemptAbandoned, 1, 7, "student-1", nil)))

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 2)
	assert.Equal(t, EventAttemptStarted, published[0].Type)
	assert.Equal(t, EventAttemptAbandoned, published[1].Type)

	publisher.ClearEvents()
	assert.Empty(t, publisher.GetPublishedEvents())
	assert.NoError(t, publisher.Close())
}
