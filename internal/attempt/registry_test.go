package attempt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetScopedToOwner(t *testing.T) {
	registry := NewRegistry()
	c := newTestController(&MockStore{}, testPublisher(), twoQuestions())
	registry.Add(c)

	got, err := registry.Get(42, "student-1")
	require.NoError(t, err)
	assert.Same(t, c, got)

	// Another student cannot reach the controller, even with the right id.
	_, err = registry.Get(42, "student-2")
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = registry.Get(99, "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestRegistry_Remove(t *testing.T) {
	registry := NewRegistry()
	c := newTestController(&MockStore{}, testPublisher(), twoQuestions())
	registry.Add(c)

	registry.Remove(42)
	_, err := registry.Get(42, "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestRegistry_AbandonStopsAndEvicts(t *testing.T) {
	registry := NewRegistry()
	store := &MockStore{}
	c := newTestController(store, testPublisher(), twoQuestions())
	registry.Add(c)

	store.On("AbandonAttempt", mock.Anything, uint(42)).Return(nil).Once()

	require.NoError(t, registry.Abandon(context.Background(), 42, "student-1"))

	_, err := registry.Get(42, "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
	store.AssertExpectations(t)
}
