package attempt

import (
	"context"
	"sync"
)

// Registry holds the live controllers for in-progress attempts, keyed by
// attempt id. Each controller is owned by exactly one student's attempt and
// never shared across attempts.
type Registry struct {
	mu          sync.RWMutex
	controllers map[uint]*Controller
}

func NewRegistry() *Registry {
	return &Registry{controllers: make(map[uint]*Controller)}
}

func (r *Registry) Add(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.controllers[c.AttemptID()] = c
}

// Get returns the controller for attemptID, scoped to its owning student.
func (r *Registry) Get(attemptID uint, studentID string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.controllers[attemptID]
	if !ok || c.StudentID() != studentID {
		return nil, ErrAttemptNotFound
	}
	return c, nil
}

func (r *Registry) Remove(attemptID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.controllers, attemptID)
}

// Abandon stops and evicts a Ready controller on behalf of a host that is
// navigating away.
func (r *Registry) Abandon(ctx context.Context, attemptID uint, studentID string) error {
	c, err := r.Get(attemptID, studentID)
	if err != nil {
		return err
	}
	if err := c.Abandon(ctx); err != nil {
		return err
	}
	r.Remove(attemptID)
	return nil
}
