package attempt

import "sync"

// Cursor is the current question index with bounds-checked moves.
// Out-of-range requests clamp silently: the cursor only affects which
// question is displayed, never submission correctness.
type Cursor struct {
	mu    sync.Mutex
	index int
	count int
}

func NewCursor(questionCount int) *Cursor {
	return &Cursor{count: questionCount}
}

func (c *Cursor) MoveTo(index int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = c.clamp(index)
	return c.index
}

func (c *Cursor) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = c.clamp(c.index + 1)
	return c.index
}

func (c *Cursor) Previous() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = c.clamp(c.index - 1)
	return c.index
}

func (c *Cursor) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.index
}

func (c *Cursor) clamp(index int) int {
	if index < 0 {
		return 0
	}
	if index > c.count-1 {
		if c.count == 0 {
			return 0
		}
		return c.count - 1
	}
	return index
}
