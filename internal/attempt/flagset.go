package attempt

import "sync"

// FlagSet tracks questions the student marked for review. Purely advisory:
// membership never affects submission payloads or grading.
type FlagSet struct {
	mu    sync.Mutex
	flags map[uint]struct{}
}

func NewFlagSet() *FlagSet {
	return &FlagSet{flags: make(map[uint]struct{})}
}

// Toggle flips membership for questionID and returns the new state.
func (f *FlagSet) Toggle(questionID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.flags[questionID]; ok {
		delete(f.flags, questionID)
		return false
	}
	f.flags[questionID] = struct{}{}
	return true
}

func (f *FlagSet) Contains(questionID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.flags[questionID]
	return ok
}

// IDs returns the flagged question ids in unspecified order.
func (f *FlagSet) IDs() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]uint, 0, len(f.flags))
	for id := range f.flags {
		ids = append(ids, id)
	}
	return ids
}
