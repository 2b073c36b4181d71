package attempt

import (
	"sync"

	"github.com/classforge/attempt-service/internal/models"
)

// Answer is one captured answer in the ledger. SelectedOptionIDs is used
// only for single-choice questions and holds at most one meaningful entry
// (single-selection model).
type Answer struct {
	QuestionID        uint     `json:"question_id"`
	Text              string   `json:"text"`
	SelectedOptionIDs []string `json:"selected_option_ids,omitempty"`
}

func (a Answer) IsEmpty() bool {
	return a.Text == "" && len(a.SelectedOptionIDs) == 0
}

// AnswerPatch is a partial update. A nil field means "not present" and
// leaves the stored value untouched; a non-nil field overwrites it. This
// matters because a single-choice selection updates SelectedOptionIDs and
// its human-readable Text mirror in two separate UI events, and neither
// may clobber the other.
type AnswerPatch struct {
	Text              *string   `json:"text"`
	SelectedOptionIDs *[]string `json:"selected_option_ids"`
}

// Ledger is the in-memory per-question store of in-progress answers for one
// attempt. It is a pure local cache: no network side effects, writes are
// applied synchronously.
type Ledger struct {
	mu      sync.Mutex
	entries map[uint]Answer
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[uint]Answer)}
}

// Set merges patch into the entry for questionID, creating one if absent.
func (l *Ledger) Set(questionID uint, patch AnswerPatch) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[questionID]
	if !ok {
		entry = Answer{QuestionID: questionID}
	}
	if patch.Text != nil {
		entry.Text = *patch.Text
	}
	if patch.SelectedOptionIDs != nil {
		ids := make([]string, len(*patch.SelectedOptionIDs))
		copy(ids, *patch.SelectedOptionIDs)
		entry.SelectedOptionIDs = ids
	}
	l.entries[questionID] = entry
}

// Get returns the current answer for questionID, or an empty default.
func (l *Ledger) Get(questionID uint) Answer {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[questionID]; ok {
		return entry
	}
	return Answer{QuestionID: questionID}
}

// AnsweredCount returns how many of the given questions have a non-empty
// answer in the ledger.
func (l *Ledger) AnsweredCount(questions []models.Question) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, q := range questions {
		if entry, ok := l.entries[q.ID]; ok && !entry.IsEmpty() {
			count++
		}
	}
	return count
}
