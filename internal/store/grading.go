package store

import (
	"encoding/json"
	"strings"

	"github.com/classforge/attempt-service/internal/models"
)

// gradeOutcome is the result of scoring one question's answer.
type gradeOutcome struct {
	Points    float64
	MaxPoints float64
	IsCorrect *bool // nil when the kind needs manual review
}

// gradeAnswer routes by question kind. Single-choice and true/false are
// scored against the stored answer key, short text by normalized match.
// Long text needs teacher review and earns no automatic points; its maximum
// still counts toward the attempt's max score.
func gradeAnswer(question models.Question, answer *models.StudentAnswer) gradeOutcome {
	outcome := gradeOutcome{MaxPoints: question.Points}

	if answer == nil {
		if question.Kind != models.KindLongText {
			outcome.IsCorrect = boolPtr(false)
		}
		return outcome
	}

	switch question.Kind {
	case models.KindSingleChoice:
		return gradeSingleChoice(question, answer)
	case models.KindTrueFalse:
		return gradeTextMatch(question, answer.Text)
	case models.KindShortText:
		return gradeTextMatch(question, answer.Text)
	case models.KindLongText:
		return outcome
	default:
		return outcome
	}
}

func gradeSingleChoice(question models.Question, answer *models.StudentAnswer) gradeOutcome {
	outcome := gradeOutcome{MaxPoints: question.Points, IsCorrect: boolPtr(false)}

	var selected []string
	if len(answer.SelectedOptionIDs) > 0 {
		if err := json.Unmarshal(answer.SelectedOptionIDs, &selected); err != nil {
			return outcome
		}
	}
	if len(selected) == 0 {
		return outcome
	}

	var correct []string
	if len(question.CorrectOptionIDs) > 0 {
		if err := json.Unmarshal(question.CorrectOptionIDs, &correct); err != nil {
			return outcome
		}
	}

	// Single-selection model: only the first selected option is meaningful.
	for _, id := range correct {
		if selected[0] == id {
			outcome.Points = question.Points
			outcome.IsCorrect = boolPtr(true)
			return outcome
		}
	}
	return outcome
}

func gradeTextMatch(question models.Question, text string) gradeOutcome {
	outcome := gradeOutcome{MaxPoints: question.Points, IsCorrect: boolPtr(false)}

	if question.CorrectText == nil {
		return outcome
	}
	if normalizeAnswer(text) == normalizeAnswer(*question.CorrectText) && normalizeAnswer(text) != "" {
		outcome.Points = question.Points
		outcome.IsCorrect = boolPtr(true)
	}
	return outcome
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func boolPtr(b bool) *bool {
	return &b
}
