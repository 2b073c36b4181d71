package validator

import (
	"errors"
	"testing"

	apperrors "github.com/classforge/attempt-service/internal/errors"
	"github.com/classforge/attempt-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type questionPayload struct {
	Kind models.QuestionKind `json:"kind" validate:"required,question_kind"`
	Text string              `json:"text" validate:"required"`
}

type rolePayload struct {
	Role models.UserRole `json:"role" validate:"required,user_role"`
}

func TestValidator_QuestionKind(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		kind  models.QuestionKind
		valid bool
	}{
		{"single choice", models.KindSingleChoice, true},
		{"true false", models.KindTrueFalse, true},
		{"short text", models.KindShortText, true},
		{"long text", models.KindLongText, true},
		{"unknown kind", "essay", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&questionPayload{Kind: tt.kind, Text: "What is it?"})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidator_UserRole(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&rolePayload{Role: models.RoleTeacher}))
	assert.Error(t, v.Validate(&rolePayload{Role: "superuser"}))
}

func TestValidator_ReportsJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(&questionPayload{Kind: models.KindShortText})

	var errs apperrors.ValidationErrors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "text", errs[0].Field)
	assert.Equal(t, "required", errs[0].Rule)
}
