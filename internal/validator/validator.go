package validator

import (
	"reflect"
	"strings"

	apperrors "github.com/classforge/attempt-service/internal/errors"
	"github.com/classforge/attempt-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps struct-tag validation with the service's custom rules.
type Validator struct {
	structValidator *validator.Validate
}

// New creates the shared validator instance with custom rules registered.
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{structValidator: structValidator}
}

// Validate validates struct tags and returns the service's validation error
// type on failure.
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_kind", validateQuestionKind)
	validate.RegisterValidation("user_role", validateUserRole)

	// Report json field names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionKind(fl validator.FieldLevel) bool {
	validKinds := []models.QuestionKind{
		models.KindSingleChoice,
		models.KindTrueFalse,
		models.KindShortText,
		models.KindLongText,
	}

	value := fl.Field().String()
	for _, kind := range validKinds {
		if string(kind) == value {
			return true
		}
	}
	return false
}

func validateUserRole(fl validator.FieldLevel) bool {
	validRoles := []models.UserRole{
		models.RoleStudent,
		models.RoleTeacher,
		models.RoleAdmin,
	}

	value := fl.Field().String()
	for _, role := range validRoles {
		if string(role) == value {
			return true
		}
	}
	return false
}
