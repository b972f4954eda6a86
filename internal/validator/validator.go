// Package validator centralizes struct-tag and question-specific validation.
package validator

import (
	"github.com/go-playground/validator/v10"

	apperrors "github.com/exam-portal/question-import-service/internal/errors"
	"github.com/exam-portal/question-import-service/internal/models"
)

// Validator combines struct-tag validation with question business rules.
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		return apperrors.ToValidationErrors(err)
	}
	return nil
}

// Question returns the question validator
func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

func registerCustomValidators(v *validator.Validate) {
	v.RegisterValidation("question_part", func(fl validator.FieldLevel) bool {
		return models.QuestionPart(fl.Field().String()).IsKnown()
	})

	v.RegisterValidation("reference_kind", func(fl validator.FieldLevel) bool {
		kind := models.ReferenceKind(fl.Field().String())
		for _, known := range models.ReferenceKinds {
			if kind == known {
				return true
			}
		}
		return false
	})

	v.RegisterValidation("source_kind", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "spreadsheet", "structured":
			return true
		}
		return false
	})
}
