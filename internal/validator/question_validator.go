package validator

import (
	"encoding/json"

	apperrors "github.com/exam-portal/question-import-service/internal/errors"
	"github.com/exam-portal/question-import-service/internal/models"
)

// QuestionValidator checks the shape rules that depend on the question part:
// choice-based parts need an options list, free-text parts must not carry one.
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// optionsShape is the stored options structure for choice-based parts.
type optionsShape struct {
	Choices []json.RawMessage `json:"choices"`
}

// ValidateQuestion applies part-dependent rules on top of struct tags.
// Unknown part codes pass; they are reported as soft warnings upstream.
func (qv *QuestionValidator) ValidateQuestion(question *models.Question) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors

	if question.Marks <= 0 {
		errs = append(errs, apperrors.ValidationError{
			Field:   "marks",
			Message: "must be a positive number",
			Value:   question.Marks,
		})
	}

	if question.Part.IsChoiceBased() {
		if len(question.Options) == 0 {
			errs = append(errs, apperrors.ValidationError{
				Field:   "options",
				Message: "required for choice-based parts",
			})
		} else if shapeErr := validateOptionsShape(question.Options); shapeErr != nil {
			errs = append(errs, *shapeErr)
		}
	}

	switch question.Part {
	case models.PartLongAnswer, models.PartFillInBlank:
		if len(question.Options) > 0 {
			errs = append(errs, apperrors.ValidationError{
				Field:   "options",
				Message: "not allowed for free-text parts",
			})
		}
	case models.PartTrueFalse:
		if len(question.CorrectAnswer) > 0 {
			var answer any
			if err := json.Unmarshal(question.CorrectAnswer, &answer); err == nil {
				if _, ok := answer.(bool); !ok {
					errs = append(errs, apperrors.ValidationError{
						Field:   "correct_answer",
						Message: "must be a boolean for true/false parts",
						Value:   answer,
					})
				}
			}
		}
	}

	return errs
}

func validateOptionsShape(raw []byte) *apperrors.ValidationError {
	var shape optionsShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return &apperrors.ValidationError{
			Field:   "options",
			Message: "must be an object with a choices list",
		}
	}
	if len(shape.Choices) < 2 {
		return &apperrors.ValidationError{
			Field:   "options",
			Message: "must offer at least 2 choices",
		}
	}
	return nil
}
