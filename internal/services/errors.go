package services

import (
	"errors"

	"github.com/exam-portal/question-import-service/internal/crypto"
	apperrors "github.com/exam-portal/question-import-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// Import specific errors
	ErrImportJobNotFound  = errors.New("import job not found")
	ErrEmptyUpload        = errors.New("uploaded file is empty")
	ErrPayloadNotWorkbook = errors.New("decrypted payload is not a spreadsheet workbook")

	// Question specific errors
	ErrQuestionNotFound = errors.New("question not found")

	// Envelope errors are shared with the crypto package so callers can
	// branch on the same sentinels end to end.
	ErrNotEncrypted  = crypto.ErrNotEncrypted
	ErrInvalidFormat = crypto.ErrInvalidFormat
	ErrWrongPassword = crypto.ErrAuthentication
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// ===== ERROR HELPERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrImportJobNotFound)
}

// IsEnvelopeError checks if error came from the crypto envelope layer
func IsEnvelopeError(err error) bool {
	return errors.Is(err, ErrNotEncrypted) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrWrongPassword)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}
