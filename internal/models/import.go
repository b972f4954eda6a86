package models

import (
	"time"

	"gorm.io/datatypes"
)

type ImportJobStatus string

const (
	ImportPending          ImportJobStatus = "pending"
	ImportProcessing       ImportJobStatus = "processing"
	ImportCompleted        ImportJobStatus = "completed"
	ImportFailed           ImportJobStatus = "failed"
	ImportValidationFailed ImportJobStatus = "validation_failed"
)

// ImportJob is the persisted record of one uploaded question-bank file and
// the outcome of its import run.
type ImportJob struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"` // UUID
	UserID string `json:"user_id" gorm:"index;size:255"`

	// File info
	FileName string `json:"file_name" gorm:"not null;size:255"`
	FileSize int64  `json:"file_size" gorm:"not null"`

	// The decryption password is never persisted. Only a salted PBKDF2
	// verifier is stored so a later re-verification can check a password
	// without being able to recover it.
	PasswordSalt     []byte `json:"-" gorm:"type:bytea"`
	PasswordVerifier []byte `json:"-" gorm:"type:bytea"`

	Status ImportJobStatus `json:"status" gorm:"default:pending;index"`

	// Outcome
	TotalRecords int            `json:"total_records"`
	CreatedCount int            `json:"created_count"`
	SkippedCount int            `json:"skipped_count"`
	ErrorCount   int            `json:"error_count"`
	Errors       datatypes.JSON `json:"errors" gorm:"type:jsonb"`   // []ImportRowError
	Warnings     datatypes.JSON `json:"warnings" gorm:"type:jsonb"` // []ImportRowError

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (ImportJob) TableName() string {
	return "import_jobs"
}

// ImportRowError describes a single record-level failure or warning inside an
// otherwise successful batch.
type ImportRowError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}
