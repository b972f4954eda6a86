package events

import (
	"time"

	"github.com/google/uuid"
)

type ImportEventType string

const (
	ImportStarted   ImportEventType = "import.started"
	ImportCompleted ImportEventType = "import.completed"
	ImportFailed    ImportEventType = "import.failed"
)

// ImportEvent is published on the import lifecycle topic so downstream
// consumers (notifications, audit) can react to batch outcomes.
type ImportEvent struct {
	ID        string          `json:"id"`
	Type      ImportEventType `json:"type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`

	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
	UserID   string `json:"user_id,omitempty"`

	// Outcome fields, zero for non-terminal events.
	Created int    `json:"created,omitempty"`
	Skipped int    `json:"skipped,omitempty"`
	Errors  int    `json:"errors,omitempty"`
	Reason  string `json:"reason,omitempty"` // failure kind for import.failed
}

// NewImportEvent builds a lifecycle event with a fresh ID and timestamp.
func NewImportEvent(eventType ImportEventType, jobID, fileName, userID string) *ImportEvent {
	return &ImportEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "question-import-service",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		JobID:     jobID,
		FileName:  fileName,
		UserID:    userID,
	}
}
