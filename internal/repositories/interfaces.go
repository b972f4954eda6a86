package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/exam-portal/question-import-service/internal/models"
)

// Repositories take an optional transaction handle; a nil tx means the
// repository runs against its own connection. The import orchestrator passes
// one shared tx through the whole batch so savepoints can isolate records.

// ===== SHARED FILTER STRUCTS =====

type QuestionFilters struct {
	Part       *models.QuestionPart `json:"part"`
	TradeID    *uint                `json:"trade_id"`
	LevelID    *uint                `json:"level_id"`
	SkillID    *uint                `json:"skill_id"`
	QFID       *uint                `json:"qf_id"`
	CategoryID *uint                `json:"category_id"`
	IsActive   *bool                `json:"is_active"`
	Search     string               `json:"search"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
	SortBy     string               `json:"sort_by"`    // "created_at", "part", "marks"
	SortOrder  string               `json:"sort_order"` // "asc", "desc"
}

type ImportJobFilters struct {
	Status   *models.ImportJobStatus `json:"status"`
	UserID   *string                 `json:"user_id"`
	DateFrom *time.Time              `json:"date_from"`
	DateTo   *time.Time              `json:"date_to"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
}

// ReferenceItem is the flat row shape shared by every reference-entity kind.
type ReferenceItem struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// ===== REPOSITORY INTERFACES =====

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	List(ctx context.Context, tx *gorm.DB, filters QuestionFilters) ([]*models.Question, int64, error)
	ExistsByText(ctx context.Context, tx *gorm.DB, text string) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
}

type ReferenceRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, id uint) (*uint, error)
	FindByLabel(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, label string) (*uint, error)
	// Create has upsert semantics: a unique-name collision resolves to the
	// already-existing row.
	Create(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, name string) (uint, error)
	List(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind) ([]ReferenceItem, error)
}

type UploadRepository interface {
	Create(ctx context.Context, tx *gorm.DB, job *models.ImportJob) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ImportJob, error)
	Update(ctx context.Context, tx *gorm.DB, job *models.ImportJob) error
	List(ctx context.Context, tx *gorm.DB, filters ImportJobFilters) ([]*models.ImportJob, int64, error)
}

// Repository bundles the per-entity repositories and the transaction helper.
type Repository interface {
	Question() QuestionRepository
	Reference() ReferenceRepository
	Upload() UploadRepository

	// Transaction runs fn inside a single database transaction. fn receives
	// the tx handle to pass down to repository calls.
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// IsNotFoundError reports whether err is a gorm record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
