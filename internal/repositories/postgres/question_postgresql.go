package postgres

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := or(tx, q.db).WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	if err := or(tx, q.db).WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

// GetByIDWithDetails loads the question with its reference links resolved.
func (q *QuestionPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	err := or(tx, q.db).WithContext(ctx).
		Preload("Trade").
		Preload("Level").
		Preload("Skill").
		Preload("QF").
		Preload("Category").
		First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	query := or(tx, q.db).WithContext(ctx).Model(&models.Question{})

	if filters.Part != nil {
		query = query.Where("part = ?", *filters.Part)
	}
	if filters.TradeID != nil {
		query = query.Where("trade_id = ?", *filters.TradeID)
	}
	if filters.LevelID != nil {
		query = query.Where("level_id = ?", *filters.LevelID)
	}
	if filters.SkillID != nil {
		query = query.Where("skill_id = ?", *filters.SkillID)
	}
	if filters.QFID != nil {
		query = query.Where("qf_id = ?", *filters.QFID)
	}
	if filters.CategoryID != nil {
		query = query.Where("category_id = ?", *filters.CategoryID)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.Search != "" {
		query = query.Where("text ILIKE ?", "%"+filters.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questions: %w", err)
	}

	query = applyQuestionSort(query, filters)
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var questions []*models.Question
	if err := query.Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, total, nil
}

// ExistsByText checks for a question with case-insensitive identical text,
// the dedup key used by skip-existing imports.
func (q *QuestionPostgreSQL) ExistsByText(ctx context.Context, tx *gorm.DB, text string) (bool, error) {
	var count int64
	err := or(tx, q.db).WithContext(ctx).
		Model(&models.Question{}).
		Where("LOWER(text) = LOWER(?)", strings.TrimSpace(text)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check question text: %w", err)
	}
	return count > 0, nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := or(tx, q.db).WithContext(ctx).Delete(&models.Question{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete question: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func applyQuestionSort(query *gorm.DB, filters repositories.QuestionFilters) *gorm.DB {
	sortBy := filters.SortBy
	switch sortBy {
	case "part", "marks", "created_at":
	default:
		sortBy = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(filters.SortOrder, "asc") {
		order = "ASC"
	}
	return query.Order(fmt.Sprintf("%s %s", sortBy, order))
}
