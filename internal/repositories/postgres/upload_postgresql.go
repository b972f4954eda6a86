package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/repositories"
)

type UploadPostgreSQL struct {
	db *gorm.DB
}

func NewUploadPostgreSQL(db *gorm.DB) repositories.UploadRepository {
	return &UploadPostgreSQL{db: db}
}

func (u *UploadPostgreSQL) Create(ctx context.Context, tx *gorm.DB, job *models.ImportJob) error {
	if err := or(tx, u.db).WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

func (u *UploadPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := or(tx, u.db).WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (u *UploadPostgreSQL) Update(ctx context.Context, tx *gorm.DB, job *models.ImportJob) error {
	if err := or(tx, u.db).WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to update import job: %w", err)
	}
	return nil
}

func (u *UploadPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ImportJobFilters) ([]*models.ImportJob, int64, error) {
	query := or(tx, u.db).WithContext(ctx).Model(&models.ImportJob{})

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count import jobs: %w", err)
	}

	query = query.Order("created_at DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var jobs []*models.ImportJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list import jobs: %w", err)
	}
	return jobs, total, nil
}
