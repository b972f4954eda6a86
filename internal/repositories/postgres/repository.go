// Package postgres implements the repository interfaces on PostgreSQL via gorm.
package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/repositories"
)

type repositoryManager struct {
	db        *gorm.DB
	question  repositories.QuestionRepository
	reference repositories.ReferenceRepository
	upload    repositories.UploadRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &repositoryManager{
		db:        db,
		question:  NewQuestionPostgreSQL(db),
		reference: NewReferencePostgreSQL(db),
		upload:    NewUploadPostgreSQL(db),
	}
}

func (r *repositoryManager) Question() repositories.QuestionRepository {
	return r.question
}

func (r *repositoryManager) Reference() repositories.ReferenceRepository {
	return r.reference
}

func (r *repositoryManager) Upload() repositories.UploadRepository {
	return r.upload
}

func (r *repositoryManager) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// AutoMigrate creates or updates the schema for every model this service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Trade{},
		&models.Level{},
		&models.Skill{},
		&models.QF{},
		&models.Category{},
		&models.Question{},
		&models.ImportJob{},
	)
}

// or returns tx when the caller is inside a transaction, the base handle
// otherwise.
func or(tx, db *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
