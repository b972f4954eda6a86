package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/repositories"
)

// QuestionService exposes the read/manage side of the imported question bank.
type QuestionService interface {
	GetQuestion(ctx context.Context, id uint) (*models.Question, error)
	GetQuestionWithDetails(ctx context.Context, id uint) (*models.Question, error)
	ListQuestions(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error)
	DeleteQuestion(ctx context.Context, id uint) error
	ListReferences(ctx context.Context, kind models.ReferenceKind) ([]repositories.ReferenceItem, error)
	CreateReference(ctx context.Context, kind models.ReferenceKind, name string) (uint, error)
}

type questionService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewQuestionService(repo repositories.Repository, logger *slog.Logger) QuestionService {
	return &questionService{
		repo:   repo,
		logger: logger,
	}
}

func (s *questionService) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return question, nil
}

func (s *questionService) GetQuestionWithDetails(ctx context.Context, id uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByIDWithDetails(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question details: %w", err)
	}
	return question, nil
}

func (s *questionService) ListQuestions(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	return s.repo.Question().List(ctx, nil, filters)
}

func (s *questionService) DeleteQuestion(ctx context.Context, id uint) error {
	if err := s.repo.Question().Delete(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to delete question: %w", err)
	}
	s.logger.Info("Deleted question", "question_id", id)
	return nil
}

func (s *questionService) ListReferences(ctx context.Context, kind models.ReferenceKind) ([]repositories.ReferenceItem, error) {
	return s.repo.Reference().List(ctx, nil, kind)
}

// CreateReference pre-seeds a reference entity by name, the administrator
// path that avoids relying on lazy creation during imports.
func (s *questionService) CreateReference(ctx context.Context, kind models.ReferenceKind, name string) (uint, error) {
	if name == "" {
		return 0, NewValidationError("name", "is required", name)
	}
	id, err := s.repo.Reference().Create(ctx, nil, kind, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	s.logger.Info("Created reference entity", "kind", kind, "name", name, "id", id)
	return id, nil
}
