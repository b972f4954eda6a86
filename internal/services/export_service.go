package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/repositories"
)

// ExportService serializes questions back out of the bank. Exports are
// plaintext; only inbound bank files travel inside the crypto envelope.
type ExportService interface {
	ExportQuestionsToCSV(ctx context.Context, filters repositories.QuestionFilters) ([]byte, error)
	ExportQuestionsToExcel(ctx context.Context, filters repositories.QuestionFilters) ([]byte, error)
}

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
	}
}

var exportHeaders = []string{
	"text", "part", "marks", "options", "correct_answer",
	"trade", "level", "skill", "qf", "category", "is_active",
}

func (s *exportService) ExportQuestionsToCSV(ctx context.Context, filters repositories.QuestionFilters) ([]byte, error) {
	questions, err := s.getQuestionsForExport(ctx, filters)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	if err := writer.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, question := range questions {
		if err := writer.Write(s.questionToRow(question)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	s.logger.Info("Exported questions to CSV", "count", len(questions))
	return []byte(buf.String()), nil
}

func (s *exportService) ExportQuestionsToExcel(ctx context.Context, filters repositories.QuestionFilters) ([]byte, error) {
	questions, err := s.getQuestionsForExport(ctx, filters)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Questions"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet(f.GetSheetName(0))

	for i, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, question := range questions {
		for colIndex, value := range s.questionToRow(question) {
			cell, err := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Exported questions to Excel", "count", len(questions))
	return buf.Bytes(), nil
}

func (s *exportService) getQuestionsForExport(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, error) {
	listed, _, err := s.repo.Question().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions for export: %w", err)
	}

	// Re-fetch with reference links so labels export instead of bare IDs.
	questions := make([]*models.Question, 0, len(listed))
	for _, q := range listed {
		detailed, err := s.repo.Question().GetByIDWithDetails(ctx, nil, q.ID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				continue
			}
			return nil, fmt.Errorf("failed to get question %d: %w", q.ID, err)
		}
		questions = append(questions, detailed)
	}
	return questions, nil
}

func (s *exportService) questionToRow(question *models.Question) []string {
	row := make([]string, len(exportHeaders))

	row[0] = question.Text
	row[1] = string(question.Part)
	row[2] = strconv.FormatFloat(question.Marks, 'f', -1, 64)
	if question.Options != nil {
		row[3] = string(question.Options)
	}
	if question.CorrectAnswer != nil {
		row[4] = string(question.CorrectAnswer)
	}
	if question.Trade != nil {
		row[5] = question.Trade.Name
	}
	if question.Level != nil {
		row[6] = question.Level.Name
	}
	if question.Skill != nil {
		row[7] = question.Skill.Name
	}
	if question.QF != nil {
		row[8] = question.QF.Name
	}
	if question.Category != nil {
		row[9] = question.Category.Name
	}
	row[10] = strconv.FormatBool(question.IsActive)

	return row
}
