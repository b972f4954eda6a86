package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/exam-portal/question-import-service/internal/cache"
	"github.com/exam-portal/question-import-service/internal/crypto"
	"github.com/exam-portal/question-import-service/internal/events"
	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/parser"
	"github.com/exam-portal/question-import-service/internal/repositories"
	"github.com/exam-portal/question-import-service/internal/resolver"
	"github.com/exam-portal/question-import-service/internal/validator"
)

// maxReportedErrors caps the error list embedded in a report; the total error
// count is always reported separately.
const maxReportedErrors = 20

const reportCacheTTL = time.Hour

// ImportService runs the encrypted question-bank import pipeline: envelope
// detection and decryption, tolerant parsing, reference resolution, and
// transactional persistence.
type ImportService interface {
	// ImportBatch imports one uploaded envelope. Envelope and parse failures
	// abort the whole batch; record-level failures are reported and skipped.
	ImportBatch(ctx context.Context, data []byte, opts ImportOptions) (*ImportReport, error)

	// ValidateUpload trial-decrypts and parses an envelope without persisting
	// anything, returning the number of importable records.
	ValidateUpload(ctx context.Context, data []byte, password string, kind parser.SourceKind) (int, error)

	GetImportJob(ctx context.Context, jobID string) (*models.ImportJob, error)
	ListImportJobs(ctx context.Context, filters repositories.ImportJobFilters) ([]*models.ImportJob, int64, error)

	// VerifyUploadPassword checks a password against the stored verifier of a
	// past upload. The plaintext password itself is never persisted.
	VerifyUploadPassword(ctx context.Context, jobID, password string) (bool, error)
}

// ImportOptions carries the caller-provided knobs for one batch.
type ImportOptions struct {
	FileName      string
	UserID        string
	Password      string
	SourceKind    parser.SourceKind
	CreateMissing bool
	SkipExisting  bool
}

// ImportReport is the structured outcome handed back to the caller.
type ImportReport struct {
	JobID        string                  `json:"job_id"`
	Status       models.ImportJobStatus  `json:"status"`
	TotalRecords int                     `json:"total_records"`
	Created      int                     `json:"created"`
	Skipped      int                     `json:"skipped"`
	ErrorCount   int                     `json:"error_count"`
	Errors       []models.ImportRowError `json:"errors"`
	Warnings     []models.ImportRowError `json:"warnings,omitempty"`
}

type importService struct {
	repo      repositories.Repository
	resolver  *resolver.Resolver
	publisher events.EventPublisher
	cache     cache.CacheService
	validator *validator.Validator
	logger    *slog.Logger
}

func NewImportService(
	repo repositories.Repository,
	refResolver *resolver.Resolver,
	publisher events.EventPublisher,
	cacheService cache.CacheService,
	v *validator.Validator,
	logger *slog.Logger,
) ImportService {
	return &importService{
		repo:      repo,
		resolver:  refResolver,
		publisher: publisher,
		cache:     cacheService,
		validator: v,
		logger:    logger,
	}
}

func (s *importService) ImportBatch(ctx context.Context, data []byte, opts ImportOptions) (*ImportReport, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	if !crypto.IsEnvelope(data) {
		return nil, ErrNotEncrypted
	}

	job, err := s.createJob(ctx, data, opts)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Starting import batch",
		"job_id", job.ID,
		"file_name", opts.FileName,
		"size", len(data),
		"source_kind", opts.SourceKind)

	result, err := s.decryptAndParse(data, opts.Password, opts.SourceKind)
	if err != nil {
		s.failJob(ctx, job, err)
		return nil, err
	}

	report := &ImportReport{
		JobID:        job.ID,
		TotalRecords: len(result.Records),
		Skipped:      result.Skipped,
	}

	var allErrors []models.ImportRowError

	// One transaction for the whole persistence pass: a savepoint per record
	// lets a single bad record roll back alone while a systemic failure
	// still rolls back everything.
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		for i, record := range result.Records {
			if opts.SkipExisting {
				exists, err := s.repo.Question().ExistsByText(ctx, tx, record.Text)
				if err != nil {
					return fmt.Errorf("failed to check existing question: %w", err)
				}
				if exists {
					report.Skipped++
					continue
				}
			}

			if part := models.QuestionPart(record.Part); !part.IsKnown() {
				report.Warnings = append(report.Warnings, models.ImportRowError{
					Index:   i,
					Message: "unrecognized part code, imported as given",
					Value:   record.Part,
				})
			}

			savepoint := fmt.Sprintf("record_%d", i)
			if err := tx.SavePoint(savepoint).Error; err != nil {
				return fmt.Errorf("failed to create savepoint: %w", err)
			}

			if err := s.persistRecord(ctx, tx, i, record, opts.CreateMissing, report); err != nil {
				if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
					return fmt.Errorf("failed to roll back record %d: %w", i, rbErr)
				}
				allErrors = append(allErrors, models.ImportRowError{
					Index:   i,
					Message: err.Error(),
				})
				continue
			}
			report.Created++
		}
		return nil
	})
	if err != nil {
		s.failJob(ctx, job, err)
		return nil, fmt.Errorf("import transaction failed: %w", err)
	}

	report.ErrorCount = len(allErrors)
	if len(allErrors) > maxReportedErrors {
		report.Errors = allErrors[:maxReportedErrors]
	} else {
		report.Errors = allErrors
	}
	report.Status = models.ImportCompleted

	s.completeJob(ctx, job, report, allErrors)
	s.publishOutcome(ctx, job, report)
	s.cacheReport(ctx, report)

	s.logger.Info("Import batch completed",
		"job_id", job.ID,
		"total_records", report.TotalRecords,
		"created", report.Created,
		"skipped", report.Skipped,
		"errors", report.ErrorCount)

	return report, nil
}

func (s *importService) ValidateUpload(ctx context.Context, data []byte, password string, kind parser.SourceKind) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyUpload
	}
	if !crypto.IsEnvelope(data) {
		return 0, ErrNotEncrypted
	}
	result, err := s.decryptAndParse(data, password, kind)
	if err != nil {
		return 0, err
	}
	return len(result.Records), nil
}

func (s *importService) GetImportJob(ctx context.Context, jobID string) (*models.ImportJob, error) {
	job, err := s.repo.Upload().GetByID(ctx, nil, jobID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrImportJobNotFound
		}
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}
	return job, nil
}

func (s *importService) ListImportJobs(ctx context.Context, filters repositories.ImportJobFilters) ([]*models.ImportJob, int64, error) {
	return s.repo.Upload().List(ctx, nil, filters)
}

func (s *importService) VerifyUploadPassword(ctx context.Context, jobID, password string) (bool, error) {
	job, err := s.GetImportJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if len(job.PasswordSalt) == 0 || len(job.PasswordVerifier) == 0 {
		return false, nil
	}
	return crypto.VerifyPassword(password, job.PasswordSalt, job.PasswordVerifier), nil
}

// ===== HELPERS =====

// decryptAndParse opens the envelope and decodes the plaintext. Crypto errors
// propagate unchanged so callers can distinguish wrong-password from
// malformed uploads.
func (s *importService) decryptAndParse(data []byte, password string, kind parser.SourceKind) (*parser.Result, error) {
	plaintext, err := crypto.Decrypt(data, password)
	if err != nil {
		return nil, err
	}

	// A broken envelope implementation could authenticate garbage; the
	// workbook signature check catches that before excelize does.
	if kind == parser.SourceSpreadsheet && !parser.IsSpreadsheet(plaintext) {
		return nil, ErrPayloadNotWorkbook
	}

	return parser.Parse(parser.Source{Kind: kind, Data: plaintext})
}

// persistRecord resolves references, builds the question and inserts it.
// Shape problems (missing options on a choice part, non-boolean true/false
// answer) degrade to report warnings; the row still imports, matching the
// tolerance of the bank files this pipeline inherits.
func (s *importService) persistRecord(ctx context.Context, tx *gorm.DB, index int, record parser.RawRecord, createMissing bool, report *ImportReport) error {
	links := map[models.ReferenceKind]string{
		models.RefTrade:    record.Trade,
		models.RefLevel:    record.Level,
		models.RefSkill:    record.Skill,
		models.RefQF:       record.QF,
		models.RefCategory: record.Category,
	}
	resolved := make(map[models.ReferenceKind]*uint, len(links))
	for kind, label := range links {
		id, err := s.resolver.Resolve(ctx, tx, kind, label, createMissing)
		if err != nil {
			return err
		}
		resolved[kind] = id
	}

	question := &models.Question{
		Text:       record.Text,
		Part:       models.QuestionPart(record.Part),
		Marks:      record.Marks,
		TradeID:    resolved[models.RefTrade],
		LevelID:    resolved[models.RefLevel],
		SkillID:    resolved[models.RefSkill],
		QFID:       resolved[models.RefQF],
		CategoryID: resolved[models.RefCategory],
		IsActive:   true,
	}

	var err error
	if question.Options, err = toJSON(record.Options); err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}
	if question.CorrectAnswer, err = toJSON(record.CorrectAnswer); err != nil {
		return fmt.Errorf("failed to encode correct answer: %w", err)
	}

	for _, issue := range s.validator.Question().ValidateQuestion(question) {
		report.Warnings = append(report.Warnings, models.ImportRowError{
			Index:   index,
			Message: issue.Field + " " + issue.Message,
		})
	}

	return s.repo.Question().Create(ctx, tx, question)
}

func toJSON(value any) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func (s *importService) createJob(ctx context.Context, data []byte, opts ImportOptions) (*models.ImportJob, error) {
	salt := make([]byte, crypto.SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate verifier salt: %w", err)
	}

	job := &models.ImportJob{
		ID:               uuid.NewString(),
		UserID:           opts.UserID,
		FileName:         opts.FileName,
		FileSize:         int64(len(data)),
		PasswordSalt:     salt,
		PasswordVerifier: crypto.MakeVerifier(opts.Password, salt),
		Status:           models.ImportProcessing,
	}
	if err := s.repo.Upload().Create(ctx, nil, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *importService) completeJob(ctx context.Context, job *models.ImportJob, report *ImportReport, allErrors []models.ImportRowError) {
	now := time.Now().UTC()
	job.Status = models.ImportCompleted
	job.TotalRecords = report.TotalRecords
	job.CreatedCount = report.Created
	job.SkippedCount = report.Skipped
	job.ErrorCount = report.ErrorCount
	job.CompletedAt = &now
	job.Errors, _ = toJSON(allErrors)
	job.Warnings, _ = toJSON(report.Warnings)

	if err := s.repo.Upload().Update(ctx, nil, job); err != nil {
		s.logger.Error("Failed to update import job", "job_id", job.ID, "error", err)
	}
}

func (s *importService) failJob(ctx context.Context, job *models.ImportJob, cause error) {
	now := time.Now().UTC()
	job.Status = models.ImportFailed
	if IsEnvelopeError(cause) {
		job.Status = models.ImportValidationFailed
	}
	job.CompletedAt = &now
	job.Errors, _ = toJSON([]models.ImportRowError{{Message: cause.Error()}})

	if err := s.repo.Upload().Update(ctx, nil, job); err != nil {
		s.logger.Error("Failed to mark import job failed", "job_id", job.ID, "error", err)
	}

	event := events.NewImportEvent(events.ImportFailed, job.ID, job.FileName, job.UserID)
	event.Reason = cause.Error()
	if err := s.publisher.PublishImportEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish import failure event", "job_id", job.ID, "error", err)
	}
}

func (s *importService) publishOutcome(ctx context.Context, job *models.ImportJob, report *ImportReport) {
	event := events.NewImportEvent(events.ImportCompleted, job.ID, job.FileName, job.UserID)
	event.Created = report.Created
	event.Skipped = report.Skipped
	event.Errors = report.ErrorCount
	if err := s.publisher.PublishImportEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish import event", "job_id", job.ID, "error", err)
	}
}

func (s *importService) cacheReport(ctx context.Context, report *ImportReport) {
	if s.cache == nil {
		return
	}
	key := "import:report:" + report.JobID
	if err := s.cache.Set(ctx, key, report, reportCacheTTL); err != nil {
		s.logger.Warn("Failed to cache import report", "job_id", report.JobID, "error", err)
	}
}
