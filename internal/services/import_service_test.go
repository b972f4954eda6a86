package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/exam-portal/question-import-service/internal/crypto"
	"github.com/exam-portal/question-import-service/internal/events"
	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/parser"
	"github.com/exam-portal/question-import-service/internal/repositories"
	"github.com/exam-portal/question-import-service/internal/resolver"
	"github.com/exam-portal/question-import-service/internal/validator"
)

// MockQuestionRepository is a mock implementation of QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	args := m.Called(ctx, tx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	args := m.Called(ctx, tx, filters)
	return args.Get(0).([]*models.Question), args.Get(1).(int64), args.Error(2)
}

func (m *MockQuestionRepository) ExistsByText(ctx context.Context, tx *gorm.DB, text string) (bool, error) {
	args := m.Called(ctx, tx, text)
	return args.Bool(0), args.Error(1)
}

func (m *MockQuestionRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

// MockReferenceRepository is a mock implementation of ReferenceRepository
type MockReferenceRepository struct {
	mock.Mock
}

func (m *MockReferenceRepository) FindByID(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, id uint) (*uint, error) {
	args := m.Called(ctx, tx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uint), args.Error(1)
}

func (m *MockReferenceRepository) FindByLabel(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, label string) (*uint, error) {
	args := m.Called(ctx, tx, kind, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uint), args.Error(1)
}

func (m *MockReferenceRepository) Create(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, name string) (uint, error) {
	args := m.Called(ctx, tx, kind, name)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockReferenceRepository) List(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind) ([]repositories.ReferenceItem, error) {
	args := m.Called(ctx, tx, kind)
	return args.Get(0).([]repositories.ReferenceItem), args.Error(1)
}

// MockUploadRepository is a mock implementation of UploadRepository
type MockUploadRepository struct {
	mock.Mock
}

func (m *MockUploadRepository) Create(ctx context.Context, tx *gorm.DB, job *models.ImportJob) error {
	args := m.Called(ctx, tx, job)
	return args.Error(0)
}

func (m *MockUploadRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ImportJob, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportJob), args.Error(1)
}

func (m *MockUploadRepository) Update(ctx context.Context, tx *gorm.DB, job *models.ImportJob) error {
	args := m.Called(ctx, tx, job)
	return args.Error(0)
}

func (m *MockUploadRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.ImportJobFilters) ([]*models.ImportJob, int64, error) {
	args := m.Called(ctx, tx, filters)
	return args.Get(0).([]*models.ImportJob), args.Get(1).(int64), args.Error(2)
}

// savepointDialector is a no-op dialector that supports savepoints, so the
// per-record isolation path can run against a detached *gorm.DB handle.
type savepointDialector struct{}

func (savepointDialector) Name() string                                          { return "stub" }
func (savepointDialector) Initialize(*gorm.DB) error                             { return nil }
func (savepointDialector) Migrator(*gorm.DB) gorm.Migrator                       { return nil }
func (savepointDialector) DataTypeOf(*schema.Field) string                       { return "" }
func (savepointDialector) DefaultValueOf(*schema.Field) clause.Expression        { return nil }
func (savepointDialector) BindVarTo(clause.Writer, *gorm.Statement, interface{}) {}
func (savepointDialector) QuoteTo(clause.Writer, string)                         {}
func (savepointDialector) Explain(sql string, vars ...interface{}) string        { return sql }
func (savepointDialector) SavePoint(*gorm.DB, string) error                      { return nil }
func (savepointDialector) RollbackTo(*gorm.DB, string) error                     { return nil }

func newStubTx() *gorm.DB {
	db := &gorm.DB{Config: &gorm.Config{Dialector: savepointDialector{}}}
	db.Statement = &gorm.Statement{DB: db}
	return db
}

// stubRepository bundles the entity mocks behind the Repository interface and
// runs Transaction callbacks against a savepoint-capable stub handle.
type stubRepository struct {
	question  *MockQuestionRepository
	reference *MockReferenceRepository
	upload    *MockUploadRepository
	tx        *gorm.DB
}

func newStubRepository() *stubRepository {
	return &stubRepository{
		question:  new(MockQuestionRepository),
		reference: new(MockReferenceRepository),
		upload:    new(MockUploadRepository),
		tx:        newStubTx(),
	}
}

func (s *stubRepository) Question() repositories.QuestionRepository   { return s.question }
func (s *stubRepository) Reference() repositories.ReferenceRepository { return s.reference }
func (s *stubRepository) Upload() repositories.UploadRepository       { return s.upload }

func (s *stubRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(s.tx)
}

type importFixture struct {
	repo      *stubRepository
	publisher *events.MockEventPublisher
	service   ImportService
}

func newImportFixture() *importFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newStubRepository()
	publisher := events.NewMockEventPublisher(logger)
	refResolver := resolver.New(repo.reference, nil, logger)

	return &importFixture{
		repo:      repo,
		publisher: publisher,
		service:   NewImportService(repo, refResolver, publisher, nil, validator.New(), logger),
	}
}

func encryptPayload(t *testing.T, payload, password string) []byte {
	t.Helper()
	envelope, err := crypto.Encrypt([]byte(payload), password)
	require.NoError(t, err)
	return envelope
}

func defaultOptions() ImportOptions {
	return ImportOptions{
		FileName:      "bank.json",
		UserID:        "user-1",
		Password:      "s3cret",
		SourceKind:    parser.SourceStructured,
		CreateMissing: true,
	}
}

func TestImportService_ImportBatch_Success(t *testing.T) {
	f := newImportFixture()
	ctx := context.Background()

	payload := `[
		{"text": "What is Ohm's law?", "part": "A", "marks": 2,
		 "options": ["V=IR", "P=VI", "I=VR", "R=VP"], "correct_answer": "V=IR",
		 "trade": "Electrician"},
		{"text": "Explain earthing.", "part": "E"}
	]`
	envelope := encryptPayload(t, payload, "s3cret")

	tradeID := uint(7)
	f.repo.upload.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.upload.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.reference.On("FindByLabel", mock.Anything, mock.Anything, models.RefTrade, "Electrician").Return(&tradeID, nil)

	var created []*models.Question
	f.repo.question.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			created = append(created, args.Get(2).(*models.Question))
		}).
		Return(nil)

	report, err := f.service.ImportBatch(ctx, envelope, defaultOptions())
	require.NoError(t, err)

	assert.NotEmpty(t, report.JobID)
	assert.Equal(t, models.ImportCompleted, report.Status)
	assert.Equal(t, 2, report.TotalRecords)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.ErrorCount)

	require.Len(t, created, 2)
	assert.Equal(t, "What is Ohm's law?", created[0].Text)
	assert.Equal(t, models.PartSingleChoice, created[0].Part)
	assert.Equal(t, float64(2), created[0].Marks)
	require.NotNil(t, created[0].TradeID)
	assert.Equal(t, tradeID, *created[0].TradeID)
	assert.JSONEq(t, `{"choices": ["V=IR", "P=VI", "I=VR", "R=VP"]}`, string(created[0].Options))
	assert.Nil(t, created[1].TradeID)
	assert.Equal(t, float64(1), created[1].Marks)

	published := f.publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, events.ImportCompleted, published[0].Type)
	assert.Equal(t, report.JobID, published[0].JobID)
	assert.Equal(t, 2, published[0].Created)
}

func TestImportService_ImportBatch_WrongPassword(t *testing.T) {
	f := newImportFixture()
	ctx := context.Background()

	envelope := encryptPayload(t, `[]`, "correct")

	var failedJob *models.ImportJob
	f.repo.upload.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.upload.On("Update", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			failedJob = args.Get(2).(*models.ImportJob)
		}).
		Return(nil)

	opts := defaultOptions()
	opts.Password = "wrong"

	_, err := f.service.ImportBatch(ctx, envelope, opts)
	assert.ErrorIs(t, err, ErrWrongPassword)

	require.NotNil(t, failedJob)
	assert.Equal(t, models.ImportValidationFailed, failedJob.Status)
	assert.NotNil(t, failedJob.CompletedAt)

	published := f.publisher.Published()
	require.Len(t, published, 1)
	assert.Equal(t, events.ImportFailed, published[0].Type)
	assert.NotEmpty(t, published[0].Reason)
}

func TestImportService_ImportBatch_RejectsPlainUploads(t *testing.T) {
	f := newImportFixture()
	ctx := context.Background()

	_, err := f.service.ImportBatch(ctx, []byte("text,part\nfoo,A\n"), defaultOptions())
	assert.ErrorIs(t, err, ErrNotEncrypted)

	_, err = f.service.ImportBatch(ctx, nil, defaultOptions())
	assert.ErrorIs(t, err, ErrEmptyUpload)

	f.repo.upload.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestImportService_ImportBatch_RecordFailureIsIsolated(t *testing.T) {
	f := newImportFixture()
	ctx := context.Background()

	payload := `[
		{"text": "Broken row", "part": "A"},
		{"text": "Good row", "part": "B"}
	]`
	envelope := encryptPayload(t, payload, "s3cret")

	f.repo.upload.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.upload.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.question.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(q *models.Question) bool {
		return q.Text == "Broken row"
	})).Return(assert.AnError)
	f.repo.question.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(q *models.Question) bool {
		return q.Text == "Good row"
	})).Return(nil)

	report, err := f.service.ImportBatch(ctx, envelope, defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, models.ImportCompleted, report.Status)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.ErrorCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 0, report.Errors[0].Index)
}

func TestImportService_ImportBatch_SkipExisting(t *testing.T) {
	f := newImportFixture()
	ctx := context.Background()

	payload := `[
		{"text": "Already imported", "part": "A"},
		{"text": "Brand new", "part": "B"}
	]`
	envelope := encryptPayload(t, payload, "s3cret")

	f.repo.upload.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.upload.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.question.On("ExistsByText", mock.Anything, mock.Anything, "Already imported").Return(true, nil)
	f.repo.question.On("ExistsByText", mock.Anything, mock.Anything, "Brand new").Return(false, nil)
	f.repo.question.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	opts := defaultOptions()
	opts.SkipExisting = true

	report, err := f.service.ImportBatch(ctx, envelope, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)
	f.repo.question.AssertNumberOfCalls(t, "Create", 1)
}

func TestImportService_ImportBatch_UnknownPartWarns(t *testing.T) {
	f := newImportFixture()
	ctx := context.Background()

	envelope := encryptPayload(t, `[{"text": "Odd part", "part": "Z"}]`, "s3cret")

	f.repo.upload.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.upload.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.repo.question.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	report, err := f.service.ImportBatch(ctx, envelope, defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Created)
	require.NotEmpty(t, report.Warnings)
	assert.Equal(t, "Z", report.Warnings[0].Value)
}

func TestImportService_ValidateUpload(t *testing.T) {
	f := newImportFixture()
	ctx := context.Background()

	payload := `[{"text": "One", "part": "A"}, {"text": "Two", "part": "B"}]`
	envelope := encryptPayload(t, payload, "s3cret")

	count, err := f.service.ValidateUpload(ctx, envelope, "s3cret", parser.SourceStructured)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Validation never persists a job or touches questions.
	f.repo.upload.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	f.repo.question.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)

	_, err = f.service.ValidateUpload(ctx, envelope, "wrong", parser.SourceStructured)
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestImportService_VerifyUploadPassword(t *testing.T) {
	f := newImportFixture()
	ctx := context.Background()

	salt := []byte("0123456789abcdef")
	job := &models.ImportJob{
		ID:               "job-1",
		PasswordSalt:     salt,
		PasswordVerifier: crypto.MakeVerifier("s3cret", salt),
	}
	f.repo.upload.On("GetByID", mock.Anything, mock.Anything, "job-1").Return(job, nil)

	valid, err := f.service.VerifyUploadPassword(ctx, "job-1", "s3cret")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = f.service.VerifyUploadPassword(ctx, "job-1", "nope")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestImportService_GetImportJob_NotFound(t *testing.T) {
	f := newImportFixture()
	ctx := context.Background()

	f.repo.upload.On("GetByID", mock.Anything, mock.Anything, "missing").Return(nil, gorm.ErrRecordNotFound)

	_, err := f.service.GetImportJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrImportJobNotFound)
}
