package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/parser"
	"github.com/exam-portal/question-import-service/internal/repositories"
	"github.com/exam-portal/question-import-service/internal/services"
	"github.com/exam-portal/question-import-service/internal/utils"
	"github.com/exam-portal/question-import-service/internal/validator"
)

// maxUploadBytes caps the accepted envelope size at 32 MiB.
const maxUploadBytes = 32 << 20

type ImportHandler struct {
	BaseHandler
	importService services.ImportService
	validator     *validator.Validator
}

func NewImportHandler(
	importService services.ImportService,
	validator *validator.Validator,
	logger utils.Logger,
) *ImportHandler {
	return &ImportHandler{
		BaseHandler:   NewBaseHandler(logger),
		importService: importService,
		validator:     validator,
	}
}

// VerifyPasswordRequest carries a password to check against a stored upload
type VerifyPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// CreateImport accepts an encrypted upload and runs the import pipeline
// @Summary Import questions
// @Description Decrypts an uploaded envelope and imports the question records it contains
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Encrypted envelope"
// @Param password formData string true "Envelope password"
// @Success 200 {object} services.ImportReport
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /imports [post]
func (h *ImportHandler) CreateImport(c *gin.Context) {
	h.LogRequest(c, "Starting question import")

	opts, data, ok := h.readUploadForm(c)
	if !ok {
		return
	}

	report, err := h.importService.ImportBatch(c.Request.Context(), data, opts)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ValidateImport trial-decrypts and parses an upload without persisting anything
// @Summary Validate upload
// @Description Checks that an envelope decrypts and parses, returning the record count
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /imports/validate [post]
func (h *ImportHandler) ValidateImport(c *gin.Context) {
	h.LogRequest(c, "Validating question upload")

	opts, data, ok := h.readUploadForm(c)
	if !ok {
		return
	}

	count, err := h.importService.ValidateUpload(c.Request.Context(), data, opts.Password, opts.SourceKind)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Upload is importable",
		Data:    gin.H{"total_records": count},
	})
}

// GetImport retrieves an import job by ID
// @Summary Get import job
// @Tags imports
// @Produce json
// @Param id path string true "Import job ID"
// @Success 200 {object} models.ImportJob
// @Failure 404 {object} ErrorResponse
// @Router /imports/{id} [get]
func (h *ImportHandler) GetImport(c *gin.Context) {
	jobID := ParseStringIDParam(c, "id")
	if jobID == "" {
		return
	}

	job, err := h.importService.GetImportJob(c.Request.Context(), jobID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListImports lists import jobs with optional filters
// @Summary List import jobs
// @Tags imports
// @Produce json
// @Success 200 {object} ListResponse
// @Router /imports [get]
func (h *ImportHandler) ListImports(c *gin.Context) {
	filters := h.parseImportFilters(c)

	jobs, total, err := h.importService.ListImportJobs(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Items: jobs, Total: total})
}

// VerifyPassword checks a password against the verifier stored for an upload
// @Summary Verify upload password
// @Tags imports
// @Accept json
// @Produce json
// @Param id path string true "Import job ID"
// @Param request body VerifyPasswordRequest true "Password to verify"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /imports/{id}/verify-password [post]
func (h *ImportHandler) VerifyPassword(c *gin.Context) {
	jobID := ParseStringIDParam(c, "id")
	if jobID == "" {
		return
	}

	var req VerifyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	valid, err := h.importService.VerifyUploadPassword(c.Request.Context(), jobID, req.Password)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Password checked",
		Data:    gin.H{"valid": valid},
	})
}

// readUploadForm extracts the envelope bytes and import options from a
// multipart form. On failure it writes the error response and returns ok=false.
func (h *ImportHandler) readUploadForm(c *gin.Context) (services.ImportOptions, []byte, bool) {
	var opts services.ImportOptions

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing uploaded file",
			Details: err.Error(),
		})
		return opts, nil, false
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Message: "Uploaded file too large",
		})
		return opts, nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to read uploaded file", err)
		return opts, nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to read uploaded file", err)
		return opts, nil, false
	}

	password := c.PostForm("password")
	if password == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing password",
			Details: "the upload password is required to decrypt the file",
		})
		return opts, nil, false
	}

	kind := parser.SourceKind(c.DefaultPostForm("source_kind", string(parser.SourceSpreadsheet)))
	if kind != parser.SourceSpreadsheet && kind != parser.SourceStructured {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid source_kind",
			Details: "must be one of: spreadsheet, structured",
		})
		return opts, nil, false
	}

	userID := ""
	if id, exists := c.Get("user_id"); exists {
		if s, isString := id.(string); isString {
			userID = s
		}
	}

	opts = services.ImportOptions{
		FileName:      fileHeader.Filename,
		UserID:        userID,
		Password:      password,
		SourceKind:    kind,
		CreateMissing: c.DefaultPostForm("create_missing", "true") == "true",
		SkipExisting:  c.DefaultPostForm("skip_existing", "false") == "true",
	}
	return opts, data, true
}

func (h *ImportHandler) parseImportFilters(c *gin.Context) repositories.ImportJobFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.ImportJobFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if status := c.Query("status"); status != "" {
		s := models.ImportJobStatus(status)
		filters.Status = &s
	}
	if userID := c.Query("user_id"); userID != "" {
		filters.UserID = &userID
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.DateTo = &t
		}
	}

	return filters
}

// handleServiceError maps service errors onto HTTP responses. Envelope
// failures stay 4xx so callers can distinguish a bad upload from a server
// fault, with a machine-readable code per failure mode.
func (h *ImportHandler) handleServiceError(c *gin.Context, err error) {
	var structureErr *parser.StructureError
	if errors.As(err, &structureErr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Upload has malformed records",
			Details: structureErr.Error(),
			Code:    "malformed_record",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrEmptyUpload):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Uploaded file is empty",
			Code:    "empty_upload",
		})
	case errors.Is(err, services.ErrNotEncrypted):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Uploaded file is not an encrypted envelope",
			Code:    "not_encrypted",
		})
	case errors.Is(err, services.ErrInvalidFormat):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Encrypted envelope is corrupted or truncated",
			Code:    "invalid_envelope",
		})
	case errors.Is(err, services.ErrWrongPassword):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid password or corrupted file",
			Code:    "wrong_password",
		})
	case errors.Is(err, services.ErrPayloadNotWorkbook):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Decrypted payload is not a spreadsheet workbook",
			Code:    "not_workbook",
		})
	case errors.Is(err, services.ErrImportJobNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Import job not found",
		})
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Import failed", err)
	}
}
