package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/repositories"
	"github.com/exam-portal/question-import-service/internal/services"
	"github.com/exam-portal/question-import-service/internal/utils"
)

type QuestionHandler struct {
	BaseHandler
	questionService services.QuestionService
	exportService   services.ExportService
}

func NewQuestionHandler(
	questionService services.QuestionService,
	exportService services.ExportService,
	logger utils.Logger,
) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
		exportService:   exportService,
	}
}

// GetQuestion retrieves a question by ID
// @Summary Get question
// @Tags questions
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} models.Question
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id} [get]
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	question, err := h.questionService.GetQuestion(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// GetQuestionWithDetails retrieves a question with its reference entities loaded
// @Summary Get question with details
// @Tags questions
// @Produce json
// @Param id path uint true "Question ID"
// @Success 200 {object} models.Question
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id}/details [get]
func (h *QuestionHandler) GetQuestionWithDetails(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	question, err := h.questionService.GetQuestionWithDetails(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// ListQuestions lists questions with optional filters
// @Summary List questions
// @Tags questions
// @Produce json
// @Success 200 {object} ListResponse
// @Router /questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	filters := h.parseQuestionFilters(c)

	questions, total, err := h.questionService.ListQuestions(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Items: questions, Total: total})
}

// DeleteQuestion removes a question
// @Summary Delete question
// @Tags questions
// @Param id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id} [delete]
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting question", "question_id", id)

	if err := h.questionService.DeleteQuestion(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Question deleted"})
}

// ExportQuestions streams the filtered question set as CSV or xlsx
// @Summary Export questions
// @Tags questions
// @Produce octet-stream
// @Param format query string false "csv or xlsx" default(csv)
// @Success 200 {file} file
// @Router /questions/export [get]
func (h *QuestionHandler) ExportQuestions(c *gin.Context) {
	filters := h.parseQuestionFilters(c)
	// Exports ignore the page window and return the whole filtered set.
	filters.Limit = 0
	filters.Offset = 0

	format := c.DefaultQuery("format", "csv")
	stamp := time.Now().Format("2006-01-02")

	h.LogRequest(c, "Exporting questions", "format", format)

	switch format {
	case "csv":
		data, err := h.exportService.ExportQuestionsToCSV(c.Request.Context(), filters)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="questions-`+stamp+`.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
	case "xlsx":
		data, err := h.exportService.ExportQuestionsToExcel(c.Request.Context(), filters)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="questions-`+stamp+`.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid format",
			Details: "must be one of: csv, xlsx",
		})
	}
}

func (h *QuestionHandler) parseQuestionFilters(c *gin.Context) repositories.QuestionFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.QuestionFilters{
		Search:    c.Query("search"),
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if part := c.Query("part"); part != "" {
		p := models.QuestionPart(part)
		filters.Part = &p
	}
	if c.Query("is_active") != "" {
		active := h.parseBoolQuery(c, "is_active", true)
		filters.IsActive = &active
	}

	refParams := []struct {
		name   string
		target **uint
	}{
		{"trade_id", &filters.TradeID},
		{"level_id", &filters.LevelID},
		{"skill_id", &filters.SkillID},
		{"qf_id", &filters.QFID},
		{"category_id", &filters.CategoryID},
	}
	for _, p := range refParams {
		if v := h.parseIntQuery(c, p.name, 0); v > 0 {
			id := uint(v)
			*p.target = &id
		}
	}

	return filters
}

func (h *QuestionHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrQuestionNotFound), errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	case errors.Is(err, services.ErrBadRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Bad request",
			Details: err.Error(),
		})
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Request failed", err)
	}
}
