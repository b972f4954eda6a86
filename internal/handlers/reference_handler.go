package handlers

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/services"
	"github.com/exam-portal/question-import-service/internal/utils"
	"github.com/exam-portal/question-import-service/internal/validator"
)

type ReferenceHandler struct {
	BaseHandler
	questionService services.QuestionService
	validator       *validator.Validator
}

func NewReferenceHandler(
	questionService services.QuestionService,
	validator *validator.Validator,
	logger utils.Logger,
) *ReferenceHandler {
	return &ReferenceHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
		validator:       validator,
	}
}

// CreateReferenceRequest seeds one reference entity by name
type CreateReferenceRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// ListReferences lists the entities of one reference kind
// @Summary List reference entities
// @Tags references
// @Produce json
// @Param kind path string true "trade, level, skill, qf or category"
// @Success 200 {object} ListResponse
// @Failure 400 {object} ErrorResponse
// @Router /references/{kind} [get]
func (h *ReferenceHandler) ListReferences(c *gin.Context) {
	kind, ok := h.parseKindParam(c)
	if !ok {
		return
	}

	items, err := h.questionService.ListReferences(c.Request.Context(), kind)
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to list references", err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Items: items, Total: int64(len(items))})
}

// CreateReference creates a reference entity of the given kind
// @Summary Create reference entity
// @Tags references
// @Accept json
// @Produce json
// @Param kind path string true "trade, level, skill, qf or category"
// @Param request body CreateReferenceRequest true "Reference data"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /references/{kind} [post]
func (h *ReferenceHandler) CreateReference(c *gin.Context) {
	kind, ok := h.parseKindParam(c)
	if !ok {
		return
	}

	var req CreateReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		var validationErrors services.ValidationErrors
		if errors.As(err, &validationErrors) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Validation failed",
				Details: validationErrors,
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating reference entity", "kind", kind, "name", req.Name)

	id, err := h.questionService.CreateReference(c.Request.Context(), kind, req.Name)
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to create reference", err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Reference created",
		Data:    gin.H{"id": id, "name": req.Name},
	})
}

func (h *ReferenceHandler) parseKindParam(c *gin.Context) (models.ReferenceKind, bool) {
	kind := models.ReferenceKind(c.Param("kind"))
	if !slices.Contains(models.ReferenceKinds, kind) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid reference kind",
			Details: "must be one of: trade, level, skill, qf, category",
		})
		return "", false
	}
	return kind, true
}
