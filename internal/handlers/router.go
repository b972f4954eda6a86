package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/exam-portal/question-import-service/internal/services"
	"github.com/exam-portal/question-import-service/internal/utils"
	"github.com/exam-portal/question-import-service/internal/validator"
)

type HandlerManager struct {
	importHandler    *ImportHandler
	questionHandler  *QuestionHandler
	referenceHandler *ReferenceHandler
}

func NewHandlerManager(
	importService services.ImportService,
	questionService services.QuestionService,
	exportService services.ExportService,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		importHandler:    NewImportHandler(importService, validator, logger),
		questionHandler:  NewQuestionHandler(questionService, exportService, logger),
		referenceHandler: NewReferenceHandler(questionService, validator, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Import routes
		imports := v1.Group("/imports")
		{
			imports.POST("", hm.importHandler.CreateImport)
			imports.POST("/validate", hm.importHandler.ValidateImport)
			imports.GET("", hm.importHandler.ListImports)
			imports.GET("/:id", hm.importHandler.GetImport)
			imports.POST("/:id/verify-password", hm.importHandler.VerifyPassword)
		}

		// Question routes
		questions := v1.Group("/questions")
		{
			questions.GET("", hm.questionHandler.ListQuestions)
			questions.GET("/export", hm.questionHandler.ExportQuestions)
			questions.GET("/:id", hm.questionHandler.GetQuestion)
			questions.GET("/:id/details", hm.questionHandler.GetQuestionWithDetails)
			questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
		}

		// Reference entity routes
		references := v1.Group("/references")
		{
			references.GET("/:kind", hm.referenceHandler.ListReferences)
			references.POST("/:kind", hm.referenceHandler.CreateReference)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "question-import-service",
		})
	})
}
