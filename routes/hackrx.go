package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"policy-qa-service/internal/rag"
	"policy-qa-service/middleware"
	"policy-qa-service/models"
	"policy-qa-service/services"
	"policy-qa-service/utils"

	"github.com/gin-gonic/gin"
)

const (
	documentNotFoundDetail = "Document not found."
	downloadFailedDetail   = "Failed to download document from URL."
)

// DocumentResolver fetches the bytes behind a request's document reference.
type DocumentResolver interface {
	Resolve(ctx context.Context, ref string) (rag.Document, error)
}

// QuestionAnswerer answers every question about one document, in order.
type QuestionAnswerer interface {
	Run(ctx context.Context, doc rag.Document, questions []string) ([]string, error)
}

// SetupHackRxRoutes registers the question answering endpoint under /api/v1.
func SetupHackRxRoutes(router *gin.Engine, resolver DocumentResolver, answerer QuestionAnswerer, apiKey string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	api := router.Group("/api/v1")
	api.Use(middleware.RequireAPIKey(apiKey))

	api.POST("/hackrx/run", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithUnprocessable(c, err.Error())
			return
		}

		requestID := middleware.GetRequestID(c)
		start := time.Now()

		doc, err := resolver.Resolve(c.Request.Context(), req.Documents)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrDocumentNotFound):
				utils.RespondWithNotFound(c, documentNotFoundDetail)
			case errors.Is(err, services.ErrDownloadFailed):
				utils.RespondWithBadRequest(c, downloadFailedDetail)
			default:
				logger.Error("document resolution failed", "request_id", requestID, "error", err)
				utils.RespondWithInternalError(c)
			}
			return
		}

		answers, err := answerer.Run(c.Request.Context(), doc, req.Questions)
		if err != nil {
			logger.Error("question answering failed",
				"request_id", requestID,
				"document", req.Documents,
				"questions", len(req.Questions),
				"error", err)
			utils.RespondWithInternalError(c)
			return
		}

		logger.Info("questions answered",
			"request_id", requestID,
			"questions", len(req.Questions),
			"duration_ms", time.Since(start).Milliseconds())
		c.JSON(http.StatusOK, models.QueryResponse{Answers: answers})
	})
}

// SetupHealthRoutes registers the unauthenticated liveness probe.
func SetupHealthRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
}
