package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"doc-chat/cmd/internal/logger"
	"doc-chat/cmd/internal/trace"
	"doc-chat/cmd/server/services"
	"doc-chat/dto"
	"doc-chat/parser"
)

// writeServiceError 는 서비스 에러를 상태 코드와 {error} 응답으로 변환한다.
func writeServiceError(c *gin.Context, err error) {
	var (
		notFound *services.SessionNotFoundError
		extErr   *parser.ExtractionError
		modelErr *services.ModelError
	)

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: notFound.Error()})
	case errors.As(err, &extErr):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Failed to extract text from file: " + extErr.Error()})
	case errors.Is(err, services.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Message is required"})
	case errors.Is(err, services.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: "Chat quota exceeded. Please try again later."})
	case errors.As(err, &modelErr):
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: "Failed to generate a response"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, dto.ErrorResponse{Error: "Request timed out"})
	case errors.Is(err, context.Canceled):
		// 클라이언트가 연결을 끊었다. 응답은 전달되지 않는다.
		c.Status(499)
	default:
		logger.ErrorWithFields("unexpected error", logger.Fields{
			"request_id": trace.RequestIDFromContext(c.Request.Context()),
			"path":       c.Request.URL.Path,
			"error":      err.Error(),
		})
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "An unexpected error occurred"})
	}
}

// HealthHandler godoc
// @Summary      헬스 체크
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.MessageResponse
// @Router       /health [get]
func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.MessageResponse{Message: "ok"})
	}
}
