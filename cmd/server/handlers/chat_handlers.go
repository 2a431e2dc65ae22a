package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"doc-chat/cmd/server/services"
	"doc-chat/dto"
)

// ChatHandler godoc
// @Summary      문서 채팅
// @Description  세션의 문서와 대화 기록을 바탕으로 질문에 답한다.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        sessionId  path      string           true  "세션 ID"
// @Param        body       body      dto.ChatRequest  true  "chat request"
// @Success      200        {object}  dto.ChatResponse
// @Failure      400        {object}  dto.ErrorResponse
// @Failure      404        {object}  dto.ErrorResponse
// @Failure      429        {object}  dto.ErrorResponse
// @Failure      502        {object}  dto.ErrorResponse
// @Router       /chat/{sessionId} [post]
func ChatHandler(sessionSvc *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")

		var req dto.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
			return
		}

		reply, err := sessionSvc.Chat(c.Request.Context(), sessionID, req.Message)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, dto.ChatResponse{Response: reply, SessionID: sessionID})
	}
}

// GetSessionHandler godoc
// @Summary      세션 조회
// @Tags         chat
// @Produce      json
// @Param        sessionId  path      string  true  "세션 ID"
// @Success      200        {object}  dto.SessionResponse
// @Failure      404        {object}  dto.ErrorResponse
// @Router       /chat/session/{sessionId} [get]
func GetSessionHandler(sessionSvc *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sessionSvc.GetSession(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, dto.SessionResponse{
			SessionID:    session.ID,
			FileName:     session.FileName,
			MessageCount: len(session.Messages),
			CreatedAt:    session.CreatedAt.Format(time.RFC3339),
		})
	}
}

// DeleteSessionHandler godoc
// @Summary      세션 삭제
// @Tags         chat
// @Produce      json
// @Param        sessionId  path      string  true  "세션 ID"
// @Success      200        {object}  dto.MessageResponse
// @Failure      404        {object}  dto.ErrorResponse
// @Router       /chat/session/{sessionId} [delete]
func DeleteSessionHandler(sessionSvc *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sessionSvc.DeleteSession(c.Request.Context(), c.Param("sessionId")); err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.MessageResponse{Message: "deleted"})
	}
}
