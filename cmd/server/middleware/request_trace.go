package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"doc-chat/cmd/internal/logger"
	"doc-chat/cmd/internal/trace"
)

const (
	headerRequestID = "X-Request-Id"
	headerSpanID    = "X-Span-Id"
	headerSessionID = "X-Session-Id"
)

const maxBodyLog = 1024

// RequestTrace는 모든 inbound HTTP 요청에 대해 Request ID와 Span ID를 보장하고,
// 이를 컨텍스트/응답 헤더에 저장한 뒤 완료 로그에 포함시킨다.
// 클라이언트가 보낸 X-Span-Id 가 있으면 그 값에서 span 을 이어간다.
func RequestTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		requestID := req.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = trace.GenerateID()
		}
		clientSpan := req.Header.Get(headerSpanID)

		ctxWithTrace := trace.WithRequestAndSpan(req.Context(), requestID, 0)
		if sessionID := req.Header.Get(headerSessionID); sessionID != "" {
			ctxWithTrace = trace.WithSession(ctxWithTrace, sessionID)
		}
		c.Request = req.WithContext(ctxWithTrace)
		req = c.Request

		c.Writer.Header().Set(headerRequestID, requestID)

		// 업로드(multipart)는 파일 내용이므로 로깅하지 않는다.
		var bodySnippet string
		if req.Body != nil && req.ContentLength != 0 && req.Method != http.MethodGet &&
			strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
			if bodyBytes, err := io.ReadAll(req.Body); err == nil {
				if len(bodyBytes) > maxBodyLog {
					bodySnippet = string(bodyBytes[:maxBodyLog])
				} else {
					bodySnippet = string(bodyBytes)
				}
				// gin 핸들러에서 다시 읽을 수 있도록 Body 를 복원한다.
				c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			}
		}

		c.Next()

		fields := logger.Fields{
			"method":     req.Method,
			"path":       req.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"request_id": requestID,
			"span_id":    trace.CurrentSpanID(c.Request.Context()),
		}
		if clientSpan != "" {
			fields["client_span_id"] = clientSpan
		}
		if sessionID := sessionIDOf(c); sessionID != "" {
			fields["session_id"] = sessionID
		}
		if bodySnippet != "" {
			fields["body"] = bodySnippet
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.ErrorWithFields("completed request", fields)
			return
		}
		logger.InfoWithFields("completed request", fields)
	}
}

func sessionIDOf(c *gin.Context) string {
	if id := c.Param("sessionId"); id != "" {
		return id
	}
	return trace.SessionIDFromContext(c.Request.Context())
}
