package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"doc-chat/cmd/server/services"
	"doc-chat/dto"
)

// multipart 헤더/경계 문자열 여유분
const multipartOverhead = 64 << 10

// UploadHandler godoc
// @Summary      문서 업로드
// @Description  문서에서 텍스트를 추출하고 새 대화 세션을 만든다. txt, md, pdf, docx, html 을 지원한다.
// @Tags         upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "document"
// @Success      200   {object}  dto.UploadResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      413   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /upload [post]
func UploadHandler(sessionSvc *services.SessionService, maxUploadBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxUploadBytes > 0 {
			limit := maxUploadBytes + multipartOverhead
			if c.Request.ContentLength > limit {
				tooLarge(c)
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}

		fh, err := c.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				tooLarge(c)
				return
			}
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "File is required"})
			return
		}
		if maxUploadBytes > 0 && fh.Size > maxUploadBytes {
			tooLarge(c)
			return
		}

		fileName := strings.TrimSpace(fh.Filename)
		if fileName == "" {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "File name is required"})
			return
		}

		f, err := fh.Open()
		if err != nil {
			writeServiceError(c, err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		created, err := sessionSvc.CreateSession(c.Request.Context(), fileName, data)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, dto.UploadResponse{
			Message:    "File processed successfully",
			SessionID:  created.Session.ID,
			FileName:   created.Session.FileName,
			TextLength: created.TextLength,
		})
	}
}

func tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "File is too large"})
}
