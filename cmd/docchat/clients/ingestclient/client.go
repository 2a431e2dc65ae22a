package ingestclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"doc-chat/cmd/docchat/httpclient"
	"doc-chat/dto"
)

const serviceName = "ingest-service"

// Client는 문서 업로드(ingestion) 엔드포인트를 호출하는 얇은 클라이언트다.
// 파일 하나를 multipart 로 전송하고 세션 ID 와 표시 이름을 돌려받는다.
type Client struct {
	base *httpclient.BaseClient
}

// New 는 baseURL 이 비어 있으면 DOCCHAT_BASE_URL, 그것도 없으면 localhost:8080 을 사용한다.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("DOCCHAT_BASE_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	httpClient := httpclient.New(httpclient.Config{Timeout: timeout})
	return &Client{base: httpclient.NewBaseClientWithClient(httpClient, baseURL)}
}

// NewWithClient 는 테스트 등에서 준비된 http.Client 를 주입할 때 사용한다.
func NewWithClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{base: httpclient.NewBaseClientWithClient(httpClient, baseURL)}
}

// Upload 는 POST /api/upload 로 파일을 전송한다.
// 2xx 가 아니면 *httpclient.HTTPError 를, 전송 실패면 그 외 에러를 반환한다.
func (c *Client) Upload(ctx context.Context, fileName, contentType string, data []byte) (dto.UploadResponse, error) {
	body, formContentType, err := encodeForm(fileName, contentType, data)
	if err != nil {
		return dto.UploadResponse{}, err
	}

	req, err := c.base.NewRequest(ctx, http.MethodPost, "/api/upload", nil, body)
	if err != nil {
		return dto.UploadResponse{}, err
	}
	req.Header.Set("Content-Type", formContentType)

	resp, err := c.base.Do(req)
	if err != nil {
		return dto.UploadResponse{}, err
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		return dto.UploadResponse{}, httpclient.NewHTTPError(serviceName, resp)
	}

	const maxBodySize = 1 * 1024 * 1024
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return dto.UploadResponse{}, fmt.Errorf("%s response read failed: %w", serviceName, err)
	}

	var out dto.UploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return dto.UploadResponse{}, fmt.Errorf("%s response decode failed: %w: %v", serviceName, httpclient.ErrMalformedResponse, err)
	}
	return out, nil
}

// Health 는 백엔드의 /health 엔드포인트를 호출해 상태를 확인한다.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.base.NewRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return err
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.NewHTTPError(serviceName, resp)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeForm 은 "file" 필드 하나만 담은 multipart 바디를 만든다.
// multipart.Writer.CreateFormFile 은 Content-Type 을 항상 octet-stream 으로 쓰므로 헤더를 직접 구성한다.
func encodeForm(fileName, contentType string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(fileName)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
