package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"doc-chat/cmd/docchat/httpclient"
	"doc-chat/dto"
)

const serviceName = "chat-service"

var ErrNotFound = errors.New("session not found")

// Client는 세션 단위 채팅(inference) 엔드포인트를 호출하는 클라이언트다.
type Client struct {
	base *httpclient.BaseClient
}

// New 는 baseURL 이 비어 있으면 DOCCHAT_BASE_URL, 그것도 없으면 localhost:8080 을 사용한다.
// LLM 응답은 오래 걸릴 수 있어 기본 타임아웃은 5분이다. 턴 단위 타임아웃은 chat.Session 이 건다.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("DOCCHAT_BASE_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	httpClient := httpclient.New(httpclient.Config{Timeout: 5 * time.Minute})
	return &Client{base: httpclient.NewBaseClientWithClient(httpClient, baseURL)}
}

func NewWithClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{base: httpclient.NewBaseClientWithClient(httpClient, baseURL)}
}

// Chat 은 POST /api/chat/{sessionId} 로 메시지를 보내고 응답 텍스트를 반환한다.
// 2xx 가 아니면 *httpclient.HTTPError 를 반환한다.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (string, error) {
	buf, err := json.Marshal(dto.ChatRequest{Message: message})
	if err != nil {
		return "", err
	}

	req, err := c.base.NewRequest(ctx, http.MethodPost, "/api/chat/"+url.PathEscape(sessionID), nil, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		return "", httpclient.NewHTTPError(serviceName, resp)
	}

	const maxBodySize = 5 * 1024 * 1024
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if readErr != nil {
		return "", fmt.Errorf("%s response read failed: %w", serviceName, readErr)
	}

	var out dto.ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%s response decode failed: %w: %v", serviceName, httpclient.ErrMalformedResponse, err)
	}
	return out.Response, nil
}

// GetSession 은 서버에 저장된 세션 요약을 조회한다.
// 존재하지 않으면 ErrNotFound 를 반환한다.
func (c *Client) GetSession(ctx context.Context, sessionID string) (dto.SessionResponse, error) {
	req, err := c.base.NewRequest(ctx, http.MethodGet, "/api/chat/session/"+url.PathEscape(sessionID), nil, nil)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	defer resp.Body.Close()

	switch {
	case httpclient.IsSuccess(resp.StatusCode):
		var out dto.SessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return dto.SessionResponse{}, err
		}
		return out, nil
	case resp.StatusCode == http.StatusNotFound:
		return dto.SessionResponse{}, ErrNotFound
	default:
		return dto.SessionResponse{}, httpclient.NewHTTPError(serviceName, resp)
	}
}
