package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody 는 에러 응답에서 읽어 들일 최대 바이트 수다.
const maxErrorBody = 64 * 1024

// ErrMalformedResponse 는 2xx 응답의 바디를 해석할 수 없을 때 감싸서 반환된다.
var ErrMalformedResponse = errors.New("malformed response body")

// HTTPError 는 백엔드가 2xx 가 아닌 상태로 응답했음을 나타낸다.
// 전송 계층 실패(연결 거부, 타임아웃 등)는 HTTPError 가 아니다.
type HTTPError struct {
	Service    string
	StatusCode int
	Body       string
	// Reason 은 응답 바디의 "error" 필드 값이다. 없으면 빈 문자열.
	Reason string
}

func (e *HTTPError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s request failed: status=%d error=%s", e.Service, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("%s request failed: status=%d body=%s", e.Service, e.StatusCode, e.Body)
}

// NewHTTPError 는 실패 응답의 바디를 읽어 HTTPError 를 만든다.
// 바디가 JSON 이 아니거나 error 필드가 없으면 Reason 은 비어 있다.
func NewHTTPError(service string, resp *http.Response) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	return &HTTPError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Reason:     payload.Error,
	}
}

// IsSuccess 는 2xx 상태인지 확인한다.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
