package chat

import (
	"errors"

	"doc-chat/cmd/docchat/httpclient"
)

const (
	// NetworkErrorMessage 는 전송 실패/타임아웃 시 히스토리에 추가되는 고정 문구다.
	NetworkErrorMessage = "Sorry, I encountered a network error. Please try again."
	// DefaultFailureReason 은 백엔드가 이유 없이 실패했을 때 사용한다.
	DefaultFailureReason = "Failed to get response"
)

var errEmptyReply = errors.New("backend returned an empty reply")

type ChatErrorKind int

const (
	ChatNetwork ChatErrorKind = iota
	ChatRejected
)

func (k ChatErrorKind) String() string {
	switch k {
	case ChatNetwork:
		return "network"
	case ChatRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ChatError 는 실패한 채팅 턴을 분류한다. 세션을 중단시키지 않고
// Content() 문구의 assistant 메시지로 대체된다.
type ChatError struct {
	Kind       ChatErrorKind
	Reason     string
	StatusCode int
	Cause      error
}

func (e *ChatError) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Reason
}

func (e *ChatError) Unwrap() error { return e.Cause }

// Content 는 히스토리에 들어갈 사용자용 문구다.
func (e *ChatError) Content() string {
	if e.Kind == ChatNetwork {
		return NetworkErrorMessage
	}
	return "Error: " + e.Reason
}

func classify(err error) *ChatError {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		reason := httpErr.Reason
		if reason == "" {
			reason = DefaultFailureReason
		}
		return &ChatError{Kind: ChatRejected, Reason: reason, StatusCode: httpErr.StatusCode, Cause: err}
	}
	return &ChatError{Kind: ChatNetwork, Cause: err}
}
