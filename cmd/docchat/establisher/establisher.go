// Package establisher 는 문서 하나를 업로드해 채팅 세션 식별자를 얻는다.
package establisher

import (
	"context"
	"errors"
	"fmt"

	"doc-chat/cmd/docchat/httpclient"
	"doc-chat/cmd/internal/logger"
	"doc-chat/cmd/internal/trace"
	"doc-chat/dto"
)

const (
	// NetworkFailureMessage 는 전송 실패 시 사용자에게 보여주는 재시도 안내다.
	NetworkFailureMessage = "Could not reach the server. Please check your connection and try again."
	// DefaultRejectReason 은 백엔드가 이유 없이 거절했을 때의 문구다.
	DefaultRejectReason = "Upload failed"
)

// ErrIncompleteSession 은 2xx 응답이지만 sessionId 또는 fileName 이 빠진 경우다.
var ErrIncompleteSession = errors.New("upload response is missing sessionId or fileName")

// Session 은 업로드 성공으로 발급된 세션이다. 생성 후 변경되지 않는다.
type Session struct {
	ID          string
	DisplayName string
}

type UploadErrorKind int

const (
	UploadNetwork UploadErrorKind = iota
	UploadRejected
)

func (k UploadErrorKind) String() string {
	switch k {
	case UploadNetwork:
		return "network"
	case UploadRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// UploadError 는 업로드 실패를 분류한다. Error() 는 그대로 사용자에게 보여줄 수 있는 문구다.
type UploadError struct {
	Kind       UploadErrorKind
	Reason     string
	StatusCode int
	Cause      error
}

func (e *UploadError) Error() string {
	if e.Kind == UploadNetwork {
		return NetworkFailureMessage
	}
	return e.Reason
}

func (e *UploadError) Unwrap() error { return e.Cause }

// Uploader 는 ingestion 백엔드 호출을 추상화한다. ingestclient.Client 가 구현한다.
type Uploader interface {
	Upload(ctx context.Context, fileName, contentType string, data []byte) (dto.UploadResponse, error)
}

type Establisher struct {
	uploader Uploader
}

func New(uploader Uploader) *Establisher {
	return &Establisher{uploader: uploader}
}

// Submit 은 문서를 검증한 뒤 한 번 업로드한다. 자동 재시도는 하지 않는다.
func (e *Establisher) Submit(ctx context.Context, doc Document) (Session, error) {
	if err := doc.Validate(); err != nil {
		return Session{}, err
	}

	ctx = trace.WithRequest(ctx)
	fields := logger.Fields{
		"request_id": trace.RequestIDFromContext(ctx),
		"file_name":  doc.Name,
		"size":       len(doc.Data),
	}

	resp, err := e.uploader.Upload(ctx, doc.Name, doc.ContentType, doc.Data)
	if errors.Is(err, httpclient.ErrMalformedResponse) {
		fields["error"] = err.Error()
		logger.WarnWithFields("document upload returned malformed body", fields)
		return Session{}, fmt.Errorf("%w: %v", ErrIncompleteSession, err)
	}
	if err != nil {
		uploadErr := classify(err)
		fields["kind"] = uploadErr.Kind.String()
		fields["error"] = err.Error()
		logger.WarnWithFields("document upload failed", fields)
		return Session{}, uploadErr
	}

	if resp.SessionID == "" || resp.FileName == "" {
		fields["session_id"] = resp.SessionID
		logger.WarnWithFields("document upload returned incomplete session", fields)
		return Session{}, ErrIncompleteSession
	}

	fields["session_id"] = resp.SessionID
	fields["text_length"] = resp.TextLength
	logger.InfoWithFields("document session established", fields)
	return Session{ID: resp.SessionID, DisplayName: resp.FileName}, nil
}

func classify(err error) *UploadError {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		reason := httpErr.Reason
		if reason == "" {
			reason = DefaultRejectReason
		}
		return &UploadError{Kind: UploadRejected, Reason: reason, StatusCode: httpErr.StatusCode, Cause: err}
	}
	return &UploadError{Kind: UploadNetwork, Cause: fmt.Errorf("upload: %w", err)}
}
