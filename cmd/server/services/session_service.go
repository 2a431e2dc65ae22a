package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"doc-chat/cmd/internal/logger"
	"doc-chat/cmd/internal/trace"
	"doc-chat/models"
	"doc-chat/parser"
	"doc-chat/repositories"
)

var (
	ErrEmptyMessage  = errors.New("message is required")
	ErrQuotaExceeded = errors.New("chat quota exceeded")
	errEmptyReply    = errors.New("model returned an empty response")
)

// SessionNotFoundError 는 존재하지 않는 세션 ID 로 요청했을 때 반환된다.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return "Session not found: " + e.SessionID
}

func (e *SessionNotFoundError) Unwrap() error { return repositories.ErrSessionNotFound }

// ModelError 는 추론 백엔드 호출 실패를 감싼다.
type ModelError struct {
	Provider string
	Err      error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s model call failed: %v", e.Provider, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// QuotaLimiter 는 LLM 호출 직전에 한도를 예약한다.
type QuotaLimiter interface {
	WaitAndReserve(ctx context.Context) (bool, error)
}

// AILogWriter 는 턴 단위 LLM 사용 로그를 저장한다.
type AILogWriter interface {
	Insert(ctx context.Context, log models.AILog) error
}

// CreatedSession 은 업로드 처리 결과다.
type CreatedSession struct {
	Session    *models.ChatSession
	TextLength int
}

type SessionService struct {
	sessions repositories.SessionRepository
	model    ChatModel
	quota    QuotaLimiter
	aiLogs   AILogWriter
}

// NewSessionService 의 quota, aiLogs 는 nil 이면 사용하지 않는다.
func NewSessionService(sessions repositories.SessionRepository, model ChatModel, quota QuotaLimiter, aiLogs AILogWriter) *SessionService {
	return &SessionService{sessions: sessions, model: model, quota: quota, aiLogs: aiLogs}
}

// CreateSession 은 문서에서 텍스트를 추출하고 빈 대화 세션을 만든다.
// 추출 실패는 *parser.ExtractionError 로 반환된다.
func (s *SessionService) CreateSession(ctx context.Context, fileName string, data []byte) (CreatedSession, error) {
	text, err := parser.Extract(fileName, data)
	if err != nil {
		return CreatedSession{}, err
	}

	session := models.NewChatSession(fileName, text, BuildSystemPrompt(text))
	if err := s.sessions.Insert(ctx, session); err != nil {
		return CreatedSession{}, fmt.Errorf("insert session: %w", err)
	}

	textLength := utf8.RuneCountInString(text)
	logger.InfoWithFields("session created", logger.Fields{
		"request_id":  trace.RequestIDFromContext(ctx),
		"session_id":  session.ID,
		"file_name":   fileName,
		"text_length": textLength,
	})
	return CreatedSession{Session: session, TextLength: textLength}, nil
}

// Chat 은 한 턴을 처리한다. 질문과 답변은 답변 생성에 성공한 경우에만 함께 기록된다.
func (s *SessionService) Chat(ctx context.Context, sessionID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if s.quota != nil {
		ok, err := s.quota.WaitAndReserve(ctx)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrQuotaExceeded
		}
	}

	requestedAt := time.Now()
	reply, genErr := s.model.Generate(ctx, ModelRequest{
		SessionID:    session.ID,
		FileName:     session.FileName,
		SystemPrompt: session.SystemPrompt,
		History:      session.Messages,
		Message:      message,
	})
	if genErr == nil && strings.TrimSpace(reply.Text) == "" {
		genErr = errEmptyReply
	}
	s.writeAILog(ctx, session.ID, message, reply, requestedAt, genErr)

	if genErr != nil {
		logger.ErrorWithFields("model call failed", logger.Fields{
			"request_id": trace.RequestIDFromContext(ctx),
			"session_id": session.ID,
			"provider":   s.model.Provider(),
			"error":      genErr.Error(),
		})
		return "", &ModelError{Provider: s.model.Provider(), Err: genErr}
	}

	err = s.sessions.AppendMessages(ctx, session.ID,
		models.NewChatMessage(models.RoleUser, message),
		models.NewChatMessage(models.RoleModel, reply.Text),
	)
	if err != nil {
		// 답변 생성 중 세션이 삭제된 경우
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return "", &SessionNotFoundError{SessionID: sessionID}
		}
		return "", fmt.Errorf("append messages: %w", err)
	}
	return reply.Text, nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, &SessionNotFoundError{SessionID: sessionID}
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return &SessionNotFoundError{SessionID: sessionID}
		}
		return err
	}
	logger.InfoWithFields("session deleted", logger.Fields{
		"request_id": trace.RequestIDFromContext(ctx),
		"session_id": sessionID,
	})
	return nil
}

func (s *SessionService) writeAILog(ctx context.Context, sessionID, message string, reply ModelReply, requestedAt time.Time, genErr error) {
	if s.aiLogs == nil {
		return
	}

	completedAt := time.Now()
	entry := models.AILog{
		SessionID:      sessionID,
		RequestID:      trace.RequestIDFromContext(ctx),
		Provider:       s.model.Provider(),
		ModelName:      reply.ModelName,
		ModelVersion:   reply.ModelVersion,
		InputTokens:    reply.Usage.InputTokens,
		OutputTokens:   reply.Usage.OutputTokens,
		TotalTokens:    reply.Usage.TotalTokens,
		DurationMs:     completedAt.Sub(requestedAt).Milliseconds(),
		InputPrompt:    message,
		OutputResponse: reply.Text,
		RequestedAt:    requestedAt,
		CompletedAt:    completedAt,
	}
	if genErr != nil {
		msg := genErr.Error()
		entry.ErrorMessage = &msg
	}

	// 요청이 취소되어도 로그는 남긴다.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.aiLogs.Insert(logCtx, entry); err != nil {
		logger.WarnWithFields("failed to write ai log", logger.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}
