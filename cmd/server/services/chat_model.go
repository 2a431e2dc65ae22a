package services

import (
	"context"
	"fmt"
	"strings"

	"doc-chat/config"
	"doc-chat/models"
)

// ModelRequest 는 한 턴의 추론 요청이다. History 에는 이번 질문이 포함되지 않는다.
type ModelRequest struct {
	SessionID    string
	FileName     string
	SystemPrompt string
	History      []models.ChatMessage
	Message      string
}

type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

type ModelReply struct {
	Text         string
	ModelName    string
	ModelVersion string
	Usage        TokenUsage
}

// ChatModel 은 대화 기록과 질문으로 답변을 생성하는 추론 백엔드다.
type ChatModel interface {
	Provider() string
	Generate(ctx context.Context, req ModelRequest) (ModelReply, error)
}

// NewChatModel 은 llm.provider 설정에 맞는 ChatModel 을 생성한다.
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (ChatModel, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini", "google":
		return NewGeminiModel(ctx, cfg)
	case "echo":
		return EchoModel{}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// EchoModel 은 외부 API 없이 동작하는 개발/테스트용 모델이다.
type EchoModel struct{}

func (EchoModel) Provider() string { return "echo" }

func (EchoModel) Generate(ctx context.Context, req ModelRequest) (ModelReply, error) {
	if err := ctx.Err(); err != nil {
		return ModelReply{}, err
	}
	turn := len(req.History)/2 + 1
	return ModelReply{
		Text:      fmt.Sprintf("[%s #%d] %s", req.FileName, turn, req.Message),
		ModelName: "echo",
	}, nil
}
