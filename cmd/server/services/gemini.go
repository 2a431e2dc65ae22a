package services

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"doc-chat/config"
	"doc-chat/models"
)

type GeminiModel struct {
	client    *genai.Client
	modelName string
}

func NewGeminiModel(ctx context.Context, cfg config.LLMConfig) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiModel{client: client, modelName: cfg.ModelName}, nil
}

func (m *GeminiModel) Provider() string { return "gemini" }

func (m *GeminiModel) Generate(ctx context.Context, req ModelRequest) (ModelReply, error) {
	result, err := m.client.Models.GenerateContent(
		ctx,
		m.modelName,
		buildContents(req.History, req.Message),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		},
	)
	if err != nil {
		return ModelReply{}, err
	}

	reply := ModelReply{
		Text:         result.Text(),
		ModelName:    m.modelName,
		ModelVersion: result.ModelVersion,
	}
	if result.UsageMetadata != nil {
		reply.Usage = TokenUsage{
			InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int64(result.UsageMetadata.TotalTokenCount),
		}
	}
	return reply, nil
}

// buildContents 는 저장된 기록 뒤에 이번 질문을 user 턴으로 붙인다.
func buildContents(history []models.ChatMessage, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := genai.Role(genai.RoleUser)
		if msg.Role == models.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return append(contents, genai.NewContentFromText(message, genai.RoleUser))
}
