package models

import (
	"time"

	"github.com/google/uuid"
)

// Role of a stored chat message. Stored roles follow the inference API
// ("user" / "model"), not the client's display roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatMessage is one turn entry inside a session
type ChatMessage struct {
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ChatSession binds an uploaded document to its conversation
// Collection: chat_sessions
type ChatSession struct {
	ID           string        `bson:"_id" json:"id"`
	FileName     string        `bson:"file_name" json:"file_name"`
	DocumentText string        `bson:"document_text" json:"-"`
	SystemPrompt string        `bson:"system_prompt" json:"-"`
	Messages     []ChatMessage `bson:"messages" json:"messages"`
	CreatedAt    time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at" json:"updated_at"`
}

// NewChatSession creates a session with a fresh uuid and no messages.
func NewChatSession(fileName, documentText, systemPrompt string) *ChatSession {
	now := time.Now().UTC()
	return &ChatSession{
		ID:           uuid.NewString(),
		FileName:     fileName,
		DocumentText: documentText,
		SystemPrompt: systemPrompt,
		Messages:     []ChatMessage{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func NewChatMessage(role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}
