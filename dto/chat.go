package dto

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	Message    string `json:"message"`
	SessionID  string `json:"sessionId"`
	FileName   string `json:"fileName"`
	TextLength int    `json:"textLength"`
}

// ChatRequest is the body of POST /api/chat/{sessionId}.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the assistant reply for one chat turn.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// SessionResponse describes a stored session (GET /api/chat/session/{sessionId}).
type SessionResponse struct {
	SessionID    string `json:"sessionId"`
	FileName     string `json:"fileName"`
	MessageCount int    `json:"messageCount"`
	CreatedAt    string `json:"createdAt"`
}

// ErrorResponse is the common error body. Error may be absent on failures
// produced by proxies or the HTTP layer itself.
type ErrorResponse struct {
	Error string `json:"error,omitempty"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}
