package models

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint. History is the
// transcript as the client has rendered it, oldest first, excluding the new
// message itself.
type ChatRequest struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history"`
}

// ChatResponse is the reply from the AI chat, plus the ids assigned to the
// two turns persisted during the exchange. ModelMessageID is what feedback
// must reference.
type ChatResponse struct {
	Reply          string `json:"reply"`
	UserMessageID  int64  `json:"userMessageId"`
	ModelMessageID int64  `json:"modelMessageId"`
}
