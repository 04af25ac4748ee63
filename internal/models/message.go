package models

import "time"

// Message roles. Generated replies use RoleModel, matching the wire format
// the Gemini API expects for multi-turn history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one persisted conversation turn. Rows are append-only: never
// updated, never deleted.
type Message struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ReplyTo   *int64    `json:"reply_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Feedback is a thumbs-up/down rating on a generated reply. At most one row
// exists per message; re-voting replaces the previous rating.
type Feedback struct {
	ID        int64     `json:"id"`
	MessageID int64     `json:"message_id"`
	Rating    int       `json:"rating"` // 1 or -1
	CreatedAt time.Time `json:"created_at"`
}

// Example is a well-rated (prompt, response) pair fed back into the system
// instruction as in-context guidance.
type Example struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Stats aggregates feedback over the whole transcript.
type Stats struct {
	TotalResponses int `json:"totalResponses"`
	Positive       int `json:"positive"`
	Negative       int `json:"negative"`
}

type RecordMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	ReplyTo *int64 `json:"replyTo"`
}

type RecordMessageResponse struct {
	ID int64 `json:"id"`
}

type RecordFeedbackRequest struct {
	MessageID int64 `json:"messageId"`
	Rating    int   `json:"rating"`
}

type RecordFeedbackResponse struct {
	Success bool `json:"success"`
}
