package models

import "time"

// ChatRole identifies the speaker of a chat turn.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatTurn is one entry of a user's conversation transcript with the assistant.
type ChatTurn struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Role      ChatRole  `json:"role"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
