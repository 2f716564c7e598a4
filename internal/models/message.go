package models

import "time"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Valid reports whether r is one of the three stored roles.
func (r MessageRole) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Chat-service role labels. Stored assistant messages travel as "model".
const (
	ChatRoleUser  = "user"
	ChatRoleModel = "model"
)

// ChatTurn is one entry of the history sent to the chat service.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
