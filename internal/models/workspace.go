package models

import "time"

type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultConversationTitle is used when a conversation is created without one.
const DefaultConversationTitle = "New chat"

type Conversation struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is an uploaded file stored under the project's documents folder.
type Document struct {
	ID             int64     `json:"id"`
	ProjectID      int64     `json:"project_id"`
	ConversationID *int64    `json:"conversation_id,omitempty"`
	Filename       string    `json:"filename"`
	FilePath       string    `json:"file_path"`
	AITask         string    `json:"ai_task,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
