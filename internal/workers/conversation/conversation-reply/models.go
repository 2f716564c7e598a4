// internal/workers/conversation/conversation-reply/models.go
package conversationreply

import (
	"context"

	"baws-workers/internal/export"
	"baws-workers/internal/models"
)

// Input carries the raw message payload: a string or
// {content_type: "text", parts: [...]}.
type Input struct {
	ProjectID      int64       `json:"projectId"`
	ConversationID int64       `json:"conversationId"`
	Content        interface{} `json:"content"`
}

type Output struct {
	UserMessage      *models.Message `json:"userMessage"`
	AssistantMessage *models.Message `json:"assistantMessage"`
	Bot              *models.BotInfo `json:"bot"`
	Agents           []string        `json:"agents"`
	Export           *ExportResult   `json:"export,omitempty"`
}

// ExportResult reports the automatic export of the reply. Supported is false
// when the requested format is recognised but cannot be produced.
type ExportResult struct {
	Format    models.ExportFormat `json:"format"`
	Supported bool                `json:"supported"`
	Filename  string              `json:"filename,omitempty"`
	MIMEType  string              `json:"mimeType,omitempty"`
	Size      int64               `json:"size,omitempty"`
	Error     string              `json:"error,omitempty"`
}

type ConversationStore interface {
	ConversationInProject(ctx context.Context, projectID, conversationID int64) (bool, error)
	AppendTurn(ctx context.Context, conversationID int64, userContent, assistantContent string) (*models.Message, *models.Message, error)
}

// Replier produces the assistant reply and the ids of the agents that
// shaped it, primary first.
type Replier interface {
	Reply(ctx context.Context, conversationID int64, message string) (string, []string, error)
}

// AgentDirectory resolves catalog attribution for an agent id.
type AgentDirectory interface {
	AgentInfo(id string) (*models.BotInfo, bool)
}

// PersonaDirectory resolves attribution from persona files. Used when the
// catalog does not list the agent.
type PersonaDirectory interface {
	BotInfo(id string) (*models.BotInfo, error)
}

type ExportSaver interface {
	Save(ctx context.Context, projectID int64, format models.ExportFormat, data []byte) (*export.SavedFile, error)
}
