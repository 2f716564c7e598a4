// Package conversation produces the assistant reply for one chat turn.
package conversation

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"baws-workers/internal/common/cache"
	apperrors "baws-workers/internal/common/errors"
	"baws-workers/internal/common/llm"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/common/metrics"
	"baws-workers/internal/models"
)

const fallbackBasePrompt = "You are a Senior Business Analyst. Answer the user's questions clearly. " +
	"When information is missing, ask concise follow-up questions to clarify. " +
	"Steer the conversation toward standard BA artifacts (requirements, user stories, acceptance criteria)."

// HistoryStore reads a conversation's messages oldest first.
type HistoryStore interface {
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)
}

// AgentSelector picks the agents that answer a message.
type AgentSelector interface {
	SelectAgents(ctx context.Context, message string) []string
}

// CatalogLookup resolves selected ids to catalog entries.
type CatalogLookup interface {
	Lookup(id string) (models.AgentCatalogEntry, bool)
}

type Agent struct {
	selector   AgentSelector
	catalog    CatalogLookup
	history    HistoryStore
	chat       llm.Chatter
	basePrompt *cache.ReadThrough[string, string]
	promptPath string
	logger     logger.Logger
}

func New(selector AgentSelector, catalog CatalogLookup, history HistoryStore, chat llm.Chatter, promptPath string, log logger.Logger) (*Agent, error) {
	base, err := cache.NewReadThrough("ba-conversation-prompt", 1, readBasePrompt)
	if err != nil {
		return nil, err
	}
	return &Agent{
		selector:   selector,
		catalog:    catalog,
		history:    history,
		chat:       chat,
		basePrompt: base,
		promptPath: promptPath,
		logger:     log.With(map[string]interface{}{"component": "conversation-agent"}),
	}, nil
}

// Reply routes the message, rebuilds the chat history and makes exactly one
// chat call. Nothing is persisted here.
func (a *Agent) Reply(ctx context.Context, conversationID int64, message string) (string, []string, error) {
	ids := a.selector.SelectAgents(ctx, message)

	var selected []models.AgentCatalogEntry
	for _, id := range ids {
		if e, ok := a.catalog.Lookup(id); ok {
			selected = append(selected, e)
		}
	}

	base, err := a.basePrompt.Get(a.promptPath)
	if err != nil {
		a.logger.Warn("base prompt unreadable, using built-in prompt", map[string]interface{}{
			"path":  a.promptPath,
			"error": err.Error(),
		})
	}
	system := BuildSystemPrompt(base, selected)

	msgs, err := a.history.ListMessages(ctx, conversationID)
	if err != nil {
		return "", nil, err
	}
	history := ToChatHistory(msgs)

	start := time.Now()
	reply, err := a.chat.Chat(ctx, system, history, message)
	metrics.AgentCallDuration.WithLabelValues(ids[0]).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AgentCalls.WithLabelValues(ids[0], "error").Inc()
		a.logger.Error("chat call failed", map[string]interface{}{
			"conversationId": conversationID,
			"agents":         ids,
			"error":          err.Error(),
		})
		return "", nil, apperrors.NewAgentFailureError(err)
	}
	metrics.AgentCalls.WithLabelValues(ids[0], "ok").Inc()

	a.logger.Info("reply generated", map[string]interface{}{
		"conversationId": conversationID,
		"agents":         ids,
		"historyTurns":   len(history),
	})
	return reply, ids, nil
}

// Invalidate drops the cached base prompt.
func (a *Agent) Invalidate() {
	a.basePrompt.Invalidate()
}

func readBasePrompt(path string) (string, error) {
	if path == "" {
		return fallbackBasePrompt, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fallbackBasePrompt, nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// BuildSystemPrompt appends the selected agents to the base instructions.
// With no agents the base is returned unchanged.
func BuildSystemPrompt(base string, agents []models.AgentCatalogEntry) string {
	if base == "" {
		base = fallbackBasePrompt
	}
	if len(agents) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nSelected agents for this reply:\n")
	for _, e := range agents {
		name := e.Name
		if name == "" {
			name = e.ID
		}
		b.WriteString("- ")
		b.WriteString(name)
		if e.Responsibility != "" {
			b.WriteString(" (" + e.Responsibility + ")")
		}
		if d := strings.TrimSpace(e.Description); d != "" {
			b.WriteString(": " + d)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nWrite one coherent reply that combines the viewpoints of all selected agents.")
	return b.String()
}

// ToChatHistory keeps user and assistant messages in order and relabels
// assistant turns as "model".
func ToChatHistory(msgs []models.Message) []models.ChatTurn {
	out := make([]models.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			out = append(out, models.ChatTurn{Role: models.ChatRoleUser, Content: m.Content})
		case models.RoleAssistant:
			out = append(out, models.ChatTurn{Role: models.ChatRoleModel, Content: m.Content})
		}
	}
	return out
}
