// Package llm wraps the hosted generative model behind two narrow
// interfaces so agents can be tested against a scripted fake.
package llm

import (
	"context"

	"baws-workers/internal/models"
)

// Completer sends one system prompt and one user content and returns text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// Chatter continues a multi-turn conversation.
type Chatter interface {
	Chat(ctx context.Context, systemPrompt string, history []models.ChatTurn, message string) (string, error)
}

// Client is both.
type Client interface {
	Completer
	Chatter
}
