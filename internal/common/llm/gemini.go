package llm

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"baws-workers/internal/models"
)

type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the public endpoint; empty means the default.
	BaseURL string
}

// GeminiClient talks to the Gemini API. One instance is built at startup
// and shared by every agent.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig, httpClient *http.Client) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

func (g *GeminiClient) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(userContent, genai.RoleUser)}
	return g.generate(ctx, systemPrompt, contents)
}

func (g *GeminiClient) Chat(ctx context.Context, systemPrompt string, history []models.ChatTurn, message string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == models.ChatRoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, genai.Role(role)))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))
	return g.generate(ctx, systemPrompt, contents)
}

func (g *GeminiClient) generate(ctx context.Context, systemPrompt string, contents []*genai.Content) (string, error) {
	var cfg *genai.GenerateContentConfig
	if systemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	// A reply with no text parts comes back as "" rather than an error.
	return resp.Text(), nil
}
