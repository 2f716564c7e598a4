// Package persona loads the analysis agent definitions and renders their
// system prompts.
package persona

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"baws-workers/internal/common/cache"
	apperrors "baws-workers/internal/common/errors"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/models"
)

// AgentOrder lists every known persona. The first one is the coordinator.
var AgentOrder = []string{"alex", "emma", "sarah", "david", "paul"}

const fallbackInstruction = "\nAnalyze the provided document and return your analysis in a clear, structured format."

// Registry reads <agents_dir>/<id>.agent.yaml on first use and keeps the
// parsed persona until Invalidate.
type Registry struct {
	agentsDir  string
	promptsDir string
	personas   *cache.ReadThrough[string, *models.AgentPersona]
	logger     logger.Logger
}

func NewRegistry(agentsDir, promptsDir string, log logger.Logger) (*Registry, error) {
	r := &Registry{
		agentsDir:  agentsDir,
		promptsDir: promptsDir,
		logger:     log.With(map[string]interface{}{"component": "persona-registry"}),
	}
	personas, err := cache.NewReadThrough("personas", len(AgentOrder), r.read)
	if err != nil {
		return nil, err
	}
	r.personas = personas
	return r, nil
}

// Known reports whether id names one of the configured personas.
func Known(id string) bool {
	for _, a := range AgentOrder {
		if a == id {
			return true
		}
	}
	return false
}

func (r *Registry) Load(id string) (*models.AgentPersona, error) {
	if !Known(id) {
		return nil, apperrors.NewUnknownAgentError(id)
	}
	return r.personas.Get(id)
}

func (r *Registry) read(id string) (*models.AgentPersona, error) {
	path := filepath.Join(r.agentsDir, id+".agent.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("Agent config", path)
		}
		return nil, fmt.Errorf("read agent config %s: %w", path, err)
	}

	var p models.AgentPersona
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.NewParseError(filepath.Base(path), err)
	}
	p.ID = id

	r.logger.Debug("persona loaded", map[string]interface{}{"agentId": id, "path": path})
	return &p, nil
}

// BuildSystemPrompt renders the persona sections followed by the activation
// prompt file, or a generic analysis instruction when there is none.
func (r *Registry) BuildSystemPrompt(id string) (string, error) {
	p, err := r.Load(id)
	if err != nil {
		return "", err
	}
	persona := p.Agent.Persona

	var parts []string
	if persona.Role != "" {
		parts = append(parts, "Role: "+persona.Role)
	}
	if persona.Identity != "" {
		parts = append(parts, "Identity: "+persona.Identity)
	}
	if persona.CommunicationStyle != "" {
		parts = append(parts, "Communication style: "+persona.CommunicationStyle)
	}
	if persona.Principles != "" {
		parts = append(parts, "Principles:\n"+persona.Principles)
	}
	parts = append(parts, r.activationPrompt(p))

	return strings.Join(parts, "\n\n"), nil
}

func (r *Registry) activationPrompt(p *models.AgentPersona) string {
	file := p.Agent.Activation.PromptFile
	if file == "" || r.promptsDir == "" {
		return fallbackInstruction
	}
	// Only the base name counts; prompt files always live in promptsDir.
	path := filepath.Join(r.promptsDir, filepath.Base(file))
	raw, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("activation prompt missing, using fallback", map[string]interface{}{
			"agentId": p.ID,
			"path":    path,
		})
		return fallbackInstruction
	}
	return strings.TrimSpace(string(raw))
}

// BotInfo attributes output to a persona.
func (r *Registry) BotInfo(id string) (*models.BotInfo, error) {
	p, err := r.Load(id)
	if err != nil {
		return nil, err
	}
	name := p.Agent.Metadata.Name
	if name == "" {
		name = TitleCase(id)
	}
	return &models.BotInfo{Name: name, Avatar: p.Agent.Metadata.Icon, Role: "assistant"}, nil
}

func (r *Registry) Invalidate() {
	r.personas.Invalidate()
}

// TitleCase upper-cases the first letter of id and lower-cases the rest.
func TitleCase(id string) string {
	first, size := utf8.DecodeRuneInString(id)
	if first == utf8.RuneError {
		return id
	}
	return string(unicode.ToUpper(first)) + strings.ToLower(id[size:])
}
