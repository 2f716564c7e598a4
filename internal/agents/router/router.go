// Package router asks the model which conversation agents should answer a
// user message.
package router

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"baws-workers/internal/agents/persona"
	"baws-workers/internal/common/llm"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/common/metrics"
	"baws-workers/internal/models"
)

// DefaultAgent answers when the catalog is empty.
const DefaultAgent = "alex"

const (
	maxDescriptionChars = 200
	maxMessageChars     = 2000
)

var jsonArray = regexp.MustCompile(`\[[\s\S]*?\]`)

type Router struct {
	catalog   *Catalog
	completer llm.Completer
	logger    logger.Logger
}

func New(catalog *Catalog, completer llm.Completer, log logger.Logger) *Router {
	return &Router{
		catalog:   catalog,
		completer: completer,
		logger:    log.With(map[string]interface{}{"component": "router"}),
	}
}

// SelectAgents returns a non-empty, ordered, de-duplicated list of catalog
// ids. Failures never surface: they resolve to the first catalog entry.
func (r *Router) SelectAgents(ctx context.Context, message string) []string {
	agents, err := r.catalog.Entries()
	if err != nil {
		r.logger.Error("agent catalog unreadable", map[string]interface{}{"error": err.Error()})
		metrics.RouterFallbacks.WithLabelValues("catalog_error").Inc()
		return []string{DefaultAgent}
	}
	if len(agents) == 0 {
		return []string{DefaultAgent}
	}
	first := []string{agents[0].ID}

	reply, err := r.completer.Complete(ctx, "", BuildPrompt(agents, message))
	if err != nil {
		r.logger.Warn("router completion failed, using first agent", map[string]interface{}{
			"error":    err.Error(),
			"fallback": first[0],
		})
		metrics.RouterFallbacks.WithLabelValues("completion_error").Inc()
		return first
	}

	ids, reason := parseSelection(reply, agents)
	if len(ids) == 0 {
		r.logger.Info("router reply unusable, using first agent", map[string]interface{}{
			"reason":   reason,
			"fallback": first[0],
		})
		metrics.RouterFallbacks.WithLabelValues(reason).Inc()
		return first
	}

	r.logger.Debug("agents selected", map[string]interface{}{"agents": ids})
	return ids
}

// parseSelection extracts the first bracketed JSON array and keeps the
// string ids that exist in agents. reason is set when the result is empty.
func parseSelection(reply string, agents []models.AgentCatalogEntry) ([]string, string) {
	match := jsonArray.FindString(strings.TrimSpace(reply))
	if match == "" {
		return nil, "no_array"
	}

	var raw interface{}
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, "invalid_json"
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, "not_array"
	}

	known := make(map[string]bool, len(agents))
	for _, a := range agents {
		known[a.ID] = true
	}
	seen := make(map[string]bool, len(items))
	var ids []string
	for _, item := range items {
		id, ok := item.(string)
		if !ok || !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, "no_known_ids"
	}
	return ids, ""
}

// BuildPrompt renders the routing instruction sent as the only user content.
func BuildPrompt(agents []models.AgentCatalogEntry, message string) string {
	lines := []string{
		"You are a router. Given the following agents and the user message, choose which agent(s) should handle this request.",
		`Reply with ONLY a JSON array of agent ids, e.g. ["emma"] or ["emma", "sarah"]. No other text.`,
		"",
		"Agents:",
	}
	for _, a := range agents {
		lines = append(lines,
			"  - id: "+a.ID,
			"    responsibility: "+a.Responsibility,
			"    description: "+headRunes(strings.TrimSpace(a.Description), maxDescriptionChars),
			"",
		)
	}
	lines = append(lines,
		"User message:",
		headRunes(message, maxMessageChars),
		"",
		"Reply with JSON array of ids only:",
	)
	return strings.Join(lines, "\n")
}

// AgentInfo returns attribution for a catalog agent, or false when the id
// is not in the catalog.
func (r *Router) AgentInfo(id string) (*models.BotInfo, bool) {
	a, ok := r.catalog.Lookup(id)
	if !ok {
		return nil, false
	}
	name := a.Name
	if name == "" {
		name = persona.TitleCase(id)
	}
	return &models.BotInfo{Name: name, Avatar: a.Avatar, Role: "assistant"}, true
}

func headRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
