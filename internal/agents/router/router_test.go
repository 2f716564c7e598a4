package router

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baws-workers/internal/common/llm/llmtest"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/models"
)

func newTestRouter(t *testing.T, path string, fake *llmtest.Fake) *Router {
	t.Helper()
	c, err := NewCatalog(path)
	require.NoError(t, err)
	return New(c, fake, logger.NewTestLogger(t))
}

// ==========================
// SelectAgents
// ==========================

func TestSelectAgents(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"single id", `["emma"]`, []string{"emma"}},
		{"multiple ids keep order", `["sarah", "emma"]`, []string{"sarah", "emma"}},
		{"surrounding prose", "Sure!\n[\"emma\", \"sarah\"]\nThanks", []string{"emma", "sarah"}},
		{"unknown ids filtered", `["zoe", "sarah", 3]`, []string{"sarah"}},
		{"duplicates removed", `["emma", "emma", "sarah"]`, []string{"emma", "sarah"}},
		{"no array", "emma", []string{"alex"}},
		{"invalid json", "[emma]", []string{"alex"}},
		{"empty array", "[]", []string{"alex"}},
		{"only unknown", `["zoe"]`, []string{"alex"}},
		{"first array wins", `["zoe"] then ["emma"]`, []string{"alex"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &llmtest.Fake{Reply: tt.reply}
			r := newTestRouter(t, "testdata/conversation-agents.yaml", fake)

			got := r.SelectAgents(context.Background(), "write user stories")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, fake.Calls())
		})
	}
}

func TestSelectAgents_CompletionFailureFallsBack(t *testing.T) {
	fake := &llmtest.Fake{Err: errors.New("quota exceeded")}
	r := newTestRouter(t, "testdata/conversation-agents.yaml", fake)

	assert.Equal(t, []string{"alex"}, r.SelectAgents(context.Background(), "hi"))
}

func TestSelectAgents_EmptyCatalogSkipsModel(t *testing.T) {
	fake := &llmtest.Fake{Reply: `["emma"]`}
	r := newTestRouter(t, filepath.Join(t.TempDir(), "missing.yaml"), fake)

	assert.Equal(t, []string{DefaultAgent}, r.SelectAgents(context.Background(), "hi"))
	assert.Equal(t, 0, fake.Calls())
}

func TestSelectAgents_BrokenCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents: [\n"), 0o600))
	fake := &llmtest.Fake{Reply: `["emma"]`}
	r := newTestRouter(t, path, fake)

	assert.Equal(t, []string{DefaultAgent}, r.SelectAgents(context.Background(), "hi"))
	assert.Equal(t, 0, fake.Calls())
}

// ==========================
// Prompt
// ==========================

func TestBuildPrompt(t *testing.T) {
	agents := []models.AgentCatalogEntry{
		{ID: "emma", Responsibility: "Requirements", Description: "  Elicits requirements.  "},
	}
	got := BuildPrompt(agents, "hello")

	want := strings.Join([]string{
		"You are a router. Given the following agents and the user message, choose which agent(s) should handle this request.",
		`Reply with ONLY a JSON array of agent ids, e.g. ["emma"] or ["emma", "sarah"]. No other text.`,
		"",
		"Agents:",
		"  - id: emma",
		"    responsibility: Requirements",
		"    description: Elicits requirements.",
		"",
		"User message:",
		"hello",
		"",
		"Reply with JSON array of ids only:",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestBuildPromptTruncates(t *testing.T) {
	agents := []models.AgentCatalogEntry{{ID: "a", Description: strings.Repeat("d", 300)}}
	got := BuildPrompt(agents, strings.Repeat("m", 2500))

	assert.Contains(t, got, "description: "+strings.Repeat("d", 200)+"\n")
	assert.NotContains(t, got, strings.Repeat("d", 201))
	assert.Contains(t, got, "\n"+strings.Repeat("m", 2000)+"\n")
	assert.NotContains(t, got, strings.Repeat("m", 2001))
}

func TestPromptSentAsUserContent(t *testing.T) {
	fake := &llmtest.Fake{Reply: `["emma"]`}
	r := newTestRouter(t, "testdata/conversation-agents.yaml", fake)
	r.SelectAgents(context.Background(), "need requirements")

	calls := fake.Log()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].System)
	assert.Contains(t, calls[0].Content, "  - id: sarah\n")
	assert.Contains(t, calls[0].Content, "description: Leads the BA team and decides the analysis plan.\n")
}

// ==========================
// AgentInfo / cache
// ==========================

func TestAgentInfo(t *testing.T) {
	r := newTestRouter(t, "testdata/conversation-agents.yaml", &llmtest.Fake{})

	info, ok := r.AgentInfo("alex")
	require.True(t, ok)
	assert.Equal(t, &models.BotInfo{Name: "Alex", Avatar: "🧭", Role: "assistant"}, info)

	info, ok = r.AgentInfo("emma")
	require.True(t, ok)
	assert.Equal(t, "Emma", info.Name)

	_, ok = r.AgentInfo("zoe")
	assert.False(t, ok)
}

func TestCatalogInvalidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - id: emma\n"), 0o600))

	c, err := NewCatalog(path)
	require.NoError(t, err)
	entries, err := c.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - id: emma\n  - id: paul\n"), 0o600))
	entries, _ = c.Entries()
	assert.Len(t, entries, 1)

	c.Invalidate()
	entries, err = c.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
