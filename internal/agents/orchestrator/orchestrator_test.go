package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/goleak"

	apperrors "baws-workers/internal/common/errors"
	"baws-workers/internal/common/llm"
	"baws-workers/internal/common/llm/llmtest"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/models"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose view worker is started from init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// ==========================
// Test doubles
// ==========================

type personaPrompts struct {
	missing map[string]bool
}

func (p personaPrompts) BuildSystemPrompt(id string) (string, error) {
	if p.missing[id] {
		return "", apperrors.NewNotFoundError("Agent config", id)
	}
	return "persona:" + id, nil
}

func textParser(text string) ParseFunc {
	return func(path string) (string, *models.DocumentMetadata, error) {
		pages := 2
		return text, &models.DocumentMetadata{Filename: filepath.Base(path), Type: "pdf", PageCount: &pages}, nil
	}
}

// hangingCompleter blocks until the context ends for agents listed in hang.
type hangingCompleter struct {
	hang map[string]bool
}

func (h hangingCompleter) Complete(ctx context.Context, system, content string) (string, error) {
	id := strings.TrimPrefix(system, "persona:")
	if h.hang[id] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "done by " + id, nil
}

func newOrchestrator(t *testing.T, c llm.Completer, prompts PromptSource, cfg Config) *Orchestrator {
	t.Helper()
	return New(prompts, c, noop.NewTracerProvider().Tracer("test"), cfg, logger.NewTestLogger(t))
}

// ==========================
// RunAnalysis
// ==========================

func TestRunAnalysis_AllAgentsSucceed(t *testing.T) {
	fake := &llmtest.Fake{Respond: func(system, content string) (string, error) {
		return "result from " + strings.TrimPrefix(system, "persona:"), nil
	}}
	o := newOrchestrator(t, fake, personaPrompts{}, Config{}).WithParser(textParser("Scope: portal"))

	res, err := o.RunAnalysis(context.Background(), "/docs/brief.pdf")
	require.NoError(t, err)

	assert.Empty(t, res.Error)
	assert.Equal(t, "brief.pdf", res.DocumentMetadata.Filename)
	assert.Equal(t, map[string]string{
		"alex":  "result from alex",
		"emma":  "result from emma",
		"sarah": "result from sarah",
		"david": "result from david",
		"paul":  "result from paul",
	}, res.AgentResults)

	calls := fake.Log()
	require.Len(t, calls, 5)
	assert.Equal(t, "persona:alex", calls[0].System, "coordinator runs first")
	for _, c := range calls {
		assert.Equal(t, "Document to analyze:\n\nScope: portal", c.Content)
	}
}

func TestRunAnalysis_EmptyDocumentSkipsAgents(t *testing.T) {
	fake := &llmtest.Fake{Reply: "x"}
	o := newOrchestrator(t, fake, personaPrompts{}, Config{}).WithParser(textParser("  \n\t "))

	res, err := o.RunAnalysis(context.Background(), "/docs/blank.txt")
	require.NoError(t, err)
	assert.Equal(t, EmptyDocumentError, res.Error)
	assert.True(t, res.Failed())
	assert.Nil(t, res.AgentResults)
	assert.Equal(t, 0, fake.Calls())
}

func TestRunAnalysis_FailuresAreIsolated(t *testing.T) {
	fake := &llmtest.Fake{
		Reply:    "fine",
		FailWhen: map[string]error{"persona:sarah": errors.New("quota exceeded"), "persona:alex": errors.New("boom")},
	}
	prompts := personaPrompts{missing: map[string]bool{"paul": true}}
	o := newOrchestrator(t, fake, prompts, Config{}).WithParser(textParser("text"))

	res, err := o.RunAnalysis(context.Background(), "/docs/a.pdf")
	require.NoError(t, err)

	assert.Equal(t, "Error: boom", res.AgentResults["alex"])
	assert.Equal(t, "Error: quota exceeded", res.AgentResults["sarah"])
	assert.True(t, strings.HasPrefix(res.AgentResults["paul"], "Error: RESOURCE_NOT_FOUND"))
	assert.Equal(t, "fine", res.AgentResults["emma"])
	assert.Equal(t, "fine", res.AgentResults["david"])
	assert.Len(t, res.AgentResults, 5)
}

func TestRunAnalysis_PerAgentTimeout(t *testing.T) {
	c := hangingCompleter{hang: map[string]bool{"david": true}}
	o := newOrchestrator(t, c, personaPrompts{}, Config{AgentTimeout: 50 * time.Millisecond}).WithParser(textParser("text"))

	start := time.Now()
	res, err := o.RunAnalysis(context.Background(), "/docs/a.pdf")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, strings.HasPrefix(res.AgentResults["david"], "Error: TIMEOUT_ERROR"), res.AgentResults["david"])
	assert.Equal(t, "done by emma", res.AgentResults["emma"])
	assert.Equal(t, "done by alex", res.AgentResults["alex"])
}

func TestRunAnalysis_BoundedConcurrency(t *testing.T) {
	fake := &llmtest.Fake{Reply: "ok", Delay: 20 * time.Millisecond}
	o := newOrchestrator(t, fake, personaPrompts{}, Config{MaxConcurrency: 2}).WithParser(textParser("text"))

	_, err := o.RunAnalysis(context.Background(), "/docs/a.pdf")
	require.NoError(t, err)
	assert.LessOrEqual(t, fake.PeakConcurrency(), 2)
	assert.Equal(t, 5, fake.Calls())
}

func TestRunAnalysis_SpecialistsRunConcurrently(t *testing.T) {
	fake := &llmtest.Fake{Reply: "ok", Delay: 30 * time.Millisecond}
	o := newOrchestrator(t, fake, personaPrompts{}, Config{}).WithParser(textParser("text"))

	_, err := o.RunAnalysis(context.Background(), "/docs/a.pdf")
	require.NoError(t, err)
	assert.Greater(t, fake.PeakConcurrency(), 1)
	assert.LessOrEqual(t, fake.PeakConcurrency(), 4)
}

func TestRunAnalysis_ParserErrorsPropagate(t *testing.T) {
	o := newOrchestrator(t, &llmtest.Fake{}, personaPrompts{}, Config{})

	_, err := o.RunAnalysis(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ==========================
// Artifact
// ==========================

func TestSaveArtifact(t *testing.T) {
	dir := t.TempDir()
	pages := 3
	result := &models.AnalysisResult{
		DocumentMetadata: &models.DocumentMetadata{Filename: "brief.pdf", Type: "pdf", PageCount: &pages},
		AgentResults:     map[string]string{"alex": "Tổng quan <ok>"},
	}

	path, err := SaveArtifact(dir, 12, 34, result)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "12", "analysis_34.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Tổng quan <ok>")
	assert.Contains(t, string(raw), "\n  \"document_metadata\": {")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "agent_results")
	assert.NotContains(t, decoded, "error")
}
