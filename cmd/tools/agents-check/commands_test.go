package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAgents  = "../../../internal/agents/persona/testdata/agents"
	testPrompts = "../../../internal/agents/persona/testdata/prompts"
	testCatalog = "../../../internal/agents/router/testdata/conversation-agents.yaml"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate_ReportsMissingPersona(t *testing.T) {
	out, err := run(t, "validate", "--agents-dir", testAgents, "--prompts-dir", testPrompts, "--catalog", testCatalog)
	require.Error(t, err)
	assert.Contains(t, out, "persona paul")
	assert.NotContains(t, out, "persona alex")
	assert.NotContains(t, out, "catalog")
}

func TestValidate_EmptyCatalog(t *testing.T) {
	out, err := run(t, "validate", "--agents-dir", testAgents, "--catalog", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "has no agents")
}

func TestValidate_BadActivityRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"activities":[{"id":"AnalyzeDoc","taskType":"analyze-document"}]}`), 0o600))

	problems, err := validateAll(&options{
		agentsDir:    testAgents,
		promptsDir:   testPrompts,
		catalogPath:  testCatalog,
		registryPath: path,
	})
	require.NoError(t, err)
	assert.Contains(t, problems, "activity AnalyzeDoc: activity ID must follow format: domain.subdomain.action (e.g., ba.document.analyze)")
	assert.Contains(t, problems, "activity AnalyzeDoc: does not declare VALIDATION_ERROR")
}

func TestValidate_BadActivityTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.json")
	body := `{"activities":[{"id":"ba.document.analyze","taskType":"analyze-document","timeout":"soon","errorCodes":["VALIDATION_ERROR"]}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	problems, err := validateAll(&options{
		agentsDir:    testAgents,
		promptsDir:   testPrompts,
		catalogPath:  testCatalog,
		registryPath: path,
	})
	require.NoError(t, err)
	assert.Contains(t, problems, `activity ba.document.analyze: bad timeout "soon": time: invalid duration "soon"`)
}

func TestPrompt(t *testing.T) {
	out, err := run(t, "prompt", "alex", "--agents-dir", testAgents, "--prompts-dir", testPrompts)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = run(t, "prompt", "zed", "--agents-dir", testAgents)
	assert.Error(t, err)
}

func TestActivities(t *testing.T) {
	out, err := run(t, "activities")
	require.NoError(t, err)
	for _, taskType := range []string{"analyze-document", "conversation-reply", "export-document"} {
		assert.Contains(t, out, taskType)
	}
	assert.Contains(t, out, "15m0s")
}
