package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: baws
    user: baws
  redis:
    address: localhost:6379
apis:
  genai:
    api_key: ${TEST_GEMINI_KEY}
agents:
  agents_dir: "{project-root}/configs/agents"
  catalog_path: "{project-root}/configs/conversation-agents.yaml"
storage:
  project_root: /srv/baws
workers:
  analyze-document:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret-key")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "secret-key", cfg.APIs.GenAI.APIKey)
	assert.Equal(t, "gemini-1.5-flash", cfg.APIs.GenAI.Model)
	assert.Equal(t, "/srv/baws/configs/agents", cfg.Agents.AgentsDir)
	assert.Equal(t, "/srv/baws/configs/prompts", cfg.Agents.PromptsDir)
	assert.Equal(t, "/srv/baws/configs/conversation-agents.yaml", cfg.Agents.CatalogPath)
	assert.Equal(t, "/srv/baws/data/documents", cfg.Storage.DocumentsPath)
	assert.Equal(t, "/srv/baws/data/analysis_output", cfg.Storage.AnalysisOutput)
	assert.Equal(t, "alex", cfg.Agents.DefaultAgent)
	assert.Equal(t, 4, cfg.Agents.MaxConcurrency)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)

	wc := GetWorkerConfig(cfg, "analyze-document")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.Equal(t, 3, wc.MaxRetries)
}

func TestLoadFromFileValidation(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := LoadFromFile(writeConfig(t, baseYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apis.genai.api_key is required")
}

func TestGeminiKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "")
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIs.GenAI.APIKey)
}

func TestWorkerHelpers(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"export-document": {Enabled: false}}}

	assert.False(t, IsWorkerEnabled(cfg, "export-document"))
	assert.True(t, IsWorkerEnabled(cfg, "conversation-reply"))
	assert.Equal(t, 300000, GetWorkerConfig(cfg, "conversation-reply").Timeout)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestStorageResolvePath(t *testing.T) {
	s := StorageConfig{ProjectRoot: "/data"}
	assert.Equal(t, "/data/out", s.ResolvePath("{project-root}/out"))
	assert.Equal(t, "/abs", s.ResolvePath("/abs"))
}
