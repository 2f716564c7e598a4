package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"baws-workers/internal/models"
)

// SaveArtifact writes <dir>/<projectID>/analysis_<analysisID>.json and
// returns its path.
func SaveArtifact(dir string, projectID, analysisID int64, result *models.AnalysisResult) (string, error) {
	projectDir := filepath.Join(dir, strconv.FormatInt(projectID, 10))
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return "", fmt.Errorf("create analysis output dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return "", fmt.Errorf("encode analysis result: %w", err)
	}

	path := filepath.Join(projectDir, fmt.Sprintf("analysis_%d.json", analysisID))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write analysis artifact: %w", err)
	}
	return path, nil
}
