package exportdocument

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"baws-workers/internal/common/errors"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/export"
	"baws-workers/internal/models"
)

// ==========================
// Test Helpers
// ==========================

func createTestConfig() *Config {
	return &Config{Enabled: true, MaxJobsActive: 5, Timeout: 10 * time.Second}
}

func createTestHandler(t *testing.T, saver ExportSaver) *Handler {
	h, err := NewHandler(HandlerOptions{
		CustomConfig: createTestConfig(),
		Exports:      saver,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key: key, Type: TaskType, Retries: 1, CustomHeaders: "{}", Variables: string(variablesJSON),
	}}
}

type failingSaver struct{}

func (failingSaver) Save(context.Context, int64, models.ExportFormat, []byte) (*export.SavedFile, error) {
	return nil, errors.NewDatabaseError("write export", stderrors.New("disk full"))
}

const backlog = "# Backlog\n\n- login\n\n| Story | Points |\n|---|---|\n| Login | 3 |\n"

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		format   string
		want     models.ExportFormat
		validate func(t *testing.T, data []byte)
	}{
		{
			format: " DOCX ",
			want:   models.FormatDOCX,
			validate: func(t *testing.T, data []byte) {
				zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
				require.NoError(t, err)
				names := map[string]bool{}
				for _, f := range zr.File {
					names[f.Name] = true
				}
				assert.True(t, names["word/document.xml"])
			},
		},
		{
			format: "xlsx",
			want:   models.FormatXLSX,
			validate: func(t *testing.T, data []byte) {
				f, err := excelize.OpenReader(bytes.NewReader(data))
				require.NoError(t, err)
				defer f.Close()
				rows, err := f.GetRows("Sheet1")
				require.NoError(t, err)
				assert.Equal(t, []string{"Story", "Points"}, rows[0])
			},
		},
		{
			format:   "md",
			want:     models.FormatMarkdown,
			validate: func(t *testing.T, data []byte) { assert.Equal(t, backlog, string(data)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			root := t.TempDir()
			h := createTestHandler(t, export.NewStorage(root))

			out, err := h.Execute(context.Background(), &Input{ProjectID: 4, Markdown: backlog, Format: tt.format})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Format)
			assert.Equal(t, export.MIMEType(tt.want), out.MIMEType)

			data, err := os.ReadFile(filepath.Join(root, "4", out.Filename))
			require.NoError(t, err)
			assert.EqualValues(t, len(data), out.Size)
			tt.validate(t, data)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	h := createTestHandler(t, export.NewStorage(t.TempDir()))
	_, err := h.Execute(context.Background(), &Input{ProjectID: 4, Markdown: backlog, Format: "pdf"})
	assert.ErrorIs(t, err, errors.ErrValidation)

	h = createTestHandler(t, failingSaver{})
	_, err = h.Execute(context.Background(), &Input{ProjectID: 4, Markdown: backlog, Format: "md"})
	assert.ErrorIs(t, err, errors.ErrDatabase)
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, export.NewStorage(t.TempDir()))

	in, err := h.parseInput(createMockJob(1, map[string]interface{}{"projectId": 4, "markdown": "# T", "format": "docx"}))
	require.NoError(t, err)
	assert.Equal(t, "docx", in.Format)

	_, err = h.parseInput(createMockJob(2, map[string]interface{}{"projectId": 4, "format": "docx"}))
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestHandler_NewHandlerRequiresStorage(t *testing.T) {
	_, err := NewHandler(HandlerOptions{CustomConfig: createTestConfig()})
	assert.Error(t, err)
}
