// internal/workers/export/export-document/models.go
package exportdocument

import (
	"context"

	"baws-workers/internal/export"
	"baws-workers/internal/models"
)

type Input struct {
	ProjectID int64  `json:"projectId"`
	Markdown  string `json:"markdown"`
	Format    string `json:"format"`
}

type Output struct {
	Filename string              `json:"filename"`
	Format   models.ExportFormat `json:"format"`
	MIMEType string              `json:"mimeType"`
	Size     int64               `json:"size"`
}

type ExportSaver interface {
	Save(ctx context.Context, projectID int64, format models.ExportFormat, data []byte) (*export.SavedFile, error)
}
