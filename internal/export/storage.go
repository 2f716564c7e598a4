package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "baws-workers/internal/common/errors"
	"baws-workers/internal/common/metrics"
	"baws-workers/internal/models"
)

const filenamePrefix = "export_"

// SavedFile describes an export written to disk.
type SavedFile struct {
	Filename string `json:"filename"`
	Path     string `json:"-"`
	MIMEType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Storage writes exports to <root>/<project_id>/.
type Storage struct {
	root string
	now  func() time.Time
}

func NewStorage(root string) *Storage {
	return &Storage{root: root, now: time.Now}
}

// Save writes data under a fresh export_<stamp>_<id>.<ext> name.
func (s *Storage) Save(ctx context.Context, projectID int64, format models.ExportFormat, data []byte) (*SavedFile, error) {
	if !format.Convertible() {
		return nil, apperrors.NewValidationError("format", "Unsupported format: "+string(format))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := s.projectDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	name := fmt.Sprintf("%s%s_%s.%s",
		filenamePrefix,
		s.now().UTC().Format("20060102_150405"),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		format,
	)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}

	metrics.ExportsGenerated.WithLabelValues(string(format)).Inc()
	return &SavedFile{Filename: name, Path: path, MIMEType: MIMEType(format), Size: int64(len(data))}, nil
}

// Resolve returns the on-disk path of a previously saved export. Names that
// are not export filenames are rejected.
func (s *Storage) Resolve(projectID int64, filename string) (string, error) {
	if !IsSafeFilename(filename) {
		return "", apperrors.NewValidationError("filename", "invalid export filename")
	}
	path := filepath.Join(s.projectDir(projectID), filename)
	if _, err := os.Stat(path); err != nil {
		return "", apperrors.NewNotFoundError("Export", filename)
	}
	return path, nil
}

func (s *Storage) projectDir(projectID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(projectID, 10))
}

// IsSafeFilename accepts only export_*.{docx,xlsx,md} with no path parts.
func IsSafeFilename(name string) bool {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return false
	}
	if !strings.HasPrefix(name, filenamePrefix) {
		return false
	}
	for f := range mimeTypes {
		if strings.HasSuffix(name, "."+string(f)) {
			return true
		}
	}
	return false
}
