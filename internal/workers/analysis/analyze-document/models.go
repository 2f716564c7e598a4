// internal/workers/analysis/analyze-document/models.go
package analyzedocument

import (
	"context"
	"time"

	"baws-workers/internal/common/aws"
	"baws-workers/internal/common/database"
	"baws-workers/internal/models"
)

type Input struct {
	ProjectID      int64  `json:"projectId"`
	DocumentID     int64  `json:"documentId"`
	ConversationID *int64 `json:"conversationId,omitempty"`
}

type Output struct {
	AnalysisID       int64                    `json:"analysisId"`
	Status           models.AnalysisStatus    `json:"status"`
	DocumentMetadata *models.DocumentMetadata `json:"documentMetadata,omitempty"`
	AgentResults     map[string]string        `json:"agentResults,omitempty"`
	Error            string                   `json:"error,omitempty"`
	ArtifactPath     string                   `json:"artifactPath,omitempty"`
}

// AnalysisStore is the persistence the worker needs.
type AnalysisStore interface {
	GetDocument(ctx context.Context, projectID, documentID int64) (*models.Document, error)
	ConversationInProject(ctx context.Context, projectID, conversationID int64) (bool, error)
	CreateAnalysis(ctx context.Context, projectID, documentID int64, conversationID *int64) (int64, error)
	CompleteAnalysis(ctx context.Context, id int64, agentResults map[string]string) error
	FailAnalysis(ctx context.Context, id int64, message string) error
}

type Analyzer interface {
	RunAnalysis(ctx context.Context, path string) (*models.AnalysisResult, error)
}

type RunLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*database.Lock, error)
	ReleaseLock(ctx context.Context, l *database.Lock) (bool, error)
}

// Indexer stores completed analyses for search. Optional.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// Notifier announces completed analyses. Optional.
type Notifier interface {
	PublishAnalysisCompleted(ctx context.Context, ev aws.AnalysisEvent) (string, error)
}

// indexedAnalysis is the Elasticsearch document shape.
type indexedAnalysis struct {
	AnalysisID       int64                    `json:"analysis_id"`
	ProjectID        int64                    `json:"project_id"`
	DocumentID       int64                    `json:"document_id"`
	ConversationID   *int64                   `json:"conversation_id,omitempty"`
	Filename         string                   `json:"filename"`
	DocumentMetadata *models.DocumentMetadata `json:"document_metadata,omitempty"`
	AgentResults     map[string]string        `json:"agent_results"`
	CompletedAt      time.Time                `json:"completed_at"`
}
