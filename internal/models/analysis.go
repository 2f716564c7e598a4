package models

import (
	"encoding/json"
	"time"
)

type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisRunning   AnalysisStatus = "running"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

// DocumentMetadata describes a parsed document. Exactly one of PageCount
// (pdf) and ParagraphCount (docx/doc) is set; plain text has neither.
type DocumentMetadata struct {
	Filename       string `json:"filename"`
	Type           string `json:"type"`
	Size           int64  `json:"size"`
	PageCount      *int   `json:"page_count,omitempty"`
	ParagraphCount *int   `json:"paragraph_count,omitempty"`
}

// AnalysisResult is either an aggregate of agent outputs or a bare error.
type AnalysisResult struct {
	DocumentMetadata *DocumentMetadata `json:"document_metadata,omitempty"`
	AgentResults     map[string]string `json:"agent_results,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// Failed reports whether the run produced no agent results.
func (r *AnalysisResult) Failed() bool {
	return r.Error != ""
}

type Analysis struct {
	ID             int64           `json:"id"`
	ProjectID      int64           `json:"project_id"`
	DocumentID     int64           `json:"document_id"`
	ConversationID *int64          `json:"conversation_id,omitempty"`
	Status         AnalysisStatus  `json:"status"`
	AgentResults   json.RawMessage `json:"agent_results,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
