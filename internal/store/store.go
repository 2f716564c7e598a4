// Package store is the Postgres persistence used by the workers.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	apperrors "baws-workers/internal/common/errors"
	"baws-workers/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetDocument(ctx context.Context, projectID, documentID int64) (*models.Document, error) {
	const q = `SELECT id, project_id, conversation_id, filename, file_path, ai_task, notes, created_at
		FROM documents WHERE id = $1 AND project_id = $2`

	var (
		d    models.Document
		conv sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, q, documentID, projectID).Scan(
		&d.ID, &d.ProjectID, &conv, &d.Filename, &d.FilePath, &d.AITask, &d.Notes, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Document", "documentId: "+strconv.FormatInt(documentID, 10))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get document", err)
	}
	if conv.Valid {
		d.ConversationID = &conv.Int64
	}
	return &d, nil
}

// ConversationInProject reports whether the conversation exists and belongs
// to the project.
func (s *Store) ConversationInProject(ctx context.Context, projectID, conversationID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1 AND project_id = $2)`

	var ok bool
	if err := s.db.QueryRowContext(ctx, q, conversationID, projectID).Scan(&ok); err != nil {
		return false, apperrors.NewDatabaseError("check conversation", err)
	}
	return ok, nil
}

// ListMessages returns the conversation's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	const q = `SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list messages", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan message", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list messages", err)
	}
	return out, nil
}

// AppendTurn stores the user message and the assistant reply together.
// Either both rows are written or neither.
func (s *Store) AppendTurn(ctx context.Context, conversationID int64, userContent, assistantContent string) (user, assistant *models.Message, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("begin turn", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO messages (conversation_id, role, content)
		VALUES ($1, $2, $3) RETURNING id, created_at`

	user = &models.Message{ConversationID: conversationID, Role: models.RoleUser, Content: userContent}
	if err = tx.QueryRowContext(ctx, insert, conversationID, user.Role, userContent).Scan(&user.ID, &user.CreatedAt); err != nil {
		return nil, nil, apperrors.NewDatabaseError("insert user message", err)
	}

	assistant = &models.Message{ConversationID: conversationID, Role: models.RoleAssistant, Content: assistantContent}
	if err = tx.QueryRowContext(ctx, insert, conversationID, assistant.Role, assistantContent).Scan(&assistant.ID, &assistant.CreatedAt); err != nil {
		return nil, nil, apperrors.NewDatabaseError("insert assistant message", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID); err != nil {
		return nil, nil, apperrors.NewDatabaseError("touch conversation", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, apperrors.NewDatabaseError("commit turn", err)
	}
	return user, assistant, nil
}

// CreateAnalysis inserts a run in status running.
func (s *Store) CreateAnalysis(ctx context.Context, projectID, documentID int64, conversationID *int64) (int64, error) {
	const q = `INSERT INTO analyses (project_id, document_id, conversation_id, status)
		VALUES ($1, $2, $3, $4) RETURNING id`

	var conv sql.NullInt64
	if conversationID != nil {
		conv = sql.NullInt64{Int64: *conversationID, Valid: true}
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, q, projectID, documentID, conv, models.AnalysisRunning).Scan(&id); err != nil {
		return 0, apperrors.NewDatabaseError("create analysis", err)
	}
	return id, nil
}

func (s *Store) CompleteAnalysis(ctx context.Context, id int64, agentResults map[string]string) error {
	raw, err := json.Marshal(agentResults)
	if err != nil {
		return fmt.Errorf("encode agent results: %w", err)
	}
	const q = `UPDATE analyses SET status = $1, agent_results = $2, error_message = '', updated_at = NOW()
		WHERE id = $3`
	return s.updateAnalysis(ctx, "complete analysis", id, q, models.AnalysisCompleted, raw, id)
}

func (s *Store) FailAnalysis(ctx context.Context, id int64, message string) error {
	const q = `UPDATE analyses SET status = $1, agent_results = NULL, error_message = $2, updated_at = NOW()
		WHERE id = $3`
	return s.updateAnalysis(ctx, "fail analysis", id, q, models.AnalysisFailed, message, id)
}

func (s *Store) updateAnalysis(ctx context.Context, op string, id int64, q string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return apperrors.NewDatabaseError(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError("Analysis", "analysisId: "+strconv.FormatInt(id, 10))
	}
	return nil
}

func (s *Store) GetAnalysis(ctx context.Context, id int64) (*models.Analysis, error) {
	const q = `SELECT id, project_id, document_id, conversation_id, status, agent_results, error_message, created_at, updated_at
		FROM analyses WHERE id = $1`

	var (
		a       models.Analysis
		conv    sql.NullInt64
		results []byte
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID, &a.ProjectID, &a.DocumentID, &conv, &a.Status, &results, &a.ErrorMessage, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Analysis", "analysisId: "+strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get analysis", err)
	}
	if conv.Valid {
		a.ConversationID = &conv.Int64
	}
	if len(results) > 0 {
		a.AgentResults = json.RawMessage(results)
	}
	return &a, nil
}
