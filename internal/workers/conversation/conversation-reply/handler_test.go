package conversationreply

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baws-workers/internal/agents/conversation"
	"baws-workers/internal/agents/router"
	"baws-workers/internal/common/errors"
	"baws-workers/internal/common/llm/llmtest"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/export"
	"baws-workers/internal/models"
)

// ==========================
// Fakes
// ==========================

// memoryStore keeps one project's conversations in memory.
type memoryStore struct {
	mu         sync.Mutex
	projectID  int64
	convs      map[int64]bool
	messages   map[int64][]models.Message
	nextID     int64
	appendErr  error
	appendCall int
}

func newMemoryStore(projectID int64, convs ...int64) *memoryStore {
	s := &memoryStore{projectID: projectID, convs: map[int64]bool{}, messages: map[int64][]models.Message{}}
	for _, c := range convs {
		s.convs[c] = true
	}
	return s
}

func (s *memoryStore) ConversationInProject(_ context.Context, projectID, conversationID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return projectID == s.projectID && s.convs[conversationID], nil
}

func (s *memoryStore) ListMessages(_ context.Context, conversationID int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages[conversationID]...), nil
}

func (s *memoryStore) AppendTurn(_ context.Context, conversationID int64, user, assistant string) (*models.Message, *models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCall++
	if s.appendErr != nil {
		return nil, nil, s.appendErr
	}
	now := time.Now().UTC()
	s.nextID++
	u := models.Message{ID: s.nextID, ConversationID: conversationID, Role: models.RoleUser, Content: user, CreatedAt: now}
	s.nextID++
	a := models.Message{ID: s.nextID, ConversationID: conversationID, Role: models.RoleAssistant, Content: assistant, CreatedAt: now}
	s.messages[conversationID] = append(s.messages[conversationID], u, a)
	return &u, &a, nil
}

type stubReplier struct {
	reply string
	ids   []string
	err   error
}

func (s stubReplier) Reply(context.Context, int64, string) (string, []string, error) {
	return s.reply, s.ids, s.err
}

type stubDirectory map[string]models.BotInfo

func (d stubDirectory) AgentInfo(id string) (*models.BotInfo, bool) {
	info, ok := d[id]
	if !ok {
		return nil, false
	}
	return &info, true
}

type stubPersonas map[string]models.BotInfo

func (p stubPersonas) BotInfo(id string) (*models.BotInfo, error) {
	info, ok := p[id]
	if !ok {
		return nil, errors.NewUnknownAgentError(id)
	}
	return &info, nil
}

// ==========================
// Test Helpers
// ==========================

const tableReply = "## Backlog\n\n| Story | Points |\n|---|---|\n| Login | 3 |\n"

func createTestConfig() *Config {
	return &Config{Enabled: true, MaxJobsActive: 2, Timeout: 30 * time.Second, AutoExport: true}
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "ba-conversation",
		ElementId:          "Activity_ConversationReply",
		CustomHeaders:      "{}",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, store *memoryStore, replier Replier) (*Handler, string) {
	t.Helper()
	root := t.TempDir()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: createTestConfig(),
		Store:        store,
		Replier:      replier,
		Agents:       stubDirectory{"emma": {Name: "Emma", Avatar: "📋", Role: "assistant"}},
		Personas:     stubPersonas{"paul": {Name: "Paul", Avatar: "🗺️", Role: "assistant"}},
		Exports:      export.NewStorage(root),
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h, root
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandlerRequiresExportStorage(t *testing.T) {
	_, err := NewHandler(HandlerOptions{
		CustomConfig: createTestConfig(),
		Store:        newMemoryStore(1),
		Replier:      stubReplier{},
		Agents:       stubDirectory{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export storage")
}

func TestHandler_ParseInput(t *testing.T) {
	h, _ := newTestHandler(t, newMemoryStore(1, 2), stubReplier{})

	in, err := h.parseInput(createMockJob(1, map[string]interface{}{
		"projectId": 1, "conversationId": 2,
		"content": map[string]interface{}{"content_type": "text", "parts": []string{"a", "b"}},
	}))
	require.NoError(t, err)
	assert.EqualValues(t, 2, in.ConversationID)
	assert.IsType(t, map[string]interface{}{}, in.Content)

	_, err = h.parseInput(createMockJob(2, map[string]interface{}{"projectId": 1, "conversationId": 2}))
	assert.ErrorIs(t, err, errors.ErrValidation)
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_StoresTurnAndAttributes(t *testing.T) {
	store := newMemoryStore(1, 2)
	h, _ := newTestHandler(t, store, stubReplier{reply: "Here you go", ids: []string{"emma", "sarah"}})

	out, err := h.Execute(context.Background(), &Input{ProjectID: 1, ConversationID: 2, Content: "  What should we build?  "})
	require.NoError(t, err)

	assert.Equal(t, "What should we build?", out.UserMessage.Content)
	assert.Equal(t, "Here you go", out.AssistantMessage.Content)
	assert.Equal(t, "Emma", out.Bot.Name)
	assert.Equal(t, []string{"emma", "sarah"}, out.Agents)
	assert.Nil(t, out.Export)
	assert.Len(t, store.messages[2], 2)
}

func TestHandler_Execute_AttributionFallbacks(t *testing.T) {
	h, _ := newTestHandler(t, newMemoryStore(1, 2), stubReplier{})

	assert.Equal(t, "Paul", h.attribution([]string{"paul"}).Name)
	assert.Equal(t, "David", h.attribution([]string{"david"}).Name)
	assert.Equal(t, "Alex", h.attribution(nil).Name)
}

func TestHandler_Execute_ExportsReply(t *testing.T) {
	tests := []struct {
		message  string
		format   models.ExportFormat
		mimeType string
	}{
		{"Please export the backlog to Excel", models.FormatXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"export this as a word document", models.FormatDOCX, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			h, root := newTestHandler(t, newMemoryStore(1, 2), stubReplier{reply: tableReply, ids: []string{"emma"}})

			out, err := h.Execute(context.Background(), &Input{ProjectID: 1, ConversationID: 2, Content: tt.message})
			require.NoError(t, err)
			require.NotNil(t, out.Export)
			assert.Equal(t, tt.format, out.Export.Format)
			assert.True(t, out.Export.Supported)
			assert.Equal(t, tt.mimeType, out.Export.MIMEType)
			assert.True(t, export.IsSafeFilename(out.Export.Filename))
			assert.FileExists(t, filepath.Join(root, "1", out.Export.Filename))
		})
	}
}

func TestHandler_Execute_PDFIsReportedUnsupported(t *testing.T) {
	h, _ := newTestHandler(t, newMemoryStore(1, 2), stubReplier{reply: tableReply, ids: []string{"emma"}})

	out, err := h.Execute(context.Background(), &Input{ProjectID: 1, ConversationID: 2, Content: "download it as a PDF"})
	require.NoError(t, err)
	require.NotNil(t, out.Export)
	assert.Equal(t, models.FormatPDF, out.Export.Format)
	assert.False(t, out.Export.Supported)
	assert.Empty(t, out.Export.Filename)
}

func TestHandler_Execute_Errors(t *testing.T) {
	agentErr := errors.NewAgentFailureError(stderrors.New("quota exceeded"))

	tests := []struct {
		name      string
		input     *Input
		replier   stubReplier
		appendErr error
		want      error
		appended  int
	}{
		{"invalid content type", &Input{ProjectID: 1, ConversationID: 2, Content: map[string]interface{}{"content_type": "image"}}, stubReplier{}, nil, errors.ErrValidation, 0},
		{"blank content", &Input{ProjectID: 1, ConversationID: 2, Content: "   "}, stubReplier{}, nil, errors.ErrValidation, 0},
		{"foreign conversation", &Input{ProjectID: 9, ConversationID: 2, Content: "hi"}, stubReplier{}, nil, errors.ErrNotFound, 0},
		{"chat failure persists nothing", &Input{ProjectID: 1, ConversationID: 2, Content: "hi"}, stubReplier{err: agentErr}, nil, errors.ErrAgentFailure, 0},
		{"store failure", &Input{ProjectID: 1, ConversationID: 2, Content: "hi"}, stubReplier{reply: "ok", ids: []string{"alex"}},
			errors.NewDatabaseError("insert user message", stderrors.New("conn reset")), errors.ErrDatabase, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore(1, 2)
			store.appendErr = tt.appendErr
			h, _ := newTestHandler(t, store, tt.replier)

			_, err := h.Execute(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.appended, store.appendCall)
			assert.Empty(t, store.messages[2])
		})
	}
}

// ==========================
// Integration with router and conversation agent
// ==========================

func TestHandler_Execute_WithRouterAndAgent(t *testing.T) {
	catalog, err := router.NewCatalog(filepath.Join("..", "..", "..", "agents", "router", "testdata", "conversation-agents.yaml"))
	require.NoError(t, err)

	fake := &llmtest.Fake{Respond: func(system, content string) (string, error) {
		if system == "" {
			return `Sure: ["sarah", "emma", "sarah"]`, nil
		}
		return "As a BA team we suggest three stories.", nil
	}}
	log := logger.NewTestLogger(t)
	rt := router.New(catalog, fake, log)

	store := newMemoryStore(1, 2)
	_, _, err = store.AppendTurn(context.Background(), 2, "earlier question", "earlier answer")
	require.NoError(t, err)

	agent, err := conversation.New(rt, catalog, store, fake, filepath.Join(t.TempDir(), "missing.prompt.txt"), log)
	require.NoError(t, err)

	h, _ := newTestHandler(t, store, agent)
	h.agents = rt

	out, err := h.Execute(context.Background(), &Input{ProjectID: 1, ConversationID: 2, Content: "Draft user stories for login"})
	require.NoError(t, err)

	assert.Equal(t, []string{"sarah", "emma"}, out.Agents)
	assert.Equal(t, "Sarah", out.Bot.Name)
	assert.Equal(t, "As a BA team we suggest three stories.", out.AssistantMessage.Content)

	calls := fake.Log()
	require.Len(t, calls, 2)
	chat := calls[1]
	assert.Contains(t, chat.System, "Selected agents for this reply:")
	require.Len(t, chat.History, 2)
	assert.Equal(t, models.ChatRoleModel, chat.History[1].Role)
	assert.Len(t, store.messages[2], 4)
}
