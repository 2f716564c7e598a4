// internal/workers/analysis/analyze-document/handler.go
package analyzedocument

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	"baws-workers/internal/agents/orchestrator"
	"baws-workers/internal/agents/persona"
	"baws-workers/internal/common/aws"
	"baws-workers/internal/common/config"
	"baws-workers/internal/common/database"
	"baws-workers/internal/common/errors"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/common/metrics"
	"baws-workers/internal/common/observability"
	"baws-workers/internal/common/validation"
	"baws-workers/internal/models"
	"baws-workers/pkg/registry"
)

const TaskType = "analyze-document"

// cleanupTimeout bounds the bookkeeping done after the job context is gone.
const cleanupTimeout = 5 * time.Second

type Handler struct {
	config     *Config
	logger     logger.Logger
	errHandler *errors.ErrorHandler
	schema     *validation.Schema
	obs        *observability.Observability

	store    AnalysisStore
	analyzer Analyzer
	locker   RunLocker
	indexer  Indexer
	notifier Notifier
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Store         AnalysisStore
	Analyzer      Analyzer
	Locker        RunLocker
	Indexer       Indexer  // optional
	Notifier      Notifier // optional
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Store == nil || opts.Analyzer == nil || opts.Locker == nil {
		return nil, fmt.Errorf("%s requires a store, an analyzer and a run locker", TaskType)
	}

	schema, err := validation.Compile(registry.InputSchema(TaskType))
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	obs := opts.Observability
	if obs == nil {
		obs = observability.NewNoop()
	}

	return &Handler{
		config:     workerConfig,
		logger:     log.With(map[string]interface{}{"taskType": TaskType}),
		errHandler: errors.NewErrorHandler(log),
		schema:     schema,
		obs:        obs,
		store:      opts.Store,
		analyzer:   opts.Analyzer,
		locker:     opts.Locker,
		indexer:    opts.Indexer,
		notifier:   opts.Notifier,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	ctx, span := h.obs.StartSpan(ctx, TaskType, attribute.Int64("job.key", job.Key))
	defer span.End()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := h.handle(ctx, job)
	if err != nil {
		code := string(errors.Normalize(err).Code)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		span.RecordError(err)

		sendCtx, sendCancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer sendCancel()
		h.errHandler.HandleJobError(sendCtx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, string(output.Status))
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), string(output.Status))
}

func (h *Handler) handle(ctx context.Context, job entities.Job) (*Output, error) {
	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewValidationError("variables", "job variables must be a JSON object")
	}
	if err := h.schema.Validate(variables).AsError(); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewValidationError("variables", err.Error())
	}
	return &input, nil
}

// Execute runs one analysis end to end. A document that yields no text
// completes with status failed; parse and lookup errors are returned.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	doc, err := h.store.GetDocument(ctx, input.ProjectID, input.DocumentID)
	if err != nil {
		return nil, err
	}

	conversationID, err := h.linkedConversation(ctx, input)
	if err != nil {
		return nil, err
	}

	lock, err := h.acquire(ctx, doc.ID, conversationID)
	if err != nil {
		return nil, err
	}
	defer h.release(ctx, lock)

	analysisID, err := h.store.CreateAnalysis(ctx, input.ProjectID, doc.ID, conversationID)
	if err != nil {
		return nil, err
	}
	log := h.logger.With(map[string]interface{}{"analysisId": analysisID, "documentId": doc.ID})

	result, err := h.analyzer.RunAnalysis(ctx, h.resolvePath(doc.FilePath))
	if err != nil {
		h.markFailed(ctx, log, analysisID, err.Error())
		return nil, err
	}
	if result.Failed() {
		h.markFailed(ctx, log, analysisID, result.Error)
		return &Output{AnalysisID: analysisID, Status: models.AnalysisFailed, Error: result.Error}, nil
	}

	if err := h.store.CompleteAnalysis(ctx, analysisID, result.AgentResults); err != nil {
		h.markFailed(ctx, log, analysisID, err.Error())
		return nil, err
	}
	metrics.AnalysisRuns.WithLabelValues(string(models.AnalysisCompleted)).Inc()

	out := &Output{
		AnalysisID:       analysisID,
		Status:           models.AnalysisCompleted,
		DocumentMetadata: result.DocumentMetadata,
		AgentResults:     result.AgentResults,
	}

	if path, err := orchestrator.SaveArtifact(h.config.AnalysisOutput, input.ProjectID, analysisID, result); err != nil {
		log.Error("failed to save analysis artifact", map[string]interface{}{"error": err.Error()})
	} else {
		out.ArtifactPath = path
	}

	h.index(ctx, log, doc, conversationID, analysisID, result)
	h.notify(ctx, log, doc, conversationID, out)

	log.Info("analysis completed", map[string]interface{}{"agents": len(result.AgentResults)})
	return out, nil
}

// linkedConversation drops a conversation id that does not belong to the
// project instead of failing the run.
func (h *Handler) linkedConversation(ctx context.Context, input *Input) (*int64, error) {
	if input.ConversationID == nil {
		return nil, nil
	}
	ok, err := h.store.ConversationInProject(ctx, input.ProjectID, *input.ConversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		h.logger.Info("conversation not in project, analysis left unlinked", map[string]interface{}{
			"projectId":      input.ProjectID,
			"conversationId": *input.ConversationID,
		})
		return nil, nil
	}
	return input.ConversationID, nil
}

func (h *Handler) acquire(ctx context.Context, documentID int64, conversationID *int64) (*database.Lock, error) {
	var conv int64
	if conversationID != nil {
		conv = *conversationID
	}
	lock, err := h.locker.AcquireLock(ctx, database.AnalysisLockKey(documentID, conv), h.config.LockTTL)
	if stderrors.Is(err, database.ErrLockHeld) {
		return nil, errors.NewAnalysisInProgressError(documentID)
	}
	if err != nil {
		return nil, errors.NewExternalServiceError("redis", err)
	}
	return lock, nil
}

func (h *Handler) release(ctx context.Context, lock *database.Lock) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	released, err := h.locker.ReleaseLock(ctx, lock)
	if err != nil {
		h.logger.Error("failed to release run lock", map[string]interface{}{"key": lock.Key, "error": err.Error()})
		return
	}
	if !released {
		h.logger.Info("run lock expired before release", map[string]interface{}{"key": lock.Key})
	}
}

func (h *Handler) markFailed(ctx context.Context, log logger.Logger, analysisID int64, message string) {
	metrics.AnalysisRuns.WithLabelValues(string(models.AnalysisFailed)).Inc()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := h.store.FailAnalysis(ctx, analysisID, message); err != nil {
		log.Error("failed to record analysis failure", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) resolvePath(p string) string {
	if filepath.IsAbs(p) || h.config.DocumentsPath == "" {
		return p
	}
	return filepath.Join(h.config.DocumentsPath, p)
}

func (h *Handler) index(ctx context.Context, log logger.Logger, doc *models.Document, conversationID *int64, analysisID int64, result *models.AnalysisResult) {
	if h.indexer == nil {
		return
	}
	err := h.indexer.IndexDocument(ctx, h.config.AnalysisIndex, strconv.FormatInt(analysisID, 10), indexedAnalysis{
		AnalysisID:       analysisID,
		ProjectID:        doc.ProjectID,
		DocumentID:       doc.ID,
		ConversationID:   conversationID,
		Filename:         doc.Filename,
		DocumentMetadata: result.DocumentMetadata,
		AgentResults:     result.AgentResults,
		CompletedAt:      time.Now().UTC(),
	})
	if err != nil {
		log.Error("failed to index analysis", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) notify(ctx context.Context, log logger.Logger, doc *models.Document, conversationID *int64, out *Output) {
	if h.notifier == nil {
		return
	}
	agents := make([]string, 0, len(out.AgentResults))
	for _, id := range persona.AgentOrder {
		if _, ok := out.AgentResults[id]; ok {
			agents = append(agents, id)
		}
	}
	msgID, err := h.notifier.PublishAnalysisCompleted(ctx, aws.AnalysisEvent{
		AnalysisID:     out.AnalysisID,
		ProjectID:      doc.ProjectID,
		DocumentID:     doc.ID,
		ConversationID: conversationID,
		Status:         string(out.Status),
		Agents:         agents,
		ArtifactPath:   out.ArtifactPath,
	})
	if err != nil {
		log.Error("failed to publish analysis event", map[string]interface{}{"error": err.Error()})
		return
	}
	log.Info("analysis event published", map[string]interface{}{"messageId": msgID})
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
	}
}
