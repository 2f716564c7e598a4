// internal/workers/conversation/conversation-reply/handler.go
package conversationreply

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	"baws-workers/internal/agents/persona"
	"baws-workers/internal/common/config"
	"baws-workers/internal/common/errors"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/common/metrics"
	"baws-workers/internal/common/observability"
	"baws-workers/internal/common/validation"
	"baws-workers/internal/content"
	"baws-workers/internal/export"
	"baws-workers/internal/models"
	"baws-workers/pkg/registry"
)

const TaskType = "conversation-reply"

type Handler struct {
	config     *Config
	logger     logger.Logger
	errHandler *errors.ErrorHandler
	schema     *validation.Schema
	obs        *observability.Observability

	store    ConversationStore
	replier  Replier
	agents   AgentDirectory
	personas PersonaDirectory
	exports  ExportSaver
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Store         ConversationStore
	Replier       Replier
	Agents        AgentDirectory
	Personas      PersonaDirectory // optional
	Exports       ExportSaver
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Store == nil || opts.Replier == nil || opts.Agents == nil {
		return nil, fmt.Errorf("%s requires a store, a replier and an agent directory", TaskType)
	}
	if workerConfig.AutoExport && opts.Exports == nil {
		return nil, fmt.Errorf("%s: auto export needs export storage", TaskType)
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
		replier:    opts.Replier,
		agents:     opts.Agents,
		personas:   opts.Personas,
		exports:    opts.Exports,
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
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		span.RecordError(err)

		sendCtx, sendCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer sendCancel()
		h.errHandler.HandleJobError(sendCtx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "completed")
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

// Execute answers one user message. The turn is stored only after the reply
// succeeds, and both messages are stored together.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	message, err := content.Normalize(input.Content)
	if err != nil {
		return nil, err
	}
	if message == "" {
		return nil, errors.NewValidationError("content", "content must not be empty")
	}

	ok, err := h.store.ConversationInProject(ctx, input.ProjectID, input.ConversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewNotFoundError("Conversation", fmt.Sprintf("conversationId: %d, projectId: %d", input.ConversationID, input.ProjectID))
	}

	reply, agentIDs, err := h.replier.Reply(ctx, input.ConversationID, message)
	if err != nil {
		return nil, err
	}

	userMsg, assistantMsg, err := h.store.AppendTurn(ctx, input.ConversationID, message, reply)
	if err != nil {
		return nil, err
	}

	out := &Output{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Bot:              h.attribution(agentIDs),
		Agents:           agentIDs,
	}
	if h.config.AutoExport {
		out.Export = h.autoExport(ctx, input.ProjectID, message, reply)
	}

	h.logger.Info("reply stored", map[string]interface{}{
		"conversationId": input.ConversationID,
		"agents":         agentIDs,
		"exported":       out.Export != nil && out.Export.Filename != "",
	})
	return out, nil
}

// attribution names the primary agent: catalog first, then persona file,
// then the bare id.
func (h *Handler) attribution(agentIDs []string) *models.BotInfo {
	primary := persona.AgentOrder[0]
	if len(agentIDs) > 0 {
		primary = agentIDs[0]
	}
	if info, ok := h.agents.AgentInfo(primary); ok {
		return info
	}
	if h.personas != nil {
		if info, err := h.personas.BotInfo(primary); err == nil {
			return info
		}
	}
	return &models.BotInfo{Name: persona.TitleCase(primary), Role: "assistant"}
}

// autoExport converts the reply when the user message asks for a file.
// Failures are reported in the result; the stored turn stands.
func (h *Handler) autoExport(ctx context.Context, projectID int64, message, reply string) *ExportResult {
	format, ok := content.DetectExportFormat(message)
	if !ok {
		return nil
	}
	res := &ExportResult{Format: format, Supported: format.Convertible()}
	if !res.Supported {
		return res
	}

	data, err := export.Convert(reply, string(format))
	if err != nil {
		h.logger.Error("reply export failed", map[string]interface{}{"format": format, "error": err.Error()})
		res.Error = err.Error()
		return res
	}
	saved, err := h.exports.Save(ctx, projectID, format, data)
	if err != nil {
		h.logger.Error("saving reply export failed", map[string]interface{}{"format": format, "error": err.Error()})
		res.Error = err.Error()
		return res
	}

	res.Filename = saved.Filename
	res.MIMEType = saved.MIMEType
	res.Size = saved.Size
	return res
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
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
