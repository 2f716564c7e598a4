// internal/workers/export/export-document/handler.go
package exportdocument

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	"baws-workers/internal/common/config"
	"baws-workers/internal/common/errors"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/common/metrics"
	"baws-workers/internal/common/observability"
	"baws-workers/internal/common/validation"
	"baws-workers/internal/export"
	"baws-workers/pkg/registry"
)

const TaskType = "export-document"

type Handler struct {
	config     *Config
	logger     logger.Logger
	errHandler *errors.ErrorHandler
	schema     *validation.Schema
	obs        *observability.Observability
	exports    ExportSaver
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Exports       ExportSaver
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Exports == nil {
		return nil, fmt.Errorf("%s requires export storage", TaskType)
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	format, err := export.ParseFormat(input.Format)
	if err != nil {
		return nil, err
	}
	data, err := export.Convert(input.Markdown, string(format))
	if err != nil {
		return nil, err
	}
	saved, err := h.exports.Save(ctx, input.ProjectID, format, data)
	if err != nil {
		return nil, err
	}

	h.logger.Info("export saved", map[string]interface{}{
		"projectId": input.ProjectID,
		"filename":  saved.Filename,
		"size":      saved.Size,
	})
	return &Output{Filename: saved.Filename, Format: format, MIMEType: saved.MIMEType, Size: saved.Size}, nil
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
