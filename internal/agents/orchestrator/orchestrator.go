// Package orchestrator runs the multi-agent document analysis: the
// coordinator first, then the specialists concurrently.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"baws-workers/internal/agents/persona"
	apperrors "baws-workers/internal/common/errors"
	"baws-workers/internal/common/llm"
	"baws-workers/internal/common/logger"
	"baws-workers/internal/common/metrics"
	"baws-workers/internal/document"
	"baws-workers/internal/models"
)

const EmptyDocumentError = "Document is empty or could not extract text"

// PromptSource renders a persona's system prompt.
type PromptSource interface {
	BuildSystemPrompt(id string) (string, error)
}

// ParseFunc extracts text and metadata from a document on disk.
type ParseFunc func(path string) (string, *models.DocumentMetadata, error)

type Config struct {
	// AgentTimeout bounds each agent call independently.
	AgentTimeout   time.Duration
	MaxConcurrency int
}

type Orchestrator struct {
	prompts   PromptSource
	completer llm.Completer
	parse     ParseFunc
	tracer    trace.Tracer
	cfg       Config
	logger    logger.Logger
}

func New(prompts PromptSource, completer llm.Completer, tracer trace.Tracer, cfg Config, log logger.Logger) *Orchestrator {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 4
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = 120 * time.Second
	}
	return &Orchestrator{
		prompts:   prompts,
		completer: completer,
		parse:     document.Parse,
		tracer:    tracer,
		cfg:       cfg,
		logger:    log.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// WithParser replaces the document parser.
func (o *Orchestrator) WithParser(p ParseFunc) *Orchestrator {
	o.parse = p
	return o
}

// RunAnalysis parses the document and collects one result per persona.
// Parser errors are returned; agent failures are recorded as "Error: ..."
// results and never abort the run.
func (o *Orchestrator) RunAnalysis(ctx context.Context, path string) (*models.AnalysisResult, error) {
	text, meta, err := o.parse(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		o.logger.Info("document has no text, skipping agents", map[string]interface{}{"path": path})
		return &models.AnalysisResult{Error: EmptyDocumentError}, nil
	}

	ctx, span := o.tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("document.filename", meta.Filename),
		attribute.String("document.type", meta.Type),
	))
	defer span.End()

	coordinator, specialists := persona.AgentOrder[0], persona.AgentOrder[1:]
	results := make(map[string]string, len(persona.AgentOrder))

	results[coordinator] = o.runAgent(ctx, coordinator, text)

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(o.cfg.MaxConcurrency)
	for _, id := range specialists {
		eg.Go(func() error {
			out := o.runAgent(egCtx, id, text)
			mu.Lock()
			results[id] = out
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	failed := 0
	for _, r := range results {
		if strings.HasPrefix(r, "Error: ") {
			failed++
		}
	}
	o.logger.Info("analysis finished", map[string]interface{}{
		"filename":     meta.Filename,
		"agents":       len(results),
		"failedAgents": failed,
	})

	return &models.AnalysisResult{DocumentMetadata: meta, AgentResults: results}, nil
}

func (o *Orchestrator) runAgent(ctx context.Context, id, text string) string {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "agent.complete", trace.WithAttributes(attribute.String("agent", id)))
	defer span.End()

	start := time.Now()
	out, err := o.callAgent(ctx, id, text)
	metrics.AgentCallDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = apperrors.NewTimeoutError("agent "+id, err)
		}
		metrics.AgentCalls.WithLabelValues(id, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("agent failed", map[string]interface{}{"agentId": id, "error": err.Error()})
		return "Error: " + err.Error()
	}
	metrics.AgentCalls.WithLabelValues(id, "ok").Inc()
	return out
}

func (o *Orchestrator) callAgent(ctx context.Context, id, text string) (string, error) {
	system, err := o.prompts.BuildSystemPrompt(id)
	if err != nil {
		return "", err
	}
	return o.completer.Complete(ctx, system, "Document to analyze:\n\n"+text)
}
