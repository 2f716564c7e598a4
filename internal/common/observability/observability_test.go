package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpanRecords(t *testing.T) {
	o := New("baws-workers-test")
	defer o.Shutdown()

	ctx, span := o.StartSpan(context.Background(), "agent.emma", attribute.String("agent", "emma"))
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.IsRecording())
	span.End()

	o.RecordJobProcessed(ctx, "analyze-document", "completed")
	o.RecordJobDuration(ctx, "analyze-document", 120*time.Millisecond, "completed")
	o.RecordAgentCall(ctx, "emma", time.Second, "ok")
}

func TestNoopTracer(t *testing.T) {
	o := NewNoop()
	_, span := o.StartSpan(context.Background(), "x")
	assert.False(t, span.IsRecording())
	span.End()
	o.RecordAgentCall(context.Background(), "emma", time.Second, "ok")
	o.Shutdown()

	var nilObs *Observability
	assert.NotNil(t, nilObs.Tracer())
}
