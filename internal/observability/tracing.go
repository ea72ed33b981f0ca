package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer for the spans this runtime emits: one
// per agent-loop turn's LLM call, one per tool execution, one per full
// orchestrator run. There is no OTLP collector in this deployment shape,
// so the TracerProvider built by NewTracer never attaches an exporter:
// spans are created, timed, and discarded. The trace context and span
// attributes stay available to anything that reads the context
// synchronously, e.g. a log-correlation hook.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// TraceConfig names this process in the spans it creates.
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string
}

// NewTracer builds a Tracer with an in-process, exporter-less
// TracerProvider and installs it as the global provider.
func NewTracer(cfg TraceConfig) *Tracer {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "miniagent"
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		res = resource.Default()
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}
}

// Shutdown releases the TracerProvider's resources.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Start creates a span named name as a child of any span already in ctx.
func (t *Tracer) Start(ctx context.Context, name string, kind trace.SpanKind) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, trace.WithSpanKind(kind))
}

// RecordError records err on span and marks the span's status as an error.
// A nil err is a no-op.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceLLMRequest starts a client-kind span for one provider completion
// call.
func (t *Tracer) TraceLLMRequest(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	ctx, span := t.Start(ctx, fmt.Sprintf("llm.%s", provider), trace.SpanKindClient)
	span.SetAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	return ctx, span
}

// TraceToolExecution starts an internal-kind span for one tool dispatch.
func (t *Tracer) TraceToolExecution(ctx context.Context, toolName string) (context.Context, trace.Span) {
	ctx, span := t.Start(ctx, fmt.Sprintf("tool.%s", toolName), trace.SpanKindInternal)
	span.SetAttributes(attribute.String("tool.name", toolName))
	return ctx, span
}

// TraceRun starts a server-kind span covering one full orchestrator run.
func (t *Tracer) TraceRun(ctx context.Context, sessionKey, runID string) (context.Context, trace.Span) {
	ctx, span := t.Start(ctx, "agent.run", trace.SpanKindServer)
	span.SetAttributes(
		attribute.String("session_key", sessionKey),
		attribute.String("run_id", runID),
	)
	return ctx, span
}
