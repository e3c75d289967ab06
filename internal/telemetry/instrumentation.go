package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StageEnd closes a stage. A non-nil error marks the stage failed.
type StageEnd func(err error, attrs ...attribute.KeyValue)

// Instrumentation opens spans around pipeline stage boundaries. It is
// injected by the caller so that stages carry no timing code themselves.
type Instrumentation interface {
	StartStage(ctx context.Context, stage string) (context.Context, StageEnd)
}

// TracerInstrumentation records one span per stage and logs its duration.
type TracerInstrumentation struct {
	tracer trace.Tracer
	logger *logrus.Logger
}

// NewTracerInstrumentation creates stage instrumentation on the pipeline
// tracer. logger may be nil.
func NewTracerInstrumentation(logger *logrus.Logger) *TracerInstrumentation {
	return &TracerInstrumentation{tracer: GetPipelineTracer(), logger: logger}
}

// StartStage starts a span named after the stage.
func (ti *TracerInstrumentation) StartStage(ctx context.Context, stage string) (context.Context, StageEnd) {
	start := time.Now()
	ctx, span := ti.tracer.Start(ctx, "pipeline."+stage, trace.WithAttributes(attribute.String("pipeline.stage", stage)))
	return ctx, func(err error, attrs ...attribute.KeyValue) {
		elapsed := time.Since(start)
		span.SetAttributes(attrs...)
		span.SetAttributes(attribute.Int64("pipeline.stage.duration_ms", elapsed.Milliseconds()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		if ti.logger != nil {
			entry := ti.logger.WithFields(logrus.Fields{
				"stage":       stage,
				"duration_ms": elapsed.Milliseconds(),
			})
			if err != nil {
				entry.WithError(err).Warn("pipeline stage failed")
			} else {
				entry.Debug("pipeline stage finished")
			}
		}
	}
}

// NoopInstrumentation discards stage boundaries.
type NoopInstrumentation struct{}

// StartStage returns ctx unchanged.
func (NoopInstrumentation) StartStage(ctx context.Context, _ string) (context.Context, StageEnd) {
	return ctx, func(error, ...attribute.KeyValue) {}
}
