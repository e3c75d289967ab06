package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNormalizeOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		hostport string
		urlPath  string
		insecure bool
		resolved string
		wantErr  bool
	}{
		{"default localhost", "http://localhost:4318", "localhost:4318", "/v1/traces", true, "http://localhost:4318/v1/traces", false},
		{"trailing slash base", "http://collector:4318/", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"already traces path", "http://collector:4318/v1/traces", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"custom base path", "https://otlp.example.com:4318/otlp", "otlp.example.com:4318", "/otlp/v1/traces", false, "https://otlp.example.com:4318/otlp/v1/traces", false},
		{"invalid no scheme", "collector:4318", "", "", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hp, path, insecure, resolved, err := normalizeOTLPEndpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostport, hp)
			assert.Equal(t, tt.urlPath, path)
			assert.Equal(t, tt.insecure, insecure)
			assert.Equal(t, tt.resolved, resolved)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.True(t, config.Enabled)
	assert.Equal(t, ExporterOTLP, config.Exporter)
	assert.Equal(t, "http://localhost:4318", config.OTLPEndpoint)
	assert.Equal(t, ServiceName, config.ServiceName)
	assert.Equal(t, 1.0, config.SampleRate)
	assert.Equal(t, 5*time.Second, config.BatchTimeout)
	assert.Equal(t, 512, config.MaxExportBatch)
	assert.Equal(t, 2048, config.MaxQueueSize)
}

func TestInitTelemetryWithProviderDisabled(t *testing.T) {
	provider, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{Enabled: false}, slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, provider.Shutdown)
	assert.NotNil(t, provider.logger)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestInitTelemetryWithProviderInvalidEndpoint(t *testing.T) {
	provider, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "invalid-url://[invalid",
	}, slog.Default())
	assert.Error(t, err)
	assert.Nil(t, provider)
	assert.Contains(t, err.Error(), "invalid OTLPEndpoint")
}

func TestInitTelemetryStdoutExporter(t *testing.T) {
	provider, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{
		Enabled:  true,
		Exporter: ExporterStdout,
	}, slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, GetLogger())
	assert.NoError(t, Shutdown())
	_ = provider
}

func TestShutdownWithoutProvider(t *testing.T) {
	assert.NoError(t, Shutdown())
}

func TestSpanHelpers(t *testing.T) {
	ctx, span := StartSpan(context.Background(), GetTracer("test"), "test-span")
	assert.NotNil(t, ctx)

	SetSpanAttributes(span, StringAttribute("k", "v"), Int64Attribute("n", 42))
	RecordError(span, assert.AnError)
	RecordError(span, nil)
	SetSpanStatus(span, codes.Ok, "success")
	span.End()
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, "value", StringAttribute("key", "value").Value.AsString())
	assert.Equal(t, []string{"a", "b"}, StringSliceAttribute("key", []string{"a", "b"}).Value.AsStringSlice())
	assert.Equal(t, int64(42), Int64Attribute("key", 42).Value.AsInt64())
	assert.Equal(t, 3.14, Float64Attribute("key", 3.14).Value.AsFloat64())
	assert.True(t, BoolAttribute("key", true).Value.AsBool())
}

func TestTracerInstrumentation_StartStage(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(previous)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	inst := NewTracerInstrumentation(logger)

	_, end := inst.StartStage(context.Background(), "normalize")
	end(nil, attribute.Int("transactions", 3))

	_, end = inst.StartStage(context.Background(), "classify")
	end(errors.New("model missing"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "pipeline.normalize", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "pipeline.classify", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "classify", hook.LastEntry().Data["stage"])
}

func TestNoopInstrumentation(t *testing.T) {
	ctx := context.Background()
	got, end := NoopInstrumentation{}.StartStage(ctx, "anything")
	assert.Equal(t, ctx, got)
	end(nil)
}
