package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		out = append(out, line)
	}
	return out
}

func TestNewStandardLogger_Basic(t *testing.T) {
	logger := NewStandardLogger("info", "production")
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger())
}

func TestStandardLogger_Context(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLoggerTo(&buf, "debug", "production")

	logger.WithService("redzone").Info("a")
	logger.WithComponent("pipeline").Info("b")
	logger.WithRequestID("req-1").Info("c")
	logger.WithAccount("chk").Info("d")
	logger.WithError(errors.New("boom")).Info("e")
	logger.WithError(nil).Info("f")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 6)
	assert.Equal(t, "redzone", lines[0]["service"])
	assert.Equal(t, "pipeline", lines[1]["component"])
	assert.Equal(t, "req-1", lines[2]["request_id"])
	assert.Equal(t, "chk", lines[3]["account_guid"])
	assert.Equal(t, "boom", lines[4]["error"])
	assert.NotContains(t, lines[5], "error")
}

func TestStandardLogger_Events(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLoggerTo(&buf, "info", "production")

	logger.LogStartup("redzone", "2.0.0", 8080)
	logger.LogShutdown("redzone", "signal")
	logger.LogAPIRequest("POST", "/api/v1/assessments", 200, 12, "client-a")
	logger.LogAPIRequest("POST", "/api/v1/assessments", 400, 1, "client-a")
	logger.LogAPIRequest("POST", "/api/v1/assessments", 500, 1, "client-a")
	logger.LogAssessment("req-1", 2, 0, 40)
	logger.LogBusinessEvent("knowledge_refresh", map[string]interface{}{"entities": 3})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 7)
	assert.Equal(t, "startup", lines[0]["event"])
	assert.Equal(t, float64(8080), lines[0]["port"])
	assert.Equal(t, "shutdown", lines[1]["event"])
	assert.Equal(t, "INFO", lines[2]["level"])
	assert.Equal(t, "WARN", lines[3]["level"])
	assert.Equal(t, "ERROR", lines[4]["level"])
	assert.Equal(t, "assessment", lines[5]["event"])
	assert.Equal(t, float64(2), lines[5]["accounts"])
	assert.Equal(t, "knowledge_refresh", lines[6]["event_type"])
}

func TestStandardLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLoggerTo(&buf, "warn", "production")
	logger.Logger().Info("hidden")
	logger.Logger().Warn("shown")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestStandardLogger_DevelopmentText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLoggerTo(&buf, "info", "development")
	logger.Logger().Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestParseLogrusLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"DEBUG", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"info", logrus.InfoLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogrusLevel(tt.input))
		})
	}
}

func TestNewLogrus(t *testing.T) {
	logger := NewLogrus("debug", "production")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	dev := NewLogrus("info", "development")
	assert.IsType(t, &logrus.TextFormatter{}, dev.Formatter)
}
