// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/loks666/anyrouter-autolog/internal/config"
)

func TestInitializeWritesStructuredOutput(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "autolog-test"},
		zapcore.AddSync(&buf))

	GetLogger().Info("hello", zap.String("k", "v"))

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "autolog-test")
	assert.Contains(t, out, `"k":"v"`)
}

func TestInitializeHappensOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&first))
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&second))

	GetLogger().Info("routed to first")
	assert.NotEmpty(t, first.String())
	assert.Empty(t, second.String())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "not-a-level", Format: "json"}, zapcore.AddSync(&buf))

	GetLogger().Debug("hidden")
	GetLogger().Info("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	require.NotNil(t, GetLogger())
}
