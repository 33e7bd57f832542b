package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizeLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		" warn ":  "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"info":    "INFO",
		"":        "INFO",
		"verbose": "INFO",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeLevel(in), "level %q", in)
	}
}

func TestInitCLILogger(t *testing.T) {
	InitCLILogger("rankshop-test", true)
	require.NotNil(t, CLILogger)
	CLILogger.Debug("cli logger ready", zap.String("test", t.Name()))
}

func TestNewServerLoggerProfiles(t *testing.T) {
	structured, err := NewServerLogger("rankshop-test", ServerLoggerOptions{
		Level:       "debug",
		Environment: "test",
		Namespace:   "rankshop_test",
	})
	require.NoError(t, err)
	structured.Info("structured logger ready", zap.String("component", "test"))

	simple, err := NewServerLogger("rankshop-test", ServerLoggerOptions{Profile: "SIMPLE"})
	require.NoError(t, err)
	simple.Info("simple logger ready")
}

func TestInitServerLoggerSetsGlobal(t *testing.T) {
	previous := ServerLogger
	t.Cleanup(func() { ServerLogger = previous })

	InitServerLogger("rankshop-test", "info", "rankshop_test")
	require.NotNil(t, ServerLogger)
}

func TestStopMetricsWithoutStart(t *testing.T) {
	require.NoError(t, StopMetrics())
	assert.Nil(t, TelemetrySystem)
	assert.Nil(t, PrometheusExporter)
	assert.Zero(t, GetMetricsPort())
}

func TestResolvePort(t *testing.T) {
	port, err := resolvePort("[::]:9464")
	require.NoError(t, err)
	assert.Equal(t, 9464, port)

	_, err = resolvePort("no-port")
	require.Error(t, err)
}

func TestCrucibleVersionAvailable(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
}
