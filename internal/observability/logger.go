package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger writes human-readable output for management commands.
	CLILogger *logging.Logger

	// ServerLogger writes JSON to stderr for the storefront server.
	ServerLogger *logging.Logger
)

// ServerLoggerOptions shapes the server logger.
type ServerLoggerOptions struct {
	Level string
	// Profile is "STRUCTURED" (JSON, default) or "SIMPLE" (console text).
	Profile     string
	Environment string
	// Namespace is attached to every entry so logs line up with metrics.
	Namespace string
}

// InitCLILogger initializes the CLI logger; verbose enables debug output.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger initializes ServerLogger at logLevel.
func InitServerLogger(serviceName string, logLevel string, namespace ...string) {
	opts := ServerLoggerOptions{Level: logLevel}
	if len(namespace) > 0 {
		opts.Namespace = namespace[0]
	}
	InitServerLoggerWith(serviceName, opts)
}

// InitServerLoggerWith initializes ServerLogger from opts.
func InitServerLoggerWith(serviceName string, opts ServerLoggerOptions) {
	logger, err := NewServerLogger(serviceName, opts)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

// NewServerLogger builds a structured logger with request correlation.
func NewServerLogger(serviceName string, opts ServerLoggerOptions) (*logging.Logger, error) {
	static := map[string]any{}
	if ns := strings.TrimSpace(opts.Namespace); ns != "" {
		static["namespace"] = ns
	}
	env := strings.TrimSpace(opts.Environment)
	if env == "" {
		env = "production"
	}

	if strings.EqualFold(strings.TrimSpace(opts.Profile), "simple") {
		return logging.New(&logging.LoggerConfig{
			Profile:      logging.ProfileSimple,
			DefaultLevel: normalizeLevel(opts.Level),
			Service:      serviceName,
			Environment:  env,
			Sinks: []logging.SinkConfig{
				{
					Type:    "console",
					Format:  "console",
					Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
				},
			},
		})
	}

	return logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: normalizeLevel(opts.Level),
		Service:      serviceName,
		Environment:  env,
		StaticFields: static,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:    "console",
				Format:  "json",
				Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
			},
		},
		EnableCaller:     true,
		EnableStacktrace: true,
	})
}

// normalizeLevel maps config spellings to logging severities. Unknown
// values fall back to INFO.
func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// exitWithCodeStderr reports a logger setup failure and exits. No logger is
// available at this point.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	line := "FATAL: " + msg
	if err != nil {
		line = fmt.Sprintf("%s: %v", line, err)
	}
	fmt.Fprintln(os.Stderr, line)

	if info, ok := foundry.GetExitCodeInfo(exitCode); ok {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}
	os.Exit(int(exitCode))
}
