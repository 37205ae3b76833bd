package logger

import (
	"log/slog"
	"os"
)

// TestLevelEnvVar sets the level of NewTestLogger (e.g. TEST_LOG_LEVEL=debug).
const TestLevelEnvVar = "TEST_LOG_LEVEL"

// NewTestLogger returns a WARN-level text logger on stdout so test output
// stays quiet unless TEST_LOG_LEVEL asks for more.
func NewTestLogger() *slog.Logger {
	return NewLogger(Config{
		Level:  ParseLevel(os.Getenv(TestLevelEnvVar), slog.LevelWarn),
		Format: "text",
		Output: os.Stdout,
	})
}
