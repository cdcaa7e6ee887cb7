package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for MCP server mode.
// The MCP protocol uses stdout exclusively for JSON-RPC; any write to
// stdout or stderr during operation corrupts the stream. In MCP mode logs
// therefore go to file only.
func SetupMCPMode() (func(), error) {
	return SetupMCPModeWithLevel("debug")
}

// SetupMCPModeWithLevel initializes MCP-safe logging with a specific level.
func SetupMCPModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // stdout/stderr belong to the JSON-RPC stream
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)

	slog.Info("MCP mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
