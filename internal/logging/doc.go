// Package logging provides structured JSON logging with rotation for archrag.
// Logs are written to ~/.archrag/logs/ with size-based rotation and are
// passed through a redacting handler that masks sensitive fields (API keys,
// tokens, user-tagged identifiers) before they reach any sink.
//
// In MCP mode logging goes to file only: stdout carries the JSON-RPC stream
// and must never receive log output.
package logging
