// Package mcp implements the Model Context Protocol server for ArchRAG.
// It exposes the library to agent clients over stdio as three tools:
// query_documents, ingest_documents, and library_stats.
package mcp

import (
	"context"
	"errors"
	"fmt"

	ragerr "github.com/Aman-CERP/archrag/internal/errors"
)

// MCP error codes. The -32xxx range below -32000 follows JSON-RPC;
// codes above it are ArchRAG-specific.
const (
	ErrCodeFileNotFound    = -32001
	ErrCodeEmbeddingFailed = -32002
	ErrCodeTimeout         = -32003
	ErrCodeSearchFailed    = -32004

	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is a protocol error with a JSON-RPC style code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError reports a malformed tool invocation.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// MapError converts pipeline errors into MCP errors by code family.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	var re *ragerr.RAGError
	if errors.As(err, &re) {
		switch re.Code {
		case ragerr.ErrCodeFileNotFound:
			return &MCPError{Code: ErrCodeFileNotFound, Message: re.Message}
		case ragerr.ErrCodeInvalidInput, ragerr.ErrCodeInvalidQuery,
			ragerr.ErrCodeInvalidPath,
			ragerr.ErrCodeQueryEmpty, ragerr.ErrCodeQueryTooLong:
			return &MCPError{Code: ErrCodeInvalidParams, Message: re.Message}
		case ragerr.ErrCodeEmbeddingFailed, ragerr.ErrCodePremiumEmbedFailed:
			return &MCPError{Code: ErrCodeEmbeddingFailed, Message: re.Message}
		case ragerr.ErrCodeSearchFailed:
			return &MCPError{Code: ErrCodeSearchFailed, Message: re.Message}
		}
	}

	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}
