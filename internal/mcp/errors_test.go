package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	ragerr "github.com/Aman-CERP/archrag/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"timeout", context.DeadlineExceeded, ErrCodeTimeout},
		{"cancel", context.Canceled, ErrCodeTimeout},
		{"file not found", ragerr.New(ragerr.ErrCodeFileNotFound, "gone", nil), ErrCodeFileNotFound},
		{"invalid input", ragerr.New(ragerr.ErrCodeInvalidInput, "bad", nil), ErrCodeInvalidParams},
		{"empty query", ragerr.New(ragerr.ErrCodeQueryEmpty, "empty", nil), ErrCodeInvalidParams},
		{"embedding", ragerr.New(ragerr.ErrCodeEmbeddingFailed, "down", nil), ErrCodeEmbeddingFailed},
		{"search", ragerr.New(ragerr.ErrCodeSearchFailed, "broken", nil), ErrCodeSearchFailed},
		{"unknown rag code", ragerr.New(ragerr.ErrCodeDiskFull, "full", nil), ErrCodeInternalError},
		{"plain error", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			if tt.err == nil {
				assert.Nil(t, mapped)
				return
			}
			assert.Equal(t, tt.code, mapped.Code)
			assert.NotEmpty(t, mapped.Message)
		})
	}
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "query is required"}
	assert.Contains(t, err.Error(), "-32602")
	assert.Contains(t, err.Error(), "query is required")
}
