package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRAGError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with RAGError
	ragErr := New(ErrCodeFileNotFound, "file not found: test.txt", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, ragErr)
	assert.Equal(t, originalErr, errors.Unwrap(ragErr))
	assert.True(t, errors.Is(ragErr, originalErr))
}

func TestRAGError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "extraction error",
			code:     ErrCodeExtractFailed,
			message:  "manual.pdf produced no text",
			expected: "[ERR_206_EXTRACT_FAILED] manual.pdf produced no text",
		},
		{
			name:     "backend error",
			code:     ErrCodeBackendTransient,
			message:  "embedding backend unreachable",
			expected: "[ERR_302_BACKEND_TRANSIENT] embedding backend unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestRAGError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeFileNotFound, "file A not found", nil)
	err2 := New(ErrCodeFileNotFound, "file B not found", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestRAGError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	// Given: two errors with different codes
	err1 := New(ErrCodeFileNotFound, "file not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	// Then: they don't match
	assert.False(t, errors.Is(err1, err2))
}

func TestRAGError_WithDetails_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeExtractFailed, "extraction failed", nil)

	// When: adding details
	err = err.WithDetail("path", "/docs/manual.pdf")
	err = err.WithDetail("pages", "42")

	// Then: details are available
	assert.Equal(t, "/docs/manual.pdf", err.Details["path"])
	assert.Equal(t, "42", err.Details["pages"])
}

func TestRAGError_WithSuggestion_AddsSuggestion(t *testing.T) {
	// Given: a backend error
	err := New(ErrCodeBackendTransient, "connection refused", nil)

	// When: adding suggestion
	err = err.WithSuggestion("Check that Ollama is running")

	// Then: suggestion is available
	assert.Equal(t, "Check that Ollama is running", err.Suggestion)
}

func TestRAGError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeExtractFailed, CategoryIO},
		{ErrCodeUnsupportedFormat, CategoryIO},
		{ErrCodeNetworkTimeout, CategoryNetwork},
		{ErrCodeBackendTransient, CategoryNetwork},
		{ErrCodeRateLimited, CategoryNetwork},
		{ErrCodeWebFetchFailed, CategoryNetwork},
		{ErrCodeCachePermanent, CategoryNetwork},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeDimensionMismatch, CategoryValidation},
		{ErrCodeQueryEmpty, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeEmbeddingFailed, CategoryInternal},
		{ErrCodeGenerationFailed, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestRAGError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeCorruptIndex, SeverityFatal},
		{ErrCodeDiskFull, SeverityFatal},
		{ErrCodeFileNotFound, SeverityError},
		{ErrCodeNetworkTimeout, SeverityWarning}, // Retryable, so warning
		{ErrCodeBackendTransient, SeverityWarning},
		{ErrCodeCachePermanent, SeverityWarning}, // Degrades, never fails queries
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestRAGError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeNetworkTimeout, true},
		{ErrCodeBackendTransient, true},
		{ErrCodeRateLimited, true},
		{ErrCodeWebFetchFailed, true},
		{ErrCodePremiumEmbedFailed, true},
		{ErrCodeFileNotFound, false},
		{ErrCodeConfigInvalid, false},
		{ErrCodeCorruptIndex, false},
		{ErrCodeCachePermanent, false},
		{ErrCodeUnsupportedFormat, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesRAGErrorFromError(t *testing.T) {
	// Given: a standard error
	originalErr := errors.New("something went wrong")

	// When: wrapping with a code
	ragErr := Wrap(ErrCodeInternal, originalErr)

	// Then: creates proper RAGError
	require.NotNil(t, ragErr)
	assert.Equal(t, ErrCodeInternal, ragErr.Code)
	assert.Equal(t, "something went wrong", ragErr.Message)
	assert.Equal(t, originalErr, ragErr.Cause)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestConfigError_CreatesConfigCategoryError(t *testing.T) {
	err := ConfigError("invalid yaml syntax", nil)

	assert.Equal(t, CategoryConfig, err.Category)
	assert.Contains(t, err.Code, "CONFIG")
}

func TestIOError_CreatesIOCategoryError(t *testing.T) {
	err := IOError("cannot read file", nil)

	assert.Equal(t, CategoryIO, err.Category)
}

func TestExtractError_CreatesIOCategoryError(t *testing.T) {
	err := ExtractError("pdf parser returned no pages", nil)

	assert.Equal(t, CategoryIO, err.Category)
	assert.Equal(t, ErrCodeExtractFailed, err.Code)
}

func TestNetworkError_CreatesRetryableError(t *testing.T) {
	err := NetworkError("connection refused", nil)

	assert.Equal(t, CategoryNetwork, err.Category)
	assert.True(t, err.Retryable)
}

func TestBackendError_CreatesRetryableError(t *testing.T) {
	err := BackendError("ollama returned 503", nil)

	assert.Equal(t, CategoryNetwork, err.Category)
	assert.Equal(t, ErrCodeBackendTransient, err.Code)
	assert.True(t, err.Retryable)
}

func TestValidationError_CreatesValidationCategoryError(t *testing.T) {
	err := ValidationError("query cannot be empty", nil)

	assert.Equal(t, CategoryValidation, err.Category)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable RAGError",
			err:      New(ErrCodeBackendTransient, "backend down", nil),
			expected: true,
		},
		{
			name:     "non-retryable RAGError",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeNetworkTimeout, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "fatal error",
			err:      New(ErrCodeCorruptIndex, "index corrupt", nil),
			expected: true,
		},
		{
			name:     "disk full error",
			err:      New(ErrCodeDiskFull, "no space left", nil),
			expected: true,
		},
		{
			name:     "non-fatal error",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestGetCode_ExtractsCode(t *testing.T) {
	assert.Equal(t, ErrCodeRateLimited, GetCode(New(ErrCodeRateLimited, "slow down", nil)))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestGetCategory_ExtractsCategory(t *testing.T) {
	assert.Equal(t, CategoryNetwork, GetCategory(New(ErrCodeWebFetchFailed, "fetch failed", nil)))
	assert.Equal(t, Category(""), GetCategory(errors.New("plain")))
}
