package gen

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOpenAIModel is the default OpenAI generation model.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAILLM generates answers through the OpenAI chat completions API,
// or any compatible endpoint via a base URL override.
type OpenAILLM struct {
	client      openaisdk.Client
	model       string
	temperature float64
	maxTokens   int

	mu     sync.RWMutex
	closed bool
}

var _ LLM = (*OpenAILLM)(nil)

// NewOpenAILLM creates the OpenAI backend. baseURL may be empty for the
// default endpoint.
func NewOpenAILLM(apiKey, baseURL, model string, temperature float64, maxTokens int) (*OpenAILLM, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAILLM{
		client:      openaisdk.NewClient(opts...),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Generate runs one chat completion with the prompt as a user message.
func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (string, error) {
	if err := o.checkOpen(); err != nil {
		return "", err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(o.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
		Temperature: openaisdk.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAILLM) checkOpen() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return fmt.Errorf("openai backend is closed")
	}
	return nil
}

// Name identifies the backend and model.
func (o *OpenAILLM) Name() string {
	return "openai/" + o.model
}

// Available probes the API by listing models.
func (o *OpenAILLM) Available(ctx context.Context) bool {
	if o.checkOpen() != nil {
		return false
	}
	_, err := o.client.Models.List(ctx)
	return err == nil
}

// Close marks the backend closed. The underlying client has no resources
// beyond pooled HTTP connections.
func (o *OpenAILLM) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}
