package runners

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zetareason/reasonbench/internal/models"
)

// providerEndpoint describes one OpenAI-compatible provider.
type providerEndpoint struct {
	baseURL   string
	apiKeyEnv string
}

var providerEndpoints = map[string]providerEndpoint{
	"openai":   {baseURL: "", apiKeyEnv: "OPENAI_API_KEY"},
	"deepseek": {baseURL: "https://api.deepseek.com/v1", apiKeyEnv: "DEEPSEEK_API_KEY"},
	"qwen":     {baseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", apiKeyEnv: "QWEN_API_KEY"},
	"grok":     {baseURL: "https://api.x.ai/v1", apiKeyEnv: "XAI_API_KEY"},
}

// chatClient is the slice of the go-openai client we use, split out so tests
// can substitute a stub.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// chatRunner drives any OpenAI-compatible chat endpoint.
type chatRunner struct {
	provider     string
	client       chatClient
	modelID      string
	temperature  float32
	maxTokens    int
	useCoT       bool
	systemPrompt string
}

func newChatRunner(cfg models.ModelConfig, opts runnerOptions) (*chatRunner, error) {
	endpoint, ok := providerEndpoints[cfg.Provider]
	if !ok {
		return nil, &ConfigurationError{Message: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(endpoint.apiKeyEnv)
	}
	if apiKey == "" {
		return nil, &ConfigurationError{
			Message: fmt.Sprintf("provider %q requires an API key (set %s)", cfg.Provider, endpoint.apiKeyEnv),
		}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	baseURL := endpoint.baseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &chatRunner{
		provider:     cfg.Provider,
		client:       openai.NewClientWithConfig(clientConfig),
		modelID:      cfg.ModelID,
		temperature:  float32(cfg.Temperature),
		maxTokens:    cfg.MaxTokens,
		useCoT:       cfg.UseCoT,
		systemPrompt: opts.SystemPrompt,
	}, nil
}

func (r *chatRunner) Run(ctx context.Context, input string) (*models.ModelOutput, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if r.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: BuildPrompt(input, r.useCoT),
	})

	req := openai.ChatCompletionRequest{
		Model:       r.modelID,
		Messages:    messages,
		Temperature: r.temperature,
	}
	if r.maxTokens > 0 {
		req.MaxTokens = r.maxTokens
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, wrapProviderError(r.provider, err)
	}
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: r.provider, Message: "response contained no choices"}
	}
	raw := resp.Choices[0].Message.Content

	answer, cotText, confidence := ParseResponse(raw, r.useCoT)

	out := &models.ModelOutput{
		Answer:      answer,
		CoTText:     cotText,
		Confidence:  confidence,
		RawResponse: raw,
		LatencyMs:   models.Ptr(latencyMs),
	}
	if resp.Usage.TotalTokens > 0 {
		out.PromptTokens = models.Ptr(resp.Usage.PromptTokens)
		out.CompletionTokens = models.Ptr(resp.Usage.CompletionTokens)
		out.TotalTokens = models.Ptr(resp.Usage.TotalTokens)
	}
	return out, nil
}

func wrapProviderError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return &ProviderError{
			Provider:   provider,
			StatusCode: apiErr.HTTPStatusCode,
			Code:       code,
			Message:    apiErr.Message,
		}
	}
	return &ProviderError{Provider: provider, Message: err.Error()}
}
