package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/recovery"
)

// Known OpenAI-compatible provider endpoints.
const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	defaultTemperature = 0.2
	defaultMaxTokens   = 2048
)

var ErrMissingAPIKey = errors.New("api key is required")

// ProviderConfig describes an OpenAI-compatible provider.
type ProviderConfig struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// LLMBackend adapts a langchaingo model.
type LLMBackend struct {
	name        string
	model       llms.Model
	modelName   string
	temperature float64
	maxTokens   int
}

// NewLLMBackend wraps an existing langchaingo model.
func NewLLMBackend(name string, model llms.Model, modelName string) *LLMBackend {
	return &LLMBackend{
		name:        name,
		model:       model,
		modelName:   modelName,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
}

// NewOpenAICompatible builds a backend for Groq, OpenRouter or any other
// OpenAI-compatible endpoint.
func NewOpenAICompatible(cfg ProviderConfig) (*LLMBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: %w", cfg.Name, ErrMissingAPIKey)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch cfg.Name {
		case "groq":
			baseURL = GroqBaseURL
		case "openrouter":
			baseURL = OpenRouterBaseURL
		}
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Name, err)
	}

	b := NewLLMBackend(cfg.Name, llm, cfg.Model)
	if cfg.Temperature > 0 {
		b.temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		b.maxTokens = cfg.MaxTokens
	}
	return b, nil
}

func (b *LLMBackend) Name() string { return b.name }

// Complete implements Backend.
func (b *LLMBackend) Complete(ctx context.Context, messages []Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := schema.ChatMessageTypeHuman
		if m.Role == RoleSystem {
			role = schema.ChatMessageTypeSystem
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{
		llms.WithTemperature(b.temperature),
		llms.WithMaxTokens(b.maxTokens),
	}
	if b.modelName != "" {
		opts = append(opts, llms.WithModel(b.modelName))
	}

	resp, err := b.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", classify(err)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// classify turns upstream throttling into a recoverable rate-limit error.
// Other errors are returned unchanged.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return recovery.New(recovery.CodeRateLimit, "reasoning backend is rate limiting requests",
			recovery.WithCause(err),
		)
	}
	return err
}
