package llm

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"ArticlesClassifier/internal/ports"
)

// ChatGPTConfig configures an OpenAI-compatible chat completion backend.
type ChatGPTConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Seed         int
	Timeout      time.Duration
}

// ChatGPTClient implements ports.Generator on the chat completions API.
type ChatGPTClient struct {
	client       openai.Client
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int64
	seed         int64
}

var _ ports.Generator = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration. SDK retries are disabled;
// the caller owns the retry policy.
func NewChatGPTClient(cfg ChatGPTConfig) (*ChatGPTClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("chatgpt client misconfigured: api key and model are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 100
	}

	return &ChatGPTClient{
		client:       openai.NewClient(opts...),
		model:        cfg.Model,
		systemPrompt: safePrompt(cfg.SystemPrompt),
		temperature:  cfg.Temperature,
		maxTokens:    int64(maxTokens),
		seed:         int64(cfg.Seed),
	}, nil
}

// Generate sends the prompt as the user turn and returns the first choice.
func (c *ChatGPTClient) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(c.temperature),
		MaxCompletionTokens: openai.Int(c.maxTokens),
	}
	if c.seed != 0 {
		params.Seed = openai.Int(c.seed)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", convertError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chatgpt returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping resolves the configured model.
func (c *ChatGPTClient) Ping(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model); err != nil {
		return convertError(err)
	}
	return nil
}

// convertError turns SDK status errors into *StatusError so retry policies can inspect them.
func convertError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &StatusError{
			Provider:   "chatgpt",
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Message,
		}
	}
	return errors.Wrap(err, "chatgpt request")
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a biomedical literature classifier. Answer only with category names."
	}
	return prompt
}
