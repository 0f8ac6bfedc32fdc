package openai

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/codebuildervaibhav/discussion-analysis/internal/llm"
	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
)

// Usage accumulates token counts across calls.
type Usage struct {
	Requests     int
	InputTokens  int64
	OutputTokens int64
}

// Client talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, Together, vLLM, LiteLLM).
type Client struct {
	client openai.Client
	model  string

	mu    sync.Mutex
	usage Usage
}

// Params configures a Client.
type Params struct {
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

func New(params Params) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(params.APIKey),
		option.WithMaxRetries(params.MaxRetries),
	}
	if params.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(params.BaseURL))
	}
	if params.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(params.Timeout))
	}
	if params.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(params.HTTPClient))
	}

	return &Client{
		client: openai.NewClient(opts...),
		model:  params.Model,
	}
}

// Complete sends req with a JSON-schema response format and returns the
// *openai.ChatCompletion unchanged.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{}
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	msgs = append(msgs, openai.UserMessage(req.UserContent))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.Schema != nil {
		body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Name,
					Description: openai.String(req.Description),
					Schema:      req.Schema,
					// Optional fields (importance, confidence) are not
					// expressible in strict mode.
					Strict: openai.Bool(false),
				},
			},
		}
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, body)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response from model")
	}

	c.mu.Lock()
	c.usage.Requests++
	c.usage.InputTokens += resp.Usage.PromptTokens
	c.usage.OutputTokens += resp.Usage.CompletionTokens
	c.mu.Unlock()

	logger.Debug("LLM completion",
		"schema", req.Name,
		"model", c.model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// Usage returns the accumulated token counts.
func (c *Client) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}
