package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/semaphore"

	"github.com/codebuildervaibhav/discussion-analysis/internal/llm"
	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
)

const defaultContext = 4096

// Client runs completions against a local or remote Ollama server.
type Client struct {
	model   string
	reqLock *semaphore.Weighted
	enc     *tiktoken.Tiktoken

	Client *api.Client
}

// Params configures a Client.
type Params struct {
	Model                 string
	BaseURL               string
	APIKey                string
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

func New(params Params) (*Client, error) {
	u, err := url.Parse("http://127.0.0.1:11434")
	if err != nil {
		return nil, err
	}
	if params.BaseURL != "" {
		if u, err = url.Parse(params.BaseURL); err != nil {
			return nil, err
		}
	}

	headers := map[string]string{}
	if params.APIKey != "" {
		headers["Authorization"] = "Bearer " + params.APIKey
	}
	httpClient := &http.Client{
		Transport: &headerTransport{headers: headers, rt: http.DefaultTransport},
	}

	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 1
	}

	// The encoding is fetched on first use; without it we fall back to a
	// four-characters-per-token estimate.
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, estimating context size", "err", err)
		enc = nil
	}

	return &Client{
		model:   params.Model,
		reqLock: semaphore.NewWeighted(params.MaxConcurrentRequests),
		enc:     enc,
		Client:  api.NewClient(u, httpClient),
	}, nil
}

// contextSize estimates num_ctx for the prompt, leaving room for the answer.
func (c *Client) contextSize(texts ...string) int {
	tokens := 512
	for _, t := range texts {
		if c.enc == nil {
			tokens += len(t) / 4
			continue
		}
		tokens += len(c.enc.Encode(t, nil, nil))
	}
	return tokens
}

// Complete sends req with a JSON schema format and returns the accumulated
// *api.ChatResponse.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	msgs := []api.Message{}
	if req.SystemPrompt != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: req.UserContent})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": req.Temperature},
	}
	if req.Schema != nil {
		format, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, err
		}
		chatReq.Format = json.RawMessage(format)
	}
	if n := c.contextSize(req.SystemPrompt, req.UserContent); n > defaultContext {
		chatReq.Options["num_ctx"] = n
	}

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, chatReq, func(cr api.ChatResponse) error {
		final.Message.Role = cr.Message.Role
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Model = cr.Model
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return nil, err
	}

	logger.Debug("LLM completion",
		"schema", req.Name,
		"model", c.model,
		"input_tokens", final.Metrics.PromptEvalCount,
		"output_tokens", final.Metrics.EvalCount,
		"duration_ms", final.Metrics.TotalDuration.Milliseconds(),
	)
	return &final, nil
}
