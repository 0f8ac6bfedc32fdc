// Package llm is the boundary to chat-completion backends. Analyzers build a
// Request, a Client returns the backend's raw Response, and DecodeKey turns
// that response into typed values regardless of its shape.
package llm

import "context"

// DefaultTemperature is used by every analysis request.
const DefaultTemperature = 0.1

// Request is a single structured-output completion.
type Request struct {
	// Name and Description label the JSON schema for backends that take them.
	Name         string
	Description  string
	SystemPrompt string
	UserContent  string
	Temperature  float64
	// Schema is a JSON schema document, usually from GenerateSchema.
	Schema any
}

// Response is a raw completion: a typed SDK value (*openai.ChatCompletion,
// *api.ChatResponse) or a decoded JSON mapping with the same layout.
type Response any

// Client issues completions.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
