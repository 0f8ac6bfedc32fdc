package llm

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

type topicsPayload struct {
	Name string `json:"name"`
}

func mappingResponse(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func structuredResponse(t *testing.T, content string) *openai.ChatCompletion {
	t.Helper()
	raw, _ := json.Marshal(mappingResponse(content))
	var c openai.ChatCompletion
	if err := json.Unmarshal(raw, &c); err != nil {
		t.Fatalf("build ChatCompletion: %v", err)
	}
	return &c
}

func TestMessageContentShapes(t *testing.T) {
	const content = `{"topics":[{"name":"Budget"}]}`
	rawBody, _ := json.Marshal(mappingResponse(content))

	tests := []struct {
		name string
		resp Response
	}{
		{"mapping", mappingResponse(content)},
		{"structured", structuredResponse(t, content)},
		{"raw bytes", rawBody},
		{"raw message", json.RawMessage(rawBody)},
		{"ollama", &api.ChatResponse{Message: api.Message{Role: "assistant", Content: content}}},
		{"ollama mapping", map[string]any{"message": map[string]any{"content": content}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MessageContent(tt.resp)
			if err != nil {
				t.Fatalf("MessageContent() error = %v", err)
			}
			if got != content {
				t.Errorf("MessageContent() = %q, want %q", got, content)
			}
		})
	}
}

func TestMessageContentErrors(t *testing.T) {
	tests := []struct {
		name string
		resp Response
	}{
		{"nil", nil},
		{"no choices", map[string]any{"choices": []any{}}},
		{"choice not object", map[string]any{"choices": []any{"x"}}},
		{"content not string", map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": 3}}}}},
		{"unrelated mapping", map[string]any{"id": "x"}},
		{"not json", []byte("hello")},
		{"unsupported", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MessageContent(tt.resp)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("MessageContent() error = %v, want *ValidationError", err)
			}
		})
	}
}

func TestDecodeKey(t *testing.T) {
	var topics []topicsPayload
	if err := DecodeKey(mappingResponse(`{"topics":[{"name":"Budget"},{"name":"Revenue"}]}`), "topics", &topics); err != nil {
		t.Fatalf("DecodeKey() error = %v", err)
	}
	if len(topics) != 2 || topics[1].Name != "Revenue" {
		t.Errorf("topics = %+v", topics)
	}
}

func TestDecodeKeyFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"missing key", `{"subjects":[]}`, `missing key "topics"`},
		{"wrong shape", `{"topics":{"name":"x"}}`, "unexpected shape"},
		{"not object", `[1,2,3]`, "not a JSON object"},
		{"empty", `   `, "empty message content"},
		{"null value", `{"topics":null}`, `key "topics" is null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out []topicsPayload
			err := DecodeKey(mappingResponse(tt.content), "topics", &out)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("DecodeKey() error = %v, want *ValidationError", err)
			}
			if !strings.Contains(ve.Error(), tt.reason) {
				t.Errorf("error = %q, want it to contain %q", ve.Error(), tt.reason)
			}
		})
	}
}

func TestUnmarshalFlexible(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain", `{"name":"Budget"}`},
		{"double encoded", `"{\"name\":\"Budget\"}"`},
		{"fenced", "```json\n{\"name\":\"Budget\"}\n```"},
		{"trailing comma", `{"name":"Budget",}`},
		{"duplicate brace", `{ {"name":"Budget"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out topicsPayload
			if err := UnmarshalFlexible(tt.input, &out); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if out.Name != "Budget" {
				t.Errorf("Name = %q, want Budget", out.Name)
			}
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	type payload struct {
		Score float64 `json:"sentiment_score" jsonschema:"minimum=-1,maximum=1"`
	}
	raw, err := json.Marshal(GenerateSchema(&payload{}))
	if err != nil {
		t.Fatalf("Marshal schema: %v", err)
	}
	s := string(raw)
	for _, want := range []string{`"sentiment_score"`, `"additionalProperties":false`, `"minimum":-1`} {
		if !strings.Contains(s, want) {
			t.Errorf("schema %s missing %s", s, want)
		}
	}
}
