package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/codebuildervaibhav/discussion-analysis/internal/llm"
)

func TestCompleteUsesFormatAndAccumulates(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, `{"model":"m","message":{"role":"assistant","content":"{\"hierarchy\":"},"done":false}`+"\n")
		io.WriteString(w, `{"model":"m","message":{"role":"assistant","content":"{}}"},"done":true}`+"\n")
	}))
	defer srv.Close()

	c, err := New(Params{Model: "llama3.1", BaseURL: srv.URL, APIKey: "secret", MaxConcurrentRequests: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := c.Complete(context.Background(), llm.Request{
		Name:         "hierarchy",
		SystemPrompt: "Analyze the topics.",
		UserContent:  "Topics: a\nContext: x",
		Temperature:  0.1,
		Schema:       map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var h map[string][]string
	if err := llm.DecodeKey(resp, "hierarchy", &h); err != nil {
		t.Fatalf("DecodeKey: %v", err)
	}
	if captured["format"] == nil {
		t.Errorf("format not sent: %v", captured)
	}
	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("messages = %v", msgs)
	}
}

func TestContextSizeGrowsWithPrompt(t *testing.T) {
	c, err := New(Params{Model: "m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	small := c.contextSize("hello")
	large := c.contextSize(strings.Repeat("budget revenue forecast ", 2000))
	if small >= defaultContext {
		t.Errorf("small prompt context = %d, want < %d", small, defaultContext)
	}
	if large <= defaultContext {
		t.Errorf("large prompt context = %d, want > %d", large, defaultContext)
	}
}
