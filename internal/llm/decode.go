package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

const snippetLimit = 300

// ValidationError reports a completion that could not be read or did not
// match the requested schema. Response holds a prefix of the offending
// payload.
type ValidationError struct {
	Reason   string
	Response string
	Err      error
}

func (e *ValidationError) Error() string {
	msg := "invalid LLM response: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Response != "" {
		msg += fmt.Sprintf(" (response: %s)", e.Response)
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func snippet(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			s = fmt.Sprintf("%+v", v)
		} else {
			s = string(b)
		}
	}
	if len(s) > snippetLimit {
		s = s[:snippetLimit] + "..."
	}
	return s
}

func invalid(resp any, reason string, err error) *ValidationError {
	return &ValidationError{Reason: reason, Response: snippet(resp), Err: err}
}

// MessageContent locates the assistant message content in resp. Typed SDK
// responses and mappings shaped like {"choices":[{"message":{"content":…}}]}
// or {"message":{"content":…}} are accepted; raw JSON bytes are decoded first.
func MessageContent(resp Response) (string, error) {
	switch r := resp.(type) {
	case nil:
		return "", invalid(nil, "empty response", nil)
	case *openai.ChatCompletion:
		if r == nil {
			return "", invalid(nil, "empty response", nil)
		}
		return MessageContent(*r)
	case openai.ChatCompletion:
		if len(r.Choices) == 0 {
			return "", invalid(r.RawJSON(), "no choices in response", nil)
		}
		return r.Choices[0].Message.Content, nil
	case *api.ChatResponse:
		if r == nil {
			return "", invalid(nil, "empty response", nil)
		}
		return r.Message.Content, nil
	case api.ChatResponse:
		return r.Message.Content, nil
	case []byte:
		return contentFromJSON(r)
	case json.RawMessage:
		return contentFromJSON(r)
	case string:
		return contentFromJSON([]byte(r))
	case map[string]any:
		return contentFromMap(r)
	default:
		return "", invalid(resp, fmt.Sprintf("unsupported response type %T", resp), nil)
	}
}

func contentFromJSON(raw []byte) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", invalid(raw, "response is not a JSON object", err)
	}
	return contentFromMap(m)
}

func contentFromMap(m map[string]any) (string, error) {
	if choices, ok := m["choices"]; ok {
		list, ok := choices.([]any)
		if !ok || len(list) == 0 {
			return "", invalid(m, "no choices in response", nil)
		}
		first, ok := list[0].(map[string]any)
		if !ok {
			return "", invalid(m, "choice is not an object", nil)
		}
		return messageField(m, first)
	}
	if _, ok := m["message"]; ok {
		return messageField(m, m)
	}
	return "", invalid(m, "no message content field", nil)
}

func messageField(whole, holder map[string]any) (string, error) {
	msg, ok := holder["message"].(map[string]any)
	if !ok {
		return "", invalid(whole, "message is missing or not an object", nil)
	}
	content, ok := msg["content"].(string)
	if !ok {
		return "", invalid(whole, "message content is missing or not a string", nil)
	}
	return content, nil
}

// DecodeKey reads the message content of resp as a JSON object and decodes
// its top-level key into out.
func DecodeKey(resp Response, key string, out any) error {
	content, err := MessageContent(resp)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return invalid(resp, "empty message content", nil)
	}

	var envelope map[string]json.RawMessage
	if err := UnmarshalFlexible(content, &envelope); err != nil {
		return invalid(content, "content is not a JSON object", err)
	}
	raw, ok := envelope[key]
	if !ok {
		return invalid(content, fmt.Sprintf("missing key %q", key), nil)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return invalid(content, fmt.Sprintf("key %q is null", key), nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return invalid(content, fmt.Sprintf("key %q has unexpected shape", key), err)
	}
	return nil
}

// DecodeContent reads the message content of resp as a JSON object into out.
func DecodeContent(resp Response, out any) error {
	content, err := MessageContent(resp)
	if err != nil {
		return err
	}
	if err := UnmarshalFlexible(content, out); err != nil {
		return invalid(content, "content does not match schema", err)
	}
	return nil
}

// stripCodeFence removes a surrounding ```json … ``` block.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// UnmarshalFlexible decodes model output into out. Completions are not always
// clean JSON: some backends wrap the object in a ```json fence, some return it
// as a JSON string, and smaller models drop commas or repeat the opening
// brace. Each form is tried in turn, ending with a jsonrepair pass.
func UnmarshalFlexible(input string, out any) error {
	text := stripCodeFence(input)
	if json.Unmarshal([]byte(text), out) == nil {
		return nil
	}

	if inner, ok := unquoteJSON(text); ok {
		if json.Unmarshal([]byte(inner), out) == nil {
			return nil
		}
		text = inner
	}

	repaired, err := jsonrepair.JSONRepair(collapseOpeningBraces(text))
	if err != nil {
		return fmt.Errorf("model output is not repairable JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("repaired model output does not fit %T: %w", out, err)
	}
	return nil
}

// unquoteJSON reports whether s is a JSON string and returns its content.
func unquoteJSON(s string) (string, bool) {
	var inner string
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

// collapseOpeningBraces turns a leading "{ {" into "{".
func collapseOpeningBraces(s string) string {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "{")
	if !ok {
		return s
	}
	if rest = strings.TrimLeft(rest, " \t\r\n"); strings.HasPrefix(rest, "{") {
		return rest
	}
	return s
}
