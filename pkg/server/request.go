// Package server implements the HTTP surface the pipeline is reached
// through: a chi-based router exposing POST /v1/chat/completions (spec
// §6.1), request parsing and model-id canonicalization, SSE streaming,
// and the status-code mapping from the classified error taxonomy
// (pkg/lambcore/errors) to the table in spec §7.
package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// assistantModelPrefix is the canonical model-id form (SPEC_FULL.md
// §14(c)): "lamb_assistant.<id>". A bare integer is accepted and
// normalized to this form here, at the API boundary — nothing deeper in
// the pipeline ever sees the bare form.
const assistantModelPrefix = "lamb_assistant."

// wireMessage is the OpenAI-compatible wire shape of one chat message.
// Content is kept as raw JSON because it is polymorphic: a plain string,
// or an array of {type, text, image_url} parts for a vision-capable
// model (spec §3 "Orchestration request").
type wireMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// CompletionRequest is the decoded POST /v1/chat/completions body (spec
// §6.1).
type CompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []wireMessage  `json:"messages"`
	Stream      bool           `json:"stream"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	ChatID      string         `json:"chat_id,omitempty"`
	ParentID    string         `json:"parent_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Validate checks the request carries the minimum shape the pipeline
// needs, failing with ValidationError (spec §7, status 400) otherwise.
func (r CompletionRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return lambcoreerrors.New(lambcoreerrors.ValidationError, "model is required")
	}
	if len(r.Messages) == 0 {
		return lambcoreerrors.New(lambcoreerrors.ValidationError, "messages must not be empty")
	}
	for i, m := range r.Messages {
		if strings.TrimSpace(m.Role) == "" {
			return lambcoreerrors.New(lambcoreerrors.ValidationError, fmt.Sprintf("messages[%d]: role is required", i))
		}
	}
	return nil
}

// ToPluginMessages decodes the wire messages into the pipeline's internal
// message shape.
func (r CompletionRequest) ToPluginMessages() ([]plugins.Message, error) {
	out := make([]plugins.Message, len(r.Messages))
	for i, m := range r.Messages {
		content, err := decodeContent(m.Content)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		out[i] = plugins.Message{Role: m.Role, Content: content, ToolCallID: m.ToolCallID}
	}
	return out, nil
}

// decodeContent turns a message's raw JSON content into either a plain
// string or a []plugins.ContentPart, matching whichever shape the client
// sent.
func decodeContent(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var wireParts []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		ImageURL struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if err := json.Unmarshal(raw, &wireParts); err != nil {
		return nil, fmt.Errorf("content must be a string or an array of content parts: %w", err)
	}

	parts := make([]plugins.ContentPart, len(wireParts))
	for i, p := range wireParts {
		parts[i] = plugins.ContentPart{Type: p.Type, Text: p.Text, ImageURL: p.ImageURL.URL}
	}
	return parts, nil
}

// ParseAssistantID extracts the assistant id from a model string in
// either canonical ("lamb_assistant.<id>") or bare-integer form,
// returning the canonical form alongside it so callers can echo it back
// in the response (SPEC_FULL.md §14(c)).
func ParseAssistantID(model string) (int64, string, error) {
	digits := model
	if rest, ok := strings.CutPrefix(model, assistantModelPrefix); ok {
		digits = rest
	}

	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", lambcoreerrors.New(lambcoreerrors.ValidationError, fmt.Sprintf("model %q is not a valid assistant reference", model))
	}
	return id, assistantModelPrefix + digits, nil
}

// openWebUIHeaderPrefix marks the headers carrying the transient
// end-user identity LTI-backed tools need (spec §3 "__openwebui_headers__").
const openWebUIHeaderPrefix = "X-Openwebui-"

// extractOpenWebUIHeaders collects the subset of request headers LTI
// identity-aware tools read, keyed by the lowercased full header name
// (e.g. "x-openwebui-user-email").
func extractOpenWebUIHeaders(header map[string][]string) map[string]string {
	out := map[string]string{}
	for name, values := range header {
		if len(values) == 0 {
			continue
		}
		if _, ok := cutPrefixFold(name, openWebUIHeaderPrefix); ok {
			out[strings.ToLower(name)] = values[0]
		}
	}
	return out
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
