// Package smallfastmodel invokes the auxiliary, cheap LLM an
// organization configures for short auxiliary prompts — currently only
// the context-aware/hierarchical RAG tools' query-optimization step
// (spec §4.4, GLOSSARY "Small-fast-model").
package smallfastmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lamb-project/lamb-core/pkg/httpclient"
	"github.com/lamb-project/lamb-core/pkg/orgconfig"
)

// Message is a minimal chat message; the helper only ever sends plain
// text system/user turns, never mixed content.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Helper invokes a configured small-fast-model over an OpenAI-compatible
// chat completions endpoint.
type Helper struct {
	http *httpclient.Client
}

// New builds a Helper on pkg/httpclient with retries disabled, so each
// Invoke sends its request once.
func New() *Helper {
	return &Helper{http: httpclient.New(httpclient.WithMaxRetries(0))}
}

// IsConfigured reports whether an organization has a usable
// small-fast-model set up (spec: "on failure or when the small-fast-model
// is not configured, fall back to the last user message").
func IsConfigured(cfg orgconfig.SmallFastModelConfig) bool {
	return cfg.Model != "" && cfg.APIKey != ""
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Invoke runs one non-streaming chat completion against the configured
// small-fast-model and returns the assistant's reply text.
func (h *Helper) Invoke(ctx context.Context, cfg orgconfig.SmallFastModelConfig, messages []Message) (string, error) {
	if !IsConfigured(cfg) {
		return "", fmt.Errorf("small-fast-model not configured")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	body, err := json.Marshal(chatRequest{Model: cfg.Model, Messages: messages, Stream: false})
	if err != nil {
		return "", fmt.Errorf("encode small-fast-model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build small-fast-model request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("invoke small-fast-model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("small-fast-model returned status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode small-fast-model response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("small-fast-model returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
