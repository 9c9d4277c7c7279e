// Package ollama implements the plain connector contract (spec §4.7)
// against a local or remote Ollama server's /api/chat endpoint, grounded
// on pkg/llms/ollama.go: a hand-rolled JSON request/response over
// pkg/httpclient.Client (Ollama has no official Go SDK), streaming by
// reading newline-delimited JSON chunks until one reports done.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lamb-project/lamb-core/pkg/connectors"
	"github.com/lamb-project/lamb-core/pkg/httpclient"
	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

const (
	providerName       = "ollama"
	defaultBaseURL     = "http://localhost:11434"
	defaultChatModel   = "llama3.1"
	chatCompletionsURI = "/api/chat"
)

// chatRequest is the /api/chat request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// Connector is the plain Ollama connector.
type Connector struct {
	resolveConfig connectors.ProviderConfigResolver
	httpClient    *httpclient.Client
}

// New builds an Ollama connector. resolveConfig supplies the per-owner
// base URL/default model; Ollama needs no API key.
func New(resolveConfig connectors.ProviderConfigResolver) *Connector {
	return &Connector{resolveConfig: resolveConfig, httpClient: httpclient.New(httpclient.WithMaxRetries(0))}
}

func (c *Connector) baseURL(ctx context.Context, ownerEmail string) (string, string, error) {
	cfg, err := c.resolveConfig(ctx, ownerEmail)
	if err != nil {
		return "", "", lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "resolve ollama provider config", err)
	}
	if !cfg.Enabled {
		return "", "", lambcoreerrors.New(lambcoreerrors.ProviderAuthError, "ollama provider is not configured for this organization")
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base, cfg.DefaultModel, nil
}

// Name returns the connector's registry name.
func (c *Connector) Name() string { return providerName }

// Complete runs one non-streaming /api/chat request.
func (c *Connector) Complete(ctx context.Context, messages []plugins.Message, model, ownerEmail string) (string, error) {
	base, defaultModel, err := c.baseURL(ctx, ownerEmail)
	if err != nil {
		return "", err
	}
	if model == "" {
		model = firstNonEmpty(defaultModel, defaultChatModel)
	}

	resp, err := c.doRequest(ctx, base, chatRequest{Model: model, Messages: toOllamaMessages(messages), Stream: false})
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", lambcoreerrors.New(lambcoreerrors.UpstreamUnavailable, fmt.Sprintf("ollama: %s", resp.Error))
	}
	return resp.Message.Content, nil
}

func (c *Connector) doRequest(ctx context.Context, base string, body chatRequest) (*chatResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.Internal, "marshal ollama request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+chatCompletionsURI, bytes.NewReader(jsonData))
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.Internal, "build ollama request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "ollama request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "read ollama response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapStatusError(resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "decode ollama response", err)
	}
	return &out, nil
}

// Stream runs a streaming /api/chat request, forwarding each
// newline-delimited chunk's text to emit until Ollama reports done.
func (c *Connector) Stream(ctx context.Context, messages []plugins.Message, model, ownerEmail string, emit func(plugins.CompletionChunk) error) error {
	base, defaultModel, err := c.baseURL(ctx, ownerEmail)
	if err != nil {
		return err
	}
	if model == "" {
		model = firstNonEmpty(defaultModel, defaultChatModel)
	}

	jsonData, err := json.Marshal(chatRequest{Model: model, Messages: toOllamaMessages(messages), Stream: true})
	if err != nil {
		return lambcoreerrors.Wrap(lambcoreerrors.Internal, "marshal ollama request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+chatCompletionsURI, bytes.NewReader(jsonData))
	if err != nil {
		return lambcoreerrors.Wrap(lambcoreerrors.Internal, "build ollama request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "ollama streaming request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return mapStatusError(resp.StatusCode, string(body))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "read ollama stream", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var chunk chatResponse
			if jsonErr := json.Unmarshal(line, &chunk); jsonErr == nil {
				if chunk.Error != "" {
					return lambcoreerrors.New(lambcoreerrors.UpstreamUnavailable, fmt.Sprintf("ollama: %s", chunk.Error))
				}
				if chunk.Message.Content != "" {
					if emitErr := emit(plugins.CompletionChunk{Content: chunk.Message.Content}); emitErr != nil {
						return emitErr
					}
				}
				if chunk.Done {
					return emit(plugins.CompletionChunk{FinishedAt: true})
				}
			}
		}
		if err == io.EOF {
			return emit(plugins.CompletionChunk{FinishedAt: true})
		}
	}
}

// AvailableModels lists the models the resolved provider config offers.
func (c *Connector) AvailableModels(ctx context.Context, ownerEmail string) ([]string, error) {
	cfg, err := c.resolveConfig(ctx, ownerEmail)
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "resolve ollama provider config", err)
	}
	if len(cfg.Models) > 0 {
		return cfg.Models, nil
	}
	if cfg.DefaultModel != "" {
		return []string{cfg.DefaultModel}, nil
	}
	return []string{defaultChatModel}, nil
}

func toOllamaMessages(messages []plugins.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: m.Role, Content: connectors.MessageText(m)})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// mapStatusError classifies an Ollama HTTP error response into the
// pipeline's error taxonomy (spec §7).
func mapStatusError(statusCode int, body string) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return lambcoreerrors.New(lambcoreerrors.ProviderAuthError, "ollama rejected the request")
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return lambcoreerrors.New(lambcoreerrors.UpstreamUnavailable, fmt.Sprintf("ollama request failed with status %d", statusCode))
	default:
		return lambcoreerrors.New(lambcoreerrors.UpstreamUnavailable, fmt.Sprintf("ollama request failed with status %d: %s", statusCode, body))
	}
}
