// Package openai implements the plain (non-tool-calling) connector
// contract (spec §4.7) against OpenAI's chat-completions API, grounded
// on haasonsaas-nexus's internal/agent/providers/openai.go: one
// go-openai client per resolved provider config, streaming driven by
// CreateChatCompletionStream.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/connectors"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

const providerName = "openai"

// Connector is the plain OpenAI connector: no function-calling loop,
// used directly where an assistant declares no tools (the tool-calling
// variant lives in pkg/connectors/openaitools).
type Connector struct {
	resolveConfig connectors.ProviderConfigResolver
}

// New builds an OpenAI connector. resolveConfig supplies the per-owner
// API key/base URL/default model (spec §4.2 resolution order: org
// config first, environment defaults second).
func New(resolveConfig connectors.ProviderConfigResolver) *Connector {
	return &Connector{resolveConfig: resolveConfig}
}

// Name returns the connector's registry name.
func (c *Connector) Name() string { return providerName }

func (c *Connector) client(ctx context.Context, ownerEmail string) (*openai.Client, string, error) {
	cfg, err := c.resolveConfig(ctx, ownerEmail)
	if err != nil {
		return nil, "", lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "resolve openai provider config", err)
	}
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil, "", lambcoreerrors.New(lambcoreerrors.ProviderAuthError, "openai provider is not configured for this organization")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg), cfg.DefaultModel, nil
}

// Complete runs one non-streaming chat completion.
func (c *Connector) Complete(ctx context.Context, messages []plugins.Message, model string, ownerEmail string) (string, error) {
	client, defaultModel, err := c.client(ctx, ownerEmail)
	if err != nil {
		return "", err
	}
	if model == "" {
		model = defaultModel
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", lambcoreerrors.New(lambcoreerrors.UpstreamUnavailable, "openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream runs a streaming chat completion, forwarding each text delta to
// emit as it arrives.
func (c *Connector) Stream(ctx context.Context, messages []plugins.Message, model string, ownerEmail string, emit func(plugins.CompletionChunk) error) error {
	client, defaultModel, err := c.client(ctx, ownerEmail)
	if err != nil {
		return err
	}
	if model == "" {
		model = defaultModel
	}

	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return mapError(err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return emit(plugins.CompletionChunk{FinishedAt: true})
		}
		if err != nil {
			return mapError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if delta.Content == "" {
			continue
		}
		if err := emit(plugins.CompletionChunk{Content: delta.Content}); err != nil {
			return err
		}
	}
}

// AvailableModels lists the models the resolved provider config offers.
func (c *Connector) AvailableModels(ctx context.Context, ownerEmail string) ([]string, error) {
	cfg, err := c.resolveConfig(ctx, ownerEmail)
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "resolve openai provider config", err)
	}
	if len(cfg.Models) > 0 {
		return cfg.Models, nil
	}
	if cfg.DefaultModel != "" {
		return []string{cfg.DefaultModel}, nil
	}
	return nil, lambcoreerrors.New(lambcoreerrors.ProviderAuthError, "openai provider is not configured for this organization")
}

func toOpenAIMessages(messages []plugins.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: connectors.MessageText(m),
		})
	}
	return out
}

// mapError classifies an OpenAI SDK error into the pipeline's error
// taxonomy (spec §7).
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return lambcoreerrors.Wrap(lambcoreerrors.ProviderAuthError, "openai rejected credentials", err)
		case 429:
			return lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "openai rate limited the request", err)
		}
		if apiErr.HTTPStatusCode >= 500 {
			return lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "openai returned a server error", err)
		}
	}
	return lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, fmt.Sprintf("openai request failed: %v", err), err)
}
