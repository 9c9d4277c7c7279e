// Package anthropic implements the plain connector contract (spec §4.7)
// against Anthropic's Messages API, grounded on goa-ai's
// features/model/anthropic/client.go and stream.go: one
// anthropic-sdk-go client per resolved provider config, content blocks
// flattened to plain text since plugins.Connector carries no tool-call
// surface (the tool-calling variant, where one exists, lives alongside
// pkg/connectors/openaitools rather than here — see DESIGN.md).
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lamb-project/lamb-core/pkg/connectors"
	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

const (
	providerName     = "anthropic"
	defaultMaxTokens = 4096
)

// Connector is the plain Anthropic Messages connector.
type Connector struct {
	resolveConfig connectors.ProviderConfigResolver
}

// New builds an Anthropic connector. resolveConfig supplies the
// per-owner API key/base URL/default model.
func New(resolveConfig connectors.ProviderConfigResolver) *Connector {
	return &Connector{resolveConfig: resolveConfig}
}

// Name returns the connector's registry name.
func (c *Connector) Name() string { return providerName }

func (c *Connector) client(ctx context.Context, ownerEmail string) (*sdk.Client, string, error) {
	cfg, err := c.resolveConfig(ctx, ownerEmail)
	if err != nil {
		return nil, "", lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "resolve anthropic provider config", err)
	}
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil, "", lambcoreerrors.New(lambcoreerrors.ProviderAuthError, "anthropic provider is not configured for this organization")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := sdk.NewClient(opts...)
	return &client, cfg.DefaultModel, nil
}

// Complete runs one non-streaming Messages.New request.
func (c *Connector) Complete(ctx context.Context, messages []plugins.Message, model, ownerEmail string) (string, error) {
	client, defaultModel, err := c.client(ctx, ownerEmail)
	if err != nil {
		return "", err
	}
	if model == "" {
		model = defaultModel
	}

	msgs, system := toAnthropicMessages(messages)
	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: defaultMaxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", mapError(err)
	}
	return responseText(resp), nil
}

// Stream runs Messages.NewStreaming and forwards each text delta to emit
// as it arrives.
func (c *Connector) Stream(ctx context.Context, messages []plugins.Message, model, ownerEmail string, emit func(plugins.CompletionChunk) error) error {
	client, defaultModel, err := c.client(ctx, ownerEmail)
	if err != nil {
		return err
	}
	if model == "" {
		model = defaultModel
	}

	msgs, system := toAnthropicMessages(messages)
	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: defaultMaxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}

	stream := client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return mapError(err)
	}

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
				if err := emit(plugins.CompletionChunk{Content: delta.Text}); err != nil {
					return err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return mapError(err)
	}
	return emit(plugins.CompletionChunk{FinishedAt: true})
}

// AvailableModels lists the models the resolved provider config offers.
func (c *Connector) AvailableModels(ctx context.Context, ownerEmail string) ([]string, error) {
	cfg, err := c.resolveConfig(ctx, ownerEmail)
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "resolve anthropic provider config", err)
	}
	if len(cfg.Models) > 0 {
		return cfg.Models, nil
	}
	if cfg.DefaultModel != "" {
		return []string{cfg.DefaultModel}, nil
	}
	return nil, lambcoreerrors.New(lambcoreerrors.ProviderAuthError, "anthropic provider is not configured for this organization")
}

// toAnthropicMessages splits system-role turns into the Messages API's
// dedicated system field and converts the rest to user/assistant message
// params, as Anthropic has no "system" conversation role.
func toAnthropicMessages(messages []plugins.Message) ([]sdk.MessageParam, []sdk.TextBlockParam) {
	out := make([]sdk.MessageParam, 0, len(messages))
	var system []sdk.TextBlockParam

	for _, m := range messages {
		text := connectors.MessageText(m)
		if text == "" {
			continue
		}
		switch m.Role {
		case "system":
			system = append(system, sdk.TextBlockParam{Text: text})
		case "assistant":
			out = append(out, sdk.NewAssistantMessage(sdk.NewTextBlock(text)))
		default:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(text)))
		}
	}
	return out, system
}

func responseText(msg *sdk.Message) string {
	if msg == nil {
		return ""
	}
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			text += block.Text
		}
	}
	return text
}

// mapError classifies an Anthropic SDK error into the pipeline's error
// taxonomy (spec §7).
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return lambcoreerrors.Wrap(lambcoreerrors.ProviderAuthError, "anthropic rejected credentials", err)
		case 429:
			return lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "anthropic rate limited the request", err)
		}
		if apiErr.StatusCode >= 500 {
			return lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, "anthropic returned a server error", err)
		}
	}
	return lambcoreerrors.Wrap(lambcoreerrors.UpstreamUnavailable, fmt.Sprintf("anthropic request failed: %v", err), err)
}
