// Package openaitools is the tool-calling-loop variant of the OpenAI
// connector (spec §4.7 "Tool-calling loop"): a bounded loop that calls
// the provider with the declared tool specs, executes any tool calls the
// model requests, feeds the results back, and repeats until the model
// stops calling tools or the iteration bound is hit. Grounded on
// haasonsaas-nexus's internal/agent/providers/openai.go's tool-call
// accumulation (pkg/connectors/openai adapts the same SDK for the plain
// no-tools path); the loop/executor split is this module's own, since
// the spec's tool-calling contract has no upstream analogue to imitate
// directly.
package openaitools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lamb-project/lamb-core/pkg/connectors"
	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

const (
	// providerName is the registry name this connector is registered
	// under — deliberately distinct from pkg/connectors/openai's "openai"
	// so both can be registered at once; an assistant opts into the
	// tool-calling loop by naming "openai_tools" as its connector.
	providerName  = "openai_tools"
	maxIterations = 5
)

// ToolSpec is one tool's OpenAI-facing function declaration.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolExecutor runs the named tool against its JSON-encoded arguments and
// returns a stringified result — the plugins.Tool call is the orchestration
// layer's responsibility, not this connector's; it is injected so this
// package has no dependency on pkg/assistant/pkg/plugins tool wiring.
type ToolExecutor func(ctx context.Context, name string, argumentsJSON string) (string, error)

// Connector runs the bounded tool-calling loop against OpenAI chat
// completions.
type Connector struct {
	resolveConfig connectors.ProviderConfigResolver
	executeTool   ToolExecutor
	log           *slog.Logger
}

// New builds a tool-calling OpenAI connector.
func New(resolveConfig connectors.ProviderConfigResolver, executeTool ToolExecutor) *Connector {
	return &Connector{resolveConfig: resolveConfig, executeTool: executeTool, log: slog.Default()}
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

// Complete runs the non-streaming tool-calling loop and returns the final
// assistant text plus the full turn history appended along the way
// (assistant tool-call turns and tool-result turns), so the caller can
// persist the whole exchange.
func (c *Connector) Complete(ctx context.Context, messages []plugins.Message, model, ownerEmail string, tools []ToolSpec) (string, []plugins.Message, error) {
	client, defaultModel, err := c.client(ctx, ownerEmail)
	if err != nil {
		return "", messages, err
	}
	if model == "" {
		model = defaultModel
	}

	req := openai.ChatCompletionRequest{Model: model, Messages: toOpenAIMessages(messages), Tools: toOpenAITools(tools)}

	var last openai.ChatCompletionResponse
	for i := 0; i < maxIterations; i++ {
		req.Messages = toOpenAIMessages(messages)

		resp, err := client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", messages, mapError(err)
		}
		if len(resp.Choices) == 0 {
			return "", messages, lambcoreerrors.New(lambcoreerrors.UpstreamUnavailable, "openai returned no choices")
		}
		last = resp
		choice := resp.Choices[0]

		if len(choice.Message.ToolCalls) == 0 {
			return choice.Message.Content, messages, nil
		}

		messages = append(messages, assistantToolCallMessage(choice.Message))
		for _, tc := range choice.Message.ToolCalls {
			result, toolErr := c.runTool(ctx, tc)
			if toolErr != nil {
				result = fmt.Sprintf("error: %v", toolErr)
			}
			messages = append(messages, toolResultMessage(tc.ID, result))
		}
	}

	c.log.Warn("openai tool-calling loop exceeded iteration bound", "max_iterations", maxIterations)
	if len(last.Choices) > 0 {
		return last.Choices[0].Message.Content, messages, nil
	}
	return "", messages, lambcoreerrors.New(lambcoreerrors.IterationBudgetExceeded, "tool-calling loop exceeded its iteration bound with no response")
}

// Stream runs the tool-calling loop, only going to a streaming provider
// call once the model stops requesting tools (spec §4.7 step 3), then
// forwards each text delta to emit and finally emits a terminal chunk.
func (c *Connector) Stream(ctx context.Context, messages []plugins.Message, model, ownerEmail string, tools []ToolSpec, emit func(plugins.CompletionChunk) error) error {
	client, defaultModel, err := c.client(ctx, ownerEmail)
	if err != nil {
		return err
	}
	if model == "" {
		model = defaultModel
	}

	req := openai.ChatCompletionRequest{Model: model, Tools: toOpenAITools(tools)}

	for i := 0; i < maxIterations; i++ {
		req.Messages = toOpenAIMessages(messages)

		resp, err := client.CreateChatCompletion(ctx, req)
		if err != nil {
			return mapError(err)
		}
		if len(resp.Choices) == 0 {
			return lambcoreerrors.New(lambcoreerrors.UpstreamUnavailable, "openai returned no choices")
		}
		choice := resp.Choices[0]

		if len(choice.Message.ToolCalls) == 0 {
			return c.streamFinal(ctx, client, req, emit)
		}

		messages = append(messages, assistantToolCallMessage(choice.Message))
		for _, tc := range choice.Message.ToolCalls {
			result, toolErr := c.runTool(ctx, tc)
			if toolErr != nil {
				result = fmt.Sprintf("error: %v", toolErr)
			}
			messages = append(messages, toolResultMessage(tc.ID, result))
		}
	}

	c.log.Warn("openai tool-calling loop exceeded iteration bound", "max_iterations", maxIterations)
	return emit(plugins.CompletionChunk{FinishedAt: true})
}

func (c *Connector) streamFinal(ctx context.Context, client *openai.Client, req openai.ChatCompletionRequest, emit func(plugins.CompletionChunk) error) error {
	req.Stream = true
	stream, err := client.CreateChatCompletionStream(ctx, req)
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
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := emit(plugins.CompletionChunk{Content: delta}); err != nil {
				return err
			}
		}
	}
}

func (c *Connector) runTool(ctx context.Context, tc openai.ToolCall) (string, error) {
	if c.executeTool == nil {
		return "", fmt.Errorf("no tool executor configured")
	}
	args := tc.Function.Arguments
	if !json.Valid([]byte(args)) {
		args = "{}"
	}
	return c.executeTool(ctx, tc.Function.Name, args)
}

func assistantToolCallMessage(msg openai.ChatCompletionMessage) plugins.Message {
	calls := make([]plugins.ToolCall, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		calls[i] = plugins.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
	}
	return plugins.Message{Role: openai.ChatMessageRoleAssistant, Content: msg.Content, ToolCalls: calls}
}

func toolResultMessage(toolCallID, content string) plugins.Message {
	return plugins.Message{Role: "tool", Content: content, ToolCallID: toolCallID}
}

func toOpenAIMessages(messages []plugins.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    connectors.MessageText(m),
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				msg.ToolCalls[i] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []ToolSpec) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

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
