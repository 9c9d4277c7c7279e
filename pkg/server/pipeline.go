package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/auth"
	"github.com/lamb-project/lamb-core/pkg/connectors"
	"github.com/lamb-project/lamb-core/pkg/connectors/openaitools"
	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/persistence"
	"github.com/lamb-project/lamb-core/pkg/plugins"
	"github.com/lamb-project/lamb-core/pkg/store"
)

// toolCallingConnectorName is the connector name that selects
// pkg/connectors/openaitools (see its package doc); that connector is not
// registered in Registries.Connectors. An assistant opts into the
// native OpenAI function-calling loop — as opposed to the orchestrator's
// template-splicing tool fan-out — by naming this connector; both modes
// read the same assistant.Metadata.Tools list (one ToolConfig graph,
// two different ways of presenting it to the model), so nothing about
// an assistant's declared tools needs to change to switch between them.
const toolCallingConnectorName = "openai_tools"

// AssistantStore is the subset of pkg/store.Store the pipeline needs to
// resolve a completion request's target assistant.
type AssistantStore interface {
	GetAssistant(ctx context.Context, id int64) (*store.AssistantRow, error)
}

// Pipeline composes the five subsystems spec §2's "Flow" describes into
// one request-scoped call: resolve AuthContext (done by pkg/auth's
// middleware before Dispatch is ever called) -> look up the assistant ->
// run its configured orchestrator or legacy prompt processor -> run the
// connector -> persist the turn.
type Pipeline struct {
	Assistants AssistantStore
	Registries *plugins.Registries
	Persist    *persistence.Hook

	// ToolCallingProviderConfig resolves OpenAI credentials for the
	// native function-calling connector, built the same way every other
	// connector's resolveConfig closure is (pkg/orgconfig-backed, set up
	// once in internal/bootstrap) but held separately because that connector
	// cannot live in Registries.Connectors (its Complete/Stream methods
	// take an extra tool-specs argument and so do not satisfy
	// plugins.Connector).
	ToolCallingProviderConfig connectors.ProviderConfigResolver

	Log *slog.Logger
}

// CompletionResult is what Dispatch hands back to the HTTP handler for a
// non-streaming request.
type CompletionResult struct {
	Model            string
	ChatID           string
	Content          string
	Sources          []plugins.Source
	PromptTokens     int
	CompletionTokens int
}

// resolved bundles the assistant-lookup and orchestration output shared
// by both the non-streaming and streaming call paths.
type resolved struct {
	assistant assistant.Assistant
	model     string
	messages  []plugins.Message
	sources   []plugins.Source
}

// Dispatch runs the full non-streaming completion pipeline: assistant
// resolution, orchestration, the connector call, and (when Persist is
// set) persistence of both turns.
func (p *Pipeline) Dispatch(ctx context.Context, ac *auth.AuthContext, req CompletionRequest, owHeaders map[string]string) (*CompletionResult, error) {
	r, err := p.resolve(ctx, ac, req, owHeaders)
	if err != nil {
		return nil, err
	}

	content, err := p.complete(ctx, r.assistant, r.model, r.messages)
	if err != nil {
		return nil, err
	}

	chatID, err := p.persistExchange(ctx, ac, req, r.assistant.ID, content)
	if err != nil {
		return nil, err
	}

	promptTokens := connectors.EstimatePromptTokens(r.model, r.messages)
	completionTokens := connectors.EstimatePromptTokens(r.model, []plugins.Message{{Role: "assistant", Content: content}})

	return &CompletionResult{
		Model:            r.model,
		ChatID:           chatID,
		Content:          content,
		Sources:          r.sources,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

// ResolveStream runs assistant resolution and orchestration only, handing
// back the aggregated sources so the HTTP handler can emit spec §6.1's
// initial sources frame before any text delta, then StreamConnector
// drives the actual connector call. Split from the non-streaming
// Dispatch because streaming must surface sources up front, before the
// reply exists, while Dispatch attaches them to the final JSON object
// once it does.
func (p *Pipeline) ResolveStream(ctx context.Context, ac *auth.AuthContext, req CompletionRequest, owHeaders map[string]string) (*resolved, error) {
	return p.resolve(ctx, ac, req, owHeaders)
}

// StreamConnector runs the streaming connector call for an already
// resolved request.
func (p *Pipeline) StreamConnector(ctx context.Context, r *resolved, emit func(plugins.CompletionChunk) error) error {
	return p.stream(ctx, r.assistant, r.model, r.messages, emit)
}

// AssistantID exposes the resolved assistant's id for persistence.
func (r *resolved) AssistantID() int64 { return r.assistant.ID }

// Sources exposes the resolved request's aggregated citations.
func (r *resolved) Sources() []plugins.Source { return r.sources }

// PersistExchange appends the user turn and the assembled assistant
// reply to the chat, creating a chat when req.ChatID is empty (spec
// §4.8). Exported so the streaming handler can call it once the full
// reply text has been accumulated from emitted chunks.
func (p *Pipeline) PersistExchange(ctx context.Context, ac *auth.AuthContext, req CompletionRequest, assistantID int64, assistantReply string) (string, error) {
	return p.persistExchange(ctx, ac, req, assistantID, assistantReply)
}

func (p *Pipeline) persistExchange(ctx context.Context, ac *auth.AuthContext, req CompletionRequest, assistantID int64, assistantReply string) (string, error) {
	if p.Persist == nil {
		return req.ChatID, nil
	}

	userTurn := lastUserMessageText(req.Messages)
	chatID, err := p.Persist.AppendTurn(ctx, ac, req.ChatID, assistantID, "user", userTurn, req.ParentID)
	if err != nil {
		return "", err
	}
	if _, err := p.Persist.AppendTurn(ctx, ac, chatID, assistantID, "assistant", assistantReply, ""); err != nil {
		return "", err
	}
	return chatID, nil
}

func lastUserMessageText(messages []wireMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			var s string
			if err := json.Unmarshal(messages[i].Content, &s); err == nil {
				return s
			}
		}
	}
	return ""
}

// resolve validates access, loads the assistant, checks feature gates,
// and runs orchestration (or the legacy single-slot pipeline) to produce
// the connector-ready message list.
func (p *Pipeline) resolve(ctx context.Context, ac *auth.AuthContext, req CompletionRequest, owHeaders map[string]string) (*resolved, error) {
	assistantID, canonicalModel, err := ParseAssistantID(req.Model)
	if err != nil {
		return nil, err
	}

	if _, err := ac.RequireAssistantAccess(ctx, assistantID); err != nil {
		return nil, err
	}

	row, err := p.Assistants.GetAssistant(ctx, assistantID)
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.Internal, "load assistant", err)
	}
	if row == nil {
		return nil, lambcoreerrors.New(lambcoreerrors.NotFound, "assistant not found")
	}

	a, err := assistant.FromRow(row)
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.Internal, "decode assistant metadata", err)
	}

	if err := p.checkFeatureGates(ac, a); err != nil {
		return nil, err
	}

	pluginMessages, err := req.ToPluginMessages()
	if err != nil {
		return nil, lambcoreerrors.Wrap(lambcoreerrors.ValidationError, "decode messages", err)
	}

	orchReq := plugins.OrchestrationRequest{
		Messages:         pluginMessages,
		Stream:           req.Stream,
		OpenWebUIHeaders: owHeaders,
		Metadata:         req.Metadata,
	}

	messages, sources, err := p.runOrchestration(ctx, orchReq, a)
	if err != nil {
		return nil, err
	}

	model := a.Metadata.Model
	if model == "" {
		model = canonicalModel
	}

	return &resolved{assistant: a, model: model, messages: messages, sources: sources}, nil
}

// runOrchestration dispatches between the multi-tool orchestrator path
// and the legacy single-slot prompt-processor path (spec §4.6 "coexists
// with orchestrators"). Both paths return a complete, connector-ready
// message list — the orchestrator's buildFinalMessages and the legacy
// processor's Process already do all template/system-prompt assembly,
// so resolve's caller never needs to touch a.PromptTemplate directly.
func (p *Pipeline) runOrchestration(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant) ([]plugins.Message, []plugins.Source, error) {
	if a.Metadata.MultiToolMode() {
		orch, err := p.Registries.GetOrchestrator(a.Metadata.Orchestrator)
		if err != nil {
			return nil, nil, err
		}
		result, err := orch.Execute(ctx, req, a, a.EnabledTools(), false)
		if err != nil {
			return nil, nil, lambcoreerrors.Wrap(lambcoreerrors.Internal, "orchestration failed", err)
		}
		if result.Error != "" {
			return nil, nil, lambcoreerrors.New(lambcoreerrors.ToolFailed, result.Error)
		}
		return result.Messages, result.Sources, nil
	}

	var ragContext string
	var sources []plugins.Source
	if a.Metadata.RAGProcessor != "" {
		ragProc, err := p.Registries.GetRAGProcessor(a.Metadata.RAGProcessor)
		if err != nil {
			return nil, nil, err
		}
		result, err := ragProc.Retrieve(ctx, req.Messages, a, req)
		if err != nil {
			return nil, nil, lambcoreerrors.Wrap(lambcoreerrors.Internal, "rag retrieval failed", err)
		}
		ragContext = result.Context
		sources = result.Sources
	}

	if a.Metadata.PromptProcessor == "" {
		return nil, nil, lambcoreerrors.New(lambcoreerrors.ConfigError, "assistant declares neither an orchestrator nor a prompt processor")
	}
	proc, err := p.Registries.GetPromptProcessor(a.Metadata.PromptProcessor)
	if err != nil {
		return nil, nil, err
	}
	messages, err := proc.Process(ctx, req, a, ragContext)
	if err != nil {
		return nil, nil, lambcoreerrors.Wrap(lambcoreerrors.Internal, "prompt processing failed", err)
	}
	return messages, sources, nil
}

// checkFeatureGates enforces the organization feature flags a declared
// tool implies (spec §3 Organization "feature flags (rag_enabled,
// mcp_enabled, ...)"); a missing flag defaults to disabled, matching
// auth.AuthContext.extractFeatures's own missing-key default.
func (p *Pipeline) checkFeatureGates(ac *auth.AuthContext, a assistant.Assistant) error {
	if a.Metadata.RAGProcessor != "" && !ac.Features["rag_enabled"] {
		return lambcoreerrors.New(lambcoreerrors.PermissionDenied, "RAG is not enabled for this organization")
	}
	for _, t := range a.EnabledTools() {
		tool, err := p.Registries.GetTool(t.Plugin)
		if err != nil {
			continue // an orchestrator logs-and-skips a missing tool; mirror that here
		}
		decl := tool.Declaration()
		if decl.Category == "rag" && !ac.Features["rag_enabled"] {
			return lambcoreerrors.New(lambcoreerrors.PermissionDenied, "RAG is not enabled for this organization")
		}
		if decl.Name == "mcp" && !ac.Features["mcp_enabled"] {
			return lambcoreerrors.New(lambcoreerrors.PermissionDenied, "MCP tools are not enabled for this organization")
		}
	}
	return nil
}

// complete runs the non-streaming connector call, dispatching to the
// native tool-calling loop when the assistant selected it.
func (p *Pipeline) complete(ctx context.Context, a assistant.Assistant, model string, messages []plugins.Message) (string, error) {
	if a.Metadata.Connector == toolCallingConnectorName {
		return p.completeWithToolCalling(ctx, a, model, messages)
	}
	conn, err := p.Registries.GetConnector(a.Metadata.Connector)
	if err != nil {
		return "", err
	}
	text, err := conn.Complete(ctx, messages, model, a.OwnerEmail)
	if err != nil {
		return "", err
	}
	return text, nil
}

// stream runs the streaming connector call.
func (p *Pipeline) stream(ctx context.Context, a assistant.Assistant, model string, messages []plugins.Message, emit func(plugins.CompletionChunk) error) error {
	if a.Metadata.Connector == toolCallingConnectorName {
		return p.streamWithToolCalling(ctx, a, model, messages, emit)
	}
	conn, err := p.Registries.GetConnector(a.Metadata.Connector)
	if err != nil {
		return err
	}
	return conn.Stream(ctx, messages, model, a.OwnerEmail, emit)
}

func (p *Pipeline) completeWithToolCalling(ctx context.Context, a assistant.Assistant, model string, messages []plugins.Message) (string, error) {
	specs, err := p.toolSpecsFor(a)
	if err != nil {
		return "", err
	}
	conn := openaitools.New(p.ToolCallingProviderConfig, p.executeToolFor(a, messages))
	text, _, err := conn.Complete(ctx, messages, model, a.OwnerEmail, specs)
	return text, err
}

func (p *Pipeline) streamWithToolCalling(ctx context.Context, a assistant.Assistant, model string, messages []plugins.Message, emit func(plugins.CompletionChunk) error) error {
	specs, err := p.toolSpecsFor(a)
	if err != nil {
		return err
	}
	conn := openaitools.New(p.ToolCallingProviderConfig, p.executeToolFor(a, messages))
	return conn.Stream(ctx, messages, model, a.OwnerEmail, specs, emit)
}

// toolSpecsFor builds the OpenAI function-calling declarations for an
// assistant's enabled tools, reusing each plugin's published
// ConfigSchema as the function's JSON Schema parameters (spec §4.4
// "declaration"). A tool name that is not registered is skipped with a
// log line rather than failing the whole request, mirroring the
// orchestrator's own missing-tool tie-break policy.
func (p *Pipeline) toolSpecsFor(a assistant.Assistant) ([]openaitools.ToolSpec, error) {
	enabled := a.EnabledTools()
	specs := make([]openaitools.ToolSpec, 0, len(enabled))
	for _, t := range enabled {
		tool, err := p.Registries.GetTool(t.Plugin)
		if err != nil {
			if p.Log != nil {
				p.Log.Warn("tool-calling: declared tool not registered, skipping", "plugin", t.Plugin)
			}
			continue
		}
		decl := tool.Declaration()
		specs = append(specs, openaitools.ToolSpec{
			Name:        decl.Name,
			Description: decl.DisplayName,
			Parameters:  decl.ConfigSchema,
		})
	}
	return specs, nil
}

// executeToolFor closes over the assistant and the request's message
// history so the native function-calling loop can run a plugins.Tool the
// same way an orchestrator would, merging the model's JSON call
// arguments on top of the tool's configured defaults.
func (p *Pipeline) executeToolFor(a assistant.Assistant, messages []plugins.Message) openaitools.ToolExecutor {
	return func(ctx context.Context, name, argumentsJSON string) (string, error) {
		cfg, ok := toolConfigFor(a, name)
		if !ok {
			return "", fmt.Errorf("tool %q is not declared for this assistant", name)
		}
		tool, err := p.Registries.GetTool(name)
		if err != nil {
			return "", err
		}

		var args map[string]any
		if argumentsJSON != "" {
			if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
				args = map[string]any{}
			}
		}
		cfg.Config = mergeToolConfig(cfg.Config, args)

		req := plugins.OrchestrationRequest{Messages: messages}
		result := tool.Execute(ctx, req, a, cfg)
		if result.Error != "" {
			return "", fmt.Errorf("%s", result.Error)
		}
		return result.Content, nil
	}
}

func toolConfigFor(a assistant.Assistant, plugin string) (assistant.ToolConfig, bool) {
	for _, t := range a.EnabledTools() {
		if t.Plugin == plugin {
			return t, true
		}
	}
	return assistant.ToolConfig{}, false
}

func mergeToolConfig(base map[string]any, overlay map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}
