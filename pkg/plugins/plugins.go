// Package plugins defines the five plugin contracts the completion
// pipeline schedules against (spec §4.3: connector, orchestrator,
// prompt-processor, RAG processor, tool) and the read-only registries
// that index them by name after process start.
package plugins

import (
	"context"

	"github.com/lamb-project/lamb-core/pkg/assistant"
)

// Message is the wire-level chat message shape shared by connectors,
// orchestrators, and prompt processors.
type Message struct {
	Role    string
	Content any // string, or []ContentPart for a mixed vision message
	// ToolCallID identifies which prior assistant tool call a "tool" role
	// message is answering (spec §4.7 tool-calling loop); empty otherwise.
	ToolCallID string
	// ToolCalls holds the function calls an assistant turn requested, so a
	// tool-calling connector can replay the turn verbatim on the next loop
	// iteration (spec §4.7 step 2). Empty for ordinary turns.
	ToolCalls []ToolCall
}

// ContentPart is one element of a mixed-content message (spec §3
// "Orchestration request").
type ContentPart struct {
	Type     string // "text" | "image_url"
	Text     string
	ImageURL string
}

// CompletionChunk is one streamed piece of a connector's response.
type CompletionChunk struct {
	Content    string
	ToolCalls  []ToolCall
	FinishedAt bool
}

// ToolCall is a connector-reported request to invoke a named function
// with JSON-encoded arguments (spec §4.7 tool-calling loop).
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Connector is the LLM provider integration contract (spec §4.3).
type Connector interface {
	Name() string
	// Complete runs one non-streaming completion request.
	Complete(ctx context.Context, messages []Message, model string, ownerEmail string) (string, error)
	// Stream runs a streaming completion request, invoking emit for each
	// chunk as it arrives.
	Stream(ctx context.Context, messages []Message, model string, ownerEmail string, emit func(CompletionChunk) error) error
	// AvailableModels lists the model names this connector can serve for
	// the given assistant owner (credentials resolved via pkg/orgconfig).
	AvailableModels(ctx context.Context, ownerEmail string) ([]string, error)
}

// OrchestrationRequest is the transient per-turn input an orchestrator or
// prompt processor consumes (spec §3 "Orchestration request").
type OrchestrationRequest struct {
	Messages           []Message
	Stream             bool
	OpenWebUIHeaders   map[string]string
	Metadata           map[string]any
	StreamCallback     func(progress string)
}

// Source is one retrieval citation (spec §3 "Orchestration result").
type Source struct {
	Title         string
	URL           string
	Similarity    float64
	ChunkIndex    *int
	Page          *int
	OriginalURL   string
	MarkdownURL   string
}

// ToolResult is a single tool's output (spec §3 "ToolResult").
type ToolResult struct {
	Placeholder string
	Content     string
	Sources     []Source
	Error       string
}

// OrchestrationResult is what an orchestrator or legacy prompt processor
// hands back to the connector layer (spec §3 "Orchestration result").
type OrchestrationResult struct {
	Messages      []Message
	Sources       []Source
	ToolResults   map[string]ToolResult
	VerboseReport string
	Error         string
}

// Orchestrator is the multi-tool pipeline contract (spec §4.3, §4.5).
type Orchestrator interface {
	Name() string
	Description() string
	Execute(ctx context.Context, req OrchestrationRequest, a assistant.Assistant, tools []assistant.ToolConfig, verbose bool) (OrchestrationResult, error)
}

// PromptProcessor is the legacy single-slot pipeline contract (spec
// §4.3, §4.6).
type PromptProcessor interface {
	Name() string
	Process(ctx context.Context, req OrchestrationRequest, a assistant.Assistant, ragContext string) ([]Message, error)
}

// RAGResult is what a legacy RAG processor returns (spec §4.3).
type RAGResult struct {
	Context string
	Sources []Source
}

// RAGProcessor is the legacy retrieval contract used by the single-slot
// pipeline (spec §4.3).
type RAGProcessor interface {
	Name() string
	Retrieve(ctx context.Context, messages []Message, a assistant.Assistant, req OrchestrationRequest) (RAGResult, error)
}

// ToolDeclaration describes a tool plugin's identity and schema, the
// shape registries list for discovery UIs (spec §4.3 "declaration").
type ToolDeclaration struct {
	Name        string
	DisplayName string
	Placeholder string
	Category    string
	ConfigSchema map[string]any
}

// Tool is the unit of work an orchestrator schedules (spec §4.3, §4.4).
// Implementations must be stateless between calls, tolerate missing
// optional fields, and never panic — a failure is reported as a
// ToolResult.Error, not a crash.
type Tool interface {
	Declaration() ToolDeclaration
	Execute(ctx context.Context, req OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) ToolResult
}
