package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/kb"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// KBConfigResolver resolves the KB server URL and bearer token an
// assistant's organization should query. plugins.Tool.Execute's fixed
// signature carries no organization lookup, so SimpleRag is handed one
// at construction time instead (spec §4.2 "resolved per organization
// with environment fallback").
type KBConfigResolver func(ctx context.Context, a assistant.Assistant) (serverURL, token string, err error)

const (
	defaultRAGTopK      = 3
	defaultRAGThreshold = 0.0
)

// SimpleRag is the baseline RAG tool: it queries one or more KB server
// collections with the user's latest message and concatenates the
// matched chunks into a single context block (grounded on
// completions/tools/simple_rag.py's SimpleRagTool).
type SimpleRag struct {
	resolveConfig KBConfigResolver
	newClient     func(serverURL, token string) *kb.Client
	log           *slog.Logger
}

// NewSimpleRag builds a SimpleRag tool bound to a per-organization KB
// config resolver.
func NewSimpleRag(resolveConfig KBConfigResolver) *SimpleRag {
	return &SimpleRag{
		resolveConfig: resolveConfig,
		newClient:     kb.New,
		log:           slog.Default().With("component", "tool.simple_rag"),
	}
}

// Declaration describes simple_rag's configuration surface.
func (t *SimpleRag) Declaration() plugins.ToolDeclaration {
	return plugins.ToolDeclaration{
		Name:        "simple_rag",
		DisplayName: "Knowledge Base RAG",
		Placeholder: "context",
		Category:    "rag",
		ConfigSchema: map[string]any{
			"collections": "[]string",
			"top_k":       "int",
			"threshold":   "float64",
		},
	}
}

// Execute queries every configured collection and aggregates matched
// chunks plus their citation sources. A failure on one collection is
// logged and skipped rather than failing the whole tool — the original
// tool continues collecting from the remaining collections on a
// per-collection KB server error.
func (t *SimpleRag) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) plugins.ToolResult {
	placeholder := cfg.Placeholder
	if placeholder == "" {
		placeholder = "context"
	}

	query := lastUserMessageText(req.Messages)
	if query == "" {
		return plugins.ToolResult{Placeholder: placeholder}
	}

	collections := stringSlice(cfg.Config["collections"])
	if len(collections) == 0 {
		collections = a.RAGCollections
	}
	if len(collections) == 0 {
		return plugins.ToolResult{Placeholder: placeholder}
	}

	topK := intField(cfg.Config, "top_k", a.RAGTopK)
	if topK <= 0 {
		topK = defaultRAGTopK
	}
	threshold := cfg.Config["threshold"]
	thresholdVal := defaultRAGThreshold
	if f, ok := threshold.(float64); ok {
		thresholdVal = f
	}
	pluginName := stringField(cfg.Config, "query_plugin")

	serverURL, token, err := t.resolveConfig(ctx, a)
	if err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("resolve kb config: %v", err)}
	}
	if serverURL == "" {
		return plugins.ToolResult{Placeholder: placeholder, Error: "no knowledge base server configured"}
	}
	client := t.newClient(serverURL, token)

	var chunks []string
	var sources []plugins.Source
	for _, collection := range collections {
		resp, err := client.Query(ctx, collection, kb.QueryRequest{
			QueryText:    query,
			TopK:         topK,
			Threshold:    thresholdVal,
			PluginParams: map[string]any{},
		}, pluginName)
		if err != nil {
			t.log.Warn("kb collection query failed, skipping", "collection", collection, "error", err)
			continue
		}
		for _, doc := range resp.Documents {
			chunks = append(chunks, doc.Data)
			sources = append(sources, plugins.Source{
				Title:       doc.Metadata.DisplayTitle(),
				URL:         client.ResolveSourceURL(doc.Metadata),
				Similarity:  doc.Similarity,
				ChunkIndex:  doc.Metadata.ChunkIndex,
				Page:        doc.Metadata.Page,
				OriginalURL: client.ResolveOriginalURL(doc.Metadata),
				MarkdownURL: client.MarkdownURL(doc.Metadata),
			})
		}
	}

	if len(chunks) == 0 {
		return plugins.ToolResult{Placeholder: placeholder}
	}

	return plugins.ToolResult{
		Placeholder: placeholder,
		Content:     strings.Join(chunks, "\n\n"),
		Sources:     sources,
	}
}
