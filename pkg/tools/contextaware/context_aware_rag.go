package contextaware

import (
	"context"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// ContextAwareRag extends simple_rag with full-conversation query
// optimization, querying the default KB query plugin (grounded on
// completions/rag/context_aware_rag.py).
type ContextAwareRag struct {
	base
}

// NewContextAwareRag builds a ContextAwareRag tool bound to its KB and
// small-fast-model config resolvers.
func NewContextAwareRag(resolveKB KBConfigResolver, resolveSFM SmallFastModelResolver) *ContextAwareRag {
	return &ContextAwareRag{base: newBase(resolveKB, resolveSFM, "tool.context_aware_rag")}
}

// Declaration describes context_aware_rag's configuration surface.
func (t *ContextAwareRag) Declaration() plugins.ToolDeclaration {
	return plugins.ToolDeclaration{
		Name:        "context_aware_rag",
		DisplayName: "Context-Aware Knowledge Base RAG",
		Placeholder: "context",
		Category:    "rag",
		ConfigSchema: map[string]any{
			"collections": "[]string",
			"top_k":       "int",
		},
	}
}

// Execute optimizes the retrieval query from the full conversation, then
// queries every configured collection with it.
func (t *ContextAwareRag) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) plugins.ToolResult {
	query := t.optimalQuery(ctx, req.Messages, a)
	return t.queryCollections(ctx, a, cfg, query, "")
}
