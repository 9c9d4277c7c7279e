package contextaware

import (
	"context"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/kb"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// HierarchicalRag extends ContextAwareRag's query optimization by always
// querying through the KB server's parent_child_query plugin, trading
// exact-chunk precision for structural context — better suited to
// "how many steps / list all X" style questions (grounded on
// completions/rag/hierarchical_rag.py).
type HierarchicalRag struct {
	base
}

// NewHierarchicalRag builds a HierarchicalRag tool bound to its KB and
// small-fast-model config resolvers.
func NewHierarchicalRag(resolveKB KBConfigResolver, resolveSFM SmallFastModelResolver) *HierarchicalRag {
	return &HierarchicalRag{base: newBase(resolveKB, resolveSFM, "tool.hierarchical_rag")}
}

// Declaration describes hierarchical_rag's configuration surface.
func (t *HierarchicalRag) Declaration() plugins.ToolDeclaration {
	return plugins.ToolDeclaration{
		Name:        "hierarchical_rag",
		DisplayName: "Hierarchical Knowledge Base RAG",
		Placeholder: "context",
		Category:    "rag",
		ConfigSchema: map[string]any{
			"collections": "[]string",
			"top_k":       "int",
		},
	}
}

// Execute optimizes the retrieval query, then queries every configured
// collection through the parent_child_query plugin.
func (t *HierarchicalRag) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) plugins.ToolResult {
	query := t.optimalQuery(ctx, req.Messages, a)
	return t.queryCollections(ctx, a, cfg, query, kb.ParentChildQuery)
}
