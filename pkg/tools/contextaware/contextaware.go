// Package contextaware implements the conversation-aware RAG tool
// variants (spec §4.4 "context_aware_rag / hierarchical_rag"): both
// extend simple_rag by replacing "the last user message" with a query
// the small-fast-model distills from the whole recent conversation,
// falling back to the last user message whenever the small-fast-model
// is unconfigured or the call fails.
package contextaware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/kb"
	"github.com/lamb-project/lamb-core/pkg/orgconfig"
	"github.com/lamb-project/lamb-core/pkg/plugins"
	"github.com/lamb-project/lamb-core/pkg/smallfastmodel"
)

// KBConfigResolver resolves the KB server URL/token for an assistant's
// organization (mirrors pkg/tools.KBConfigResolver — duplicated rather
// than imported to keep the two tool families independently wirable).
type KBConfigResolver func(ctx context.Context, a assistant.Assistant) (serverURL, token string, err error)

// SmallFastModelResolver resolves the organization's small-fast-model
// settings for an assistant.
type SmallFastModelResolver func(ctx context.Context, a assistant.Assistant) (orgconfig.SmallFastModelConfig, error)

const (
	defaultTopK          = 3
	maxRecentMessages    = 10
	maxMessageChars      = 500
	queryOptimizationSys = `You are a query optimization assistant for a RAG (Retrieval-Augmented Generation) system.

Your task is to analyze the conversation history and generate an optimal search query that will retrieve the most relevant documents from a knowledge base.

Guidelines:
1. Consider the full conversation context, not just the last message
2. Identify the core information need
3. Include relevant keywords and concepts
4. If the conversation references previous topics, incorporate them
5. Make the query specific and focused
6. Keep the query concise (1-3 sentences max)
7. Return ONLY the optimized query, nothing else`
)

// base holds the dependencies and query-optimization logic shared by
// ContextAwareRag and HierarchicalRag; each embeds it and supplies its
// own KB query-plugin name.
type base struct {
	resolveKB  KBConfigResolver
	resolveSFM SmallFastModelResolver
	sfm        *smallfastmodel.Helper
	newClient  func(serverURL, token string) *kb.Client
	log        *slog.Logger
}

func newBase(resolveKB KBConfigResolver, resolveSFM SmallFastModelResolver, component string) base {
	return base{
		resolveKB:  resolveKB,
		resolveSFM: resolveSFM,
		sfm:        smallfastmodel.New(),
		newClient:  kb.New,
		log:        slog.Default().With("component", component),
	}
}

// optimalQuery generates a retrieval query from the full conversation,
// degrading gracefully to the last user message at every failure point
// (unconfigured small-fast-model, resolver error, or invocation error).
func (b base) optimalQuery(ctx context.Context, messages []plugins.Message, a assistant.Assistant) string {
	sfmCfg, err := b.resolveSFM(ctx, a)
	if err != nil || !smallfastmodel.IsConfigured(sfmCfg) {
		if err != nil {
			b.log.Info("small-fast-model config unavailable, using last user message", "error", err)
		} else {
			b.log.Info("small-fast-model not configured, using last user message")
		}
		return lastUserMessageText(messages)
	}

	prompt := buildOptimizationPrompt(messages)
	reply, err := b.sfm.Invoke(ctx, sfmCfg, []smallfastmodel.Message{
		{Role: "system", Content: queryOptimizationSys},
		{Role: "user", Content: prompt},
	})
	if err != nil || reply == "" {
		if err != nil {
			b.log.Warn("query optimization failed, falling back to last user message", "error", err)
		} else {
			b.log.Warn("empty query optimization response, falling back to last user message")
		}
		return lastUserMessageText(messages)
	}
	return reply
}

// buildOptimizationPrompt condenses the last maxRecentMessages turns,
// each truncated to maxMessageChars, into the user prompt the
// small-fast-model sees.
func buildOptimizationPrompt(messages []plugins.Message) string {
	recent := messages
	if len(recent) > maxRecentMessages {
		recent = recent[len(recent)-maxRecentMessages:]
	}

	var lines []string
	for _, m := range recent {
		text := messageText(m)
		if r := []rune(text); len(r) > maxMessageChars {
			text = string(r[:maxMessageChars]) + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(m.Role), text))
	}

	return "CONVERSATION:\n" + strings.Join(lines, "\n") + "\n\nOPTIMAL QUERY:"
}

func messageText(m plugins.Message) string {
	switch v := m.Content.(type) {
	case string:
		return v
	case []plugins.ContentPart:
		var parts []string
		for _, p := range v {
			if p.Type == "text" && p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func lastUserMessageText(messages []plugins.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messageText(messages[i])
		}
	}
	return ""
}

// queryCollections runs the optimized query against every configured
// collection through the given KB query plugin, aggregating content and
// sources exactly as simple_rag does; a per-collection failure is
// logged and skipped.
func (b base) queryCollections(ctx context.Context, a assistant.Assistant, cfg assistant.ToolConfig, query, queryPlugin string) plugins.ToolResult {
	placeholder := cfg.Placeholder
	if placeholder == "" {
		placeholder = "context"
	}

	collections := stringSlice(cfg.Config["collections"])
	if len(collections) == 0 {
		collections = a.RAGCollections
	}
	if len(collections) == 0 || query == "" {
		return plugins.ToolResult{Placeholder: placeholder}
	}

	topK := intField(cfg.Config, "top_k", a.RAGTopK)
	if topK <= 0 {
		topK = defaultTopK
	}

	serverURL, token, err := b.resolveKB(ctx, a)
	if err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("resolve kb config: %v", err)}
	}
	if serverURL == "" {
		return plugins.ToolResult{Placeholder: placeholder, Error: "no knowledge base server configured"}
	}
	client := b.newClient(serverURL, token)

	var chunks []string
	var sources []plugins.Source
	for _, collection := range collections {
		resp, err := client.Query(ctx, collection, kb.QueryRequest{
			QueryText:    query,
			TopK:         topK,
			Threshold:    0.0,
			PluginParams: map[string]any{},
		}, queryPlugin)
		if err != nil {
			b.log.Warn("kb collection query failed, skipping", "collection", collection, "error", err)
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
	return plugins.ToolResult{Placeholder: placeholder, Content: strings.Join(chunks, "\n\n"), Sources: sources}
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func intField(cfg map[string]any, key string, def int) int {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
