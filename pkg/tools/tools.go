// Package tools implements the built-in tool plugins (spec §4.4):
// simple_rag, the context-aware/hierarchical RAG variants, rubric RAG,
// the MCP bridge, and the weather example tool.
package tools

import (
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// lastUserMessageText extracts the most recent user-role message's text,
// tolerating mixed-content messages the same way the orchestrator
// pipeline does (spec §4.4 "extract the last user message from request").
func lastUserMessageText(messages []plugins.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		switch v := messages[i].Content.(type) {
		case string:
			return v
		case []plugins.ContentPart:
			for _, p := range v {
				if p.Type == "text" && p.Text != "" {
					return p.Text
				}
			}
		}
	}
	return ""
}

// stringSlice reads a []string out of a loosely-typed tool config value
// (JSON-decoded config maps carry []any, not []string).
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

// intField reads an int out of a tool config map, tolerating the
// float64 JSON numbers produce, and falling back to def when absent or
// the wrong type.
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

// stringField reads a string out of a tool config map, defaulting to "".
func stringField(cfg map[string]any, key string) string {
	if s, ok := cfg[key].(string); ok {
		return s
	}
	return ""
}
