// Package promptprocessor implements the legacy single-slot prompt
// processors (spec §4.6): simple_augment and moodle_augment. Both fill a
// fixed prompt template ahead of the connector call, the pipeline LAMB
// ran before orchestrators and multi-tool assistants existed, and which
// it still supports for assistants whose metadata carries no
// orchestrator name (assistant.Metadata.MultiToolMode() == false).
package promptprocessor

import (
	"strings"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// extractUserInputText joins the text parts of a message's content,
// space-separated, matching the legacy pipeline's " ".join(text_parts).
func extractUserInputText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []plugins.ContentPart:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if p.Type == "text" {
				parts = append(parts, p.Text)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

// fillWrapped replaces token in s with content wrapped in blank lines, or
// an empty string when content is empty (spec §4.6 "template filling").
func fillWrapped(s, token, content string) string {
	if content == "" {
		return strings.ReplaceAll(s, token, "")
	}
	return strings.ReplaceAll(s, token, "\n\n"+content+"\n\n")
}

// fillLiteral replaces token in s with value verbatim, no blank-line
// wrapping — used for {moodle_user} and {moodle_info_for_user}.
func fillLiteral(s, token, value string) string {
	return strings.ReplaceAll(s, token, value)
}

// leadingMessages returns the system prompt (if any) followed by every
// message but the last one — the part of the conversation the legacy
// pipeline passes through unmodified (spec §4.6 step 1-2).
func leadingMessages(a assistant.Assistant, messages []plugins.Message) []plugins.Message {
	var out []plugins.Message
	if a.SystemPrompt != "" {
		out = append(out, plugins.Message{Role: "system", Content: a.SystemPrompt})
	}
	if len(messages) > 1 {
		out = append(out, messages[:len(messages)-1]...)
	}
	return out
}

// buildAugmentedLastMessage replaces the last message's content with
// text produced from a prompt template, preserving non-text content
// parts when the assistant is vision-capable (spec §4.6, same
// tie-break policy as the orchestrator pipeline's §4.5).
func buildAugmentedLastMessage(last plugins.Message, augmentedText string, visionCapable bool) plugins.Message {
	parts, ok := last.Content.([]plugins.ContentPart)
	if !ok || !visionCapable {
		return plugins.Message{Role: last.Role, Content: augmentedText}
	}

	rebuilt := make([]plugins.ContentPart, 0, len(parts)+1)
	rebuilt = append(rebuilt, plugins.ContentPart{Type: "text", Text: augmentedText})
	for _, p := range parts {
		if p.Type != "text" {
			rebuilt = append(rebuilt, p)
		}
	}
	return plugins.Message{Role: last.Role, Content: rebuilt}
}
