// Package orchestration implements the parallel and sequential
// orchestrators (spec §4.5): the multi-tool pipelines that fan out to
// enabled tool plugins and weave their output into an assistant's
// prompt template ahead of the connector call.
package orchestration

import (
	"regexp"
	"strings"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

var leftoverPlaceholder = regexp.MustCompile(`\{[a-z0-9_]+\}`)

// extractUserInput joins the text parts of a possibly-mixed message
// content value (spec §4.5 step 3: "if content is a mixed list, join
// the text fields").
func extractUserInput(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []plugins.ContentPart:
		var parts []string
		for _, p := range v {
			if p.Type == "text" {
				parts = append(parts, p.Text)
			}
		}
		return strings.Join(parts, "")
	default:
		return ""
	}
}

// fillPlaceholder replaces every occurrence of {placeholder} in template
// with content wrapped in blank lines, or an empty string when content
// is empty (spec §4.5 step 3).
func fillPlaceholder(template, placeholder, content string) string {
	token := "{" + placeholder + "}"
	replacement := ""
	if content != "" {
		replacement = "\n\n" + content + "\n\n"
	}
	return strings.ReplaceAll(template, token, replacement)
}

// fillUserInput replaces {user_input} the same way fillPlaceholder does.
func fillUserInput(template, userInput string) string {
	return strings.ReplaceAll(template, "{user_input}", "\n\n"+userInput+"\n\n")
}

// stripLeftoverPlaceholders erases any {word} token that survived tool
// substitution — a placeholder with no matching enabled tool (spec §4.5
// "a placeholder present but no matching tool: erased in the final
// cleanup step").
func stripLeftoverPlaceholders(template string) string {
	return leftoverPlaceholder.ReplaceAllString(template, "")
}

// rebuildLastMessageContent applies vision-capability-aware content
// rebuilding (spec §4.5 tie-break policy, last bullet): when capable of
// vision, non-text parts are preserved in order around the replaced text
// part; otherwise they are stripped.
func rebuildLastMessageContent(original any, newText string, visionCapable bool) any {
	parts, ok := original.([]plugins.ContentPart)
	if !ok {
		return newText
	}

	if !visionCapable {
		return newText
	}

	rebuilt := make([]plugins.ContentPart, 0, len(parts))
	textReplaced := false
	for _, p := range parts {
		if p.Type == "text" {
			if !textReplaced {
				rebuilt = append(rebuilt, plugins.ContentPart{Type: "text", Text: newText})
				textReplaced = true
			}
			continue
		}
		rebuilt = append(rebuilt, p)
	}
	if !textReplaced {
		rebuilt = append([]plugins.ContentPart{{Type: "text", Text: newText}}, rebuilt...)
	}
	return rebuilt
}

// buildFinalMessages assembles the outgoing message list per spec §4.5
// steps 1-2 and 4: system prompt (if any), history minus the last
// message, then the processed last message with its original role.
func buildFinalMessages(req plugins.OrchestrationRequest, a assistant.Assistant, processedContent any) []plugins.Message {
	var out []plugins.Message
	if a.SystemPrompt != "" {
		out = append(out, plugins.Message{Role: "system", Content: a.SystemPrompt})
	}

	if len(req.Messages) == 0 {
		return out
	}

	out = append(out, req.Messages[:len(req.Messages)-1]...)

	last := req.Messages[len(req.Messages)-1]
	out = append(out, plugins.Message{Role: last.Role, Content: processedContent})
	return out
}
