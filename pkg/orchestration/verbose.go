package orchestration

import (
	"fmt"
	"strings"
	"time"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

const (
	userExcerptLimit    = 200
	contentPreviewLimit = 500
	finalPreviewLimit   = 300
	sourcesSummaryLimit = 10
)

// buildVerboseReport assembles the markdown verbose report attached to
// an orchestration result when verbose=true (spec §4.5 "Verbose mode").
func buildVerboseReport(orchestratorName string, a assistant.Assistant, lastMessage plugins.Message, enabled []assistant.ToolConfig, toolResults map[string]plugins.ToolResult, finalMessages []plugins.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Orchestration Report\n\n")
	fmt.Fprintf(&b, "- Orchestrator: %s\n", orchestratorName)
	fmt.Fprintf(&b, "- Assistant: %s\n", a.Name)
	fmt.Fprintf(&b, "- Timestamp: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	fmt.Fprintf(&b, "## User message\n\n%s\n\n", truncate(extractUserInput(lastMessage.Content), userExcerptLimit))

	fmt.Fprintf(&b, "## Tools\n\n")
	for _, cfg := range enabled {
		r, ran := toolResults[cfg.Placeholder]
		fmt.Fprintf(&b, "### %s\n", cfg.Plugin)
		fmt.Fprintf(&b, "- placeholder: `%s`\n", cfg.Placeholder)
		fmt.Fprintf(&b, "- enabled: %v\n", cfg.Enabled)
		fmt.Fprintf(&b, "- config: %v\n", cfg.Config)
		if ran {
			fmt.Fprintf(&b, "- content length: %d\n", len(r.Content))
			fmt.Fprintf(&b, "- content preview: %s\n", truncate(r.Content, contentPreviewLimit))
			if r.Error != "" {
				fmt.Fprintf(&b, "- error: %s\n", r.Error)
			}
		} else {
			fmt.Fprintf(&b, "- did not run (plugin not registered)\n")
		}
		b.WriteString("\n")
	}

	var allSources []plugins.Source
	for _, r := range toolResults {
		allSources = append(allSources, r.Sources...)
	}
	fmt.Fprintf(&b, "## Sources (%d total, showing up to %d)\n\n", len(allSources), sourcesSummaryLimit)
	for i, src := range allSources {
		if i >= sourcesSummaryLimit {
			break
		}
		fmt.Fprintf(&b, "- %s (%s)\n", src.Title, src.URL)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Final messages\n\n")
	for _, m := range finalMessages {
		fmt.Fprintf(&b, "- **%s**: %s\n", m.Role, truncate(extractUserInput(m.Content), finalPreviewLimit))
	}

	return b.String()
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
