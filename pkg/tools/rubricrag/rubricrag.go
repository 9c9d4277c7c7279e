// Package rubricrag implements the rubric RAG tool: instead of a
// free-form knowledge-base query, it injects a single configured rubric
// as context for assessment-focused assistants (spec §12 supplemented
// feature 3, grounded on completions/rag/rubric_rag.py).
package rubricrag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// Level is one scoring tier within a rubric criterion.
type Level struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// Criterion is one graded dimension of a rubric.
type Criterion struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Levels      []Level `json:"levels"`
}

// Rubric is the assessment rubric a rubric_id resolves to.
type Rubric struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Criteria    []Criterion `json:"criteria"`
}

// Store is the narrow read interface rubricrag needs from the rubric
// persistence layer (pkg/store owns writes; rubric authoring/editing is
// not exposed through the completion pipeline, only lookup by id).
type Store interface {
	GetRubricByID(ctx context.Context, rubricID, ownerEmail string) (*Rubric, error)
}

const (
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

// RubricRag injects a configured rubric as tool output, in either
// markdown (default, human/LLM-readable) or raw JSON form.
type RubricRag struct {
	store Store
}

// New builds a RubricRag tool bound to a rubric store.
func New(store Store) *RubricRag {
	return &RubricRag{store: store}
}

// configSchema is rubric_rag's typed configuration surface, reflected
// into ConfigSchema below rather than hand-maintained as a parallel map.
type configSchema struct {
	RubricID string `json:"rubric_id" jsonschema:"required,description=ID of the rubric to inject as context"`
	Format   string `json:"format,omitempty" jsonschema:"enum=markdown,enum=json,description=Output format; defaults to markdown"`
}

// Declaration describes rubric_rag's configuration surface.
func (t *RubricRag) Declaration() plugins.ToolDeclaration {
	return plugins.ToolDeclaration{
		Name:         "rubric_rag",
		DisplayName:  "Rubric Context",
		Placeholder:  "context",
		Category:     "rag",
		ConfigSchema: plugins.SchemaFor(configSchema{}),
	}
}

// Execute resolves the configured rubric and formats it as context. A
// missing rubric_id degrades to an empty result rather than a hard error,
// matching the original processor's behavior of silently producing no
// context when misconfigured; a rubric that cannot be loaded or found
// yields a result with Error set.
func (t *RubricRag) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) plugins.ToolResult {
	placeholder := cfg.Placeholder
	if placeholder == "" {
		placeholder = "context"
	}

	rubricID := stringField(cfg.Config, "rubric_id")
	if rubricID == "" {
		return plugins.ToolResult{Placeholder: placeholder}
	}

	format := stringField(cfg.Config, "format")
	if format != formatMarkdown && format != formatJSON {
		format = formatMarkdown
	}

	if a.OwnerEmail == "" {
		return plugins.ToolResult{Placeholder: placeholder, Error: "assistant has no owner"}
	}

	rubric, err := t.store.GetRubricByID(ctx, rubricID, a.OwnerEmail)
	if err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("load rubric %s: %v", rubricID, err)}
	}
	if rubric == nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("rubric %s not found or not accessible", rubricID)}
	}

	var content string
	if format == formatJSON {
		b, err := json.MarshalIndent(rubric, "", "  ")
		if err != nil {
			return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("encode rubric %s: %v", rubricID, err)}
		}
		content = string(b)
	} else {
		content = renderMarkdown(*rubric)
	}

	return plugins.ToolResult{
		Placeholder: placeholder,
		Content:     content,
		Sources: []plugins.Source{{
			Title: rubric.Title,
			URL:   "",
		}},
	}
}

func renderMarkdown(r Rubric) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", r.Description)
	}
	for _, c := range r.Criteria {
		fmt.Fprintf(&b, "## %s\n\n", c.Name)
		if c.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", c.Description)
		}
		if len(c.Levels) > 0 {
			b.WriteString("| Level | Score | Description |\n|---|---|---|\n")
			for _, lvl := range c.Levels {
				fmt.Fprintf(&b, "| %s | %g | %s |\n", lvl.Name, lvl.Score, lvl.Description)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func stringField(cfg map[string]any, key string) string {
	if s, ok := cfg[key].(string); ok {
		return s
	}
	return ""
}
