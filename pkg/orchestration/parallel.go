package orchestration

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/logger"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// Parallel is the parallel orchestrator (spec §4.5 "Parallel
// orchestrator"): every enabled tool runs concurrently against the same
// request, blind to each other's output.
type Parallel struct {
	registries *plugins.Registries
	log        *slog.Logger
}

// NewParallel builds a Parallel orchestrator bound to the process-wide
// plugin registries.
func NewParallel(registries *plugins.Registries) *Parallel {
	return &Parallel{registries: registries, log: logger.With("orchestration.parallel")}
}

func (p *Parallel) Name() string        { return "parallel" }
func (p *Parallel) Description() string { return "runs all enabled tools concurrently" }

// Execute implements plugins.Orchestrator.
func (p *Parallel) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, tools []assistant.ToolConfig, verbose bool) (plugins.OrchestrationResult, error) {
	enabled := filterEnabled(tools)
	if len(enabled) == 0 {
		return plugins.OrchestrationResult{
			Messages: []plugins.Message{{Role: "assistant", Content: "No tools configured for this assistant."}},
		}, nil
	}

	results := make([]plugins.ToolResult, len(enabled))
	ran := make([]bool, len(enabled))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, cfg := range enabled {
		i, cfg := i, cfg
		tool, err := p.registries.GetTool(cfg.Plugin)
		if err != nil {
			p.log.Warn("enabled tool plugin not registered, skipping", "plugin", cfg.Plugin)
			continue
		}
		group.Go(func() error {
			results[i] = tool.Execute(groupCtx, req, a, cfg)
			ran[i] = true
			if results[i].Error != "" {
				p.log.Debug("tool returned error", "plugin", cfg.Plugin, "error", results[i].Error)
			}
			return nil
		})

		if req.StreamCallback != nil {
			req.StreamCallback("running " + cfg.Plugin)
		}
	}
	_ = group.Wait() // tool goroutines never return a non-nil error; failures live in ToolResult.Error

	toolResults := map[string]plugins.ToolResult{}
	var sources []plugins.Source
	template := a.PromptTemplate

	for i, cfg := range enabled {
		if !ran[i] {
			continue
		}
		r := results[i]
		toolResults[r.Placeholder] = r
		sources = append(sources, r.Sources...)
		template = fillPlaceholder(template, cfg.Placeholder, r.Content)
	}

	messages, verboseReport := finalizeMessages(req, a, template, toolResults, enabled, p.Name(), verbose)

	return plugins.OrchestrationResult{
		Messages:      messages,
		Sources:       sources,
		ToolResults:   toolResults,
		VerboseReport: verboseReport,
	}, nil
}

func filterEnabled(tools []assistant.ToolConfig) []assistant.ToolConfig {
	enabled := make([]assistant.ToolConfig, 0, len(tools))
	for _, t := range tools {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	return enabled
}

// finalizeMessages applies the shared last steps of both orchestrators:
// erase leftover placeholders, fill {user_input}, rebuild the last
// message (vision-aware), and build the verbose report if requested.
func finalizeMessages(req plugins.OrchestrationRequest, a assistant.Assistant, template string, toolResults map[string]plugins.ToolResult, enabled []assistant.ToolConfig, orchestratorName string, verbose bool) ([]plugins.Message, string) {
	if len(req.Messages) == 0 {
		return buildFinalMessages(req, a, template), ""
	}

	last := req.Messages[len(req.Messages)-1]
	userInput := extractUserInput(last.Content)

	filled := fillUserInput(template, userInput)
	filled = stripLeftoverPlaceholders(filled)

	newContent := rebuildLastMessageContent(last.Content, filled, a.Metadata.Capabilities.Vision)
	messages := buildFinalMessages(req, a, newContent)

	var report string
	if verbose {
		report = buildVerboseReport(orchestratorName, a, last, enabled, toolResults, messages)
	}
	return messages, report
}
