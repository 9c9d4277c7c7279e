package orchestration

import (
	"context"
	"fmt"
	"log/slog"

	lamberr "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/logger"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// Sequential is the sequential orchestrator (spec §4.5 "Sequential
// orchestrator"): each tool sees the partially-filled template produced
// by earlier tools, run strictly in declared order.
type Sequential struct {
	registries *plugins.Registries
	log        *slog.Logger
}

// NewSequential builds a Sequential orchestrator bound to the
// process-wide plugin registries.
func NewSequential(registries *plugins.Registries) *Sequential {
	return &Sequential{registries: registries, log: logger.With("orchestration.sequential")}
}

func (s *Sequential) Name() string { return "sequential" }
func (s *Sequential) Description() string {
	return "runs enabled tools one at a time, chaining template context"
}

// Execute implements plugins.Orchestrator.
func (s *Sequential) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, tools []assistant.ToolConfig, verbose bool) (plugins.OrchestrationResult, error) {
	enabled := filterEnabled(tools)
	if len(enabled) == 0 {
		return plugins.OrchestrationResult{
			Messages: []plugins.Message{{Role: "assistant", Content: "No tools configured for this assistant."}},
		}, nil
	}

	currentTemplate := a.PromptTemplate
	toolResults := map[string]plugins.ToolResult{}
	var sources []plugins.Source

	for _, cfg := range enabled {
		tool, err := s.registries.GetTool(cfg.Plugin)
		if err != nil {
			s.log.Warn("enabled tool plugin not registered, skipping", "plugin", cfg.Plugin)
			continue
		}

		augmented := req
		if augmented.Metadata == nil {
			augmented.Metadata = map[string]any{}
		} else {
			augmented.Metadata = cloneMetadata(req.Metadata)
		}
		augmented.Metadata["_current_context"] = currentTemplate
		augmented.Metadata["_accumulated_results"] = cloneResults(toolResults)

		if req.StreamCallback != nil {
			req.StreamCallback("running " + cfg.Plugin)
		}

		result := tool.Execute(ctx, augmented, a, cfg)
		toolResults[result.Placeholder] = result
		sources = append(sources, result.Sources...)

		if result.Error != "" {
			s.log.Debug("tool returned error", "plugin", cfg.Plugin, "error", result.Error)
			if cfg.EffectiveOnError() == assistant.OnErrorFail {
				return plugins.OrchestrationResult{}, lamberr.Wrap(lamberr.ToolFailed,
					fmt.Sprintf("tool %q failed and on_error is \"fail\"", cfg.Plugin), fmt.Errorf("%s", result.Error))
			}
		}

		currentTemplate = fillPlaceholder(currentTemplate, cfg.Placeholder, result.Content)
	}

	messages, verboseReport := finalizeMessages(req, a, currentTemplate, toolResults, enabled, s.Name(), verbose)

	return plugins.OrchestrationResult{
		Messages:      messages,
		Sources:       sources,
		ToolResults:   toolResults,
		VerboseReport: verboseReport,
	}, nil
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneResults(m map[string]plugins.ToolResult) map[string]plugins.ToolResult {
	out := make(map[string]plugins.ToolResult, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
