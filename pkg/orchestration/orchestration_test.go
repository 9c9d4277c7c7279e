package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	lamberr "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

type echoTool struct {
	placeholder string
	content     string
	errMsg      string
}

func (e echoTool) Declaration() plugins.ToolDeclaration {
	return plugins.ToolDeclaration{Name: "echo", Placeholder: e.placeholder}
}

func (e echoTool) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) plugins.ToolResult {
	return plugins.ToolResult{Placeholder: e.placeholder, Content: e.content, Error: e.errMsg,
		Sources: []plugins.Source{{Title: e.placeholder + "-source"}}}
}

func baseRequest(userText string) plugins.OrchestrationRequest {
	return plugins.OrchestrationRequest{
		Messages: []plugins.Message{
			{Role: "user", Content: userText},
		},
	}
}

func TestParallel_NoEnabledTools_ReturnsPlaceholderMessage(t *testing.T) {
	regs := plugins.NewRegistries()
	o := NewParallel(regs)

	a := assistant.Assistant{Name: "tutor", PromptTemplate: "{context}\n{user_input}"}
	res, err := o.Execute(context.Background(), baseRequest("hi"), a, nil, false)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	require.Contains(t, res.Messages[0].Content, "No tools configured")
}

func TestParallel_FillsPlaceholderAndAggregatesSources(t *testing.T) {
	regs := plugins.NewRegistries()
	require.NoError(t, regs.Tools.Register("simple_rag", echoTool{placeholder: "context", content: "doc text"}))

	a := assistant.Assistant{
		Name:           "tutor",
		PromptTemplate: "Use this: {context}\n\n{user_input}",
		Metadata:       assistant.Metadata{Orchestrator: "parallel"},
	}
	tools := []assistant.ToolConfig{{Plugin: "simple_rag", Placeholder: "context", Enabled: true}}

	o := NewParallel(regs)
	res, err := o.Execute(context.Background(), baseRequest("What is Go?"), a, tools, false)
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	last := res.Messages[len(res.Messages)-1]
	require.Contains(t, last.Content, "doc text")
	require.Contains(t, last.Content, "What is Go?")
	require.NotContains(t, last.Content, "{context}")
	require.NotContains(t, last.Content, "{user_input}")
}

func TestParallel_UnregisteredToolIsSkippedNotFailed(t *testing.T) {
	regs := plugins.NewRegistries()
	a := assistant.Assistant{PromptTemplate: "{context}\n{user_input}"}
	tools := []assistant.ToolConfig{{Plugin: "missing", Placeholder: "context", Enabled: true}}

	o := NewParallel(regs)
	res, err := o.Execute(context.Background(), baseRequest("hi"), a, tools, false)
	require.NoError(t, err)
	require.NotContains(t, res.Messages[len(res.Messages)-1].Content, "{context}")
}

func TestParallel_VerboseModeBuildsReport(t *testing.T) {
	regs := plugins.NewRegistries()
	require.NoError(t, regs.Tools.Register("simple_rag", echoTool{placeholder: "context", content: "doc text"}))
	a := assistant.Assistant{Name: "tutor", PromptTemplate: "{context}\n{user_input}"}
	tools := []assistant.ToolConfig{{Plugin: "simple_rag", Placeholder: "context", Enabled: true}}

	o := NewParallel(regs)
	res, err := o.Execute(context.Background(), baseRequest("hi"), a, tools, true)
	require.NoError(t, err)
	require.Contains(t, res.VerboseReport, "Orchestration Report")
	require.Contains(t, res.VerboseReport, "simple_rag")
}

func TestSequential_ChainsTemplateAcrossTools(t *testing.T) {
	regs := plugins.NewRegistries()
	require.NoError(t, regs.Tools.Register("retrieve", echoTool{placeholder: "context", content: "raw docs"}))
	require.NoError(t, regs.Tools.Register("summarize", echoTool{placeholder: "summary", content: "short summary"}))

	a := assistant.Assistant{
		PromptTemplate: "{context}\n{summary}\n{user_input}",
	}
	tools := []assistant.ToolConfig{
		{Plugin: "retrieve", Placeholder: "context", Enabled: true},
		{Plugin: "summarize", Placeholder: "summary", Enabled: true},
	}

	o := NewSequential(regs)
	res, err := o.Execute(context.Background(), baseRequest("hi"), a, tools, false)
	require.NoError(t, err)
	last := res.Messages[len(res.Messages)-1]
	require.Contains(t, last.Content, "raw docs")
	require.Contains(t, last.Content, "short summary")
}

func TestSequential_PreservesDeclaredOrderEvenIfToolsMapIsUnordered(t *testing.T) {
	regs := plugins.NewRegistries()
	var order []string
	require.NoError(t, regs.Tools.Register("first", orderTrackingTool{name: "first", placeholder: "a", order: &order}))
	require.NoError(t, regs.Tools.Register("second", orderTrackingTool{name: "second", placeholder: "b", order: &order}))

	a := assistant.Assistant{PromptTemplate: "{a}{b}{user_input}"}
	tools := []assistant.ToolConfig{
		{Plugin: "first", Placeholder: "a", Enabled: true},
		{Plugin: "second", Placeholder: "b", Enabled: true},
	}

	o := NewSequential(regs)
	_, err := o.Execute(context.Background(), baseRequest("hi"), a, tools, false)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, order)
}

type orderTrackingTool struct {
	name        string
	placeholder string
	order       *[]string
}

func (o orderTrackingTool) Declaration() plugins.ToolDeclaration {
	return plugins.ToolDeclaration{Name: o.name, Placeholder: o.placeholder}
}

func (o orderTrackingTool) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) plugins.ToolResult {
	*o.order = append(*o.order, o.name)
	return plugins.ToolResult{Placeholder: o.placeholder, Content: o.name}
}

func TestSequential_OnErrorFailAbortsOrchestration(t *testing.T) {
	regs := plugins.NewRegistries()
	require.NoError(t, regs.Tools.Register("broken", echoTool{placeholder: "context", errMsg: "boom"}))

	a := assistant.Assistant{PromptTemplate: "{context}\n{user_input}"}
	tools := []assistant.ToolConfig{{Plugin: "broken", Placeholder: "context", Enabled: true, OnError: assistant.OnErrorFail}}

	o := NewSequential(regs)
	_, err := o.Execute(context.Background(), baseRequest("hi"), a, tools, false)
	require.Error(t, err)
	require.Equal(t, lamberr.ToolFailed, lamberr.KindOf(err))
}

func TestSequential_OnErrorSkipContinuesWithContent(t *testing.T) {
	regs := plugins.NewRegistries()
	require.NoError(t, regs.Tools.Register("broken", echoTool{placeholder: "context", content: "partial", errMsg: "boom"}))

	a := assistant.Assistant{PromptTemplate: "{context}\n{user_input}"}
	tools := []assistant.ToolConfig{{Plugin: "broken", Placeholder: "context", Enabled: true}}

	o := NewSequential(regs)
	res, err := o.Execute(context.Background(), baseRequest("hi"), a, tools, false)
	require.NoError(t, err)
	require.Contains(t, res.Messages[len(res.Messages)-1].Content, "partial")
}
