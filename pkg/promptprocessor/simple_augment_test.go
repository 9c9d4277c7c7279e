package promptprocessor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

func TestSimpleAugment_FillsUserInputAndContext(t *testing.T) {
	a := assistant.Assistant{
		SystemPrompt:   "Be concise.",
		PromptTemplate: "Context:\n{context}\n\nQuestion: {user_input}",
	}
	req := plugins.OrchestrationRequest{
		Messages: []plugins.Message{{Role: "user", Content: "what is go?"}},
	}

	out, err := SimpleAugment{}.Process(context.Background(), req, a, "go is a language")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "system", out[0].Role)
	require.Equal(t, "Be concise.", out[0].Content)
	require.Contains(t, out[1].Content, "go is a language")
	require.Contains(t, out[1].Content, "what is go?")
}

func TestSimpleAugment_EmptyContextErasesPlaceholder(t *testing.T) {
	a := assistant.Assistant{PromptTemplate: "{context}{user_input}"}
	req := plugins.OrchestrationRequest{
		Messages: []plugins.Message{{Role: "user", Content: "hi"}},
	}

	out, err := SimpleAugment{}.Process(context.Background(), req, a, "")
	require.NoError(t, err)
	require.Equal(t, "\n\nhi\n\n", out[0].Content)
}

func TestSimpleAugment_NoTemplateUsesOriginalMessage(t *testing.T) {
	a := assistant.Assistant{}
	req := plugins.OrchestrationRequest{
		Messages: []plugins.Message{{Role: "user", Content: "hi"}},
	}

	out, err := SimpleAugment{}.Process(context.Background(), req, a, "ctx")
	require.NoError(t, err)
	require.Equal(t, "hi", out[0].Content)
}

func TestSimpleAugment_VisionPreservesImageParts(t *testing.T) {
	a := assistant.Assistant{
		PromptTemplate: "{user_input}",
		Metadata:       assistant.Metadata{Capabilities: assistant.Capabilities{Vision: true}},
	}
	content := []plugins.ContentPart{
		{Type: "text", Text: "describe"},
		{Type: "image_url", ImageURL: "https://x/y.png"},
	}
	req := plugins.OrchestrationRequest{
		Messages: []plugins.Message{{Role: "user", Content: content}},
	}

	out, err := SimpleAugment{}.Process(context.Background(), req, a, "")
	require.NoError(t, err)
	parts, ok := out[0].Content.([]plugins.ContentPart)
	require.True(t, ok)
	require.Len(t, parts, 2)
	require.Equal(t, "image_url", parts[1].Type)
}

func TestSimpleAugment_EmptyMessagesReturnsUnchanged(t *testing.T) {
	a := assistant.Assistant{PromptTemplate: "{user_input}"}
	out, err := SimpleAugment{}.Process(context.Background(), plugins.OrchestrationRequest{}, a, "")
	require.NoError(t, err)
	require.Empty(t, out)
}
