package promptprocessor

import (
	"context"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// SimpleAugment is the plainest legacy prompt processor (spec §4.6): it
// fills {user_input} and {context} in the assistant's prompt template
// and leaves everything else untouched.
type SimpleAugment struct{}

func (SimpleAugment) Name() string { return "simple_augment" }

// Process implements plugins.PromptProcessor.
func (SimpleAugment) Process(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, ragContext string) ([]plugins.Message, error) {
	messages := req.Messages
	if len(messages) == 0 {
		return messages, nil
	}

	out := leadingMessages(a, messages)
	last := messages[len(messages)-1]

	if a.PromptTemplate == "" {
		return append(out, last), nil
	}

	userInput := extractUserInputText(last.Content)
	augmented := fillWrapped(a.PromptTemplate, "{user_input}", userInput)
	augmented = fillWrapped(augmented, "{context}", ragContext)

	out = append(out, buildAugmentedLastMessage(last, augmented, a.Metadata.Capabilities.Vision))
	return out, nil
}
