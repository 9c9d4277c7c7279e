// Package connectors holds the small amount of machinery shared by the
// per-provider connector packages (openai, openai_tools, anthropic,
// gemini, ollama): resolving an assistant owner's provider credentials
// through the Organization Config Resolver, and an approximate prompt
// token count for logging/usage (spec §4.7, §4.2).
package connectors

import (
	"context"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/lamb-project/lamb-core/pkg/orgconfig"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// ProviderConfigResolver resolves a named provider's credentials/defaults
// for the given assistant owner. Connectors take this as a constructor
// argument rather than an orgconfig.Resolver directly because resolving
// an owner's organization (pkg/orgconfig.Resolve) needs a store lookup
// the connector itself has no business holding — mirrors the
// KBConfigResolver/SmallFastModelResolver injection pattern used by
// pkg/tools and pkg/smallfastmodel.
type ProviderConfigResolver func(ctx context.Context, ownerEmail string) (orgconfig.ProviderConfig, error)

// MessageText extracts the plain-text content of a message, joining the
// text parts of a mixed-content message with a space. Non-text parts
// (image_url) are dropped; providers that support vision convert
// plugins.Message to their own wire shape directly rather than through
// this helper.
func MessageText(m plugins.Message) string {
	switch v := m.Content.(type) {
	case string:
		return v
	case []plugins.ContentPart:
		var parts []string
		for _, p := range v {
			if p.Type == "text" && p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

// tokensPerMessage is OpenAI's chat-format framing overhead per message
// (role/separator tokens), ported from
// pkg/utils.TokenCounter.CountMessages's documented constant.
const tokensPerMessage = 3

// EstimatePromptTokens approximates the prompt token count for a message
// list under the named model's encoding, for logging/usage accounting —
// not for truncation or billing. Falls back to the cl100k_base encoding
// when the model isn't recognized, and to a 4-characters-per-token
// estimate if no tiktoken encoding can be loaded at all.
func EstimatePromptTokens(model string, messages []plugins.Message) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		total := 0
		for _, m := range messages {
			total += (len(m.Role) + len(MessageText(m))) / 4
		}
		return total
	}

	total := 0
	for _, m := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(m.Role, nil, nil))
		total += len(enc.Encode(MessageText(m), nil, nil))
	}
	total += tokensPerMessage
	return total
}
