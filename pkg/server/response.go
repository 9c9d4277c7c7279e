package server

import (
	"encoding/json"
	"errors"
	"net/http"

	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// completionResponse is the non-streaming OpenAI-compatible response
// body, with the LAMB-specific sources array spliced on top (spec §6.1
// "a top-level sources array").
type completionResponse struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []responseChoice `json:"choices"`
	Usage   usage            `json:"usage"`
	ChatID  string           `json:"chat_id,omitempty"`
	Sources []plugins.Source `json:"sources,omitempty"`
}

type responseChoice struct {
	Index        int             `json:"index"`
	Message      responseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type responseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// streamChunk is one SSE frame of a streaming response (spec §4.7
// "Streaming contract").
type streamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
}

type streamChoice struct {
	Index        int          `json:"index"`
	Delta        deltaMessage `json:"delta"`
	FinishReason *string      `json:"finish_reason"`
}

type deltaMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// sourcesFrame is the initial out-of-band frame carrying retrieval
// citations ahead of the text deltas (spec §6.1 "sources either as an
// initial frame").
type sourcesFrame struct {
	Sources []plugins.Source `json:"sources"`
}

// statusForKind maps the classified error taxonomy onto the status-code
// table in spec §7. NotFound covers both "doesn't exist" and "chat
// ownership conflict" deliberately — pkg/persistence already resolved
// that ambiguity in favor of never letting a caller distinguish the two
// (anti-probing), so this mapping stays consistent with that decision
// rather than introducing a separate 409 for the same classification.
func statusForKind(kind lambcoreerrors.Kind) int {
	switch kind {
	case lambcoreerrors.Unauthenticated:
		return http.StatusUnauthorized
	case lambcoreerrors.AccountDisabled, lambcoreerrors.PermissionDenied:
		return http.StatusForbidden
	case lambcoreerrors.NotFound:
		return http.StatusNotFound
	case lambcoreerrors.ValidationError:
		return http.StatusBadRequest
	case lambcoreerrors.UpstreamUnavailable:
		return http.StatusBadGateway
	default:
		// ConfigError, PluginNotFound, ToolFailed, ProviderAuthError,
		// IterationBudgetExceeded, Internal: all unmappable connector/
		// configuration failures surface as 500 (spec §7 "500 unmappable
		// connector errors"); none of these are safe to expose as a more
		// specific client-actionable code.
		return http.StatusInternalServerError
	}
}

// writeError renders a classified error as the shared §7 JSON error
// envelope, mirroring pkg/auth's writeAuthError so every error path in
// the completion API has the same body shape regardless of which layer
// raised it.
func writeError(w http.ResponseWriter, err error) {
	kind := lambcoreerrors.KindOf(err)
	status := statusForKind(kind)
	if kind == lambcoreerrors.AccountDisabled {
		w.Header().Set("X-Account-Status", "disabled")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    string(kind),
			"message": safeMessage(err),
		},
	})
}

// safeMessage never surfaces an unclassified error's raw text, which may
// carry a provider credential or an internal path (spec §7 "error
// responses never include provider credentials or tracebacks").
func safeMessage(err error) string {
	var e *lambcoreerrors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
