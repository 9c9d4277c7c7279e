package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

func TestCompletionRequest_ValidateRejectsEmptyModel(t *testing.T) {
	req := CompletionRequest{Messages: []wireMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}}}
	err := req.Validate()
	require.True(t, lambcoreerrors.Is(err, lambcoreerrors.ValidationError))
}

func TestCompletionRequest_ValidateRejectsNoMessages(t *testing.T) {
	req := CompletionRequest{Model: "lamb_assistant.1"}
	err := req.Validate()
	require.True(t, lambcoreerrors.Is(err, lambcoreerrors.ValidationError))
}

func TestCompletionRequest_ValidateRejectsEmptyRole(t *testing.T) {
	req := CompletionRequest{
		Model:    "lamb_assistant.1",
		Messages: []wireMessage{{Role: "", Content: json.RawMessage(`"hi"`)}},
	}
	err := req.Validate()
	require.True(t, lambcoreerrors.Is(err, lambcoreerrors.ValidationError))
}

func TestCompletionRequest_ToPluginMessages_DecodesVisionParts(t *testing.T) {
	raw := json.RawMessage(`[{"type":"text","text":"what is this?"},{"type":"image_url","image_url":{"url":"https://example.com/a.png"}}]`)
	req := CompletionRequest{Messages: []wireMessage{{Role: "user", Content: raw}}}

	messages, err := req.ToPluginMessages()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	parts, ok := messages[0].Content.([]plugins.ContentPart)
	require.True(t, ok)
	require.Len(t, parts, 2)
	require.Equal(t, "what is this?", parts[0].Text)
	require.Equal(t, "https://example.com/a.png", parts[1].ImageURL)
}

func TestExtractOpenWebUIHeaders_MatchesPrefixCaseInsensitivelyAndLowercasesKeys(t *testing.T) {
	header := map[string][]string{
		"X-OpenWebUI-User-Email": {"alice@example.com"},
		"Content-Type":           {"application/json"},
	}
	got := extractOpenWebUIHeaders(header)
	require.Equal(t, "alice@example.com", got["x-openwebui-user-email"])
	require.NotContains(t, got, "content-type")
}

func TestStatusForKind(t *testing.T) {
	cases := map[lambcoreerrors.Kind]int{
		lambcoreerrors.Unauthenticated:       http.StatusUnauthorized,
		lambcoreerrors.AccountDisabled:       http.StatusForbidden,
		lambcoreerrors.PermissionDenied:      http.StatusForbidden,
		lambcoreerrors.NotFound:              http.StatusNotFound,
		lambcoreerrors.ValidationError:       http.StatusBadRequest,
		lambcoreerrors.UpstreamUnavailable:   http.StatusBadGateway,
		lambcoreerrors.ConfigError:           http.StatusInternalServerError,
		lambcoreerrors.PluginNotFound:        http.StatusInternalServerError,
		lambcoreerrors.ToolFailed:            http.StatusInternalServerError,
		lambcoreerrors.ProviderAuthError:     http.StatusInternalServerError,
		lambcoreerrors.IterationBudgetExceeded: http.StatusInternalServerError,
		lambcoreerrors.Internal:              http.StatusInternalServerError,
	}
	for kind, want := range cases {
		require.Equal(t, want, statusForKind(kind), "kind=%s", kind)
	}
}
