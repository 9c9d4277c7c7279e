package contextaware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/kb"
	"github.com/lamb-project/lamb-core/pkg/orgconfig"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

func convo(turns ...plugins.Message) []plugins.Message { return turns }

func unconfiguredSFM(ctx context.Context, a assistant.Assistant) (orgconfig.SmallFastModelConfig, error) {
	return orgconfig.SmallFastModelConfig{}, nil
}

func TestContextAwareRag_FallsBackToLastUserMessageWhenSFMUnconfigured(t *testing.T) {
	var gotQuery string
	kbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body kb.QueryRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotQuery = body.QueryText
		_ = json.NewEncoder(w).Encode(kb.QueryResponse{Documents: []kb.Document{{Data: "chunk"}}})
	}))
	defer kbSrv.Close()

	tool := NewContextAwareRag(
		func(ctx context.Context, a assistant.Assistant) (string, string, error) { return kbSrv.URL, "tok", nil },
		unconfiguredSFM,
	)

	req := plugins.OrchestrationRequest{Messages: convo(
		plugins.Message{Role: "user", Content: "what is photosynthesis?"},
		plugins.Message{Role: "assistant", Content: "it's a process"},
		plugins.Message{Role: "user", Content: "how does it work in detail?"},
	)}
	cfg := assistant.ToolConfig{Config: map[string]any{"collections": []any{"docs"}}}

	result := tool.Execute(context.Background(), req, assistant.Assistant{}, cfg)
	require.Empty(t, result.Error)
	require.Equal(t, "how does it work in detail?", gotQuery)
	require.Equal(t, "chunk", result.Content)
}

func TestContextAwareRag_UsesOptimizedQueryWhenSFMConfigured(t *testing.T) {
	sfmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "photosynthesis mechanism detail"}}},
		})
	}))
	defer sfmSrv.Close()

	var gotQuery string
	kbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body kb.QueryRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotQuery = body.QueryText
		_ = json.NewEncoder(w).Encode(kb.QueryResponse{})
	}))
	defer kbSrv.Close()

	tool := NewContextAwareRag(
		func(ctx context.Context, a assistant.Assistant) (string, string, error) { return kbSrv.URL, "tok", nil },
		func(ctx context.Context, a assistant.Assistant) (orgconfig.SmallFastModelConfig, error) {
			return orgconfig.SmallFastModelConfig{Model: "gpt-4o-mini", APIKey: "sk-x", BaseURL: sfmSrv.URL}, nil
		},
	)

	req := plugins.OrchestrationRequest{Messages: convo(plugins.Message{Role: "user", Content: "how does it work?"})}
	cfg := assistant.ToolConfig{Config: map[string]any{"collections": []any{"docs"}}}

	tool.Execute(context.Background(), req, assistant.Assistant{}, cfg)
	require.Equal(t, "photosynthesis mechanism detail", gotQuery)
}

func TestHierarchicalRag_AlwaysUsesParentChildQueryPlugin(t *testing.T) {
	var gotPlugin string
	kbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPlugin = r.URL.Query().Get("plugin_name")
		_ = json.NewEncoder(w).Encode(kb.QueryResponse{Documents: []kb.Document{{Data: "parent chunk"}}})
	}))
	defer kbSrv.Close()

	tool := NewHierarchicalRag(
		func(ctx context.Context, a assistant.Assistant) (string, string, error) { return kbSrv.URL, "tok", nil },
		unconfiguredSFM,
	)

	req := plugins.OrchestrationRequest{Messages: convo(plugins.Message{Role: "user", Content: "list all steps"})}
	cfg := assistant.ToolConfig{Config: map[string]any{"collections": []any{"docs"}}}

	result := tool.Execute(context.Background(), req, assistant.Assistant{}, cfg)
	require.Equal(t, kb.ParentChildQuery, gotPlugin)
	require.Equal(t, "parent chunk", result.Content)
}

func TestOptimalQuery_FallsBackWhenSFMCallFails(t *testing.T) {
	sfmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer sfmSrv.Close()

	b := newBase(
		func(ctx context.Context, a assistant.Assistant) (string, string, error) { return "", "", nil },
		func(ctx context.Context, a assistant.Assistant) (orgconfig.SmallFastModelConfig, error) {
			return orgconfig.SmallFastModelConfig{Model: "m", APIKey: "k", BaseURL: sfmSrv.URL}, nil
		},
		"test",
	)

	query := b.optimalQuery(context.Background(), convo(plugins.Message{Role: "user", Content: "fallback message"}), assistant.Assistant{})
	require.Equal(t, "fallback message", query)
}
