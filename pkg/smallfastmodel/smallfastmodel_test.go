package smallfastmodel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/orgconfig"
)

func TestIsConfigured(t *testing.T) {
	require.False(t, IsConfigured(orgconfig.SmallFastModelConfig{}))
	require.False(t, IsConfigured(orgconfig.SmallFastModelConfig{Model: "gpt-4o-mini"}))
	require.True(t, IsConfigured(orgconfig.SmallFastModelConfig{Model: "gpt-4o-mini", APIKey: "sk-x"}))
}

func TestInvoke_SendsAuthAndReturnsContent(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []struct {
			Message Message `json:"message"`
		}{{Message: Message{Role: "assistant", Content: "  optimized query  "}}}})
	}))
	defer srv.Close()

	h := New()
	cfg := orgconfig.SmallFastModelConfig{Model: "gpt-4o-mini", APIKey: "sk-x", BaseURL: srv.URL}
	out, err := h.Invoke(context.Background(), cfg, []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "Bearer sk-x", gotAuth)
	require.Equal(t, "gpt-4o-mini", gotBody.Model)
	require.False(t, gotBody.Stream)
	require.Equal(t, "optimized query", out)
}

func TestInvoke_NotConfiguredReturnsError(t *testing.T) {
	h := New()
	_, err := h.Invoke(context.Background(), orgconfig.SmallFastModelConfig{}, nil)
	require.Error(t, err)
}

func TestInvoke_NonOKStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := New()
	cfg := orgconfig.SmallFastModelConfig{Model: "m", APIKey: "k", BaseURL: srv.URL}
	_, err := h.Invoke(context.Background(), cfg, []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
}
