package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	lambcoreerrors "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
	"github.com/lamb-project/lamb-core/pkg/orgconfig"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

func fixedConfig(cfg orgconfig.ProviderConfig) func(context.Context, string) (orgconfig.ProviderConfig, error) {
	return func(context.Context, string) (orgconfig.ProviderConfig, error) { return cfg, nil }
}

func TestConnector_Complete_ReturnsMessageContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"llama3.1","message":{"role":"assistant","content":"hi there"},"done":true}`))
	}))
	defer srv.Close()

	c := New(fixedConfig(orgconfig.ProviderConfig{Enabled: true, BaseURL: srv.URL, DefaultModel: "llama3.1"}))
	content, err := c.Complete(context.Background(), []plugins.Message{{Role: "user", Content: "hello"}}, "", "owner@example.com")
	require.NoError(t, err)
	require.Equal(t, "hi there", content)
}

func TestConnector_Complete_ServerErrorMapsToUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`boom`))
	}))
	defer srv.Close()

	c := New(fixedConfig(orgconfig.ProviderConfig{Enabled: true, BaseURL: srv.URL}))
	_, err := c.Complete(context.Background(), []plugins.Message{{Role: "user", Content: "hello"}}, "llama3.1", "owner@example.com")
	require.True(t, lambcoreerrors.Is(err, lambcoreerrors.UpstreamUnavailable))
}

func TestConnector_Complete_DisabledReturnsProviderAuthError(t *testing.T) {
	c := New(fixedConfig(orgconfig.ProviderConfig{Enabled: false}))
	_, err := c.Complete(context.Background(), []plugins.Message{{Role: "user", Content: "hello"}}, "llama3.1", "owner@example.com")
	require.True(t, lambcoreerrors.Is(err, lambcoreerrors.ProviderAuthError))
}

func TestConnector_AvailableModels_FallsBackToDefaultChatModel(t *testing.T) {
	c := New(fixedConfig(orgconfig.ProviderConfig{Enabled: true, BaseURL: "http://localhost:11434"}))
	models, err := c.AvailableModels(context.Background(), "owner@example.com")
	require.NoError(t, err)
	require.Equal(t, []string{defaultChatModel}, models)
}

func TestConnector_Stream_EmitsChunksThenFinishes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{\"message\":{\"role\":\"assistant\",\"content\":\"hi\"},\"done\":false}\n"))
		w.Write([]byte("{\"message\":{\"role\":\"assistant\",\"content\":\" there\"},\"done\":true}\n"))
	}))
	defer srv.Close()

	c := New(fixedConfig(orgconfig.ProviderConfig{Enabled: true, BaseURL: srv.URL, DefaultModel: "llama3.1"}))

	var chunks []string
	var finished bool
	err := c.Stream(context.Background(), []plugins.Message{{Role: "user", Content: "hello"}}, "", "owner@example.com", func(chunk plugins.CompletionChunk) error {
		if chunk.Content != "" {
			chunks = append(chunks, chunk.Content)
		}
		if chunk.FinishedAt {
			finished = true
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"hi", " there"}, chunks)
	require.True(t, finished)
}
