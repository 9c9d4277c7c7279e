package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

func TestWeather_Execute_ReturnsFormattedForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "37.5", r.URL.Query().Get("latitude"))
		w.Write([]byte(`{"current_weather":{"temperature":21.5,"windspeed":10.2,"weathercode":1}}`))
	}))
	defer srv.Close()

	tool := New()
	cfg := assistant.ToolConfig{Placeholder: "weather", Config: map[string]any{
		"latitude": 37.5, "longitude": -122.1, "endpoint": srv.URL,
	}}
	result := tool.Execute(context.Background(), plugins.OrchestrationRequest{}, assistant.Assistant{}, cfg)
	require.Empty(t, result.Error)
	require.Contains(t, result.Content, "21.5")
	require.Contains(t, result.Content, "10.2")
}

func TestWeather_Execute_MissingCoordinatesReturnsError(t *testing.T) {
	tool := New()
	result := tool.Execute(context.Background(), plugins.OrchestrationRequest{}, assistant.Assistant{}, assistant.ToolConfig{})
	require.NotEmpty(t, result.Error)
}

func TestWeather_Execute_DisallowedDomainReturnsError(t *testing.T) {
	tool := New("api.open-meteo.com")
	cfg := assistant.ToolConfig{Config: map[string]any{
		"latitude": 1.0, "longitude": 2.0, "endpoint": "https://evil.example.com/forecast",
	}}
	result := tool.Execute(context.Background(), plugins.OrchestrationRequest{}, assistant.Assistant{}, cfg)
	require.Contains(t, result.Error, "domain not allowed")
}

func TestWeather_Execute_NonOKStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tool := New()
	cfg := assistant.ToolConfig{Config: map[string]any{"latitude": 1.0, "longitude": 2.0, "endpoint": srv.URL}}
	result := tool.Execute(context.Background(), plugins.OrchestrationRequest{}, assistant.Assistant{}, cfg)
	require.NotEmpty(t, result.Error)
}
