package external

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

func TestEncodeDecodeRequest_RoundTripsMixedContent(t *testing.T) {
	req := plugins.OrchestrationRequest{
		Messages: []plugins.Message{
			{Role: "user", Content: []plugins.ContentPart{{Type: "text", Text: "hi"}}},
		},
		Stream:           true,
		OpenWebUIHeaders: map[string]string{"x-openwebui-user-id": "7"},
		Metadata:         map[string]any{"user_id": "7"},
	}

	wire, err := encodeRequest(req)
	require.NoError(t, err)

	back, err := decodeRequest(wire)
	require.NoError(t, err)
	require.Equal(t, req.Stream, back.Stream)
	require.Equal(t, req.OpenWebUIHeaders, back.OpenWebUIHeaders)
	require.Equal(t, "7", back.Metadata["user_id"])
	require.Equal(t, "user", back.Messages[0].Role)
}

func TestEncodeDecodeAssistant_RoundTripsMetadata(t *testing.T) {
	a := assistant.Assistant{
		ID:             3,
		Name:           "tutor",
		PromptTemplate: "{user_input}",
		Metadata: assistant.Metadata{
			Orchestrator: "parallel",
			Tools:        []assistant.ToolConfig{{Plugin: "simple_rag", Placeholder: "context", Enabled: true}},
		},
	}

	wire, err := encodeAssistant(a)
	require.NoError(t, err)

	back, err := decodeAssistant(wire)
	require.NoError(t, err)
	require.Equal(t, a.Name, back.Name)
	require.Equal(t, "parallel", back.Metadata.Orchestrator)
	require.Len(t, back.Metadata.Tools, 1)
	require.Equal(t, "simple_rag", back.Metadata.Tools[0].Plugin)
}

func TestEncodeDecodeToolConfig_RoundTripsConfigMap(t *testing.T) {
	cfg := assistant.ToolConfig{
		Plugin:      "weather",
		Placeholder: "weather",
		Enabled:     true,
		Config:      map[string]any{"units": "metric"},
		OnError:     assistant.OnErrorFail,
	}

	wire, err := encodeToolConfig(cfg)
	require.NoError(t, err)

	back, err := decodeToolConfig(wire)
	require.NoError(t, err)
	require.Equal(t, cfg.Plugin, back.Plugin)
	require.Equal(t, "metric", back.Config["units"])
	require.Equal(t, assistant.OnErrorFail, back.OnError)
}

func TestMarshalUnmarshalSchema_NilRoundTripsToNil(t *testing.T) {
	b, err := marshalSchema(nil)
	require.NoError(t, err)
	require.Nil(t, b)

	schema, err := unmarshalSchema(b)
	require.NoError(t, err)
	require.Nil(t, schema)
}
