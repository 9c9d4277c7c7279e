package assistant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeMetadata_MultiToolMode(t *testing.T) {
	raw := []byte(`{
		"connector": "openai",
		"model": "gpt-4o",
		"orchestrator": "parallel",
		"capabilities": {"vision": true},
		"tools": [
			{"plugin": "simple_rag", "placeholder": "context", "enabled": true, "config": {"top_k": 5}}
		]
	}`)

	meta, err := DecodeMetadata(raw)
	require.NoError(t, err)
	require.Equal(t, "openai", meta.Connector)
	require.True(t, meta.MultiToolMode())
	require.True(t, meta.Capabilities.Vision)
	require.Len(t, meta.Tools, 1)
	require.Equal(t, "simple_rag", meta.Tools[0].Plugin)
}

func TestDecodeMetadata_LegacySingleSlotMode(t *testing.T) {
	raw := []byte(`{"connector": "openai", "model": "gpt-4o", "prompt_processor": "simple_augment"}`)

	meta, err := DecodeMetadata(raw)
	require.NoError(t, err)
	require.False(t, meta.MultiToolMode())
	require.Equal(t, "simple_augment", meta.PromptProcessor)
}

func TestDecodeMetadata_EmptyBlob(t *testing.T) {
	meta, err := DecodeMetadata(nil)
	require.NoError(t, err)
	require.Equal(t, Metadata{}, meta)
}

func TestToolConfig_EffectiveOnError_DefaultsToSkip(t *testing.T) {
	require.Equal(t, OnErrorSkip, ToolConfig{}.EffectiveOnError())
	require.Equal(t, OnErrorFail, ToolConfig{OnError: OnErrorFail}.EffectiveOnError())
}

func TestAssistant_EnabledTools_PreservesDeclaredOrder(t *testing.T) {
	a := Assistant{
		Metadata: Metadata{
			Tools: []ToolConfig{
				{Plugin: "a", Enabled: false},
				{Plugin: "b", Enabled: true},
				{Plugin: "c", Enabled: true},
			},
		},
	}

	enabled := a.EnabledTools()
	require.Len(t, enabled, 2)
	require.Equal(t, "b", enabled[0].Plugin)
	require.Equal(t, "c", enabled[1].Plugin)
}
