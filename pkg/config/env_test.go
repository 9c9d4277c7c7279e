package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvVars_Braced(t *testing.T) {
	os.Setenv("LAMB_TEST_VAR", "hello")
	defer os.Unsetenv("LAMB_TEST_VAR")

	assert.Equal(t, "hello-world", expandEnvVars("${LAMB_TEST_VAR}-world"))
}

func TestExpandEnvVars_WithDefault(t *testing.T) {
	os.Unsetenv("LAMB_MISSING_VAR")

	assert.Equal(t, "fallback", expandEnvVars("${LAMB_MISSING_VAR:-fallback}"))
}

func TestExpandEnvVars_Simple(t *testing.T) {
	os.Setenv("LAMB_SIMPLE", "42")
	defer os.Unsetenv("LAMB_SIMPLE")

	assert.Equal(t, "42", expandEnvVars("$LAMB_SIMPLE"))
}

func TestExpandEnvVarsInData_CoercesTypes(t *testing.T) {
	os.Setenv("LAMB_BOOL_VAR", "true")
	os.Setenv("LAMB_INT_VAR", "7")
	defer os.Unsetenv("LAMB_BOOL_VAR")
	defer os.Unsetenv("LAMB_INT_VAR")

	data := map[string]interface{}{
		"enabled": "${LAMB_BOOL_VAR}",
		"count":   "${LAMB_INT_VAR}",
		"nested": []interface{}{
			"${LAMB_BOOL_VAR}",
		},
	}

	result := ExpandEnvVarsInData(data).(map[string]interface{})
	assert.Equal(t, true, result["enabled"])
	assert.Equal(t, 7, result["count"])
	assert.Equal(t, []interface{}{true}, result["nested"])
}

func TestProviderAPIKeyEnvVar(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", ProviderAPIKeyEnvVar("openai"))
	assert.Equal(t, "ANTHROPIC_API_KEY", ProviderAPIKeyEnvVar("anthropic"))
	assert.Equal(t, "GEMINI_API_KEY", ProviderAPIKeyEnvVar("gemini"))
	assert.Equal(t, "", ProviderAPIKeyEnvVar("unknown"))
}
