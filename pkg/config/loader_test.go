package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lamb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoader_Load(t *testing.T) {
	os.Setenv("LAMB_TEST_SIGNING_SECRET", "from-env")
	defer os.Unsetenv("LAMB_TEST_SIGNING_SECRET")

	path := writeTestConfig(t, `
auth:
  signing_secret: ${LAMB_TEST_SIGNING_SECRET}
store:
  driver: sqlite
  dsn: test.db
providers:
  openai:
    base_url: https://api.openai.com/v1
`)

	cfg, err := LoadConfig(LoaderOptions{Path: path})
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Auth.SigningSecret)
	require.Equal(t, "https://api.openai.com/v1", cfg.Providers.OpenAI.BaseURL)
	require.Equal(t, ":8080", cfg.Server.ListenAddr) // default applied
}

func TestLoader_Load_MissingFile(t *testing.T) {
	_, err := LoadConfig(LoaderOptions{Path: "/nonexistent/lamb.yaml"})
	require.Error(t, err)
}

func TestLoader_Load_ValidationFailure(t *testing.T) {
	path := writeTestConfig(t, `
store:
  driver: oracle
`)

	_, err := LoadConfig(LoaderOptions{Path: path})
	require.Error(t, err)
}

func TestNewLoader_RequiresPath(t *testing.T) {
	_, err := NewLoader(LoaderOptions{})
	require.Error(t, err)
}
