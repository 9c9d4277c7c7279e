package external

import (
	"context"
	"net"
	"net/rpc"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

type fakeTool struct {
	decl  plugins.ToolDeclaration
	delay time.Duration
}

func (f fakeTool) Declaration() plugins.ToolDeclaration { return f.decl }

func (f fakeTool) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) plugins.ToolResult {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return plugins.ToolResult{Placeholder: cfg.Placeholder, Content: "from " + a.Name, Sources: []plugins.Source{{Title: "src"}}}
}

// dialInProcess wires a net/rpc client straight to a toolRPCServer over
// an in-memory pipe, the same "Plugin" service name go-plugin's net/rpc
// broker registers a dispensed plugin under.
func dialInProcess(t *testing.T, impl plugins.Tool) *toolRPCClient {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("Plugin", &toolRPCServer{Impl: impl}))

	serverConn, clientConn := net.Pipe()
	go server.ServeConn(serverConn)
	t.Cleanup(func() { _ = clientConn.Close() })

	return &toolRPCClient{client: rpc.NewClient(clientConn)}
}

func TestToolRPCClient_DeclarationRoundTrips(t *testing.T) {
	impl := fakeTool{decl: plugins.ToolDeclaration{
		Name: "weather", Placeholder: "weather", Category: "retrieval",
		ConfigSchema: map[string]any{"units": "string"},
	}}
	client := dialInProcess(t, impl)

	d := client.Declaration()
	require.Equal(t, "weather", d.Name)
	require.Equal(t, "string", d.ConfigSchema["units"])
}

func TestToolRPCClient_ExecuteReturnsResultOverRPC(t *testing.T) {
	client := dialInProcess(t, fakeTool{})
	req := plugins.OrchestrationRequest{Messages: []plugins.Message{{Role: "user", Content: "hi"}}}
	a := assistant.Assistant{Name: "tutor"}
	cfg := assistant.ToolConfig{Plugin: "weather", Placeholder: "weather", Enabled: true}

	result := client.Execute(context.Background(), req, a, cfg)
	require.Empty(t, result.Error)
	require.Equal(t, "weather", result.Placeholder)
	require.Equal(t, "from tutor", result.Content)
	require.Len(t, result.Sources, 1)
}

func TestToolRPCClient_Execute_ContextCancellationReturnsPromptly(t *testing.T) {
	client := dialInProcess(t, fakeTool{delay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := client.Execute(ctx, plugins.OrchestrationRequest{}, assistant.Assistant{}, assistant.ToolConfig{Placeholder: "weather"})
	require.NotEmpty(t, result.Error)
}
