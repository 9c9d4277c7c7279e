package external

import (
	"fmt"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"

	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// pluginMapKey is the single dispensed name every tool plugin binary
// registers under — there is exactly one contract (pkg/plugins.Tool) an
// external tool plugin can implement.
const pluginMapKey = "tool"

// Handshake is the magic-cookie handshake both the host and every tool
// plugin binary must agree on (spec §4.3 "out-of-process tool plugins").
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "LAMB_TOOL_PLUGIN",
	MagicCookieValue: "lamb_tool_plugin_v1",
}

// Host manages the lifecycle of one out-of-process tool plugin binary:
// launching it, dispensing its plugins.Tool implementation, and killing
// the child process when the tool is no longer needed.
type Host struct {
	client *goplugin.Client
	tool   plugins.Tool
}

// Launch starts the executable at path as a tool plugin subprocess and
// returns a Host wrapping its dispensed plugins.Tool.
func Launch(path string, args ...string) (*Host, error) {
	log := hclog.New(&hclog.LoggerOptions{
		Name:  "lamb-tool-plugin",
		Level: hclog.Warn,
	})

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          map[string]goplugin.Plugin{pluginMapKey: &ToolPlugin{}},
		Cmd:              exec.Command(path, args...),
		Logger:           log,
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("connect to tool plugin %s: %w", path, err)
	}

	raw, err := rpcClient.Dispense(pluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense tool plugin %s: %w", path, err)
	}

	tool, ok := raw.(plugins.Tool)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s does not implement the tool contract", path)
	}

	return &Host{client: client, tool: tool}, nil
}

// Tool returns the plugins.Tool implementation backed by the
// subprocess — safe to register directly into a plugins.Registries.
func (h *Host) Tool() plugins.Tool { return h.tool }

// Close terminates the subprocess.
func (h *Host) Close() { h.client.Kill() }

// Serve runs the current process as a tool plugin server. A plugin
// author's main() calls this with their plugins.Tool implementation:
//
//	func main() {
//	    external.Serve(myTool{})
//	}
func Serve(impl plugins.Tool) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]goplugin.Plugin{pluginMapKey: &ToolPlugin{Impl: impl}},
	})
}
