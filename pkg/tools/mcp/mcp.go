// Package mcp bridges a single Model Context Protocol tool call into
// LAMB's tool-plugin contract (spec §4.4). Unlike a general-purpose MCP
// toolset that discovers and exposes every tool a server offers, this
// bridge is declared per ToolConfig against one named remote tool —
// matching the one-placeholder-per-ToolConfig shape the rest of LAMB's
// tool graph uses.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpsdk "github.com/mark3labs/mcp-go/mcp"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/httpclient"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

const (
	protocolVersion   = "2024-11-05"
	clientName        = "lamb"
	clientVersion     = "1.0.0"
	defaultArgName    = "query"
	sseResponseWindow = 30 * time.Second
)

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
}

// Tool calls one named tool on a remote MCP server, over either the
// streamable-http transport (hand-rolled JSON-RPC, grounded on
// pkg/tool/mcptoolset.Toolset.connectHTTP/makeHTTPRequest) or the stdio
// transport (grounded on pkg/tool/mcptoolset.Toolset.connectStdio, which
// is where the teacher itself reaches for mark3labs/mcp-go rather than
// hand-rolling the subprocess/JSON-RPC framing).
type Tool struct {
	http *httpclient.Client
}

// New builds an MCP bridge tool.
func New() *Tool {
	return &Tool{http: httpclient.New(httpclient.WithMaxRetries(2))}
}

// Declaration describes mcp's configuration surface.
func (t *Tool) Declaration() plugins.ToolDeclaration {
	return plugins.ToolDeclaration{
		Name:        "mcp",
		DisplayName: "MCP Tool Bridge",
		Placeholder: "context",
		Category:    "tool",
		ConfigSchema: map[string]any{
			"url":       "string",
			"command":   "string",
			"args":      "[]string",
			"env":       "map[string]string",
			"tool_name": "string",
			"arg_name":  "string",
			"arguments": "map[string]any",
		},
	}
}

// Execute performs the MCP initialize handshake, then calls the
// configured tool with the last user message (under arg_name, default
// "query") merged with any static arguments from config. A "command"
// entry selects the stdio transport; otherwise "url" selects the
// streamable-http transport — the two are mutually exclusive, matching
// pkg/tool/mcptoolset.Config's URL/Command split.
func (t *Tool) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) plugins.ToolResult {
	placeholder := cfg.Placeholder
	if placeholder == "" {
		placeholder = "context"
	}

	toolName := stringField(cfg.Config, "tool_name")
	if toolName == "" {
		return plugins.ToolResult{Placeholder: placeholder, Error: "mcp tool requires tool_name"}
	}

	argName := stringField(cfg.Config, "arg_name")
	if argName == "" {
		argName = defaultArgName
	}

	arguments := map[string]any{}
	if extra, ok := cfg.Config["arguments"].(map[string]any); ok {
		for k, v := range extra {
			arguments[k] = v
		}
	}
	if query := lastUserMessageText(req.Messages); query != "" {
		arguments[argName] = query
	}

	if command := stringField(cfg.Config, "command"); command != "" {
		content, err := t.callStdio(ctx, command, stringSliceField(cfg.Config, "args"), stringMapField(cfg.Config, "env"), toolName, arguments)
		if err != nil {
			return plugins.ToolResult{Placeholder: placeholder, Error: err.Error()}
		}
		return plugins.ToolResult{Placeholder: placeholder, Content: content}
	}

	serverURL := stringField(cfg.Config, "url")
	if serverURL == "" {
		return plugins.ToolResult{Placeholder: placeholder, Error: "mcp tool requires url or command"}
	}

	initResp, err := t.call(ctx, serverURL, "", "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo":      map[string]any{"name": clientName, "version": clientVersion},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("mcp initialize: %v", err)}
	}
	if initResp.Error != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("mcp initialize error: %s", initResp.Error.Message)}
	}

	callResp, err := t.call(ctx, serverURL, "", "tools/call", map[string]any{
		"name":      toolName,
		"arguments": arguments,
	})
	if err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("mcp tool call: %v", err)}
	}
	if callResp.Error != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("mcp tool error: %s", callResp.Error.Message)}
	}

	content, err := extractText(callResp.Result)
	if err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: err.Error()}
	}
	return plugins.ToolResult{Placeholder: placeholder, Content: content}
}

// callStdio launches the MCP server as a subprocess over stdio using
// mark3labs/mcp-go's client, initializes it, and calls the named tool —
// mirroring pkg/tool/mcptoolset.Toolset.connectStdio/callStdio.
func (t *Tool) callStdio(ctx context.Context, command string, args []string, env map[string]string, toolName string, arguments map[string]any) (string, error) {
	mcpClient, err := mcpclient.NewStdioMCPClient(command, convertEnv(env), args...)
	if err != nil {
		return "", fmt.Errorf("mcp stdio client: %w", err)
	}
	defer mcpClient.Close()

	if err := mcpClient.Start(ctx); err != nil {
		return "", fmt.Errorf("mcp stdio start: %w", err)
	}

	initReq := mcpsdk.InitializeRequest{}
	initReq.Params.ClientInfo = mcpsdk.Implementation{Name: clientName, Version: clientVersion}
	initReq.Params.ProtocolVersion = protocolVersion
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		return "", fmt.Errorf("mcp stdio initialize: %w", err)
	}

	callReq := mcpsdk.CallToolRequest{}
	callReq.Params.Name = toolName
	callReq.Params.Arguments = arguments

	resp, err := mcpClient.CallTool(ctx, callReq)
	if err != nil {
		return "", fmt.Errorf("mcp stdio tool call: %w", err)
	}

	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcpsdk.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	if resp.IsError {
		if len(texts) > 0 {
			return "", fmt.Errorf("mcp tool reported an error: %s", strings.Join(texts, "\n"))
		}
		return "", fmt.Errorf("mcp tool reported an unknown error")
	}
	return strings.Join(texts, "\n"), nil
}

// convertEnv converts a map to a slice of "KEY=VALUE" entries, the
// shape exec.Cmd.Env (and NewStdioMCPClient) expects.
func convertEnv(env map[string]string) []string {
	if env == nil {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

func (t *Tool) call(ctx context.Context, serverURL, sessionID, method string, params any) (*jsonRPCResponse, error) {
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		httpReq.Header.Set("mcp-session-id", sessionID)
	}

	resp, err := t.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSEResponse(resp.Body)
	}

	var out jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// readSSEResponse reads the first complete JSON-RPC message from an SSE
// body, bounded by sseResponseWindow.
func readSSEResponse(body io.ReadCloser) (*jsonRPCResponse, error) {
	type result struct {
		resp *jsonRPCResponse
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer body.Close()
		reader := bufio.NewReader(body)
		var data strings.Builder
		for {
			line, err := reader.ReadBytes('\n')
			trimmed := strings.TrimSpace(string(line))
			if trimmed == "" && data.Len() > 0 {
				var resp jsonRPCResponse
				if jsonErr := json.Unmarshal([]byte(data.String()), &resp); jsonErr == nil {
					done <- result{resp: &resp}
					return
				}
				data.Reset()
			} else if strings.HasPrefix(trimmed, "data:") {
				data.WriteString(strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")))
			}
			if err != nil {
				break
			}
		}
		if data.Len() > 0 {
			var resp jsonRPCResponse
			if jsonErr := json.Unmarshal([]byte(data.String()), &resp); jsonErr == nil {
				done <- result{resp: &resp}
				return
			}
		}
		done <- result{err: fmt.Errorf("sse stream ended without a complete message")}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-time.After(sseResponseWindow):
		return nil, fmt.Errorf("timeout reading sse response after %v", sseResponseWindow)
	}
}

// extractText collects the text content parts of an MCP tools/call
// result, joining multiple parts with newlines.
func extractText(result any) (string, error) {
	resultMap, ok := result.(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected mcp result type")
	}
	if isErr, _ := resultMap["isError"].(bool); isErr {
		if text := firstText(resultMap); text != "" {
			return "", fmt.Errorf("mcp tool reported an error: %s", text)
		}
		return "", fmt.Errorf("mcp tool reported an unknown error")
	}

	content, _ := resultMap["content"].([]any)
	var texts []string
	for _, item := range content {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if m["type"] == "text" {
			if text, ok := m["text"].(string); ok {
				texts = append(texts, text)
			}
		}
	}
	return strings.Join(texts, "\n"), nil
}

func firstText(resultMap map[string]any) string {
	content, _ := resultMap["content"].([]any)
	for _, item := range content {
		if m, ok := item.(map[string]any); ok {
			if text, ok := m["text"].(string); ok {
				return text
			}
		}
	}
	return ""
}

func lastUserMessageText(messages []plugins.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		switch v := messages[i].Content.(type) {
		case string:
			return v
		case []plugins.ContentPart:
			var parts []string
			for _, p := range v {
				if p.Type == "text" && p.Text != "" {
					parts = append(parts, p.Text)
				}
			}
			return strings.Join(parts, " ")
		}
	}
	return ""
}

func stringField(cfg map[string]any, key string) string {
	if s, ok := cfg[key].(string); ok {
		return s
	}
	return ""
}

func stringSliceField(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func stringMapField(cfg map[string]any, key string) map[string]string {
	switch v := cfg[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}
