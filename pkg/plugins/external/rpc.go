package external

import (
	"context"
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// toolRPCServer adapts an in-process plugins.Tool to net/rpc method
// calls dispatched from the host process.
type toolRPCServer struct {
	Impl plugins.Tool
}

func (s *toolRPCServer) Declaration(args any, reply *declarationReply) error {
	d := s.Impl.Declaration()
	schemaJSON, err := marshalSchema(d.ConfigSchema)
	if err != nil {
		return err
	}
	*reply = declarationReply{
		Name:             d.Name,
		DisplayName:      d.DisplayName,
		Placeholder:      d.Placeholder,
		Category:         d.Category,
		ConfigSchemaJSON: schemaJSON,
	}
	return nil
}

func (s *toolRPCServer) Execute(args *executeArgs, reply *executeReply) error {
	req, err := decodeRequest(args.Request)
	if err != nil {
		return err
	}
	a, err := decodeAssistant(args.Assistant)
	if err != nil {
		return err
	}
	cfg, err := decodeToolConfig(args.Config)
	if err != nil {
		return err
	}

	result := s.Impl.Execute(context.Background(), req, a, cfg)
	*reply = executeReply{
		Placeholder: result.Placeholder,
		Content:     result.Content,
		Sources:     result.Sources,
		Error:       result.Error,
	}
	return nil
}

// toolRPCClient adapts a net/rpc connection to a host-process plugins.Tool.
type toolRPCClient struct {
	client *rpc.Client
}

func (c *toolRPCClient) Declaration() plugins.ToolDeclaration {
	var reply declarationReply
	if err := c.client.Call("Plugin.Declaration", new(any), &reply); err != nil {
		return plugins.ToolDeclaration{}
	}
	schema, _ := unmarshalSchema(reply.ConfigSchemaJSON)
	return plugins.ToolDeclaration{
		Name:         reply.Name,
		DisplayName:  reply.DisplayName,
		Placeholder:  reply.Placeholder,
		Category:     reply.Category,
		ConfigSchema: schema,
	}
}

// Execute implements plugins.Tool. The RPC call runs on its own
// goroutine so a caller's context cancellation can return a ToolResult
// promptly even though net/rpc itself has no cancellation primitive.
func (c *toolRPCClient) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) plugins.ToolResult {
	wireReq, err := encodeRequest(req)
	if err != nil {
		return plugins.ToolResult{Placeholder: cfg.Placeholder, Error: err.Error()}
	}
	wireAssistant, err := encodeAssistant(a)
	if err != nil {
		return plugins.ToolResult{Placeholder: cfg.Placeholder, Error: err.Error()}
	}
	wireCfg, err := encodeToolConfig(cfg)
	if err != nil {
		return plugins.ToolResult{Placeholder: cfg.Placeholder, Error: err.Error()}
	}

	args := &executeArgs{Request: wireReq, Assistant: wireAssistant, Config: wireCfg}
	var reply executeReply
	call := c.client.Go("Plugin.Execute", args, &reply, make(chan *rpc.Call, 1))

	select {
	case <-ctx.Done():
		return plugins.ToolResult{Placeholder: cfg.Placeholder, Error: ctx.Err().Error()}
	case done := <-call.Done:
		if done.Error != nil {
			return plugins.ToolResult{Placeholder: cfg.Placeholder, Error: done.Error.Error()}
		}
		return plugins.ToolResult{
			Placeholder: reply.Placeholder,
			Content:     reply.Content,
			Sources:     reply.Sources,
			Error:       reply.Error,
		}
	}
}

// ToolPlugin is the go-plugin net/rpc Plugin implementation for
// pkg/plugins.Tool — shared by both the host process (Impl left nil,
// used only for its Client method) and the plugin binary (Impl set,
// used only for its Server method).
type ToolPlugin struct {
	Impl plugins.Tool
}

func (p *ToolPlugin) Server(*goplugin.MuxBroker) (any, error) {
	return &toolRPCServer{Impl: p.Impl}, nil
}

func (p *ToolPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (any, error) {
	return &toolRPCClient{client: c}, nil
}
