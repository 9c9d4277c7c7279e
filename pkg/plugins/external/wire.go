// Package external hosts tool plugins that run as separate OS processes
// (spec §4.3 "plugins may run in-process or out-of-process"), using
// hashicorp/go-plugin's net/rpc transport so a plugin author never has
// to hand-write or regenerate protobuf stubs for the single Tool
// contract (pkg/plugins.Tool).
//
// net/rpc marshals arguments with encoding/gob, which cannot encode an
// unregistered interface{} (plugins.Message.Content, plugins.ToolConfig
// .Config, assistant.Metadata). Every dynamic field therefore crosses
// the wire JSON-encoded inside a concrete []byte field, then is
// re-hydrated on the other side.
package external

import (
	"encoding/json"
	"fmt"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

// wireMessage is the gob-safe mirror of plugins.Message.
type wireMessage struct {
	Role        string
	ContentJSON []byte
}

type wireRequest struct {
	Messages         []wireMessage
	Stream           bool
	OpenWebUIHeaders map[string]string
	MetadataJSON     []byte
}

type wireToolConfig struct {
	Plugin      string
	Placeholder string
	Enabled     bool
	ConfigJSON  []byte
	OnError     string
}

type wireAssistant struct {
	ID             int64
	OwnerEmail     string
	OrganizationID int64
	Name           string
	Description    string
	SystemPrompt   string
	PromptTemplate string
	MetadataJSON   []byte
	RAGCollections []string
	RAGTopK        int
	Published      bool
}

// executeArgs is the net/rpc call payload for the "Plugin.Execute" method.
type executeArgs struct {
	Request   wireRequest
	Assistant wireAssistant
	Config    wireToolConfig
}

// executeReply is the net/rpc response payload for "Plugin.Execute".
type executeReply struct {
	Placeholder string
	Content     string
	Sources     []plugins.Source
	Error       string
}

// declarationReply is the net/rpc response payload for "Plugin.Declaration".
type declarationReply struct {
	Name             string
	DisplayName      string
	Placeholder      string
	Category         string
	ConfigSchemaJSON []byte
}

func marshalSchema(schema map[string]any) ([]byte, error) {
	if schema == nil {
		return nil, nil
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode config schema: %w", err)
	}
	return b, nil
}

func unmarshalSchema(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode config schema: %w", err)
	}
	return schema, nil
}

func encodeMessage(m plugins.Message) (wireMessage, error) {
	b, err := json.Marshal(m.Content)
	if err != nil {
		return wireMessage{}, fmt.Errorf("encode message content: %w", err)
	}
	return wireMessage{Role: m.Role, ContentJSON: b}, nil
}

func decodeMessage(w wireMessage) (plugins.Message, error) {
	var content any
	if len(w.ContentJSON) > 0 {
		if err := json.Unmarshal(w.ContentJSON, &content); err != nil {
			return plugins.Message{}, fmt.Errorf("decode message content: %w", err)
		}
	}
	return plugins.Message{Role: w.Role, Content: content}, nil
}

func encodeRequest(req plugins.OrchestrationRequest) (wireRequest, error) {
	messages := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		wm, err := encodeMessage(m)
		if err != nil {
			return wireRequest{}, err
		}
		messages = append(messages, wm)
	}

	metaJSON, err := json.Marshal(req.Metadata)
	if err != nil {
		return wireRequest{}, fmt.Errorf("encode request metadata: %w", err)
	}

	return wireRequest{
		Messages:         messages,
		Stream:           req.Stream,
		OpenWebUIHeaders: req.OpenWebUIHeaders,
		MetadataJSON:     metaJSON,
	}, nil
}

func decodeRequest(w wireRequest) (plugins.OrchestrationRequest, error) {
	messages := make([]plugins.Message, 0, len(w.Messages))
	for _, wm := range w.Messages {
		m, err := decodeMessage(wm)
		if err != nil {
			return plugins.OrchestrationRequest{}, err
		}
		messages = append(messages, m)
	}

	var metadata map[string]any
	if len(w.MetadataJSON) > 0 {
		if err := json.Unmarshal(w.MetadataJSON, &metadata); err != nil {
			return plugins.OrchestrationRequest{}, fmt.Errorf("decode request metadata: %w", err)
		}
	}

	return plugins.OrchestrationRequest{
		Messages:         messages,
		Stream:           w.Stream,
		OpenWebUIHeaders: w.OpenWebUIHeaders,
		Metadata:         metadata,
	}, nil
}

func encodeAssistant(a assistant.Assistant) (wireAssistant, error) {
	metaJSON, err := a.Metadata.Encode()
	if err != nil {
		return wireAssistant{}, fmt.Errorf("encode assistant metadata: %w", err)
	}
	return wireAssistant{
		ID:             a.ID,
		OwnerEmail:     a.OwnerEmail,
		OrganizationID: a.OrganizationID,
		Name:           a.Name,
		Description:    a.Description,
		SystemPrompt:   a.SystemPrompt,
		PromptTemplate: a.PromptTemplate,
		MetadataJSON:   metaJSON,
		RAGCollections: a.RAGCollections,
		RAGTopK:        a.RAGTopK,
		Published:      a.Published,
	}, nil
}

func decodeAssistant(w wireAssistant) (assistant.Assistant, error) {
	meta, err := assistant.DecodeMetadata(w.MetadataJSON)
	if err != nil {
		return assistant.Assistant{}, err
	}
	return assistant.Assistant{
		ID:             w.ID,
		OwnerEmail:     w.OwnerEmail,
		OrganizationID: w.OrganizationID,
		Name:           w.Name,
		Description:    w.Description,
		SystemPrompt:   w.SystemPrompt,
		PromptTemplate: w.PromptTemplate,
		Metadata:       meta,
		RAGCollections: w.RAGCollections,
		RAGTopK:        w.RAGTopK,
		Published:      w.Published,
	}, nil
}

func encodeToolConfig(cfg assistant.ToolConfig) (wireToolConfig, error) {
	b, err := json.Marshal(cfg.Config)
	if err != nil {
		return wireToolConfig{}, fmt.Errorf("encode tool config: %w", err)
	}
	return wireToolConfig{
		Plugin:      cfg.Plugin,
		Placeholder: cfg.Placeholder,
		Enabled:     cfg.Enabled,
		ConfigJSON:  b,
		OnError:     string(cfg.OnError),
	}, nil
}

func decodeToolConfig(w wireToolConfig) (assistant.ToolConfig, error) {
	var cfg map[string]any
	if len(w.ConfigJSON) > 0 {
		if err := json.Unmarshal(w.ConfigJSON, &cfg); err != nil {
			return assistant.ToolConfig{}, fmt.Errorf("decode tool config: %w", err)
		}
	}
	return assistant.ToolConfig{
		Plugin:      w.Plugin,
		Placeholder: w.Placeholder,
		Enabled:     w.Enabled,
		Config:      cfg,
		OnError:     assistant.OnError(w.OnError),
	}, nil
}

