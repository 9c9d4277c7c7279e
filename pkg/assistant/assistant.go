// Package assistant defines the Assistant entity and its metadata blob
// (spec §3): the persisted configuration an orchestrator or legacy
// prompt processor reads to decide which plugins to run and how to
// build the completion request.
package assistant

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Capabilities toggles optional connector behavior.
type Capabilities struct {
	Vision          bool `json:"vision" mapstructure:"vision"`
	ImageGeneration bool `json:"image_generation" mapstructure:"image_generation"`
}

// OnError controls how the sequential orchestrator reacts when a tool
// in the chain fails (resolved Open Question: spec §9(b)).
type OnError string

const (
	// OnErrorSkip logs the failure and continues the chain (default).
	OnErrorSkip OnError = "skip"
	// OnErrorFail aborts the orchestration with a ToolFailed error.
	OnErrorFail OnError = "fail"
)

// ToolConfig is one entry in a multi-tool assistant's ordered tool graph.
type ToolConfig struct {
	Plugin      string         `json:"plugin" mapstructure:"plugin"`
	Placeholder string         `json:"placeholder" mapstructure:"placeholder"`
	Enabled     bool           `json:"enabled" mapstructure:"enabled"`
	Config      map[string]any `json:"config" mapstructure:"config"`
	// OnError applies only under the sequential orchestrator; the
	// parallel orchestrator always drops failed tools regardless of
	// this field (spec §4.5 parallel contract has no failure-abort mode).
	OnError OnError `json:"on_error" mapstructure:"on_error"`
}

// EffectiveOnError returns OnError, defaulting to OnErrorSkip when unset.
func (t ToolConfig) EffectiveOnError() OnError {
	if t.OnError == "" {
		return OnErrorSkip
	}
	return t.OnError
}

// Metadata is the structured pipeline declaration stored in an
// assistant's metadata blob (spec §3 "Assistant metadata blob").
type Metadata struct {
	Connector       string       `json:"connector" mapstructure:"connector"`
	Model           string       `json:"model" mapstructure:"model"`
	PromptProcessor string       `json:"prompt_processor" mapstructure:"prompt_processor"`
	RAGProcessor    string       `json:"rag_processor" mapstructure:"rag_processor"`
	Orchestrator    string       `json:"orchestrator" mapstructure:"orchestrator"`
	Tools           []ToolConfig `json:"tools" mapstructure:"tools"`
	Capabilities    Capabilities `json:"capabilities" mapstructure:"capabilities"`
}

// MultiToolMode reports whether this assistant is driven by an
// orchestrator over a tool graph, rather than a legacy single-slot
// prompt processor (spec §4.6 "coexists with orchestrators").
func (m Metadata) MultiToolMode() bool {
	return m.Orchestrator != ""
}

// DecodeMetadata parses an assistant's raw metadata JSON blob into a
// Metadata value, tolerating unknown/extra fields the way the original
// storage layer does.
func DecodeMetadata(raw []byte) (Metadata, error) {
	var meta Metadata
	if len(raw) == 0 {
		return meta, nil
	}

	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return meta, fmt.Errorf("decode assistant metadata: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return meta, fmt.Errorf("build assistant metadata decoder: %w", err)
	}
	if err := decoder.Decode(asMap); err != nil {
		return meta, fmt.Errorf("decode assistant metadata: %w", err)
	}
	return meta, nil
}

// Encode serializes the metadata back to the JSON form stored alongside
// the assistant row.
func (m Metadata) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode assistant metadata: %w", err)
	}
	return b, nil
}

// Assistant is the resolved, in-memory view of an assistant row plus its
// decoded metadata (spec §3 "Assistant").
type Assistant struct {
	ID               int64
	OwnerEmail       string
	OrganizationID   int64
	Name             string
	Description      string
	SystemPrompt     string
	PromptTemplate   string
	Metadata         Metadata
	RAGCollections   []string
	RAGTopK          int
	Published        bool
}

// EnabledTools returns the assistant's tool graph filtered to enabled
// entries, in declared order — the order orchestrators must preserve
// (spec §4.5 "the declared list order is the contract").
func (a Assistant) EnabledTools() []ToolConfig {
	enabled := make([]ToolConfig, 0, len(a.Metadata.Tools))
	for _, t := range a.Metadata.Tools {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	return enabled
}
