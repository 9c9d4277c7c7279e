package plugins

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects a Go config struct into the JSON Schema map a
// ToolDeclaration.ConfigSchema exposes to assistant-editor UIs (spec
// §4.4 "declaration" — tools publish a config schema for discovery).
// Tools whose configuration is a typed struct should generate their
// schema this way rather than hand-writing an equivalent map, so the
// published schema can never drift from the struct Execute actually
// reads.
func SchemaFor(cfg any) map[string]any {
	reflector := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	schema := reflector.Reflect(cfg)

	encoded, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return map[string]any{}
	}
	return out
}
