package plugins

import (
	"fmt"

	lamberr "github.com/lamb-project/lamb-core/pkg/lambcore/errors"
)

// Registries bundles the five read-only-after-start plugin registries
// (spec §4.3: "There are five separate registries: connector,
// orchestrator, prompt-processor, RAG processor, tool"). It is built
// once at process start and handed to every request-scoped component
// that needs to resolve a plugin by name.
type Registries struct {
	Connectors       *namedRegistry[Connector]
	Orchestrators    *namedRegistry[Orchestrator]
	PromptProcessors *namedRegistry[PromptProcessor]
	RAGProcessors    *namedRegistry[RAGProcessor]
	Tools            *namedRegistry[Tool]
}

// NewRegistries builds five empty registries ready for registration.
func NewRegistries() *Registries {
	return &Registries{
		Connectors:       newNamedRegistry[Connector](),
		Orchestrators:    newNamedRegistry[Orchestrator](),
		PromptProcessors: newNamedRegistry[PromptProcessor](),
		RAGProcessors:    newNamedRegistry[RAGProcessor](),
		Tools:            newNamedRegistry[Tool](),
	}
}

// GetConnector looks up a connector by name, failing with the shared
// PluginNotFound classification (spec §4.3 "A registry lookup that
// misses yields PluginNotFound").
func (r *Registries) GetConnector(name string) (Connector, error) {
	c, ok := r.Connectors.Get(name)
	if !ok {
		return nil, lamberr.New(lamberr.PluginNotFound, fmt.Sprintf("connector %q not registered", name))
	}
	return c, nil
}

// GetOrchestrator looks up an orchestrator by name.
func (r *Registries) GetOrchestrator(name string) (Orchestrator, error) {
	o, ok := r.Orchestrators.Get(name)
	if !ok {
		return nil, lamberr.New(lamberr.PluginNotFound, fmt.Sprintf("orchestrator %q not registered", name))
	}
	return o, nil
}

// GetPromptProcessor looks up a legacy prompt processor by name.
func (r *Registries) GetPromptProcessor(name string) (PromptProcessor, error) {
	p, ok := r.PromptProcessors.Get(name)
	if !ok {
		return nil, lamberr.New(lamberr.PluginNotFound, fmt.Sprintf("prompt processor %q not registered", name))
	}
	return p, nil
}

// GetRAGProcessor looks up a legacy RAG processor by name.
func (r *Registries) GetRAGProcessor(name string) (RAGProcessor, error) {
	p, ok := r.RAGProcessors.Get(name)
	if !ok {
		return nil, lamberr.New(lamberr.PluginNotFound, fmt.Sprintf("rag processor %q not registered", name))
	}
	return p, nil
}

// GetTool looks up a tool plugin by name, returning a NotFound error on a
// miss. Its callers (the orchestrators and the pipeline's feature-gate
// and tool-loop checks) treat that error on an enabled tool as "log and
// skip" (spec §4.5 tie-break policy) rather than propagating it.
func (r *Registries) GetTool(name string) (Tool, error) {
	t, ok := r.Tools.Get(name)
	if !ok {
		return nil, lamberr.New(lamberr.PluginNotFound, fmt.Sprintf("tool %q not registered", name))
	}
	return t, nil
}
