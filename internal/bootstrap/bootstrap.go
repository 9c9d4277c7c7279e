// Package bootstrap assembles the process-wide dependency graph shared by
// cmd/lambd and cmd/lambctl: open the store, build the plugin registries
// with every connector/orchestrator/processor/tool this module ships, and
// wire the organization config resolver closures each of them needs.
// Grounded on the teacher's cmd/hector main.go, which performs the
// equivalent wiring (runtime.New, per-agent executors) inline in main
// rather than through a shared package — split out here because LAMB has
// two binaries that both need the identical graph.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/auth"
	"github.com/lamb-project/lamb-core/pkg/config"
	"github.com/lamb-project/lamb-core/pkg/connectors"
	"github.com/lamb-project/lamb-core/pkg/connectors/anthropic"
	"github.com/lamb-project/lamb-core/pkg/connectors/gemini"
	"github.com/lamb-project/lamb-core/pkg/connectors/ollama"
	"github.com/lamb-project/lamb-core/pkg/connectors/openai"
	"github.com/lamb-project/lamb-core/pkg/observability"
	"github.com/lamb-project/lamb-core/pkg/orchestration"
	"github.com/lamb-project/lamb-core/pkg/orgconfig"
	"github.com/lamb-project/lamb-core/pkg/persistence"
	"github.com/lamb-project/lamb-core/pkg/plugins"
	"github.com/lamb-project/lamb-core/pkg/promptprocessor"
	"github.com/lamb-project/lamb-core/pkg/server"
	"github.com/lamb-project/lamb-core/pkg/store"
	"github.com/lamb-project/lamb-core/pkg/tools"
	"github.com/lamb-project/lamb-core/pkg/tools/contextaware"
	"github.com/lamb-project/lamb-core/pkg/tools/mcp"
	"github.com/lamb-project/lamb-core/pkg/tools/rubricrag"
	"github.com/lamb-project/lamb-core/pkg/tools/weather"
)

// App bundles the constructed graph both binaries need: cmd/lambd wraps
// Server.Start in its serve command, cmd/lambctl only needs Registries to
// list plugins (its validate-config command does not build an App).
type App struct {
	Config      *config.Config
	Store       *store.Store
	Registries  *plugins.Registries
	AuthBuilder *auth.Builder
	Pipeline    *server.Pipeline
	Server      *server.Server
	Obs         *observability.Manager
	Log         *slog.Logger
}

// Build opens the store, registers every plugin, and constructs the
// completion pipeline and HTTP server. Callers are responsible for
// calling Close when done.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	regs := plugins.NewRegistries()
	if err := registerConnectors(regs, cfg, st); err != nil {
		st.Close()
		return nil, err
	}
	if err := registerOrchestrationAndProcessors(regs); err != nil {
		st.Close()
		return nil, err
	}
	if err := registerTools(regs, cfg, st); err != nil {
		st.Close()
		return nil, err
	}

	obs, err := observability.NewManager(ctx, &cfg.Observability)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build observability manager: %w", err)
	}

	native := auth.NewNativeVerifier([]byte(cfg.Auth.SigningSecret))
	verifiers := []auth.TokenVerifier{native}
	if cfg.Auth.LegacyBaseURL != "" {
		verifiers = append(verifiers, auth.NewLegacyVerifier(cfg.Auth.LegacyBaseURL))
	}
	authBuilder := auth.NewBuilder(auth.NewVerifierChain(verifiers...), st, st, st, st, log)

	pipeline := &server.Pipeline{
		Assistants:                st,
		Registries:                regs,
		Persist:                   persistence.New(st),
		ToolCallingProviderConfig: providerConfigResolver(cfg, st, "openai"),
		Log:                       log,
	}

	srv := server.New(pipeline, authBuilder, obs, log, server.WithListenAddr(cfg.Server.ListenAddr))

	return &App{
		Config:      cfg,
		Store:       st,
		Registries:  regs,
		AuthBuilder: authBuilder,
		Pipeline:    pipeline,
		Server:      srv,
		Obs:         obs,
		Log:         log,
	}, nil
}

// Close releases the store and observability manager.
func (a *App) Close(ctx context.Context) error {
	if a.Obs != nil {
		_ = a.Obs.Shutdown(ctx)
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// providerConfigResolver builds the per-provider connectors.ProviderConfigResolver
// closure every connector is constructed with: resolve the caller's
// organization (falling back to the system organization and then process
// defaults), then read that one provider's section.
func providerConfigResolver(cfg *config.Config, lookup orgconfig.OrganizationLookup, providerName string) connectors.ProviderConfigResolver {
	return func(ctx context.Context, ownerEmail string) (orgconfig.ProviderConfig, error) {
		resolver, err := orgconfig.Resolve(ctx, lookup, ownerEmail, cfg)
		if err != nil {
			return orgconfig.ProviderConfig{}, err
		}
		return resolver.GetProviderConfig(providerName), nil
	}
}

func registerConnectors(regs *plugins.Registries, cfg *config.Config, st *store.Store) error {
	connectorsByName := map[string]plugins.Connector{
		"openai":    openai.New(providerConfigResolver(cfg, st, "openai")),
		"anthropic": anthropic.New(providerConfigResolver(cfg, st, "anthropic")),
		"gemini":    gemini.New(providerConfigResolver(cfg, st, "gemini")),
		"ollama":    ollama.New(providerConfigResolver(cfg, st, "ollama")),
	}
	for name, conn := range connectorsByName {
		if err := regs.Connectors.Register(name, conn); err != nil {
			return fmt.Errorf("register connector %s: %w", name, err)
		}
	}
	// openaitools is deliberately not registered here: it does not satisfy
	// plugins.Connector (see pkg/server.Pipeline's toolCallingConnectorName
	// special case), and is constructed per-request instead.
	return nil
}

func registerOrchestrationAndProcessors(regs *plugins.Registries) error {
	if err := regs.Orchestrators.Register("parallel", orchestration.NewParallel(regs)); err != nil {
		return fmt.Errorf("register orchestrator parallel: %w", err)
	}
	if err := regs.Orchestrators.Register("sequential", orchestration.NewSequential(regs)); err != nil {
		return fmt.Errorf("register orchestrator sequential: %w", err)
	}
	if err := regs.PromptProcessors.Register("simple_augment", promptprocessor.SimpleAugment{}); err != nil {
		return fmt.Errorf("register prompt processor simple_augment: %w", err)
	}
	return nil
}

func kbConfigResolver(cfg *config.Config, lookup orgconfig.OrganizationLookup) tools.KBConfigResolver {
	return func(ctx context.Context, a assistant.Assistant) (string, string, error) {
		resolver, err := orgconfig.Resolve(ctx, lookup, a.OwnerEmail, cfg)
		if err != nil {
			return "", "", err
		}
		sc := resolver.GetKnowledgeBaseConfig()
		return sc.ServerURL, sc.APIToken, nil
	}
}

func smallFastModelResolver(cfg *config.Config, lookup orgconfig.OrganizationLookup) contextaware.SmallFastModelResolver {
	return func(ctx context.Context, a assistant.Assistant) (orgconfig.SmallFastModelConfig, error) {
		resolver, err := orgconfig.Resolve(ctx, lookup, a.OwnerEmail, cfg)
		if err != nil {
			return orgconfig.SmallFastModelConfig{}, err
		}
		return resolver.GetSmallFastModelConfig(), nil
	}
}

func registerTools(regs *plugins.Registries, cfg *config.Config, st *store.Store) error {
	kbResolver := kbConfigResolver(cfg, st)
	sfmResolver := smallFastModelResolver(cfg, st)

	contextawareKBResolver := func(ctx context.Context, a assistant.Assistant) (string, string, error) {
		return kbResolver(ctx, a)
	}

	toolsByName := map[string]plugins.Tool{
		"simple_rag":        tools.NewSimpleRag(kbResolver),
		"context_aware_rag": contextaware.NewContextAwareRag(contextawareKBResolver, sfmResolver),
		"hierarchical_rag":  contextaware.NewHierarchicalRag(contextawareKBResolver, sfmResolver),
		"mcp":               mcp.New(),
		"weather":           weather.New(),
		"rubric_rag":        rubricrag.New(rubricStoreAdapter{store: st}),
	}
	for name, tool := range toolsByName {
		if err := regs.Tools.Register(name, tool); err != nil {
			return fmt.Errorf("register tool %s: %w", name, err)
		}
	}
	return nil
}

// rubricStoreAdapter satisfies rubricrag.Store by decoding
// store.RubricRow.Criteria, which pkg/store keeps as opaque JSON bytes
// so that package stays free of a dependency on pkg/tools/rubricrag.
type rubricStoreAdapter struct {
	store *store.Store
}

func (a rubricStoreAdapter) GetRubricByID(ctx context.Context, rubricID, ownerEmail string) (*rubricrag.Rubric, error) {
	row, err := a.store.GetRubricByID(ctx, rubricID, ownerEmail)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	var criteria []rubricrag.Criterion
	if err := json.Unmarshal(row.Criteria, &criteria); err != nil {
		return nil, fmt.Errorf("decode rubric %s criteria: %w", rubricID, err)
	}
	return &rubricrag.Rubric{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Criteria:    criteria,
	}, nil
}
