// Package orgconfig implements the Organization Config Resolver (spec
// §4.2): given an assistant owner's email, it produces a read-only view
// over that owner's organization config, falling back to the system
// organization when the owner belongs to none, and falling back further
// to process-level environment defaults for any field the organization
// config leaves unset.
package orgconfig

import (
	"context"
	"fmt"

	"github.com/lamb-project/lamb-core/pkg/auth"
	"github.com/lamb-project/lamb-core/pkg/config"
)

// OrganizationLookup is the narrow read interface the resolver needs from
// pkg/store, kept separate from auth.OrganizationStore because the
// resolver also needs the system-organization fallback that AuthContext's
// builder does not.
type OrganizationLookup interface {
	GetOrganizationForUser(ctx context.Context, email string) (*auth.Organization, error)
	GetSystemOrganization(ctx context.Context) (*auth.Organization, error)
}

// ProviderConfig is what get_provider_config returns: enabled flag,
// credentials, default model, and the model list offered to clients.
type ProviderConfig struct {
	Enabled      bool
	APIKey       string
	BaseURL      string
	DefaultModel string
	Models       []string
}

// ServiceConfig is what get_knowledge_base_config/get_embeddings_config
// return: a URL plus a bearer token.
type ServiceConfig struct {
	ServerURL string
	APIToken  string
}

// SmallFastModelConfig configures the auxiliary short-prompt helper.
type SmallFastModelConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// Resolver answers the Organization Config Resolver contract for one
// assistant owner. It is built per-request (or cached per-org by the
// caller) rather than held as a global singleton, consistent with the
// "construct at process start, inject" design note — here "inject" means
// inject the organization config bytes once resolved, which Resolve does.
type Resolver struct {
	org      auth.Organization
	config   map[string]any
	defaults *config.Config
}

// Resolve loads the owner's organization (or the system organization, if
// the owner has none) and returns a Resolver bound to it.
func Resolve(ctx context.Context, lookup OrganizationLookup, ownerEmail string, defaults *config.Config) (*Resolver, error) {
	org, err := lookup.GetOrganizationForUser(ctx, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("resolve organization for %q: %w", ownerEmail, err)
	}
	if org == nil {
		org, err = lookup.GetSystemOrganization(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve system organization fallback: %w", err)
		}
	}
	if org == nil {
		org = &auth.Organization{}
	}

	return &Resolver{
		org:      *org,
		config:   auth.DecodeOrganizationConfig(org.Config),
		defaults: defaults,
	}, nil
}

// Organization returns the organization the resolver is bound to.
func (r *Resolver) Organization() auth.Organization {
	return r.org
}

// Features returns the organization's feature flags, tolerant of the same
// list/map forms AuthContext decodes.
func (r *Resolver) Features() map[string]bool {
	raw, ok := r.config["features"]
	if !ok {
		return map[string]bool{}
	}
	features := map[string]bool{}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if name, ok := item.(string); ok {
				features[name] = true
			}
		}
	case map[string]any:
		for name, enabled := range v {
			switch e := enabled.(type) {
			case bool:
				features[name] = e
			case string:
				features[name] = e == "true" || e == "enabled"
			default:
				features[name] = true
			}
		}
	}
	return features
}

// GetProviderConfig resolves a named LLM provider's config: organization
// config first, process-level environment defaults second (spec §4.2
// "Resolution order is strict").
func (r *Resolver) GetProviderConfig(providerName string) ProviderConfig {
	section := r.providerSection(providerName)

	pc := ProviderConfig{Enabled: true}
	if v, ok := section["enabled"].(bool); ok {
		pc.Enabled = v
	}
	pc.APIKey = stringField(section, "api_key")
	pc.BaseURL = stringField(section, "base_url")
	pc.DefaultModel = stringField(section, "default_model")
	if models, ok := section["models"].([]any); ok {
		for _, m := range models {
			if s, ok := m.(string); ok {
				pc.Models = append(pc.Models, s)
			}
		}
	}

	if pc.APIKey == "" && r.defaults != nil {
		pc.APIKey = defaultProviderAPIKey(r.defaults, providerName)
	}
	if pc.BaseURL == "" && r.defaults != nil {
		pc.BaseURL = defaultProviderBaseURL(r.defaults, providerName)
	}

	return pc
}

// GetKnowledgeBaseConfig resolves the KB server URL/token.
func (r *Resolver) GetKnowledgeBaseConfig() ServiceConfig {
	section, _ := r.config["knowledge_base"].(map[string]any)
	sc := ServiceConfig{
		ServerURL: stringField(section, "server_url"),
		APIToken:  stringField(section, "api_token"),
	}
	if sc.ServerURL == "" && r.defaults != nil {
		sc.ServerURL = r.defaults.KB.BaseURL
	}
	if sc.APIToken == "" && r.defaults != nil {
		sc.APIToken = r.defaults.KB.Token
	}
	return sc
}

// GetEmbeddingsConfig resolves the embeddings endpoint/model/key.
func (r *Resolver) GetEmbeddingsConfig() (endpoint, model, apiKey string) {
	section, _ := r.config["embeddings"].(map[string]any)
	endpoint = stringField(section, "endpoint")
	model = stringField(section, "model")
	apiKey = stringField(section, "api_key")
	if endpoint == "" && r.defaults != nil {
		endpoint = r.defaults.Embeddings.Endpoint
	}
	if model == "" && r.defaults != nil {
		model = r.defaults.Embeddings.Model
	}
	return endpoint, model, apiKey
}

// GetSmallFastModelConfig resolves the small-fast-model helper's settings.
func (r *Resolver) GetSmallFastModelConfig() SmallFastModelConfig {
	section, _ := r.config["small_fast_model"].(map[string]any)
	sfm := SmallFastModelConfig{
		Provider: stringField(section, "provider"),
		Model:    stringField(section, "model"),
		APIKey:   stringField(section, "api_key"),
		BaseURL:  stringField(section, "base_url"),
	}
	if sfm.Provider == "" {
		sfm.Provider = "openai"
	}
	if sfm.APIKey == "" && r.defaults != nil {
		sfm.APIKey = defaultProviderAPIKey(r.defaults, sfm.Provider)
	}
	return sfm
}

func (r *Resolver) providerSection(providerName string) map[string]any {
	providers, _ := r.config["providers"].(map[string]any)
	if providers == nil {
		return map[string]any{}
	}
	section, _ := providers[providerName].(map[string]any)
	if section == nil {
		return map[string]any{}
	}
	return section
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func defaultProviderAPIKey(cfg *config.Config, providerName string) string {
	switch providerName {
	case "openai":
		return cfg.Providers.OpenAI.APIKey
	case "anthropic":
		return cfg.Providers.Anthropic.APIKey
	case "gemini":
		return cfg.Providers.Gemini.APIKey
	case "ollama":
		return cfg.Providers.Ollama.APIKey
	default:
		return ""
	}
}

func defaultProviderBaseURL(cfg *config.Config, providerName string) string {
	switch providerName {
	case "openai":
		return cfg.Providers.OpenAI.BaseURL
	case "anthropic":
		return cfg.Providers.Anthropic.BaseURL
	case "gemini":
		return cfg.Providers.Gemini.BaseURL
	case "ollama":
		return cfg.Providers.Ollama.BaseURL
	default:
		return ""
	}
}
