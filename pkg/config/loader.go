package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoaderOptions configures a Loader. Unlike the teacher's multi-backend
// loader, LAMB's bootstrap config has exactly one backend: a YAML file
// overlaid with environment variables, optionally watched for changes.
type LoaderOptions struct {
	Path string

	// EnvPrefix, if set, restricts the env overlay to vars with this
	// prefix (e.g. "LAMB_"), stripped and lowercased to a dotted key.
	EnvPrefix string

	Watch bool

	OnChange func(*Config) error
}

// Loader loads and optionally watches the bootstrap config file.
type Loader struct {
	koanf    *koanf.Koanf
	options  LoaderOptions
	parser   *yaml.YAML
	provider *file.File
	stopChan chan struct{}
}

// NewLoader creates a Loader for opts.Path.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	return &Loader{
		koanf:    koanf.New("."),
		options:  opts,
		parser:   yaml.Parser(),
		provider: file.Provider(opts.Path),
		stopChan: make(chan struct{}),
	}, nil
}

// Load reads the YAML file, overlays the environment, expands
// ${VAR}/$VAR references, and decodes into a validated Config.
func (l *Loader) Load() (*Config, error) {
	if err := l.koanf.Load(l.provider, l.parser); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", l.options.Path, err)
	}

	if l.options.EnvPrefix != "" {
		transform := func(s string) string {
			s = strings.TrimPrefix(s, l.options.EnvPrefix)
			return strings.ToLower(strings.ReplaceAll(s, "_", "."))
		}
		if err := l.koanf.Load(env.Provider(l.options.EnvPrefix, ".", transform), nil); err != nil {
			return nil, fmt.Errorf("failed to overlay environment: %w", err)
		}
	}

	if err := l.expandEnvVars(); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}

	if l.options.Watch {
		go l.watch()
	}

	return cfg, nil
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.koanf.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) expandEnvVars() error {
	expanded, ok := ExpandEnvVarsInData(l.koanf.Raw()).(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected type after environment expansion")
	}

	newKoanf := koanf.New(".")
	if err := newKoanf.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return fmt.Errorf("failed to reload expanded config: %w", err)
	}
	l.koanf = newKoanf
	return nil
}

// watch re-loads the file on every fsnotify event the koanf file provider
// reports, invoking OnChange with the freshly decoded Config. Mirrors the
// teacher's Loader.watch reactive-reload loop in koanf_loader.go.
func (l *Loader) watch() {
	err := l.provider.Watch(func(event interface{}, err error) {
		select {
		case <-l.stopChan:
			return
		default:
		}

		if err != nil {
			slog.Warn("config watch error", "error", err)
			return
		}

		l.koanf = koanf.New(".")
		if loadErr := l.koanf.Load(l.provider, l.parser); loadErr != nil {
			slog.Warn("failed to reload config file", "error", loadErr)
			return
		}
		if loadErr := l.expandEnvVars(); loadErr != nil {
			slog.Warn("failed to expand environment in reloaded config", "error", loadErr)
			return
		}

		cfg, unmarshalErr := l.unmarshal()
		if unmarshalErr != nil {
			slog.Warn("reloaded config rejected", "error", unmarshalErr)
			return
		}

		if l.options.OnChange != nil {
			if cbErr := l.options.OnChange(cfg); cbErr != nil {
				slog.Warn("config change callback failed", "error", cbErr)
				return
			}
		}
		slog.Info("configuration reloaded", "path", l.options.Path)
	})
	if err != nil {
		slog.Warn("config watch stopped", "error", err)
	}
}

// Stop ends a running watch goroutine.
func (l *Loader) Stop() {
	close(l.stopChan)
}

// SetOnChange replaces the watch callback.
func (l *Loader) SetOnChange(callback func(*Config) error) {
	l.options.OnChange = callback
}

// LoadConfig is a convenience wrapper for the common case: load once, no
// watch, no loader handle retained.
func LoadConfig(opts LoaderOptions) (*Config, error) {
	cfg, _, err := LoadConfigWithLoader(opts)
	return cfg, err
}

// LoadConfigWithLoader loads the config and returns the Loader so the
// caller (cmd/lambd) can start watching and wire SetOnChange.
func LoadConfigWithLoader(opts LoaderOptions) (*Config, *Loader, error) {
	loader, err := NewLoader(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create loader: %w", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, loader, nil
}
