// Command lambctl is the operator CLI for inspecting and validating a
// lambd deployment's configuration and plugin registry, without running
// the HTTP server.
//
// Usage:
//
//	lambctl validate-config --config config.yaml
//	lambctl plugins list --config config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/alecthomas/kong"

	"github.com/lamb-project/lamb-core/internal/bootstrap"
	"github.com/lamb-project/lamb-core/pkg/config"
	"github.com/lamb-project/lamb-core/pkg/logger"
)

// CLI defines lambctl's command-line interface.
type CLI struct {
	ValidateConfig ValidateConfigCmd `cmd:"" name:"validate-config" help:"Load and validate a bootstrap config file."`
	Plugins        PluginsCmd        `cmd:"" help:"Inspect the plugin registries a config would build."`

	Config string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
}

// ValidateConfigCmd loads the config file, applies defaults, and runs
// Config.Validate, reporting success or the specific problems found.
// Grounded on the teacher's ValidateCmd (cmd/hector/validate.go), trimmed
// to the single format LAMB's bootstrap config needs.
type ValidateConfigCmd struct {
	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration after defaults and env expansion."`
}

func (c *ValidateConfigCmd) Run(cli *CLI) error {
	cfg, err := config.LoadConfig(config.LoaderOptions{
		Path:      cli.Config,
		EnvPrefix: "LAMB_",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: invalid: %v\n", cli.Config, err)
		return fmt.Errorf("config validation failed")
	}

	fmt.Printf("%s: valid\n", cli.Config)
	if c.PrintConfig {
		fmt.Printf("%+v\n", *cfg)
	}
	return nil
}

// PluginsCmd groups plugin-registry inspection subcommands.
type PluginsCmd struct {
	List PluginsListCmd `cmd:"" help:"List every connector, orchestrator, prompt processor, and tool a config would register."`
}

// PluginsListCmd builds the same registries cmd/lambd would at startup
// and prints their contents, without opening an HTTP listener.
type PluginsListCmd struct{}

func (c *PluginsListCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(config.LoaderOptions{
		Path:      cli.Config,
		EnvPrefix: "LAMB_",
	})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	app, err := bootstrap.Build(ctx, cfg, logger.GetLogger())
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer app.Close(ctx)

	printNames := func(category string, names []string) {
		sort.Strings(names)
		fmt.Printf("%s:\n", category)
		for _, name := range names {
			fmt.Printf("  - %s\n", name)
		}
	}

	printNames("connectors", app.Registries.Connectors.Names())
	printNames("orchestrators", app.Registries.Orchestrators.Names())
	printNames("prompt processors", app.Registries.PromptProcessors.Names())
	printNames("rag processors", app.Registries.RAGProcessors.Names())
	printNames("tools", app.Registries.Tools.Names())
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("lambctl"),
		kong.Description("LAMB operator CLI"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
