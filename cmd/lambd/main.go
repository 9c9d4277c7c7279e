// Command lambd runs the LAMB completion pipeline server.
//
// Usage:
//
//	lambd serve --config config.yaml
//	lambd version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/lamb-project/lamb-core/internal/bootstrap"
	"github.com/lamb-project/lamb-core/pkg/config"
	"github.com/lamb-project/lamb-core/pkg/logger"
)

// CLI defines lambd's command-line interface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Start the completion pipeline HTTP server."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or custom)." default:"simple"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	fmt.Printf("lambd version %s\n", version)
	return nil
}

// ServeCmd loads the bootstrap config, assembles the dependency graph,
// and blocks serving HTTP until an interrupt or SIGTERM arrives.
type ServeCmd struct {
	Watch bool `help:"Watch the config file for changes and reload provider/org defaults."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.With("lambd").Info("shutdown signal received")
		cancel()
	}()

	if err := config.LoadEnvFiles(); err != nil {
		logger.With("lambd").Warn("failed to load .env files", "error", err)
	}

	cfg, loader, err := config.LoadConfigWithLoader(config.LoaderOptions{
		Path:      cli.Config,
		EnvPrefix: "LAMB_",
		Watch:     c.Watch,
	})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.GetLogger()
	app, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer app.Close(context.Background())

	if c.Watch {
		loader.SetOnChange(func(next *config.Config) error {
			logger.With("lambd").Info("config reloaded; provider/org defaults refreshed on next request")
			*cfg = *next
			return nil
		})
	}

	logger.With("lambd").Info("starting server", "addr", cfg.Server.ListenAddr)
	return app.Server.Start(ctx)
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("lambd"),
		kong.Description("LAMB completion pipeline server"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}

	output := os.Stderr
	if cli.LogFile != "" {
		file, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = file
	}
	logger.Init(level, output, cli.LogFormat)

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
