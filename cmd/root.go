package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/Monsterkot/diplom/internal/config"
)

// CLI represents the complete command structure for the diplom application
type CLI struct {
	// Global flags
	Config   string `help:"Path to a YAML config file (defaults to ./config.yaml when present)" type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,error"`
	DB       string `help:"Path to the SQLite database (overrides store.path)"`

	Sources SourcesCmd `cmd:"" help:"List the supported external catalogs"`
	Search  SearchCmd  `cmd:"" help:"Search the external catalogs concurrently"`
	Details DetailsCmd `cmd:"" help:"Fetch one book live from its catalog and cache it"`
	Import  ImportCmd  `cmd:"" help:"Import one external book"`
	Bulk    BulkCmd    `cmd:"" help:"Import every book listed in a manifest file"`
	Refresh RefreshCmd `cmd:"" help:"Re-fetch imported books whose catalog data is stale"`
	Serve   ServeCmd   `cmd:"" help:"Run the staleness scheduler and the metrics endpoint"`
	Status  StatusCmd  `cmd:"" help:"Show the status of a background task"`
	Cached  CachedCmd  `cmd:"" help:"Inspect and manage cached external records"`
}

// Globals is passed to every command's Run method.
type Globals struct {
	Config config.Config
	Out    io.Writer
	ctx    context.Context
}

// Context returns the command context, cancelled on SIGINT or SIGTERM.
func (g *Globals) Context() context.Context {
	if g.ctx == nil {
		return context.Background()
	}
	return g.ctx
}

// Execute runs the Kong-based CLI
func Execute() {
	var cli CLI

	// Parse command line with Kong
	kctx := kong.Parse(&cli,
		kong.Name("diplom"),
		kong.Description("Search external book catalogs and import their records."),
		kong.UsageOnError(),
	)

	initLogging(cli.LogLevel)
	if err := initConfig(cli.Config); err != nil {
		slog.Error("Failed to read config", "error", err)
		os.Exit(1)
	}

	// Update global config based on parsed flags
	updateGlobalConfig(&cli)

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute the selected command
	err = kctx.Run(&Globals{Config: cfg, Out: os.Stdout, ctx: ctx})
	if err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func initConfig(path string) error {
	v := viper.GetViper()
	config.SetDefaults(v)

	// Enable environment variable support
	if err := config.BindEnv(v); err != nil {
		return err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			slog.Debug("Config file not found, using defaults and environment")
			return nil
		}
		return err
	}
	slog.Debug("Loaded config file", "path", v.ConfigFileUsed())
	return nil
}

func updateGlobalConfig(cli *CLI) {
	// Update config based on CLI flags
	if cli.DB != "" {
		viper.Set("store.path", cli.DB)
	}
}

func initLogging(level string) {
	// Logs go to stderr so stdout stays machine-readable JSON
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: parseLevel(level),
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
