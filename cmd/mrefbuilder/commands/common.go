package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"git.home.luguber.info/inful/mrefbuilder/internal/build"
	"git.home.luguber.info/inful/mrefbuilder/internal/config"
	"git.home.luguber.info/inful/mrefbuilder/internal/history"
	"git.home.luguber.info/inful/mrefbuilder/internal/metrics"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	// Out receives command output meant for the user.
	Out io.Writer
}

// NewGlobal returns the global context writing to stdout.
func NewGlobal() *Global {
	return &Global{Logger: slog.Default(), Out: os.Stdout}
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"mrefbuilder.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Write the reflection data file for the configured assemblies"`
	Merge   MergeCmd   `cmd:"" help:"Merge duplicate API entries of an existing reflection data file"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild whenever the configuration or a metadata input changes"`
	History HistoryCmd `cmd:"" help:"Show recent builds"`
	AddIns  AddInsCmd  `cmd:"" name:"addins" help:"List the available add-ins"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	installLogger(level, config.LogFormatText)
	return nil
}

func installLogger(level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadConfig loads the configuration file and applies its logging section to g.
// --verbose keeps debug logging regardless of the configured level.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level.SlogLevel()
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Logger = installLogger(level, cfg.Logging.Format)
	return cfg, nil
}

// buildEnv is a build service wired to the configured history and metrics.
type buildEnv struct {
	service  *build.Service
	store    *history.SQLiteStore
	recorder *metrics.PrometheusRecorder
	textfile string
}

func newBuildEnv(cfg *config.Config, logger *slog.Logger) (*buildEnv, error) {
	env := &buildEnv{service: build.NewService(afero.NewOsFs()).WithLogger(logger)}
	if cfg.History.Database != "" {
		store, err := history.Open(cfg.History.Database)
		if err != nil {
			return nil, err
		}
		env.store = store
		env.service.WithHistory(store)
	}
	if cfg.Metrics.Textfile != "" {
		env.recorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
		env.textfile = cfg.Metrics.Textfile
		env.service.WithRecorder(env.recorder)
	}
	return env, nil
}

// flushMetrics writes the metrics textfile, if configured.
func (e *buildEnv) flushMetrics(logger *slog.Logger) {
	if e.recorder == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(e.textfile), 0o755); err != nil {
		logger.Warn("Failed to create metrics directory", "path", e.textfile, "error", err)
		return
	}
	if err := e.recorder.WriteTextfile(e.textfile); err != nil {
		logger.Warn("Failed to write metrics textfile", "path", e.textfile, "error", err)
	}
}

func (e *buildEnv) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}
