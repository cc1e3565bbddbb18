package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/mrefbuilder/internal/config"
	"git.home.luguber.info/inful/mrefbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Debounce time.Duration `help:"Quiet period after a change before rebuilding" default:"500ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunWatch(ctx, g, root, w.Debounce)
}

// RunWatch builds once and then again after every change until ctx is cancelled.
// Failed builds are reported and watching continues; an invalid configuration keeps
// the previous watch set.
func RunWatch(ctx context.Context, g *Global, root *CLI, debounce time.Duration) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if _, err := RunBuild(ctx, g, cfg); err != nil {
		g.Logger.Error("Build failed", "error", err)
	}

	rebuild := func(ctx context.Context) ([]string, error) {
		cfg, err := root.loadConfig(g)
		if err != nil {
			return nil, err
		}
		_, err = RunBuild(ctx, g, cfg)
		return watchPaths(root.Config, cfg), err
	}
	return watch.New(rebuild).
		WithDebounce(debounce).
		WithLogger(g.Logger).
		Run(ctx, watchPaths(root.Config, cfg))
}

// watchPaths lists the configuration file and every metadata input.
func watchPaths(configPath string, cfg *config.Config) []string {
	paths := []string{configPath}
	paths = append(paths, cfg.Inputs.Assemblies...)
	return append(paths, cfg.Inputs.References...)
}
