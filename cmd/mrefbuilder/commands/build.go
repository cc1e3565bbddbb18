package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/mrefbuilder/internal/build"
	"git.home.luguber.info/inful/mrefbuilder/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output     string `short:"o" help:"Override output.file" type:"path"`
	NoMerge    bool   `name:"no-merge" help:"Keep duplicate API entries"`
	NoManifest bool   `name:"no-manifest" help:"Do not write the build manifest"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	b.apply(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	_, err = RunBuild(ctx, g, cfg)
	return err
}

func (b *BuildCmd) apply(cfg *config.Config) {
	if b.Output != "" {
		cfg.Output.File = b.Output
	}
	off := false
	if b.NoMerge {
		cfg.Output.MergeDuplicates = &off
	}
	if b.NoManifest {
		cfg.Output.Manifest = &off
	}
}

// RunBuild executes one build and prints its summary.
func RunBuild(ctx context.Context, g *Global, cfg *config.Config) (*build.Result, error) {
	logger := g.Logger
	env, err := newBuildEnv(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	result, err := env.service.Run(ctx, build.Request{Config: cfg})
	env.flushMetrics(logger)
	if err != nil {
		return result, err
	}
	printResult(g, result)
	return result, nil
}

func printResult(g *Global, r *build.Result) {
	fmt.Fprintf(g.Out, "Wrote %s: %d namespaces, %d types, %d members\n", r.Output, r.Namespaces, r.Types, r.Members)
	if r.MergedTypes > 0 || r.MergedMembers > 0 {
		fmt.Fprintf(g.Out, "Merged %d type entries and %d members\n", r.MergedTypes, r.MergedMembers)
	}
	if r.Status == build.BuildStatusWarning {
		fmt.Fprintf(g.Out, "Completed with warnings in stages: %v\n", r.Warnings)
	}
}
