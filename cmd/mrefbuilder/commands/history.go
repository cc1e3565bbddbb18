package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/mrefbuilder/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	ID    string `arg:"" optional:"" help:"Show a single build"`
	Limit int    `short:"n" help:"Number of builds to list" default:"10"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if cfg.History.Database == "" {
		return errors.ConfigError("build history is not enabled (set history.database)").Build()
	}
	store, err := history.Open(cfg.History.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return RunHistory(context.Background(), g, store, h.ID, h.Limit)
}

// RunHistory prints one build, or the most recent builds when id is empty.
func RunHistory(ctx context.Context, g *Global, store history.Store, id string, limit int) error {
	if id != "" {
		rec, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		printRecord(g, rec)
		return nil
	}

	records, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(g.Out, "No builds recorded")
		return nil
	}
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tDURATION\tTYPES\tMEMBERS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Duration.Round(time.Millisecond), r.Types, r.Members)
	}
	return tw.Flush()
}

func printRecord(g *Global, r history.Record) {
	fmt.Fprintf(g.Out, "Build:      %s\n", r.ID)
	fmt.Fprintf(g.Out, "Started:    %s\n", r.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(g.Out, "Status:     %s\n", r.Status)
	fmt.Fprintf(g.Out, "Duration:   %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(g.Out, "Output:     %s\n", r.Output)
	fmt.Fprintf(g.Out, "Config:     %s\n", r.ConfigHash)
	if len(r.AddIns) > 0 {
		fmt.Fprintf(g.Out, "Add-ins:    %s\n", strings.Join(r.AddIns, ", "))
	}
	fmt.Fprintf(g.Out, "APIs:       %d namespaces, %d types, %d members\n", r.Namespaces, r.Types, r.Members)
	fmt.Fprintf(g.Out, "Merged:     %d types, %d members\n", r.MergedTypes, r.MergedMembers)
	if r.Error != "" {
		fmt.Fprintf(g.Out, "Error:      %s\n", r.Error)
	}
}
