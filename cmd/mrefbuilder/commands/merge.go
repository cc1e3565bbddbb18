package commands

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/mrefbuilder/internal/merge"
)

// MergeCmd implements the 'merge' command.
type MergeCmd struct {
	File string `arg:"" help:"Reflection data file to merge in place" type:"existingfile"`
}

func (m *MergeCmd) Run(g *Global, _ *CLI) error {
	return RunMerge(context.Background(), g, afero.NewOsFs(), m.File)
}

// RunMerge folds duplicate API entries of file.
func RunMerge(ctx context.Context, g *Global, fs afero.Fs, file string) error {
	res, err := merge.New(fs).WithLogger(g.Logger).Merge(ctx, file)
	if err != nil {
		return err
	}
	if res.MergedTypes == 0 && res.MergedMembers == 0 {
		fmt.Fprintf(g.Out, "No duplicate API entries in %s\n", file)
		return nil
	}
	fmt.Fprintf(g.Out, "Merged %d type entries and %d members in %s\n", res.MergedTypes, res.MergedMembers, file)
	return nil
}
