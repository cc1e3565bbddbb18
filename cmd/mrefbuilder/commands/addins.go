package commands

import (
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/mrefbuilder/internal/build"
	"git.home.luguber.info/inful/mrefbuilder/internal/plugin"
)

// AddInsCmd implements the 'addins' command.
type AddInsCmd struct{}

func (a *AddInsCmd) Run(g *Global) error {
	return RunAddIns(g, build.DefaultRegistry())
}

// RunAddIns prints the add-ins that can be named in the addins configuration list.
func RunAddIns(g *Global, registry *plugin.Registry) error {
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tTYPE\tDESCRIPTION")
	for _, p := range registry.List() {
		m := p.Metadata()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, m.Version, m.Type, m.Description)
	}
	return tw.Flush()
}
