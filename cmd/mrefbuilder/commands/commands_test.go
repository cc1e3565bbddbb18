package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mrefbuilder/internal/config"
	"git.home.luguber.info/inful/mrefbuilder/internal/history"
	"git.home.luguber.info/inful/mrefbuilder/internal/manifest"
)

const widgetsYAML = `
assembly:
  name: Contoso.Widgets
  version: 1.0.0.0
types:
  - name: Widget
    namespace: Contoso.Widgets
    methods:
      - {name: Render}
`

func project(t *testing.T, extra string) (string, *CLI, *Global, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "metadata"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata", "widgets.yaml"), []byte(widgetsYAML), 0o644))

	cfg := `version: "1.0"
inputs:
  assemblies: [metadata/widgets.yaml]
output:
  file: build/reflection.xml
` + extra
	path := filepath.Join(dir, config.DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	var out bytes.Buffer
	g := NewGlobal()
	g.Out = &out
	return dir, &CLI{Config: path}, g, &out
}

func TestCLI_Parse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"}, kong.Exit(func(int) {}))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"-v", "build", "--no-merge", "-o", "out.xml"})
	require.NoError(t, err)
	assert.Equal(t, "build", ctx.Command())
	assert.True(t, cli.Verbose)
	assert.True(t, cli.Build.NoMerge)
	assert.Equal(t, "out.xml", filepath.Base(cli.Build.Output))

	_, err = parser.Parse([]string{"history", "abc", "-n", "3"})
	require.NoError(t, err)
	assert.Equal(t, "abc", cli.History.ID)
	assert.Equal(t, 3, cli.History.Limit)

	ctx, err = parser.Parse([]string{"addins"})
	require.NoError(t, err)
	assert.Equal(t, "addins", ctx.Command())
}

func TestBuildCmd(t *testing.T) {
	dir, cli, g, out := project(t, "")

	require.NoError(t, (&BuildCmd{}).Run(g, cli))
	assert.Contains(t, out.String(), "1 namespaces, 1 types")

	output := filepath.Join(dir, "build", "reflection.xml")
	assert.FileExists(t, output)
	assert.FileExists(t, manifest.PathFor(output))
}

func TestBuildCmd_Overrides(t *testing.T) {
	dir, cli, g, _ := project(t, "")
	output := filepath.Join(dir, "other.xml")

	require.NoError(t, (&BuildCmd{Output: output, NoManifest: true}).Run(g, cli))
	assert.FileExists(t, output)
	assert.NoFileExists(t, manifest.PathFor(output))
}

func TestBuildCmd_MetricsAndHistory(t *testing.T) {
	dir, cli, g, out := project(t, `metrics:
  textfile: metrics/mrefbuilder.prom
history:
  database: state/history.db
`)

	require.NoError(t, (&BuildCmd{}).Run(g, cli))

	data, err := os.ReadFile(filepath.Join(dir, "metrics", "mrefbuilder.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `mrefbuilder_build_outcomes_total{outcome="success"} 1`)

	out.Reset()
	require.NoError(t, (&HistoryCmd{Limit: 5}).Run(g, cli))
	assert.Contains(t, out.String(), "STATUS")
	assert.Contains(t, out.String(), "success")
}

func TestBuildCmd_ConfigError(t *testing.T) {
	g := NewGlobal()
	g.Out = &bytes.Buffer{}
	cli := &CLI{Config: filepath.Join(t.TempDir(), "missing.yaml")}
	assert.Error(t, (&BuildCmd{}).Run(g, cli))
}

func TestHistoryCmd_Disabled(t *testing.T) {
	_, cli, g, _ := project(t, "")
	assert.Error(t, (&HistoryCmd{Limit: 5}).Run(g, cli))
}

func TestRunHistory(t *testing.T) {
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var out bytes.Buffer
	g := &Global{Logger: NewGlobal().Logger, Out: &out}

	require.NoError(t, RunHistory(t.Context(), g, store, "", 10))
	assert.Equal(t, "No builds recorded\n", out.String())

	require.NoError(t, store.Append(t.Context(), history.Record{
		ID:     "build-1",
		Status: "failed",
		Output: "reflection.xml",
		AddIns: []string{"extension-methods"},
		Error:  "boom",
	}))

	out.Reset()
	require.NoError(t, RunHistory(t.Context(), g, store, "build-1", 10))
	assert.Contains(t, out.String(), "Status:     failed")
	assert.Contains(t, out.String(), "Add-ins:    extension-methods")
	assert.Contains(t, out.String(), "Error:      boom")

	assert.Error(t, RunHistory(t.Context(), g, store, "missing", 10))
}

func TestRunMerge(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `<?xml version="1.0"?><reflection><assemblies/><apis><api id="T:A"><containers><library assembly="A"/></containers></api></apis></reflection>`
	require.NoError(t, afero.WriteFile(fs, "reflection.xml", []byte(doc), 0o644))

	var out bytes.Buffer
	g := &Global{Logger: NewGlobal().Logger, Out: &out}
	require.NoError(t, RunMerge(t.Context(), g, fs, "reflection.xml"))
	assert.Equal(t, "No duplicate API entries in reflection.xml\n", out.String())
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	g := &Global{Logger: NewGlobal().Logger, Out: &out}

	require.NoError(t, (&InitCmd{Output: dir}).Run(g, &CLI{}))
	path := filepath.Join(dir, config.DefaultFile)
	assert.FileExists(t, path)
	assert.Contains(t, out.String(), path)

	assert.Error(t, (&InitCmd{Output: dir}).Run(g, &CLI{}))
	assert.NoError(t, (&InitCmd{Output: dir, Force: true}).Run(g, &CLI{}))
}

func TestAddInsCmd(t *testing.T) {
	var out bytes.Buffer
	g := &Global{Logger: NewGlobal().Logger, Out: &out}

	require.NoError(t, (&AddInsCmd{}).Run(g))
	assert.Contains(t, out.String(), "NAME")
	assert.Regexp(t, `extension-methods\s+v1\.0\.0\s+addin\s+Lists extension methods`, out.String())
}

func TestWatchPaths(t *testing.T) {
	cfg := &config.Config{Inputs: config.InputsConfig{
		Assemblies: []string{"a.yaml"},
		References: []string{"refs"},
	}}
	assert.Equal(t, []string{"mrefbuilder.yaml", "a.yaml", "refs"}, watchPaths("mrefbuilder.yaml", cfg))
}
