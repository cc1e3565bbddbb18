package merge

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
)

const duplicated = `<?xml version="1.0" encoding="utf-8"?>
<reflection>
  <assemblies>
    <assembly name="Contoso.Core"><assemblydata version="1.0.0.0" /></assembly>
    <assembly name="Contoso.Extra"><assemblydata version="1.0.0.0" /></assembly>
  </assemblies>
  <apis>
    <api id="N:Contoso">
      <apidata name="Contoso" group="namespace" />
      <elements><element api="T:Contoso.Widget" /></elements>
    </api>
    <api id="T:Contoso.Widget">
      <apidata name="Widget" group="type" subgroup="class" />
      <elements>
        <element api="M:Contoso.Widget.Run" />
        <element api="M:Contoso.Widget.CoreOnly" />
      </elements>
      <containers>
        <library assembly="Contoso.Core" module="Contoso.Core" kind="DynamicallyLinkedLibrary" />
        <namespace api="N:Contoso" />
      </containers>
    </api>
    <api id="M:Contoso.Widget.Run">
      <apidata name="Run" group="member" subgroup="method" />
      <containers>
        <library assembly="Contoso.Core" module="Contoso.Core" kind="DynamicallyLinkedLibrary" />
        <namespace api="N:Contoso" />
        <type api="T:Contoso.Widget" ref="true" />
      </containers>
    </api>
    <api id="T:Contoso.Widget">
      <apidata name="Widget" group="type" subgroup="class" />
      <elements>
        <element api="M:Contoso.Widget.Run" />
        <element api="M:Contoso.Widget.ExtraOnly" />
      </elements>
      <containers>
        <library assembly="Contoso.Extra" module="Contoso.Extra" kind="DynamicallyLinkedLibrary" />
        <namespace api="N:Contoso" />
      </containers>
    </api>
    <api id="M:Contoso.Widget.Run">
      <apidata name="Run" group="member" subgroup="method" />
      <containers>
        <library assembly="Contoso.Extra" module="Contoso.Extra" kind="DynamicallyLinkedLibrary" />
        <namespace api="N:Contoso" />
        <type api="T:Contoso.Widget" ref="true" />
      </containers>
    </api>
    <api id="M:Contoso.Widget.CoreOnly">
      <apidata name="CoreOnly" group="member" subgroup="method" />
      <value>a &amp; b</value>
    </api>
  </apis>
</reflection>
`

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func readDoc(t *testing.T, fs afero.Fs, path string) *etree.Document {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	return doc
}

func apis(doc *etree.Document, id string) []*etree.Element {
	var out []*etree.Element
	for _, el := range doc.FindElements("//apis/api") {
		if el.SelectAttrValue("id", "") == id {
			out = append(out, el)
		}
	}
	return out
}

func assemblies(list []*etree.Element) []string {
	out := make([]string, 0, len(list))
	for _, el := range list {
		out = append(out, el.SelectAttrValue("assembly", ""))
	}
	return out
}

func TestMerge_Duplicates(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/out/reflection.xml", duplicated)

	res, err := New(fs).Merge(t.Context(), "/out/reflection.xml")
	require.NoError(t, err)
	assert.Equal(t, Result{MergedTypes: 2, MergedMembers: 1}, res)

	doc := readDoc(t, fs, "/out/reflection.xml")
	require.Len(t, doc.FindElements("//assemblies/assembly"), 2)

	types := apis(doc, "T:Contoso.Widget")
	require.Len(t, types, 1)
	widget := types[0]
	assert.Equal(t, []string{"Contoso.Core", "Contoso.Extra"}, assemblies(widget.FindElements("./containers/library")))

	run := widget.FindElement("./elements/element[@api='M:Contoso.Widget.Run']")
	require.NotNil(t, run)
	assert.Nil(t, run.SelectElement("libraries"), "common members carry no libraries")

	coreOnly := widget.FindElement("./elements/element[@api='M:Contoso.Widget.CoreOnly']")
	require.NotNil(t, coreOnly)
	assert.Equal(t, []string{"Contoso.Core"}, assemblies(coreOnly.FindElements("./libraries/library")))

	extraOnly := widget.FindElement("./elements/element[@api='M:Contoso.Widget.ExtraOnly']")
	require.NotNil(t, extraOnly, "members missing from the kept copy are added")
	assert.Equal(t, []string{"Contoso.Extra"}, assemblies(extraOnly.FindElements("./libraries/library")))

	members := apis(doc, "M:Contoso.Widget.Run")
	require.Len(t, members, 1)
	assert.Equal(t, []string{"Contoso.Core", "Contoso.Extra"}, assemblies(members[0].FindElements("./containers/library")))

	// Entries without duplicates are copied unchanged.
	assert.Len(t, apis(doc, "N:Contoso"), 1)
	value := doc.FindElement("//api[@id='M:Contoso.Widget.CoreOnly']/value")
	require.NotNil(t, value)
	assert.Equal(t, "a & b", value.Text())

	// Order of first occurrence is preserved.
	var ids []string
	for _, el := range doc.FindElements("//apis/api") {
		ids = append(ids, el.SelectAttrValue("id", ""))
	}
	assert.Equal(t, []string{"N:Contoso", "T:Contoso.Widget", "M:Contoso.Widget.Run", "M:Contoso.Widget.CoreOnly"}, ids)

	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file must be renamed into place")
	assert.Equal(t, "reflection.xml", entries[0].Name())
}

func TestMerge_NoDuplicatesLeavesFileUntouched(t *testing.T) {
	const single = `<?xml version="1.0" encoding="utf-8"?>
<reflection>
  <apis>
    <api id="T:Contoso.Widget"><apidata name="Widget" /></api>
    <api id="M:Contoso.Widget.Run"><apidata name="Run" /></api>
  </apis>
</reflection>
`
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/out/reflection.xml", single)

	res, err := New(fs).Merge(t.Context(), "/out/reflection.xml")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	data, err := afero.ReadFile(fs, "/out/reflection.xml")
	require.NoError(t, err)
	assert.Equal(t, single, string(data))
}

func TestMerge_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/out/reflection.xml", duplicated)
	m := New(fs)

	_, err := m.Merge(t.Context(), "/out/reflection.xml")
	require.NoError(t, err)
	first, err := afero.ReadFile(fs, "/out/reflection.xml")
	require.NoError(t, err)

	res, err := m.Merge(t.Context(), "/out/reflection.xml")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	second, err := afero.ReadFile(fs, "/out/reflection.xml")
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestMerge_AttachesElementsToKeptCopy(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="utf-8"?>
<reflection>
  <apis>
    <api id="T:Contoso.Empty">
      <apidata name="Empty" />
      <containers><library assembly="A" /></containers>
    </api>
    <api id="T:Contoso.Empty">
      <apidata name="Empty" />
      <elements><element api="M:Contoso.Empty.Run" /></elements>
      <containers><library assembly="B" /></containers>
    </api>
  </apis>
</reflection>
`
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/r.xml", doc)

	res, err := New(fs).Merge(t.Context(), "/r.xml")
	require.NoError(t, err)
	assert.Equal(t, 2, res.MergedTypes)

	merged := readDoc(t, fs, "/r.xml")
	empty := apis(merged, "T:Contoso.Empty")
	require.Len(t, empty, 1)

	children := empty[0].ChildElements()
	require.Len(t, children, 3)
	assert.Equal(t, []string{"apidata", "elements", "containers"}, []string{children[0].Tag, children[1].Tag, children[2].Tag})

	run := empty[0].FindElement("./elements/element[@api='M:Contoso.Empty.Run']")
	require.NotNil(t, run)
	assert.Equal(t, []string{"B"}, assemblies(run.FindElements("./libraries/library")))
}

func TestMerge_SameAssemblyNameListedOnce(t *testing.T) {
	const doc = `<reflection><apis>
<api id="M:X.Run"><containers><library assembly="A" module="one" /></containers></api>
<api id="M:X.Run"><containers><library assembly="A" module="two" /></containers></api>
<api id="M:X.Run"><containers><library assembly="B" /></containers></api>
</apis></reflection>`
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/r.xml", doc)

	res, err := New(fs).Merge(t.Context(), "/r.xml")
	require.NoError(t, err)
	assert.Equal(t, 1, res.MergedMembers)

	run := apis(readDoc(t, fs, "/r.xml"), "M:X.Run")
	require.Len(t, run, 1)
	libs := run[0].FindElements("./containers/library")
	assert.Equal(t, []string{"A", "B"}, assemblies(libs))
	assert.Equal(t, "one", libs[0].SelectAttrValue("module", ""))
}

func TestMerge_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := New(afero.NewMemMapFs()).Merge(t.Context(), "/missing.xml")
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryFileSystem))
	})

	t.Run("malformed document", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFile(t, fs, "/bad.xml", `<reflection><apis><api id="a"></apis>`)
		_, err := New(fs).Merge(t.Context(), "/bad.xml")
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryMerge))
	})
}
