package reflection

import (
	"bytes"
	"testing"

	"github.com/beevik/etree"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mrefbuilder/internal/apifilter"
	"git.home.luguber.info/inful/mrefbuilder/internal/loader"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
	"git.home.luguber.info/inful/mrefbuilder/internal/namer"
	"git.home.luguber.info/inful/mrefbuilder/internal/sourcecontext"
)

const widgetsYAML = `
assembly:
  name: Contoso.Widgets
  version: 1.2.0.0
types:
  - name: Shape
    namespace: Contoso.Widgets
    abstract: true
    methods:
      - {name: Area, returns: double, abstract: true}
      - {name: Describe, returns: string, virtual: true}
    properties:
      - {name: Name, type: string, get: true, set: {visibility: protected}}
  - name: Circle
    namespace: Contoso.Widgets
    base: Shape
    constructors:
      - parameters: [{name: radius, type: double}]
    fields:
      - {name: Pi, type: decimal, const: true, value: "3.14"}
      - {name: Max, type: int, const: true, value: 10}
      - {name: Label, type: string, const: true, value: "line\tone"}
    methods:
      - {name: Area, returns: double, override: true}
      - name: Scale
        parameters:
          - {name: factor, type: double, default: 1.5}
  - name: Color
    namespace: Contoso.Widgets
    kind: enum
    attributes: [{type: System.Flags}]
    fields:
      - {name: None}
      - {name: Red}
      - {name: Green, value: 2}
      - {name: All, value: "Red|Green"}
`

const shapesYAML = `
assembly:
  name: Contoso.Shapes
types:
  - name: IShape
    namespace: Contoso.Shapes
    kind: interface
    methods:
      - {name: Draw}
  - name: IScalable
    namespace: Contoso.Shapes
    kind: interface
    interfaces: [IShape]
    methods:
      - {name: Resize, parameters: [{name: factor, type: double}]}
  - name: Square
    namespace: Contoso.Shapes
    interfaces: [IScalable, IShape]
    methods:
      - {name: Draw}
      - {name: Resize, parameters: [{name: factor, type: double}]}
  - name: Box
    namespace: Contoso.Shapes
    generic: [{name: T, constraints: [class]}]
    methods:
      - {name: Get, returns: T}
      - name: Find
        returns: {type: string, nullable: 2}
        parameters:
          - {name: keys, type: "string[]", nullable: [1, 2]}
      - name: Pair
        returns: {type: "System.ValueTuple` + "`" + `2[System.Int32,System.String]", tuple_names: [count, label]}
  - name: Legacy
    namespace: Contoso.Shapes
    attributes:
      - {type: System.Obsolete, args: ["Types with embedded references are not supported in this version of your compiler."]}
    methods:
      - {name: Run}
  - name: Retired
    namespace: Contoso.Shapes
    attributes:
      - {type: System.Obsolete, args: ["Use Square instead"]}
    methods:
      - {name: Run}
`

type fixture struct {
	files      map[string]string
	documented []string
	configure  func(w *Writer)
	fs         afero.Fs
}

func render(t *testing.T, fx fixture) (*etree.Document, *Writer) {
	t.Helper()
	fs := fx.fs
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	for name, content := range fx.files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	res, err := loader.New(fs).Load(t.Context(), fx.documented, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := New(&buf, apifilter.New(apifilter.DefaultOptions()), namer.NewDocIDNamer())
	if fx.configure != nil {
		fx.configure(w)
	}
	require.NoError(t, w.Write(res.Assemblies))
	require.NoError(t, w.Close())

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))
	return doc, w
}

func renderWidgets(t *testing.T) (*etree.Document, *Writer) {
	t.Helper()
	return render(t, fixture{files: map[string]string{"widgets.yaml": widgetsYAML}, documented: []string{"widgets.yaml"}})
}

func renderShapes(t *testing.T) *etree.Document {
	t.Helper()
	doc, _ := render(t, fixture{files: map[string]string{"shapes.yaml": shapesYAML}, documented: []string{"shapes.yaml"}})
	return doc
}

func api(t *testing.T, doc *etree.Document, id string) *etree.Element {
	t.Helper()
	el := withAttr(doc.FindElements("//api"), "id", id)
	require.NotNil(t, el, "api %s not found", id)
	return el
}

// withAttr compares ids directly; etree paths cannot filter on values containing brackets.
func withAttr(list []*etree.Element, key, value string) *etree.Element {
	for _, e := range list {
		if e.SelectAttrValue(key, "") == value {
			return e
		}
	}
	return nil
}

func attrs(list []*etree.Element, key string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.SelectAttrValue(key, ""))
	}
	return out
}

func TestWrite_Document(t *testing.T) {
	doc, w := renderWidgets(t)

	root := doc.Root()
	require.Equal(t, "reflection", root.Tag)

	asm := root.FindElement("./assemblies/assembly[@name='Contoso.Widgets']")
	require.NotNil(t, asm)
	data := asm.SelectElement("assemblydata")
	require.NotNil(t, data)
	assert.Equal(t, "1.2.0.0", data.SelectAttrValue("version", ""))
	assert.Equal(t, "None", data.SelectAttrValue("hash", ""))

	ns := api(t, doc, "N:Contoso.Widgets")
	nsData := ns.SelectElement("apidata")
	assert.Equal(t, "namespace", nsData.SelectAttrValue("group", ""))
	assert.Equal(t, []string{"T:Contoso.Widgets.Shape", "T:Contoso.Widgets.Circle", "T:Contoso.Widgets.Color"},
		attrs(ns.FindElements("./elements/element"), "api"))

	counts := w.Counts()
	assert.Equal(t, 1, counts.Namespaces)
	assert.Equal(t, 3, counts.Types)
	assert.Positive(t, counts.Members)
	assert.Len(t, root.FindElements("./apis/api"), counts.Namespaces+counts.Types+counts.Members)
}

func TestWrite_TypeData(t *testing.T) {
	doc, _ := renderWidgets(t)

	shape := api(t, doc, "T:Contoso.Widgets.Shape")
	apidata := shape.SelectElement("apidata")
	assert.Equal(t, "Shape", apidata.SelectAttrValue("name", ""))
	assert.Equal(t, "type", apidata.SelectAttrValue("group", ""))
	assert.Equal(t, "class", apidata.SelectAttrValue("subgroup", ""))

	typedata := shape.SelectElement("typedata")
	assert.Equal(t, "public", typedata.SelectAttrValue("visibility", ""))
	assert.Equal(t, "true", typedata.SelectAttrValue("abstract", ""))
	assert.Nil(t, typedata.SelectAttr("sealed"))

	library := shape.FindElement("./containers/library")
	require.NotNil(t, library)
	assert.Equal(t, "Contoso.Widgets", library.SelectAttrValue("assembly", ""))
	assert.Equal(t, "DynamicallyLinkedLibrary", library.SelectAttrValue("kind", ""))
	assert.Equal(t, "N:Contoso.Widgets", shape.FindElement("./containers/namespace").SelectAttrValue("api", ""))

	color := api(t, doc, "T:Contoso.Widgets.Color")
	assert.Equal(t, "enumeration", color.SelectElement("apidata").SelectAttrValue("subgroup", ""))
	assert.Nil(t, color.SelectElement("enumerationbase"))
	flags := color.FindElement("./attributes/attribute/type[@api='T:System.FlagsAttribute']")
	assert.NotNil(t, flags)
}

func TestWrite_Hierarchy(t *testing.T) {
	doc, _ := renderWidgets(t)

	shape := api(t, doc, "T:Contoso.Widgets.Shape")
	assert.Equal(t, []string{"T:Contoso.Widgets.Circle"}, attrs(shape.FindElements("./family/descendents/type"), "api"))

	circle := api(t, doc, "T:Contoso.Widgets.Circle")
	assert.Equal(t, []string{"T:Contoso.Widgets.Shape", "T:System.Object"},
		attrs(circle.FindElements("./family/ancestors/type"), "api"))
	assert.Nil(t, circle.FindElement("./family/descendents"))
}

func TestWrite_Elements(t *testing.T) {
	doc, _ := renderWidgets(t)
	circle := api(t, doc, "T:Contoso.Widgets.Circle")

	element := func(id string) *etree.Element {
		return withAttr(circle.FindElements("./elements/element"), "api", id)
	}

	t.Run("declared", func(t *testing.T) {
		for _, id := range []string{
			"M:Contoso.Widgets.Circle.#ctor(System.Double)",
			"F:Contoso.Widgets.Circle.Max",
			"M:Contoso.Widgets.Circle.Area",
		} {
			el := element(id)
			require.NotNil(t, el, id)
			assert.Nil(t, el.SelectElement("apidata"), id)
		}
	})

	t.Run("inherited from documented base", func(t *testing.T) {
		describe := element("M:Contoso.Widgets.Shape.Describe")
		require.NotNil(t, describe)
		assert.Nil(t, describe.SelectElement("apidata"))
		assert.NotNil(t, element("P:Contoso.Widgets.Shape.Name"))
	})

	t.Run("hidden and constructors skipped", func(t *testing.T) {
		assert.Nil(t, element("M:Contoso.Widgets.Shape.Area"))
		assert.Nil(t, element("M:Contoso.Widgets.Shape.#ctor"))
		assert.Nil(t, element("M:System.Object.#ctor"))
	})

	t.Run("reference assembly members inlined", func(t *testing.T) {
		toString := element("M:System.Object.ToString")
		require.NotNil(t, toString)
		data := toString.SelectElement("apidata")
		require.NotNil(t, data)
		assert.Equal(t, "ToString", data.SelectAttrValue("name", ""))
		assert.Nil(t, toString.SelectElement("sourceContext"))
	})
}

func TestWrite_FieldValues(t *testing.T) {
	doc, _ := renderWidgets(t)

	limit := api(t, doc, "F:Contoso.Widgets.Circle.Max")
	assert.Equal(t, "true", limit.SelectElement("fielddata").SelectAttrValue("literal", ""))
	assert.Equal(t, "10", limit.SelectElement("value").Text())
	assert.Equal(t, "T:System.Int32", limit.FindElement("./returns/type").SelectAttrValue("api", ""))
	assert.Equal(t, "false", limit.FindElement("./returns/type").SelectAttrValue("ref", ""))

	pi := api(t, doc, "F:Contoso.Widgets.Circle.Pi")
	fd := pi.SelectElement("fielddata")
	assert.Equal(t, "true", fd.SelectAttrValue("literal", ""))
	assert.Equal(t, "false", fd.SelectAttrValue("initonly", ""))
	assert.Equal(t, "3.14", pi.SelectElement("value").Text())

	label := api(t, doc, "F:Contoso.Widgets.Circle.Label")
	assert.Equal(t, `line\tone`, label.SelectElement("value").Text())

	all := api(t, doc, "F:Contoso.Widgets.Color.All")
	assert.Equal(t, "3", all.SelectElement("value").Text())
	assert.Equal(t, "T:Contoso.Widgets.Color", all.FindElement("./returns/type").SelectAttrValue("api", ""))
}

func TestWrite_Parameters(t *testing.T) {
	doc, _ := renderWidgets(t)

	scale := api(t, doc, "M:Contoso.Widgets.Circle.Scale(System.Double)")
	param := scale.FindElement("./parameters/parameter[@name='factor']")
	require.NotNil(t, param)
	assert.Equal(t, "true", param.SelectAttrValue("optional", ""))
	assert.Equal(t, "T:System.Double", param.SelectElement("type").SelectAttrValue("api", ""))
	assert.Equal(t, "1.5", param.FindElement("./argument/value").Text())
	assert.Nil(t, scale.SelectElement("returns"))

	ctor := api(t, doc, "M:Contoso.Widgets.Circle.#ctor(System.Double)")
	assert.Equal(t, "constructor", ctor.SelectElement("apidata").SelectAttrValue("subgroup", ""))
	assert.Nil(t, ctor.SelectElement("proceduredata"))
	assert.NotNil(t, ctor.FindElement("./parameters/parameter[@name='radius']"))
}

func TestWrite_Interfaces(t *testing.T) {
	doc := renderShapes(t)

	shape := api(t, doc, "T:Contoso.Shapes.IShape")
	assert.ElementsMatch(t, []string{"T:Contoso.Shapes.IScalable", "T:Contoso.Shapes.Square"},
		attrs(shape.FindElements("./implementors/type"), "api"))

	scalable := api(t, doc, "T:Contoso.Shapes.IScalable")
	assert.Equal(t, []string{"T:Contoso.Shapes.IShape"}, attrs(scalable.FindElements("./implements/type"), "api"))
	assert.Equal(t, []string{"M:Contoso.Shapes.IScalable.Resize(System.Double)", "M:Contoso.Shapes.IShape.Draw"},
		attrs(scalable.FindElements("./elements/element"), "api"))

	draw := api(t, doc, "M:Contoso.Shapes.Square.Draw")
	assert.Equal(t, []string{"M:Contoso.Shapes.IShape.Draw"}, attrs(draw.FindElements("./implements/member"), "api"))
}

func TestWrite_Generics(t *testing.T) {
	doc := renderShapes(t)

	box := api(t, doc, "T:Contoso.Shapes.Box`1")
	assert.Equal(t, "Box", box.SelectElement("apidata").SelectAttrValue("name", ""))
	constrained := box.FindElement("./templates/template[@name='T']/constrained")
	require.NotNil(t, constrained)
	assert.Equal(t, "true", constrained.SelectAttrValue("ref", ""))

	get := api(t, doc, "M:Contoso.Shapes.Box`1.Get")
	tmpl := get.FindElement("./returns/template")
	require.NotNil(t, tmpl)
	assert.Equal(t, "T", tmpl.SelectAttrValue("name", ""))
	assert.Equal(t, "0", tmpl.SelectAttrValue("index", ""))
	assert.Equal(t, "T:Contoso.Shapes.Box`1", tmpl.SelectAttrValue("api", ""))
}

func TestWrite_NullableAnnotations(t *testing.T) {
	doc := renderShapes(t)

	find := api(t, doc, "M:Contoso.Shapes.Box`1.Find(System.String[])")
	assert.Equal(t, "true", find.FindElement("./returns/type").SelectAttrValue("nullable", ""))

	array := find.FindElement("./parameters/parameter[@name='keys']/arrayOf")
	require.NotNil(t, array)
	assert.Nil(t, array.SelectAttr("nullable"))
	assert.Equal(t, "1", array.SelectAttrValue("rank", ""))
	assert.Equal(t, "true", array.SelectElement("type").SelectAttrValue("nullable", ""))
}

const catalogYAML = `
assembly:
  name: Contoso.Catalog
types:
  - name: Index
    namespace: Contoso.Catalog
    methods:
      - name: Lookup
        returns: {type: "System.Collections.Generic.Dictionary` + "`" + `2[System.String,System.String[]]", nullable: [2, 1, 2, 1]}
`

func TestWrite_NullableAnnotationsFollowTypeOrder(t *testing.T) {
	doc, _ := render(t, fixture{files: map[string]string{"catalog.yaml": catalogYAML}, documented: []string{"catalog.yaml"}})

	lookup := api(t, doc, "M:Contoso.Catalog.Index.Lookup")
	dict := lookup.FindElement("./returns/type")
	require.NotNil(t, dict)
	assert.Equal(t, "true", dict.SelectAttrValue("nullable", ""))

	key := dict.FindElement("./specialization/type")
	require.NotNil(t, key)
	assert.Equal(t, "T:System.String", key.SelectAttrValue("api", ""))
	assert.Nil(t, key.SelectAttr("nullable"))

	values := dict.FindElement("./specialization/arrayOf")
	require.NotNil(t, values)
	assert.Equal(t, "true", values.SelectAttrValue("nullable", ""))
	assert.Nil(t, values.SelectElement("type").SelectAttr("nullable"))
}

func TestWrite_TupleElementNames(t *testing.T) {
	doc := renderShapes(t)

	pair := api(t, doc, "M:Contoso.Shapes.Box`1.Pair")
	tuple := pair.FindElement("./returns/type")
	require.NotNil(t, tuple)
	assert.Equal(t, "T:System.ValueTuple`2", tuple.SelectAttrValue("api", ""))
	args := tuple.FindElements("./specialization/type")
	assert.Equal(t, []string{"count", "label"}, attrs(args, "elementName"))
	assert.Equal(t, []string{"T:System.Int32", "T:System.String"}, attrs(args, "api"))
}

func TestWrite_ObsoleteCompilerMarkerDropped(t *testing.T) {
	doc := renderShapes(t)

	legacy := api(t, doc, "T:Contoso.Shapes.Legacy")
	assert.Nil(t, legacy.FindElement("./attributes/attribute/type[@api='T:System.ObsoleteAttribute']"))

	retired := api(t, doc, "T:Contoso.Shapes.Retired")
	attr := retired.FindElement("./attributes/attribute")
	require.NotNil(t, attr)
	assert.Equal(t, "T:System.ObsoleteAttribute", attr.SelectElement("type").SelectAttrValue("api", ""))
	assert.Equal(t, "Use Square instead", attr.FindElement("./argument/value").Text())
}

func TestWrite_Callbacks(t *testing.T) {
	var namespaces int
	doc, _ := render(t, fixture{
		files:      map[string]string{"widgets.yaml": widgetsYAML},
		documented: []string{"widgets.yaml"},
		configure: func(w *Writer) {
			w.RegisterStartTagCallback("apis", func(_ *Writer, info any) {
				namespaces = len(info.([]*metadata.Namespace))
			})
			w.RegisterStartTagCallback("typedata", func(w *Writer, info any) {
				w.XML().WriteAttributeString("kind", info.(*metadata.TypeNode).Kind.String())
			})
			w.RegisterEndTagCallback("elements", func(w *Writer, info any) {
				list := info.(*ElementList)
				if list.Type.Name == "Circle" {
					w.XML().WriteStartElement("element")
					w.XML().WriteAttributeString("api", "M:Contoso.Widgets.Added")
					w.XML().WriteEndElement()
				}
			})
		},
	})

	assert.Equal(t, 1, namespaces)
	circle := api(t, doc, "T:Contoso.Widgets.Circle")
	assert.Equal(t, "class", circle.SelectElement("typedata").SelectAttrValue("kind", ""))
	elements := circle.FindElements("./elements/element")
	require.NotEmpty(t, elements)
	assert.Equal(t, "M:Contoso.Widgets.Added", elements[len(elements)-1].SelectAttrValue("api", ""))
}

func TestWrite_MemberOrder(t *testing.T) {
	const yaml = `
assembly: {name: Contoso.Order}
types:
  - name: Sorted
    namespace: Contoso.Order
    methods:
      - {name: Zeta}
      - {name: Alpha}
      - {name: Mid}
`
	ids := func(order MemberOrder) []string {
		doc, _ := render(t, fixture{
			files:      map[string]string{"order.yaml": yaml},
			documented: []string{"order.yaml"},
			configure:  func(w *Writer) { w.WithMemberOrder(order) },
		})
		var out []string
		for _, el := range doc.FindElements("//api") {
			if id := el.SelectAttrValue("id", ""); len(id) > 2 && id[:2] == "M:" {
				out = append(out, id)
			}
		}
		return out
	}

	assert.Equal(t, []string{
		"M:Contoso.Order.Sorted.#ctor", "M:Contoso.Order.Sorted.Zeta",
		"M:Contoso.Order.Sorted.Alpha", "M:Contoso.Order.Sorted.Mid",
	}, ids(OrderDeclaration))
	assert.Equal(t, []string{
		"M:Contoso.Order.Sorted.#ctor", "M:Contoso.Order.Sorted.Alpha",
		"M:Contoso.Order.Sorted.Mid", "M:Contoso.Order.Sorted.Zeta",
	}, ids(OrderName))
}

func TestWrite_SourceContext(t *testing.T) {
	const yaml = `
assembly: {name: Contoso.Sources}
types:
  - name: Located
    namespace: Contoso.Sources
    methods:
      - {name: Run, source: {file: /src/Sources/Located Type.cs, line: 12}}
    fields:
      - {name: Count, type: int}
`
	fs := afero.NewMemMapFs()
	doc, _ := render(t, fixture{
		fs:         fs,
		files:      map[string]string{"sources.yaml": yaml},
		documented: []string{"sources.yaml"},
		configure: func(w *Writer) {
			w.WithSourceResolver(sourcecontext.New(fs, "/src"))
		},
	})

	located := api(t, doc, "T:Contoso.Sources.Located")
	ctx := located.SelectElement("sourceContext")
	require.NotNil(t, ctx)
	assert.Equal(t, "Sources/Located+Type.cs", ctx.SelectAttrValue("file", ""))
	assert.Nil(t, ctx.SelectAttr("startLine"))

	run := api(t, doc, "M:Contoso.Sources.Located.Run")
	assert.Equal(t, "12", run.SelectElement("sourceContext").SelectAttrValue("startLine", ""))

	count := api(t, doc, "F:Contoso.Sources.Located.Count")
	assert.Equal(t, "Sources/Located+Type.cs", count.SelectElement("sourceContext").SelectAttrValue("file", ""))
}

func TestWrite_NoSourceContextWithoutResolver(t *testing.T) {
	doc, _ := renderWidgets(t)
	assert.Nil(t, doc.FindElement("//sourceContext"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestWrite_OutputErrorIsLatched(t *testing.T) {
	w := New(failingWriter{}, apifilter.New(apifilter.DefaultOptions()), namer.NewDocIDNamer())
	err := w.Write(nil)
	if err == nil {
		err = w.Close()
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
