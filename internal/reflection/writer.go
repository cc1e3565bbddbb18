// Package reflection streams the reflection data document: every exposed namespace,
// type and member of a set of assemblies, with the hierarchy, generics, nullability,
// attribute and literal detail the documentation transforms need.
package reflection

import (
	"io"
	"log/slog"
	"sort"

	"git.home.luguber.info/inful/mrefbuilder/internal/apifilter"
	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/mrefbuilder/internal/hierarchy"
	"git.home.luguber.info/inful/mrefbuilder/internal/literal"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
	"git.home.luguber.info/inful/mrefbuilder/internal/namer"
	"git.home.luguber.info/inful/mrefbuilder/internal/sourcecontext"
	"git.home.luguber.info/inful/mrefbuilder/internal/util/sets"
	"git.home.luguber.info/inful/mrefbuilder/internal/xmlwriter"
)

// TagCallback is invoked when the writer opens or closes an element it was registered
// for. The start callback runs while the start tag is still open, so it may add
// attributes; the end callback runs before the end tag, so it may add children.
//
// info depends on the element:
//
//	apis          []*metadata.Namespace
//	api, apidata  *metadata.Namespace or a metadata.Member
//	typedata      *metadata.TypeNode
//	memberdata    metadata.Member
//	elements      *ElementList
//	implements    []*metadata.TypeNode
//	implementors  []*metadata.TypeNode
type TagCallback func(w *Writer, info any)

// MemberOrder selects the order in which a type's members are written.
type MemberOrder string

const (
	OrderDeclaration MemberOrder = "declaration"
	OrderName        MemberOrder = "name"
)

// Counts are the numbers of API entries written.
type Counts struct {
	Namespaces int
	Types      int
	Members    int
}

// Writer emits reflection data for one build. It is not safe for concurrent use.
type Writer struct {
	xml     *xmlwriter.Writer
	filter  apifilter.Filter
	namer   namer.Namer
	sources *sourcecontext.Resolver
	order   MemberOrder
	logger  *slog.Logger

	index      *hierarchy.Index
	assemblies []*metadata.Assembly
	namespaces []*metadata.Namespace
	documented sets.Set[string]

	startCallbacks map[string][]TagCallback
	endCallbacks   map[string][]TagCallback

	counts Counts
}

// New returns a writer streaming to out.
func New(out io.Writer, filter apifilter.Filter, n namer.Namer) *Writer {
	return &Writer{
		xml:            xmlwriter.New(out),
		filter:         filter,
		namer:          n,
		order:          OrderDeclaration,
		logger:         slog.Default(),
		documented:     sets.New[string](),
		startCallbacks: make(map[string][]TagCallback),
		endCallbacks:   make(map[string][]TagCallback),
	}
}

// WithSourceResolver enables source context output.
func (w *Writer) WithSourceResolver(r *sourcecontext.Resolver) *Writer {
	w.sources = r
	return w
}

// WithMemberOrder sets the member order. Unknown values keep declaration order.
func (w *Writer) WithMemberOrder(order MemberOrder) *Writer {
	if order == OrderName {
		w.order = OrderName
	} else {
		w.order = OrderDeclaration
	}
	return w
}

// WithLogger sets the logger.
func (w *Writer) WithLogger(logger *slog.Logger) *Writer {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// RegisterStartTagCallback adds a callback for the start tag of the named element.
// Callbacks run in registration order.
func (w *Writer) RegisterStartTagCallback(name string, cb TagCallback) {
	w.startCallbacks[name] = append(w.startCallbacks[name], cb)
}

// RegisterEndTagCallback adds a callback for the end tag of the named element.
func (w *Writer) RegisterEndTagCallback(name string, cb TagCallback) {
	w.endCallbacks[name] = append(w.endCallbacks[name], cb)
}

func (w *Writer) startCallbacksFor(name string, info any) {
	for _, cb := range w.startCallbacks[name] {
		cb(w, info)
	}
}

func (w *Writer) endCallbacksFor(name string, info any) {
	for _, cb := range w.endCallbacks[name] {
		cb(w, info)
	}
}

// XML returns the underlying element writer for callbacks.
func (w *Writer) XML() *xmlwriter.Writer { return w.xml }

// Filter returns the visibility policy in use.
func (w *Writer) Filter() apifilter.Filter { return w.filter }

// Namer returns the API namer in use.
func (w *Writer) Namer() namer.Namer { return w.namer }

// Logger returns the writer's logger.
func (w *Writer) Logger() *slog.Logger { return w.logger }

// Namespaces returns the namespaces being written. It is empty before Write starts.
func (w *Writer) Namespaces() []*metadata.Namespace { return w.namespaces }

// Index returns the hierarchy index built for the current document.
func (w *Writer) Index() *hierarchy.Index { return w.index }

// Counts returns the numbers of namespaces, types and members written so far.
func (w *Writer) Counts() Counts { return w.counts }

// IsDocumented reports whether an assembly is part of the documented set.
func (w *Writer) IsDocumented(a *metadata.Assembly) bool {
	return a != nil && w.documented.Has(a.StrongName())
}

// Write emits the complete document for the documented assemblies. The hierarchy index
// is built from all of them before the first API entry is written. Output errors are
// latched and returned here and by Close.
func (w *Writer) Write(assemblies []*metadata.Assembly) error {
	w.assemblies = assemblies
	for _, a := range assemblies {
		w.documented.Add(a.StrongName())
	}
	w.namespaces = metadata.GroupNamespaces(assemblies)
	w.index = hierarchy.Build(w.namespaces, w.filter)

	w.xml.WriteStartDocument()
	w.xml.WriteStartElement("reflection")

	w.xml.WriteStartElement("assemblies")
	for _, a := range assemblies {
		w.writeAssembly(a)
	}
	w.xml.WriteEndElement()

	w.xml.WriteStartElement("apis")
	w.startCallbacksFor("apis", w.namespaces)
	for _, ns := range w.namespaces {
		if w.filter.IsExposedNamespace(ns) {
			w.visitNamespace(ns)
		}
	}
	w.endCallbacksFor("apis", w.namespaces)
	w.xml.WriteEndElement()

	w.xml.WriteEndElement()
	return w.Err()
}

// Err returns the first output error, classified as a reflection error.
func (w *Writer) Err() error {
	if err := w.xml.Err(); err != nil {
		return errors.WrapError(err, errors.CategoryReflection, "failed to write reflection data").Build()
	}
	return nil
}

// Close flushes the output and returns the first error encountered.
func (w *Writer) Close() error {
	if err := w.xml.Close(); err != nil {
		return errors.WrapError(err, errors.CategoryReflection, "failed to write reflection data").Build()
	}
	return nil
}

func (w *Writer) visitNamespace(ns *metadata.Namespace) {
	w.counts.Namespaces++
	w.xml.WriteStartElement("api")
	w.xml.WriteAttributeString("id", literal.ValidXMLValue(w.namer.NamespaceName(ns.Name)))
	w.startCallbacksFor("api", ns)
	w.writeNamespaceData(ns)
	w.writeNamespaceElements(ns)
	w.endCallbacksFor("api", ns)
	w.xml.WriteEndElement()

	for _, t := range ns.Types {
		if w.filter.IsExposedType(t) {
			w.visitType(t)
		}
	}
}

func (w *Writer) visitType(t *metadata.TypeNode) {
	w.counts.Types++
	w.writeType(t)
	for _, m := range w.sortMembers(w.exposedDeclaredMembers(t)) {
		w.visitMember(m)
	}
}

func (w *Writer) visitMember(m metadata.Member) {
	w.counts.Members++
	w.xml.WriteStartElement("api")
	w.xml.WriteAttributeString("id", literal.ValidXMLValue(w.namer.MemberName(m)))
	w.startCallbacksFor("api", m)
	w.WriteMember(m, true)
	w.endCallbacksFor("api", m)
	w.xml.WriteEndElement()
}

func (w *Writer) exposedDeclaredMembers(t *metadata.TypeNode) []metadata.Member {
	var out []metadata.Member
	for _, m := range t.Members() {
		if _, nested := m.(*metadata.TypeNode); nested {
			continue
		}
		if w.filter.IsExposedMember(m) {
			out = append(out, m)
		}
	}
	return out
}

func (w *Writer) sortMembers(members []metadata.Member) []metadata.Member {
	if w.order != OrderName {
		return members
	}
	names := make(map[metadata.Member]string, len(members))
	for _, m := range members {
		names[m] = w.namer.MemberName(metadata.TemplateMember(m))
	}
	sort.SliceStable(members, func(i, j int) bool { return names[members[i]] < names[members[j]] })
	return members
}

// WriteStringAttribute writes an attribute with invalid XML characters escaped.
func (w *Writer) WriteStringAttribute(name, value string) {
	w.xml.WriteAttributeString(name, literal.ValidXMLValue(value))
}

// WriteBooleanAttribute writes a true/false attribute.
func (w *Writer) WriteBooleanAttribute(name string, value bool) {
	if value {
		w.xml.WriteAttributeString(name, "true")
	} else {
		w.xml.WriteAttributeString(name, "false")
	}
}

// writeFlag writes a boolean attribute only when it differs from its default.
func (w *Writer) writeFlag(name string, value, def bool) {
	if value != def {
		w.WriteBooleanAttribute(name, value)
	}
}
