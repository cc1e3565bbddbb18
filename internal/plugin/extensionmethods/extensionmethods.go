// Package extensionmethods lists extension methods among the elements of the types
// they extend.
package extensionmethods

import (
	"fmt"
	"log/slog"
	"sort"

	"git.home.luguber.info/inful/mrefbuilder/internal/literal"
	"git.home.luguber.info/inful/mrefbuilder/internal/logfields"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
	"git.home.luguber.info/inful/mrefbuilder/internal/plugin"
	"git.home.luguber.info/inful/mrefbuilder/internal/reflection"
	"git.home.luguber.info/inful/mrefbuilder/internal/util/sets"
)

// Name is the add-in name used in the addins configuration list.
const Name = "extension-methods"

const extensionAttribute = "System.Runtime.CompilerServices.ExtensionAttribute"

// Plugin indexes extension methods when the apis element starts and appends them to
// the elements list of every type they apply to.
type Plugin struct {
	plugin.BasePlugin

	logger  *slog.Logger
	targets map[*metadata.TypeNode][]*metadata.Method
}

// New creates the add-in.
func New() *Plugin {
	return &Plugin{}
}

// Metadata returns the add-in metadata.
func (p *Plugin) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{
		Name:        Name,
		Version:     "v1.0.0",
		Type:        plugin.PluginTypeAddIn,
		Description: "Lists extension methods in the elements of the types they extend",
		Capabilities: []string{
			plugin.CapabilityAPIs.String(),
			plugin.CapabilityElements.String(),
		},
	}
}

// Validate rejects options; the add-in has none.
func (p *Plugin) Validate(options map[string]any) error {
	if len(options) == 0 {
		return nil
	}
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return fmt.Errorf("unknown option %q", keys[0])
}

// Register installs the writer callbacks.
func (p *Plugin) Register(pluginCtx *plugin.PluginContext, w *reflection.Writer) error {
	p.logger = pluginCtx.Logger
	p.targets = make(map[*metadata.TypeNode][]*metadata.Method)
	w.RegisterStartTagCallback("apis", p.index)
	w.RegisterEndTagCallback("elements", p.writeElements)
	return nil
}

// Cleanup drops the index.
func (p *Plugin) Cleanup() error {
	p.targets = nil
	return nil
}

func (p *Plugin) index(w *reflection.Writer, info any) {
	namespaces, ok := info.([]*metadata.Namespace)
	if !ok {
		return
	}
	filter := w.Filter()
	count := 0
	for _, ns := range namespaces {
		for _, t := range ns.Types {
			if !filter.IsExposedType(t) {
				continue
			}
			for _, m := range t.DeclaredMembers {
				method, ok := m.(*metadata.Method)
				if !ok || !isExtension(method) || !filter.IsExposedMember(method) {
					continue
				}
				for _, target := range targetTypes(method.Parameters[0].Type) {
					if target == nil {
						continue
					}
					p.targets[target] = append(p.targets[target], method)
				}
				count++
			}
		}
	}
	if p.logger != nil {
		p.logger.Debug("Indexed extension methods", logfields.AddIn(Name), logfields.Count(count))
	}
}

func isExtension(m *metadata.Method) bool {
	return m.Static && len(m.Parameters) > 0 && metadata.FindAttribute(m.Attributes, extensionAttribute) != nil
}

// targetTypes returns the template types an extension method applies to. A generic
// receiver applies to its constraint types, or to every type when unconstrained.
func targetTypes(receiver *metadata.TypeNode) []*metadata.TypeNode {
	for receiver.Kind == metadata.KindReference || receiver.Kind == metadata.KindOptionalModifier ||
		receiver.Kind == metadata.KindRequiredModifier {
		receiver = receiver.ElementType
	}
	if !receiver.IsTemplateParameter() {
		return []*metadata.TypeNode{receiver.TemplateType()}
	}

	var out []*metadata.TypeNode
	if receiver.DeclaredBase != nil {
		out = append(out, receiver.DeclaredBase.TemplateType())
	}
	for _, i := range receiver.DeclaredInterfaces {
		out = append(out, i.TemplateType())
	}
	if len(out) == 0 {
		out = append(out, objectType(receiver))
	}
	return out
}

// objectType finds System.Object through the declaring type of the method owning a
// generic parameter.
func objectType(param *metadata.TypeNode) *metadata.TypeNode {
	if param.DeclaringMember == nil {
		return nil
	}
	t := param.DeclaringMember.Info().DeclaringType
	for t != nil && t.BaseType() != nil {
		t = t.BaseType()
	}
	return t
}

// extended returns the template types whose extension methods apply to t: the type,
// its ancestors and its interfaces.
func extended(t *metadata.TypeNode) []*metadata.TypeNode {
	seen := sets.New[*metadata.TypeNode]()
	var out []*metadata.TypeNode
	add := func(x *metadata.TypeNode) bool {
		tt := x.TemplateType()
		if !seen.AddNew(tt) {
			return false
		}
		out = append(out, tt)
		return true
	}
	var addInterfaces func(x *metadata.TypeNode)
	addInterfaces = func(x *metadata.TypeNode) {
		for _, i := range x.Interfaces() {
			if add(i) {
				addInterfaces(i)
			}
		}
	}

	add(t)
	addInterfaces(t)
	for _, a := range t.Ancestors() {
		add(a)
		addInterfaces(a)
	}
	return out
}

func (p *Plugin) writeElements(w *reflection.Writer, info any) {
	list, ok := info.(*reflection.ElementList)
	if !ok || list.Type.Kind == metadata.KindEnum {
		return
	}

	var methods []*metadata.Method
	seen := sets.New[*metadata.Method]()
	for _, target := range extended(list.Type) {
		for _, m := range p.targets[target] {
			if seen.AddNew(m) {
				methods = append(methods, m)
			}
		}
	}
	namer := w.Namer()
	sort.SliceStable(methods, func(i, j int) bool {
		return namer.MemberName(methods[i]) < namer.MemberName(methods[j])
	})

	for _, m := range methods {
		writeExtension(w, m)
	}
}

func writeExtension(w *reflection.Writer, m *metadata.Method) {
	x := w.XML()
	x.WriteStartElement("element")
	x.WriteAttributeString("api", literal.ValidXMLValue(w.Namer().MemberName(m)))

	x.WriteStartElement("apidata")
	w.WriteStringAttribute("name", m.Name)
	w.WriteStringAttribute("group", "member")
	w.WriteStringAttribute("subgroup", "method")
	w.WriteStringAttribute("subsubgroup", "extension")
	x.WriteEndElement()

	x.WriteStartElement("memberdata")
	w.WriteStringAttribute("visibility", w.Filter().Visibility(m))
	x.WriteEndElement()

	w.WriteProcedureData(m)
	w.WriteGenericParameters(m.TemplateParameters)
	w.WriteParameters(m.Parameters[1:])
	w.WriteReturns(m)
	w.WriteContainers(m)

	x.WriteEndElement()
}
