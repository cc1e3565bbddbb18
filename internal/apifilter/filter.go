// Package apifilter decides which namespaces, types, members and attributes are part
// of the documented API surface.
package apifilter

import (
	"strings"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
	"git.home.luguber.info/inful/mrefbuilder/internal/util/sets"
)

// Filter is the visibility policy consulted while writing reflection data.
type Filter interface {
	IsExposedNamespace(ns *metadata.Namespace) bool
	IsExposedType(t *metadata.TypeNode) bool
	IsExposedMember(m metadata.Member) bool
	IsVisible(m metadata.Member) bool
	IsDocumentedInterface(t *metadata.TypeNode) bool
	IsExposedAttribute(a *metadata.Attribute) bool
	HasExposedMembers(t *metadata.TypeNode) bool
	Visibility(m metadata.Member) string
	IncludeAttributes() bool
}

// Options configures a VisibilityFilter.
type Options struct {
	IncludePrivate                          bool
	IncludeInternal                         bool
	IncludeProtected                        bool
	ProtectedInternalAsProtected            bool
	IncludePrivateFields                    bool
	IncludeExplicitInterfaceImplementations bool
	IncludeAttributes                       bool
	// Exclude lists API identifiers to drop. N: entries drop a namespace, T: entries
	// a type and its nested types, and M:, P:, F:, E: entries every overload of the
	// named member ("M:Contoso.Widget.Reset").
	Exclude []string
	// ExcludedAttributes lists attribute type full names that are never written, in
	// addition to the compiler attributes in CompilerAttributes.
	ExcludedAttributes []string
}

// DefaultOptions documents the public and protected surface with attributes.
func DefaultOptions() Options {
	return Options{
		IncludeProtected:                        true,
		ProtectedInternalAsProtected:            true,
		IncludeExplicitInterfaceImplementations: true,
		IncludeAttributes:                       true,
	}
}

// CompilerAttributes are emitted by compilers to encode metadata and carry no
// documentation value.
var CompilerAttributes = []string{
	"System.Runtime.CompilerServices.CompilerGeneratedAttribute",
	"System.Runtime.CompilerServices.NullableAttribute",
	"System.Runtime.CompilerServices.NullableContextAttribute",
	"System.Runtime.CompilerServices.NullablePublicOnlyAttribute",
	"System.Runtime.CompilerServices.TupleElementNamesAttribute",
	"System.Runtime.CompilerServices.ExtensionAttribute",
	"System.Runtime.CompilerServices.DecimalConstantAttribute",
	"System.Runtime.CompilerServices.IsReadOnlyAttribute",
	"System.Runtime.CompilerServices.IsByRefLikeAttribute",
	"System.Runtime.CompilerServices.AsyncStateMachineAttribute",
	"System.Runtime.CompilerServices.IteratorStateMachineAttribute",
	"System.Runtime.CompilerServices.DynamicAttribute",
	"System.Runtime.CompilerServices.RefSafetyRulesAttribute",
	"System.Runtime.CompilerServices.RequiredMemberAttribute",
	"System.Runtime.CompilerServices.CompilerFeatureRequiredAttribute",
	"System.Diagnostics.DebuggerHiddenAttribute",
	"System.Diagnostics.DebuggerStepThroughAttribute",
	"System.Diagnostics.DebuggerNonUserCodeAttribute",
	"System.Reflection.DefaultMemberAttribute",
}

// VisibilityFilter is the default Filter driven by Options.
type VisibilityFilter struct {
	opts               Options
	excludedNamespaces sets.Set[string]
	excludedTypes      sets.Set[string]
	excludedMembers    sets.Set[string]
	excludedAttributes sets.Set[string]
}

// New builds a filter from options.
func New(opts Options) *VisibilityFilter {
	f := &VisibilityFilter{
		opts:               opts,
		excludedNamespaces: sets.New[string](),
		excludedTypes:      sets.New[string](),
		excludedMembers:    sets.New[string](),
		excludedAttributes: sets.New(CompilerAttributes...),
	}
	for _, a := range opts.ExcludedAttributes {
		f.excludedAttributes.Add(a)
	}
	for _, id := range opts.Exclude {
		prefix, name, ok := strings.Cut(id, ":")
		if !ok {
			continue
		}
		switch prefix {
		case "N":
			f.excludedNamespaces.Add(name)
		case "T":
			f.excludedTypes.Add(name)
		default:
			f.excludedMembers.Add(name)
		}
	}
	return f
}

func (f *VisibilityFilter) IncludeAttributes() bool { return f.opts.IncludeAttributes }

// dottedName is the type name used by exclusion entries: nested types joined by dots.
func dottedName(t *metadata.TypeNode) string {
	t = t.TemplateType()
	if t.DeclaringType != nil {
		return dottedName(t.DeclaringType) + "." + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

func compilerGenerated(name string) bool {
	return strings.ContainsAny(name, "<>$")
}

func (f *VisibilityFilter) visibilityAllowed(v metadata.Visibility) bool {
	switch v {
	case metadata.Public:
		return true
	case metadata.Family:
		return f.opts.IncludeProtected
	case metadata.FamilyOrAssembly:
		return f.opts.IncludeProtected || f.opts.IncludeInternal
	case metadata.FamilyAndAssembly, metadata.VisibilityAssembly:
		return f.opts.IncludeInternal
	case metadata.Private:
		return f.opts.IncludePrivate
	}
	return false
}

// IsVisible reports whether a member's declared accessibility is documented.
func (f *VisibilityFilter) IsVisible(m metadata.Member) bool {
	if m == nil {
		return false
	}
	info := m.Info()
	if _, isField := m.(*metadata.Field); isField && info.Visibility == metadata.Private {
		return f.opts.IncludePrivate && f.opts.IncludePrivateFields
	}
	return f.visibilityAllowed(info.Visibility)
}

// IsExposedType reports whether a type and all of its declaring types are visible
// and not excluded.
func (f *VisibilityFilter) IsExposedType(t *metadata.TypeNode) bool {
	if t == nil {
		return false
	}
	t = t.TemplateType()
	if t.Kind >= metadata.KindArray {
		return false
	}
	if compilerGenerated(t.Name) || f.excludedNamespaces.Has(t.NamespaceName()) {
		return false
	}
	for cur := t; cur != nil; cur = cur.DeclaringType {
		if !f.visibilityAllowed(cur.Visibility) || f.excludedTypes.Has(dottedName(cur)) {
			return false
		}
	}
	return true
}

// IsExposedNamespace reports whether a namespace has anything to document.
func (f *VisibilityFilter) IsExposedNamespace(ns *metadata.Namespace) bool {
	if ns == nil || f.excludedNamespaces.Has(ns.Name) {
		return false
	}
	for _, t := range ns.Types {
		if f.IsExposedType(t) || f.HasExposedMembers(t) {
			return true
		}
	}
	return false
}

// IsExposedMember reports whether a member is part of the documented surface.
func (f *VisibilityFilter) IsExposedMember(m metadata.Member) bool {
	if t, ok := m.(*metadata.TypeNode); ok {
		return f.IsExposedType(t)
	}
	if m == nil {
		return false
	}
	info := m.Info()
	if method, ok := m.(*metadata.Method); ok && method.AccessorFor != nil {
		return false
	}
	if strings.Contains(info.Name, "<") || info.DeclaringType == nil {
		return false
	}
	if !f.IsExposedType(info.DeclaringType) {
		return false
	}
	if f.excludedMembers.Has(dottedName(info.DeclaringType) + "." + info.Name) {
		return false
	}
	if info.Visibility == metadata.Private && f.isExplicitImplementation(m) {
		return f.opts.IncludeExplicitInterfaceImplementations
	}
	return f.IsVisible(m)
}

func (f *VisibilityFilter) isExplicitImplementation(m metadata.Member) bool {
	var implemented []*metadata.Method
	switch v := m.(type) {
	case *metadata.Method:
		implemented = v.ImplementedMethods
	case *metadata.Property, *metadata.Event:
		for _, acc := range metadata.Accessors(v) {
			implemented = append(implemented, acc.ImplementedMethods...)
		}
	}
	for _, im := range implemented {
		if f.IsDocumentedInterface(im.DeclaringType) {
			return true
		}
	}
	return false
}

// HasExposedMembers reports whether any non-type member of t is exposed.
func (f *VisibilityFilter) HasExposedMembers(t *metadata.TypeNode) bool {
	for _, m := range t.Members() {
		if _, nested := m.(*metadata.TypeNode); nested {
			continue
		}
		if f.IsExposedMember(m) {
			return true
		}
	}
	return false
}

// IsDocumentedInterface reports whether an implemented interface should be listed.
func (f *VisibilityFilter) IsDocumentedInterface(t *metadata.TypeNode) bool {
	if t == nil {
		return false
	}
	return t.TemplateType().Kind == metadata.KindInterface && f.IsExposedType(t)
}

// IsExposedAttribute reports whether an attribute application is written.
func (f *VisibilityFilter) IsExposedAttribute(a *metadata.Attribute) bool {
	if !f.opts.IncludeAttributes || a == nil || a.Type == nil {
		return false
	}
	if f.excludedAttributes.Has(a.Type.FullName()) {
		return false
	}
	return f.IsExposedType(a.Type)
}

// Visibility returns the visibility keyword written for a type or member.
func (f *VisibilityFilter) Visibility(m metadata.Member) string {
	switch m.Info().Visibility {
	case metadata.Public:
		return "public"
	case metadata.Family:
		return "family"
	case metadata.FamilyOrAssembly:
		if f.opts.ProtectedInternalAsProtected {
			return "family"
		}
		return "family or assembly"
	case metadata.FamilyAndAssembly:
		return "family and assembly"
	case metadata.VisibilityAssembly:
		return "assembly"
	default:
		return "private"
	}
}
