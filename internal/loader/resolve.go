package loader

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

// scope is the context a type reference is resolved in. Generic parameters of the
// method come first, then those of the type and its declaring types.
type scope struct {
	file   *fileState
	typ    *metadata.TypeNode
	method *metadata.Method
}

func (sc scope) genericParameter(name string) *metadata.TypeNode {
	if sc.method != nil {
		for _, p := range sc.method.TemplateParameters {
			if p.Name == name {
				return p
			}
		}
	}
	for t := sc.typ; t != nil; t = t.DeclaringType {
		for _, p := range t.TemplateParameters {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

func (s *session) resolve(ref string, sc scope) (*metadata.TypeNode, error) {
	e, err := parseTypeRef(ref)
	if err != nil {
		return nil, s.fail(sc.file, "invalid type reference", err)
	}
	t, err := s.resolveExpr(e, sc)
	if err != nil {
		return nil, s.fail(sc.file, "cannot resolve type reference "+ref, err)
	}
	return t, nil
}

func (s *session) resolveExpr(e *typeExpr, sc scope) (*metadata.TypeNode, error) {
	t, err := s.resolveName(e, sc)
	if err != nil {
		return nil, err
	}
	for _, suf := range e.suffixes {
		switch suf.kind {
		case suffixArray:
			t = metadata.ArrayOf(t, suf.rank)
		case suffixPointer:
			t = metadata.PointerTo(t)
		case suffixReference:
			t = metadata.ReferenceTo(t)
		case suffixNullable:
			if t.IsValueType() && !t.IsNullableValueType() {
				def := s.lookup([]string{metadata.SystemNullable}, sc.file)
				if def == nil {
					return nil, fmt.Errorf("%s is not available", metadata.SystemNullable)
				}
				t = metadata.Instantiate(def, t)
			}
		case suffixModifier:
			mod, err := s.resolveExpr(suf.modifier, sc)
			if err != nil {
				return nil, err
			}
			t = metadata.Modified(t, mod, suf.required)
		}
	}
	return t, nil
}

func (s *session) resolveName(e *typeExpr, sc scope) (*metadata.TypeNode, error) {
	if len(e.args) == 0 && !strings.ContainsAny(e.name, ".+`") {
		if p := sc.genericParameter(e.name); p != nil {
			return p, nil
		}
		if alias, ok := keywordAliases[e.name]; ok {
			return s.resolveName(&typeExpr{name: alias}, sc)
		}
	}

	name := e.name
	if len(e.args) > 0 && !strings.Contains(name, "`") {
		name = fmt.Sprintf("%s`%d", name, len(e.args))
	}
	var names []string
	for t := sc.typ; t != nil; t = t.DeclaringType {
		names = append(names, t.TemplateType().FullName()+"+"+name)
	}
	if sc.typ != nil {
		if ns := sc.typ.NamespaceName(); ns != "" {
			names = append(names, ns+"."+name)
		}
	}
	names = append(names, name)

	def := s.lookup(names, sc.file)
	if def == nil {
		return nil, fmt.Errorf("unknown type %q", e.name)
	}
	if len(e.args) == 0 {
		return def, nil
	}
	if len(def.TemplateParameters) != len(e.args) {
		return nil, fmt.Errorf("type %s takes %d generic arguments, got %d", def.FullName(), len(def.TemplateParameters), len(e.args))
	}
	args := make([]*metadata.TypeNode, len(e.args))
	for i, a := range e.args {
		arg, err := s.resolveExpr(a, sc)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return metadata.Instantiate(def, args...), nil
}

// lookup finds the first registered type among the candidate names, preferring one
// defined in the referencing file's assembly.
func (s *session) lookup(names []string, f *fileState) *metadata.TypeNode {
	for _, name := range names {
		candidates := s.registry[name]
		if len(candidates) == 0 {
			continue
		}
		if f != nil {
			for _, c := range candidates {
				if c.DeclaringAssembly() == f.asm {
					return c
				}
			}
		}
		return candidates[0]
	}
	return nil
}

// memberRef is a parsed "Type::Name(Param,...)" reference.
type memberRef struct {
	typ       string
	name      string
	signature []string
	hasSig    bool
}

func parseMemberRef(ref string) (memberRef, error) {
	typ, rest, ok := strings.Cut(ref, "::")
	if !ok || typ == "" || rest == "" {
		return memberRef{}, fmt.Errorf("member reference %q must have the form Type::Name", ref)
	}
	r := memberRef{typ: strings.TrimSpace(typ), name: strings.TrimSpace(rest)}
	if i := strings.IndexByte(rest, '('); i >= 0 {
		if !strings.HasSuffix(rest, ")") {
			return memberRef{}, fmt.Errorf("member reference %q has an unterminated signature", ref)
		}
		r.name = strings.TrimSpace(rest[:i])
		r.hasSig = true
		r.signature = splitTopLevel(rest[i+1 : len(rest)-1])
	}
	return r, nil
}

// splitTopLevel splits a comma separated list, ignoring commas inside brackets.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(out) > 0 {
		out = append(out, last)
	}
	return out
}

func parameterTypes(m metadata.Member) []*metadata.TypeNode {
	var params []*metadata.Parameter
	switch v := m.(type) {
	case *metadata.Method:
		params = v.Parameters
	case *metadata.Property:
		params = v.Parameters
	}
	out := make([]*metadata.TypeNode, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

func sameTypes(a, b []*metadata.TypeNode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equivalent(a[i], b[i]) {
			return false
		}
	}
	return true
}

// equivalent compares types structurally. Generic parameters of two different methods
// match by position so that signatures of generic methods can be compared.
func equivalent(a, b *metadata.TypeNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case metadata.KindTemplateParameter:
		_, am := a.DeclaringMember.(*metadata.Method)
		_, bm := b.DeclaringMember.(*metadata.Method)
		if am && bm {
			return a.Position == b.Position
		}
		return a.IsStructurallyEquivalentTo(b)
	case metadata.KindArray:
		return a.Rank == b.Rank && equivalent(a.ElementType, b.ElementType)
	case metadata.KindPointer, metadata.KindReference:
		return equivalent(a.ElementType, b.ElementType)
	case metadata.KindOptionalModifier, metadata.KindRequiredModifier:
		return equivalent(a.ElementType, b.ElementType) && equivalent(a.Modifier, b.Modifier)
	}
	if a.Template == nil || b.Template == nil {
		return a == b
	}
	if a.Template != b.Template || len(a.TemplateArguments) != len(b.TemplateArguments) {
		return false
	}
	for i := range a.TemplateArguments {
		if !equivalent(a.TemplateArguments[i], b.TemplateArguments[i]) {
			return false
		}
	}
	return true
}

// substitutedTypes returns the parameter types of a definition member as seen through
// the instantiation its declaring type was referenced as.
func substitutedTypes(m metadata.Member, s metadata.Substitution) []*metadata.TypeNode {
	types := parameterTypes(m)
	for i, t := range types {
		types[i] = s.Apply(t)
	}
	return types
}

// findMember resolves a member reference. Without an explicit signature the
// candidate must be unique by name, or match the given parameter types.
func (s *session) findMember(ref string, sc scope, want []*metadata.TypeNode) (metadata.Member, error) {
	r, err := parseMemberRef(ref)
	if err != nil {
		return nil, s.fail(sc.file, "invalid member reference", err)
	}
	owner, err := s.resolve(r.typ, sc)
	if err != nil {
		return nil, err
	}
	if r.hasSig {
		want = make([]*metadata.TypeNode, len(r.signature))
		for i, p := range r.signature {
			if want[i], err = s.resolve(p, sc); err != nil {
				return nil, err
			}
		}
	}

	def := owner.TemplateType()
	sub := metadata.SubstitutionFor(owner)
	var named []metadata.Member
	for _, m := range def.DeclaredMembers {
		if _, nested := m.(*metadata.TypeNode); !nested && m.Info().Name == r.name {
			named = append(named, m)
		}
	}

	var match metadata.Member
	switch {
	case len(named) == 1 && !r.hasSig:
		match = named[0]
	default:
		for _, m := range named {
			if want != nil && sameTypes(substitutedTypes(m, sub), want) {
				match = m
				break
			}
		}
	}
	if match == nil {
		return nil, s.fail(sc.file, fmt.Sprintf("cannot resolve member reference %s (%d candidates)", ref, len(named)), nil)
	}
	return metadata.Specialize(match, owner), nil
}

// findInherited walks the base type chain of t for a member accepted by pick. The
// returned member is specialized for the base type it was found on.
func findInherited(t *metadata.TypeNode, pick func(m metadata.Member, sub metadata.Substitution) bool) metadata.Member {
	for b := t.DeclaredBase; b != nil; {
		def := b.TemplateType()
		sub := metadata.SubstitutionFor(b)
		for _, m := range def.DeclaredMembers {
			if pick(m, sub) {
				return metadata.Specialize(m, b)
			}
		}
		b = sub.Apply(def.DeclaredBase)
	}
	return nil
}
