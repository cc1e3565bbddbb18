package metadata

import "fmt"

func identity(t *TypeNode) string { return fmt.Sprintf("%p", t) }

// Substitution maps generic parameters to the types bound to them.
type Substitution map[*TypeNode]*TypeNode

// Apply returns t with every mapped generic parameter replaced.
func (s Substitution) Apply(t *TypeNode) *TypeNode {
	if t == nil || len(s) == 0 {
		return t
	}
	if r, ok := s[t]; ok {
		return r
	}
	switch t.Kind {
	case KindArray:
		if e := s.Apply(t.ElementType); e != t.ElementType {
			return ArrayOf(e, t.Rank)
		}
	case KindPointer:
		if e := s.Apply(t.ElementType); e != t.ElementType {
			return PointerTo(e)
		}
	case KindReference:
		if e := s.Apply(t.ElementType); e != t.ElementType {
			return ReferenceTo(e)
		}
	case KindOptionalModifier, KindRequiredModifier:
		e, m := s.Apply(t.ElementType), s.Apply(t.Modifier)
		if e != t.ElementType || m != t.Modifier {
			return Modified(e, m, t.Kind == KindRequiredModifier)
		}
	default:
		if t.Template != nil {
			changed := false
			args := make([]*TypeNode, len(t.TemplateArguments))
			for i, a := range t.TemplateArguments {
				args[i] = s.Apply(a)
				changed = changed || args[i] != a
			}
			if changed {
				return Instantiate(t.Template, args...)
			}
		}
	}
	return t
}

// SubstitutionFor binds the generic parameters of an instantiation's definition to
// its arguments.
func SubstitutionFor(inst *TypeNode) Substitution {
	if inst.Template == nil {
		return nil
	}
	params := inst.Template.TemplateParameters
	s := make(Substitution, len(params))
	for i, p := range params {
		if i < len(inst.TemplateArguments) {
			s[p] = inst.TemplateArguments[i]
		}
	}
	return s
}

func (t *TypeNode) view() *specializedView {
	t.specializeOnce.Do(func() {
		def := t.Template
		s := SubstitutionFor(t)
		t.specialized.base = s.Apply(def.BaseType())
		for _, i := range def.Interfaces() {
			t.specialized.interfaces = append(t.specialized.interfaces, s.Apply(i))
		}
		for _, m := range def.Members() {
			t.specialized.members = append(t.specialized.members, specializeMember(m, t, s))
		}
	})
	return &t.specialized
}

func specializeInfo(info MemberInfo, inst *TypeNode, orig Member) MemberInfo {
	info.DeclaringType = inst
	info.Unspecialized = orig
	return info
}

func specializeParameters(params []*Parameter, owner Member, s Substitution) []*Parameter {
	if params == nil {
		return nil
	}
	out := make([]*Parameter, len(params))
	for i, p := range params {
		cp := *p
		cp.Type = s.Apply(p.Type)
		cp.DeclaringMember = owner
		out[i] = &cp
	}
	return out
}

func specializeMethod(m *Method, inst *TypeNode, s Substitution, accessorFor Member) *Method {
	if m == nil {
		return nil
	}
	cp := *m
	cp.MemberInfo = specializeInfo(m.MemberInfo, inst, m)
	cp.ReturnType = s.Apply(m.ReturnType)
	cp.Parameters = specializeParameters(m.Parameters, &cp, s)
	if accessorFor != nil {
		cp.AccessorFor = accessorFor
	}
	return &cp
}

func specializeMember(m Member, inst *TypeNode, s Substitution) Member {
	switch v := m.(type) {
	case *Field:
		cp := *v
		cp.MemberInfo = specializeInfo(v.MemberInfo, inst, v)
		cp.Type = s.Apply(v.Type)
		return &cp
	case *Method:
		return specializeMethod(v, inst, s, nil)
	case *Property:
		cp := *v
		cp.MemberInfo = specializeInfo(v.MemberInfo, inst, v)
		cp.Type = s.Apply(v.Type)
		cp.Parameters = specializeParameters(v.Parameters, &cp, s)
		cp.Getter = specializeMethod(v.Getter, inst, s, &cp)
		cp.Setter = specializeMethod(v.Setter, inst, s, &cp)
		return &cp
	case *Event:
		cp := *v
		cp.MemberInfo = specializeInfo(v.MemberInfo, inst, v)
		cp.HandlerType = s.Apply(v.HandlerType)
		cp.Adder = specializeMethod(v.Adder, inst, s, &cp)
		cp.Remover = specializeMethod(v.Remover, inst, s, &cp)
		cp.Caller = specializeMethod(v.Caller, inst, s, &cp)
		return &cp
	default:
		return m
	}
}

// Specialize binds a member of a generic type definition to the arguments of inst.
// The copy is not shared with inst.Members(). Members of non-generic types are
// returned unchanged.
func Specialize(m Member, inst *TypeNode) Member {
	if inst == nil || inst.Template == nil {
		return m
	}
	return specializeMember(m, inst, SubstitutionFor(inst))
}
