package loader

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/mrefbuilder/internal/literal"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

func sourceContext(d *sourceDoc) metadata.SourceContext {
	if d == nil {
		return metadata.SourceContext{}
	}
	return metadata.SourceContext{File: d.File, StartLine: d.Line}
}

func (s *session) createMembers(ts *typeState) error {
	t, d, f := ts.node, ts.doc, ts.file
	sc := scope{file: f, typ: t}
	t.SourceContext = sourceContext(d.Source)

	s.decorate(&t.Attributes, d.Attributes, sc, annotations{
		nullable: d.Nullable,
		context:  d.NullableContext,
		extra: func(existing []*metadata.Attribute) ([]*metadata.Attribute, error) {
			if ts.indexer == "" || metadata.FindAttribute(existing, "System.Reflection.DefaultMemberAttribute") != nil {
				return nil, nil
			}
			a, err := s.syntheticAttribute("System.Reflection.DefaultMemberAttribute", sc, s.stringLiteral(ts.indexer, sc))
			if err != nil {
				return nil, err
			}
			return []*metadata.Attribute{a}, nil
		},
	})

	if t.Kind == metadata.KindEnum {
		return s.createEnumFields(ts)
	}
	if t.Kind == metadata.KindDelegate {
		return s.createDelegate(ts)
	}

	for i := range d.Fields {
		field, err := s.createField(t, &d.Fields[i], sc)
		if err != nil {
			return err
		}
		t.DeclaredMembers = append(t.DeclaredMembers, field)
	}

	instanceCtors := 0
	for i := range d.Constructors {
		md := &d.Constructors[i]
		kind := metadata.MethodConstructor
		if md.Static {
			kind = metadata.MethodStaticConstructor
		} else {
			instanceCtors++
		}
		ctor, err := s.createMethod(t, md, kind, sc)
		if err != nil {
			return err
		}
		t.DeclaredMembers = append(t.DeclaredMembers, ctor)
	}
	if t.Kind == metadata.KindClass && instanceCtors == 0 && !(t.Abstract && t.Sealed) {
		vis := metadata.Public
		if t.Abstract {
			vis = metadata.Family
		}
		t.DeclaredMembers = append(t.DeclaredMembers, &metadata.Method{
			MemberInfo: metadata.MemberInfo{Name: ".ctor", DeclaringType: t, Visibility: vis, SpecialName: true},
			Kind:       metadata.MethodConstructor,
			ReturnType: s.lookup([]string{metadata.SystemVoid}, f),
		})
	}

	for i := range d.Methods {
		m, err := s.createMethod(t, &d.Methods[i], metadata.MethodNormal, sc)
		if err != nil {
			return err
		}
		t.DeclaredMembers = append(t.DeclaredMembers, m)
	}
	for i := range d.Properties {
		if err := s.createProperty(ts, &d.Properties[i], sc); err != nil {
			return err
		}
	}
	for i := range d.Events {
		if err := s.createEvent(t, &d.Events[i], sc); err != nil {
			return err
		}
	}
	return nil
}

// createEnumFields declares the enumeration constants. Values are assigned in a
// separate phase so that later constants count up from earlier explicit ones.
func (s *session) createEnumFields(ts *typeState) error {
	t, d := ts.node, ts.doc
	sc := scope{file: ts.file, typ: t}
	fields := make([]*metadata.Field, len(d.Fields))
	for i := range d.Fields {
		fd := &d.Fields[i]
		if fd.Name == "" {
			return s.fail(ts.file, fmt.Sprintf("enumeration %s has a field without a name", t.FullName()), nil)
		}
		field := &metadata.Field{
			MemberInfo: metadata.MemberInfo{
				Name:          fd.Name,
				DeclaringType: t,
				Visibility:    metadata.Public,
				Static:        true,
				SourceContext: sourceContext(fd.Source),
			},
			Type:    t,
			Literal: true,
		}
		s.decorate(&field.Attributes, fd.Attributes, sc, annotations{})
		fields[i] = field
		t.DeclaredMembers = append(t.DeclaredMembers, field)
	}

	s.enums = append(s.enums, func() error {
		underlying := t.UnderlyingType.FullName()
		var next int64
		for i, field := range fields {
			fd := &d.Fields[i]
			var v any
			if fd.Value.Kind != 0 {
				n, err := s.enumValue(&fd.Value, t, fields[:i])
				if err != nil {
					return s.fail(ts.file, fmt.Sprintf("enumeration field %s.%s", t.FullName(), fd.Name), err)
				}
				if v, err = convertInteger(underlying, n); err != nil {
					return s.fail(ts.file, fmt.Sprintf("enumeration field %s.%s", t.FullName(), fd.Name), err)
				}
			} else {
				var err error
				if v, err = convertInteger(underlying, next); err != nil {
					return s.fail(ts.file, fmt.Sprintf("enumeration field %s.%s", t.FullName(), fd.Name), err)
				}
			}
			field.DefaultValue = &metadata.Literal{Type: t.UnderlyingType, Value: v}
			n, _ := metadata.AsInt64(v)
			next = n + 1
		}
		return nil
	})
	return nil
}

func (s *session) createField(t *metadata.TypeNode, fd *fieldDoc, sc scope) (*metadata.Field, error) {
	if fd.Name == "" {
		return nil, s.fail(sc.file, "field without a name in "+t.FullName(), nil)
	}
	vis, err := parseVisibility(fd.Visibility, metadata.Public)
	if err != nil {
		return nil, s.fail(sc.file, "field "+fd.Name, err)
	}
	typ, err := s.resolve(fd.Type, sc)
	if err != nil {
		return nil, err
	}
	field := &metadata.Field{
		MemberInfo: metadata.MemberInfo{
			Name:          fd.Name,
			DeclaringType: t,
			Visibility:    vis,
			Static:        fd.Static,
			SpecialName:   fd.SpecialName,
			SourceContext: sourceContext(fd.Source),
		},
		Type:          typ,
		InitOnly:      fd.ReadOnly,
		Volatile:      fd.Volatile,
		NotSerialized: fd.NotSerialized,
		Offset:        fd.Offset,
	}

	ann := annotations{nullable: fd.Nullable, tupleNames: fd.TupleNames}
	switch {
	case fd.Const && typ.FullName() == metadata.SystemDecimal:
		// Decimal constants compile to static read-only fields carrying the value in
		// an attribute.
		field.Static = true
		field.InitOnly = true
		ann.extra = func([]*metadata.Attribute) ([]*metadata.Attribute, error) {
			if fd.Value.Kind == 0 {
				return nil, s.fail(sc.file, "decimal constant "+fd.Name+" has no value", nil)
			}
			dec, err := literal.ParseDecimal(fd.Value.Value)
			if err != nil {
				return nil, s.fail(sc.file, "decimal constant "+fd.Name, err)
			}
			a, err := s.decimalConstantAttribute(dec, sc)
			if err != nil {
				return nil, err
			}
			return []*metadata.Attribute{a}, nil
		}
	case fd.Const:
		field.Literal = true
		field.Static = true
		s.values = append(s.values, func() error {
			if fd.Value.Kind == 0 {
				return s.fail(sc.file, "constant "+fd.Name+" has no value", nil)
			}
			v, err := s.decodeValue(&fd.Value, typ, sc)
			if err != nil {
				return s.fail(sc.file, "constant "+fd.Name, err)
			}
			field.DefaultValue = &metadata.Literal{Type: typ, Value: v}
			return nil
		})
	}
	s.decorate(&field.Attributes, fd.Attributes, sc, ann)
	return field, nil
}

func (s *session) createMethod(t *metadata.TypeNode, md *methodDoc, kind metadata.MethodKind, sc scope) (*metadata.Method, error) {
	name := md.Name
	defVis := metadata.Public
	switch kind {
	case metadata.MethodConstructor:
		name = ".ctor"
	case metadata.MethodStaticConstructor:
		name = ".cctor"
		defVis = metadata.Private
	}
	if name == "" {
		return nil, s.fail(sc.file, "method without a name in "+t.FullName(), nil)
	}
	vis, err := parseVisibility(md.Visibility, defVis)
	if err != nil {
		return nil, s.fail(sc.file, "method "+name, err)
	}

	iface := t.Kind == metadata.KindInterface && !md.Static
	m := &metadata.Method{
		MemberInfo: metadata.MemberInfo{
			Name:          name,
			DeclaringType: t,
			Visibility:    vis,
			Static:        md.Static || md.Extension || kind == metadata.MethodStaticConstructor,
			SpecialName:   md.SpecialName || kind != metadata.MethodNormal || strings.HasPrefix(name, "op_"),
			SourceContext: sourceContext(md.Source),
		},
		Kind:        kind,
		Abstract:    md.Abstract || iface,
		Virtual:     md.Virtual || md.Abstract || md.Override || md.Overrides != "" || iface,
		Final:       md.Sealed,
		VarArgs:     md.VarArgs,
		PreserveSig: md.PreserveSig,
	}
	if len(md.Implements) > 0 && !m.Virtual {
		m.Virtual = true
		m.Final = true
	}
	if md.PInvoke != nil {
		if m.PInvoke, err = newPInvoke(md.PInvoke); err != nil {
			return nil, s.fail(sc.file, "method "+name, err)
		}
	}

	for i, g := range md.Generic {
		p, err := newGenericParameter(g, i, m)
		if err != nil {
			return nil, s.fail(sc.file, "method "+name, err)
		}
		m.TemplateParameters = append(m.TemplateParameters, p)
	}
	msc := scope{file: sc.file, typ: t, method: m}
	if err := s.resolveConstraints(m.TemplateParameters, md.Generic, msc); err != nil {
		return nil, err
	}

	if m.Parameters, err = s.createParameters(md.Parameters, m, msc); err != nil {
		return nil, err
	}
	if err := s.setReturn(m, md.Returns, msc); err != nil {
		return nil, err
	}
	s.decorate(&m.Attributes, md.Attributes, msc, annotations{
		nullable:  md.Nullable,
		context:   md.NullableContext,
		extension: md.Extension,
	})

	if kind == metadata.MethodNormal {
		s.links = append(s.links, func() error { return s.linkMethod(m, md, msc) })
	}
	return m, nil
}

func newPInvoke(d *pinvokeDoc) (*metadata.PInvokeInfo, error) {
	cc, err := parseCallingConvention(d.CallingConvention)
	if err != nil {
		return nil, err
	}
	cs, err := parseCharSet(d.CharSet)
	if err != nil {
		return nil, err
	}
	return &metadata.PInvokeInfo{
		Module:                d.Module,
		EntryPoint:            d.EntryPoint,
		CallingConvention:     cc,
		CharSet:               cs,
		BestFitDisabled:       d.BestFitMapping != nil && !*d.BestFitMapping,
		ExactSpelling:         d.ExactSpelling,
		ThrowOnUnmappableChar: d.ThrowOnUnmappableChar,
		SetLastError:          d.SetLastError,
	}, nil
}

func (s *session) setReturn(m *metadata.Method, rd *returnDoc, sc scope) error {
	if rd == nil || rd.Type == "" {
		m.ReturnType = s.lookup([]string{metadata.SystemVoid}, sc.file)
		if rd == nil {
			return nil
		}
	} else {
		rt, err := s.resolve(rd.Type, sc)
		if err != nil {
			return err
		}
		m.ReturnType = rt
	}
	s.decorate(&m.ReturnAttributes, rd.Attributes, sc, annotations{nullable: rd.Nullable, tupleNames: rd.TupleNames})
	return nil
}

func (s *session) createParameters(docs []parameterDoc, owner metadata.Member, sc scope) ([]*metadata.Parameter, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	params := make([]*metadata.Parameter, len(docs))
	for i := range docs {
		pd := &docs[i]
		typ, err := s.resolve(pd.Type, sc)
		if err != nil {
			return nil, err
		}
		if (pd.Ref || pd.Out || pd.In) && typ.Kind != metadata.KindReference {
			typ = metadata.ReferenceTo(typ)
		}
		name := pd.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		p := &metadata.Parameter{
			Name:            name,
			Type:            typ,
			In:              pd.In,
			Out:             pd.Out,
			Optional:        pd.Optional || pd.Default.Kind != 0,
			DeclaringMember: owner,
		}
		if pd.Default.Kind != 0 {
			s.values = append(s.values, func() error {
				lit, err := s.defaultValue(&pd.Default, p.Type, sc)
				if err != nil {
					return s.fail(sc.file, "default value of parameter "+name, err)
				}
				p.DefaultValue = lit
				return nil
			})
		}
		s.decorate(&p.Attributes, pd.Attributes, sc, annotations{
			nullable:   pd.Nullable,
			tupleNames: pd.TupleNames,
			paramArray: pd.Params,
		})
		params[i] = p
	}
	return params, nil
}

// accessor creates a get_, set_, add_, remove_ or raise_ method for a property or event.
func (s *session) accessor(owner metadata.Member, name string, vis metadata.Visibility, src metadata.SourceContext, flags memberFlags) *metadata.Method {
	info := owner.Info()
	return &metadata.Method{
		MemberInfo: metadata.MemberInfo{
			Name:          name,
			DeclaringType: info.DeclaringType,
			Visibility:    vis,
			Static:        info.Static,
			SpecialName:   true,
			SourceContext: src,
		},
		Abstract:    flags.abstract,
		Virtual:     flags.virtual,
		Final:       flags.final,
		AccessorFor: owner,
	}
}

type memberFlags struct {
	abstract bool
	virtual  bool
	final    bool
}

func flagsFor(t *metadata.TypeNode, static, abstract, virtual, override, sealed bool, implements []string) memberFlags {
	iface := t.Kind == metadata.KindInterface && !static
	f := memberFlags{
		abstract: abstract || iface,
		virtual:  virtual || abstract || override || iface,
		final:    sealed,
	}
	if len(implements) > 0 && !f.virtual {
		f.virtual, f.final = true, true
	}
	return f
}

func (s *session) createProperty(ts *typeState, pd *propertyDoc, sc scope) error {
	t := ts.node
	if pd.Name == "" {
		return s.fail(sc.file, "property without a name in "+t.FullName(), nil)
	}
	vis, err := parseVisibility(pd.Visibility, metadata.Public)
	if err != nil {
		return s.fail(sc.file, "property "+pd.Name, err)
	}
	typ, err := s.resolve(pd.Type, sc)
	if err != nil {
		return err
	}
	p := &metadata.Property{
		MemberInfo: metadata.MemberInfo{
			Name:          pd.Name,
			DeclaringType: t,
			Visibility:    vis,
			Static:        pd.Static,
			SpecialName:   pd.SpecialName,
			SourceContext: sourceContext(pd.Source),
		},
		Type: typ,
	}
	if p.Parameters, err = s.createParameters(pd.Parameters, p, sc); err != nil {
		return err
	}
	if len(p.Parameters) > 0 && ts.indexer == "" {
		ts.indexer = pd.Name
	}
	s.decorate(&p.Attributes, pd.Attributes, sc, annotations{nullable: pd.Nullable, tupleNames: pd.TupleNames})

	flags := flagsFor(t, pd.Static, pd.Abstract, pd.Virtual, pd.Override, pd.Sealed, pd.Implements)
	void := s.lookup([]string{metadata.SystemVoid}, sc.file)
	accessorSource := func(a *accessorDoc) metadata.SourceContext {
		if a.Source != nil {
			return sourceContext(a.Source)
		}
		return p.SourceContext
	}

	if pd.Get.Present {
		gv, err := parseVisibility(pd.Get.Visibility, vis)
		if err != nil {
			return s.fail(sc.file, "getter of "+pd.Name, err)
		}
		g := s.accessor(p, "get_"+pd.Name, gv, accessorSource(&pd.Get), flags)
		g.ReturnType = typ
		if g.Parameters, err = s.createParameters(pd.Parameters, g, sc); err != nil {
			return err
		}
		s.decorate(&g.Attributes, pd.Get.Attributes, sc, annotations{})
		p.Getter = g
	}
	if pd.Set.Present {
		sv, err := parseVisibility(pd.Set.Visibility, vis)
		if err != nil {
			return s.fail(sc.file, "setter of "+pd.Name, err)
		}
		st := s.accessor(p, "set_"+pd.Name, sv, accessorSource(&pd.Set), flags)
		st.ReturnType = void
		if pd.Set.Init {
			modifier := s.lookup([]string{"System.Runtime.CompilerServices.IsExternalInit"}, sc.file)
			if modifier == nil {
				return s.fail(sc.file, "IsExternalInit is not available", nil)
			}
			st.ReturnType = metadata.Modified(void, modifier, true)
		}
		if st.Parameters, err = s.createParameters(pd.Parameters, st, sc); err != nil {
			return err
		}
		st.Parameters = append(st.Parameters, &metadata.Parameter{Name: "value", Type: typ, DeclaringMember: st})
		s.decorate(&st.Attributes, pd.Set.Attributes, sc, annotations{})
		p.Setter = st
	}
	if p.Getter == nil && p.Setter == nil {
		return s.fail(sc.file, "property "+pd.Name+" has no accessors", nil)
	}

	t.DeclaredMembers = append(t.DeclaredMembers, p)
	for _, acc := range metadata.Accessors(p) {
		t.DeclaredMembers = append(t.DeclaredMembers, acc)
	}
	s.links = append(s.links, func() error { return s.linkProperty(p, pd, sc) })
	return nil
}

func (s *session) createEvent(t *metadata.TypeNode, ed *eventDoc, sc scope) error {
	if ed.Name == "" {
		return s.fail(sc.file, "event without a name in "+t.FullName(), nil)
	}
	vis, err := parseVisibility(ed.Visibility, metadata.Public)
	if err != nil {
		return s.fail(sc.file, "event "+ed.Name, err)
	}
	handler, err := s.resolve(ed.Type, sc)
	if err != nil {
		return err
	}
	e := &metadata.Event{
		MemberInfo: metadata.MemberInfo{
			Name:          ed.Name,
			DeclaringType: t,
			Visibility:    vis,
			Static:        ed.Static,
			SpecialName:   ed.SpecialName,
			SourceContext: sourceContext(ed.Source),
		},
		HandlerType: handler,
	}
	s.decorate(&e.Attributes, ed.Attributes, sc, annotations{nullable: ed.Nullable})

	flags := flagsFor(t, ed.Static, ed.Abstract, ed.Virtual, ed.Override, ed.Sealed, ed.Implements)
	void := s.lookup([]string{metadata.SystemVoid}, sc.file)
	for _, name := range []string{"add_", "remove_"} {
		acc := s.accessor(e, name+ed.Name, vis, e.SourceContext, flags)
		acc.ReturnType = void
		acc.Parameters = []*metadata.Parameter{{Name: "value", Type: handler, DeclaringMember: acc}}
		if name == "add_" {
			e.Adder = acc
		} else {
			e.Remover = acc
		}
	}
	if ed.Raise {
		e.Caller = s.accessor(e, "raise_"+ed.Name, vis, e.SourceContext, flags)
		e.Caller.ReturnType = void
	}

	t.DeclaredMembers = append(t.DeclaredMembers, e)
	for _, acc := range metadata.Accessors(e) {
		t.DeclaredMembers = append(t.DeclaredMembers, acc)
	}
	s.links = append(s.links, func() error { return s.linkEvent(e, ed, sc) })
	return nil
}

// createDelegate synthesizes the constructor and the Invoke, BeginInvoke and
// EndInvoke methods of a delegate type.
func (s *session) createDelegate(ts *typeState) error {
	t, d, f := ts.node, ts.doc, ts.file
	sc := scope{file: f, typ: t}
	lookup := func(name string) (*metadata.TypeNode, error) {
		if found := s.lookup([]string{name}, f); found != nil {
			return found, nil
		}
		return nil, s.fail(f, name+" is not available", nil)
	}
	object, err := lookup(metadata.SystemObject)
	if err != nil {
		return err
	}
	intPtr, err := lookup("System.IntPtr")
	if err != nil {
		return err
	}
	asyncResult, err := lookup("System.IAsyncResult")
	if err != nil {
		return err
	}
	callback, err := lookup("System.AsyncCallback")
	if err != nil {
		return err
	}
	void, err := lookup(metadata.SystemVoid)
	if err != nil {
		return err
	}

	method := func(name string, kind metadata.MethodKind) *metadata.Method {
		return &metadata.Method{
			MemberInfo: metadata.MemberInfo{
				Name:          name,
				DeclaringType: t,
				Visibility:    metadata.Public,
				SpecialName:   kind != metadata.MethodNormal,
			},
			Kind:    kind,
			Virtual: kind == metadata.MethodNormal,
		}
	}

	ctor := method(".ctor", metadata.MethodConstructor)
	ctor.ReturnType = void
	ctor.Parameters = []*metadata.Parameter{
		{Name: "object", Type: object, DeclaringMember: ctor},
		{Name: "method", Type: intPtr, DeclaringMember: ctor},
	}

	invoke := method("Invoke", metadata.MethodNormal)
	if invoke.Parameters, err = s.createParameters(d.Parameters, invoke, sc); err != nil {
		return err
	}
	if err := s.setReturn(invoke, d.Returns, sc); err != nil {
		return err
	}

	begin := method("BeginInvoke", metadata.MethodNormal)
	if begin.Parameters, err = s.createParameters(d.Parameters, begin, sc); err != nil {
		return err
	}
	begin.Parameters = append(begin.Parameters,
		&metadata.Parameter{Name: "callback", Type: callback, DeclaringMember: begin},
		&metadata.Parameter{Name: "object", Type: object, DeclaringMember: begin})
	begin.ReturnType = asyncResult

	end := method("EndInvoke", metadata.MethodNormal)
	end.Parameters = []*metadata.Parameter{{Name: "result", Type: asyncResult, DeclaringMember: end}}
	if err := s.setReturn(end, d.Returns, sc); err != nil {
		return err
	}

	if t.Parameters, err = s.createParameters(d.Parameters, t, sc); err != nil {
		return err
	}
	t.ReturnType = invoke.ReturnType
	t.DeclaredMembers = append(t.DeclaredMembers, ctor, invoke, begin, end)
	return nil
}

func (s *session) linkMethod(m *metadata.Method, md *methodDoc, sc scope) error {
	t := m.DeclaringType
	switch {
	case md.Overrides != "":
		target, err := s.findMember(md.Overrides, sc, parameterTypes(m))
		if err != nil {
			return err
		}
		base, ok := target.(*metadata.Method)
		if !ok {
			return s.fail(sc.file, md.Overrides+" is not a method", nil)
		}
		m.Overridden = base
	case md.Override:
		want := parameterTypes(m)
		found := findInherited(t, func(c metadata.Member, sub metadata.Substitution) bool {
			bm, ok := c.(*metadata.Method)
			return ok && bm.Name == m.Name && bm.Virtual && !bm.IsConstructor() &&
				sameTypes(substitutedTypes(bm, sub), want)
		})
		if found == nil {
			return s.fail(sc.file, fmt.Sprintf("%s.%s overrides nothing", t.FullName(), m.Name), nil)
		}
		m.Overridden = found.(*metadata.Method)
	}

	if len(md.Implements) > 0 {
		for _, ref := range md.Implements {
			target, err := s.findMember(ref, sc, parameterTypes(m))
			if err != nil {
				return err
			}
			im, ok := target.(*metadata.Method)
			if !ok {
				return s.fail(sc.file, ref+" is not a method", nil)
			}
			m.ImplementedMethods = append(m.ImplementedMethods, im)
		}
		return nil
	}
	if m.Visibility != metadata.Public || m.Static || t.Kind == metadata.KindInterface {
		return nil
	}
	want := parameterTypes(m)
	for _, iface := range interfaceClosure(t) {
		for _, c := range iface.TemplateType().DeclaredMembers {
			im, ok := c.(*metadata.Method)
			if !ok || im.Name != m.Name || im.AccessorFor != nil ||
				len(im.TemplateParameters) != len(m.TemplateParameters) {
				continue
			}
			if sameTypes(substitutedTypes(im, metadata.SubstitutionFor(iface)), want) {
				m.ImplementedMethods = append(m.ImplementedMethods, metadata.Specialize(im, iface).(*metadata.Method))
			}
		}
	}
	return nil
}

func (s *session) linkProperty(p *metadata.Property, pd *propertyDoc, sc scope) error {
	t := p.DeclaringType
	want := parameterTypes(p)
	if pd.Override {
		found := findInherited(t, func(c metadata.Member, sub metadata.Substitution) bool {
			bp, ok := c.(*metadata.Property)
			return ok && bp.Name == p.Name && sameTypes(substitutedTypes(bp, sub), want)
		})
		base, ok := found.(*metadata.Property)
		if !ok {
			return s.fail(sc.file, fmt.Sprintf("%s.%s overrides nothing", t.FullName(), p.Name), nil)
		}
		p.Overridden = base
		if p.Getter != nil {
			p.Getter.Overridden = base.Getter
		}
		if p.Setter != nil {
			p.Setter.Overridden = base.Setter
		}
	}

	var targets []*metadata.Property
	for _, ref := range pd.Implements {
		target, err := s.findMember(ref, sc, want)
		if err != nil {
			return err
		}
		ip, ok := target.(*metadata.Property)
		if !ok {
			return s.fail(sc.file, ref+" is not a property", nil)
		}
		targets = append(targets, ip)
	}
	if len(pd.Implements) == 0 && p.Visibility == metadata.Public && !p.Static && t.Kind != metadata.KindInterface {
		for _, iface := range interfaceClosure(t) {
			for _, c := range iface.TemplateType().DeclaredMembers {
				ip, ok := c.(*metadata.Property)
				if ok && ip.Name == p.Name && sameTypes(substitutedTypes(ip, metadata.SubstitutionFor(iface)), want) {
					targets = append(targets, metadata.Specialize(ip, iface).(*metadata.Property))
				}
			}
		}
	}
	for _, ip := range targets {
		if p.Getter != nil && ip.Getter != nil {
			p.Getter.ImplementedMethods = append(p.Getter.ImplementedMethods, ip.Getter)
		}
		if p.Setter != nil && ip.Setter != nil {
			p.Setter.ImplementedMethods = append(p.Setter.ImplementedMethods, ip.Setter)
		}
	}
	return nil
}

func (s *session) linkEvent(e *metadata.Event, ed *eventDoc, sc scope) error {
	t := e.DeclaringType
	if ed.Override {
		found := findInherited(t, func(c metadata.Member, _ metadata.Substitution) bool {
			be, ok := c.(*metadata.Event)
			return ok && be.Name == e.Name
		})
		base, ok := found.(*metadata.Event)
		if !ok {
			return s.fail(sc.file, fmt.Sprintf("%s.%s overrides nothing", t.FullName(), e.Name), nil)
		}
		e.Overridden = base
		e.Adder.Overridden = base.Adder
		e.Remover.Overridden = base.Remover
	}

	var targets []*metadata.Event
	for _, ref := range ed.Implements {
		target, err := s.findMember(ref, sc, nil)
		if err != nil {
			return err
		}
		ie, ok := target.(*metadata.Event)
		if !ok {
			return s.fail(sc.file, ref+" is not an event", nil)
		}
		targets = append(targets, ie)
	}
	if len(ed.Implements) == 0 && e.Visibility == metadata.Public && !e.Static && t.Kind != metadata.KindInterface {
		for _, iface := range interfaceClosure(t) {
			for _, c := range iface.TemplateType().DeclaredMembers {
				if ie, ok := c.(*metadata.Event); ok && ie.Name == e.Name {
					targets = append(targets, metadata.Specialize(ie, iface).(*metadata.Event))
				}
			}
		}
	}
	for _, ie := range targets {
		e.Adder.ImplementedMethods = append(e.Adder.ImplementedMethods, ie.Adder)
		e.Remover.ImplementedMethods = append(e.Remover.ImplementedMethods, ie.Remover)
	}
	return nil
}

// interfaceClosure returns the interfaces declared by t and, transitively, by those
// interfaces, substituted for the instantiations they were referenced as.
func interfaceClosure(t *metadata.TypeNode) []*metadata.TypeNode {
	var out []*metadata.TypeNode
	var walk func(list []*metadata.TypeNode, sub metadata.Substitution)
	walk = func(list []*metadata.TypeNode, sub metadata.Substitution) {
		for _, i := range list {
			i = sub.Apply(i)
			dup := false
			for _, seen := range out {
				if seen.IsStructurallyEquivalentTo(i) {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
			out = append(out, i)
			walk(i.TemplateType().DeclaredInterfaces, metadata.SubstitutionFor(i))
		}
	}
	walk(t.DeclaredInterfaces, nil)
	return out
}
