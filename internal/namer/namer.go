// Package namer produces the API identifiers (DocIDs) that key every entry in the
// reflection data.
package namer

import (
	"regexp"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

// Namer maps namespaces, types and members to stable API identifiers.
type Namer interface {
	NamespaceName(name string) string
	TypeName(t *metadata.TypeNode) string
	MemberName(m metadata.Member) string
	APIName(m metadata.Member) string
}

// DocIDNamer produces ECMA-style documentation comment identifiers.
type DocIDNamer struct{}

// NewDocIDNamer returns the default namer.
func NewDocIDNamer() *DocIDNamer { return &DocIDNamer{} }

func (DocIDNamer) NamespaceName(name string) string { return "N:" + name }

func (DocIDNamer) TypeName(t *metadata.TypeNode) string { return "T:" + typeName(t) }

func (n DocIDNamer) APIName(m metadata.Member) string {
	if t, ok := m.(*metadata.TypeNode); ok {
		return n.TypeName(t)
	}
	return n.MemberName(m)
}

func (n DocIDNamer) MemberName(m metadata.Member) string {
	switch v := m.(type) {
	case *metadata.TypeNode:
		return n.TypeName(v)
	case *metadata.Field:
		return "F:" + qualified(v.DeclaringType, v.Name)
	case *metadata.Event:
		return "E:" + qualified(v.DeclaringType, v.Name)
	case *metadata.Property:
		return "P:" + qualified(v.DeclaringType, v.Name) + parameterList(v.Parameters)
	case *metadata.Method:
		return "M:" + methodName(v)
	}
	return ""
}

func qualified(declaring *metadata.TypeNode, name string) string {
	return typeName(declaring) + "." + memberSimpleName(name)
}

// memberSimpleName encodes constructor names and explicit interface implementation
// names, which contain dots.
func memberSimpleName(name string) string {
	switch name {
	case ".ctor":
		return "#ctor"
	case ".cctor":
		return "#cctor"
	}
	return strings.NewReplacer(".", "#", ",", "@", "<", "{", ">", "}").Replace(name)
}

func methodName(m *metadata.Method) string {
	var b strings.Builder
	b.WriteString(qualified(m.DeclaringType, m.Name))
	template := metadata.TemplateMember(m).(*metadata.Method)
	if n := len(template.TemplateParameters); n > 0 {
		b.WriteString("``")
		b.WriteString(strconv.Itoa(n))
	}
	b.WriteString(parameterList(m.Parameters))
	if (m.Name == "op_Implicit" || m.Name == "op_Explicit") && m.ReturnType != nil {
		b.WriteString("~")
		b.WriteString(signatureName(m.ReturnType))
	}
	return b.String()
}

func parameterList(params []*metadata.Parameter) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = signatureName(p.Type)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// typeName is the dotted name of a declared type, or the signature form of a
// constructed type.
func typeName(t *metadata.TypeNode) string {
	if t == nil {
		return ""
	}
	if t.Template != nil || t.Kind >= metadata.KindArray {
		return signatureName(t)
	}
	if t.DeclaringType != nil {
		return typeName(t.DeclaringType) + "." + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

var arity = regexp.MustCompile("`[0-9]+")

// signatureName encodes a type as it appears inside a member signature.
func signatureName(t *metadata.TypeNode) string {
	switch t.Kind {
	case metadata.KindArray:
		if t.Rank <= 1 {
			return signatureName(t.ElementType) + "[]"
		}
		dims := make([]string, t.Rank)
		for i := range dims {
			dims[i] = "0:"
		}
		return signatureName(t.ElementType) + "[" + strings.Join(dims, ",") + "]"
	case metadata.KindPointer:
		return signatureName(t.ElementType) + "*"
	case metadata.KindReference:
		return signatureName(t.ElementType) + "@"
	case metadata.KindOptionalModifier, metadata.KindRequiredModifier:
		return signatureName(t.ElementType)
	case metadata.KindTemplateParameter:
		if _, ok := t.DeclaringMember.(*metadata.Method); ok {
			return "``" + strconv.Itoa(t.Position)
		}
		return "`" + strconv.Itoa(t.Position)
	}
	if t.Template != nil {
		args := make([]string, len(t.TemplateArguments))
		for i, a := range t.TemplateArguments {
			args[i] = signatureName(a)
		}
		return arity.ReplaceAllString(typeName(t.Template), "") + "{" + strings.Join(args, ",") + "}"
	}
	return typeName(t)
}
