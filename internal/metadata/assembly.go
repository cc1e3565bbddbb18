package metadata

import (
	"crypto/sha1" //nolint:gosec // public key tokens are defined as SHA-1
	"encoding/hex"
	"strings"
)

// Assembly is a unit of deployment: identity, attributes and the types it defines.
type Assembly struct {
	Name          string
	Version       string
	Culture       string
	PublicKey     []byte
	HashAlgorithm string
	Attributes    []*Attribute
	Modules       []*Module
	// Types holds top-level types in declaration order.
	Types []*TypeNode
}

// Module is a single image inside an assembly.
type Module struct {
	Name     string
	Kind     ModuleKind
	Assembly *Assembly
}

// PublicKeyToken returns the hex token derived from the public key, or "null".
func (a *Assembly) PublicKeyToken() string {
	switch {
	case len(a.PublicKey) == 0:
		return "null"
	case len(a.PublicKey) == 8:
		return hex.EncodeToString(a.PublicKey)
	}
	sum := sha1.Sum(a.PublicKey) //nolint:gosec
	token := make([]byte, 8)
	for i := range token {
		token[i] = sum[len(sum)-1-i]
	}
	return hex.EncodeToString(token)
}

// StrongName is the display name that identifies the assembly.
func (a *Assembly) StrongName() string {
	culture := a.Culture
	if culture == "" {
		culture = "neutral"
	}
	version := a.Version
	if version == "" {
		version = "0.0.0.0"
	}
	var b strings.Builder
	b.WriteString(a.Name)
	b.WriteString(", Version=")
	b.WriteString(version)
	b.WriteString(", Culture=")
	b.WriteString(culture)
	b.WriteString(", PublicKeyToken=")
	b.WriteString(a.PublicKeyToken())
	return b.String()
}

// Namespace groups the types of one or more assemblies that share a namespace name.
type Namespace struct {
	Name string
	// Types lists every type in the namespace, nested types directly after their
	// declaring type.
	Types []*TypeNode
}

// GroupNamespaces collects the types of all assemblies by namespace name. Namespaces and
// types keep first-appearance order.
func GroupNamespaces(assemblies []*Assembly) []*Namespace {
	var out []*Namespace
	byName := make(map[string]*Namespace)
	for _, asm := range assemblies {
		for _, t := range asm.Types {
			ns, ok := byName[t.Namespace]
			if !ok {
				ns = &Namespace{Name: t.Namespace}
				byName[t.Namespace] = ns
				out = append(out, ns)
			}
			ns.Types = appendWithNested(ns.Types, t)
		}
	}
	return out
}

func appendWithNested(list []*TypeNode, t *TypeNode) []*TypeNode {
	list = append(list, t)
	for _, m := range t.DeclaredMembers {
		if nested, ok := m.(*TypeNode); ok {
			list = appendWithNested(list, nested)
		}
	}
	return list
}
