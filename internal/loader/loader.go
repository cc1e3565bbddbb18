// Package loader reads metadata description files (YAML) into the metadata graph
// consumed by the reflection writer. A built-in core library supplies System.Object,
// the primitive types and the compiler attributes so descriptions only declare their
// own types.
package loader

import (
	"context"
	_ "embed"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/normalization"
	"git.home.luguber.info/inful/mrefbuilder/internal/logfields"
	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

//go:embed core.yaml
var coreLibrary []byte

// CorePath is the pseudo path reported for the built-in core library.
const CorePath = "<core>"

// Loader reads description files from a filesystem.
type Loader struct {
	fs     afero.Fs
	logger *slog.Logger
}

// New returns a loader reading from fs.
func New(fs afero.Fs) *Loader {
	return &Loader{fs: fs, logger: slog.Default()}
}

// WithLogger sets the logger.
func (l *Loader) WithLogger(logger *slog.Logger) *Loader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Result is a loaded assembly set.
type Result struct {
	// Assemblies are the documented assemblies in input order.
	Assemblies []*metadata.Assembly
	// References are dependency assemblies, the core library first.
	References []*metadata.Assembly
}

// Namespaces groups the types of the documented assemblies by namespace.
func (r *Result) Namespaces() []*metadata.Namespace {
	return metadata.GroupNamespaces(r.Assemblies)
}

// Load reads the documented and reference description files. Types resolve across all
// of them; only the documented ones are returned in Assemblies.
func (l *Loader) Load(ctx context.Context, documented, references []string) (*Result, error) {
	s := newSession(l.logger)

	if err := s.parse(CorePath, coreLibrary, false); err != nil {
		return nil, err
	}
	for _, group := range []struct {
		paths      []string
		documented bool
	}{{references, false}, {documented, true}} {
		for _, path := range group.paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := afero.ReadFile(l.fs, path)
			if err != nil {
				return nil, errors.WrapError(err, errors.CategoryFileSystem, "cannot read metadata description").
					WithContext("file", path).
					Build()
			}
			if err := s.parse(path, data, group.documented); err != nil {
				return nil, err
			}
		}
	}

	if err := s.build(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, f := range s.files {
		if f.documented {
			res.Assemblies = append(res.Assemblies, f.asm)
		} else {
			res.References = append(res.References, f.asm)
		}
		l.logger.Debug("Loaded assembly description",
			logfields.File(f.path),
			logfields.Assembly(f.asm.Name),
			logfields.Count(len(f.types)))
	}
	return res, nil
}

type fileState struct {
	path       string
	documented bool
	doc        *fileDoc
	asm        *metadata.Assembly
	module     *metadata.Module
	types      []*typeState
}

type typeState struct {
	file *fileState
	doc  *typeDoc
	node *metadata.TypeNode
	// indexer is the name of the first indexer, recorded as the default member.
	indexer string
}

// session holds the state of one Load call. Building runs in phases: declare every
// type, resolve type shapes, create members, number enumeration fields, decode values
// and attributes, and finally link overrides and implementations.
type session struct {
	logger   *slog.Logger
	files    []*fileState
	registry map[string][]*metadata.TypeNode
	enums    []func() error
	values   []func() error
	links    []func() error
}

func newSession(logger *slog.Logger) *session {
	return &session{logger: logger, registry: make(map[string][]*metadata.TypeNode)}
}

func (s *session) parse(path string, data []byte, documented bool) error {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.WrapError(err, errors.CategoryMetadata, "invalid metadata description").
			WithContext("file", path).
			Build()
	}
	if doc.Assembly.Name == "" {
		return errors.MetadataError("metadata description has no assembly name").
			WithContext("file", path).
			Build()
	}
	s.files = append(s.files, &fileState{path: path, documented: documented, doc: &doc})
	return nil
}

func (s *session) build() error {
	for _, f := range s.files {
		if err := s.declareFile(f); err != nil {
			return err
		}
	}
	for _, f := range s.files {
		for _, ts := range f.types {
			if err := s.resolveShape(ts); err != nil {
				return err
			}
		}
	}
	for _, f := range s.files {
		for _, ts := range f.types {
			if err := s.createMembers(ts); err != nil {
				return err
			}
		}
	}
	for _, phase := range [][]func() error{s.enums, s.values, s.links} {
		for _, fn := range phase {
			if err := fn(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *session) fail(f *fileState, message string, cause error) error {
	var b *errors.ErrorBuilder
	if cause != nil {
		b = errors.WrapError(cause, errors.CategoryMetadata, message)
	} else {
		b = errors.MetadataError(message)
	}
	return b.WithContext("file", f.path).Build()
}

func (s *session) declareFile(f *fileState) error {
	ad := f.doc.Assembly
	asm := &metadata.Assembly{
		Name:          ad.Name,
		Version:       ad.Version,
		Culture:       ad.Culture,
		HashAlgorithm: ad.Hash,
	}
	if asm.Version == "" {
		asm.Version = "0.0.0.0"
	}
	if asm.HashAlgorithm == "" {
		asm.HashAlgorithm = "None"
	}
	if ad.PublicKey != "" {
		key, err := hex.DecodeString(ad.PublicKey)
		if err != nil {
			return s.fail(f, "invalid public key", err)
		}
		asm.PublicKey = key
	}
	kind, err := parseModuleKind(ad.Kind)
	if err != nil {
		return s.fail(f, "invalid module kind", err)
	}
	moduleName := ad.Module
	if moduleName == "" {
		moduleName = ad.Name + ".dll"
	}
	f.module = &metadata.Module{Name: moduleName, Kind: kind, Assembly: asm}
	asm.Modules = []*metadata.Module{f.module}
	f.asm = asm

	for i := range f.doc.Types {
		t, err := s.declareType(f, &f.doc.Types[i], nil)
		if err != nil {
			return err
		}
		asm.Types = append(asm.Types, t)
	}

	s.values = append(s.values, func() error {
		attrs, err := s.attributes(f.doc.Assembly.Attributes, scope{file: f})
		if err != nil {
			return err
		}
		asm.Attributes = attrs
		return nil
	})
	return nil
}

func (s *session) declareType(f *fileState, d *typeDoc, outer *metadata.TypeNode) (*metadata.TypeNode, error) {
	if d.Name == "" {
		return nil, s.fail(f, "type without a name", nil)
	}
	kind, err := parseTypeKind(d.Kind)
	if err != nil {
		return nil, s.fail(f, "type "+d.Name, err)
	}
	vis, err := parseVisibility(d.Visibility, metadata.Public)
	if err != nil {
		return nil, s.fail(f, "type "+d.Name, err)
	}
	name := d.Name
	if len(d.Generic) > 0 && !strings.Contains(name, "`") {
		name = fmt.Sprintf("%s`%d", name, len(d.Generic))
	}

	t := &metadata.TypeNode{
		MemberInfo: metadata.MemberInfo{
			Name:          name,
			DeclaringType: outer,
			Visibility:    vis,
		},
		Kind:         kind,
		Abstract:     d.Abstract || d.Static || kind == metadata.KindInterface,
		Sealed:       d.Sealed || d.Static || kind == metadata.KindStruct || kind == metadata.KindEnum || kind == metadata.KindDelegate,
		Serializable: d.Serializable,
		ComImport:    d.ComImport,
		ClassSize:    d.Size,
		PackingSize:  d.Pack,
	}
	if outer == nil {
		t.Namespace = d.Namespace
		t.Module = f.module
	}
	if kind == metadata.KindStruct {
		t.Layout = metadata.LayoutSequential
	}
	if d.Layout != "" {
		if t.Layout, err = parseLayout(d.Layout); err != nil {
			return nil, s.fail(f, "type "+d.Name, err)
		}
	}
	if t.CharSet, err = parseCharSet(d.CharSet); err != nil {
		return nil, s.fail(f, "type "+d.Name, err)
	}
	for i, g := range d.Generic {
		p, err := newGenericParameter(g, i, t)
		if err != nil {
			return nil, s.fail(f, "type "+d.Name, err)
		}
		t.TemplateParameters = append(t.TemplateParameters, p)
	}

	full := t.FullName()
	for _, existing := range s.registry[full] {
		if existing.DeclaringAssembly() == f.asm {
			return nil, s.fail(f, "duplicate type "+full, nil)
		}
	}
	s.registry[full] = append(s.registry[full], t)
	f.types = append(f.types, &typeState{file: f, doc: d, node: t})

	for i := range d.Nested {
		nested, err := s.declareType(f, &d.Nested[i], t)
		if err != nil {
			return nil, err
		}
		t.DeclaredMembers = append(t.DeclaredMembers, nested)
	}
	return t, nil
}

func newGenericParameter(g genericDoc, position int, owner metadata.Member) (*metadata.TypeNode, error) {
	if g.Name == "" {
		return nil, fmt.Errorf("generic parameter %d has no name", position)
	}
	p := &metadata.TypeNode{
		MemberInfo:      metadata.MemberInfo{Name: g.Name},
		Kind:            metadata.KindTemplateParameter,
		Position:        position,
		DeclaringMember: owner,
	}
	for _, c := range g.Constraints {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "class":
			p.Constraints |= metadata.ReferenceTypeConstraint
		case "struct":
			p.Constraints |= metadata.ValueTypeConstraint | metadata.DefaultConstructorConstraint
		case "new", "new()":
			p.Constraints |= metadata.DefaultConstructorConstraint
		case "out", "covariant":
			p.Constraints |= metadata.Covariant
		case "in", "contravariant":
			p.Constraints |= metadata.Contravariant
		default:
			return nil, fmt.Errorf("generic parameter %s: unknown constraint %q", g.Name, c)
		}
	}
	return p, nil
}

// resolveShape resolves base types, interfaces, generic constraints and the enum
// underlying type.
func (s *session) resolveShape(ts *typeState) error {
	t, d, f := ts.node, ts.doc, ts.file
	sc := scope{file: f, typ: t}

	base := d.Base
	if base == "" {
		switch t.Kind {
		case metadata.KindClass:
			if t.FullName() != metadata.SystemObject {
				base = metadata.SystemObject
			}
		case metadata.KindStruct:
			base = metadata.SystemValueType
		case metadata.KindEnum:
			base = metadata.SystemEnum
		case metadata.KindDelegate:
			base = "System.MulticastDelegate"
		}
	}
	if base != "" && t.Kind != metadata.KindInterface {
		b, err := s.resolve(base, sc)
		if err != nil {
			return err
		}
		t.DeclaredBase = b
	}
	for _, ref := range d.Interfaces {
		i, err := s.resolve(ref, sc)
		if err != nil {
			return err
		}
		t.DeclaredInterfaces = append(t.DeclaredInterfaces, i)
	}
	if err := s.resolveConstraints(t.TemplateParameters, d.Generic, sc); err != nil {
		return err
	}
	if t.Kind == metadata.KindEnum {
		underlying := d.Underlying
		if underlying == "" {
			underlying = metadata.SystemInt32
		}
		u, err := s.resolve(underlying, sc)
		if err != nil {
			return err
		}
		t.UnderlyingType = u
	}
	return nil
}

func (s *session) resolveConstraints(params []*metadata.TypeNode, docs []genericDoc, sc scope) error {
	for i, p := range params {
		g := docs[i]
		if g.Base != "" {
			b, err := s.resolve(g.Base, sc)
			if err != nil {
				return err
			}
			p.DeclaredBase = b
		} else if p.Constraints&metadata.ValueTypeConstraint != 0 {
			b, err := s.resolve(metadata.SystemValueType, sc)
			if err != nil {
				return err
			}
			p.DeclaredBase = b
		}
		for _, ref := range g.Interfaces {
			it, err := s.resolve(ref, sc)
			if err != nil {
				return err
			}
			p.DeclaredInterfaces = append(p.DeclaredInterfaces, it)
		}
	}
	return nil
}

func parseModuleKind(s string) (metadata.ModuleKind, error) {
	switch strings.ToLower(s) {
	case "", "library", "dll":
		return metadata.DynamicallyLinkedLibrary, nil
	case "console", "exe":
		return metadata.ConsoleApplication, nil
	case "windows", "winexe":
		return metadata.WindowsApplication, nil
	}
	return 0, fmt.Errorf("unknown module kind %q", s)
}

func parseTypeKind(s string) (metadata.TypeKind, error) {
	switch strings.ToLower(s) {
	case "", "class":
		return metadata.KindClass, nil
	case "struct", "structure":
		return metadata.KindStruct, nil
	case "interface":
		return metadata.KindInterface, nil
	case "enum", "enumeration":
		return metadata.KindEnum, nil
	case "delegate":
		return metadata.KindDelegate, nil
	}
	return 0, fmt.Errorf("unknown type kind %q", s)
}

var visibilityNormalizer = normalization.NewEnumNormalizer("visibility", map[string]metadata.Visibility{
	"public":              metadata.Public,
	"protected":           metadata.Family,
	"family":              metadata.Family,
	"internal":            metadata.VisibilityAssembly,
	"assembly":            metadata.VisibilityAssembly,
	"protected internal":  metadata.FamilyOrAssembly,
	"family or assembly":  metadata.FamilyOrAssembly,
	"private protected":   metadata.FamilyAndAssembly,
	"family and assembly": metadata.FamilyAndAssembly,
	"private":             metadata.Private,
}, metadata.Public)

func parseVisibility(s string, def metadata.Visibility) (metadata.Visibility, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return visibilityNormalizer.NormalizeWithValidation(s)
}

func parseLayout(s string) (metadata.Layout, error) {
	switch strings.ToLower(s) {
	case "auto":
		return metadata.LayoutAuto, nil
	case "sequential":
		return metadata.LayoutSequential, nil
	case "explicit":
		return metadata.LayoutExplicit, nil
	}
	return 0, fmt.Errorf("unknown layout %q", s)
}

func parseCharSet(s string) (metadata.CharSet, error) {
	switch strings.ToLower(s) {
	case "":
		return metadata.CharSetNotSpecified, nil
	case "ansi":
		return metadata.CharSetAnsi, nil
	case "unicode":
		return metadata.CharSetUnicode, nil
	case "auto":
		return metadata.CharSetAuto, nil
	}
	return 0, fmt.Errorf("unknown char set %q", s)
}

func parseCallingConvention(s string) (metadata.CallingConvention, error) {
	switch strings.ToLower(s) {
	case "", "winapi":
		return metadata.CallConvWinapi, nil
	case "cdecl":
		return metadata.CallConvCdecl, nil
	case "stdcall":
		return metadata.CallConvStdcall, nil
	case "thiscall":
		return metadata.CallConvThiscall, nil
	case "fastcall":
		return metadata.CallConvFastcall, nil
	}
	return 0, fmt.Errorf("unknown calling convention %q", s)
}
