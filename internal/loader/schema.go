package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// fileDoc is one metadata description file: a single assembly and its types.
type fileDoc struct {
	Assembly assemblyDoc `yaml:"assembly"`
	Types    []typeDoc   `yaml:"types"`
}

type assemblyDoc struct {
	Name       string         `yaml:"name"`
	Version    string         `yaml:"version"`
	Culture    string         `yaml:"culture"`
	PublicKey  string         `yaml:"public_key"`
	Hash       string         `yaml:"hash"`
	Module     string         `yaml:"module"`
	Kind       string         `yaml:"kind"`
	Attributes []attributeDoc `yaml:"attributes"`
}

// attributeDoc is a custom attribute. Args and named values are either plain scalars
// (typed by their YAML tag), {type: T, value: V} pairs or {typeof: T}.
type attributeDoc struct {
	Type  string      `yaml:"type"`
	Args  []yaml.Node `yaml:"args"`
	Named yaml.Node   `yaml:"named"`
}

type sourceDoc struct {
	File string `yaml:"file"`
	Line int    `yaml:"line"`
}

// nullableDoc accepts a single annotation byte or a list of them.
type nullableDoc struct {
	States []int
}

func (n *nullableDoc) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var b int
		if err := value.Decode(&b); err != nil {
			return err
		}
		n.States = []int{b}
		return nil
	case yaml.SequenceNode:
		return value.Decode(&n.States)
	}
	return fmt.Errorf("line %d: nullable must be a number or a list of numbers", value.Line)
}

// genericDoc is a generic parameter: a bare name or a mapping with constraints.
type genericDoc struct {
	Name        string   `yaml:"name"`
	Constraints []string `yaml:"constraints"`
	Base        string   `yaml:"base"`
	Interfaces  []string `yaml:"interfaces"`
}

func (g *genericDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		g.Name = value.Value
		return nil
	}
	type plain genericDoc
	return value.Decode((*plain)(g))
}

type memberDoc struct {
	Name        string         `yaml:"name"`
	Visibility  string         `yaml:"visibility"`
	Static      bool           `yaml:"static"`
	SpecialName bool           `yaml:"special_name"`
	Attributes  []attributeDoc `yaml:"attributes"`
	Nullable    *nullableDoc   `yaml:"nullable"`
	Source      *sourceDoc     `yaml:"source"`
}

type typeDoc struct {
	memberDoc `yaml:",inline"`

	Namespace       string       `yaml:"namespace"`
	Kind            string       `yaml:"kind"`
	Abstract        bool         `yaml:"abstract"`
	Sealed          bool         `yaml:"sealed"`
	Serializable    bool         `yaml:"serializable"`
	ComImport       bool         `yaml:"comimport"`
	Layout          string       `yaml:"layout"`
	Size            int          `yaml:"size"`
	Pack            int          `yaml:"pack"`
	CharSet         string       `yaml:"charset"`
	Base            string       `yaml:"base"`
	Interfaces      []string     `yaml:"interfaces"`
	Generic         []genericDoc `yaml:"generic"`
	NullableContext *int         `yaml:"nullable_context"`
	Underlying      string       `yaml:"underlying"`

	Fields       []fieldDoc    `yaml:"fields"`
	Constructors []methodDoc   `yaml:"constructors"`
	Methods      []methodDoc   `yaml:"methods"`
	Properties   []propertyDoc `yaml:"properties"`
	Events       []eventDoc    `yaml:"events"`
	Nested       []typeDoc     `yaml:"nested"`

	// Delegate signature.
	Parameters []parameterDoc `yaml:"parameters"`
	Returns    *returnDoc     `yaml:"returns"`
}

type fieldDoc struct {
	memberDoc `yaml:",inline"`

	Type          string    `yaml:"type"`
	Const         bool      `yaml:"const"`
	ReadOnly      bool      `yaml:"readonly"`
	Volatile      bool      `yaml:"volatile"`
	NotSerialized bool      `yaml:"not_serialized"`
	Offset        int       `yaml:"offset"`
	Value         yaml.Node `yaml:"value"`
	TupleNames    []string  `yaml:"tuple_names"`
}

type pinvokeDoc struct {
	Module                string `yaml:"module"`
	EntryPoint            string `yaml:"entry_point"`
	CallingConvention     string `yaml:"calling_convention"`
	CharSet               string `yaml:"charset"`
	BestFitMapping        *bool  `yaml:"best_fit_mapping"`
	ExactSpelling         bool   `yaml:"exact_spelling"`
	ThrowOnUnmappableChar bool   `yaml:"throw_on_unmappable_char"`
	SetLastError          bool   `yaml:"set_last_error"`
}

type methodDoc struct {
	memberDoc `yaml:",inline"`

	Generic         []genericDoc   `yaml:"generic"`
	Parameters      []parameterDoc `yaml:"parameters"`
	Returns         *returnDoc     `yaml:"returns"`
	Abstract        bool           `yaml:"abstract"`
	Virtual         bool           `yaml:"virtual"`
	Override        bool           `yaml:"override"`
	Sealed          bool           `yaml:"sealed"`
	Overrides       string         `yaml:"overrides"`
	Implements      []string       `yaml:"implements"`
	VarArgs         bool           `yaml:"varargs"`
	PreserveSig     bool           `yaml:"preserve_sig"`
	PInvoke         *pinvokeDoc    `yaml:"pinvoke"`
	Extension       bool           `yaml:"extension"`
	NullableContext *int           `yaml:"nullable_context"`
}

type parameterDoc struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	In         bool           `yaml:"in"`
	Out        bool           `yaml:"out"`
	Ref        bool           `yaml:"ref"`
	Optional   bool           `yaml:"optional"`
	Params     bool           `yaml:"params"`
	Default    yaml.Node      `yaml:"default"`
	Attributes []attributeDoc `yaml:"attributes"`
	Nullable   *nullableDoc   `yaml:"nullable"`
	TupleNames []string       `yaml:"tuple_names"`
}

// returnDoc is a return value: a bare type reference or a mapping.
type returnDoc struct {
	Type       string         `yaml:"type"`
	Attributes []attributeDoc `yaml:"attributes"`
	Nullable   *nullableDoc   `yaml:"nullable"`
	TupleNames []string       `yaml:"tuple_names"`
}

func (r *returnDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.Type = value.Value
		return nil
	}
	type plain returnDoc
	return value.Decode((*plain)(r))
}

// accessorDoc is a property accessor: true, false or a mapping with details.
type accessorDoc struct {
	Present    bool
	Visibility string         `yaml:"visibility"`
	Init       bool           `yaml:"init"`
	Attributes []attributeDoc `yaml:"attributes"`
	Source     *sourceDoc     `yaml:"source"`
}

func (a *accessorDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&a.Present)
	}
	type plain accessorDoc
	if err := value.Decode((*plain)(a)); err != nil {
		return err
	}
	a.Present = true
	return nil
}

type propertyDoc struct {
	memberDoc `yaml:",inline"`

	Type       string         `yaml:"type"`
	Parameters []parameterDoc `yaml:"parameters"`
	Get        accessorDoc    `yaml:"get"`
	Set        accessorDoc    `yaml:"set"`
	Abstract   bool           `yaml:"abstract"`
	Virtual    bool           `yaml:"virtual"`
	Override   bool           `yaml:"override"`
	Sealed     bool           `yaml:"sealed"`
	Implements []string       `yaml:"implements"`
	TupleNames []string       `yaml:"tuple_names"`
}

type eventDoc struct {
	memberDoc `yaml:",inline"`

	Type       string   `yaml:"type"`
	Abstract   bool     `yaml:"abstract"`
	Virtual    bool     `yaml:"virtual"`
	Override   bool     `yaml:"override"`
	Sealed     bool     `yaml:"sealed"`
	Raise      bool     `yaml:"raise"`
	Implements []string `yaml:"implements"`
}
