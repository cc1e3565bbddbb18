package merge

import (
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/beevik/etree"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
)

// duplicates maps every API id in a file to the copies after its first occurrence. The
// first occurrence itself is not buffered; ids seen once map to nil.
type duplicates map[string][]*etree.Element

// scan reads the file once and buffers the repeated api entries. found reports whether
// any id occurs more than once.
func (m *Merger) scan(ctx context.Context, path string) (dups duplicates, found bool, err error) {
	f, err := m.fs.Open(path)
	if err != nil {
		return nil, false, errors.WrapError(err, errors.CategoryFileSystem, "failed to open reflection data").
			WithContext("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	dups = make(duplicates)
	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, scanError(err, path)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "api" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		id := attrValue(start, "id")
		if _, seen := dups[id]; !seen {
			dups[id] = nil
			if err := dec.Skip(); err != nil {
				return nil, false, scanError(err, path)
			}
			continue
		}
		el, err := readElement(dec, start)
		if err != nil {
			return nil, false, scanError(err, path)
		}
		dups[id] = append(dups[id], el)
		found = true
	}
	return dups, found, nil
}

func scanError(err error, path string) error {
	return errors.WrapError(err, errors.CategoryMerge, "failed to read reflection data").
		WithContext("path", path).
		Build()
}

func attrValue(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func isBlank(data []byte) bool {
	return strings.TrimSpace(string(data)) == ""
}

// readElement reads the rest of the element opened by start into a tree. Whitespace
// between elements is dropped.
func readElement(dec *xml.Decoder, start xml.StartElement) (*etree.Element, error) {
	root := newElement(start)
	stack := []*etree.Element{root}
	for len(stack) > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			el := newElement(t)
			top.AddChild(el)
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if !isBlank(t) {
				top.CreateText(string(t))
			}
		}
	}
	return root, nil
}

func newElement(start xml.StartElement) *etree.Element {
	el := etree.NewElement(qualifiedName(start.Name))
	for _, a := range start.Attr {
		el.CreateAttr(qualifiedName(a.Name), a.Value)
	}
	return el
}
