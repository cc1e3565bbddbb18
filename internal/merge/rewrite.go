package merge

import (
	"context"
	"encoding/xml"
	"io"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/mrefbuilder/internal/util/sets"
	"git.home.luguber.info/inful/mrefbuilder/internal/xmlwriter"
)

// rewrite copies the document from in to out, writing each duplicated api entry once
// in merged form at the position of its first occurrence.
func rewrite(ctx context.Context, in io.Reader, out io.Writer, dups duplicates) (Result, error) {
	var res Result
	dec := xml.NewDecoder(in)
	w := xmlwriter.New(out)
	written := sets.New[string]()

	w.WriteStartDocument()
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, errors.WrapError(err, errors.CategoryMerge, "failed to read reflection data").Build()
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "api" {
				id := attrValue(t, "id")
				if copies := dups[id]; len(copies) > 0 {
					if err := ctx.Err(); err != nil {
						return Result{}, err
					}
					el, err := readElement(dec, t)
					if err != nil {
						return Result{}, errors.WrapError(err, errors.CategoryMerge, "failed to read reflection data").
							WithContext("api_id", id).
							Build()
					}
					if !written.AddNew(id) {
						continue
					}
					if strings.HasPrefix(id, "T:") {
						res.MergedTypes += mergeType(el, copies)
					} else {
						mergeLibraries(el, copies)
						res.MergedMembers++
					}
					writeElement(w, el)
					continue
				}
			}
			w.WriteStartElement(qualifiedName(t.Name))
			for _, a := range t.Attr {
				w.WriteAttributeString(qualifiedName(a.Name), a.Value)
			}
		case xml.EndElement:
			w.WriteEndElement()
		case xml.CharData:
			if !isBlank(t) {
				w.WriteString(string(t))
			}
		}
	}

	if err := w.Close(); err != nil {
		return Result{}, errors.WrapError(err, errors.CategoryMerge, "failed to write merged reflection data").Build()
	}
	return res, nil
}

func writeElement(w *xmlwriter.Writer, el *etree.Element) {
	w.WriteStartElement(el.FullTag())
	for _, a := range el.Attr {
		w.WriteAttributeString(a.FullKey(), a.Value)
	}
	for _, child := range el.Child {
		switch c := child.(type) {
		case *etree.Element:
			writeElement(w, c)
		case *etree.CharData:
			if !isBlank([]byte(c.Data)) {
				w.WriteString(c.Data)
			}
		}
	}
	w.WriteEndElement()
}

func library(api *etree.Element) *etree.Element {
	return api.FindElement("./containers/library")
}

// mergeLibraries adds the library of each copy after the kept copy's library, once per
// assembly name.
func mergeLibraries(kept *etree.Element, copies []*etree.Element) {
	lib := library(kept)
	if lib == nil {
		return
	}
	parent := lib.Parent()
	at := lib.Index() + 1
	names := sets.New(lib.SelectAttrValue("assembly", ""))
	for _, c := range copies {
		other := library(c)
		if other == nil || !names.AddNew(other.SelectAttrValue("assembly", "")) {
			continue
		}
		parent.InsertChildAt(at, other.Copy())
		at++
	}
}

type occurrence struct {
	element *etree.Element
	owner   *etree.Element
}

// mergeType merges the libraries and element lists of a type's copies into the kept
// copy. Member references that do not appear in every copy get a libraries list naming
// the libraries of the copies that have them; references missing from the kept copy
// are added to it. It returns the number of copies merged.
func mergeType(kept *etree.Element, copies []*etree.Element) int {
	mergeLibraries(kept, copies)

	elements := kept.SelectElement("elements")
	attach := elements == nil
	if attach {
		elements = etree.NewElement("elements")
	}

	groups := make(map[string][]occurrence)
	var order []string
	collect := func(owner, list *etree.Element) {
		if list == nil {
			return
		}
		for _, el := range list.SelectElements("element") {
			api := el.SelectAttrValue("api", "")
			if _, ok := groups[api]; !ok {
				order = append(order, api)
			}
			groups[api] = append(groups[api], occurrence{element: el, owner: owner})
		}
	}
	for _, c := range copies {
		collect(c, c.SelectElement("elements"))
	}
	collect(kept, elements)

	count := len(copies) + 1
	for _, api := range order {
		group := groups[api]
		if len(group) == count {
			continue
		}

		var target *etree.Element
		for _, o := range group {
			if o.owner == kept {
				target = o.element
				break
			}
		}
		if target == nil {
			target = group[0].element.Copy()
			elements.AddChild(target)
		}

		libs := make([]*etree.Element, 0, len(group))
		for _, o := range group {
			if lib := library(o.owner); lib != nil {
				libs = append(libs, lib)
			}
		}
		sort.SliceStable(libs, func(i, j int) bool {
			return libs[i].SelectAttrValue("assembly", "") < libs[j].SelectAttrValue("assembly", "")
		})
		libraries := target.CreateElement("libraries")
		for _, lib := range libs {
			libraries.AddChild(lib.Copy())
		}
	}

	if attach && len(elements.ChildElements()) > 0 {
		if containers := kept.SelectElement("containers"); containers != nil {
			kept.InsertChildAt(containers.Index(), elements)
		} else {
			kept.AddChild(elements)
		}
	}
	return count
}
