// Package xmlwriter is a forward-only XML writer. Start tags stay open until the
// first child, text or end tag, so attributes can be added after WriteStartElement.
// The first error is latched: later calls are no-ops and Close reports it.
package xmlwriter

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Writer streams indented XML.
type Writer struct {
	enc     *xml.Encoder
	pending *xml.StartElement
	stack   []string
	err     error
}

// New returns a writer indenting nested elements by two spaces.
func New(w io.Writer) *Writer {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &Writer{enc: enc}
}

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Depth returns the number of open elements.
func (w *Writer) Depth() int { return len(w.stack) }

// Current returns the name of the innermost open element.
func (w *Writer) Current() string {
	if len(w.stack) == 0 {
		return ""
	}
	return w.stack[len(w.stack)-1]
}

func (w *Writer) encode(tok xml.Token) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(tok)
}

func (w *Writer) flushPending() {
	if w.pending == nil {
		return
	}
	start := *w.pending
	w.pending = nil
	w.encode(start)
}

// WriteStartDocument writes the XML declaration. It must be the first call.
func (w *Writer) WriteStartDocument() {
	w.encode(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="utf-8"`)})
}

// WriteStartElement opens an element.
func (w *Writer) WriteStartElement(name string) {
	if w.err != nil {
		return
	}
	w.flushPending()
	w.pending = &xml.StartElement{Name: xml.Name{Local: name}}
	w.stack = append(w.stack, name)
}

// WriteAttributeString adds an attribute to the element opened last. It fails once
// the element has content.
func (w *Writer) WriteAttributeString(name, value string) {
	if w.err != nil {
		return
	}
	if w.pending == nil {
		w.err = fmt.Errorf("xmlwriter: attribute %q written outside a start tag (in <%s>)", name, w.Current())
		return
	}
	for _, a := range w.pending.Attr {
		if a.Name.Local == name {
			w.err = fmt.Errorf("xmlwriter: duplicate attribute %q on <%s>", name, w.pending.Name.Local)
			return
		}
	}
	w.pending.Attr = append(w.pending.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

// WriteString writes escaped text content.
func (w *Writer) WriteString(text string) {
	if w.err != nil {
		return
	}
	w.flushPending()
	if text != "" {
		w.encode(xml.CharData(text))
	}
}

// WriteEndElement closes the innermost open element.
func (w *Writer) WriteEndElement() {
	if w.err != nil {
		return
	}
	if len(w.stack) == 0 {
		w.err = fmt.Errorf("xmlwriter: end element without open element")
		return
	}
	w.flushPending()
	name := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	w.encode(xml.EndElement{Name: xml.Name{Local: name}})
}

// WriteElementString writes a complete element holding only text.
func (w *Writer) WriteElementString(name, text string) {
	w.WriteStartElement(name)
	w.WriteString(text)
	w.WriteEndElement()
}

// Flush writes buffered output.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.flushPending()
	if w.err == nil {
		w.err = w.enc.Flush()
	}
	return w.err
}

// Close ends every open element and flushes.
func (w *Writer) Close() error {
	for len(w.stack) > 0 && w.err == nil {
		w.WriteEndElement()
	}
	return w.Flush()
}
