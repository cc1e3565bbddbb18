package xmlwriter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.WriteStartDocument()
	w.WriteStartElement("reflection")
	w.WriteStartElement("api")
	w.WriteAttributeString("id", "T:Contoso.Widget")
	w.WriteAttributeString("kind", `a<b & "c"`)
	w.WriteElementString("value", "x < y")
	w.WriteStartElement("empty")
	w.WriteEndElement()
	require.NoError(t, w.Close())

	out := buf.String()
	require.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="utf-8"?>`))
	require.Contains(t, out, `<api id="T:Contoso.Widget" kind="a&lt;b &amp; &#34;c&#34;">`)
	require.Contains(t, out, "<value>x &lt; y</value>")
	require.Contains(t, out, "<empty></empty>")
	require.True(t, strings.HasSuffix(out, "</reflection>"))
	require.Zero(t, w.Depth())
}

func TestWriter_AttributeAfterContentFails(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.WriteStartElement("type")
	w.WriteStartElement("child")
	w.WriteEndElement()
	w.WriteAttributeString("late", "true")
	require.Error(t, w.Err())

	// Later calls are ignored.
	w.WriteStartElement("more")
	require.Error(t, w.Close())
}

func TestWriter_DuplicateAttributeFails(t *testing.T) {
	w := New(&bytes.Buffer{})
	w.WriteStartElement("api")
	w.WriteAttributeString("id", "a")
	w.WriteAttributeString("id", "b")
	require.ErrorContains(t, w.Err(), "duplicate attribute")
}

func TestWriter_UnbalancedEnd(t *testing.T) {
	w := New(&bytes.Buffer{})
	w.WriteEndElement()
	require.Error(t, w.Err())
}
