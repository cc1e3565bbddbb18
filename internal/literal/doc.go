// Package literal turns constant values into the text written to reflection data:
// flag enumeration decomposition, decimal constant reconstruction, invariant value
// formatting and escaping of characters that cannot appear in XML text.
package literal
