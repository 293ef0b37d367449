// Package dblp extracts typed records from the dblp XML dump.
package dblp

import "strings"

// Value is one captured sub-element. Attrs is nil for plain text values,
// so a plain string and an attributed value never need to be told apart by
// inspecting the text.
type Value struct {
	Text  string            `json:"text"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Attr returns the named attribute, or "" if absent.
func (v Value) Attr(name string) string {
	return v.Attrs[name]
}

// HasAttrs reports whether the sub-element carried attributes.
func (v Value) HasAttrs() bool {
	return len(v.Attrs) > 0
}

// Field holds every sub-element sharing one tag, in document order.
// The order matters: for author and editor it is the author position.
type Field []Value

// Texts returns the text of every value.
func (f Field) Texts() []string {
	texts := make([]string, len(f))
	for i, v := range f {
		texts[i] = v.Text
	}
	return texts
}

// First returns the first value, or the zero Value for an empty field.
func (f Field) First() Value {
	if len(f) == 0 {
		return Value{}
	}
	return f[0]
}

// Joined returns the texts joined by newlines.
func (f Field) Joined() string {
	return strings.Join(f.Texts(), "\n")
}

// Record is one top-level element of the dump.
type Record struct {
	Tag    string            `json:"tag"`
	Attrs  map[string]string `json:"attrs,omitempty"`
	Fields map[string]Field  `json:"fields,omitempty"`
}

// Key returns the dblp key attribute.
func (r Record) Key() string {
	return r.Attrs["key"]
}

// Attr returns the named attribute of the element, or "" if absent.
func (r Record) Attr(name string) string {
	return r.Attrs[name]
}

// Field returns the captured values of one sub-element tag.
func (r Record) Field(name string) Field {
	return r.Fields[name]
}
