package frontmatter

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// YAML tags carried by scalars.
const (
	TagStr  = "!!str"
	TagNull = "!!null"
)

// Kind identifies the shape held by a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindScalar
	KindList
	KindMap
	// KindNode carries any other YAML shape (lists of mappings, nested lists)
	// verbatim so unknown keys survive a round trip.
	KindNode
)

// Scalar is a single YAML scalar with its resolved tag. Keeping the tag means
// `draft: true` is re-emitted as a boolean rather than the string "true".
type Scalar struct {
	Text string
	Tag  string
}

// Value is one header value: a scalar, a list of scalars, a nested mapping or
// an opaque node.
type Value struct {
	kind    Kind
	scalar  Scalar
	list    []Scalar
	mapping *Header
	node    *yaml.Node
}

// String returns a string scalar value.
func String(s string) Value {
	return Value{kind: KindScalar, scalar: Scalar{Text: s, Tag: TagStr}}
}

// ScalarValue returns a scalar value with an explicit YAML tag.
func ScalarValue(text, tag string) Value {
	if tag == "" {
		tag = TagStr
	}
	return Value{kind: KindScalar, scalar: Scalar{Text: text, Tag: tag}}
}

// Strings returns a list value of string scalars.
func Strings(items []string) Value {
	list := make([]Scalar, len(items))
	for i, s := range items {
		list[i] = Scalar{Text: s, Tag: TagStr}
	}
	return Value{kind: KindList, list: list}
}

// Map returns a nested mapping value.
func Map(h *Header) Value {
	if h == nil {
		h = NewHeader()
	}
	return Value{kind: KindMap, mapping: h}
}

// Kind reports the shape of v.
func (v Value) Kind() Kind { return v.kind }

// Scalar returns the scalar held by v; ok is false for other kinds.
func (v Value) Scalar() (Scalar, bool) {
	return v.scalar, v.kind == KindScalar
}

// Text returns the scalar text, or "" for non-scalar values.
func (v Value) Text() string {
	if v.kind != KindScalar || v.scalar.Tag == TagNull {
		return ""
	}
	return v.scalar.Text
}

// List returns a copy of the list items; nil for non-list values.
func (v Value) List() []Scalar {
	if v.kind != KindList {
		return nil
	}
	return append([]Scalar(nil), v.list...)
}

// Mapping returns the nested header; nil for non-mapping values.
func (v Value) Mapping() *Header {
	if v.kind != KindMap {
		return nil
	}
	return v.mapping
}

// StringList normalises a tags-like field: a single non-empty scalar becomes a
// one-element list, a list yields its non-null items, trimmed, empties dropped.
func (v Value) StringList() []string {
	var out []string
	add := func(s Scalar) {
		if s.Tag == TagNull {
			return
		}
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	switch v.kind {
	case KindScalar:
		add(v.scalar)
	case KindList:
		for _, s := range v.list {
			add(s)
		}
	}
	return out
}

// IsEmpty reports whether v counts as missing: null, empty string, empty list
// or empty mapping.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindScalar:
		return v.scalar.Tag == TagNull || v.scalar.Text == ""
	case KindList:
		return len(v.list) == 0
	case KindMap:
		return v.mapping == nil || v.mapping.Len() == 0
	case KindNode:
		return v.node == nil || len(v.node.Content) == 0 && v.node.Value == ""
	}
	return true
}

// Header is an insertion-ordered mapping of string keys to values.
type Header struct {
	keys   []string
	values map[string]Value
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{values: make(map[string]Value)}
}

// Len returns the number of keys.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.keys)
}

// Keys returns the keys in insertion order.
func (h *Header) Keys() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.keys...)
}

// Has reports whether key is present.
func (h *Header) Has(key string) bool {
	if h == nil {
		return false
	}
	_, ok := h.values[key]
	return ok
}

// Get returns the value stored under key.
func (h *Header) Get(key string) (Value, bool) {
	if h == nil {
		return Value{}, false
	}
	v, ok := h.values[key]
	return v, ok
}

// Set stores v under key. Existing keys keep their position.
func (h *Header) Set(key string, v Value) {
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = v
}

// Delete removes key.
func (h *Header) Delete(key string) {
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	for i, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of h.
func (h *Header) Clone() *Header {
	if h == nil {
		return nil
	}
	out := NewHeader()
	for _, k := range h.keys {
		out.Set(k, h.values[k].clone())
	}
	return out
}

func (v Value) clone() Value {
	out := v
	switch v.kind {
	case KindList:
		out.list = append([]Scalar(nil), v.list...)
	case KindMap:
		out.mapping = v.mapping.Clone()
	case KindNode:
		out.node = cloneNode(v.node)
	}
	return out
}
