// Package frontmatter splits a Markdown document into its YAML header and body
// and joins them back together.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/notepress/internal/apperr"
)

// Delimiter is the marker line that opens and closes the header block.
const Delimiter = "---"

// Parse separates the header from the body. The header is recognised only when
// the text starts with a delimiter line; a block that does not decode into a
// mapping is treated as absent and the whole text is returned as body.
func Parse(text string) (*Header, string) {
	block, body, ok := split(text)
	if !ok {
		return nil, text
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, text
	}
	if doc.Kind == 0 {
		// Empty block.
		return NewHeader(), body
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return NewHeader(), body
		}
		root = root.Content[0]
	}
	if root.Kind == yaml.ScalarNode && root.ShortTag() == TagNull {
		return NewHeader(), body
	}
	if root.Kind != yaml.MappingNode {
		return nil, text
	}

	h, err := headerFromNode(root)
	if err != nil {
		return nil, text
	}
	return h, body
}

// Dump serialises h between delimiter lines followed by body verbatim. Keys keep
// their insertion order and non-ASCII text is written literally.
func Dump(h *Header, body string) (string, error) {
	var b strings.Builder
	b.WriteString(Delimiter + "\n")

	if h.Len() > 0 {
		node, err := h.toNode()
		if err != nil {
			return "", fmt.Errorf("frontmatter: %w: %v", apperr.ErrSerialize, err)
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(node); err != nil {
			return "", fmt.Errorf("frontmatter: %w: %v", apperr.ErrSerialize, err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("frontmatter: %w: %v", apperr.ErrSerialize, err)
		}
		b.Write(buf.Bytes())
	}

	b.WriteString(Delimiter + "\n")
	b.WriteString(body)
	return b.String(), nil
}

// split locates the header block. The opening delimiter must be the very first
// line; trailing blanks on delimiter lines are tolerated.
func split(text string) (block, body string, ok bool) {
	first, rest, found := strings.Cut(text, "\n")
	if !found || !isDelimiter(first) {
		return "", "", false
	}

	offset := 0
	for offset <= len(rest) {
		line, after, more := strings.Cut(rest[offset:], "\n")
		if isDelimiter(line) {
			block = rest[:offset]
			if more {
				body = after
			}
			return block, body, true
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	return "", "", false
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == Delimiter
}

func headerFromNode(n *yaml.Node) (*Header, error) {
	h := NewHeader()
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := deref(n.Content[i]), deref(n.Content[i+1])
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("non-scalar key at line %d", k.Line)
		}
		val, err := valueFromNode(v)
		if err != nil {
			return nil, err
		}
		h.Set(k.Value, val)
	}
	return h, nil
}

func valueFromNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return Value{kind: KindScalar, scalar: Scalar{Text: n.Value, Tag: n.ShortTag()}}, nil
	case yaml.SequenceNode:
		list := make([]Scalar, 0, len(n.Content))
		for _, item := range n.Content {
			item = deref(item)
			if item.Kind != yaml.ScalarNode {
				return opaque(n), nil
			}
			list = append(list, Scalar{Text: item.Value, Tag: item.ShortTag()})
		}
		return Value{kind: KindList, list: list}, nil
	case yaml.MappingNode:
		for i := 0; i < len(n.Content); i += 2 {
			if deref(n.Content[i]).Kind != yaml.ScalarNode {
				return opaque(n), nil
			}
		}
		h, err := headerFromNode(n)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindMap, mapping: h}, nil
	}
	return Value{}, fmt.Errorf("unsupported node kind %d at line %d", n.Kind, n.Line)
}

func opaque(n *yaml.Node) Value {
	c := cloneNode(n)
	stripPositions(c)
	return Value{kind: KindNode, node: c}
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func (h *Header) toNode() (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range h.keys {
		if k == "" {
			return nil, fmt.Errorf("empty key")
		}
		v, err := h.values[k].toNode()
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: TagStr, Value: k}, v)
	}
	return m, nil
}

func (v Value) toNode() (*yaml.Node, error) {
	switch v.kind {
	case KindScalar:
		return scalarNode(v.scalar), nil
	case KindList:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, s := range v.list {
			seq.Content = append(seq.Content, scalarNode(s))
		}
		return seq, nil
	case KindMap:
		return v.mapping.toNode()
	case KindNode:
		if v.node == nil {
			return nil, fmt.Errorf("nil node")
		}
		return cloneNode(v.node), nil
	}
	return nil, fmt.Errorf("invalid value")
}

func scalarNode(s Scalar) *yaml.Node {
	tag := s.Tag
	if tag == "" {
		tag = TagStr
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: s.Text}
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	n = deref(n)
	c := *n
	c.Alias = nil
	c.Content = nil
	for _, child := range n.Content {
		c.Content = append(c.Content, cloneNode(child))
	}
	return &c
}

func stripPositions(n *yaml.Node) {
	n.Line, n.Column = 0, 0
	n.HeadComment, n.LineComment, n.FootComment = "", "", ""
	n.Anchor = ""
	for _, child := range n.Content {
		stripPositions(child)
	}
}
