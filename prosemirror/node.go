// Package prosemirror reads and edits rich-text documents stored in the
// ProseMirror/tiptap JSON format.
//
// Positions follow ProseMirror: the document's content starts at 0, entering
// or leaving a non-leaf node costs one position, inline leaves cost one, and
// text costs one position per UTF-16 code unit.
package prosemirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
)

// ErrInvalidDocument is returned for content that is not a document tree
var ErrInvalidDocument = errors.New("invalid document")

// Node is one node of a document tree
type Node struct {
	Type    string                 `json:"type"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Content []*Node                `json:"content,omitempty"`
	Text    string                 `json:"text,omitempty"`
	Marks   []Mark                 `json:"marks,omitempty"`
}

// Mark is an inline formatting mark on a text node
type Mark struct {
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

var leafTypes = map[string]bool{
	"hardBreak":      true,
	"horizontalRule": true,
	"image":          true,
	"mention":        true,
}

var textblockTypes = map[string]bool{
	"paragraph": true,
	"heading":   true,
	"codeBlock": true,
}

// Parse decodes a document. Empty input yields an empty doc.
func Parse(raw []byte) (*Node, error) {
	if len(strings.TrimSpace(string(raw))) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return &Node{Type: "doc"}, nil
	}
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if n.Type != "doc" {
		return nil, fmt.Errorf("%w: root node is %q", ErrInvalidDocument, n.Type)
	}
	return &n, nil
}

// Marshal encodes the document
func (n *Node) Marshal() ([]byte, error) {
	return json.Marshal(n)
}

// IsText reports whether n is a text node
func (n *Node) IsText() bool {
	return n.Type == "text"
}

// IsLeaf reports whether n holds no content positions of its own
func (n *Node) IsLeaf() bool {
	return n.IsText() || leafTypes[n.Type]
}

// IsInline reports whether n lives inside a text block
func (n *Node) IsInline() bool {
	return n.IsText() || n.Type == "hardBreak" || n.Type == "image" || n.Type == "mention"
}

// IsTextblock reports whether n directly holds inline content
func (n *Node) IsTextblock() bool {
	if textblockTypes[n.Type] {
		return true
	}
	if n.IsLeaf() || n.Type == "doc" || len(n.Content) == 0 {
		return false
	}
	for _, c := range n.Content {
		if !c.IsInline() {
			return false
		}
	}
	return true
}

// NodeSize is the number of positions n occupies in its parent
func (n *Node) NodeSize() int {
	switch {
	case n.IsText():
		return utf16Len(n.Text)
	case n.IsLeaf():
		return 1
	default:
		return n.ContentSize() + 2
	}
}

// ContentSize is the number of positions inside n
func (n *Node) ContentSize() int {
	size := 0
	for _, c := range n.Content {
		size += c.NodeSize()
	}
	return size
}

// TextContent concatenates all text below n
func (n *Node) TextContent() string {
	if n.IsText() {
		return n.Text
	}
	var b strings.Builder
	for _, c := range n.Content {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

// PlainText renders the document as text with one line per text block
func (n *Node) PlainText() string {
	var lines []string
	n.eachTextblock(func(b *Node) {
		var line strings.Builder
		for _, c := range b.Content {
			switch {
			case c.IsText():
				line.WriteString(c.Text)
			case c.Type == "hardBreak":
				line.WriteString("\n")
			}
		}
		lines = append(lines, line.String())
	})
	return strings.Join(lines, "\n")
}

func (n *Node) eachTextblock(fn func(*Node)) {
	for _, c := range n.Content {
		if c.IsTextblock() {
			fn(c)
		} else if !c.IsLeaf() {
			c.eachTextblock(fn)
		}
	}
}

// TextBetween returns the text between two document positions, without block
// separators, like the editor's own textBetween.
func (n *Node) TextBetween(from, to int) (string, error) {
	if err := n.checkRange(from, to); err != nil {
		return "", err
	}
	var b strings.Builder
	textBetween(n, 0, from, to, &b)
	return b.String(), nil
}

func textBetween(n *Node, contentStart, from, to int, b *strings.Builder) {
	pos := contentStart
	for _, c := range n.Content {
		size := c.NodeSize()
		start, end := pos, pos+size
		pos = end
		if end <= from || start >= to {
			continue
		}
		if c.IsText() {
			lo := max(from-start, 0)
			hi := min(to-start, size)
			units := utf16.Encode([]rune(c.Text))
			b.WriteString(string(utf16.Decode(units[lo:hi])))
			continue
		}
		if !c.IsLeaf() {
			textBetween(c, start+1, from, to, b)
		}
	}
}

// ErrOutOfRange is returned for positions that do not fit the document
var ErrOutOfRange = errors.New("position out of range")

func (n *Node) checkRange(from, to int) error {
	size := n.ContentSize()
	if from < 0 || to < from || to > size {
		return fmt.Errorf("%w: [%d, %d) in document of size %d", ErrOutOfRange, from, to, size)
	}
	return nil
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// splitText cuts s after the given number of UTF-16 code units.
func splitText(s string, at int) (string, string, error) {
	units := 0
	for i, r := range s {
		if units == at {
			return s[:i], s[i:], nil
		}
		w := 1
		if r >= 0x10000 {
			w = 2
		}
		if units+w > at {
			return "", "", fmt.Errorf("%w: offset %d splits a surrogate pair", ErrOutOfRange, at)
		}
		units += w
	}
	if units == at {
		return s, "", nil
	}
	return "", "", fmt.Errorf("%w: offset %d past text of length %d", ErrOutOfRange, at, units)
}
