package prosemirror

import (
	"fmt"
	"reflect"
	"strings"
)

type blockRef struct {
	node  *Node
	start int // first content position
	end   int // last content position
}

func (n *Node) textblocks() []blockRef {
	var out []blockRef
	collectTextblocks(n, 0, &out)
	return out
}

func collectTextblocks(n *Node, contentStart int, out *[]blockRef) {
	pos := contentStart
	for _, c := range n.Content {
		size := c.NodeSize()
		switch {
		case c.IsTextblock():
			*out = append(*out, blockRef{node: c, start: pos + 1, end: pos + size - 1})
		case !c.IsLeaf():
			collectTextblocks(c, pos+1, out)
		}
		pos += size
	}
}

// snapRange moves from forward to the start of the next text block and to
// back to the end of the previous one when they sit between blocks, so a
// select-all range [0, ContentSize()) covers the text it selects.
func snapRange(blocks []blockRef, from, to int) (int, int, bool) {
	first, last := -1, -1
	for i, b := range blocks {
		if b.end >= from {
			first = i
			break
		}
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].start <= to {
			last = i
			break
		}
	}
	if first < 0 || last < 0 {
		return 0, 0, false
	}
	if from < blocks[first].start {
		from = blocks[first].start
	}
	if to > blocks[last].end {
		to = blocks[last].end
	}
	return from, to, from <= to
}

func blockAt(blocks []blockRef, pos int) (int, bool) {
	for i, b := range blocks {
		if pos >= b.start && pos <= b.end {
			return i, true
		}
	}
	return 0, false
}

// ReplaceText replaces the range [from, to) with plain text, the way an editor
// deletes a selection and types over it. Ends lying between blocks snap to the
// nearest text block inside the range, and a range spanning several blocks
// joins the first and the last one.
// Newlines in text become hard breaks. The document is modified in place.
func (n *Node) ReplaceText(from, to int, text string) error {
	if err := n.checkRange(from, to); err != nil {
		return err
	}

	blocks := n.textblocks()
	sf, st, ok := snapRange(blocks, from, to)
	if !ok {
		return fmt.Errorf("%w: range [%d, %d) holds no text block", ErrOutOfRange, from, to)
	}
	from, to = sf, st
	ai, ok := blockAt(blocks, from)
	if !ok {
		return fmt.Errorf("%w: position %d is not inside a text block", ErrOutOfRange, from)
	}
	bi, ok := blockAt(blocks, to)
	if !ok {
		return fmt.Errorf("%w: position %d is not inside a text block", ErrOutOfRange, to)
	}
	a, b := blocks[ai], blocks[bi]

	head, err := sliceInline(a.node, 0, from-a.start)
	if err != nil {
		return err
	}
	tail, err := sliceInline(b.node, to-b.start, b.end-b.start)
	if err != nil {
		return err
	}
	marks := marksAt(a.node, from-a.start)

	if ai != bi {
		// Drop everything after block a up to and including block b.
		removeBetween(n, 0, a.end+1, b.start-1, b.node)
	}

	content := append(head, inlineText(text, marks)...)
	content = append(content, tail...)
	a.node.Content = normalizeInline(content)
	return nil
}

// sliceInline copies the inline content of block between two offsets
func sliceInline(block *Node, from, to int) ([]*Node, error) {
	var out []*Node
	pos := 0
	for _, c := range block.Content {
		size := c.NodeSize()
		start, end := pos, pos+size
		pos = end
		if end <= from || start >= to {
			continue
		}
		if !c.IsText() {
			if start >= from && end <= to {
				out = append(out, c)
			}
			continue
		}
		text := c.Text
		if to < end {
			left, _, err := splitText(text, to-start)
			if err != nil {
				return nil, err
			}
			text = left
		}
		if from > start {
			_, right, err := splitText(text, from-start)
			if err != nil {
				return nil, err
			}
			text = right
		}
		if text == "" {
			continue
		}
		cp := *c
		cp.Text = text
		out = append(out, &cp)
	}
	return out, nil
}

// marksAt returns the marks of the text just before offset, or just after it
// at the start of a block.
func marksAt(block *Node, offset int) []Mark {
	pos := 0
	var first []Mark
	for i, c := range block.Content {
		size := c.NodeSize()
		if i == 0 && c.IsText() {
			first = c.Marks
		}
		if c.IsText() && offset > pos && offset <= pos+size {
			return c.Marks
		}
		pos += size
	}
	if offset == 0 {
		return first
	}
	return nil
}

func inlineText(text string, marks []Mark) []*Node {
	if text == "" {
		return nil
	}
	var out []*Node
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			out = append(out, &Node{Type: "hardBreak"})
		}
		if line != "" {
			out = append(out, &Node{Type: "text", Text: line, Marks: marks})
		}
	}
	return out
}

// normalizeInline merges adjacent text nodes that carry the same marks
func normalizeInline(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, c := range nodes {
		if c.IsText() && c.Text == "" {
			continue
		}
		if len(out) > 0 {
			last := out[len(out)-1]
			if last.IsText() && c.IsText() && sameMarks(last.Marks, c.Marks) {
				merged := *last
				merged.Text += c.Text
				out[len(out)-1] = &merged
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func sameMarks(a, b []Mark) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// removeBetween drops the target node and every node lying entirely in
// [lo, hi]. Containers emptied by the removal are dropped too.
func removeBetween(n *Node, contentStart, lo, hi int, target *Node) {
	pos := contentStart
	kept := make([]*Node, 0, len(n.Content))
	for _, c := range n.Content {
		size := c.NodeSize()
		start, end := pos, pos+size
		pos = end

		if c == target || (start >= lo && end <= hi) {
			continue
		}
		if !c.IsLeaf() && !c.IsTextblock() && end > lo && start < hi {
			had := len(c.Content) > 0
			removeBetween(c, start+1, lo, hi, target)
			if had && len(c.Content) == 0 {
				continue
			}
		}
		kept = append(kept, c)
	}
	n.Content = kept
}
