package prosemirror

import (
	"strings"
)

// FromPlainText builds a document from generated text. Blank lines separate
// paragraphs, single newlines become hard breaks, and markdown-style "#"
// lines become headings.
func FromPlainText(text string) *Node {
	doc := &Node{Type: "doc"}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	for _, block := range strings.Split(text, "\n\n") {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) == "" {
			continue
		}
		if level, title, ok := headingLine(block); ok {
			doc.Content = append(doc.Content, &Node{
				Type:    "heading",
				Attrs:   map[string]interface{}{"level": float64(level)},
				Content: inlineText(title, nil),
			})
			continue
		}
		doc.Content = append(doc.Content, &Node{
			Type:    "paragraph",
			Content: inlineText(block, nil),
		})
	}
	return doc
}

func headingLine(block string) (int, string, bool) {
	if strings.Contains(block, "\n") {
		return 0, "", false
	}
	level := 0
	for level < len(block) && block[level] == '#' {
		level++
	}
	if level == 0 || level > 3 || level >= len(block) || block[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(block[level:]), true
}
