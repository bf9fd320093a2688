package prosemirror

import (
	"fmt"
	"html"
	"strings"
)

// ToHTML renders the document as an HTML fragment
func (n *Node) ToHTML() string {
	var b strings.Builder
	renderNode(n, &b)
	return b.String()
}

func renderNode(n *Node, b *strings.Builder) {
	switch n.Type {
	case "doc":
		renderContent(n, b)
	case "paragraph":
		wrap(n, b, "<p>", "</p>\n")
	case "heading":
		level := intAttr(n.Attrs, "level", 1)
		if level < 1 || level > 6 {
			level = 1
		}
		wrap(n, b, fmt.Sprintf("<h%d>", level), fmt.Sprintf("</h%d>\n", level))
	case "bulletList":
		wrap(n, b, "<ul>\n", "</ul>\n")
	case "orderedList":
		wrap(n, b, "<ol>\n", "</ol>\n")
	case "listItem":
		wrap(n, b, "<li>", "</li>\n")
	case "blockquote":
		wrap(n, b, "<blockquote>\n", "</blockquote>\n")
	case "codeBlock":
		// marks are meaningless inside code
		b.WriteString("<pre><code>")
		b.WriteString(html.EscapeString(n.TextContent()))
		b.WriteString("</code></pre>\n")
	case "text":
		b.WriteString(renderTextWithMarks(n.Text, n.Marks))
	case "hardBreak":
		b.WriteString("<br>")
	case "horizontalRule":
		b.WriteString("<hr>\n")
	case "table":
		wrap(n, b, "<table>\n", "</table>\n")
	case "tableRow":
		wrap(n, b, "<tr>\n", "</tr>\n")
	case "tableCell":
		wrap(n, b, "<td>", "</td>\n")
	case "tableHeader":
		wrap(n, b, "<th>", "</th>\n")
	default:
		renderContent(n, b)
	}
}

func wrap(n *Node, b *strings.Builder, open, close string) {
	b.WriteString(open)
	renderContent(n, b)
	b.WriteString(close)
}

func renderContent(n *Node, b *strings.Builder) {
	for _, c := range n.Content {
		renderNode(c, b)
	}
}

// renderTextWithMarks applies marks from the outside in
func renderTextWithMarks(text string, marks []Mark) string {
	if text == "" {
		return ""
	}
	out := html.EscapeString(text)
	for i := len(marks) - 1; i >= 0; i-- {
		switch marks[i].Type {
		case "bold":
			out = "<strong>" + out + "</strong>"
		case "italic":
			out = "<em>" + out + "</em>"
		case "underline":
			out = "<u>" + out + "</u>"
		case "strike":
			out = "<s>" + out + "</s>"
		case "code":
			out = "<code>" + out + "</code>"
		case "link":
			href, _ := marks[i].Attrs["href"].(string)
			out = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), out)
		}
	}
	return out
}

func intAttr(attrs map[string]interface{}, key string, fallback int) int {
	switch v := attrs[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
