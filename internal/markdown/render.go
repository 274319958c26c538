// ABOUTME: Renders assistant markdown to ANSI-styled terminal text.
// ABOUTME: Parses with goldmark and walks the AST; styling degrades to plain text when colors are off.

package markdown

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Renderer converts markdown to terminal output.
type Renderer struct {
	md goldmark.Markdown

	heading *color.Color
	bold    *color.Color
	italic  *color.Color
	code    *color.Color
	quote   *color.Color
	link    *color.Color
}

// New creates a Renderer with the default style palette.
func New() *Renderer {
	return &Renderer{
		md:      goldmark.New(),
		heading: color.New(color.FgCyan, color.Bold),
		bold:    color.New(color.Bold),
		italic:  color.New(color.Italic),
		code:    color.New(color.FgYellow),
		quote:   color.New(color.Faint),
		link:    color.New(color.FgBlue, color.Underline),
	}
}

// Render converts one markdown document to styled terminal text.
func (r *Renderer) Render(src string) string {
	source := []byte(src)
	doc := r.md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		r.block(&b, source, n, 0)
		if n.NextSibling() != nil {
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// block renders one block-level node followed by a trailing newline.
func (r *Renderer) block(b *strings.Builder, source []byte, n ast.Node, depth int) {
	indent := strings.Repeat("  ", depth)

	switch n := n.(type) {
	case *ast.Heading:
		b.WriteString(indent)
		b.WriteString(r.heading.Sprint(r.inlineText(source, n)))
		b.WriteString("\n")

	case *ast.Paragraph, *ast.TextBlock:
		for _, line := range strings.Split(r.inline(source, n), "\n") {
			b.WriteString(indent)
			b.WriteString(line)
			b.WriteString("\n")
		}

	case *ast.List:
		item := 1
		for li := n.FirstChild(); li != nil; li = li.NextSibling() {
			marker := "• "
			if n.IsOrdered() {
				marker = fmt.Sprintf("%d. ", item)
				item++
			}
			r.listItem(b, source, li, depth, marker)
		}

	case *ast.FencedCodeBlock:
		r.codeLines(b, source, n, indent)

	case *ast.CodeBlock:
		r.codeLines(b, source, n, indent)

	case *ast.Blockquote:
		var inner strings.Builder
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			r.block(&inner, source, c, 0)
		}
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			b.WriteString(indent)
			b.WriteString(r.quote.Sprint("│ " + line))
			b.WriteString("\n")
		}

	case *ast.ThematicBreak:
		b.WriteString(indent)
		b.WriteString(strings.Repeat("─", 40))
		b.WriteString("\n")

	default:
		if txt := r.inline(source, n); txt != "" {
			b.WriteString(indent)
			b.WriteString(txt)
			b.WriteString("\n")
		}
	}
}

// listItem renders one list item with its marker, indenting nested blocks.
func (r *Renderer) listItem(b *strings.Builder, source []byte, li ast.Node, depth int, marker string) {
	indent := strings.Repeat("  ", depth)
	first := true
	for c := li.FirstChild(); c != nil; c = c.NextSibling() {
		if _, nested := c.(*ast.List); nested {
			r.block(b, source, c, depth+1)
			continue
		}
		if first {
			b.WriteString(indent)
			b.WriteString(marker)
			b.WriteString(r.inline(source, c))
			b.WriteString("\n")
			first = false
			continue
		}
		r.block(b, source, c, depth+1)
	}
}

// codeLines renders the raw lines of a code block, indented and styled.
func (r *Renderer) codeLines(b *strings.Builder, source []byte, n ast.Node, indent string) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.WriteString(indent)
		b.WriteString("    ")
		b.WriteString(r.code.Sprint(strings.TrimRight(string(seg.Value(source)), "\n")))
		b.WriteString("\n")
	}
}

// inline renders the inline children of a node.
func (r *Renderer) inline(source []byte, n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(source))
			if c.HardLineBreak() || c.SoftLineBreak() {
				b.WriteString("\n")
			}

		case *ast.String:
			b.Write(c.Value)

		case *ast.Emphasis:
			style := r.italic
			if c.Level >= 2 {
				style = r.bold
			}
			b.WriteString(style.Sprint(r.inlineText(source, c)))

		case *ast.CodeSpan:
			b.WriteString(r.code.Sprint(r.inlineText(source, c)))

		case *ast.Link:
			b.WriteString(r.link.Sprint(r.inlineText(source, c)))
			if dest := string(c.Destination); dest != "" {
				b.WriteString(" (" + dest + ")")
			}

		case *ast.AutoLink:
			b.WriteString(r.link.Sprint(string(c.URL(source))))

		default:
			b.WriteString(r.inline(source, c))
		}
	}
	return b.String()
}

// inlineText flattens a node's inline content to plain text.
func (r *Renderer) inlineText(source []byte, n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(source))
			if c.HardLineBreak() || c.SoftLineBreak() {
				b.WriteString(" ")
			}
		case *ast.String:
			b.Write(c.Value)
		default:
			b.WriteString(r.inlineText(source, c))
		}
	}
	return b.String()
}
