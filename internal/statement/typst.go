package statement

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/util"
)

// keep is substituted for spaces that must not become line breaks when a
// paragraph is wrapped. goldmark replaces NUL in its input, so it never
// collides with document text.
const keep = "\x00"

// TypstRenderer prints a parsed statement as Typst markup.
type TypstRenderer struct{}

// NewTypstRenderer returns a TypstRenderer.
func NewTypstRenderer() *TypstRenderer {
	return &TypstRenderer{}
}

// Render prints doc with paragraphs wrapped at width columns.
func (r *TypstRenderer) Render(doc *Document, width int) string {
	w := &typstWriter{source: doc.Source, width: width}
	blocks := w.blocks(doc.Root)
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

type typstWriter struct {
	source []byte
	width  int
}

func (w *typstWriter) blocks(parent ast.Node) []string {
	var out []string
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if s := w.block(c); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (w *typstWriter) block(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Heading:
		return strings.Repeat("=", n.Level) + " " + strings.ReplaceAll(w.inlines(n), keep, " ")
	case *ast.Paragraph, *ast.TextBlock:
		return wrap(w.inlines(n), w.width)
	case *ast.ThematicBreak:
		return "#line(length: 100%)"
	case *ast.FencedCodeBlock:
		return rawBlock(string(n.Language(w.source)), w.lines(n))
	case *ast.CodeBlock:
		return rawBlock("", w.lines(n))
	case *ast.Blockquote:
		return "#quote(block: true)[\n" + strings.Join(w.blocks(n), "\n\n") + "\n]"
	case *ast.List:
		return w.list(n)
	case *MathBlock:
		return "$ " + strings.TrimSpace(w.lines(n)) + " $"
	case *east.Table:
		return w.table(n)
	case *ast.HTMLBlock:
		return ""
	default:
		return strings.Join(w.blocks(n), "\n\n")
	}
}

func (w *typstWriter) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(w.source))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (w *typstWriter) list(n *ast.List) string {
	sep := "\n"
	if !n.IsTight {
		sep = "\n\n"
	}

	var items []string
	number := n.Start
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "- "
		if n.IsOrdered() {
			marker = strconv.Itoa(number) + ". "
			number++
		}
		body := strings.Join(w.blocks(item), sep)
		items = append(items, marker+indent(body, "  "))
	}
	return strings.Join(items, sep)
}

func (w *typstWriter) table(n *east.Table) string {
	var b strings.Builder
	b.WriteString("#table(\n")
	fmt.Fprintf(&b, "  columns: %d,\n", len(n.Alignments))

	aligns := make([]string, 0, len(n.Alignments))
	for _, a := range n.Alignments {
		aligns = append(aligns, typstAlign(a))
	}
	tuple := strings.Join(aligns, ", ")
	if len(aligns) == 1 {
		tuple += ","
	}
	fmt.Fprintf(&b, "  align: (%s),\n", tuple)

	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, "["+strings.ReplaceAll(w.inlines(cell), keep, " ")+"]")
		}
		line := strings.Join(cells, ", ")
		if _, ok := row.(*east.TableHeader); ok {
			fmt.Fprintf(&b, "  table.header(%s),\n", line)
			continue
		}
		fmt.Fprintf(&b, "  %s,\n", line)
	}
	b.WriteString(")")
	return b.String()
}

func typstAlign(a east.Alignment) string {
	switch a {
	case east.AlignLeft:
		return "left"
	case east.AlignRight:
		return "right"
	case east.AlignCenter:
		return "center"
	default:
		return "auto"
	}
}

// inlineWriter ends an embedded #expression with ';' when the following text
// would otherwise continue it as a field access or call.
type inlineWriter struct {
	b         strings.Builder
	afterCode bool
}

func (iw *inlineWriter) code(s string) {
	iw.b.WriteString(s)
	iw.afterCode = true
}

func (iw *inlineWriter) text(s string) {
	if s == "" {
		return
	}
	if iw.afterCode && (s[0] == '.' || s[0] == '(') {
		iw.b.WriteByte(';')
	}
	iw.b.WriteString(s)
	iw.afterCode = false
}

func (w *typstWriter) inlines(parent ast.Node) string {
	iw := &inlineWriter{}
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(iw, c)
	}
	return iw.b.String()
}

func (w *typstWriter) inline(iw *inlineWriter, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		iw.text(escapeText(unescape(n.Segment.Value(w.source))))
		switch {
		case n.HardLineBreak():
			iw.text(" \\\n")
		case n.SoftLineBreak():
			iw.text(" ")
		}
	case *ast.String:
		if n.IsRaw() {
			iw.text(string(n.Value))
			return
		}
		iw.text(escapeText(string(n.Value)))
	case *ast.CodeSpan:
		var raw strings.Builder
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				raw.Write(t.Segment.Value(w.source))
			}
		}
		iw.code("#raw(" + strings.ReplaceAll(quote(raw.String()), " ", keep) + ")")
	case *ast.Emphasis:
		tag := "#emph["
		if n.Level >= 2 {
			tag = "#strong["
		}
		iw.code(tag + w.inlines(n) + "]")
	case *east.Strikethrough:
		iw.code("#strike[" + w.inlines(n) + "]")
	case *ast.Link:
		target := "#link(" + quote(string(n.Destination)) + ")"
		if label := w.inlines(n); label != "" {
			target += "[" + label + "]"
		}
		iw.code(target)
	case *ast.AutoLink:
		url := string(n.URL(w.source))
		if n.AutoLinkType == ast.AutoLinkEmail {
			url = "mailto:" + url
		}
		iw.code("#link(" + quote(url) + ")")
	case *ast.Image:
		iw.code("#image(" + quote(string(n.Destination)) + ")")
	case *MathInline:
		body := strings.ReplaceAll(string(n.Literal), " ", keep)
		if n.Display {
			iw.text("$" + keep + body + keep + "$")
			return
		}
		iw.text("$" + body + "$")
	case *ast.RawHTML:
	default:
		iw.code(w.inlines(n))
	}
}

func unescape(value []byte) string {
	value = util.UnescapePunctuations(value)
	value = util.ResolveNumericReferences(value)
	value = util.ResolveEntityNames(value)
	return string(value)
}

// escapeText escapes characters with markup meaning in Typst.
func escapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		var next byte
		if i+1 < len(s) {
			next = s[i+1]
		}
		switch {
		case strings.IndexByte("\\*_`$#@<>[]~", c) >= 0:
			b.WriteByte('\\')
		case c == '-' && (next == '-' || next == '?'):
			b.WriteByte('\\')
		case c == '/' && (next == '/' || next == '*'):
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// quote renders s as a Typst string literal.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func rawBlock(lang, content string) string {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	return fence + lang + "\n" + content + "\n" + fence
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = prefix + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// wrap fills paragraph text greedily up to width runes per line. Each output
// line is guarded so it cannot start a heading, list or enum item.
func wrap(s string, width int) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		for _, filled := range fill(line, width) {
			out = append(out, strings.ReplaceAll(guardLineStart(filled), keep, " "))
		}
	}
	return strings.Join(out, "\n")
}

func fill(line string, width int) []string {
	if width <= 0 || utf8.RuneCountInString(line) <= width {
		return []string{strings.Trim(line, " ")}
	}

	var out []string
	var cur strings.Builder
	curLen := 0
	for _, word := range strings.Fields(line) {
		wordLen := utf8.RuneCountInString(word)
		if curLen > 0 && curLen+1+wordLen > width {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(word)
		curLen += wordLen
	}
	if curLen > 0 || len(out) == 0 {
		out = append(out, cur.String())
	}
	return out
}

func guardLineStart(line string) string {
	if line == "" {
		return line
	}
	switch line[0] {
	case '=', '-', '+', '/':
		return "\\" + line
	}
	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(line) && line[digits] == '.' {
		return line[:digits] + "\\" + line[digits:]
	}
	return line
}
