package statement

import (
	"bytes"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser parses CommonMark with tables, strikethrough and math.
type MarkdownParser struct {
	md goldmark.Markdown
}

// NewMarkdownParser creates a parser with the statement extensions enabled.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		md: goldmark.New(goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			Math,
		)),
	}
}

// Parse parses source. Invalid UTF-8 and unterminated display math are errors.
func (p *MarkdownParser) Parse(source []byte) (*Document, error) {
	if !utf8.Valid(source) {
		return nil, &ParseError{Line: invalidUTF8Line(source), Reason: "input is not valid UTF-8"}
	}

	root := p.md.Parser().Parse(text.NewReader(source))

	var parseErr *ParseError
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if block, ok := n.(*MathBlock); ok && !block.Closed() {
			parseErr = &ParseError{Line: startLine(source, n), Reason: "unterminated $$ math block"}
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return &Document{Root: root, Source: source}, nil
}

func invalidUTF8Line(source []byte) int {
	line := 1
	for len(source) > 0 {
		r, size := utf8.DecodeRune(source)
		if r == utf8.RuneError && size <= 1 {
			return line
		}
		if r == '\n' {
			line++
		}
		source = source[size:]
	}
	return line
}

// startLine returns the 1-based line of a block's first content line, or 0.
func startLine(source []byte, n ast.Node) int {
	lines := n.Lines()
	if lines == nil || lines.Len() == 0 {
		return 0
	}
	return bytes.Count(source[:lines.At(0).Start], []byte{'\n'}) + 1
}
