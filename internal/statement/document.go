// Package statement converts markdown problem statements into Typst markup.
package statement

import (
	"fmt"

	"github.com/yuin/goldmark/ast"
)

// Document is a parsed statement. Node segments point into Source.
type Document struct {
	Root   ast.Node
	Source []byte
}

// Parser turns markdown source into a Document.
type Parser interface {
	Parse(source []byte) (*Document, error)
}

// Renderer prints a Document as Typst markup wrapped at width columns.
type Renderer interface {
	Render(doc *Document, width int) string
}

// ParseError reports markdown input that cannot be converted.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return e.Reason
}
